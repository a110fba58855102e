// Package artifacts writes per-run diagnostic files: the captured payload,
// an HTML dump, the extracted page text, the traffic capture, an optional
// screenshot, and a YAML run summary. Everything here is best-effort; a
// failed artifact write never blocks the decision pipeline.
package artifacts

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bullionwatch/pmalert/models"
	"github.com/bullionwatch/pmalert/pkg/browse"
)

// Writer drops artifacts into one directory per run, named
// <base>/<timestamp>-<runID>.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates the run directory. On failure it returns a disabled
// writer whose saves are no-ops.
func NewWriter(baseDir, runID string, now time.Time, logger *slog.Logger) *Writer {
	dir := filepath.Join(baseDir, fmt.Sprintf("%s-%s", now.Format("2006-01-02T15-04-05"), runID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warn("artifact directory unavailable", "dir", dir, "error", err)
		return &Writer{logger: logger}
	}
	return &Writer{dir: dir, logger: logger}
}

// Dir returns the run directory, empty when the writer is disabled.
func (w *Writer) Dir() string { return w.dir }

// SaveBytes writes one artifact file.
func (w *Writer) SaveBytes(name string, data []byte) {
	if w.dir == "" || len(data) == 0 {
		return
	}
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		w.logger.Warn("failed to write artifact", "name", name, "error", err)
	}
}

// SavePayload writes the structured payload as indented JSON.
func (w *Writer) SavePayload(payload *models.SearchPayload) {
	if payload == nil {
		return
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		w.logger.Warn("failed to encode payload artifact", "error", err)
		return
	}
	w.SaveBytes("payload.json", data)
}

// SaveCapture writes the session's network exchanges as a HAR document.
func (w *Writer) SaveCapture(exchanges []browse.Exchange, now time.Time) {
	if len(exchanges) == 0 {
		return
	}
	data, err := json.MarshalIndent(browse.ToHAR(exchanges, now), "", "  ")
	if err != nil {
		w.logger.Warn("failed to encode capture artifact", "error", err)
		return
	}
	w.SaveBytes("capture.har", data)
}

// RunSummary is the YAML digest written at the end of each run.
type RunSummary struct {
	RunID     string    `yaml:"run_id"`
	Timestamp time.Time `yaml:"timestamp"`
	Verdict   string    `yaml:"verdict"`
	Source    string    `yaml:"source,omitempty"`
	Reason    string    `yaml:"reason,omitempty"`
	Total     int       `yaml:"total_items"`
	InStock   int       `yaml:"in_stock"`
	Posted    bool      `yaml:"posted"`
	DryRun    bool      `yaml:"dry_run"`
	Error     string    `yaml:"error,omitempty"`
}

// SaveSummary writes the run digest.
func (w *Writer) SaveSummary(summary RunSummary) {
	data, err := yaml.Marshal(summary)
	if err != nil {
		w.logger.Warn("failed to encode run summary", "error", err)
		return
	}
	w.SaveBytes("summary.yaml", data)
}
