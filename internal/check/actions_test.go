package check

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bullionwatch/pmalert/models"
	"github.com/bullionwatch/pmalert/pkg/browse"
)

// stubSession fails navigation and yields no page content, like a run on a
// host with no route to the target.
type stubSession struct {
	navErr error
}

func (s *stubSession) Navigate(ctx context.Context) error { return s.navErr }
func (s *stubSession) HTML() string                       { return "" }
func (s *stubSession) BodyText() string                   { return "" }
func (s *stubSession) Captured() []browse.Exchange        { return nil }
func (s *stubSession) NudgeScroll(ctx context.Context)    {}
func (s *stubSession) Close() error                       { return nil }

func (s *stubSession) FetchJSON(ctx context.Context, rawURL string) ([]byte, error) {
	return nil, errors.New("no transport")
}

func (s *stubSession) Screenshot(ctx context.Context) ([]byte, error) {
	return nil, browse.ErrUnsupported
}

func testConfig(t *testing.T) *models.Config {
	t.Helper()
	dir := t.TempDir()
	return &models.Config{
		Bluesky: models.BlueskyConfig{
			Handle:      "alerts.example.com",
			AppPassword: "pw",
			ServiceURL:  "http://127.0.0.1:1",
		},
		X:       models.XConfig{MonthlyCap: 450, CooldownSeconds: 21600},
		Check:   models.CheckConfig{DryRun: true, PostPrefix: "ALERT:", TestPrefix: "[TEST-OOS]"},
		Browser: models.BrowserConfig{Engine: "chromium", TimeoutMS: 50, UserAgent: "test"},
		Paths: models.PathsConfig{
			StateFile:   filepath.Join(dir, "state.json"),
			ArtifactDir: filepath.Join(dir, "artifacts"),
		},
	}
}

// deadProxy forces any stray outbound request onto a closed local port so no
// acquisition strategy can reach the real network.
func deadProxy(t *testing.T) {
	t.Helper()
	t.Setenv("HTTP_PROXY", "http://127.0.0.1:1")
	t.Setenv("HTTPS_PROXY", "http://127.0.0.1:1")
}

func TestRunNavigationFailurePublishesInconclusive(t *testing.T) {
	deadProxy(t)

	cfg := testConfig(t)
	cfg.Check.PostStatusUpdates = true
	cfg.Check.AlwaysPostWhenInconclusive = true

	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	session := &stubSession{navErr: errors.New("connection refused")}
	code := run(context.Background(), cfg, logger, session)

	if code != ExitFetchError {
		t.Errorf("exit code = %d, want %d", code, ExitFetchError)
	}
	logs := logBuf.String()
	if !strings.Contains(logs, "decision reached") {
		t.Error("decision policy never evaluated on navigation failure")
	}
	if !strings.Contains(logs, string(models.VerdictInconclusive)) {
		t.Errorf("want an inconclusive verdict in the logs, got: %s", logs)
	}
	if !strings.Contains(logs, "dry-run: would post") {
		t.Error("inconclusive status update not published despite both flags set")
	}
}

func TestRunNavigationFailureWithoutFlagsDoesNotPost(t *testing.T) {
	deadProxy(t)

	cfg := testConfig(t)

	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	session := &stubSession{navErr: errors.New("connection refused")}
	code := run(context.Background(), cfg, logger, session)

	if code != ExitFetchError {
		t.Errorf("exit code = %d, want %d", code, ExitFetchError)
	}
	if strings.Contains(logBuf.String(), "would post") {
		t.Error("status update published without the inconclusive-post flags")
	}
}
