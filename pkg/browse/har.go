package browse

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// HAR is the subset of the HTTP Archive format this tool reads and writes:
// request URLs plus response status, content type, and body.
type HAR struct {
	Log HARLog `json:"log"`
}

type HARLog struct {
	Version string     `json:"version"`
	Creator HARCreator `json:"creator"`
	Entries []HAREntry `json:"entries"`
}

type HARCreator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type HAREntry struct {
	StartedDateTime string      `json:"startedDateTime,omitempty"`
	Request         HARRequest  `json:"request"`
	Response        HARResponse `json:"response"`
}

type HARRequest struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

type HARResponse struct {
	Status  int        `json:"status"`
	Content HARContent `json:"content"`
}

type HARContent struct {
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
	Encoding string `json:"encoding,omitempty"`
}

// LoadHAR reads a recorded traffic capture and flattens it into exchanges.
// Base64-encoded bodies are decoded; entries with undecodable bodies are
// skipped rather than failing the whole capture.
func LoadHAR(path string) ([]Exchange, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture log: %w", err)
	}
	var har HAR
	if err := json.Unmarshal(data, &har); err != nil {
		return nil, fmt.Errorf("failed to parse capture log: %w", err)
	}

	exchanges := make([]Exchange, 0, len(har.Log.Entries))
	for _, entry := range har.Log.Entries {
		body := []byte(entry.Response.Content.Text)
		if entry.Response.Content.Encoding == "base64" {
			decoded, err := base64.StdEncoding.DecodeString(entry.Response.Content.Text)
			if err != nil {
				continue
			}
			body = decoded
		}
		exchanges = append(exchanges, Exchange{
			URL:         entry.Request.URL,
			Status:      entry.Response.Status,
			ContentType: entry.Response.Content.MimeType,
			Body:        body,
		})
	}
	return exchanges, nil
}

// ToHAR packages recorded exchanges as a HAR document for the diagnostics
// capture artifact.
func ToHAR(exchanges []Exchange, now time.Time) *HAR {
	entries := make([]HAREntry, 0, len(exchanges))
	for _, ex := range exchanges {
		entries = append(entries, HAREntry{
			StartedDateTime: now.Format(time.RFC3339),
			Request:         HARRequest{Method: "GET", URL: ex.URL},
			Response: HARResponse{
				Status: ex.Status,
				Content: HARContent{
					MimeType: ex.ContentType,
					Text:     base64.StdEncoding.EncodeToString(ex.Body),
					Encoding: "base64",
				},
			},
		})
	}
	return &HAR{Log: HARLog{
		Version: "1.2",
		Creator: HARCreator{Name: "pmalert", Version: "1.0"},
		Entries: entries,
	}}
}
