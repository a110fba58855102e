package browse

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestHARRoundTrip(t *testing.T) {
	exchanges := []Exchange{
		{URL: "https://search.costco.com/api", Status: 200, ContentType: "application/json", Body: []byte(`{"response":{"docs":[]}}`)},
		{URL: "https://www.costco.com/precious-metals.html", Status: 200, ContentType: "text/html", Body: []byte("<html></html>")},
	}

	har := ToHAR(exchanges, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	data, err := json.Marshal(har)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "capture.har")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadHAR(path)
	if err != nil {
		t.Fatalf("LoadHAR: %v", err)
	}
	if len(loaded) != len(exchanges) {
		t.Fatalf("entries = %d, want %d", len(loaded), len(exchanges))
	}
	for i, ex := range loaded {
		if ex.URL != exchanges[i].URL {
			t.Errorf("entry %d URL = %q, want %q", i, ex.URL, exchanges[i].URL)
		}
		if string(ex.Body) != string(exchanges[i].Body) {
			t.Errorf("entry %d body = %q, want %q", i, ex.Body, exchanges[i].Body)
		}
	}
}

func TestLoadHARPlainTextBody(t *testing.T) {
	// Captures written by other tools carry bodies as plain text with no
	// encoding field.
	raw := `{"log":{"version":"1.2","entries":[{
		"request":{"method":"GET","url":"https://search.costco.com/api"},
		"response":{"status":200,"content":{"mimeType":"application/json","text":"{\"ok\":true}"}}
	}]}}`
	path := filepath.Join(t.TempDir(), "plain.har")
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadHAR(path)
	if err != nil {
		t.Fatalf("LoadHAR: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("entries = %d, want 1", len(loaded))
	}
	if string(loaded[0].Body) != `{"ok":true}` {
		t.Errorf("body = %q", loaded[0].Body)
	}
}

func TestLoadHARMissingFile(t *testing.T) {
	if _, err := LoadHAR(filepath.Join(t.TempDir(), "nope.har")); err == nil {
		t.Error("want error for missing capture file")
	}
}

func TestExchangeIsJSON(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"application/json", true},
		{"application/json;charset=utf-8", true},
		{"Application/JSON", true},
		{"text/html", false},
		{"", false},
	}
	for _, tt := range tests {
		ex := Exchange{ContentType: tt.contentType}
		if got := ex.IsJSON(); got != tt.want {
			t.Errorf("IsJSON(%q) = %v, want %v", tt.contentType, got, tt.want)
		}
	}
}
