package decide

import (
	"testing"

	"github.com/bullionwatch/pmalert/models"
)

func summaryWith(goldIn, goldOut int) *models.StockSummary {
	s := models.NewStockSummary()
	s.TotalItems = goldIn + goldOut
	s.Counts[models.CategoryGold] = goldIn + goldOut
	s.Stock[models.CategoryGold] = models.CategoryStock{InStock: goldIn, OutOfStock: goldOut}
	return s
}

func TestEvaluateWithSummary(t *testing.T) {
	tests := []struct {
		name           string
		summary        *models.StockSummary
		cfg            models.CheckConfig
		wantVerdict    models.Verdict
		wantShouldPost bool
	}{
		{
			name:           "availability always posts",
			summary:        summaryWith(1, 1),
			cfg:            models.CheckConfig{},
			wantVerdict:    models.VerdictInStock,
			wantShouldPost: true,
		},
		{
			name:           "out of stock silent by default",
			summary:        summaryWith(0, 2),
			cfg:            models.CheckConfig{},
			wantVerdict:    models.VerdictOutOfStock,
			wantShouldPost: false,
		},
		{
			name:           "out of stock posts with status updates enabled",
			summary:        summaryWith(0, 2),
			cfg:            models.CheckConfig{PostStatusUpdates: true},
			wantVerdict:    models.VerdictOutOfStock,
			wantShouldPost: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(tt.summary, "irrelevant page text", tt.cfg)
			if d.Verdict != tt.wantVerdict {
				t.Errorf("Verdict = %s, want %s", d.Verdict, tt.wantVerdict)
			}
			if d.ShouldPost != tt.wantShouldPost {
				t.Errorf("ShouldPost = %v, want %v", d.ShouldPost, tt.wantShouldPost)
			}
		})
	}
}

func TestEvaluateBlockedPageShortCircuits(t *testing.T) {
	// Scenario C: a blocked page must go straight to inconclusive even though
	// the block text itself contains in-stock vocabulary lookalikes.
	text := "Your request was blocked. Products may be available later."
	d := Evaluate(nil, text, models.CheckConfig{})
	if d.Verdict != models.VerdictInconclusive {
		t.Errorf("Verdict = %s, want inconclusive", d.Verdict)
	}
	if d.ShouldPost {
		t.Error("blocked page must not post by default")
	}
}

func TestEvaluateHeuristicPath(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		cfg         models.CheckConfig
		wantVerdict models.Verdict
		wantPost    bool
	}{
		{
			name:        "in-stock vocabulary",
			text:        "1 oz Gold Bar - Available for purchase",
			wantVerdict: models.VerdictInStock,
			wantPost:    true,
		},
		{
			name:        "out-of-stock phrase",
			text:        "Everything here is Out of Stock today",
			wantVerdict: models.VerdictOutOfStock,
			wantPost:    false,
		},
		{
			name:        "empty page text",
			text:        "   ",
			wantVerdict: models.VerdictInconclusive,
			wantPost:    false,
		},
		{
			name:        "no signal at all",
			text:        "Welcome to the warehouse.",
			wantVerdict: models.VerdictInconclusive,
			wantPost:    false,
		},
		{
			name:        "keyword filter rejects availability",
			text:        "Gold bar available now",
			cfg:         models.CheckConfig{Keywords: []string{"silver"}},
			wantVerdict: models.VerdictInconclusive,
			wantPost:    false,
		},
		{
			name:        "keyword filter accepts availability",
			text:        "Silver coin available now",
			cfg:         models.CheckConfig{Keywords: []string{"silver"}},
			wantVerdict: models.VerdictInStock,
			wantPost:    true,
		},
		{
			name: "inconclusive posts when both flags set",
			text: "Welcome to the warehouse.",
			cfg: models.CheckConfig{
				PostStatusUpdates:          true,
				AlwaysPostWhenInconclusive: true,
			},
			wantVerdict: models.VerdictInconclusive,
			wantPost:    true,
		},
		{
			name:        "inconclusive silent with only status updates",
			text:        "Welcome to the warehouse.",
			cfg:         models.CheckConfig{PostStatusUpdates: true},
			wantVerdict: models.VerdictInconclusive,
			wantPost:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(nil, tt.text, tt.cfg)
			if d.Verdict != tt.wantVerdict {
				t.Errorf("Verdict = %s, want %s", d.Verdict, tt.wantVerdict)
			}
			if d.ShouldPost != tt.wantPost {
				t.Errorf("ShouldPost = %v, want %v", d.ShouldPost, tt.wantPost)
			}
		})
	}
}

func TestSelfTestTrigger(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantFire bool
	}{
		{"out of stock marker", "Gold bar is Out Of Stock", true},
		{"empty fetch simulates trigger", "", true},
		{"whitespace-only fetch", "  \n ", true},
		{"healthy page does not trigger", "Gold bar available", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, fired := SelfTestTrigger(tt.text)
			if fired != tt.wantFire {
				t.Errorf("fired = %v, want %v", fired, tt.wantFire)
			}
			if fired && reason == "" {
				t.Error("triggered self-test must carry a reason")
			}
		})
	}
}
