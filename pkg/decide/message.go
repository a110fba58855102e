package decide

import (
	"fmt"
	"strings"
	"time"

	"github.com/bullionwatch/pmalert/models"
)

// hashtags is the fixed tag set appended to every post.
var hashtags = []string{"Costco", "Gold", "Silver", "PreciousMetals"}

// zoneSpec names the civil time zones rendered on the timestamp line.
var zoneSpec = []struct {
	label string
	name  string
}{
	{"ET", "America/New_York"},
	{"PT", "America/Los_Angeles"},
	{"UTC", "UTC"},
}

// Compose builds the post for a verdict: headline, multi-zone timestamp,
// counts line when a summary exists, the source URL, and the hashtag set.
func Compose(verdict models.Verdict, summary *models.StockSummary, now time.Time, cfg models.CheckConfig) models.AlertMessage {
	var lines []string

	switch verdict {
	case models.VerdictInStock:
		lines = append(lines, fmt.Sprintf("%s Costco precious metals are showing availability!", cfg.PostPrefix))
	case models.VerdictOutOfStock:
		lines = append(lines, "Costco precious metals status: everything out of stock right now.")
	default:
		lines = append(lines, "Costco precious metals status: could not be determined this check.")
	}

	lines = append(lines, "Checked "+timestampLine(now))
	if summary != nil {
		lines = append(lines, summary.CountsLine())
	}
	lines = append(lines, models.TargetURL)
	lines = append(lines, tagLine())

	text := strings.Join(lines, "\n")
	return models.AlertMessage{
		Text:   text,
		Facets: Facets(text),
	}
}

// ComposeSelfTest builds the pipeline-validation post.
func ComposeSelfTest(reason string, cfg models.CheckConfig) models.AlertMessage {
	text := fmt.Sprintf("%s Costco page test: %s.\n%s", cfg.TestPrefix, reason, models.TargetURL)
	return models.AlertMessage{Text: text, Facets: Facets(text)}
}

// timestampLine renders now in each configured zone, e.g.
// "2024-05-01 15:04 ET / 12:04 PT / 19:04 UTC".
func timestampLine(now time.Time) string {
	parts := make([]string, 0, len(zoneSpec))
	for i, z := range zoneSpec {
		loc, err := time.LoadLocation(z.name)
		if err != nil {
			loc = time.UTC
		}
		t := now.In(loc)
		if i == 0 {
			parts = append(parts, fmt.Sprintf("%s %s", t.Format("2006-01-02 15:04"), z.label))
		} else {
			parts = append(parts, fmt.Sprintf("%s %s", t.Format("15:04"), z.label))
		}
	}
	return strings.Join(parts, " / ")
}

func tagLine() string {
	tags := make([]string, len(hashtags))
	for i, t := range hashtags {
		tags[i] = "#" + t
	}
	return strings.Join(tags, " ")
}

// Facets locates the hashtags and the source URL within text and returns
// byte-offset spans over its UTF-8 encoding, for clickable rendering.
func Facets(text string) []models.Facet {
	var facets []models.Facet

	for _, tag := range hashtags {
		needle := "#" + tag
		if start := strings.Index(text, needle); start >= 0 {
			facets = append(facets, models.Facet{
				Kind:      models.FacetTag,
				ByteStart: start,
				ByteEnd:   start + len(needle),
				Value:     tag,
			})
		}
	}

	if start := strings.Index(text, models.TargetURL); start >= 0 {
		facets = append(facets, models.Facet{
			Kind:      models.FacetLink,
			ByteStart: start,
			ByteEnd:   start + len(models.TargetURL),
			Value:     models.TargetURL,
		})
	}
	return facets
}
