package models

import (
	"fmt"
	"sort"
	"strings"
)

// Category labels used by the normalizer. Classification is a pure function
// of the record's text fields; anything that is not gold or silver is "other".
const (
	CategoryGold   = "gold"
	CategorySilver = "silver"
	CategoryOther  = "other"
)

// Categories lists all labels in display order.
var Categories = []string{CategoryGold, CategorySilver, CategoryOther}

// CategoryStock is the in/out tally for one category.
type CategoryStock struct {
	InStock    int `json:"in_stock"`
	OutOfStock int `json:"out_of_stock"`
}

// StockSummary is the canonical normalized result of one inspection pass.
// It is built fresh each run and never mutated after construction.
type StockSummary struct {
	TotalItems int                      `json:"total_items"`
	Counts     map[string]int           `json:"counts_by_category"`
	Stock      map[string]CategoryStock `json:"stock_by_category"`
	// InStockIDs holds identifiers of in-stock items when the source payload
	// carried them; empty on the DOM-scrape path.
	InStockIDs []string `json:"in_stock_ids,omitempty"`
}

// NewStockSummary returns a summary with all categories zeroed.
func NewStockSummary() *StockSummary {
	s := &StockSummary{
		Counts: make(map[string]int, len(Categories)),
		Stock:  make(map[string]CategoryStock, len(Categories)),
	}
	for _, c := range Categories {
		s.Counts[c] = 0
		s.Stock[c] = CategoryStock{}
	}
	return s
}

// HasAvailability reports whether any category has at least one in-stock item.
func (s *StockSummary) HasAvailability() bool {
	if s == nil {
		return false
	}
	for _, st := range s.Stock {
		if st.InStock > 0 {
			return true
		}
	}
	return false
}

// InStockIdentifiers returns the change-detection key set for this summary:
// the true item identifiers when present, otherwise a synthetic signature
// derived from the per-category in-stock counts.
func (s *StockSummary) InStockIdentifiers() []string {
	if s == nil {
		return nil
	}
	if len(s.InStockIDs) > 0 {
		ids := make([]string, len(s.InStockIDs))
		copy(ids, s.InStockIDs)
		sort.Strings(ids)
		return ids
	}
	parts := make([]string, 0, len(Categories))
	for _, c := range Categories {
		parts = append(parts, fmt.Sprintf("%s=%d", c, s.Stock[c].InStock))
	}
	return []string{"sig:" + strings.Join(parts, ";")}
}

// CountsLine renders the per-category tallies for the post body,
// e.g. "Gold 2/5 in stock | Silver 0/3 | Other 0/1".
func (s *StockSummary) CountsLine() string {
	if s == nil {
		return ""
	}
	parts := make([]string, 0, len(Categories))
	for _, c := range Categories {
		st := s.Stock[c]
		label := strings.ToUpper(c[:1]) + c[1:]
		parts = append(parts, fmt.Sprintf("%s %d/%d in stock", label, st.InStock, s.Counts[c]))
	}
	return strings.Join(parts, " | ")
}

// Tile is one scraped product tile from the rendered page grid.
type Tile struct {
	Text     string
	Category string
	InStock  bool
}

// Verdict is the terminal state of one inspection run.
type Verdict string

const (
	VerdictInStock      Verdict = "in_stock"
	VerdictOutOfStock   Verdict = "out_of_stock"
	VerdictInconclusive Verdict = "inconclusive"
)

// FacetKind tags a clickable span within a post.
type FacetKind string

const (
	FacetTag  FacetKind = "tag"
	FacetLink FacetKind = "link"
)

// Facet marks a byte-offset span over the UTF-8 encoding of the post text.
type Facet struct {
	Kind      FacetKind
	ByteStart int
	ByteEnd   int
	// Value is the hashtag text (without '#') or the link URI.
	Value string
}

// AlertMessage is the composed post: text plus optional image and facets.
type AlertMessage struct {
	Text   string
	Facets []Facet
	// Image is an optional screenshot attachment; nil when unavailable.
	Image    []byte
	ImageAlt string
}
