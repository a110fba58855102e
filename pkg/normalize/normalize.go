// Package normalize converts raw acquisition output (a structured payload or
// scraped DOM tiles) into the canonical StockSummary. Both entry points are
// pure functions and never fail: any classification ambiguity defaults to
// category "other" and out-of-stock.
package normalize

import (
	"strings"

	"github.com/bullionwatch/pmalert/models"
)

// inStockStatuses is the fixed set of accepted "available" spellings for the
// textual stock-status field. Matching is exact after lowercasing, not fuzzy.
var inStockStatuses = map[string]bool{
	"in stock":  true,
	"instock":   true,
	"available": true,
}

// FromPayload builds a summary from a structured search payload. Total item
// count comes from numFound, falling back to the doc count when the source
// omits it; sums per category always equal the number of docs.
func FromPayload(payload *models.SearchPayload) *models.StockSummary {
	summary := models.NewStockSummary()
	if payload == nil {
		return summary
	}

	docs := payload.Response.Docs
	summary.TotalItems = payload.Response.NumFound
	if summary.TotalItems == 0 {
		summary.TotalItems = len(docs)
	}

	for _, doc := range docs {
		category := classifyDoc(doc)
		summary.Counts[category]++

		stock := summary.Stock[category]
		if isInStock(doc) {
			stock.InStock++
			if id := doc.Identifier(); id != "" {
				summary.InStockIDs = append(summary.InStockIDs, id)
			}
		} else {
			stock.OutOfStock++
		}
		summary.Stock[category] = stock
	}
	return summary
}

// FromTiles builds a summary from scraped DOM tiles. Tiles carry no true
// identifiers, so InStockIDs stays empty and change detection falls back to
// the synthetic count signature.
func FromTiles(tiles []models.Tile) *models.StockSummary {
	summary := models.NewStockSummary()
	summary.TotalItems = len(tiles)
	for _, tile := range tiles {
		category := tile.Category
		if _, ok := summary.Counts[category]; !ok {
			category = models.CategoryOther
		}
		summary.Counts[category]++

		stock := summary.Stock[category]
		if tile.InStock {
			stock.InStock++
		} else {
			stock.OutOfStock++
		}
		summary.Stock[category] = stock
	}
	return summary
}

// ClassifyText maps free text onto a category label by case-insensitive
// substring match: gold, then silver, else other.
func ClassifyText(text string) string {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "gold"):
		return models.CategoryGold
	case strings.Contains(t, "silver"):
		return models.CategorySilver
	default:
		return models.CategoryOther
	}
}

// classifyDoc classifies a listing record from its text fields: metal-form
// descriptors first, then purity descriptors, then the display name.
func classifyDoc(doc models.Doc) string {
	fields := make([]string, 0, len(doc.MetalForm)+len(doc.Purity)+1)
	fields = append(fields, doc.MetalForm...)
	fields = append(fields, doc.Purity...)
	fields = append(fields, doc.Name)
	return ClassifyText(strings.Join(fields, " "))
}

// isInStock determines availability for one record. An explicit boolean field
// always wins; otherwise the status string is tested against the accepted
// spellings. Records with neither are out of stock.
func isInStock(doc models.Doc) bool {
	if doc.InStock != nil {
		return *doc.InStock
	}
	return inStockStatuses[strings.ToLower(strings.TrimSpace(doc.StockStatus))]
}
