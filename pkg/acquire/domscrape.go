package acquire

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/bullionwatch/pmalert/models"
	"github.com/bullionwatch/pmalert/pkg/browse"
	"github.com/bullionwatch/pmalert/pkg/normalize"
)

// tileSelectors is the union of product-tile patterns seen across revisions
// of the listing page markup. Any of them counting is good enough.
var tileSelectors = []string{
	`[data-testid^="Grid"] [data-testid^="Product"]`,
	`div[automation-id="productList"] .product`,
	".product-tile",
	".product-list .product",
	`[data-testid="ProductTile"]`,
}

// scrollCycles bounds how many scroll-nudge/re-parse rounds the scraper gives
// a lazily-loading grid before giving up.
const scrollCycles = 6

// DOMScrape is the weakest source: count rendered product tiles and infer
// per-tile stock state from visible text.
type DOMScrape struct{}

func (d *DOMScrape) Name() string { return "dom-scrape" }

func (d *DOMScrape) Attempt(ctx context.Context, s browse.Session) (*Result, error) {
	var tiles []models.Tile
	for cycle := 0; cycle < scrollCycles; cycle++ {
		// Nudge only between parses so the final scroll is always re-read.
		if cycle > 0 {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.NudgeScroll(ctx)
		}
		var err error
		tiles, err = scrapeTiles(s.HTML())
		if err != nil {
			return nil, err
		}
		if len(tiles) > 0 {
			break
		}
	}
	if len(tiles) == 0 {
		return nil, nil
	}
	return &Result{Tiles: tiles}, nil
}

func scrapeTiles(html string) ([]models.Tile, error) {
	if html == "" {
		return nil, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var tiles []models.Tile
	seen := make(map[string]bool)
	doc.Find(strings.Join(tileSelectors, ", ")).Each(func(i int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text == "" || seen[text] {
			return
		}
		seen[text] = true
		tiles = append(tiles, models.Tile{
			Text:     text,
			Category: normalize.ClassifyText(text),
			InStock:  tileInStock(text),
		})
	})
	return tiles, nil
}

// tileInStock infers availability from the tile's visible text: a price,
// an add-to-cart control, or an explicit in-stock phrase. An out-of-stock
// phrase on the tile overrides all of those.
func tileInStock(text string) bool {
	t := strings.ToLower(text)
	if strings.Contains(t, "out of stock") || strings.Contains(t, "sold out") {
		return false
	}
	return strings.Contains(t, "$") ||
		strings.Contains(t, "add to cart") ||
		strings.Contains(t, "in stock")
}
