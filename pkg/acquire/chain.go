// Package acquire implements the signal-acquisition chain: an ordered list of
// named strategies, each attempting to produce structured stock data, tried
// strictly in sequence until one succeeds.
package acquire

import (
	"context"
	"log/slog"

	"github.com/bullionwatch/pmalert/models"
	"github.com/bullionwatch/pmalert/pkg/browse"
)

// Result is what one strategy produced: a structured payload (strategies 1-3)
// or scraped DOM tiles (strategy 4). Exactly one side is populated.
type Result struct {
	Payload *models.SearchPayload
	Tiles   []models.Tile
	Source  string
}

// Empty reports whether the result carries no usable signal.
func (r *Result) Empty() bool {
	return r == nil || (r.Payload == nil && len(r.Tiles) == 0)
}

// Strategy is one acquisition capability. Attempt returns a nil result when
// the source produced nothing; an error means the attempt itself failed.
// Either way the dispatcher falls through to the next strategy.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, s browse.Session) (*Result, error)
}

// Chain dispatches strategies in order and stops at the first success.
type Chain struct {
	strategies []Strategy
	logger     *slog.Logger
}

// NewChain assembles the standard four-step chain for the given config.
func NewChain(cfg *models.Config, logger *slog.Logger) *Chain {
	return &Chain{
		strategies: []Strategy{
			&PassiveCapture{},
			&HARMine{Path: cfg.Paths.HARFile},
			NewActiveRequest(cfg.Browser),
			&DOMScrape{},
		},
		logger: logger,
	}
}

// Run tries each strategy in order. Returns nil when every source is
// exhausted; the run then degrades to the inconclusive/heuristic path.
func (c *Chain) Run(ctx context.Context, session browse.Session) *Result {
	for _, strat := range c.strategies {
		result, err := strat.Attempt(ctx, session)
		if err != nil {
			c.logger.Warn("acquisition strategy failed",
				"strategy", strat.Name(), "error", err)
			continue
		}
		if result.Empty() {
			c.logger.Debug("acquisition strategy produced nothing",
				"strategy", strat.Name())
			continue
		}
		result.Source = strat.Name()
		if result.Payload != nil {
			c.logger.Info("structured payload acquired",
				"strategy", strat.Name(), "docs", len(result.Payload.Response.Docs))
		} else {
			c.logger.Info("tiles scraped",
				"strategy", strat.Name(), "tiles", len(result.Tiles))
		}
		return result
	}
	c.logger.Warn("all acquisition strategies exhausted")
	return nil
}
