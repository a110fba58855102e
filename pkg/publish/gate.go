package publish

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bullionwatch/pmalert/models"
	"github.com/bullionwatch/pmalert/pkg/gatestate"
)

// Gate always attempts the primary destination and conditionally attempts
// the secondary one, subject to the monthly cap, the cooldown interval, and
// change detection against the persisted state. Failures are independent per
// destination and never abort the run.
type Gate struct {
	Primary   Poster
	Secondary Poster // nil disables the secondary destination
	Store     *gatestate.Store
	X         models.XConfig
	DryRun    bool
	Logger    *slog.Logger
	Now       func() time.Time
}

// Outcome reports what the gate did with one message.
type Outcome struct {
	PrimaryErr         error
	SecondaryAttempted bool
	SecondaryErr       error
	// SkipReason is set when the secondary destination was not attempted.
	SkipReason string
}

// Publish runs both destinations. The summary supplies the in-stock
// identifier set for change detection; it may be nil on heuristic runs.
func (g *Gate) Publish(ctx context.Context, msg models.AlertMessage, summary *models.StockSummary) Outcome {
	var out Outcome

	out.PrimaryErr = g.post(ctx, g.Primary, msg)
	if out.PrimaryErr != nil {
		g.Logger.Error("primary publish failed",
			"destination", g.Primary.Name(), "error", out.PrimaryErr)
	} else {
		g.Logger.Info("published", "destination", g.Primary.Name(), "dry_run", g.DryRun)
	}

	if g.Secondary == nil {
		out.SkipReason = "secondary destination disabled"
		return out
	}

	now := g.Now()
	state, err := g.Store.Load()
	if err != nil {
		g.Logger.Warn("gate state unreadable, using empty state", "error", err)
	}

	ids := summary.InStockIdentifiers()
	ok, reason := CanPostSecondary(state, g.X, now, ids)
	if !ok {
		out.SkipReason = reason
		g.Logger.Info("secondary publish suppressed", "reason", reason)
		return out
	}

	out.SecondaryAttempted = true
	out.SecondaryErr = g.post(ctx, g.Secondary, msg)
	if out.SecondaryErr != nil {
		g.Logger.Error("secondary publish failed",
			"destination", g.Secondary.Name(), "error", out.SecondaryErr)
		return out
	}
	g.Logger.Info("published", "destination", g.Secondary.Name(), "dry_run", g.DryRun)

	// Dry runs must not consume quota or move the change-detection baseline.
	if g.DryRun {
		return out
	}

	state.RecordPost(now, ids)
	if err := g.Store.Save(state, now); err != nil {
		// Best-effort persistence: worst case is one duplicate secondary
		// post next run.
		g.Logger.Error("failed to persist gate state", "error", err)
	}
	return out
}

// CanPostSecondary evaluates the gate conditions in order: monthly cap,
// cooldown, then change detection.
func CanPostSecondary(state *models.GateState, cfg models.XConfig, now time.Time, inStockIDs []string) (bool, string) {
	if usage := state.UsageFor(now); usage >= cfg.MonthlyCap {
		return false, fmt.Sprintf("month cap reached (%d/%d)", usage, cfg.MonthlyCap)
	}
	if state.LastPostUnix > 0 {
		elapsed := now.Unix() - state.LastPostUnix
		if elapsed < int64(cfg.CooldownSeconds) {
			return false, fmt.Sprintf("cooldown active (%ds of %ds elapsed)", elapsed, cfg.CooldownSeconds)
		}
	}
	// Change detection only applies once something has actually been posted;
	// a never-posted state must not match an empty heuristic identifier set.
	if state.LastPostUnix > 0 && state.SameInStock(inStockIDs) {
		return false, "in-stock set unchanged since last post"
	}
	return true, ""
}

func (g *Gate) post(ctx context.Context, dest Poster, msg models.AlertMessage) error {
	if g.DryRun {
		g.Logger.Info("dry-run: would post",
			"destination", dest.Name(), "text", msg.Text)
		return nil
	}
	return dest.Post(ctx, msg)
}
