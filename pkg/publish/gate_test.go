package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bullionwatch/pmalert/models"
	"github.com/bullionwatch/pmalert/pkg/gatestate"
)

type fakePoster struct {
	name  string
	err   error
	calls int
}

func (f *fakePoster) Name() string { return f.name }

func (f *fakePoster) Post(ctx context.Context, msg models.AlertMessage) error {
	f.calls++
	return f.err
}

func testGate(t *testing.T, primary, secondary *fakePoster) (*Gate, *gatestate.Store) {
	t.Helper()
	store := &gatestate.Store{Path: filepath.Join(t.TempDir(), "state.json")}
	gate := &Gate{
		Primary: primary,
		Store:   store,
		X:       models.XConfig{MonthlyCap: 450, CooldownSeconds: 3600},
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:     time.Now,
	}
	if secondary != nil {
		gate.Secondary = secondary
	}
	return gate, store
}

func inStockSummary(ids ...string) *models.StockSummary {
	s := models.NewStockSummary()
	s.TotalItems = len(ids)
	s.Counts[models.CategoryGold] = len(ids)
	s.Stock[models.CategoryGold] = models.CategoryStock{InStock: len(ids)}
	s.InStockIDs = ids
	return s
}

func TestGatePrimaryAlwaysAttempted(t *testing.T) {
	primary := &fakePoster{name: "bluesky"}
	gate, _ := testGate(t, primary, nil)

	out := gate.Publish(context.Background(), models.AlertMessage{Text: "hi"}, inStockSummary("1"))
	if primary.calls != 1 {
		t.Errorf("primary calls = %d, want 1", primary.calls)
	}
	if out.PrimaryErr != nil {
		t.Errorf("PrimaryErr = %v", out.PrimaryErr)
	}
	if out.SecondaryAttempted {
		t.Error("secondary attempted with no secondary destination")
	}
}

func TestGatePrimaryFailureDoesNotBlockSecondary(t *testing.T) {
	primary := &fakePoster{name: "bluesky", err: errors.New("boom")}
	secondary := &fakePoster{name: "x"}
	gate, _ := testGate(t, primary, secondary)

	out := gate.Publish(context.Background(), models.AlertMessage{Text: "hi"}, inStockSummary("1"))
	if out.PrimaryErr == nil {
		t.Error("want primary error")
	}
	if secondary.calls != 1 {
		t.Errorf("secondary calls = %d, want 1", secondary.calls)
	}
	if out.SecondaryErr != nil {
		t.Errorf("SecondaryErr = %v", out.SecondaryErr)
	}
}

func TestGateCooldownSuppression(t *testing.T) {
	secondary := &fakePoster{name: "x"}
	gate, _ := testGate(t, &fakePoster{name: "bluesky"}, secondary)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	gate.Now = func() time.Time { return base }
	gate.Publish(context.Background(), models.AlertMessage{Text: "a"}, inStockSummary("1"))
	if secondary.calls != 1 {
		t.Fatalf("first publish: secondary calls = %d, want 1", secondary.calls)
	}

	// Within the cooldown window, even a changed identifier set is suppressed.
	gate.Now = func() time.Time { return base.Add(10 * time.Minute) }
	out := gate.Publish(context.Background(), models.AlertMessage{Text: "b"}, inStockSummary("2"))
	if secondary.calls != 1 {
		t.Errorf("secondary calls = %d, want still 1", secondary.calls)
	}
	if out.SkipReason == "" {
		t.Error("want a skip reason for the cooldown suppression")
	}
}

func TestGateChangeDetectionSuppression(t *testing.T) {
	secondary := &fakePoster{name: "x"}
	gate, _ := testGate(t, &fakePoster{name: "bluesky"}, secondary)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	gate.Now = func() time.Time { return base }
	gate.Publish(context.Background(), models.AlertMessage{Text: "a"}, inStockSummary("1", "2"))

	// Cooldown long elapsed, identifiers identical: still suppressed.
	gate.Now = func() time.Time { return base.Add(48 * time.Hour) }
	gate.Publish(context.Background(), models.AlertMessage{Text: "b"}, inStockSummary("2", "1"))
	if secondary.calls != 1 {
		t.Errorf("secondary calls = %d, want 1 (unchanged set must suppress)", secondary.calls)
	}

	// A genuinely different set goes through.
	gate.Publish(context.Background(), models.AlertMessage{Text: "c"}, inStockSummary("3"))
	if secondary.calls != 2 {
		t.Errorf("secondary calls = %d, want 2", secondary.calls)
	}
}

func TestGateFirstHeuristicPostAllowed(t *testing.T) {
	// A heuristic run carries no summary, so the identifier set is empty.
	// Against a never-posted state that must not count as "unchanged".
	secondary := &fakePoster{name: "x"}
	gate, _ := testGate(t, &fakePoster{name: "bluesky"}, secondary)

	out := gate.Publish(context.Background(), models.AlertMessage{Text: "heuristic"}, nil)
	if !out.SecondaryAttempted || secondary.calls != 1 {
		t.Errorf("secondary attempted = %v calls = %d, want first post to go through (skip: %q)",
			out.SecondaryAttempted, secondary.calls, out.SkipReason)
	}

	// Once posted, an identical (still empty) set is suppressed as unchanged.
	gate.Now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	out = gate.Publish(context.Background(), models.AlertMessage{Text: "heuristic"}, nil)
	if out.SecondaryAttempted {
		t.Errorf("second identical heuristic post attempted, want suppression (skip: %q)", out.SkipReason)
	}
}

func TestGateMonthlyCapAndMonotonicity(t *testing.T) {
	secondary := &fakePoster{name: "x"}
	gate, store := testGate(t, &fakePoster{name: "bluesky"}, secondary)
	gate.X.MonthlyCap = 3
	gate.X.CooldownSeconds = 0

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	var lastUsage int
	for i := 0; i < 5; i++ {
		offset := time.Duration(i) * time.Hour
		gate.Now = func() time.Time { return base.Add(offset) }
		gate.Publish(context.Background(), models.AlertMessage{Text: "t"}, inStockSummary(fmt.Sprintf("id-%d", i)))

		state, err := store.Load()
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		usage := state.UsageFor(base)
		if i < 3 && usage != lastUsage+1 {
			t.Errorf("publish %d: usage = %d, want strictly increasing from %d", i, usage, lastUsage)
		}
		lastUsage = usage
	}
	if lastUsage != 3 {
		t.Errorf("final month usage = %d, want capped at 3", lastUsage)
	}
	if secondary.calls != 3 {
		t.Errorf("secondary calls = %d, want 3", secondary.calls)
	}
}

func TestCanPostSecondaryCapReached(t *testing.T) {
	// Scenario D: usage already at the cap suppresses regardless of the
	// other conditions.
	state := models.NewGateState()
	state.MonthUsage["2024-05"] = 450

	now := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)
	cfg := models.XConfig{MonthlyCap: 450, CooldownSeconds: 0}
	ok, reason := CanPostSecondary(state, cfg, now, []string{"brand-new-id"})
	if ok {
		t.Fatal("want suppression at cap")
	}
	if want := "month cap reached"; !strings.Contains(reason, want) {
		t.Errorf("reason = %q, want it to mention %q", reason, want)
	}
}

func TestGateDryRunDoesNotMutateState(t *testing.T) {
	secondary := &fakePoster{name: "x"}
	gate, store := testGate(t, &fakePoster{name: "bluesky"}, secondary)
	gate.DryRun = true

	gate.Publish(context.Background(), models.AlertMessage{Text: "t"}, inStockSummary("1"))
	if secondary.calls != 0 {
		t.Errorf("dry run must not hit the destination, calls = %d", secondary.calls)
	}

	state, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(state.MonthUsage) != 0 || state.LastPostUnix != 0 {
		t.Errorf("dry run mutated state: %+v", state)
	}
}
