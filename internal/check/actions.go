// Package check orchestrates one inspection run: session, acquisition chain,
// normalizer, decision policy, publish gate, and the diagnostic artifacts.
package check

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/bullionwatch/pmalert/models"
	"github.com/bullionwatch/pmalert/pkg/acquire"
	"github.com/bullionwatch/pmalert/pkg/artifacts"
	"github.com/bullionwatch/pmalert/pkg/browse"
	"github.com/bullionwatch/pmalert/pkg/decide"
	"github.com/bullionwatch/pmalert/pkg/gatestate"
	"github.com/bullionwatch/pmalert/pkg/history"
	"github.com/bullionwatch/pmalert/pkg/normalize"
	"github.com/bullionwatch/pmalert/pkg/publish"
)

// Process exit codes.
const (
	ExitAlert      = 0 // alert condition met; posted or dry-run would post
	ExitNoAlert    = 1 // no alert condition
	ExitFetchError = 2 // configuration or fetch error
	ExitPostFailed = 3 // alert warranted but the primary publish failed
)

// CheckAction runs one inspection pass and exits with the legacy code set.
func CheckAction(c *cli.Context) error {
	return runAction(c, false)
}

// SelfTestAction runs one pass with the pipeline self-test forced on,
// regardless of the TEST_OOS environment setting.
func SelfTestAction(c *cli.Context) error {
	return runAction(c, true)
}

func runAction(c *cli.Context, forceSelfTest bool) error {
	logger := newLogger(c.Bool("quiet"))

	cfg, err := models.LoadConfig()
	if err != nil {
		logger.Error("configuration error", "error", err)
		return cli.Exit("", ExitFetchError)
	}
	applyFlags(c, cfg)
	if forceSelfTest {
		cfg.Check.SelfTest = true
	}

	code := run(c.Context, cfg, logger, browse.New(cfg.Browser))
	if code == 0 {
		return nil
	}
	return cli.Exit("", code)
}

func run(ctx context.Context, cfg *models.Config, logger *slog.Logger, session browse.Session) int {
	now := time.Now()
	runID := strings.Split(uuid.NewString(), "-")[0]
	logger = logger.With("run_id", runID)
	logger.Info("starting inspection run", "url", models.TargetURL, "dry_run", cfg.Check.DryRun)

	writer := artifacts.NewWriter(cfg.Paths.ArtifactDir, runID, now, logger)

	defer session.Close()

	navErr := session.Navigate(ctx)
	if navErr != nil {
		// Navigation failure is recoverable: the HAR miner and the active
		// re-request can still produce a payload.
		logger.Warn("page navigation failed", "error", navErr)
	}

	pageText := session.BodyText()
	writer.SaveBytes("page.html", []byte(session.HTML()))
	writer.SaveBytes("page.txt", []byte(pageText))

	gate := buildGate(cfg, logger)

	// Pipeline self-test short-circuits the normal check when triggered.
	if cfg.Check.SelfTest {
		if reason, ok := decide.SelfTestTrigger(pageText); ok {
			logger.Info("self-test triggered", "reason", reason)
			msg := decide.ComposeSelfTest(reason, cfg.Check)
			outcome := gate.Publish(ctx, msg, nil)
			if outcome.PrimaryErr != nil {
				return ExitPostFailed
			}
			return ExitAlert
		}
		logger.Info("self-test not triggered, continuing with normal check")
	}

	chain := acquire.NewChain(cfg, logger)
	result := chain.Run(ctx, session)
	writer.SaveCapture(session.Captured(), now)

	var summary *models.StockSummary
	var source string
	if !result.Empty() {
		source = result.Source
		if result.Payload != nil {
			writer.SavePayload(result.Payload)
			summary = normalize.FromPayload(result.Payload)
		} else {
			summary = normalize.FromTiles(result.Tiles)
		}
	}

	// A failed navigation with no fallback signal is still a fetch error for
	// the exit code, but the run first flows through the decision policy so
	// the inconclusive status update can go out when the flags allow it.
	fetchFailed := summary == nil && navErr != nil && strings.TrimSpace(pageText) == ""
	if fetchFailed {
		logger.Error("failed to load page and no fallback source produced signal", "error", navErr)
	}

	decision := decide.Evaluate(summary, pageText, cfg.Check)
	logger.Info("decision reached",
		"verdict", decision.Verdict, "should_post", decision.ShouldPost, "reason", decision.Reason)

	runRow := history.Run{
		RunID:     runID,
		StartedAt: now,
		Verdict:   string(decision.Verdict),
		Source:    source,
	}
	if summary != nil {
		runRow.TotalItems = summary.TotalItems
		runRow.GoldInStock = summary.Stock[models.CategoryGold].InStock
		runRow.SilverInStock = summary.Stock[models.CategorySilver].InStock
		runRow.OtherInStock = summary.Stock[models.CategoryOther].InStock
	}
	if fetchFailed {
		runRow.Error = navErr.Error()
	}

	if !decision.ShouldPost {
		logger.Info("no post warranted")
		recordRun(cfg, logger, runRow)
		writer.SaveSummary(runSummary(runID, now, decision, source, summary, false, cfg.Check.DryRun, ""))
		if fetchFailed {
			return ExitFetchError
		}
		return ExitNoAlert
	}

	msg := decide.Compose(decision.Verdict, summary, now, cfg.Check)
	if shot, err := session.Screenshot(ctx); err == nil && len(shot) > 0 {
		writer.SaveBytes("page.png", shot)
		msg.Image = shot
		msg.ImageAlt = "Costco precious metals listing page"
	}

	outcome := gate.Publish(ctx, msg, summary)
	runRow.PostedPrimary = outcome.PrimaryErr == nil
	runRow.PostedSecondary = outcome.SecondaryAttempted && outcome.SecondaryErr == nil
	recordRun(cfg, logger, runRow)
	writer.SaveSummary(runSummary(runID, now, decision, source, summary,
		runRow.PostedPrimary, cfg.Check.DryRun, errString(outcome.PrimaryErr)))

	// The fetch-error code wins over the publish outcome: the status update
	// went out, but the run still failed to inspect the page.
	if fetchFailed {
		return ExitFetchError
	}
	// Secondary failures never change the exit status; the primary
	// destination is the one this process exists to reach.
	if outcome.PrimaryErr != nil {
		return ExitPostFailed
	}
	return ExitAlert
}

// HistoryAction prints the most recent recorded runs.
func HistoryAction(c *cli.Context) error {
	logger := newLogger(c.Bool("quiet"))

	cfg, err := models.LoadConfig()
	if err != nil {
		logger.Error("configuration error", "error", err)
		return cli.Exit("", ExitFetchError)
	}

	db, err := history.Open(cfg.Paths.HistoryDB)
	if err != nil {
		logger.Error("failed to open history", "error", err)
		return cli.Exit("", ExitFetchError)
	}
	defer db.Close()

	runs, err := db.Recent(c.Int("limit"))
	if err != nil {
		logger.Error("failed to read history", "error", err)
		return cli.Exit("", ExitFetchError)
	}

	for _, r := range runs {
		fmt.Printf("%s  %s  %-12s  source=%-15s  total=%d  in-stock g/s/o=%d/%d/%d  posted=%v/%v  %s\n",
			r.RunID, r.StartedAt.Format(time.RFC3339), r.Verdict, r.Source,
			r.TotalItems, r.GoldInStock, r.SilverInStock, r.OtherInStock,
			r.PostedPrimary, r.PostedSecondary, r.Error)
	}
	return nil
}

func newLogger(quiet bool) *slog.Logger {
	level := slog.LevelInfo
	if quiet {
		level = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// applyFlags lets CLI flags override the environment-derived config.
func applyFlags(c *cli.Context, cfg *models.Config) {
	if c.IsSet("dry-run") {
		cfg.Check.DryRun = c.Bool("dry-run")
	}
	if c.IsSet("test-oos") {
		cfg.Check.SelfTest = c.Bool("test-oos")
	}
	if c.IsSet("post-status-updates") {
		cfg.Check.PostStatusUpdates = c.Bool("post-status-updates")
	}
	if c.IsSet("har") {
		cfg.Paths.HARFile = c.String("har")
	}
	if c.IsSet("engine") {
		cfg.Browser.Engine = c.String("engine")
	}
}

func buildGate(cfg *models.Config, logger *slog.Logger) *publish.Gate {
	gate := &publish.Gate{
		Primary: publish.NewBluesky(cfg.Bluesky, logger),
		Store:   &gatestate.Store{Path: cfg.Paths.StateFile},
		X:       cfg.X,
		DryRun:  cfg.Check.DryRun,
		Logger:  logger,
		Now:     time.Now,
	}
	if cfg.X.Enabled {
		gate.Secondary = publish.NewXClient(cfg.X, logger)
	}
	return gate
}

func recordRun(cfg *models.Config, logger *slog.Logger, run history.Run) {
	if cfg.Paths.HistoryDB == "" {
		return
	}
	db, err := history.Open(cfg.Paths.HistoryDB)
	if err != nil {
		logger.Warn("history unavailable", "error", err)
		return
	}
	defer db.Close()
	if err := db.Record(run); err != nil {
		logger.Warn("failed to record run", "error", err)
	}
}

func runSummary(runID string, now time.Time, decision decide.Decision, source string,
	summary *models.StockSummary, posted, dryRun bool, errMsg string) artifacts.RunSummary {
	rs := artifacts.RunSummary{
		RunID:     runID,
		Timestamp: now.UTC(),
		Verdict:   string(decision.Verdict),
		Source:    source,
		Reason:    decision.Reason,
		Posted:    posted,
		DryRun:    dryRun,
		Error:     errMsg,
	}
	if summary != nil {
		rs.Total = summary.TotalItems
		for _, st := range summary.Stock {
			rs.InStock += st.InStock
		}
	}
	return rs
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
