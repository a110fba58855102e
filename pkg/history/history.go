// Package history records each inspection run in a small SQLite database so
// past verdicts can be inspected without digging through artifacts.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	started_at INTEGER NOT NULL,
	verdict TEXT NOT NULL,
	source TEXT NOT NULL DEFAULT '',
	total_items INTEGER NOT NULL DEFAULT 0,
	gold_in_stock INTEGER NOT NULL DEFAULT 0,
	silver_in_stock INTEGER NOT NULL DEFAULT 0,
	other_in_stock INTEGER NOT NULL DEFAULT 0,
	posted_primary INTEGER NOT NULL DEFAULT 0,
	posted_secondary INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// Run is one recorded inspection run.
type Run struct {
	RunID           string
	StartedAt       time.Time
	Verdict         string
	Source          string
	TotalItems      int
	GoldInStock     int
	SilverInStock   int
	OtherInStock    int
	PostedPrimary   bool
	PostedSecondary bool
	Error           string
}

// DB wraps the run-history database.
type DB struct {
	*sql.DB
}

// Open opens or creates the history database and ensures the schema exists.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return &DB{DB: sqlDB}, nil
}

// Record inserts one run row.
func (db *DB) Record(run Run) error {
	_, err := db.Exec(`
		INSERT INTO runs (run_id, started_at, verdict, source, total_items,
			gold_in_stock, silver_in_stock, other_in_stock,
			posted_primary, posted_secondary, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.RunID, run.StartedAt.Unix(), run.Verdict, run.Source, run.TotalItems,
		run.GoldInStock, run.SilverInStock, run.OtherInStock,
		boolInt(run.PostedPrimary), boolInt(run.PostedSecondary), run.Error)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// Recent returns the most recent runs, newest first.
func (db *DB) Recent(limit int) ([]Run, error) {
	rows, err := db.Query(`
		SELECT run_id, started_at, verdict, source, total_items,
			gold_in_stock, silver_in_stock, other_in_stock,
			posted_primary, posted_secondary, error
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var startedAt int64
		var postedPrimary, postedSecondary int
		if err := rows.Scan(&r.RunID, &startedAt, &r.Verdict, &r.Source, &r.TotalItems,
			&r.GoldInStock, &r.SilverInStock, &r.OtherInStock,
			&postedPrimary, &postedSecondary, &r.Error); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = time.Unix(startedAt, 0).UTC()
		r.PostedPrimary = postedPrimary != 0
		r.PostedSecondary = postedSecondary != 0
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
