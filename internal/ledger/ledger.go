// Package ledger keeps a SQLite history of what each synchronization run did
// to every title.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/qepting91/wikisync/internal/domain"
)

// Status values stored per event.
const (
	StatusSkipped  = "skipped"
	StatusFetched  = "fetched"
	StatusNotFound = "not_found"
	StatusFailed   = "failed"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS sync_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL REFERENCES runs(id),
	title TEXT NOT NULL,
	decision TEXT NOT NULL,
	status TEXT NOT NULL,
	error TEXT,
	revised_at TIMESTAMP NOT NULL,
	recorded_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sync_events_run ON sync_events(run_id)`

// Ledger appends sync events for one run. It implements synchronizer.Recorder.
type Ledger struct {
	db    *sql.DB
	runID string
	now   func() time.Time
}

// InitDB creates the ledger tables if they do not exist.
func InitDB(db *sql.DB) error {
	for _, s := range strings.Split(schemaSQL, ";") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("migrate ledger: %w", err)
		}
	}
	return nil
}

// Open opens (creating if needed) the ledger database at path.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	// one writer, and keeps :memory: databases on a single connection
	db.SetMaxOpenConns(1)
	if err := InitDB(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// StartRun registers a new run and returns a Ledger recording into it.
func StartRun(ctx context.Context, db *sql.DB) (*Ledger, error) {
	l := &Ledger{db: db, runID: uuid.NewString(), now: time.Now}
	if _, err := db.ExecContext(ctx, `INSERT INTO runs (id, started_at) VALUES (?, ?)`, l.runID, l.now().UTC()); err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	return l, nil
}

// RunID identifies the run this ledger records.
func (l *Ledger) RunID() string {
	return l.runID
}

// Record appends the outcome of one title.
func (l *Ledger) Record(ctx context.Context, o domain.Outcome) error {
	var errText sql.NullString
	if o.Err != nil {
		errText = sql.NullString{String: o.Err.Error(), Valid: true}
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO sync_events (run_id, title, decision, status, error, revised_at, recorded_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.runID, o.Title, string(o.Decision), StatusOf(o), errText, o.LastRevisedAt.UTC(), l.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record %q: %w", o.Title, err)
	}
	return nil
}

// StatusOf classifies an outcome.
func StatusOf(o domain.Outcome) string {
	switch {
	case errors.Is(o.Err, domain.ErrPageNotFound):
		return StatusNotFound
	case o.Err != nil:
		return StatusFailed
	case o.Decision == domain.DecisionSkip:
		return StatusSkipped
	default:
		return StatusFetched
	}
}

// LatestRun returns the id of the most recently started run, or "" if none.
func LatestRun(ctx context.Context, db *sql.DB) (string, error) {
	var id string
	err := db.QueryRowContext(ctx, `SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("latest run: %w", err)
	}
	return id, nil
}

// Summary counts events of a run by status.
func Summary(ctx context.Context, db *sql.DB, runID string) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT status, COUNT(*) FROM sync_events WHERE run_id = ? GROUP BY status`, runID)
	if err != nil {
		return nil, fmt.Errorf("summarize run %s: %w", runID, err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

// Failures lists titles of a run whose fetch failed and should be retried.
func Failures(ctx context.Context, db *sql.DB, runID string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT title FROM sync_events WHERE run_id = ? AND status = ? ORDER BY title`, runID, StatusFailed)
	if err != nil {
		return nil, fmt.Errorf("failures of run %s: %w", runID, err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		titles = append(titles, t)
	}
	return titles, rows.Err()
}
