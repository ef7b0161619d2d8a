// Package history reads settled wager histories from a SQLite ledger.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/tipster/internal/domain/model"
	"github.com/okian/tipster/pkg/metrics"

	_ "modernc.org/sqlite" // pure Go SQLite driver
)

const collaborator = "history"

// ErrSource wraps every storage failure.
var ErrSource = errors.New("history source")

const schema = `
CREATE TABLE IF NOT EXISTS wagers (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	actor_id  TEXT    NOT NULL,
	venue     TEXT    NOT NULL,
	category  TEXT    NOT NULL,
	amount    REAL    NOT NULL,
	odds      REAL    NOT NULL,
	result    TEXT    NOT NULL CHECK (result IN ('won', 'lost')),
	placed_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_wagers_actor ON wagers (actor_id, placed_at);
`

// SQLiteSource lists actors and fetches their histories.
type SQLiteSource struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger at dsn and applies the schema.
// ":memory:" gives a private in-memory ledger.
func Open(ctx context.Context, dsn string) (*SQLiteSource, error) {
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("%w: create directory: %w", ErrSource, err)
		}
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %w", ErrSource, err)
	}
	// One writer keeps SQLite happy and makes :memory: a single database.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping: %w", ErrSource, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: migrate: %w", ErrSource, err)
	}
	return &SQLiteSource{db: db}, nil
}

// Close closes the database.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

// ListActors returns every actor with at least one wager, sorted by id.
func (s *SQLiteSource) ListActors(ctx context.Context) ([]string, error) {
	defer observe(time.Now())

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT actor_id FROM wagers ORDER BY actor_id`)
	if err != nil {
		return nil, fail("list", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fail("scan", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("list", err)
	}
	return out, nil
}

// FetchHistory returns the actor's wagers oldest first. An unknown actor
// yields an empty history.
func (s *SQLiteSource) FetchHistory(ctx context.Context, actorID string) ([]model.WagerRecord, error) {
	defer observe(time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT venue, category, amount, odds, result, placed_at
		FROM wagers WHERE actor_id = ? ORDER BY placed_at, id`, actorID)
	if err != nil {
		return nil, fail("fetch", err)
	}
	defer rows.Close()

	out := []model.WagerRecord{}
	for rows.Next() {
		var (
			w      model.WagerRecord
			result string
			placed int64
		)
		if err := rows.Scan(&w.Venue, &w.Category, &w.Amount, &w.Odds, &result, &placed); err != nil {
			return nil, fail("scan", err)
		}
		w.Result = model.Outcome(result)
		w.Timestamp = time.UnixMilli(placed).UTC()
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("fetch", err)
	}
	return out, nil
}

// Insert appends wagers for an actor in one transaction.
func (s *SQLiteSource) Insert(ctx context.Context, actorID string, wagers ...model.WagerRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fail("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO wagers (actor_id, venue, category, amount, odds, result, placed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fail("prepare", err)
	}
	defer stmt.Close()

	for _, w := range wagers {
		result := strings.ToLower(string(w.Result))
		if _, err := stmt.ExecContext(ctx, actorID, w.Venue, w.Category, w.Amount, w.Odds, result, w.Timestamp.UnixMilli()); err != nil {
			return fail("insert", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fail("commit", err)
	}
	return nil
}

func observe(start time.Time) {
	metrics.RecordCollaboratorLatency(collaborator, float64(time.Since(start).Microseconds())/1000.0)
}

func fail(op string, err error) error {
	metrics.RecordCollaboratorError(collaborator, op)
	return fmt.Errorf("%w: %s: %w", ErrSource, op, err)
}
