// Package runstore records the history of pipeline runs in SQLite or
// PostgreSQL.
package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("run not found")

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Record is one row of run history.
type Record struct {
	RunID            string    `json:"runId"`
	Title            string    `json:"title,omitempty"`
	Status           string    `json:"status"`
	Step             string    `json:"step,omitempty"`
	Reason           string    `json:"reason,omitempty"`
	Depth            string    `json:"depth"`
	Tone             string    `json:"tone"`
	Audience         string    `json:"audience"`
	Provider         string    `json:"provider"`
	Files            int       `json:"files"`
	Sections         int       `json:"sections"`
	FallbackSections int       `json:"fallbackSections"`
	Warnings         int       `json:"warnings"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Store is a run history table.
type Store struct {
	db       *sql.DB
	postgres bool
}

// IsPostgres reports whether dsn selects PostgreSQL.
func IsPostgres(dsn string) bool {
	dsn = strings.TrimSpace(dsn)
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open connects to dsn and creates the schema if needed. A postgres:// DSN
// uses pgx; anything else is a SQLite file path (":memory:" works).
func Open(ctx context.Context, dsn string) (*Store, error) {
	s := &Store{postgres: IsPostgres(dsn)}
	driver := "sqlite"
	if s.postgres {
		driver = "pgx"
	}
	db, err := sql.Open(driver, strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("runstore: open: %w", err)
	}
	if !s.postgres {
		// One connection keeps ":memory:" databases alive and serialises writers.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("runstore: pragma: %w", err)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("runstore: ping: %w", err)
	}
	s.db = db
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS runs (
  run_id TEXT PRIMARY KEY,
  title TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  step TEXT NOT NULL DEFAULT '',
  reason TEXT NOT NULL DEFAULT '',
  depth TEXT NOT NULL DEFAULT '',
  tone TEXT NOT NULL DEFAULT '',
  audience TEXT NOT NULL DEFAULT '',
  provider TEXT NOT NULL DEFAULT '',
  files INTEGER NOT NULL DEFAULT 0,
  sections INTEGER NOT NULL DEFAULT 0,
  fallback_sections INTEGER NOT NULL DEFAULT 0,
  warnings INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("runstore: create schema: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs (created_at)`)
	if err != nil {
		return fmt.Errorf("runstore: create index: %w", err)
	}
	return nil
}

// bind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) bind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const columns = `run_id, title, status, step, reason, depth, tone, audience, provider,
  files, sections, fallback_sections, warnings, created_at`

// Put inserts or replaces the record for r.RunID.
func (s *Store) Put(ctx context.Context, r Record) error {
	if strings.TrimSpace(r.RunID) == "" {
		return fmt.Errorf("runstore: run id is required")
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, s.bind(`
INSERT INTO runs (`+columns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT (run_id)
DO UPDATE SET title=excluded.title,
  status=excluded.status,
  step=excluded.step,
  reason=excluded.reason,
  sections=excluded.sections,
  fallback_sections=excluded.fallback_sections,
  warnings=excluded.warnings`),
		r.RunID, r.Title, r.Status, r.Step, r.Reason, r.Depth, r.Tone, r.Audience, r.Provider,
		r.Files, r.Sections, r.FallbackSections, r.Warnings, r.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("runstore: put %s: %w", r.RunID, err)
	}
	return nil
}

// Get returns one run.
func (s *Store) Get(ctx context.Context, runID string) (Record, error) {
	row := s.db.QueryRowContext(ctx, s.bind(`SELECT `+columns+` FROM runs WHERE run_id = ?`), runID)
	r, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("runstore: get %s: %w", runID, err)
	}
	return r, nil
}

// List returns the most recent runs, newest first. limit <= 0 means 20.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, s.bind(`SELECT `+columns+` FROM runs ORDER BY created_at DESC, run_id LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("runstore: list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("runstore: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scan(sc scanner) (Record, error) {
	var r Record
	var created string
	err := sc.Scan(&r.RunID, &r.Title, &r.Status, &r.Step, &r.Reason, &r.Depth, &r.Tone, &r.Audience,
		&r.Provider, &r.Files, &r.Sections, &r.FallbackSections, &r.Warnings, &created)
	if err != nil {
		return Record{}, err
	}
	r.CreatedAt, _ = time.Parse(timeLayout, created)
	return r, nil
}
