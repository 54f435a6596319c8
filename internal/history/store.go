// SPDX-License-Identifier: MPL-2.0

package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure-Go driver registered as "sqlite"

	"github.com/pscli/pscli/internal/dispatch"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// ErrClosed is returned after Close.
var ErrClosed = errors.New("history store closed")

type (
	// Store is the SQLite execution log. It implements dispatch.Recorder.
	Store struct {
		db     *sql.DB
		logger *slog.Logger
	}

	// Entry is one recorded execution.
	Entry struct {
		ID        string        `json:"id" yaml:"id" toml:"id"`
		Trigger   string        `json:"trigger" yaml:"trigger" toml:"trigger"`
		Name      string        `json:"name" yaml:"name" toml:"name"`
		Args      []string      `json:"args" yaml:"args" toml:"args"`
		Outcome   string        `json:"outcome" yaml:"outcome" toml:"outcome"`
		Error     string        `json:"error,omitempty" yaml:"error,omitempty" toml:"error,omitempty"`
		StartedAt time.Time     `json:"started_at" yaml:"started_at" toml:"started_at"`
		Duration  time.Duration `json:"duration" yaml:"duration" toml:"duration"`
	}
)

var _ dispatch.Recorder = (*Store)(nil)

// Open opens or creates the database at path and applies pending
// migrations. Use MemoryPath in tests.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	// One connection keeps an in-memory database alive and serialises
	// writers from concurrent sessions.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running history migrations: %w", err)
	}
	logger.Debug("history opened", "path", path)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record implements dispatch.Recorder.
func (s *Store) Record(ctx context.Context, ev dispatch.Event) error {
	args := ev.Args
	if args == nil {
		args = []string{}
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encoding args: %w", err)
	}
	var errText string
	if ev.Err != nil {
		errText = ev.Err.Error()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO executions (id, input, name, args, outcome, error, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), ev.Trigger, ev.Name, string(encoded), ev.Outcome.String(), errText,
		ev.StartedAt.UTC().Format(time.RFC3339Nano), ev.Duration.Milliseconds(),
	)
	if err != nil {
		return s.wrap("recording execution", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. A limit <= 0 returns
// every entry.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, input, name, args, outcome, error, started_at, duration_ms
		 FROM executions ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, s.wrap("querying history", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			args      string
			startedAt string
			ms        int64
		)
		if err := rows.Scan(&e.ID, &e.Trigger, &e.Name, &args, &e.Outcome, &e.Error, &startedAt, &ms); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		if err := json.Unmarshal([]byte(args), &e.Args); err != nil {
			s.logger.Debug("history args unreadable", "id", e.ID, "error", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
			e.StartedAt = t
		}
		e.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}

// Clear deletes every entry and reports how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM executions`)
	if err != nil {
		return 0, s.wrap("clearing history", err)
	}
	return res.RowsAffected()
}

func (s *Store) wrap(op string, err error) error {
	if errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%s: %w", op, ErrClosed)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	for _, m := range migrations {
		var count int
		if err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.Version).Scan(&count); err != nil {
			return fmt.Errorf("checking migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return err
		}
		s.logger.Debug("history migration applied", "version", m.Version, "name", m.Name)
	}
	return nil
}

func (s *Store) apply(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", m.Version); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("recording migration %d: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}
	return nil
}
