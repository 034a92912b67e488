// Package history keeps a local record of finished jobs in SQLite.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Entry is one finished job.
type Entry struct {
	ID          string
	Kind        string
	Destination string
	Pages       int
	Status      Status
	Error       string
	StartedAt   time.Time
	Duration    time.Duration
}

type Store struct {
	db *sql.DB
}

// Open opens the database at path, creating it and its parent directory
// when missing. ":memory:" gives a private in-memory store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Record stores e, replacing any entry with the same ID.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		return errors.New("history entry needs an id")
	}
	if e.Kind == "" {
		e.Kind = "merge"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO jobs (id, kind, destination, pages, status, error, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Kind, e.Destination, e.Pages, string(e.Status), e.Error,
		e.StartedAt.UnixMilli(), e.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("record job %s: %w", e.ID, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, destination, pages, status, error, started_at, duration_ms
		FROM jobs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e               Entry
			status          string
			started, millis int64
		)
		if err := rows.Scan(&e.ID, &e.Kind, &e.Destination, &e.Pages, &status, &e.Error, &started, &millis); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.Status = Status(status)
		e.StartedAt = time.UnixMilli(started)
		e.Duration = time.Duration(millis) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}
