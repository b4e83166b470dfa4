// Package store provides database access for Kioku: user memories, the
// conversation history log and completion API keys, all held in a single
// SQLite file.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed schema.sql
var schemaSQL string

// PlaceholderService and PlaceholderAPIKey are the row seeded by Setup so that
// operators have something to overwrite with `kioku apikey set`.
const (
	PlaceholderService = "openai"
	PlaceholderAPIKey  = "your_actual_openai_api_key_here"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("store: not found")

	// ErrInvalidInput is returned when a write is rejected before reaching
	// the database (empty username, empty text, unknown role).
	ErrInvalidInput = errors.New("store: invalid input")
)

// Store wraps the database connection
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at dbPath and runs Setup.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer. One pooled connection serialises statements
	// inside database/sql; each operation borrows it only for its own duration.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.Setup(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying handle for transport adapters that keep their own
// bookkeeping tables in the same file (e.g. the Matrix sync token).
func (s *Store) DB() *sql.DB {
	return s.db
}

// Setup creates the memories, api_keys and conversation_history tables when
// absent and seeds the placeholder API key row when no openai row exists.
// It is safe to run any number of times.
func (s *Store) Setup(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO api_keys (service, api_key) VALUES (?, ?)
		ON CONFLICT(service) DO NOTHING
	`, PlaceholderService, PlaceholderAPIKey)
	if err != nil {
		return fmt.Errorf("failed to seed api key: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		slog.Info("seeded placeholder API key", "service", PlaceholderService)
	}
	return nil
}
