package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Memory is a user-submitted fact kept for later recall.
type Memory struct {
	ID        int64
	Username  string
	Text      string
	Category  sql.NullString
	CreatedAt time.Time
}

// SaveMemory inserts one memory and returns its assigned ID. An empty
// category is stored as NULL. Existing rows are never overwritten.
func (s *Store) SaveMemory(ctx context.Context, username, text, category string) (int64, error) {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(text) == "" {
		return 0, fmt.Errorf("save memory: username and text are required: %w", ErrInvalidInput)
	}

	var categoryNull sql.NullString
	if category != "" {
		categoryNull = sql.NullString{String: category, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO memories (username, memory_text, category, created_at)
		VALUES (?, ?, ?, ?)
	`, username, text, categoryNull, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to save memory: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read memory id: %w", err)
	}
	return id, nil
}

// ListMemories returns every memory owned by username in insertion order.
// A user with no memories gets an empty slice and a nil error.
func (s *Store) ListMemories(ctx context.Context, username string) ([]Memory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, memory_text, category, created_at
		FROM memories
		WHERE username = ?
		ORDER BY id ASC
	`, username)
	if err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	defer rows.Close()

	memories := []Memory{}
	for rows.Next() {
		var m Memory
		if err := rows.Scan(&m.ID, &m.Username, &m.Text, &m.Category, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		memories = append(memories, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating memories: %w", err)
	}
	return memories, nil
}

// DeleteMemory removes the memory with the given ID. Deleting an ID that does
// not exist is not an error. Ownership is not checked.
func (s *Store) DeleteMemory(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete memory %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		slog.Debug("delete memory: no such id", "id", id)
	}
	return nil
}

// MemoryCount returns the total number of stored memories across all users.
func (s *Store) MemoryCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count memories: %w", err)
	}
	return n, nil
}
