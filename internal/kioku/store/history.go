package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Role tags who produced a conversation history entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// HistoryEntry is one append-only row of the conversation log.
type HistoryEntry struct {
	ID        int64
	Username  string
	Role      Role
	Message   string
	CreatedAt time.Time
}

// AppendHistory inserts e. A zero CreatedAt is replaced by the current UTC
// time; an explicit one is stored as given (converted to UTC).
func (s *Store) AppendHistory(ctx context.Context, e HistoryEntry) error {
	if strings.TrimSpace(e.Username) == "" {
		return fmt.Errorf("append history: username is required: %w", ErrInvalidInput)
	}
	if !e.Role.Valid() {
		return fmt.Errorf("append history: unknown role %q: %w", e.Role, ErrInvalidInput)
	}

	ts := e.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_history (username, role, message, created_at)
		VALUES (?, ?, ?, ?)
	`, e.Username, string(e.Role), e.Message, ts.UTC())
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

// ListHistory returns the conversation log of username ordered by timestamp,
// oldest first. Entries sharing a timestamp keep insertion order.
func (s *Store) ListHistory(ctx context.Context, username string) ([]HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, role, message, created_at
		FROM conversation_history
		WHERE username = ?
		ORDER BY created_at ASC, id ASC
	`, username)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := []HistoryEntry{}
	for rows.Next() {
		var e HistoryEntry
		var role string
		if err := rows.Scan(&e.ID, &e.Username, &role, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.Role = Role(role)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}
	return entries, nil
}
