package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// GetAPIKey returns the secret stored for service, or ErrNotFound. The value
// is read on every call; nothing is cached in process.
func (s *Store) GetAPIKey(ctx context.Context, service string) (string, error) {
	var key string
	err := s.db.QueryRowContext(ctx,
		`SELECT api_key FROM api_keys WHERE service = ?`, service,
	).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("api key for %q: %w", service, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get api key for %q: %w", service, err)
	}
	return key, nil
}

// SetAPIKey creates or replaces the secret for service. Only operator tooling
// calls this; the request path treats api_keys as read-only.
func (s *Store) SetAPIKey(ctx context.Context, service, key string) error {
	if strings.TrimSpace(service) == "" || key == "" {
		return fmt.Errorf("set api key: service and key are required: %w", ErrInvalidInput)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_keys (service, api_key) VALUES (?, ?)
		ON CONFLICT(service) DO UPDATE SET api_key = excluded.api_key
	`, service, key)
	if err != nil {
		return fmt.Errorf("failed to set api key for %q: %w", service, err)
	}
	return nil
}
