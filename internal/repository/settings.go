package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/UnknownOlympus/compass/internal/settings"
	"github.com/jackc/pgx/v5"
)

// SettingsStore is a settings.Store backed by the settings table.
type SettingsStore struct {
	db Database
}

var _ settings.Store = (*SettingsStore)(nil)

func NewSettingsStore(db Database) *SettingsStore {
	return &SettingsStore{db: db}
}

func (s *SettingsStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1;`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", settings.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read setting: %w", err)
	}
	return value, nil
}

func (s *SettingsStore) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value;
	`
	if _, err := s.db.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to write setting: %w", err)
	}
	return nil
}

func (s *SettingsStore) Clear(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM settings WHERE key = $1;`, key); err != nil {
		return fmt.Errorf("failed to clear setting: %w", err)
	}
	return nil
}
