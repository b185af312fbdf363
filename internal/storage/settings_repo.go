package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// HandleIDKey is the settings key that records the persisted index handle.
const HandleIDKey = "vector_store_id"

// SettingsRepo is a small key/value table for values that must survive restarts.
type SettingsRepo struct {
	db *sql.DB
}

// NewSettingsRepo creates a new SettingsRepo.
func NewSettingsRepo(db *sql.DB) *SettingsRepo {
	return &SettingsRepo{db: db}
}

// Get returns the value stored under key. Returns ErrNotFound if not set.
func (r *SettingsRepo) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query setting %s: %w", key, err)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (r *SettingsRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}

// LoadHandleID returns the recorded index handle ID, or "" if none was recorded yet.
func (r *SettingsRepo) LoadHandleID(ctx context.Context) (string, error) {
	id, err := r.Get(ctx, HandleIDKey)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return id, err
}

// SaveHandleID records the index handle ID.
func (r *SettingsRepo) SaveHandleID(ctx context.Context, id string) error {
	return r.Set(ctx, HandleIDKey, id)
}
