package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"askgraph/internal/apperrors"
	"askgraph/internal/vectorstore"
)

// SnapshotRepo keeps serialized indexes in SQLite, one row per handle.
// It implements vectorstore.Backend.
type SnapshotRepo struct {
	db *sql.DB
}

var _ vectorstore.Backend = (*SnapshotRepo)(nil)

// NewSnapshotRepo creates a new SnapshotRepo.
func NewSnapshotRepo(db *sql.DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// Save writes snap under handleID, or under a new UUID when handleID is empty.
// An existing row is only overwritten when creds match the ones it was saved with.
func (r *SnapshotRepo) Save(ctx context.Context, snap *vectorstore.Snapshot, creds vectorstore.Credentials, handleID string) (string, error) {
	if snap == nil {
		return "", fmt.Errorf("snapshot is nil")
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	id := handleID
	if id == "" {
		id = uuid.New().String()
	}
	fingerprint := creds.Fingerprint()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var stored string
	err = tx.QueryRowContext(ctx, "SELECT fingerprint FROM index_snapshots WHERE id = ?", id).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return "", fmt.Errorf("failed to query snapshot: %w", err)
	case stored != fingerprint:
		return "", apperrors.Auth(fmt.Sprintf("cannot overwrite index %s", id), nil)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO index_snapshots (id, description, dimension, entry_count, fingerprint, payload, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (id) DO UPDATE SET
		 description = excluded.description, dimension = excluded.dimension,
		 entry_count = excluded.entry_count, payload = excluded.payload, updated_at = CURRENT_TIMESTAMP`,
		id, snap.Description, snap.Dimension, len(snap.Entries), fingerprint, payload,
	)
	if err != nil {
		return "", fmt.Errorf("failed to save snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return id, nil
}

// Load returns the snapshot stored under handleID.
func (r *SnapshotRepo) Load(ctx context.Context, handleID string, creds vectorstore.Credentials) (*vectorstore.Snapshot, error) {
	if handleID == "" {
		return nil, ErrNotFound
	}

	var fingerprint string
	var payload []byte
	err := r.db.QueryRowContext(ctx,
		"SELECT fingerprint, payload FROM index_snapshots WHERE id = ?",
		handleID,
	).Scan(&fingerprint, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index %s: %w", handleID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	if fingerprint != creds.Fingerprint() {
		return nil, apperrors.Auth(fmt.Sprintf("cannot read index %s", handleID), nil)
	}

	var snap vectorstore.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}

// Info returns the metadata of a stored snapshot. Returns ErrNotFound if not found.
func (r *SnapshotRepo) Info(ctx context.Context, handleID string) (*SnapshotInfo, error) {
	var info SnapshotInfo
	var description sql.NullString
	var updatedAtStr string

	err := r.db.QueryRowContext(ctx,
		"SELECT id, description, dimension, entry_count, updated_at FROM index_snapshots WHERE id = ?",
		handleID,
	).Scan(&info.ID, &description, &info.Dimension, &info.EntryCount, &updatedAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	info.Description = description.String

	info.UpdatedAt, err = parseTimestamp(updatedAtStr)
	if err != nil {
		return nil, err
	}
	return &info, nil
}
