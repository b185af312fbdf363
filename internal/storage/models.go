package storage

import (
	"fmt"
	"time"
)

// PageRecord is a stored page together with its sync bookkeeping.
type PageRecord struct {
	ID        string
	Name      string
	Path      string // Relative path from the graph root
	Journal   bool
	Hash      string // SHA256 hex string of file content
	UpdatedAt time.Time
}

// SnapshotInfo describes a stored index snapshot without its payload.
type SnapshotInfo struct {
	ID          string
	Description string
	Dimension   int
	EntryCount  int
	UpdatedAt   time.Time
}

// parseTimestamp parses a SQLite DATETIME column.
func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err == nil {
		return t, nil
	}
	// SQLite might use a different format
	t, err = time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}
