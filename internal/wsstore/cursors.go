package wsstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetCursor returns the stored cursor value for key, or "" if the stream
// has never advanced.
func (s *Store) GetCursor(ctx context.Context, key string) (string, error) {
	var value string

	err := s.db.QueryRowContext(ctx, `SELECT value FROM cursors WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("wsstore: read cursor: %w", err)
	}

	return value, nil
}

// SetCursor persists a stream's new cursor value. The synchronizer calls it
// after each entry has been applied (§4.4, §8 property 6), so a crash
// mid-batch re-delivers from the last applied entry on restart.
func (s *Store) SetCursor(ctx context.Context, key, value, now string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cursors(key, value, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now, now)
	if err != nil {
		return fmt.Errorf("wsstore: set cursor: %w", err)
	}

	return nil
}
