package wsstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/workspace-engine/core/internal/id"
)

// IncrementCounter adds delta to nodeID's counter of the given type (e.g.
// "children_count", "unread_mentions"), creating it at delta if absent.
func (s *Store) IncrementCounter(ctx context.Context, nodeID id.ID, counterType string, delta int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO node_counters(node_id, type, value) VALUES (?, ?, ?)
		ON CONFLICT(node_id, type) DO UPDATE SET value = value + excluded.value`,
		nodeID.String(), counterType, delta)
	if err != nil {
		return fmt.Errorf("wsstore: increment counter: %w", err)
	}

	return nil
}

// FetchCounter returns nodeID's current value for counterType, or 0 if
// never set.
func (s *Store) FetchCounter(ctx context.Context, nodeID id.ID, counterType string) (int, error) {
	var value int

	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM node_counters WHERE node_id = ? AND type = ?`,
		nodeID.String(), counterType).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("wsstore: fetch counter: %w", err)
	}

	return value, nil
}

// FetchCounters returns every counter recorded for nodeID, keyed by type.
func (s *Store) FetchCounters(ctx context.Context, nodeID id.ID) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT type, value FROM node_counters WHERE node_id = ?`, nodeID.String())
	if err != nil {
		return nil, fmt.Errorf("wsstore: fetch counters: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)

	for rows.Next() {
		var typ string
		var value int
		if err := rows.Scan(&typ, &value); err != nil {
			return nil, fmt.Errorf("wsstore: scan counter: %w", err)
		}
		out[typ] = value
	}

	return out, rows.Err()
}
