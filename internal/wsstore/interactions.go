package wsstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/workspace-engine/core/internal/id"
)

// NodeInteraction tracks one collaborator's seen/opened history on a node
// (§3). Entries are created lazily on first interaction.
type NodeInteraction struct {
	NodeID         id.ID
	CollaboratorID string
	FirstSeenAt    string
	LastSeenAt     string
	FirstOpenedAt  string
	LastOpenedAt   string
	Revision       string
}

// RecordInteractionSeen upserts a "seen" event for (nodeID, userID),
// setting first_seen_at only the first time and always refreshing
// last_seen_at, and enqueues the corresponding mutation.
func (s *Store) RecordInteractionSeen(ctx context.Context, nodeID id.ID, userID, now string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		rev := nextLocalRevision()

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO node_interactions(node_id, collaborator_id, first_seen_at, last_seen_at, revision)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(node_id, collaborator_id) DO UPDATE SET first_seen_at = COALESCE(first_seen_at, excluded.first_seen_at),
				last_seen_at = excluded.last_seen_at, revision = excluded.revision`,
			nodeID.String(), userID, now, now, rev); err != nil {
			return fmt.Errorf("wsstore: record interaction seen: %w", err)
		}

		return enqueueMutationTx(ctx, tx, MutationInteractionSeen, map[string]any{
			"nodeId": nodeID.String(), "collaboratorId": userID,
		}, now)
	})
}

// RecordInteractionOpened upserts an "opened" event, analogous to
// RecordInteractionSeen but for the first/last opened timestamps.
func (s *Store) RecordInteractionOpened(ctx context.Context, nodeID id.ID, userID, now string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		rev := nextLocalRevision()

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO node_interactions(node_id, collaborator_id, first_opened_at, last_opened_at, revision)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(node_id, collaborator_id) DO UPDATE SET first_opened_at = COALESCE(first_opened_at, excluded.first_opened_at),
				last_opened_at = excluded.last_opened_at, revision = excluded.revision`,
			nodeID.String(), userID, now, now, rev); err != nil {
			return fmt.Errorf("wsstore: record interaction opened: %w", err)
		}

		return enqueueMutationTx(ctx, tx, MutationInteractionOpened, map[string]any{
			"nodeId": nodeID.String(), "collaboratorId": userID,
		}, now)
	})
}

// FetchInteraction returns userID's interaction record for nodeID, or
// ErrNotFound if the user has never seen or opened it.
func (s *Store) FetchInteraction(ctx context.Context, nodeID id.ID, userID string) (NodeInteraction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT node_id, collaborator_id, COALESCE(first_seen_at, ''), COALESCE(last_seen_at, ''),
		       COALESCE(first_opened_at, ''), COALESCE(last_opened_at, ''), revision
		FROM node_interactions WHERE node_id = ? AND collaborator_id = ?`, nodeID.String(), userID)

	var ni NodeInteraction
	err := row.Scan(&ni.NodeID, &ni.CollaboratorID, &ni.FirstSeenAt, &ni.LastSeenAt,
		&ni.FirstOpenedAt, &ni.LastOpenedAt, &ni.Revision)
	if errors.Is(err, sql.ErrNoRows) {
		return NodeInteraction{}, ErrNotFound
	}
	if err != nil {
		return NodeInteraction{}, fmt.Errorf("wsstore: scan interaction: %w", err)
	}

	return ni, nil
}
