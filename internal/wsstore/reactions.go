package wsstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/workspace-engine/core/internal/id"
)

// NodeReaction is one collaborator's reaction on a node (§3).
type NodeReaction struct {
	NodeID         id.ID
	CollaboratorID string
	Reaction       string
	CreatedAt      string
	Revision       string
}

// AddReaction adds userID's reaction to nodeID and enqueues the
// corresponding mutation. A user never has the same reaction twice on the
// same node (§3 invariant); re-adding an existing reaction is a no-op
// reported via added=false.
func (s *Store) AddReaction(ctx context.Context, nodeID id.ID, userID, reaction, now string) (added bool, err error) {
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO node_reactions(node_id, collaborator_id, reaction, created_at, revision)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(node_id, collaborator_id, reaction) DO NOTHING`,
			nodeID.String(), userID, reaction, now, nextLocalRevision())
		if err != nil {
			return fmt.Errorf("wsstore: add reaction: %w", err)
		}

		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}

		added = true

		return enqueueMutationTx(ctx, tx, MutationReactionAdd, map[string]any{
			"nodeId": nodeID.String(), "collaboratorId": userID, "reaction": reaction,
		}, now)
	})

	return added, err
}

// RemoveReaction removes userID's reaction from nodeID, if present, and
// enqueues the corresponding mutation.
func (s *Store) RemoveReaction(ctx context.Context, nodeID id.ID, userID, reaction, now string) (removed bool, err error) {
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM node_reactions WHERE node_id = ? AND collaborator_id = ? AND reaction = ?`,
			nodeID.String(), userID, reaction)
		if err != nil {
			return fmt.Errorf("wsstore: remove reaction: %w", err)
		}

		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}

		removed = true

		return enqueueMutationTx(ctx, tx, MutationReactionRemove, map[string]any{
			"nodeId": nodeID.String(), "collaboratorId": userID, "reaction": reaction,
		}, now)
	})

	return removed, err
}

// ListReactions returns every reaction recorded on nodeID.
func (s *Store) ListReactions(ctx context.Context, nodeID id.ID) ([]NodeReaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT node_id, collaborator_id, reaction, created_at, revision
		FROM node_reactions WHERE node_id = ?`, nodeID.String())
	if err != nil {
		return nil, fmt.Errorf("wsstore: list reactions: %w", err)
	}
	defer rows.Close()

	var out []NodeReaction

	for rows.Next() {
		var r NodeReaction
		if err := rows.Scan(&r.NodeID, &r.CollaboratorID, &r.Reaction, &r.CreatedAt, &r.Revision); err != nil {
			return nil, fmt.Errorf("wsstore: scan reaction: %w", err)
		}
		out = append(out, r)
	}

	return out, rows.Err()
}
