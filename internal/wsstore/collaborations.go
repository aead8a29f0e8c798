package wsstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/workspace-engine/core/internal/id"
)

// Collaboration is one user's explicit role on one node, resolving §9's
// "collaboration table ambiguity" open question as (nodeId, userId) ->
// role rather than one row per node.
type Collaboration struct {
	NodeID    id.ID
	UserID    string
	Role      string
	UpdatedAt string
}

// SetCollaboration upserts userID's role on nodeID.
func (s *Store) SetCollaboration(ctx context.Context, nodeID id.ID, userID, role, now string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collaborations(node_id, user_id, role, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(node_id, user_id) DO UPDATE SET role = excluded.role, updated_at = excluded.updated_at`,
		nodeID.String(), userID, role, now)
	if err != nil {
		return fmt.Errorf("wsstore: set collaboration: %w", err)
	}

	return nil
}

// RemoveCollaboration drops userID's explicit role on nodeID.
func (s *Store) RemoveCollaboration(ctx context.Context, nodeID id.ID, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM collaborations WHERE node_id = ? AND user_id = ?`, nodeID.String(), userID)
	if err != nil {
		return fmt.Errorf("wsstore: remove collaboration: %w", err)
	}

	return nil
}

// FetchCollaboration returns userID's explicit role on nodeID, or
// ErrNotFound if none is set.
func (s *Store) FetchCollaboration(ctx context.Context, nodeID id.ID, userID string) (Collaboration, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT node_id, user_id, role, updated_at FROM collaborations WHERE node_id = ? AND user_id = ?`,
		nodeID.String(), userID)

	var c Collaboration
	err := row.Scan(&c.NodeID, &c.UserID, &c.Role, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Collaboration{}, ErrNotFound
	}
	if err != nil {
		return Collaboration{}, fmt.Errorf("wsstore: scan collaboration: %w", err)
	}

	return c, nil
}

// FetchRolesForUser returns every explicit (nodeId -> role) entry userID
// holds across the workspace, for use building a permission.Context.Roles
// map in one query.
func (s *Store) FetchRolesForUser(ctx context.Context, userID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT node_id, role FROM collaborations WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("wsstore: fetch roles for user: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)

	for rows.Next() {
		var nodeID, role string
		if err := rows.Scan(&nodeID, &role); err != nil {
			return nil, fmt.Errorf("wsstore: scan collaboration role: %w", err)
		}
		out[nodeID] = role
	}

	return out, rows.Err()
}
