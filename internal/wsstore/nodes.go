package wsstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/workspace-engine/core/internal/crdtdoc"
	"github.com/workspace-engine/core/internal/eventbus"
	"github.com/workspace-engine/core/internal/id"
)

// FetchNode loads a single node by id.
func (s *Store) FetchNode(ctx context.Context, nodeID id.ID) (Node, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, attributes, type, parent_id, root_id, local_revision,
		       server_revision, created_at, created_by, updated_at, updated_by
		FROM nodes WHERE id = ?`, nodeID.String())

	return scanNode(row)
}

func scanNode(row *sql.Row) (Node, error) {
	var n Node
	var rawAttrs string
	var parentID sql.NullString

	err := row.Scan(&n.ID, &rawAttrs, &n.Type, &parentID, &n.RootID,
		&n.LocalRevision, &n.ServerRevision, &n.CreatedAt, &n.CreatedBy,
		&n.UpdatedAt, &n.UpdatedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return Node{}, ErrNotFound
	}
	if err != nil {
		return Node{}, fmt.Errorf("wsstore: scan node: %w", err)
	}

	if parentID.Valid {
		p, perr := id.Parse(parentID.String)
		if perr != nil {
			return Node{}, fmt.Errorf("wsstore: parse parent id: %w", perr)
		}
		n.ParentID = p
	}

	if err := json.Unmarshal([]byte(rawAttrs), &n.Attributes); err != nil {
		return Node{}, fmt.Errorf("wsstore: unmarshal node attributes: %w", err)
	}

	return n, nil
}

// FetchNodeTree returns the root-to-node ancestor chain via a recursive
// CTE, ending with nodeID itself.
func (s *Store) FetchNodeTree(ctx context.Context, nodeID id.ID) ([]Node, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH RECURSIVE ancestors(id, depth) AS (
			SELECT id, 0 FROM nodes WHERE id = ?
			UNION ALL
			SELECT n.parent_id, a.depth + 1
			FROM nodes n JOIN ancestors a ON n.id = a.id
			WHERE n.parent_id IS NOT NULL
		)
		SELECT n.id, n.attributes, n.type, n.parent_id, n.root_id,
		       n.local_revision, n.server_revision, n.created_at,
		       n.created_by, n.updated_at, n.updated_by
		FROM nodes n JOIN ancestors a ON n.id = a.id
		ORDER BY a.depth DESC`, nodeID.String())
	if err != nil {
		return nil, fmt.Errorf("wsstore: fetch node tree: %w", err)
	}
	defer rows.Close()

	return scanNodeRows(rows)
}

// FetchDescendants returns the transitive closure of nodeID's children.
func (s *Store) FetchDescendants(ctx context.Context, nodeID id.ID) ([]Node, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH RECURSIVE descendants(id) AS (
			SELECT id FROM nodes WHERE parent_id = ?
			UNION ALL
			SELECT n.id FROM nodes n JOIN descendants d ON n.parent_id = d.id
		)
		SELECT n.id, n.attributes, n.type, n.parent_id, n.root_id,
		       n.local_revision, n.server_revision, n.created_at,
		       n.created_by, n.updated_at, n.updated_by
		FROM nodes n JOIN descendants d ON n.id = d.id`, nodeID.String())
	if err != nil {
		return nil, fmt.Errorf("wsstore: fetch descendants: %w", err)
	}
	defer rows.Close()

	return scanNodeRows(rows)
}

func scanNodeRows(rows *sql.Rows) ([]Node, error) {
	var out []Node

	for rows.Next() {
		var n Node
		var rawAttrs string
		var parentID sql.NullString

		if err := rows.Scan(&n.ID, &rawAttrs, &n.Type, &parentID, &n.RootID,
			&n.LocalRevision, &n.ServerRevision, &n.CreatedAt, &n.CreatedBy,
			&n.UpdatedAt, &n.UpdatedBy); err != nil {
			return nil, fmt.Errorf("wsstore: scan node row: %w", err)
		}

		if parentID.Valid {
			p, perr := id.Parse(parentID.String)
			if perr != nil {
				return nil, fmt.Errorf("wsstore: parse parent id: %w", perr)
			}
			n.ParentID = p
		}

		if err := json.Unmarshal([]byte(rawAttrs), &n.Attributes); err != nil {
			return nil, fmt.Errorf("wsstore: unmarshal node attributes: %w", err)
		}

		out = append(out, n)
	}

	return out, rows.Err()
}

// CreateNode inserts a brand-new locally-originated node. File nodes get a
// default file_states row and an upload-begin mutation is enqueued for
// them, since uploading is a consequence of local creation rather than of
// any later attribute edit (§4.6). Publishes node.created once committed.
func (s *Store) CreateNode(ctx context.Context, n Node, now string) error {
	rawAttrs, err := json.Marshal(n.Attributes)
	if err != nil {
		return fmt.Errorf("wsstore: marshal new node attributes: %w", err)
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		// parent_id is a generated column extracted from attributes; it is
		// never written directly.
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO nodes(id, attributes, root_id, local_revision, server_revision,
			                   created_at, created_by, updated_at, updated_by)
			VALUES (?, ?, ?, ?, '', ?, ?, ?, ?)`,
			n.ID.String(), string(rawAttrs), n.RootID.String(), nextLocalRevision(),
			now, n.CreatedBy, now, n.CreatedBy); err != nil {
			return fmt.Errorf("wsstore: insert node: %w", err)
		}

		if err := upsertNodeText(ctx, tx, n.ID, n.Attributes); err != nil {
			return err
		}

		if err := s.diffReferences(ctx, tx, n.ID, n.Type, n.Attributes, n.CreatedBy, now); err != nil {
			return err
		}

		if err := enqueueMutationTx(ctx, tx, MutationNodeCreate, map[string]any{
			"nodeId": n.ID.String(), "type": string(n.Type), "attributes": n.Attributes,
		}, now); err != nil {
			return err
		}

		if n.Type == NodeFile {
			if _, err := tx.ExecContext(ctx, `INSERT INTO file_states(node_id) VALUES (?)`, n.ID.String()); err != nil {
				return fmt.Errorf("wsstore: insert file state: %w", err)
			}

			if err := enqueueMutationTx(ctx, tx, MutationFileUploadBegin, map[string]any{
				"nodeId": n.ID.String(),
			}, now); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.PublishNodeEvent(eventbus.NodeCreated, n.ID)

	return nil
}

// ApplyNodeAttributes validates newAttributes against the node type's
// schema, diffs it through the CRDT layer, and persists the new
// attributes/state/update rows, a bumped localRevision, the node_texts FTS
// row, a node_references diff, and an enqueued mutation, all in one
// transaction (§4.2, scenario S1). Publishes node.updated once committed,
// unless the update was a no-op.
func (s *Store) ApplyNodeAttributes(ctx context.Context, nodeID id.ID, nodeType NodeType, newAttributes map[string]any, userID string, now string) error {
	schema, ok := s.schemas[nodeType]
	if !ok {
		return fmt.Errorf("%w: no schema registered for node type %q", ErrValidation, nodeType)
	}

	var changed bool

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		snapshot, err := loadSnapshotForTx(ctx, tx, "node_states", "node_id", nodeID)
		if err != nil {
			return err
		}

		doc, err := crdtdoc.NewFromState(userID, snapshot)
		if err != nil {
			return fmt.Errorf("wsstore: rebuild node crdt doc: %w", err)
		}

		update, err := doc.Update(schema, newAttributes)
		if err != nil {
			if errors.Is(err, crdtdoc.ErrInvalidInput) {
				return fmt.Errorf("%w: %s", ErrValidation, err)
			}
			return fmt.Errorf("%w: %s", ErrIntegrity, err)
		}

		if update == nil {
			return nil
		}

		changed = true

		rev := nextLocalRevision()
		projected := doc.Project(schema)
		rawAttrs, err := json.Marshal(projected)
		if err != nil {
			return fmt.Errorf("wsstore: marshal node attributes: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE nodes SET attributes = ?, local_revision = ?, updated_at = ?, updated_by = ?
			WHERE id = ?`, string(rawAttrs), rev, now, userID, nodeID.String())
		if err != nil {
			return fmt.Errorf("wsstore: update node: %w", err)
		}

		if affected, _ := res.RowsAffected(); affected == 0 {
			return ErrNotFound
		}

		updateID := id.New(id.KindMutation)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO node_updates(id, node_id, data, created_at) VALUES (?, ?, ?, ?)`,
			updateID.String(), nodeID.String(), update, now); err != nil {
			return fmt.Errorf("wsstore: insert node update: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO node_states(node_id, state, revision) VALUES (?, ?, ?)
			ON CONFLICT(node_id) DO UPDATE SET state = excluded.state, revision = excluded.revision`,
			nodeID.String(), doc.State(), rev); err != nil {
			return fmt.Errorf("wsstore: upsert node state: %w", err)
		}

		if err := upsertNodeText(ctx, tx, nodeID, newAttributes); err != nil {
			return err
		}

		projectedAttrs, _ := projected.(map[string]any)
		if err := s.diffReferences(ctx, tx, nodeID, nodeType, projectedAttrs, userID, now); err != nil {
			return err
		}

		if err := enqueueMutationTx(ctx, tx, MutationNodeUpdate, map[string]any{
			"nodeId": nodeID.String(), "attributes": newAttributes,
		}, now); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return err
	}

	if changed {
		s.PublishNodeEvent(eventbus.NodeUpdated, nodeID)
	}

	return nil
}

// loadSnapshotForTx returns the binary CRDT snapshot for entityID from
// table, or nil if no snapshot row exists yet (a brand-new document).
func loadSnapshotForTx(ctx context.Context, tx *sql.Tx, table, column string, entityID id.ID) ([]byte, error) {
	var state []byte

	query := fmt.Sprintf("SELECT state FROM %s WHERE %s = ?", table, column)
	err := tx.QueryRowContext(ctx, query, entityID.String()).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("wsstore: load crdt state: %w", err)
	}

	return state, nil
}

func upsertNodeText(ctx context.Context, tx *sql.Tx, nodeID id.ID, attrs map[string]any) error {
	name, _ := attrs["name"].(string)

	rawAttrs, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("wsstore: marshal node text attributes: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM node_texts WHERE rowid = (SELECT rowid FROM nodes WHERE id = ?)`, nodeID.String()); err != nil {
		return fmt.Errorf("wsstore: clear node text: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO node_texts(rowid, name, attributes)
		SELECT rowid, ?, ? FROM nodes WHERE id = ?`,
		name, string(rawAttrs), nodeID.String()); err != nil {
		return fmt.Errorf("wsstore: index node text: %w", err)
	}

	return nil
}

// ApplyRemoteNode merges an authoritative node record received from the
// server. If a tombstone exists for this id the remote write is dropped
// (§4.2, §8 property 5).
func (s *Store) ApplyRemoteNode(ctx context.Context, remote RemoteNode) error {
	var event eventbus.Name

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM tombstones WHERE id = ?`, remote.ID.String()).Scan(&exists); err == nil {
			return nil
		} else if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("wsstore: check tombstone: %w", err)
		}

		rawAttrs, err := json.Marshal(remote.Attributes)
		if err != nil {
			return fmt.Errorf("wsstore: marshal remote node attributes: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE nodes SET attributes = ?, server_revision = ?, updated_at = ?, updated_by = ?
			WHERE id = ?`, string(rawAttrs), remote.ServerRevision, remote.UpdatedAt, remote.UpdatedBy, remote.ID.String())
		if err != nil {
			return fmt.Errorf("wsstore: update remote node: %w", err)
		}

		if affected, _ := res.RowsAffected(); affected > 0 {
			if _, err := tx.ExecContext(ctx, `DELETE FROM node_updates WHERE node_id = ?`, remote.ID.String()); err != nil {
				return fmt.Errorf("wsstore: clear absorbed node updates: %w", err)
			}
			event = eventbus.NodeUpdated
			return nil
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO nodes(id, attributes, root_id, local_revision, server_revision,
			                   created_at, created_by, updated_at, updated_by)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			remote.ID.String(), string(rawAttrs), remote.RootID.String(), remote.ServerRevision,
			remote.ServerRevision, remote.CreatedAt, remote.CreatedBy, remote.UpdatedAt, remote.UpdatedBy)
		if err != nil {
			return fmt.Errorf("wsstore: insert remote node: %w", err)
		}

		event = eventbus.NodeCreated

		return nil
	})
	if err != nil {
		return err
	}

	if event != "" {
		s.PublishNodeEvent(event, remote.ID)
	}

	return nil
}

// ApplyRemoteNodeUpdate merges an incremental binary CRDT update received
// from the server. Dropped if a tombstone already shadows the target id.
func (s *Store) ApplyRemoteNodeUpdate(ctx context.Context, remote RemoteUpdate) error {
	var applied bool

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM tombstones WHERE id = ?`, remote.TargetID.String()).Scan(&exists); err == nil {
			return nil
		} else if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("wsstore: check tombstone: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE nodes SET server_revision = ? WHERE id = ?`,
			remote.ServerRevision, remote.TargetID.String()); err != nil {
			return fmt.Errorf("wsstore: bump server revision: %w", err)
		}

		applied = true

		return nil
	})
	if err != nil {
		return err
	}

	if applied {
		s.PublishNodeEvent(eventbus.NodeUpdated, remote.TargetID)
	}

	return nil
}

// CreateTombstone deletes a node/document id and inserts a tombstone for
// it, atomically, so a racing remote update can never resurrect it.
// Publishes node.deleted once committed.
func (s *Store) CreateTombstone(ctx context.Context, targetID id.ID, snapshot []byte, deletedAt string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, targetID.String()); err != nil {
			return fmt.Errorf("wsstore: delete node for tombstone: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM mutations WHERE json_extract(data, '$.nodeId') = ?`, targetID.String()); err != nil {
			return fmt.Errorf("wsstore: drop queued mutations for tombstoned node: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tombstones(id, data, deleted_at) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET data = excluded.data, deleted_at = excluded.deleted_at`,
			targetID.String(), snapshot, deletedAt); err != nil {
			return fmt.Errorf("wsstore: insert tombstone: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.PublishNodeEvent(eventbus.NodeDeleted, targetID)

	return nil
}

// PublishNodeEvent publishes a node lifecycle event to the bus; kept as a
// thin helper so call sites in the synchronizer and mediator share one
// event-shape definition.
func (s *Store) PublishNodeEvent(name eventbus.Name, nodeID id.ID) {
	if s.bus == nil {
		return
	}

	s.bus.Publish(eventbus.Event{Name: name, Payload: nodeID.String()})
}
