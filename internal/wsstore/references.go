package wsstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/workspace-engine/core/internal/id"
)

// NodeReference is one cross-reference a node's attributes or document
// content makes to another entity, such as an @mention (§3).
type NodeReference struct {
	NodeID      id.ID
	ReferenceID string
	InnerID     string
	Type        string
	CreatedAt   string
	CreatedBy   string
}

// ReferenceTypeMention is the reference kind produced by ExtractMentions.
const ReferenceTypeMention = "mention"

// MentionExtractor resolves the set of entity ids a node of nodeType
// mentions inline given its current attributes (or, for document-backed
// node types, its projected document content), keyed to the per-type
// ExtractMentions capability (§4.9). A nil Store.mentions skips the
// node_references diff entirely.
type MentionExtractor func(nodeType NodeType, content map[string]any) []string

// WithMentionExtractor registers the function ApplyNodeAttributes and
// ApplyDocumentContent use to keep node_references in sync with edits.
func (s *Store) WithMentionExtractor(extract MentionExtractor) *Store {
	s.mentions = extract
	return s
}

// diffReferences is a no-op when no MentionExtractor is registered;
// otherwise it extracts mentions from content and diffs them against the
// node_references rows already stored for nodeID.
func (s *Store) diffReferences(ctx context.Context, tx *sql.Tx, nodeID id.ID, nodeType NodeType, content map[string]any, userID, now string) error {
	if s.mentions == nil {
		return nil
	}

	return diffNodeReferences(ctx, tx, nodeID, s.mentions(nodeType, content), userID, now)
}

// diffNodeReferences makes node_references' mention-type rows for nodeID
// match refs exactly: rows for ids no longer mentioned are deleted, rows
// for newly-mentioned ids are inserted, and rows for ids mentioned before
// and after are left untouched so their created_at/created_by survive.
// A mentioned id's own value doubles as inner_id, since ExtractMentions
// reports a set of mentioned ids rather than positionally distinct spans.
func diffNodeReferences(ctx context.Context, tx *sql.Tx, nodeID id.ID, refs []string, userID, now string) error {
	existing := make(map[string]bool)

	rows, err := tx.QueryContext(ctx, `
		SELECT reference_id FROM node_references WHERE node_id = ? AND type = ?`,
		nodeID.String(), ReferenceTypeMention)
	if err != nil {
		return fmt.Errorf("wsstore: list node references: %w", err)
	}

	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			rows.Close()
			return fmt.Errorf("wsstore: scan node reference: %w", err)
		}
		existing[ref] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("wsstore: list node references: %w", err)
	}
	rows.Close()

	wanted := make(map[string]bool, len(refs))
	for _, ref := range refs {
		if ref != "" {
			wanted[ref] = true
		}
	}

	for ref := range existing {
		if wanted[ref] {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM node_references WHERE node_id = ? AND reference_id = ? AND type = ?`,
			nodeID.String(), ref, ReferenceTypeMention); err != nil {
			return fmt.Errorf("wsstore: delete stale node reference: %w", err)
		}
	}

	for ref := range wanted {
		if existing[ref] {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO node_references(node_id, reference_id, inner_id, type, created_at, created_by)
			VALUES (?, ?, ?, ?, ?, ?)`,
			nodeID.String(), ref, ref, ReferenceTypeMention, now, userID); err != nil {
			return fmt.Errorf("wsstore: insert node reference: %w", err)
		}
	}

	return nil
}

// FetchReferencingNodes returns the id of every node whose most recent
// edit mentioned referenceID (a user id, for the mention reference type),
// used to resolve "who mentioned me" queries.
func (s *Store) FetchReferencingNodes(ctx context.Context, referenceID string) ([]id.ID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT node_id FROM node_references WHERE reference_id = ? AND type = ?`,
		referenceID, ReferenceTypeMention)
	if err != nil {
		return nil, fmt.Errorf("wsstore: fetch referencing nodes: %w", err)
	}
	defer rows.Close()

	var out []id.ID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("wsstore: scan referencing node id: %w", err)
		}

		parsed, err := id.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("wsstore: parse referencing node id: %w", err)
		}

		out = append(out, parsed)
	}

	return out, rows.Err()
}
