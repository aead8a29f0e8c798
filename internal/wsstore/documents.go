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

// ApplyDocumentContent is ApplyNodeAttributes' analogue for document
// content (§4.2): diff newContent through the CRDT layer, persist the new
// content/state/update rows, bump localRevision, reindex document_texts,
// diff node_references, and enqueue a document.update mutation, all in one
// transaction. Publishes node.updated once committed.
func (s *Store) ApplyDocumentContent(ctx context.Context, docID id.ID, schema crdtdoc.Schema, newContent map[string]any, userID string, now string) error {
	var changed bool

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var nodeTypeRaw string
		if err := tx.QueryRowContext(ctx, `SELECT type FROM nodes WHERE id = ?`, docID.String()).Scan(&nodeTypeRaw); err != nil {
			return fmt.Errorf("wsstore: lookup document's owning node type: %w", err)
		}
		nodeType := NodeType(nodeTypeRaw)

		snapshot, err := loadSnapshotForTx(ctx, tx, "document_states", "document_id", docID)
		if err != nil {
			return err
		}

		doc, err := crdtdoc.NewFromState(userID, snapshot)
		if err != nil {
			return fmt.Errorf("wsstore: rebuild document crdt doc: %w", err)
		}

		update, err := doc.Update(schema, newContent)
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
		rawContent, err := json.Marshal(projected)
		if err != nil {
			return fmt.Errorf("wsstore: marshal document content: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE documents SET content = ?, local_revision = ?, updated_at = ?, updated_by = ?
			WHERE id = ?`, string(rawContent), rev, now, userID, docID.String())
		if err != nil {
			return fmt.Errorf("wsstore: update document: %w", err)
		}

		if affected, _ := res.RowsAffected(); affected == 0 {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO documents(id, content, local_revision, server_revision, created_at, created_by, updated_at, updated_by)
				VALUES (?, ?, ?, '', ?, ?, ?, ?)`,
				docID.String(), string(rawContent), rev, now, userID, now, userID); err != nil {
				return fmt.Errorf("wsstore: insert document: %w", err)
			}
		}

		updateID := id.New(id.KindMutation)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO document_updates(id, document_id, data, created_at) VALUES (?, ?, ?, ?)`,
			updateID.String(), docID.String(), update, now); err != nil {
			return fmt.Errorf("wsstore: insert document update: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO document_states(document_id, state, revision) VALUES (?, ?, ?)
			ON CONFLICT(document_id) DO UPDATE SET state = excluded.state, revision = excluded.revision`,
			docID.String(), doc.State(), rev); err != nil {
			return fmt.Errorf("wsstore: upsert document state: %w", err)
		}

		text, _ := extractDocumentText(projected)

		if _, err := tx.ExecContext(ctx, `DELETE FROM document_texts WHERE rowid = (SELECT rowid FROM documents WHERE id = ?)`, docID.String()); err != nil {
			return fmt.Errorf("wsstore: clear document text: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO document_texts(rowid, text)
			SELECT rowid, ? FROM documents WHERE id = ?`, text, docID.String()); err != nil {
			return fmt.Errorf("wsstore: index document text: %w", err)
		}

		projectedContent, _ := projected.(map[string]any)
		if err := s.diffReferences(ctx, tx, docID, nodeType, projectedContent, userID, now); err != nil {
			return err
		}

		return enqueueMutationTx(ctx, tx, MutationDocumentUpdate, map[string]any{
			"documentId": docID.String(), "content": newContent,
		}, now)
	})
	if err != nil {
		return err
	}

	if changed {
		s.PublishNodeEvent(eventbus.NodeUpdated, docID)
	}

	return nil
}

// extractDocumentText flattens a document's "text"-shaped content field
// for FTS indexing; documents without a plain-text body index empty text.
func extractDocumentText(projection any) (string, bool) {
	m, ok := projection.(map[string]any)
	if !ok {
		return "", false
	}

	text, ok := m["text"].(string)
	return text, ok
}
