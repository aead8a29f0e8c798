package wsstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/workspace-engine/core/internal/id"
)

// enqueueMutationTx inserts a mutation row inside an already-open
// transaction, so the write it represents and the queued sync action
// commit or roll back together (§4.3's "enqueue is transactional").
func enqueueMutationTx(ctx context.Context, tx *sql.Tx, typ MutationType, data map[string]any, now string) error {
	rawData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("wsstore: marshal mutation data: %w", err)
	}

	mutationID := id.New(id.KindMutation)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO mutations(id, type, data, created_at, retries, dead)
		VALUES (?, ?, ?, ?, 0, 0)`, mutationID.String(), string(typ), string(rawData), now); err != nil {
		return fmt.Errorf("wsstore: insert mutation: %w", err)
	}

	return nil
}

// EnqueueMutation enqueues a mutation on its own, for callers without an
// existing transaction to attach to (reactions, interactions).
func (s *Store) EnqueueMutation(ctx context.Context, typ MutationType, data map[string]any, now string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return enqueueMutationTx(ctx, tx, typ, data, now)
	})
}

// DequeueHead returns the oldest non-dead mutation, or ErrNotFound if the
// queue is empty (§4.3: "dequeue happens in createdAt order").
func (s *Store) DequeueHead(ctx context.Context) (Mutation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, data, created_at, retries, dead
		FROM mutations WHERE dead = 0 ORDER BY created_at ASC LIMIT 1`)

	var m Mutation
	var rawData string
	var dead int

	err := row.Scan(&m.ID, &m.Type, &rawData, &m.CreatedAt, &m.Retries, &dead)
	if errors.Is(err, sql.ErrNoRows) {
		return Mutation{}, ErrNotFound
	}
	if err != nil {
		return Mutation{}, fmt.Errorf("wsstore: scan mutation: %w", err)
	}

	m.Dead = dead != 0

	if err := json.Unmarshal([]byte(rawData), &m.Data); err != nil {
		return Mutation{}, fmt.Errorf("wsstore: unmarshal mutation data: %w", err)
	}

	return m, nil
}

// CompleteMutation deletes a mutation row after a successful server ack.
func (s *Store) CompleteMutation(ctx context.Context, mutationID id.ID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM mutations WHERE id = ?`, mutationID.String())
	if err != nil {
		return fmt.Errorf("wsstore: delete completed mutation: %w", err)
	}

	return nil
}

// RetryMutation increments a mutation's retry counter, marking it dead
// once maxRetries is reached. Returns whether it is now dead.
func (s *Store) RetryMutation(ctx context.Context, mutationID id.ID, maxRetries int) (bool, error) {
	var retries int

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT retries FROM mutations WHERE id = ?`, mutationID.String()).Scan(&retries); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("wsstore: read mutation retries: %w", err)
		}

		retries++
		dead := 0
		if retries >= maxRetries {
			dead = 1
		}

		if _, err := tx.ExecContext(ctx, `UPDATE mutations SET retries = ?, dead = ? WHERE id = ?`,
			retries, dead, mutationID.String()); err != nil {
			return fmt.Errorf("wsstore: bump mutation retries: %w", err)
		}

		return nil
	})
	if err != nil {
		return false, err
	}

	return retries >= maxRetries, nil
}

// CountPendingMutations returns the number of non-dead mutations awaiting
// push, for internal/metrics's queue-depth gauge.
func (s *Store) CountPendingMutations(ctx context.Context) (int, error) {
	var n int

	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mutations WHERE dead = 0`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("wsstore: count pending mutations: %w", err)
	}

	return n, nil
}

// MaterializeRemoteState replaces a mutation's local effect with the
// server's authoritative node state and drops the mutation (§4.4's "push
// protocol" permanent-error handling).
func (s *Store) MaterializeRemoteState(ctx context.Context, mutationID id.ID, remote RemoteNode) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM mutations WHERE id = ?`, mutationID.String()); err != nil {
			return fmt.Errorf("wsstore: drop materialized mutation: %w", err)
		}

		rawAttrs, err := json.Marshal(remote.Attributes)
		if err != nil {
			return fmt.Errorf("wsstore: marshal remote node attributes: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE nodes SET attributes = ?, server_revision = ?, local_revision = ?, updated_at = ?, updated_by = ?
			WHERE id = ?`, string(rawAttrs), remote.ServerRevision, remote.ServerRevision,
			remote.UpdatedAt, remote.UpdatedBy, remote.ID.String()); err != nil {
			return fmt.Errorf("wsstore: materialize remote node state: %w", err)
		}

		return nil
	})
}
