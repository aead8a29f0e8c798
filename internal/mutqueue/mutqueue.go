// Package mutqueue is the durable, ordered record of local intents that
// must be replayed to the server (§4.3). It is a thin domain-typed layer
// over the wsstore mutations table: wsstore owns the row storage (so
// enqueue commits atomically with the write it represents); this package
// owns the drain/ack/retry/dead-letter contract and the event it raises
// when a mutation is dead-lettered.
package mutqueue

import (
	"context"
	"fmt"

	"github.com/workspace-engine/core/internal/eventbus"
	"github.com/workspace-engine/core/internal/id"
	"github.com/workspace-engine/core/internal/wsstore"
)

// DefaultMaxRetries bounds how many times a mutation is retried before
// being moved to a dead-letter state (still present, no longer dequeued).
const DefaultMaxRetries = 8

// Queue drains wsstore's mutations table in createdAt order.
type Queue struct {
	store      *wsstore.Store
	bus        *eventbus.Bus
	maxRetries int
}

// New constructs a Queue bound to store, publishing lifecycle events on bus.
func New(store *wsstore.Store, bus *eventbus.Bus) *Queue {
	return &Queue{store: store, bus: bus, maxRetries: DefaultMaxRetries}
}

// WithMaxRetries overrides the dead-letter threshold (for tests).
func (q *Queue) WithMaxRetries(n int) *Queue {
	q.maxRetries = n
	return q
}

// Enqueue records a new mutation outside of any existing store
// transaction. Most mutation types are instead enqueued transactionally
// by the wsstore operation that produces them (ApplyNodeAttributes,
// ApplyDocumentContent); this entry point serves mutation types with no
// accompanying store write, such as reaction add/remove.
func (q *Queue) Enqueue(ctx context.Context, typ wsstore.MutationType, data map[string]any, now string) error {
	if err := q.store.EnqueueMutation(ctx, typ, data, now); err != nil {
		return fmt.Errorf("mutqueue: enqueue: %w", err)
	}

	q.bus.Publish(eventbus.Event{Name: eventbus.MutationEnqueued, Payload: typ})

	return nil
}

// Depth returns the number of mutations currently pending push, for
// internal/metrics's queue-depth gauge.
func (q *Queue) Depth(ctx context.Context) (int, error) {
	n, err := q.store.CountPendingMutations(ctx)
	if err != nil {
		return 0, fmt.Errorf("mutqueue: depth: %w", err)
	}

	return n, nil
}

// Peek returns the head mutation without removing it, or
// wsstore.ErrNotFound if the queue is empty.
func (q *Queue) Peek(ctx context.Context) (wsstore.Mutation, error) {
	return q.store.DequeueHead(ctx)
}

// Ack removes a mutation after a successful server acknowledgement.
func (q *Queue) Ack(mutationID id.ID) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := q.store.CompleteMutation(ctx, mutationID); err != nil {
			return fmt.Errorf("mutqueue: ack: %w", err)
		}

		q.bus.Publish(eventbus.Event{Name: eventbus.MutationCompleted, Payload: mutationID.String()})

		return nil
	}
}

// Fail records a transient failure: the retry counter is bumped, and past
// the configured ceiling the mutation is dead-lettered (kept in the
// table, no longer dequeued) and surfaced via the event bus.
func (q *Queue) Fail(ctx context.Context, mutationID id.ID) error {
	dead, err := q.store.RetryMutation(ctx, mutationID, q.maxRetries)
	if err != nil {
		return fmt.Errorf("mutqueue: fail: %w", err)
	}

	if dead {
		q.bus.Publish(eventbus.Event{Name: eventbus.MutationFailed, Payload: mutationID.String()})
	}

	return nil
}

// MaterializeAndDrop handles a permanent/conflict-classified server error:
// the server's authoritative state replaces the local one and the
// mutation is dropped rather than retried.
func (q *Queue) MaterializeAndDrop(ctx context.Context, mutationID id.ID, remote wsstore.RemoteNode) error {
	if err := q.store.MaterializeRemoteState(ctx, mutationID, remote); err != nil {
		return fmt.Errorf("mutqueue: materialize: %w", err)
	}

	q.bus.Publish(eventbus.Event{Name: eventbus.MutationCompleted, Payload: mutationID.String()})

	return nil
}
