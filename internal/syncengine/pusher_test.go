package syncengine_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/workspace-engine/core/internal/eventbus"
	"github.com/workspace-engine/core/internal/id"
	"github.com/workspace-engine/core/internal/mutqueue"
	"github.com/workspace-engine/core/internal/syncengine"
	"github.com/workspace-engine/core/internal/wsstore"
)

type fakeSender struct {
	socketUp  bool
	sendErr   error
	sawSocket int
	sawHTTP   int
}

func (f *fakeSender) SocketAvailable() bool { return f.socketUp }

func (f *fakeSender) SendSocket(ctx context.Context, m wsstore.Mutation) error {
	f.sawSocket++
	return f.sendErr
}

func (f *fakeSender) SendHTTP(ctx context.Context, m wsstore.Mutation) error {
	f.sawHTTP++
	return f.sendErr
}

func newPusherFixture(t *testing.T) (*mutqueue.Queue, *wsstore.Store) {
	t.Helper()

	bus := eventbus.New(slog.Default())
	store, err := wsstore.Open(context.Background(), ":memory:", slog.Default(), bus, wsstore.SchemaRegistry{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return mutqueue.New(store, bus), store
}

func TestPushOneAcksOnSuccessfulSend(t *testing.T) {
	ctx := context.Background()
	queue, _ := newPusherFixture(t)

	require.NoError(t, queue.Enqueue(ctx, wsstore.MutationReactionAdd, map[string]any{}, "t0"))

	sender := &fakeSender{socketUp: true}
	pusher := syncengine.NewPusher(queue, sender, slog.Default())

	progressed, err := pusher.PushOne(ctx)
	require.NoError(t, err)
	require.True(t, progressed)
	require.Equal(t, 1, sender.sawSocket)
	require.Equal(t, 0, sender.sawHTTP)

	_, err = queue.Peek(ctx)
	require.ErrorIs(t, err, wsstore.ErrNotFound)
}

func TestPushOneFallsBackToHTTPWhenSocketDown(t *testing.T) {
	ctx := context.Background()
	queue, _ := newPusherFixture(t)

	require.NoError(t, queue.Enqueue(ctx, wsstore.MutationReactionAdd, map[string]any{}, "t0"))

	sender := &fakeSender{socketUp: false}
	pusher := syncengine.NewPusher(queue, sender, slog.Default())

	progressed, err := pusher.PushOne(ctx)
	require.NoError(t, err)
	require.True(t, progressed)
	require.Equal(t, 1, sender.sawHTTP)
	require.Equal(t, 0, sender.sawSocket)
}

func TestPushOneMaterializesAndDropsOnPermanentError(t *testing.T) {
	ctx := context.Background()
	queue, _ := newPusherFixture(t)

	require.NoError(t, queue.Enqueue(ctx, wsstore.MutationNodeUpdate, map[string]any{"nodeId": "nd_1"}, "t0"))

	remote := wsstore.RemoteNode{
		ID:             id.MustParse("nd_1"),
		Attributes:     map[string]any{"name": "server-wins"},
		RootID:         id.MustParse("nd_1"),
		ServerRevision: "r9",
		CreatedAt:      "t0",
		CreatedBy:      "user_1",
		UpdatedAt:      "t0",
		UpdatedBy:      "user_1",
	}

	sender := &fakeSender{socketUp: true, sendErr: &syncengine.PermanentError{Remote: remote, Cause: errors.New("conflict")}}
	pusher := syncengine.NewPusher(queue, sender, slog.Default())

	progressed, err := pusher.PushOne(ctx)
	require.NoError(t, err)
	require.True(t, progressed, "a permanently-rejected mutation is still removed from the queue")

	_, err = queue.Peek(ctx)
	require.ErrorIs(t, err, wsstore.ErrNotFound)
}

func TestPushOneStopsWithoutProgressOnTransientError(t *testing.T) {
	ctx := context.Background()
	queue, _ := newPusherFixture(t)

	require.NoError(t, queue.Enqueue(ctx, wsstore.MutationReactionAdd, map[string]any{}, "t0"))

	sender := &fakeSender{socketUp: true, sendErr: errors.New("connection reset")}
	pusher := syncengine.NewPusher(queue, sender, slog.Default())

	progressed, err := pusher.PushOne(ctx)
	require.NoError(t, err)
	require.False(t, progressed)

	// Mutation is still queued, just with a bumped retry count.
	m, err := queue.Peek(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, m.Retries)
}

func TestDrainStopsAtFirstTransientFailureWithoutBusySpinning(t *testing.T) {
	ctx := context.Background()
	queue, _ := newPusherFixture(t)

	require.NoError(t, queue.Enqueue(ctx, wsstore.MutationReactionAdd, map[string]any{}, "t0"))
	require.NoError(t, queue.Enqueue(ctx, wsstore.MutationReactionAdd, map[string]any{}, "t1"))

	sender := &fakeSender{socketUp: true, sendErr: errors.New("connection reset")}
	pusher := syncengine.NewPusher(queue, sender, slog.Default())

	require.NoError(t, pusher.Drain(ctx))

	// Exactly one send attempt: Drain must not busy-spin retrying the
	// still-failing head mutation.
	require.Equal(t, 1, sender.sawSocket)

	m, err := queue.Peek(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, m.Retries)
}

func TestDrainDrainsMultipleMutationsOnSuccess(t *testing.T) {
	ctx := context.Background()
	queue, _ := newPusherFixture(t)

	require.NoError(t, queue.Enqueue(ctx, wsstore.MutationReactionAdd, map[string]any{}, "t0"))
	require.NoError(t, queue.Enqueue(ctx, wsstore.MutationReactionAdd, map[string]any{}, "t1"))
	require.NoError(t, queue.Enqueue(ctx, wsstore.MutationReactionAdd, map[string]any{}, "t2"))

	sender := &fakeSender{socketUp: true}
	pusher := syncengine.NewPusher(queue, sender, slog.Default())

	require.NoError(t, pusher.Drain(ctx))
	require.Equal(t, 3, sender.sawSocket)

	_, err := queue.Peek(ctx)
	require.ErrorIs(t, err, wsstore.ErrNotFound)
}
