package filetransfer_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/workspace-engine/core/internal/eventbus"
	"github.com/workspace-engine/core/internal/filetransfer"
	"github.com/workspace-engine/core/internal/id"
	"github.com/workspace-engine/core/internal/socksession"
	"github.com/workspace-engine/core/internal/wsstore"
)

func newFixture(t *testing.T) (*wsstore.Store, id.ID) {
	t.Helper()

	bus := eventbus.New(slog.Default())
	store, err := wsstore.Open(context.Background(), ":memory:", slog.Default(), bus, wsstore.SchemaRegistry{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	spaceID := id.New(id.KindNode)
	require.NoError(t, store.ApplyRemoteNode(context.Background(), wsstore.RemoteNode{
		ID: spaceID, Attributes: map[string]any{"type": "space", "name": "s"},
		RootID: spaceID, ServerRevision: "r0",
		CreatedAt: "t0", CreatedBy: "u1", UpdatedAt: "t0", UpdatedBy: "u1",
	}))

	fileID := id.New(id.KindNode)
	require.NoError(t, store.CreateNode(context.Background(), wsstore.Node{
		ID: fileID, Type: wsstore.NodeFile, RootID: spaceID, CreatedBy: "u1",
		Attributes: map[string]any{"type": "file", "name": "f", "parentId": spaceID.String()},
	}, "t0"))

	return store, fileID
}

// addFileNode creates a second file node under sibling's space, for tests
// exercising more than one node at once (e.g. scheduler concurrency bounds).
func addFileNode(t *testing.T, store *wsstore.Store, sibling id.ID) id.ID {
	t.Helper()

	existing, err := store.FetchNode(context.Background(), sibling)
	require.NoError(t, err)

	fileID := id.New(id.KindNode)
	require.NoError(t, store.CreateNode(context.Background(), wsstore.Node{
		ID: fileID, Type: wsstore.NodeFile, RootID: existing.RootID, CreatedBy: "u1",
		Attributes: map[string]any{"type": "file", "name": "f2", "parentId": existing.RootID.String()},
	}, "t0"))

	return fileID
}

func TestDownloadHappyPath(t *testing.T) {
	ctx := context.Background()
	store, fileID := newFixture(t)
	bus := eventbus.New(slog.Default())
	m := filetransfer.New(store, bus)

	require.NoError(t, m.Request(ctx, fileID, filetransfer.Download))
	require.NoError(t, m.Start(ctx, fileID, filetransfer.Download))
	require.NoError(t, m.Progress(ctx, fileID, filetransfer.Download, 50))
	require.NoError(t, m.Complete(ctx, fileID, filetransfer.Download))

	fs, err := store.FetchFileState(ctx, fileID)
	require.NoError(t, err)
	require.Equal(t, "completed", fs.DownloadStatus)
	require.Equal(t, 100, fs.DownloadProgress)
	require.NotEmpty(t, fs.DownloadCompletedAt)
}

func TestStartRejectsWhenOtherDirectionInProgress(t *testing.T) {
	ctx := context.Background()
	store, fileID := newFixture(t)
	bus := eventbus.New(slog.Default())
	m := filetransfer.New(store, bus)

	require.NoError(t, m.Request(ctx, fileID, filetransfer.Upload))
	require.NoError(t, m.Start(ctx, fileID, filetransfer.Upload))

	require.NoError(t, m.Request(ctx, fileID, filetransfer.Download))
	err := m.Start(ctx, fileID, filetransfer.Download)
	require.ErrorIs(t, err, filetransfer.ErrAnotherDirectionInProgress)
}

func TestFailThenRetryIsGatedByBackoff(t *testing.T) {
	ctx := context.Background()
	store, fileID := newFixture(t)
	bus := eventbus.New(slog.Default())

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := filetransfer.New(store, bus).
		WithBackoff(socksession.BackoffCalculator{Base: time.Minute, Max: time.Hour}).
		WithClock(func() time.Time { return now })

	require.NoError(t, m.Request(ctx, fileID, filetransfer.Download))
	require.NoError(t, m.Start(ctx, fileID, filetransfer.Download))
	require.NoError(t, m.Fail(ctx, fileID, filetransfer.Download))

	// Immediately retrying, before the backoff window elapses, is rejected.
	err := m.Request(ctx, fileID, filetransfer.Download)
	require.ErrorIs(t, err, filetransfer.ErrBackoffNotElapsed)

	// Advance the clock past the first backoff delay (1 minute).
	now = now.Add(2 * time.Minute)
	require.NoError(t, m.Request(ctx, fileID, filetransfer.Download))

	fs, err := store.FetchFileState(ctx, fileID)
	require.NoError(t, err)
	require.Equal(t, "pending", fs.DownloadStatus)
	require.Equal(t, 1, fs.DownloadRetries, "retry counter carries over into the new pending state")
}

func TestIllegalTransitionRejected(t *testing.T) {
	ctx := context.Background()
	store, fileID := newFixture(t)
	bus := eventbus.New(slog.Default())
	m := filetransfer.New(store, bus)

	// Cannot Complete directly from None.
	err := m.Complete(ctx, fileID, filetransfer.Download)
	require.ErrorIs(t, err, filetransfer.ErrIllegalTransition)
}

func TestProgressOutOfRangeRejected(t *testing.T) {
	ctx := context.Background()
	store, fileID := newFixture(t)
	bus := eventbus.New(slog.Default())
	m := filetransfer.New(store, bus)

	require.NoError(t, m.Request(ctx, fileID, filetransfer.Download))
	require.NoError(t, m.Start(ctx, fileID, filetransfer.Download))

	require.Error(t, m.Progress(ctx, fileID, filetransfer.Download, 101))
	require.Error(t, m.Progress(ctx, fileID, filetransfer.Download, -1))
}
