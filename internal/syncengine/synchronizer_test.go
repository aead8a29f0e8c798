package syncengine_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/workspace-engine/core/internal/eventbus"
	"github.com/workspace-engine/core/internal/syncengine"
	"github.com/workspace-engine/core/internal/wsstore"
)

type fakePuller struct {
	batches map[syncengine.Stream][]syncengine.Entry
	calls   int
}

func (f *fakePuller) Pull(ctx context.Context, stream syncengine.Stream, since string, limit int) (syncengine.Batch, error) {
	f.calls++

	all := f.batches[stream]

	start := 0
	for i, e := range all {
		if e.Ordinal == since {
			start = i + 1
			break
		}
	}

	return syncengine.Batch{Entries: all[start:]}, nil
}

func newStore(t *testing.T) *wsstore.Store {
	t.Helper()

	bus := eventbus.New(slog.Default())
	store, err := wsstore.Open(context.Background(), ":memory:", slog.Default(), bus, wsstore.SchemaRegistry{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestPullStreamAdvancesCursorPerEntry(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	puller := &fakePuller{batches: map[syncengine.Stream][]syncengine.Entry{
		syncengine.StreamUsers: {
			{Ordinal: "1", Payload: json.RawMessage(`{}`)},
			{Ordinal: "2", Payload: json.RawMessage(`{}`)},
			{Ordinal: "3", Payload: json.RawMessage(`{}`)},
		},
	}}

	var applied []string
	appliers := map[syncengine.Stream]syncengine.ApplyFunc{
		syncengine.StreamUsers: func(ctx context.Context, e syncengine.Entry) error {
			applied = append(applied, e.Ordinal)
			return nil
		},
	}

	sync := syncengine.New(store, puller, appliers, slog.Default(), nil, func() string { return "t1" })
	require.NoError(t, sync.PullAll(ctx))

	require.Equal(t, []string{"1", "2", "3"}, applied)

	cursor, err := store.GetCursor(ctx, string(syncengine.StreamUsers))
	require.NoError(t, err)
	require.Equal(t, "3", cursor)
}

func TestPullStreamResumesFromLastGoodCursorAfterMidBatchFailure(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	puller := &fakePuller{batches: map[syncengine.Stream][]syncengine.Entry{
		syncengine.StreamUsers: {
			{Ordinal: "1", Payload: json.RawMessage(`{}`)},
			{Ordinal: "2", Payload: json.RawMessage(`{}`)},
		},
	}}

	attempt := 0
	appliers := map[syncengine.Stream]syncengine.ApplyFunc{
		syncengine.StreamUsers: func(ctx context.Context, e syncengine.Entry) error {
			attempt++
			if e.Ordinal == "2" && attempt == 2 {
				return assertErr
			}
			return nil
		},
	}

	sync := syncengine.New(store, puller, appliers, slog.Default(), nil, func() string { return "t1" })
	_ = sync.PullAll(ctx) // first entry 1 applies & cursor advances, entry 2 fails

	cursor, err := store.GetCursor(ctx, string(syncengine.StreamUsers))
	require.NoError(t, err)
	require.Equal(t, "1", cursor, "cursor must not advance past the failed entry")

	// Retry: entry 2 now succeeds (attempt counter no longer equals 2).
	require.NoError(t, sync.PullAll(ctx))

	cursor, err = store.GetCursor(ctx, string(syncengine.StreamUsers))
	require.NoError(t, err)
	require.Equal(t, "2", cursor)
}

var assertErr = &fakeApplyError{}

type fakeApplyError struct{}

func (e *fakeApplyError) Error() string { return "simulated apply failure" }

func TestLagGaugeReportsZeroOnceCaughtUp(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	puller := &fakePuller{batches: map[syncengine.Stream][]syncengine.Entry{
		syncengine.StreamUsers: {
			{Ordinal: "1", Payload: json.RawMessage(`{}`)},
		},
	}}

	appliers := map[syncengine.Stream]syncengine.ApplyFunc{
		syncengine.StreamUsers: func(ctx context.Context, e syncengine.Entry) error { return nil },
	}

	type report struct {
		stream string
		lag    float64
	}
	var reports []report

	sync := syncengine.New(store, puller, appliers, slog.Default(), nil, func() string { return "t1" })
	sync.WithLagGauge(func(stream string, lag float64) { reports = append(reports, report{stream, lag}) })

	require.NoError(t, sync.PullAll(ctx))
	require.Equal(t, []report{{string(syncengine.StreamUsers), 0}}, reports)
}
