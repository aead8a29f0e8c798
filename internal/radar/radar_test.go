package radar_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/workspace-engine/core/internal/eventbus"
	"github.com/workspace-engine/core/internal/id"
	"github.com/workspace-engine/core/internal/radar"
	"github.com/workspace-engine/core/internal/wsstore"
)

func newFixture(t *testing.T) (*wsstore.Store, id.ID, id.ID) {
	t.Helper()

	bus := eventbus.New(slog.Default())
	store, err := wsstore.Open(context.Background(), ":memory:", slog.Default(), bus, wsstore.SchemaRegistry{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	spaceID := id.New(id.KindNode)
	require.NoError(t, store.ApplyRemoteNode(ctx, wsstore.RemoteNode{
		ID: spaceID, Attributes: map[string]any{"type": "space", "name": "s"},
		RootID: spaceID, ServerRevision: "r0",
		CreatedAt: "t0", CreatedBy: "u1", UpdatedAt: "t0", UpdatedBy: "u1",
	}))

	pageID := id.New(id.KindNode)
	require.NoError(t, store.ApplyRemoteNode(ctx, wsstore.RemoteNode{
		ID: pageID, Attributes: map[string]any{"type": "page", "name": "p", "parentId": spaceID.String()},
		RootID: spaceID, ServerRevision: "r1",
		CreatedAt: "t0", CreatedBy: "u1", UpdatedAt: "t5", UpdatedBy: "u1",
	}))

	return store, spaceID, pageID
}

func TestSummarizeFlagsUnseenPageAsNewActivity(t *testing.T) {
	ctx := context.Background()
	store, spaceID, pageID := newFixture(t)
	reader := radar.New(store)

	out, err := reader.Summarize(ctx, radar.Input{RootID: spaceID, UserID: "u2"})
	require.NoError(t, err)

	var found bool
	for _, a := range out {
		if a.NodeID == pageID {
			found = true
			require.True(t, a.HasNewActivity)
		}
	}
	require.True(t, found, "page never seen by u2 must be reported")
}

func TestSummarizeOmitsPageOnceSeenAfterLastUpdate(t *testing.T) {
	ctx := context.Background()
	store, spaceID, pageID := newFixture(t)
	reader := radar.New(store)

	require.NoError(t, store.RecordInteractionSeen(ctx, pageID, "u2", "t9"))

	out, err := reader.Summarize(ctx, radar.Input{RootID: spaceID, UserID: "u2"})
	require.NoError(t, err)

	for _, a := range out {
		require.NotEqual(t, pageID, a.NodeID, "page seen after its last update should not surface as new activity")
	}
}

func TestSummarizeIncludesUnreadMentionsAndReactionCount(t *testing.T) {
	ctx := context.Background()
	store, spaceID, pageID := newFixture(t)
	reader := radar.New(store)

	require.NoError(t, store.IncrementCounter(ctx, pageID, "unread_mentions", 3))
	_, err := store.AddReaction(ctx, pageID, "u3", "thumbsup", "t1")
	require.NoError(t, err)

	require.NoError(t, store.RecordInteractionSeen(ctx, pageID, "u2", "t9"))

	out, err := reader.Summarize(ctx, radar.Input{RootID: spaceID, UserID: "u2"})
	require.NoError(t, err)

	var activity *radar.NodeActivity
	for i := range out {
		if out[i].NodeID == pageID {
			activity = &out[i]
		}
	}

	require.NotNil(t, activity, "page has unread mentions and a reaction even though it was seen")
	require.Equal(t, 3, activity.UnreadMentions)
	require.Equal(t, 1, activity.ReactionCount)
	require.False(t, activity.HasNewActivity)
}

func TestQueryHandlerCheckForChangesIgnoresUnrelatedEvents(t *testing.T) {
	ctx := context.Background()
	store, spaceID, _ := newFixture(t)
	handler := radar.NewQueryHandler(radar.New(store))

	hasChanges, _, err := handler.CheckForChanges(ctx, eventbus.Event{Name: eventbus.AccountUpdated}, radar.Input{RootID: spaceID, UserID: "u2"}, nil)
	require.NoError(t, err)
	require.False(t, hasChanges)

	hasChanges, out, err := handler.CheckForChanges(ctx, eventbus.Event{Name: eventbus.NodeUpdated}, radar.Input{RootID: spaceID, UserID: "u2"}, nil)
	require.NoError(t, err)
	require.True(t, hasChanges)
	require.NotNil(t, out)
}
