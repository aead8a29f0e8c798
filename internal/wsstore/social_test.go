package wsstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/workspace-engine/core/internal/id"
	"github.com/workspace-engine/core/internal/wsstore"
)

func TestRecordInteractionSeenThenOpenedTracksBothTimestamps(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)

	spaceID := id.New(id.KindNode)
	seedSpace(t, db, spaceID, "t0")

	require.NoError(t, db.RecordInteractionSeen(ctx, spaceID, "u1", "t1"))
	require.NoError(t, db.RecordInteractionOpened(ctx, spaceID, "u1", "t2"))

	ni, err := db.FetchInteraction(ctx, spaceID, "u1")
	require.NoError(t, err)
	require.Equal(t, "t1", ni.FirstSeenAt)
	require.Equal(t, "t1", ni.LastSeenAt)
	require.Equal(t, "t2", ni.FirstOpenedAt)
	require.Equal(t, "t2", ni.LastOpenedAt)

	require.NoError(t, db.RecordInteractionSeen(ctx, spaceID, "u1", "t3"))

	ni, err = db.FetchInteraction(ctx, spaceID, "u1")
	require.NoError(t, err)
	require.Equal(t, "t1", ni.FirstSeenAt, "first_seen_at does not move on a later seen")
	require.Equal(t, "t3", ni.LastSeenAt)
}

func TestAddReactionRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)

	spaceID := id.New(id.KindNode)
	seedSpace(t, db, spaceID, "t0")

	added, err := db.AddReaction(ctx, spaceID, "u1", "thumbsup", "t1")
	require.NoError(t, err)
	require.True(t, added)

	added, err = db.AddReaction(ctx, spaceID, "u1", "thumbsup", "t2")
	require.NoError(t, err)
	require.False(t, added, "the same user cannot add the same reaction twice")

	reactions, err := db.ListReactions(ctx, spaceID)
	require.NoError(t, err)
	require.Len(t, reactions, 1)
}

func TestRemoveReactionThenReAddSucceeds(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)

	spaceID := id.New(id.KindNode)
	seedSpace(t, db, spaceID, "t0")

	_, err := db.AddReaction(ctx, spaceID, "u1", "heart", "t1")
	require.NoError(t, err)

	removed, err := db.RemoveReaction(ctx, spaceID, "u1", "heart", "t2")
	require.NoError(t, err)
	require.True(t, removed)

	added, err := db.AddReaction(ctx, spaceID, "u1", "heart", "t3")
	require.NoError(t, err)
	require.True(t, added)
}

func TestIncrementCounterAccumulates(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)

	spaceID := id.New(id.KindNode)
	seedSpace(t, db, spaceID, "t0")

	require.NoError(t, db.IncrementCounter(ctx, spaceID, "unread_mentions", 1))
	require.NoError(t, db.IncrementCounter(ctx, spaceID, "unread_mentions", 2))

	v, err := db.FetchCounter(ctx, spaceID, "unread_mentions")
	require.NoError(t, err)
	require.Equal(t, 3, v)

	missing, err := db.FetchCounter(ctx, spaceID, "children_count")
	require.NoError(t, err)
	require.Equal(t, 0, missing)
}

func TestCollaborationRoundTripAndFetchRolesForUser(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)

	spaceID := id.New(id.KindNode)
	pageID := id.New(id.KindNode)
	seedSpace(t, db, spaceID, "t0")
	seedPage(t, db, pageID, spaceID, "t0")

	require.NoError(t, db.SetCollaboration(ctx, spaceID, "u1", "admin", "t1"))
	require.NoError(t, db.SetCollaboration(ctx, pageID, "u1", "editor", "t1"))

	c, err := db.FetchCollaboration(ctx, spaceID, "u1")
	require.NoError(t, err)
	require.Equal(t, "admin", c.Role)

	roles, err := db.FetchRolesForUser(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "admin", roles[spaceID.String()])
	require.Equal(t, "editor", roles[pageID.String()])

	require.NoError(t, db.RemoveCollaboration(ctx, pageID, "u1"))
	_, err = db.FetchCollaboration(ctx, pageID, "u1")
	require.ErrorIs(t, err, wsstore.ErrNotFound)
}
