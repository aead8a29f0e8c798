package appdb_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/workspace-engine/core/internal/appdb"
)

func newAccountStore(t *testing.T) *appdb.AccountStore {
	t.Helper()

	store, err := appdb.OpenAccount(context.Background(), ":memory:", slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestUpsertWorkspaceThenFetchRoundTrips(t *testing.T) {
	ctx := context.Background()
	db := newAccountStore(t)

	require.NoError(t, db.UpsertWorkspace(ctx, appdb.Workspace{
		ID: "ws_1", AccountID: "acc_1", UserID: "u1", Role: "owner", Name: "Acme",
		StorageLimit: 1 << 30, MaxFileSize: 1 << 20, CreatedAt: "t0", UpdatedAt: "t0",
	}))

	w, err := db.FetchWorkspace(ctx, "ws_1")
	require.NoError(t, err)
	require.Equal(t, "owner", w.Role)
	require.Equal(t, "Acme", w.Name)

	require.NoError(t, db.UpsertWorkspace(ctx, appdb.Workspace{
		ID: "ws_1", AccountID: "acc_1", UserID: "u1", Role: "admin", Name: "Acme Renamed",
		StorageLimit: 1 << 30, MaxFileSize: 1 << 20, CreatedAt: "t0", UpdatedAt: "t1",
	}))

	w, err = db.FetchWorkspace(ctx, "ws_1")
	require.NoError(t, err)
	require.Equal(t, "admin", w.Role, "role demotion must overwrite on re-sync")
	require.Equal(t, "Acme Renamed", w.Name)
}

func TestFetchWorkspaceMissingReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	db := newAccountStore(t)

	_, err := db.FetchWorkspace(ctx, "ws_missing")
	require.ErrorIs(t, err, appdb.ErrNotFound)
}

func TestListWorkspacesAndRemove(t *testing.T) {
	ctx := context.Background()
	db := newAccountStore(t)

	require.NoError(t, db.UpsertWorkspace(ctx, appdb.Workspace{ID: "ws_1", AccountID: "acc_1", UserID: "u1", Role: "owner", Name: "A", CreatedAt: "t0", UpdatedAt: "t0"}))
	require.NoError(t, db.UpsertWorkspace(ctx, appdb.Workspace{ID: "ws_2", AccountID: "acc_1", UserID: "u1", Role: "guest", Name: "B", CreatedAt: "t0", UpdatedAt: "t0"}))

	all, err := db.ListWorkspaces(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	require.NoError(t, db.RemoveWorkspace(ctx, "ws_2"))

	all, err = db.ListWorkspaces(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "ws_1", all[0].ID)
}

func TestAccountMetadataRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newAccountStore(t)

	require.NoError(t, db.SetMetadata(ctx, "last_synced_at", "t9"))

	v, err := db.FetchMetadata(ctx, "last_synced_at")
	require.NoError(t, err)
	require.Equal(t, "t9", v)

	_, err = db.FetchMetadata(ctx, "missing")
	require.ErrorIs(t, err, appdb.ErrNotFound)
}
