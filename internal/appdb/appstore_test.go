package appdb_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/workspace-engine/core/internal/appdb"
)

func newAppStore(t *testing.T) *appdb.AppStore {
	t.Helper()

	store, err := appdb.OpenApp(context.Background(), ":memory:", slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestUpsertServerThenFetchRoundTrips(t *testing.T) {
	ctx := context.Background()
	db := newAppStore(t)

	require.NoError(t, db.UpsertServer(ctx, appdb.Server{
		Domain: "example.com", Name: "Example", Version: "1.0.0", CreatedAt: "t0",
	}))

	sv, err := db.FetchServer(ctx, "example.com")
	require.NoError(t, err)
	require.Equal(t, "Example", sv.Name)

	require.NoError(t, db.UpsertServer(ctx, appdb.Server{
		Domain: "example.com", Name: "Example Renamed", Version: "1.0.1", CreatedAt: "t0",
	}))

	sv, err = db.FetchServer(ctx, "example.com")
	require.NoError(t, err)
	require.Equal(t, "Example Renamed", sv.Name)
	require.Equal(t, "1.0.1", sv.Version)
}

func TestFetchServerMissingReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	db := newAppStore(t)

	_, err := db.FetchServer(ctx, "nowhere.example")
	require.ErrorIs(t, err, appdb.ErrNotFound)
}

func TestLogoutAccountStagesDeletedToken(t *testing.T) {
	ctx := context.Background()
	db := newAppStore(t)

	require.NoError(t, db.UpsertServer(ctx, appdb.Server{Domain: "example.com", Name: "Example", Version: "1.0.0", CreatedAt: "t0"}))
	require.NoError(t, db.UpsertAccount(ctx, appdb.Account{
		ID: "acc_1", Server: "example.com", Name: "Alice", Email: "alice@example.com",
		Token: "tok_abc", DeviceID: "dev_1", CreatedAt: "t0", UpdatedAt: "t0",
	}))

	require.NoError(t, db.LogoutAccount(ctx, "acc_1", "t1"))

	_, err := db.FetchAccount(ctx, "acc_1")
	require.ErrorIs(t, err, appdb.ErrNotFound)

	pending, err := db.PendingDeletedTokens(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "tok_abc", pending[0].Token)
	require.Equal(t, 0, pending[0].Attempts)
}

func TestMarkTokenInvalidationAttemptThenConfirm(t *testing.T) {
	ctx := context.Background()
	db := newAppStore(t)

	require.NoError(t, db.UpsertServer(ctx, appdb.Server{Domain: "example.com", Name: "Example", Version: "1.0.0", CreatedAt: "t0"}))
	require.NoError(t, db.UpsertAccount(ctx, appdb.Account{
		ID: "acc_1", Server: "example.com", Name: "Alice", Email: "alice@example.com",
		Token: "tok_abc", DeviceID: "dev_1", CreatedAt: "t0", UpdatedAt: "t0",
	}))
	require.NoError(t, db.LogoutAccount(ctx, "acc_1", "t1"))

	pending, err := db.PendingDeletedTokens(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, db.MarkTokenInvalidationAttempt(ctx, pending[0].ID, "t2"))

	pending, err = db.PendingDeletedTokens(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, pending[0].Attempts)
	require.Equal(t, "t2", pending[0].LastTriedAt)

	require.NoError(t, db.ConfirmTokenInvalidated(ctx, pending[0].ID))

	pending, err = db.PendingDeletedTokens(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestAppMetadataRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newAppStore(t)

	require.NoError(t, db.SetMetadata(ctx, "device_id", "dev_abc"))

	v, err := db.FetchMetadata(ctx, "device_id")
	require.NoError(t, err)
	require.Equal(t, "dev_abc", v)

	_, err = db.FetchMetadata(ctx, "missing")
	require.ErrorIs(t, err, appdb.ErrNotFound)
}

func TestUpdateAccountTokenPersistsRefresh(t *testing.T) {
	ctx := context.Background()
	db := newAppStore(t)

	require.NoError(t, db.UpsertServer(ctx, appdb.Server{Domain: "example.com", Name: "Example", Version: "1.0.0", CreatedAt: "t0"}))
	require.NoError(t, db.UpsertAccount(ctx, appdb.Account{
		ID: "acc_1", Server: "example.com", Name: "Alice", Email: "alice@example.com",
		Token: "tok_old", DeviceID: "dev_1", CreatedAt: "t0", UpdatedAt: "t0",
	}))

	require.NoError(t, db.UpdateAccountToken(ctx, "acc_1", "tok_new", "t1"))

	acc, err := db.FetchAccount(ctx, "acc_1")
	require.NoError(t, err)
	require.Equal(t, "tok_new", acc.Token)
	require.Equal(t, "t1", acc.UpdatedAt)
}

func TestUpdateAccountTokenMissingReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	db := newAppStore(t)

	err := db.UpdateAccountToken(ctx, "acc_missing", "tok", "t1")
	require.ErrorIs(t, err, appdb.ErrNotFound)
}

func TestListAccountsScopedByServer(t *testing.T) {
	ctx := context.Background()
	db := newAppStore(t)

	require.NoError(t, db.UpsertServer(ctx, appdb.Server{Domain: "a.example", Name: "A", Version: "1", CreatedAt: "t0"}))
	require.NoError(t, db.UpsertServer(ctx, appdb.Server{Domain: "b.example", Name: "B", Version: "1", CreatedAt: "t0"}))

	require.NoError(t, db.UpsertAccount(ctx, appdb.Account{ID: "acc_1", Server: "a.example", Name: "Alice", Email: "a@a.example", Token: "t", DeviceID: "d", CreatedAt: "t0", UpdatedAt: "t0"}))
	require.NoError(t, db.UpsertAccount(ctx, appdb.Account{ID: "acc_2", Server: "b.example", Name: "Bob", Email: "b@b.example", Token: "t", DeviceID: "d", CreatedAt: "t0", UpdatedAt: "t0"}))

	all, err := db.ListAccounts(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	scoped, err := db.ListAccounts(ctx, "a.example")
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	require.Equal(t, "acc_1", scoped[0].ID)
}
