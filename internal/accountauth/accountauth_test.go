package accountauth_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/workspace-engine/core/internal/accountauth"
	"github.com/workspace-engine/core/internal/appdb"
)

const testTokenJSON = `{
	"access_token": "access-1",
	"token_type": "Bearer",
	"refresh_token": "refresh-1",
	"expires_in": 3600
}`

func newMockTokenServer(t *testing.T, body string) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv.URL
}

func newStore(t *testing.T) *appdb.AppStore {
	t.Helper()

	store, err := appdb.OpenApp(context.Background(), ":memory:", slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestTokenRefreshesAndPersistsToStore(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	require.NoError(t, store.UpsertServer(ctx, appdb.Server{Domain: "example.com", Name: "Example", Version: "1", CreatedAt: "t0"}))
	require.NoError(t, store.UpsertAccount(ctx, appdb.Account{
		ID: "acc_1", Server: "example.com", Name: "Alice", Email: "alice@example.com",
		Token: "stale-refresh-token", DeviceID: "dev_1", CreatedAt: "t0", UpdatedAt: "t0",
	}))

	tokenURL := newMockTokenServer(t, testTokenJSON)

	acct, err := store.FetchAccount(ctx, "acc_1")
	require.NoError(t, err)

	ts := accountauth.NewTokenSource(ctx, accountauth.ServerEndpoint{
		TokenURL: tokenURL, ClientID: "client-1", Scopes: []string{"offline_access"},
	}, acct, store, slog.Default(), func() string { return "t1" })

	tok, err := ts.Token()
	require.NoError(t, err)
	require.Equal(t, "access-1", tok)

	updated, err := store.FetchAccount(ctx, "acc_1")
	require.NoError(t, err)
	require.Equal(t, "refresh-1", updated.Token)
	require.Equal(t, "t1", updated.UpdatedAt)
}

func TestTokenSurfacesRefreshFailure(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	require.NoError(t, store.UpsertServer(ctx, appdb.Server{Domain: "example.com", Name: "Example", Version: "1", CreatedAt: "t0"}))
	require.NoError(t, store.UpsertAccount(ctx, appdb.Account{
		ID: "acc_1", Server: "example.com", Name: "Alice", Email: "alice@example.com",
		Token: "stale-refresh-token", DeviceID: "dev_1", CreatedAt: "t0", UpdatedAt: "t0",
	}))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	acct, err := store.FetchAccount(ctx, "acc_1")
	require.NoError(t, err)

	ts := accountauth.NewTokenSource(ctx, accountauth.ServerEndpoint{
		TokenURL: srv.URL, ClientID: "client-1",
	}, acct, store, slog.Default(), nil)

	_, err = ts.Token()
	require.Error(t, err)
}
