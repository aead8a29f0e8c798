package appservice_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workspace-engine/core/internal/appdb"
	"github.com/workspace-engine/core/internal/appservice"
	"github.com/workspace-engine/core/internal/pathresolve"
)

type fakeInvalidator struct {
	err  error
	seen []string
}

func (f *fakeInvalidator) InvalidateToken(_ context.Context, _, token string) error {
	f.seen = append(f.seen, token)
	return f.err
}

func newFixture(t *testing.T) (*appdb.AppStore, *pathresolve.Resolver) {
	t.Helper()

	store, err := appdb.OpenApp(context.Background(), ":memory:", slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	paths := pathresolve.New(t.TempDir())
	require.NoError(t, paths.EnsureDirs("", ""))

	return store, paths
}

func stageToken(t *testing.T, store *appdb.AppStore) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.UpsertServer(ctx, appdb.Server{Domain: "example.com", Name: "Example", Version: "1", CreatedAt: "t0"}))
	require.NoError(t, store.UpsertAccount(ctx, appdb.Account{
		ID: "acc_1", Server: "example.com", Name: "Alice", Email: "alice@example.com",
		Token: "tok_abc", DeviceID: "dev_1", CreatedAt: "t0", UpdatedAt: "t0",
	}))
	require.NoError(t, store.LogoutAccount(ctx, "acc_1", "t1"))
}

func TestRunOnceConfirmsSuccessfullyInvalidatedToken(t *testing.T) {
	ctx := context.Background()
	store, paths := newFixture(t)
	stageToken(t, store)

	inv := &fakeInvalidator{}
	task := appservice.New(store, paths, inv, slog.Default())

	require.NoError(t, task.RunOnce(ctx))

	pending, err := store.PendingDeletedTokens(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Equal(t, []string{"tok_abc"}, inv.seen)
}

func TestRunOnceDropsTokenOnAccountGone(t *testing.T) {
	ctx := context.Background()
	store, paths := newFixture(t)
	stageToken(t, store)

	inv := &fakeInvalidator{err: appservice.ErrAccountGone}
	task := appservice.New(store, paths, inv, slog.Default())

	require.NoError(t, task.RunOnce(ctx))

	pending, err := store.PendingDeletedTokens(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRunOnceRetainsTokenOnTransientFailure(t *testing.T) {
	ctx := context.Background()
	store, paths := newFixture(t)
	stageToken(t, store)

	inv := &fakeInvalidator{err: errors.New("network unreachable")}
	task := appservice.New(store, paths, inv, slog.Default())

	require.NoError(t, task.RunOnce(ctx))

	pending, err := store.PendingDeletedTokens(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
}

func TestRunOnceDeletesTempFilesOlderThanMaxAge(t *testing.T) {
	ctx := context.Background()
	store, paths := newFixture(t)

	oldPath := filepath.Join(paths.TempDir(), "stale.part")
	require.NoError(t, os.WriteFile(oldPath, []byte("x"), 0o600))
	oldTime := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldPath, oldTime, oldTime))

	freshPath := filepath.Join(paths.TempDir(), "fresh.part")
	require.NoError(t, os.WriteFile(freshPath, []byte("x"), 0o600))

	task := appservice.New(store, paths, &fakeInvalidator{}, slog.Default())
	require.NoError(t, task.RunOnce(ctx))

	_, err := os.Stat(oldPath)
	assert.True(t, os.IsNotExist(err))

	_, err = os.Stat(freshPath)
	assert.NoError(t, err)
}

func TestTriggerRunsImmediatelyWhenPastDebounce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, paths := newFixture(t)
	stageToken(t, store)

	inv := &fakeInvalidator{}
	task := appservice.New(store, paths, inv, slog.Default()).
		WithInterval(time.Hour).
		WithDebounce(time.Millisecond)

	done := make(chan struct{})
	go func() {
		_ = task.Run(ctx)
		close(done)
	}()

	task.Trigger()

	require.Eventually(t, func() bool {
		pending, err := store.PendingDeletedTokens(ctx)
		return err == nil && len(pending) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
