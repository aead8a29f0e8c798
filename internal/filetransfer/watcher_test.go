package filetransfer_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/workspace-engine/core/internal/eventbus"
	"github.com/workspace-engine/core/internal/filetransfer"
	"github.com/workspace-engine/core/internal/id"
)

func TestBlobWatcherPublishesOnExternalWrite(t *testing.T) {
	dir := t.TempDir()
	bus := eventbus.New(slog.Default())

	var seen []any
	bus.Subscribe(func(ev eventbus.Event) {
		if ev.Name == eventbus.FileBlobExternallyModified {
			seen = append(seen, ev.Payload)
		}
	})

	bw, err := filetransfer.NewBlobWatcher(dir, bus, slog.Default())
	require.NoError(t, err)
	defer bw.Close()

	fileID := id.New(id.KindNode)
	blobPath := filepath.Join(dir, fileID.String()+".bin")
	require.NoError(t, os.WriteFile(blobPath, []byte("hello"), 0o600))

	require.Eventually(t, func() bool {
		return len(seen) == 1
	}, time.Second, 10*time.Millisecond)

	require.Equal(t, fileID.String(), seen[0])
}

func TestBlobWatcherIgnoresNonIDFiles(t *testing.T) {
	dir := t.TempDir()
	bus := eventbus.New(slog.Default())

	var seen []any
	bus.Subscribe(func(ev eventbus.Event) {
		if ev.Name == eventbus.FileBlobExternallyModified {
			seen = append(seen, ev.Payload)
		}
	})

	bw, err := filetransfer.NewBlobWatcher(dir, bus, slog.Default())
	require.NoError(t, err)
	defer bw.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "scratch.tmp"), []byte("x"), 0o600))

	time.Sleep(50 * time.Millisecond)
	require.Empty(t, seen)
}
