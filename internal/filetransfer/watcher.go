package filetransfer

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/workspace-engine/core/internal/eventbus"
	"github.com/workspace-engine/core/internal/id"
)

// BlobWatcher watches one workspace's file blob directory for writes made
// outside the transfer state machine (a user editing a downloaded file in
// place) and republishes them as eventbus.FileBlobExternallyModified, so a
// subscriber can re-upload or re-request the blob as appropriate. It does
// not itself decide what to do about the change.
type BlobWatcher struct {
	watcher *fsnotify.Watcher
	bus     *eventbus.Bus
	logger  *slog.Logger
	done    chan struct{}
}

// NewBlobWatcher starts watching dir (normally Resolver.FilesDir(...)) for
// writes and renames. The caller must call Close when done.
func NewBlobWatcher(dir string, bus *eventbus.Bus, logger *slog.Logger) (*BlobWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}

	bw := &BlobWatcher{watcher: w, bus: bus, logger: logger, done: make(chan struct{})}

	go bw.run()

	return bw, nil
}

func (bw *BlobWatcher) run() {
	defer close(bw.done)

	for {
		select {
		case ev, ok := <-bw.watcher.Events:
			if !ok {
				return
			}

			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				bw.handle(ev.Name)
			}
		case err, ok := <-bw.watcher.Errors:
			if !ok {
				return
			}

			bw.logger.Warn("filetransfer: blob watcher error", slog.String("error", err.Error()))
		}
	}
}

func (bw *BlobWatcher) handle(path string) {
	fileID, ok := fileIDFromBlobPath(path)
	if !ok {
		return
	}

	bw.bus.Publish(eventbus.Event{Name: eventbus.FileBlobExternallyModified, Payload: fileID.String()})
}

// fileIDFromBlobPath recovers the file node id from a blob path named
// fileId.ext (the layout Resolver.FileBlob produces), or reports ok=false
// for anything that doesn't parse as one of this engine's ids (temp files,
// editor swap files, partial downloads).
func fileIDFromBlobPath(path string) (id.ID, bool) {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))

	parsed, err := id.Parse(name)
	if err != nil || parsed.Kind() != id.KindNode {
		return id.ID{}, false
	}

	return parsed, true
}

// Close stops the watcher and waits for its goroutine to exit.
func (bw *BlobWatcher) Close() error {
	err := bw.watcher.Close()
	<-bw.done
	return err
}
