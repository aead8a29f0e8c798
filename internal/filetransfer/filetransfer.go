// Package filetransfer tracks the upload/download lifecycle of file nodes
// (§4.6). Byte transfer itself is out of scope; this package owns only the
// two finite-state sub-machines and their persistence.
package filetransfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/workspace-engine/core/internal/eventbus"
	"github.com/workspace-engine/core/internal/id"
	"github.com/workspace-engine/core/internal/socksession"
	"github.com/workspace-engine/core/internal/wsstore"
)

// Status is shared by both the download and upload sub-machines: None →
// Pending → InProgress → (Completed | Failed → Pending).
type Status string

const (
	StatusNone       Status = "none"
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ErrIllegalTransition is returned when a requested transition is not
// reachable from the sub-machine's current state.
var ErrIllegalTransition = errors.New("filetransfer: illegal transition")

// ErrAnotherDirectionInProgress is returned when starting one sub-machine
// while the other is already InProgress for the same node (§4.6 invariant:
// only one sub-machine may be InProgress at a time per file id).
var ErrAnotherDirectionInProgress = errors.New("filetransfer: other direction already in progress")

// ErrBackoffNotElapsed is returned when retrying from Failed before the
// backoff policy permits another attempt.
var ErrBackoffNotElapsed = errors.New("filetransfer: backoff window has not elapsed")

var allowedFrom = map[Status][]Status{
	StatusNone:       {StatusPending},
	StatusPending:    {StatusInProgress},
	StatusInProgress: {StatusCompleted, StatusFailed},
	StatusFailed:     {StatusPending},
	StatusCompleted:  {},
}

func canTransition(from, to Status) bool {
	for _, s := range allowedFrom[from] {
		if s == to {
			return true
		}
	}

	return false
}

// Direction distinguishes the download and upload sub-machines.
type Direction int

const (
	Download Direction = iota
	Upload
)

// Machine drives both sub-machines for one workspace's file nodes.
type Machine struct {
	store   *wsstore.Store
	bus     *eventbus.Bus
	backoff socksession.BackoffCalculator
	now     func() time.Time
}

// New constructs a Machine over store, publishing lifecycle events on bus.
func New(store *wsstore.Store, bus *eventbus.Bus) *Machine {
	return &Machine{store: store, bus: bus, backoff: socksession.GenericBackoff, now: time.Now}
}

// WithBackoff overrides the retry policy (tests, or a faster-retry config).
func (m *Machine) WithBackoff(b socksession.BackoffCalculator) *Machine {
	m.backoff = b
	return m
}

// WithClock overrides the time source (tests).
func (m *Machine) WithClock(now func() time.Time) *Machine {
	m.now = now
	return m
}

func (m *Machine) nowString() string {
	return m.now().UTC().Format(time.RFC3339Nano)
}

func statusAndRetries(fs wsstore.FileState, dir Direction) (status Status, retries int, startedAt, completedAt string) {
	if dir == Download {
		return Status(fs.DownloadStatus), fs.DownloadRetries, fs.DownloadStartedAt, fs.DownloadCompletedAt
	}

	return Status(fs.UploadStatus), fs.UploadRetries, fs.UploadStartedAt, fs.UploadCompletedAt
}

func otherInProgress(fs wsstore.FileState, dir Direction) bool {
	if dir == Download {
		return Status(fs.UploadStatus) == StatusInProgress
	}

	return Status(fs.DownloadStatus) == StatusInProgress
}

func (m *Machine) persist(ctx context.Context, nodeID id.ID, dir Direction, status Status, progress, retries int, startedAt, completedAt string) error {
	if dir == Download {
		return m.store.UpdateDownloadState(ctx, nodeID, string(status), progress, retries, startedAt, completedAt)
	}

	return m.store.UpdateUploadState(ctx, nodeID, string(status), progress, retries, startedAt, completedAt)
}

// Request moves a sub-machine from None, or from Failed once the backoff
// window has elapsed, into Pending.
func (m *Machine) Request(ctx context.Context, nodeID id.ID, dir Direction) error {
	fs, err := m.store.FetchFileState(ctx, nodeID)
	if err != nil {
		return fmt.Errorf("filetransfer: fetch state: %w", err)
	}

	status, retries, startedAt, _ := statusAndRetries(fs, dir)

	if !canTransition(status, StatusPending) {
		return fmt.Errorf("%w: %s -> pending", ErrIllegalTransition, status)
	}

	if status == StatusFailed {
		last, parseErr := time.Parse(time.RFC3339Nano, startedAt)
		if parseErr == nil && !m.backoff.CanRetry(retries, last, m.now()) {
			return ErrBackoffNotElapsed
		}
	}

	if err := m.persist(ctx, nodeID, dir, StatusPending, 0, retries, "", ""); err != nil {
		return err
	}

	return nil
}

// Start moves Pending → InProgress, recording the start timestamp. Fails
// with ErrAnotherDirectionInProgress if the opposite sub-machine is
// currently InProgress.
func (m *Machine) Start(ctx context.Context, nodeID id.ID, dir Direction) error {
	fs, err := m.store.FetchFileState(ctx, nodeID)
	if err != nil {
		return fmt.Errorf("filetransfer: fetch state: %w", err)
	}

	status, retries, _, _ := statusAndRetries(fs, dir)

	if !canTransition(status, StatusInProgress) {
		return fmt.Errorf("%w: %s -> in_progress", ErrIllegalTransition, status)
	}

	if otherInProgress(fs, dir) {
		return ErrAnotherDirectionInProgress
	}

	return m.persist(ctx, nodeID, dir, StatusInProgress, 0, retries, m.nowString(), "")
}

// Progress updates an InProgress sub-machine's percentage complete.
func (m *Machine) Progress(ctx context.Context, nodeID id.ID, dir Direction, pct int) error {
	if pct < 0 || pct > 100 {
		return fmt.Errorf("filetransfer: progress %d out of range [0,100]", pct)
	}

	fs, err := m.store.FetchFileState(ctx, nodeID)
	if err != nil {
		return fmt.Errorf("filetransfer: fetch state: %w", err)
	}

	status, retries, startedAt, _ := statusAndRetries(fs, dir)
	if status != StatusInProgress {
		return fmt.Errorf("%w: progress update requires in_progress, got %s", ErrIllegalTransition, status)
	}

	return m.persist(ctx, nodeID, dir, StatusInProgress, pct, retries, startedAt, "")
}

// Complete moves InProgress → Completed, setting progress to 100 and
// recording the completion timestamp.
func (m *Machine) Complete(ctx context.Context, nodeID id.ID, dir Direction) error {
	fs, err := m.store.FetchFileState(ctx, nodeID)
	if err != nil {
		return fmt.Errorf("filetransfer: fetch state: %w", err)
	}

	status, retries, startedAt, _ := statusAndRetries(fs, dir)
	if !canTransition(status, StatusCompleted) {
		return fmt.Errorf("%w: %s -> completed", ErrIllegalTransition, status)
	}

	if err := m.persist(ctx, nodeID, dir, StatusCompleted, 100, retries, startedAt, m.nowString()); err != nil {
		return err
	}

	if dir == Download {
		m.bus.Publish(eventbus.Event{Name: eventbus.NodeUpdated, Payload: nodeID.String()})
	}

	return nil
}

// Fail moves InProgress → Failed, bumping the retry counter. The started-at
// column is reused to record the failure time, since the schema has no
// separate failed_at field; Request reads it back to gate the backoff.
// The caller may subsequently call Request once the backoff window elapses.
func (m *Machine) Fail(ctx context.Context, nodeID id.ID, dir Direction) error {
	fs, err := m.store.FetchFileState(ctx, nodeID)
	if err != nil {
		return fmt.Errorf("filetransfer: fetch state: %w", err)
	}

	status, retries, _, _ := statusAndRetries(fs, dir)
	if !canTransition(status, StatusFailed) {
		return fmt.Errorf("%w: %s -> failed", ErrIllegalTransition, status)
	}

	return m.persist(ctx, nodeID, dir, StatusFailed, 0, retries+1, m.nowString(), "")
}
