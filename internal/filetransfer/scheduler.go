package filetransfer

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/workspace-engine/core/internal/id"
)

// DefaultMaxConcurrent bounds how many transfers a Scheduler admits to
// Start/InProgress at once, independent of how many are Pending.
const DefaultMaxConcurrent = 4

// Scheduler bounds how many file nodes a Machine may hold in InProgress at
// once, so a large batch of pending transfers doesn't open unboundedly many
// connections against the server. It wraps Machine.Start/Complete/Fail
// rather than changing the state machine itself: admission control is a
// concern of whoever drives the machine, not of the machine's transitions.
type Scheduler struct {
	machine *Machine
	sem     *semaphore.Weighted
}

// NewScheduler wraps machine with an admission gate of at most maxConcurrent
// simultaneous transfers.
func NewScheduler(machine *Machine, maxConcurrent int64) *Scheduler {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}

	return &Scheduler{machine: machine, sem: semaphore.NewWeighted(maxConcurrent)}
}

// Run blocks until a slot is available (or ctx is cancelled), transitions
// nodeID to InProgress, invokes transfer, and releases the slot before
// recording the outcome as Complete or Fail. transfer is the caller's own
// byte-moving logic; this package does not perform I/O itself (§4.6 non-
// goal).
func (s *Scheduler) Run(ctx context.Context, nodeID id.ID, dir Direction, transfer func(ctx context.Context) error) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("filetransfer: acquire transfer slot: %w", err)
	}
	defer s.sem.Release(1)

	if err := s.machine.Start(ctx, nodeID, dir); err != nil {
		return fmt.Errorf("filetransfer: start: %w", err)
	}

	if err := transfer(ctx); err != nil {
		if failErr := s.machine.Fail(ctx, nodeID, dir); failErr != nil {
			return fmt.Errorf("filetransfer: transfer failed (%v) and recording failure also failed: %w", err, failErr)
		}

		return fmt.Errorf("filetransfer: transfer: %w", err)
	}

	if err := s.machine.Complete(ctx, nodeID, dir); err != nil {
		return fmt.Errorf("filetransfer: complete: %w", err)
	}

	return nil
}
