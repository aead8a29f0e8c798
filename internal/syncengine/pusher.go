package syncengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/workspace-engine/core/internal/mutqueue"
	"github.com/workspace-engine/core/internal/wsstore"
)

// ErrPermanent marks a server error as permanently rejecting a mutation
// (e.g. a conflict-type error): the caller should materialize the
// server's authoritative state and drop the mutation rather than retry.
var ErrPermanent = errors.New("syncengine: permanent server error")

// PermanentError wraps ErrPermanent together with the authoritative
// remote state the server returned.
type PermanentError struct {
	Remote wsstore.RemoteNode
	Cause  error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("syncengine: permanent error: %s", e.Cause)
}
func (e *PermanentError) Unwrap() error { return ErrPermanent }

// Sender transmits one mutation to the server, preferring the socket when
// available and falling back to HTTP (§4.4's push protocol).
type Sender interface {
	SendSocket(ctx context.Context, m wsstore.Mutation) error
	SendHTTP(ctx context.Context, m wsstore.Mutation) error
	SocketAvailable() bool
}

// Pusher drains the mutation queue head-first.
type Pusher struct {
	queue  *mutqueue.Queue
	sender Sender
	logger *slog.Logger
}

// NewPusher constructs a Pusher over queue, transmitting via sender.
func NewPusher(queue *mutqueue.Queue, sender Sender, logger *slog.Logger) *Pusher {
	return &Pusher{queue: queue, sender: sender, logger: logger}
}

// PushOne sends the head mutation, if any. It returns wsstore.ErrNotFound
// when the queue is empty, and reports whether the head was removed
// (acked or materialized) so Drain knows whether to keep going.
func (p *Pusher) PushOne(ctx context.Context) (progressed bool, err error) {
	m, err := p.queue.Peek(ctx)
	if err != nil {
		return false, err
	}

	var sendErr error
	if p.sender.SocketAvailable() {
		sendErr = p.sender.SendSocket(ctx, m)
	} else {
		sendErr = p.sender.SendHTTP(ctx, m)
	}

	if sendErr == nil {
		return true, p.queue.Ack(m.ID)(ctx)
	}

	var perm *PermanentError
	if errors.As(sendErr, &perm) {
		return true, p.queue.MaterializeAndDrop(ctx, m.ID, perm.Remote)
	}

	p.logger.Warn("mutation push failed, will retry",
		slog.String("mutation_id", m.ID.String()), slog.String("error", sendErr.Error()))

	return false, p.queue.Fail(ctx, m.ID)
}

// Drain pushes mutations until the queue is empty, a transient failure is
// hit (stop rather than busy-spin retrying the same head), or ctx is
// cancelled.
func (p *Pusher) Drain(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		progressed, err := p.PushOne(ctx)
		if err != nil {
			if errors.Is(err, wsstore.ErrNotFound) {
				return nil
			}

			return err
		}

		if !progressed {
			return nil
		}
	}
}
