package syncengine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/workspace-engine/core/internal/eventbus"
	"github.com/workspace-engine/core/internal/wsstore"
)

// Synchronizer owns the pull side of convergence for one workspace: a
// fixed set of independently-advancing named cursor streams.
type Synchronizer struct {
	store      *wsstore.Store
	puller     Puller
	appliers   map[Stream]ApplyFunc
	logger     *slog.Logger
	bus        *eventbus.Bus
	nowFunc    func() string
	observeLag func(stream string, lagSeconds float64)
}

// New constructs a Synchronizer for one workspace. appliers must cover
// every Stream the caller wants pulled; streams with no registered
// applier are skipped.
func New(store *wsstore.Store, puller Puller, appliers map[Stream]ApplyFunc, logger *slog.Logger, bus *eventbus.Bus, nowFunc func() string) *Synchronizer {
	return &Synchronizer{store: store, puller: puller, appliers: appliers, logger: logger, bus: bus, nowFunc: nowFunc}
}

// WithLagGauge reports a lag of 0 seconds for a stream each time a pull pass
// over it catches up (a batch shorter than the pull limit), for
// internal/metrics to expose as workspace_engine_sync_lag_seconds; no other
// lag value is reported. Optional; a nil observer (the default) skips the
// report entirely.
func (s *Synchronizer) WithLagGauge(observe func(stream string, lagSeconds float64)) *Synchronizer {
	s.observeLag = observe
	return s
}

// PullAll pulls every registered stream concurrently. A failure in one
// stream is logged and does not stop or fail the others (§4.4).
func (s *Synchronizer) PullAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for stream, apply := range s.appliers {
		stream, apply := stream, apply

		g.Go(func() error {
			if err := s.pullStream(ctx, stream, apply); err != nil {
				s.logger.Error("stream pull failed",
					slog.String("stream", string(stream)), slog.String("error", err.Error()))
			}

			return nil
		})
	}

	return g.Wait()
}

// pullStream repeatedly pulls and applies batches for one stream until a
// batch returns fewer than the requested limit (caught up). The cursor is
// advanced only after each entry's application transaction commits, so a
// crash mid-batch re-delivers from the last successfully applied entry on
// the next attempt (§8 properties 5 and 6).
func (s *Synchronizer) pullStream(ctx context.Context, stream Stream, apply ApplyFunc) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		cursor, err := s.store.GetCursor(ctx, string(stream))
		if err != nil {
			return fmt.Errorf("syncengine: read cursor for %s: %w", stream, err)
		}

		batch, err := s.puller.Pull(ctx, stream, cursor, defaultPullLimit)
		if err != nil {
			return fmt.Errorf("syncengine: pull %s: %w", stream, err)
		}

		for _, entry := range batch.Entries {
			if err := apply(ctx, entry); err != nil {
				return fmt.Errorf("syncengine: apply %s entry %s: %w", stream, entry.Ordinal, err)
			}

			if err := s.store.SetCursor(ctx, string(stream), entry.Ordinal, s.now()); err != nil {
				return fmt.Errorf("syncengine: advance cursor for %s: %w", stream, err)
			}
		}

		if len(batch.Entries) < defaultPullLimit {
			if s.observeLag != nil {
				s.observeLag(string(stream), 0)
			}

			return nil
		}
	}
}

func (s *Synchronizer) now() string {
	if s.nowFunc != nil {
		return s.nowFunc()
	}

	return time.Now().UTC().Format(time.RFC3339Nano)
}
