// Package appservice implements the app-level periodic maintenance task
// described in spec.md §5 "Cleanup": a 10-minute tick (debounced so a burst
// of manual triggers collapses to at most one run per minute) that attempts
// server-side invalidation of staged deleted_tokens and deletes temp files
// older than 24 hours. Grounded on the teacher's daemon-loop shape in
// sync.go's --watch mode and signal.go's cancellable-context pattern, since
// neither the teacher's trimmed snapshot nor this module has a standing
// --watch implementation to reuse directly.
package appservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/workspace-engine/core/internal/appdb"
	"github.com/workspace-engine/core/internal/pathresolve"
)

// DefaultInterval is the tick period between cleanup runs (spec.md §5).
const DefaultInterval = 10 * time.Minute

// DefaultDebounce is the minimum spacing enforced between two runs, even if
// Trigger is called more often (spec.md §5 "debounced 1 minute").
const DefaultDebounce = 1 * time.Minute

// DefaultTempFileMaxAge is how old a temp file must be before it is deleted.
const DefaultTempFileMaxAge = 24 * time.Hour

// ErrAccountGone classifies an AuthError observed while invalidating a
// token — spec.md §7: "observed during cleanup ⇒ drop the staged token."
var ErrAccountGone = errors.New("appservice: account or token no longer recognized by server")

// TokenInvalidator performs the server-side `DELETE /v1/accounts/logout`
// call for one staged token. Defined at the consumer (appservice) per
// "accept interfaces, return structs" — the HTTP transport lives elsewhere.
type TokenInvalidator interface {
	InvalidateToken(ctx context.Context, server, token string) error
}

// Task runs the periodic cleanup described in spec.md §5.
type Task struct {
	store       *appdb.AppStore
	paths       *pathresolve.Resolver
	invalidator TokenInvalidator
	logger      *slog.Logger

	interval   time.Duration
	debounce   time.Duration
	tempMaxAge time.Duration
	nowFunc    func() time.Time
	lastRun    time.Time
	triggerCh  chan struct{}
}

// New builds a Task with the spec's default interval, debounce, and temp
// file max age. Use the With* methods to override for tests.
func New(store *appdb.AppStore, paths *pathresolve.Resolver, invalidator TokenInvalidator, logger *slog.Logger) *Task {
	return &Task{
		store:       store,
		paths:       paths,
		invalidator: invalidator,
		logger:      logger,
		interval:    DefaultInterval,
		debounce:    DefaultDebounce,
		tempMaxAge:  DefaultTempFileMaxAge,
		nowFunc:     time.Now,
		triggerCh:   make(chan struct{}, 1),
	}
}

// WithInterval overrides the tick period (tests use short intervals).
func (t *Task) WithInterval(d time.Duration) *Task { t.interval = d; return t }

// WithDebounce overrides the minimum spacing between runs.
func (t *Task) WithDebounce(d time.Duration) *Task { t.debounce = d; return t }

// WithTempFileMaxAge overrides the temp file deletion threshold.
func (t *Task) WithTempFileMaxAge(d time.Duration) *Task { t.tempMaxAge = d; return t }

// WithClock overrides the time source (tests use a fixed/fake clock).
func (t *Task) WithClock(now func() time.Time) *Task { t.nowFunc = now; return t }

// Trigger requests an out-of-cycle run (e.g. right after a logout staged a
// new token). Debounced the same as the ticker: a trigger within debounce
// of the last run is coalesced rather than running immediately.
func (t *Task) Trigger() {
	select {
	case t.triggerCh <- struct{}{}:
	default:
	}
}

// Run blocks, ticking every interval (and reacting to Trigger) until ctx is
// cancelled. Each tick or trigger calls RunOnce, subject to the debounce gate.
func (t *Task) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.logger.Info("cleanup task started",
		slog.Duration("interval", t.interval), slog.Duration("debounce", t.debounce))

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("cleanup task stopping")
			return nil
		case <-ticker.C:
			t.runIfDue(ctx)
		case <-t.triggerCh:
			t.runIfDue(ctx)
		}
	}
}

func (t *Task) runIfDue(ctx context.Context) {
	now := t.nowFunc()
	if !t.lastRun.IsZero() && now.Sub(t.lastRun) < t.debounce {
		t.logger.Debug("cleanup run debounced", slog.Time("last_run", t.lastRun))
		return
	}

	t.lastRun = now

	if err := t.RunOnce(ctx); err != nil {
		t.logger.Warn("cleanup run failed", slog.String("error", err.Error()))
	}
}

// RunOnce performs one cleanup pass: token invalidation followed by temp
// file deletion. Errors from either phase are joined, not short-circuited,
// so a failure in one never skips the other.
func (t *Task) RunOnce(ctx context.Context) error {
	tokenErr := t.invalidatePendingTokens(ctx)
	tempErr := t.deleteStaleTempFiles(ctx)

	return errors.Join(tokenErr, tempErr)
}

func (t *Task) invalidatePendingTokens(ctx context.Context) error {
	pending, err := t.store.PendingDeletedTokens(ctx)
	if err != nil {
		return fmt.Errorf("appservice: listing pending deleted tokens: %w", err)
	}

	now := t.nowFunc().UTC().Format(time.RFC3339)

	var errs []error
	for _, dt := range pending {
		err := t.invalidator.InvalidateToken(ctx, dt.Server, dt.Token)
		switch {
		case err == nil, errors.Is(err, ErrAccountGone):
			if confirmErr := t.store.ConfirmTokenInvalidated(ctx, dt.ID); confirmErr != nil {
				errs = append(errs, fmt.Errorf("appservice: confirming invalidated token %s: %w", dt.ID, confirmErr))
			}
		default:
			t.logger.Debug("token invalidation attempt failed, will retry next cycle",
				slog.String("token_id", dt.ID), slog.String("error", err.Error()))

			if markErr := t.store.MarkTokenInvalidationAttempt(ctx, dt.ID, now); markErr != nil {
				errs = append(errs, fmt.Errorf("appservice: recording invalidation attempt %s: %w", dt.ID, markErr))
			}
		}
	}

	return errors.Join(errs...)
}

func (t *Task) deleteStaleTempFiles(ctx context.Context) error {
	dir := t.paths.TempDir()

	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("appservice: reading temp dir: %w", err)
	}

	cutoff := t.nowFunc().Add(-t.tempMaxAge)

	var errs []error
	for _, entry := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		info, err := entry.Info()
		if err != nil {
			errs = append(errs, fmt.Errorf("appservice: stat %s: %w", entry.Name(), err))
			continue
		}

		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			errs = append(errs, fmt.Errorf("appservice: removing stale temp file %s: %w", path, err))
			continue
		}

		t.logger.Debug("removed stale temp file", slog.String("path", path), slog.Time("mod_time", info.ModTime()))
	}

	return errors.Join(errs...)
}
