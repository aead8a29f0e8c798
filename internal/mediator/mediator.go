// Package mediator routes UI query/mutation requests to registered handlers
// and keeps live query results consistent with the store as domain events
// arrive (§4.8).
package mediator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/workspace-engine/core/internal/eventbus"
)

// HandlerName identifies one registered query handler.
type HandlerName string

// QueryHandler is a reactive query: Execute runs it fresh, CheckForChanges
// decides whether a domain event could affect a previously computed output
// and, if so, recomputes it.
type QueryHandler interface {
	Execute(ctx context.Context, input any) (any, error)
	CheckForChanges(ctx context.Context, ev eventbus.Event, input any, lastOutput any) (hasChanges bool, newOutput any, err error)
}

// Update is pushed to every window subscribing to a subscription whose
// output changed.
type Update struct {
	WindowID string
	Handler  HandlerName
	Input    any
	Output   any
}

type subscriptionKey struct {
	handler HandlerName
	input   string
}

func keyFor(handler HandlerName, input any) (subscriptionKey, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return subscriptionKey{}, fmt.Errorf("mediator: encode subscription input: %w", err)
	}

	return subscriptionKey{handler: handler, input: string(raw)}, nil
}

type subscription struct {
	key        subscriptionKey
	input      any
	lastOutput any
	windows    map[string]int
}

// Mediator dispatches queries to handlers and fans out event-bus activity
// to live subscriptions.
type Mediator struct {
	mu          sync.Mutex
	handlers    map[HandlerName]QueryHandler
	subs        map[subscriptionKey]*subscription
	updates     chan Update
	logger      *slog.Logger
	busHandle   eventbus.Handle
	observeSubs func(count int)
}

// WithSubscriptionGauge reports the live subscription count after every
// Subscribe/Unsubscribe, for internal/metrics to expose as a gauge. Optional;
// a nil observer (the default) skips the report entirely.
func (m *Mediator) WithSubscriptionGauge(observe func(count int)) *Mediator {
	m.observeSubs = observe
	return m
}

func (m *Mediator) reportSubCount() {
	if m.observeSubs == nil {
		return
	}

	m.mu.Lock()
	n := len(m.subs)
	m.mu.Unlock()

	m.observeSubs(n)
}

// New constructs a Mediator that listens to bus for the lifetime of the
// process (or until Close is called).
func New(bus *eventbus.Bus, logger *slog.Logger) *Mediator {
	m := &Mediator{
		handlers: make(map[HandlerName]QueryHandler),
		subs:     make(map[subscriptionKey]*subscription),
		updates:  make(chan Update, 256),
		logger:   logger,
	}

	m.busHandle = bus.Subscribe(m.onEvent)

	return m
}

// Register adds a query handler under name, replacing any prior handler of
// the same name.
func (m *Mediator) Register(name HandlerName, h QueryHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers[name] = h
}

// Updates returns the channel pushed changes to subscribed queries arrive
// on. The UI layer drains this to keep windows in sync.
func (m *Mediator) Updates() <-chan Update {
	return m.updates
}

// Close detaches the Mediator from its event bus.
func (m *Mediator) Close(bus *eventbus.Bus) {
	bus.Unsubscribe(m.busHandle)
}

// Subscribe runs handler(input) if no window is already subscribed to this
// (handler, input) pair, then registers windowID against it and returns the
// current output. Subsequent subscribers to the same pair reuse the cached
// output rather than re-executing the query.
func (m *Mediator) Subscribe(ctx context.Context, handler HandlerName, input any, windowID string) (any, error) {
	key, err := keyFor(handler, input)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()

	sub, exists := m.subs[key]
	if !exists {
		h, ok := m.handlers[handler]
		if !ok {
			m.mu.Unlock()
			return nil, fmt.Errorf("mediator: no handler registered for %q", handler)
		}

		m.mu.Unlock()

		output, err := h.Execute(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("mediator: execute %q: %w", handler, err)
		}

		m.mu.Lock()

		// Another goroutine may have raced us to create the subscription
		// while Execute ran unlocked; prefer whichever landed first.
		if sub, exists = m.subs[key]; !exists {
			sub = &subscription{key: key, input: input, lastOutput: output, windows: make(map[string]int)}
			m.subs[key] = sub
		}
	}

	sub.windows[windowID]++
	output := sub.lastOutput

	m.mu.Unlock()

	m.reportSubCount()

	return output, nil
}

// Unsubscribe decrements windowID's reference count on (handler, input).
// Once every window has unsubscribed, the subscription is dropped and no
// further events recompute it (§4.8).
func (m *Mediator) Unsubscribe(handler HandlerName, input any, windowID string) {
	key, err := keyFor(handler, input)
	if err != nil {
		return
	}

	m.mu.Lock()

	sub, ok := m.subs[key]
	if !ok {
		m.mu.Unlock()
		return
	}

	sub.windows[windowID]--
	if sub.windows[windowID] <= 0 {
		delete(sub.windows, windowID)
	}

	if len(sub.windows) == 0 {
		delete(m.subs, key)
	}

	m.mu.Unlock()

	m.reportSubCount()
}

// onEvent fans an event out to every live subscription, asking each
// handler whether the event changes its output, and pushing recomputed
// output to every subscribing window when it does.
func (m *Mediator) onEvent(ev eventbus.Event) {
	m.mu.Lock()
	snapshot := make([]*subscription, 0, len(m.subs))
	for _, s := range m.subs {
		snapshot = append(snapshot, s)
	}
	m.mu.Unlock()

	for _, sub := range snapshot {
		m.reconcileOne(ev, sub)
	}
}

func (m *Mediator) reconcileOne(ev eventbus.Event, sub *subscription) {
	m.mu.Lock()
	h, ok := m.handlers[sub.key.handler]
	m.mu.Unlock()

	if !ok {
		return
	}

	hasChanges, newOutput, err := h.CheckForChanges(context.Background(), ev, sub.input, sub.lastOutput)
	if err != nil {
		m.logger.Error("mediator: checkForChanges failed",
			slog.String("handler", string(sub.key.handler)), slog.String("error", err.Error()))
		return
	}

	if !hasChanges {
		return
	}

	m.mu.Lock()
	current, stillLive := m.subs[sub.key]
	if !stillLive {
		m.mu.Unlock()
		return
	}

	current.lastOutput = newOutput
	windows := make([]string, 0, len(current.windows))
	for w := range current.windows {
		windows = append(windows, w)
	}
	m.mu.Unlock()

	for _, w := range windows {
		m.push(Update{WindowID: w, Handler: sub.key.handler, Input: sub.input, Output: newOutput})
	}
}

func (m *Mediator) push(u Update) {
	select {
	case m.updates <- u:
	default:
		m.logger.Warn("mediator: updates channel full, dropping update",
			slog.String("handler", string(u.Handler)), slog.String("window", u.WindowID))
	}
}
