// Package eventbus implements the in-process domain event pub/sub used to
// propagate store writes and connection lifecycle changes out to the
// mediator and UI-facing subscribers.
package eventbus

import (
	"log/slog"
	"sync"
)

// Name identifies one of the closed set of domain events the core emits.
type Name string

const (
	ServerAvailabilityChanged  Name = "server.availability.changed"
	AccountConnectionOpened    Name = "account.connection.opened"
	AccountConnectionClosed    Name = "account.connection.closed"
	AccountMessageReceived     Name = "account.message.received"
	AccountUpdated             Name = "account.updated"
	AccountDeleted             Name = "account.deleted"
	WorkspaceCreated           Name = "workspace.created"
	WorkspaceUpdated           Name = "workspace.updated"
	WorkspaceDeleted           Name = "workspace.deleted"
	NodeCreated                Name = "node.created"
	NodeUpdated                Name = "node.updated"
	NodeDeleted                Name = "node.deleted"
	MutationEnqueued           Name = "mutation.enqueued"
	MutationCompleted          Name = "mutation.completed"
	MutationFailed             Name = "mutation.failed"
	FileBlobExternallyModified Name = "file.blob.externally_modified"
)

// Event is one published occurrence. Payload is handler-defined per Name.
type Event struct {
	Name    Name
	Payload any
}

// Handle identifies a subscription for later Unsubscribe calls.
type Handle uint64

// Handler receives events in publish order. A handler must not block; a
// panic inside a handler is recovered and logged so it cannot prevent
// later subscribers in the same dispatch from receiving the event.
type Handler func(Event)

// Bus is a single-threaded, synchronous, ordered event dispatcher: every
// Publish call fans out to all current subscribers before returning, in
// subscriber-registration order, exactly mirroring the cooperative
// single-threaded scheduling model the rest of the engine assumes.
type Bus struct {
	mu       sync.Mutex
	logger   *slog.Logger
	nextID   Handle
	handlers map[Handle]Handler
	order    []Handle
}

// New constructs an empty Bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{
		logger:   logger,
		handlers: make(map[Handle]Handler),
	}
}

// Subscribe registers h and returns a Handle for later Unsubscribe.
func (b *Bus) Subscribe(h Handler) Handle {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[id] = h
	b.order = append(b.order, id)

	return id
}

// Unsubscribe removes a previously registered handler. Idempotent: removing
// an already-removed or unknown handle is a no-op.
func (b *Bus) Unsubscribe(id Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.handlers[id]; !ok {
		return
	}

	delete(b.handlers, id)

	for i, hid := range b.order {
		if hid == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Publish dispatches ev synchronously to every subscriber live at the time
// Publish was called, in registration order. A subscriber added by another
// goroutine mid-dispatch may or may not see ev (dispatch snapshots the
// handler list under lock before invoking any of them); one that
// unsubscribes mid-dispatch does not skip already-queued deliveries to
// other subscribers, since the snapshot was already taken.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	order := make([]Handle, len(b.order))
	copy(order, b.order)
	handlers := make(map[Handle]Handler, len(b.handlers))
	for id, h := range b.handlers {
		handlers[id] = h
	}
	b.mu.Unlock()

	for _, id := range order {
		h, ok := handlers[id]
		if !ok {
			continue
		}

		b.dispatchOne(h, ev)
	}
}

func (b *Bus) dispatchOne(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event bus subscriber panicked",
				slog.String("event", string(ev.Name)),
				slog.Any("recovered", r),
			)
		}
	}()

	h(ev)
}
