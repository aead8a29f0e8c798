package socksession

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/sethvargo/go-retry"

	"github.com/workspace-engine/core/internal/eventbus"
)

// maxStuckClosingTicks forces Closing -> Closed if the underlying close
// event never arrives within this many health-check ticks.
const maxStuckClosingTicks = 3

// healthCheckInterval is the connection-check period. No loop in this
// package runs on it, and TickHealthCheck does not reconnect: it only
// advances the stuck-Closing safeguard.
const healthCheckInterval = 30 * time.Second

// Conn abstracts the underlying websocket connection so Session can be
// driven in tests without a real network round-trip.
type Conn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, data []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// Dialer opens a new underlying connection to url.
type Dialer func(ctx context.Context, url string) (Conn, error)

// wsConn adapts *websocket.Conn to Conn.
type wsConn struct{ c *websocket.Conn }

func (w wsConn) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	return w.c.Read(ctx)
}
func (w wsConn) Write(ctx context.Context, typ websocket.MessageType, data []byte) error {
	return w.c.Write(ctx, typ, data)
}
func (w wsConn) Close(code websocket.StatusCode, reason string) error {
	return w.c.Close(code, reason)
}

// DefaultDialer dials url with coder/websocket.
func DefaultDialer(ctx context.Context, url string) (Conn, error) {
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("socksession: dial: %w", err)
	}

	return wsConn{c: c}, nil
}

// Session is one WebSocket session for one account.
type Session struct {
	url    string
	dial   Dialer
	logger *slog.Logger
	bus    *eventbus.Bus

	sm *stateMachine

	conn Conn

	attempt       int
	lastAttempt   time.Time
	closingTicks  int
	subscriptions []eventbus.Handle
}

// New constructs a Session that will dial url on Open.
func New(url string, dial Dialer, logger *slog.Logger, bus *eventbus.Bus) *Session {
	return &Session{
		url:    url,
		dial:   dial,
		logger: logger,
		bus:    bus,
		sm:     &stateMachine{state: Idle},
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	return s.sm.get()
}

// Open transitions Idle/Closed -> Connecting -> Open, retrying the dial
// with SocketBackoff via sethvargo/go-retry until ctx is cancelled.
func (s *Session) Open(ctx context.Context) error {
	if err := s.sm.transition(Connecting); err != nil {
		return err
	}

	err := retry.Do(ctx, newRetryBackoff(SocketBackoff), func(ctx context.Context) error {
		s.attempt++
		s.lastAttempt = time.Now()

		conn, dialErr := s.dial(ctx, s.url)
		if dialErr != nil {
			s.logger.Warn("socket dial failed, backing off",
				slog.Int("attempt", s.attempt), slog.String("error", dialErr.Error()))
			return retry.RetryableError(dialErr)
		}

		s.conn = conn

		return nil
	})
	if err != nil {
		return fmt.Errorf("socksession: open: %w", err)
	}

	if err := s.sm.transition(Open); err != nil {
		return err
	}

	s.attempt = 0

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Name: eventbus.AccountConnectionOpened})
	}

	return nil
}

// OnMessage registers a handler invoked for every inbound message, tracked
// so Close can detach it before tearing down the underlying connection.
func (s *Session) OnMessage(h func(data []byte)) eventbus.Handle {
	handle := s.bus.Subscribe(func(ev eventbus.Event) {
		if ev.Name != eventbus.AccountMessageReceived {
			return
		}

		if data, ok := ev.Payload.([]byte); ok {
			h(data)
		}
	})

	s.subscriptions = append(s.subscriptions, handle)

	return handle
}

// Send writes data in send order; Session does not reorder outgoing
// messages.
func (s *Session) Send(ctx context.Context, data []byte) error {
	if s.State() != Open {
		return fmt.Errorf("socksession: send on non-open session (state=%s)", s.State())
	}

	return s.conn.Write(ctx, websocket.MessageText, data)
}

// ReceiveLoop dispatches inbound messages to the event bus in receive
// order until ctx is cancelled or the connection errors, at which point it
// transitions to Closing.
func (s *Session) ReceiveLoop(ctx context.Context) {
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			s.logger.Info("socket read error, closing", slog.String("error", err.Error()))
			_ = s.beginClose()
			return
		}

		if s.bus != nil {
			s.bus.Publish(eventbus.Event{Name: eventbus.AccountMessageReceived, Payload: data})
		}
	}
}

func (s *Session) beginClose() error {
	return s.sm.transition(Closing)
}

// Close detaches all handlers before calling the underlying close, so
// handler-driven reconnect logic cannot fire post-teardown, then completes
// the Closing -> Closed transition.
func (s *Session) Close() error {
	if s.State() == Open {
		if err := s.beginClose(); err != nil {
			return err
		}
	}

	for _, h := range s.subscriptions {
		s.bus.Unsubscribe(h)
	}
	s.subscriptions = nil

	if s.conn != nil {
		_ = s.conn.Close(websocket.StatusNormalClosure, "session closed")
	}

	if err := s.sm.transition(Closed); err != nil {
		return err
	}

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Name: eventbus.AccountConnectionClosed})
	}

	return nil
}

// TickHealthCheck advances the stuck-Closing safeguard: if the session has
// sat in Closing for more than maxStuckClosingTicks health-check ticks
// without reaching Closed, it is forced to Closed.
func (s *Session) TickHealthCheck() {
	if s.State() != Closing {
		s.closingTicks = 0
		return
	}

	s.closingTicks++
	if s.closingTicks > maxStuckClosingTicks {
		_ = s.sm.transition(Closed)
		s.closingTicks = 0
	}
}
