// Package stream implements the real-time subscription side of the client:
// a WebSocket connection carrying MessagePack frames, a dispatch loop that
// feeds decoded payloads to a handler, and the close handshake used when
// either side shuts the stream down.
package stream

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"marketstore-client/src/codec"
	"marketstore-client/src/helpers"
	"marketstore-client/src/interfaces"
	"marketstore-client/src/logger"
	"marketstore-client/src/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Handler adapter
// -----------------------------------------------------------------------------

// HandlerFunc adapts a plain function to interfaces.IPayloadHandler.
type HandlerFunc func(payload models.MStreamPayload) error

func (f HandlerFunc) HandlePayload(payload models.MStreamPayload) error {
	return f(payload)
}

// -----------------------------------------------------------------------------
// Session
// -----------------------------------------------------------------------------

// ErrSessionReused is returned when Run or Start is called on a Session that
// has already run.
var ErrSessionReused = errors.New("session already ran")

// Session is one subscription run: connect, subscribe, dispatch until the
// stream terminates. A Session runs at most once; later calls to Run return
// ErrSessionReused.
type Session struct {
	ID      string
	URL     string
	Streams []string

	handler        interfaces.IPayloadHandler
	dialer         *websocket.Dialer
	maxMessageSize int64
	closeTimeout   time.Duration
	logger         *logger.Logger

	started    atomic.Bool
	counters   counters
	dispatcher *dispatcher
}

type SessionOption func(*Session)

// WithDialer overrides websocket.DefaultDialer (handshake timeout, TLS, proxy).
func WithDialer(d *websocket.Dialer) SessionOption {
	return func(s *Session) { s.dialer = d }
}

// WithMaxMessageSize caps inbound frame size in bytes.
func WithMaxMessageSize(n int64) SessionOption {
	return func(s *Session) { s.maxMessageSize = n }
}

// -----------------------------------------------------------------------------

// NewSession prepares a subscription to url. The stream list is copied and
// sent in order, duplicates included; an empty list subscribes to nothing.
func NewSession(url string, streams []string, handler interfaces.IPayloadHandler, log *logger.Logger, opts ...SessionOption) *Session {
	id := uuid.NewString()
	s := &Session{
		ID:           id,
		URL:          url,
		Streams:      append([]string(nil), streams...),
		handler:      handler,
		closeTimeout: CloseTimeout,
		logger:       log.With("session", id),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// -----------------------------------------------------------------------------

// Run blocks until the session terminates. Cancelling ctx starts the close
// handshake; the result is nil for a caller cancellation or a peer close and
// an error only for transport failures or an invalid stream list.
func (s *Session) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrSessionReused
	}

	sub := models.NewStreamSubscription().AddStreams(s.Streams)
	if err := sub.Validate(); err != nil {
		return helpers.InvalidDataError(err, "invalid subscription")
	}

	frame, err := codec.EncodeSubscribe(s.Streams)
	if err != nil {
		return helpers.NewError(helpers.KindSerialization, err, "encode subscribe request")
	}

	conn, err := Dial(ctx, s.URL, s.dialer, s.maxMessageSize, s.logger)
	if err != nil {
		if ctx.Err() != nil {
			s.logger.Info("Cancelled before the stream connected")
			return nil
		}
		return helpers.NewError(helpers.KindConnection, err, "connect to %s", s.URL)
	}
	defer conn.Close()

	return s.serve(ctx, conn, frame)
}

// -----------------------------------------------------------------------------

func (s *Session) serve(ctx context.Context, conn *Connection, subscribeFrame []byte) error {
	s.dispatcher = newDispatcher(conn, s.handler, s.logger, s.closeTimeout, &s.counters)

	if err := conn.Send(BinaryFrame(subscribeFrame)); err != nil {
		s.dispatcher.terminate()
		return helpers.TransportError(err, "send subscribe request")
	}
	s.logger.Info("Subscribed to %d streams at %s", len(s.Streams), s.URL)

	err := s.dispatcher.run(ctx)
	st := s.counters.snapshot()
	s.logger.Info("Session finished: %d payloads, %d handler errors, %d undecodable", st.Payloads, st.HandlerErrors, st.Undecodable)
	return err
}

// -----------------------------------------------------------------------------

// Stats is safe to call while the session runs.
func (s *Session) Stats() Stats {
	return s.counters.snapshot()
}

// -----------------------------------------------------------------------------

// Start runs the session on its own goroutine.
func (s *Session) Start(ctx context.Context) *Subscription {
	sub := &Subscription{ID: s.ID, session: s, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		sub.err = s.Run(ctx)
	}()
	return sub
}

// -----------------------------------------------------------------------------
// Subscription handle
// -----------------------------------------------------------------------------

// Subscription represents a running session. Waiting on it is the only way
// to observe completion and the terminal error.
type Subscription struct {
	ID      string
	session *Session
	done    chan struct{}
	err     error
}

// Done is closed when the session has terminated.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session terminates and returns its result.
func (s *Subscription) Wait() error {
	<-s.done
	return s.err
}

func (s *Subscription) Stats() Stats {
	return s.session.Stats()
}
