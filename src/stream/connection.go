package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"marketstore-client/src/logger"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait             = 5 * time.Second
	defaultMaxMessageSize = 4 * 1024 * 1024
)

var errUnsupportedFrame = errors.New("unsupported frame type")

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

// Connection owns one WebSocket and turns it into a sequence of frames.
// Control frames are surfaced instead of being answered automatically, so the
// dispatch loop decides how to reply to pings and close requests.
//
// A single reader goroutine produces the sequence; frames are handed over
// unbuffered, so the reader never gets ahead of the consumer.
type Connection struct {
	ws       *websocket.Conn
	logger   *logger.Logger
	incoming chan Inbound
	done     chan struct{}

	writeMu    sync.Mutex
	closeOnce  sync.Once
	peerClosed atomic.Bool
}

// -----------------------------------------------------------------------------

// Dial opens a WebSocket to url and wraps it. A nil dialer means
// websocket.DefaultDialer.
func Dial(ctx context.Context, url string, dialer *websocket.Dialer, maxMessageSize int64, log *logger.Logger) (*Connection, error) {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	ws, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (http status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewConnection(ws, maxMessageSize, log), nil
}

// -----------------------------------------------------------------------------

// NewConnection takes ownership of ws and starts its reader.
func NewConnection(ws *websocket.Conn, maxMessageSize int64, log *logger.Logger) *Connection {
	if maxMessageSize <= 0 {
		maxMessageSize = defaultMaxMessageSize
	}
	c := &Connection{
		ws:       ws,
		logger:   log,
		incoming: make(chan Inbound),
		done:     make(chan struct{}),
	}

	ws.SetReadLimit(maxMessageSize)
	ws.SetPingHandler(func(appData string) error {
		c.deliver(Inbound{Frame: Frame{Type: FramePing, Data: []byte(appData)}})
		return nil
	})
	ws.SetPongHandler(func(appData string) error {
		c.deliver(Inbound{Frame: Frame{Type: FramePong, Data: []byte(appData)}})
		return nil
	})
	ws.SetCloseHandler(func(code int, text string) error {
		c.peerClosed.Store(true)
		f := Frame{Type: FrameClose}
		if code != websocket.CloseNoStatusReceived {
			f.Close = &CloseInfo{Code: code, Reason: text}
		}
		c.deliver(Inbound{Frame: f})
		return nil
	})

	go c.readLoop()
	return c
}

// -----------------------------------------------------------------------------

// Incoming is the receive sequence. It is closed once the connection is
// exhausted and never reopens.
func (c *Connection) Incoming() <-chan Inbound {
	return c.incoming
}

// -----------------------------------------------------------------------------

// Send writes one frame. Failures are returned as-is and never retried.
func (c *Connection) Send(f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(writeWait)
	switch f.Type {
	case FrameBinary:
		c.ws.SetWriteDeadline(deadline)
		return c.ws.WriteMessage(websocket.BinaryMessage, f.Data)
	case FrameText:
		c.ws.SetWriteDeadline(deadline)
		return c.ws.WriteMessage(websocket.TextMessage, f.Data)
	case FramePing:
		return c.ws.WriteControl(websocket.PingMessage, f.Data, deadline)
	case FramePong:
		return c.ws.WriteControl(websocket.PongMessage, f.Data, deadline)
	case FrameClose:
		return c.ws.WriteControl(websocket.CloseMessage, f.closePayload(), deadline)
	default:
		return fmt.Errorf("%w: %s", errUnsupportedFrame, f.Type)
	}
}

// -----------------------------------------------------------------------------

// Ping sends a liveness probe; the answer shows up as a FramePong.
func (c *Connection) Ping(data []byte) error {
	return c.Send(Frame{Type: FramePing, Data: data})
}

// -----------------------------------------------------------------------------

// Close tears down the socket without any handshake. Safe to call repeatedly.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

// -----------------------------------------------------------------------------

func (c *Connection) deliver(in Inbound) bool {
	select {
	case c.incoming <- in:
		return true
	case <-c.done:
		return false
	}
}

// -----------------------------------------------------------------------------

// readLoop feeds Incoming. Control frames are delivered from inside
// ReadMessage through the handlers above, which keeps arrival order.
func (c *Connection) readLoop() {
	defer close(c.incoming)

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) && c.peerClosed.Load() {
				// close frame already delivered by the close handler
				return
			}
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Debug("Read failed: %v", err)
			c.deliver(Inbound{Err: err})
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if !c.deliver(Inbound{Frame: BinaryFrame(data)}) {
				return
			}
		case websocket.TextMessage:
			if !c.deliver(Inbound{Frame: Frame{Type: FrameText, Data: data}}) {
				return
			}
		}
	}
}
