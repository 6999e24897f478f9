package server

import (
	"sync"
	"time"

	"marketstore-client/src/codec"
	"marketstore-client/src/models"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait         = 2 * time.Second
	pongWait          = 60 * time.Second
	defaultPingPeriod = (pongWait * 9) / 10
	closeGrace        = time.Second
	maxMessageSize    = 64 * 1024
	shutdownReason    = "server shutdown"
)

// -----------------------------------------------------------------------------
// Client Structure
// -----------------------------------------------------------------------------

type Client struct {
	hub      *StreamServer
	conn     *websocket.Conn
	send     chan []byte // closed by the hub
	direct   chan []byte // replies from the read side, never closed
	readDone chan struct{}

	mu       sync.RWMutex
	patterns []string
}

func newClient(hub *StreamServer, conn *websocket.Conn) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, 256),
		direct:   make(chan []byte, 16),
		readDone: make(chan struct{}),
	}
}

// -----------------------------------------------------------------------------

func (c *Client) setPatterns(patterns []string) {
	c.mu.Lock()
	c.patterns = append([]string(nil), patterns...)
	c.mu.Unlock()
}

func (c *Client) matches(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.patterns {
		if models.MatchStream(p, key) {
			return true
		}
	}
	return false
}

// reply queues a direct answer to this client without blocking the reader.
func (c *Client) reply(v interface{}) {
	frame, err := codec.Encode(v)
	if err != nil {
		c.hub.Logger.Error("Failed to encode reply: %v", err)
		return
	}
	select {
	case c.direct <- frame:
	default:
		c.hub.Logger.Warning("Reply queue full for %s", c.conn.RemoteAddr())
	}
}

// -----------------------------------------------------------------------------
// readPump - handles incoming messages from client
// -----------------------------------------------------------------------------

func (c *Client) readPump() {
	defer func() {
		close(c.readDone)
		select {
		case c.hub.unregister <- c:
		case <-c.hub.quit:
		}
		c.hub.Logger.Info("Client %s disconnected", c.conn.RemoteAddr())
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		mt, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				c.hub.Logger.Info("WebSocket error: %v", err)
			}
			return
		}
		if mt != websocket.BinaryMessage {
			c.hub.Logger.Debug("Ignoring non-binary message from %s", c.conn.RemoteAddr())
			continue
		}
		c.hub.handleClientMessage(c, message)
	}
}

// -----------------------------------------------------------------------------
// writePump - sends messages to client
// -----------------------------------------------------------------------------

func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel: start the close handshake and give
				// the client a moment to echo it.
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, shutdownReason))
				select {
				case <-c.readDone:
				case <-time.After(closeGrace):
				}
				return
			}

			if err := c.conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
				c.hub.Logger.Info("Write error: %v", err)
				return
			}

		case message := <-c.direct:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
				c.hub.Logger.Info("Write error: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
