package server

import (
	"net/http"
	"time"

	"marketstore-client/src/codec"
	"marketstore-client/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// runHub owns the client set. Payloads are encoded once and queued to every
// client whose patterns match the key.
func (s *StreamServer) runHub() {
	defer close(s.hubDone)

	for {
		select {
		case client := <-s.register:
			s.clients[client] = struct{}{}
			s.connections.Store(int64(len(s.clients)))

		case client := <-s.unregister:
			s.drop(client)

		case payload := <-s.broadcast:
			frame, err := codec.Encode(&payload)
			if err != nil {
				s.Logger.Error("Failed to encode payload for %s: %v", payload.Key, err)
				continue
			}
			s.published.Add(1)
			s.latestUpdate.Store(time.Now().Unix())

			for client := range s.clients {
				if !client.matches(payload.Key) {
					continue
				}
				select {
				case client.send <- frame:
				default:
					// Client too slow, disconnect to keep the hub moving
					s.Logger.Warning("Dropping slow client %s", client.conn.RemoteAddr())
					s.drop(client)
				}
			}

		case <-s.quit:
			for client := range s.clients {
				s.drop(client)
			}
			return
		}
	}
}

func (s *StreamServer) drop(client *Client) {
	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		close(client.send)
		s.connections.Store(int64(len(s.clients)))
	}
}

// -----------------------------------------------------------------------------
// Publisher Interface Implementation
// -----------------------------------------------------------------------------

// Publish queues a payload for the hub. It is a no-op once the server stopped.
func (s *StreamServer) Publish(payload models.MStreamPayload) {
	select {
	case s.broadcast <- payload:
	case <-s.quit:
	}
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *StreamServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := newClient(s, conn)
	select {
	case s.register <- client:
	case <-s.quit:
		conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, shutdownReason), time.Now().Add(writeWait))
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

// handleClientMessage treats every binary frame as a subscribe request. A
// valid request replaces the client's patterns and is echoed back; anything
// else is answered with an error notice.
func (s *StreamServer) handleClientMessage(client *Client, message []byte) {
	sub, err := codec.DecodeSubscribe(message)
	if err == nil {
		err = models.NewStreamSubscription().AddStreams(sub.Streams).Validate()
	}
	if err != nil {
		s.Logger.Info("Rejected subscribe from %s: %v", client.conn.RemoteAddr(), err)
		client.reply(&models.MErrorMessage{Error: err.Error()})
		return
	}

	client.setPatterns(sub.Streams)
	s.Logger.Info("Client %s subscribed to %v", client.conn.RemoteAddr(), sub.Streams)
	client.reply(sub)
}
