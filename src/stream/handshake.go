package stream

import (
	"time"

	"marketstore-client/src/helpers"

	"github.com/gorilla/websocket"
)

const (
	// CloseTimeout bounds how long the initiator waits for the peer's echo.
	CloseTimeout = 5 * time.Second

	closeReason = "Normal closure"
)

// -----------------------------------------------------------------------------

// initiateClose sends a normal-closure frame and waits for the echo. Only a
// failure to send the close frame is an error; a timeout, a read error or the
// stream ending all count as a completed handshake.
func (d *dispatcher) initiateClose() error {
	d.connState.Store(int32(ConnClosingLocal))

	d.logger.Debug("Sending close frame with code %d", websocket.CloseNormalClosure)
	if err := d.conn.Send(CloseFrame(websocket.CloseNormalClosure, closeReason)); err != nil {
		d.logger.Warning("Failed to send close frame: %v", err)
		return helpers.TransportError(err, "send close frame")
	}

	timer := time.NewTimer(d.closeTimeout)
	defer timer.Stop()

	for {
		select {
		case in, ok := <-d.conn.Incoming():
			if !ok {
				d.logger.Debug("Stream ended while waiting for close response")
				return nil
			}
			if in.Err != nil {
				d.logger.Warning("Error while waiting for close response: %v", in.Err)
				return nil
			}
			if in.Frame.Type == FrameClose {
				d.logger.Debug("Received close frame from server: %s", in.Frame)
				return nil
			}
			d.logger.Debug("Ignoring %s while waiting for close response", in.Frame)

		case <-timer.C:
			d.logger.Warning("Timeout waiting for server close response")
			return nil
		}
	}
}

// -----------------------------------------------------------------------------

// respondClose echoes the peer's close frame with the same status. No wait is
// needed on this side.
func (d *dispatcher) respondClose(peer Frame) error {
	d.connState.Store(int32(ConnClosingRemote))

	echo := Frame{Type: FrameClose, Close: peer.Close}
	if err := d.conn.Send(echo); err != nil {
		d.logger.Warning("Failed to send close response: %v", err)
		return helpers.TransportError(err, "send close response")
	}
	return nil
}
