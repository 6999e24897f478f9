package stream

import (
	"fmt"

	"github.com/gorilla/websocket"
)

// FrameType enumerates the transport frames the dispatch loop can see.
type FrameType int

const (
	FrameBinary FrameType = iota
	FrameText
	FramePing
	FramePong
	FrameClose
)

func (t FrameType) String() string {
	switch t {
	case FrameBinary:
		return "binary"
	case FrameText:
		return "text"
	case FramePing:
		return "ping"
	case FramePong:
		return "pong"
	case FrameClose:
		return "close"
	default:
		return fmt.Sprintf("frame(%d)", int(t))
	}
}

// CloseInfo is the optional status carried by a close frame.
type CloseInfo struct {
	Code   int
	Reason string
}

// Frame is one discrete unit of the duplex transport. Close is nil for a
// bare close frame.
type Frame struct {
	Type  FrameType
	Data  []byte
	Close *CloseInfo
}

// Inbound is one element of a connection's receive sequence: a frame or a
// transport error. The sequence ends when the channel is closed.
type Inbound struct {
	Frame Frame
	Err   error
}

// -----------------------------------------------------------------------------

func BinaryFrame(data []byte) Frame {
	return Frame{Type: FrameBinary, Data: data}
}

func PongFrame(data []byte) Frame {
	return Frame{Type: FramePong, Data: data}
}

func CloseFrame(code int, reason string) Frame {
	return Frame{Type: FrameClose, Close: &CloseInfo{Code: code, Reason: reason}}
}

// -----------------------------------------------------------------------------

// closePayload renders the close frame body; a bare close has an empty body.
func (f Frame) closePayload() []byte {
	if f.Close == nil || f.Close.Code == websocket.CloseNoStatusReceived {
		return []byte{}
	}
	return websocket.FormatCloseMessage(f.Close.Code, f.Close.Reason)
}

func (f Frame) String() string {
	if f.Type == FrameClose {
		if f.Close == nil {
			return "close(no status)"
		}
		return fmt.Sprintf("close(%d %q)", f.Close.Code, f.Close.Reason)
	}
	return fmt.Sprintf("%s(%d bytes)", f.Type, len(f.Data))
}
