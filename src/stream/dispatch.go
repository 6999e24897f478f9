package stream

import (
	"context"
	"sync/atomic"
	"time"

	"marketstore-client/src/codec"
	"marketstore-client/src/helpers"
	"marketstore-client/src/interfaces"
	"marketstore-client/src/logger"
)

// -----------------------------------------------------------------------------
// States
// -----------------------------------------------------------------------------

// LoopState is the dispatch loop's own lifecycle.
type LoopState int32

const (
	LoopRunning LoopState = iota
	LoopDraining
	LoopTerminated
)

func (s LoopState) String() string {
	switch s {
	case LoopRunning:
		return "Running"
	case LoopDraining:
		return "Draining"
	default:
		return "Terminated"
	}
}

// ConnState tracks the close handshake. Only the dispatch loop changes it.
type ConnState int32

const (
	ConnOpen ConnState = iota
	ConnClosingLocal
	ConnClosingRemote
	ConnClosed
)

func (s ConnState) String() string {
	switch s {
	case ConnOpen:
		return "Open"
	case ConnClosingLocal:
		return "ClosingLocal"
	case ConnClosingRemote:
		return "ClosingRemote"
	default:
		return "Closed"
	}
}

// Stats counts what a session has seen so far.
type Stats struct {
	Payloads      int64
	HandlerErrors int64
	Undecodable   int64
	ErrorNotices  int64
}

type counters struct {
	payloads      atomic.Int64
	handlerErrors atomic.Int64
	undecodable   atomic.Int64
	errorNotices  atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Payloads:      c.payloads.Load(),
		HandlerErrors: c.handlerErrors.Load(),
		Undecodable:   c.undecodable.Load(),
		ErrorNotices:  c.errorNotices.Load(),
	}
}

// -----------------------------------------------------------------------------
// Dispatcher
// -----------------------------------------------------------------------------

// dispatcher reads one frame at a time and never reads the next frame before
// the handler returns, so handler calls are ordered and never overlap.
type dispatcher struct {
	conn         *Connection
	handler      interfaces.IPayloadHandler
	logger       *logger.Logger
	closeTimeout time.Duration
	counters     *counters

	loopState atomic.Int32
	connState atomic.Int32
}

func newDispatcher(conn *Connection, handler interfaces.IPayloadHandler, log *logger.Logger, closeTimeout time.Duration, c *counters) *dispatcher {
	return &dispatcher{
		conn:         conn,
		handler:      handler,
		logger:       log,
		closeTimeout: closeTimeout,
		counters:     c,
	}
}

// -----------------------------------------------------------------------------

// run drives the loop until Terminated. ctx is the cancellation signal; it is
// only observed between frames or while waiting for one.
func (d *dispatcher) run(ctx context.Context) error {
	defer d.terminate()

	for {
		// A cancel raised during the last dispatch wins over a queued frame.
		if ctx.Err() != nil {
			return d.cancel()
		}

		select {
		case <-ctx.Done():
			return d.cancel()

		case in, ok := <-d.conn.Incoming():
			if !ok {
				d.logger.Info("Stream ended")
				return nil
			}
			if in.Err != nil {
				d.logger.Warning("Stream error: %v", in.Err)
				return helpers.TransportError(in.Err, "receive failed")
			}
			stop, err := d.dispatch(in.Frame)
			if stop {
				return err
			}
		}
	}
}

func (d *dispatcher) cancel() error {
	d.loopState.Store(int32(LoopDraining))
	d.logger.Info("Received cancel signal, performing close handshake")
	return d.initiateClose()
}

// -----------------------------------------------------------------------------

// dispatch handles one frame and reports whether the loop must stop.
func (d *dispatcher) dispatch(f Frame) (bool, error) {
	switch f.Type {
	case FrameBinary:
		d.dispatchBinary(f.Data)
		return false, nil

	case FrameText:
		d.logger.Debug("Received text message: %s", string(f.Data))
		return false, nil

	case FramePing:
		if err := d.conn.Send(PongFrame(f.Data)); err != nil {
			d.logger.Warning("Failed to send pong: %v", err)
			return true, helpers.TransportError(err, "send pong")
		}
		return false, nil

	case FramePong:
		return false, nil

	case FrameClose:
		d.logger.Info("Connection closed by server: %s", f)
		return true, d.respondClose(f)

	default:
		d.logger.Debug("Ignoring %s", f)
		return false, nil
	}
}

// -----------------------------------------------------------------------------

func (d *dispatcher) dispatchBinary(data []byte) {
	msg := codec.Decode(data)

	switch msg.Kind {
	case codec.KindDataPayload:
		d.counters.payloads.Add(1)
		if err := d.handler.HandlePayload(*msg.Payload); err != nil {
			d.counters.handlerErrors.Add(1)
			d.logger.Warning("%v", helpers.NewError(helpers.KindHandler, err, "payload %s", msg.Payload.Key))
		}
	case codec.KindSubscribeEcho:
		d.logger.Debug("Received subscribe message: %v", msg.Echo.Streams)
	case codec.KindErrorNotice:
		d.counters.errorNotices.Add(1)
		d.logger.Warning("Received error message: %s", msg.Notice.Error)
	default:
		d.counters.undecodable.Add(1)
		d.logger.Warning("%v", helpers.ProtocolError(msg.Err, "failed to deserialize message as any known type"))
	}
}

// -----------------------------------------------------------------------------

func (d *dispatcher) terminate() {
	d.connState.Store(int32(ConnClosed))
	d.loopState.Store(int32(LoopTerminated))
}

func (d *dispatcher) state() (LoopState, ConnState) {
	return LoopState(d.loopState.Load()), ConnState(d.connState.Load())
}
