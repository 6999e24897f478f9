package helpers

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"marketstore-client/src/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKindsMatchSentinels(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	err := TransportError(cause, "receive failed")

	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.NotErrorIs(t, err, ErrProtocol)
	assert.Equal(t, "transport error: receive failed: unexpected EOF", err.Error())

	wrapped := errors.Join(errors.New("outer"), ProtocolError(nil, "bad frame %d", 3))
	assert.ErrorIs(t, wrapped, ErrProtocol)

	var mse *MarketStoreError
	require.ErrorAs(t, wrapped, &mse)
	assert.Equal(t, KindProtocol, mse.Kind)
	assert.Equal(t, "protocol error: bad frame 3", mse.Error())
}

func TestRetryWithBackoff(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), logger.Nop(), "op", 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = RetryWithBackoff(context.Background(), logger.Nop(), "op", 2, time.Millisecond, func() error {
		calls++
		return errors.New("down")
	})
	assert.EqualError(t, err, "down")
	assert.Equal(t, 2, calls)
}

func TestRetryWithBackoffStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	start := time.Now()
	err := RetryWithBackoff(ctx, logger.Nop(), "op", 5, time.Hour, func() error {
		calls++
		cancel()
		return errors.New("down")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Second)
}

func TestErrorHandlerBudget(t *testing.T) {
	h := NewErrorHandler(logger.Nop(), 2)
	assert.False(t, h.Handle(errors.New("a"), "test"))
	assert.False(t, h.Handle(nil, "test"))
	assert.False(t, h.Handle(errors.New("b"), "test"))
	assert.True(t, h.Handle(errors.New("c"), "test"))

	h.ResetErrorCount()
	assert.Equal(t, 0, h.ErrorCount)
}
