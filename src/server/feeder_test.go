package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketstore-client/src/logger"
	"marketstore-client/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	keys []string
	bars []models.MOHLCVData
	fail map[string]bool
}

func (w *recordingWriter) Write(_ context.Context, symbol, timeframe, attrGroup string, rows []models.MOHLCVData) error {
	if w.fail[symbol] {
		return errors.New("rejected")
	}
	w.keys = append(w.keys, models.BucketKey(symbol, timeframe, attrGroup))
	w.bars = append(w.bars, rows...)
	return nil
}

func TestFeederTick(t *testing.T) {
	w := &recordingWriter{fail: map[string]bool{"BAD": true}}
	f := NewFeeder(models.MSimulatorConfig{Symbols: []string{"AAPL", "BAD", "MSFT"}, Timeframe: "1Min"}, w, logger.Nop())
	f.now = func() time.Time { return time.Unix(1700000000, 0) }

	assert.Equal(t, 2, f.Tick(context.Background()))
	assert.Equal(t, []string{"AAPL/1Min/OHLCV", "MSFT/1Min/OHLCV"}, w.keys)

	for _, b := range w.bars {
		assert.Equal(t, int64(1700000000), b.Epoch)
		assert.GreaterOrEqual(t, b.High, max(b.Open, b.Close))
		assert.LessOrEqual(t, b.Low, min(b.Open, b.Close))
		assert.Greater(t, b.Volume, float32(0))
	}

	// The next bar opens at the previous close.
	prev := w.bars[0].Close
	f.Tick(context.Background())
	require.Len(t, w.bars, 4)
	assert.Equal(t, prev, w.bars[2].Open)
}

func TestFeederSkipsClosedMarkets(t *testing.T) {
	w := &recordingWriter{}
	f := NewFeeder(models.MSimulatorConfig{Symbols: []string{"AAPL"}, Timeframe: "1Min", MarketHoursOnly: true}, w, logger.Nop())
	// Sunday
	f.now = func() time.Time { return time.Date(2025, 1, 19, 15, 0, 0, 0, time.UTC) }

	assert.Equal(t, 0, f.Tick(context.Background()))
	assert.Empty(t, w.keys)
}
