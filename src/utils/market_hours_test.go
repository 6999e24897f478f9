package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMicFor(t *testing.T) {
	assert.Equal(t, "xnys", micFor("AAPL"))
	assert.Equal(t, "xlon", micFor("VOD.L"))
	assert.Equal(t, "xtks", micFor("7203.T"))
	assert.Equal(t, "xnys", micFor("BRK.B"))
}

func TestMarketHours(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	h := MarketHoursFor("AAPL")
	assert.Same(t, h, MarketHoursFor("MSFT"))

	// Wednesday mid-morning, not a holiday.
	assert.True(t, h.IsOpen(time.Date(2025, 1, 15, 11, 0, 0, 0, ny)))
	// Saturday.
	assert.False(t, h.IsOpen(time.Date(2025, 1, 18, 11, 0, 0, 0, ny)))
	// Before the open.
	assert.False(t, h.IsOpen(time.Date(2025, 1, 15, 8, 0, 0, 0, ny)))

	assert.False(t, AnyMarketOpen(nil, time.Date(2025, 1, 15, 11, 0, 0, 0, ny)))
	assert.True(t, AnyMarketOpen([]string{"AAPL"}, time.Date(2025, 1, 15, 11, 0, 0, 0, ny)))
}
