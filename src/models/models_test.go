package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStreamPattern(t *testing.T) {
	tests := []struct {
		pattern string
		ok      bool
	}{
		{"AAPL/1Min/OHLCV", true},
		{"*/*/*", true},
		{"AAPL/*/TICK", true},
		{"AAPL/1Min", false},
		{"AAPL/1Min/OHLCV/extra", false},
		{"AAPL//OHLCV", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			err := ValidateStreamPattern(tt.pattern)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestMatchStream(t *testing.T) {
	assert.True(t, MatchStream("AAPL/1Min/OHLCV", "AAPL/1Min/OHLCV"))
	assert.True(t, MatchStream("*/1Min/OHLCV", "MSFT/1Min/OHLCV"))
	assert.True(t, MatchStream("*/*/*", "X/1D/TICK"))
	assert.False(t, MatchStream("AAPL/1Min/OHLCV", "AAPL/1H/OHLCV"))
	assert.False(t, MatchStream("AAPL/*", "AAPL/1Min/OHLCV"))
}

func TestStreamSubscriptionKeepsOrderAndDuplicates(t *testing.T) {
	sub := NewStreamSubscription().
		AddStream("B/1H/TICK").
		AddStreams([]string{"A/1Min/OHLCV", "B/1H/TICK"})
	assert.Equal(t, []string{"B/1H/TICK", "A/1Min/OHLCV", "B/1H/TICK"}, sub.Streams)
	assert.NoError(t, sub.Validate())

	assert.Error(t, sub.AddStream("broken").Validate())
	assert.NoError(t, NewStreamSubscription().Validate())
}

func TestQueryRequestBuilderDefaults(t *testing.T) {
	req, err := NewQueryRequest().Symbol("AAPL").Timeframe("1Min").AttrGroup("OHLCV").Build()
	require.NoError(t, err)

	assert.Equal(t, "AAPL/1Min/OHLCV", req.Destination)
	assert.Equal(t, int64(0), req.EpochStart)
	assert.Equal(t, int64(math.MaxInt64), req.EpochEnd)
	assert.Equal(t, DefaultQueryLimit, req.LimitRecordCount)
	assert.False(t, req.LimitFromStart)
	assert.Empty(t, req.Columns)
}

func TestQueryRequestBuilderValidation(t *testing.T) {
	_, err := NewQueryRequest().Timeframe("1Min").AttrGroup("OHLCV").Build()
	assert.EqualError(t, err, "symbol is required")

	_, err = NewQueryRequest().Symbol("A").AttrGroup("OHLCV").Build()
	assert.EqualError(t, err, "timeframe is required")

	_, err = NewQueryRequest().Symbol("A").Timeframe("1Min").Build()
	assert.EqualError(t, err, "attribute group is required")

	_, err = NewQueryRequest().Symbol("A").Timeframe("1Min").AttrGroup("OHLCV").StartTime(10).EndTime(5).Build()
	assert.Error(t, err)

	req, err := NewQueryRequest().Symbol("A").Timeframe("1Min").AttrGroup("OHLCV").
		StartTime(5).EndTime(10).Limit(3).LimitFromStart(true).Columns("Open", "Close").Build()
	require.NoError(t, err)
	assert.Equal(t, int64(5), req.EpochStart)
	assert.Equal(t, int32(3), req.LimitRecordCount)
	assert.True(t, req.LimitFromStart)
	assert.Equal(t, []string{"Open", "Close"}, req.Columns)
}
