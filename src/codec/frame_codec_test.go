package codec

import (
	"testing"

	"marketstore-client/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ugorji/go/codec"
)

func TestSubscribeRoundTrip(t *testing.T) {
	streams := []string{"A/1Min/OHLCV", "B/1H/TICK"}

	frame, err := EncodeSubscribe(streams)
	require.NoError(t, err)

	got, err := DecodeSubscribe(frame)
	require.NoError(t, err)
	assert.Equal(t, streams, got.Streams)
}

func TestEncodeSubscribeDeterministic(t *testing.T) {
	streams := []string{"*/1Min/OHLCV", "AAPL/1D/*", "AAPL/1D/*"}

	a, err := EncodeSubscribe(streams)
	require.NoError(t, err)
	b, err := EncodeSubscribe(streams)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	got, err := DecodeSubscribe(a)
	require.NoError(t, err)
	assert.Equal(t, streams, got.Streams, "duplicates and order are preserved")
}

func TestEncodeSubscribeEmpty(t *testing.T) {
	frame, err := EncodeSubscribe(nil)
	require.NoError(t, err)

	got, err := DecodeSubscribe(frame)
	require.NoError(t, err)
	assert.Empty(t, got.Streams)
}

func TestDecodeClassification(t *testing.T) {
	payload, err := Encode(&models.MStreamPayload{
		Key:  "BTCUSDT/1Min/OHLCV",
		Data: map[string]interface{}{"Open": 100.5, "Epoch": int64(1640995200)},
	})
	require.NoError(t, err)

	echo, err := EncodeSubscribe([]string{"BTCUSDT/1Min/OHLCV"})
	require.NoError(t, err)

	notice, err := Encode(&models.MErrorMessage{Error: "invalid stream"})
	require.NoError(t, err)

	t.Run("data payload", func(t *testing.T) {
		msg := Decode(payload)
		require.Equal(t, KindDataPayload, msg.Kind)
		assert.Equal(t, "BTCUSDT/1Min/OHLCV", msg.Payload.Key)
		assert.Equal(t, 100.5, msg.Payload.Data["Open"])
		assert.Equal(t, int64(1640995200), msg.Payload.Data["Epoch"])
	})

	t.Run("subscribe echo", func(t *testing.T) {
		msg := Decode(echo)
		require.Equal(t, KindSubscribeEcho, msg.Kind)
		assert.Equal(t, []string{"BTCUSDT/1Min/OHLCV"}, msg.Echo.Streams)
	})

	t.Run("error notice", func(t *testing.T) {
		msg := Decode(notice)
		require.Equal(t, KindErrorNotice, msg.Kind)
		assert.Equal(t, "invalid stream", msg.Notice.Error)
	})
}

func TestDecodeArrayForm(t *testing.T) {
	var frame []byte
	err := codec.NewEncoderBytes(&frame, mh).Encode([]interface{}{
		"ETHUSDT/1Min/OHLCV",
		map[string]interface{}{"Close": 2.5},
	})
	require.NoError(t, err)

	msg := Decode(frame)
	require.Equal(t, KindDataPayload, msg.Kind)
	assert.Equal(t, "ETHUSDT/1Min/OHLCV", msg.Payload.Key)
}

func TestDecodePriority(t *testing.T) {
	// Fits both the payload and the echo shape; the payload wins.
	frame, err := Encode(map[string]interface{}{
		"key":     "X/1Min/OHLCV",
		"data":    map[string]interface{}{},
		"streams": []string{"X/1Min/OHLCV"},
	})
	require.NoError(t, err)

	assert.Equal(t, KindDataPayload, Decode(frame).Kind)
}

func TestDecodeUndecodable(t *testing.T) {
	cases := map[string][]byte{
		"empty":           {},
		"reserved byte":   {0xc1},
		"truncated map":   {0x82, 0xa3, 'k', 'e', 'y'},
		"plain integer":   {0x2a},
		"wrong key types": mustEncode(t, map[string]interface{}{"key": 7, "data": "x"}),
	}
	for name, frame := range cases {
		t.Run(name, func(t *testing.T) {
			msg := Decode(frame)
			assert.Equal(t, KindUndecodable, msg.Kind)
			assert.Error(t, msg.Err)
		})
	}
}

func mustEncode(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := Encode(v)
	require.NoError(t, err)
	return b
}
