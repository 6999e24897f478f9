package storage

import (
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"marketstore-client/src/logger"
	"marketstore-client/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteConfig(t *testing.T) *models.MConfig {
	return &models.MConfig{
		Name: "recorder-test",
		Storage: models.MStorageConfig{
			Enabled:           true,
			DBType:            "sqlite",
			DBPath:            filepath.Join(t.TempDir(), "payloads.db"),
			DataRetentionDays: 7,
		},
	}
}

func payload(key string, epoch int64, price float64) models.MStreamPayload {
	return models.MStreamPayload{Key: key, Data: map[string]interface{}{"Epoch": epoch, "Price": price}}
}

func TestRecorderBatchesIntoSQLite(t *testing.T) {
	cfg := sqliteConfig(t)
	store, err := NewPayloadStore(cfg, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, store.Initialize())

	rec := NewRecorder(store, 2, logger.Nop())
	require.NoError(t, rec.HandlePayload(payload("AAPL/1Min/TICK", 100, 1.5)))
	assert.EqualValues(t, 0, rec.Saved())

	require.NoError(t, rec.HandlePayload(payload("AAPL/1Min/TICK", 160, 1.75)))
	assert.EqualValues(t, 2, rec.Saved())

	require.NoError(t, rec.HandlePayload(payload("MSFT/1Min/TICK", 100, 9)))
	require.NoError(t, rec.Flush())
	assert.EqualValues(t, 3, rec.Saved())

	got, err := store.LoadPayloads("AAPL/1Min/TICK", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(100), got[0].Epoch)
	assert.Equal(t, int64(160), got[1].Epoch)

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(got[1].Data), &data))
	assert.Equal(t, 1.75, data["Price"])

	require.NoError(t, rec.Close())
}

func TestSQLiteCleanupOldData(t *testing.T) {
	cfg := sqliteConfig(t)
	store := NewSQLitePayloadStore(cfg, logger.Nop())
	require.NoError(t, store.Initialize())
	defer store.Close()

	old := time.Now().AddDate(0, 0, -30).Unix()
	require.NoError(t, store.SavePayloads([]models.MRecordedPayload{
		{Key: "A/1Min/OHLCV", Epoch: 1, Data: "{}", ReceivedAt: old},
		{Key: "A/1Min/OHLCV", Epoch: 2, Data: "{}", ReceivedAt: time.Now().Unix()},
	}))

	require.NoError(t, store.CleanupOldData())

	got, err := store.LoadPayloads("A/1Min/OHLCV", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].Epoch)
}

type failingStore struct {
	calls int
}

func (f *failingStore) Initialize() error { return nil }
func (f *failingStore) SavePayloads([]models.MRecordedPayload) error {
	f.calls++
	return errors.New("disk full")
}
func (f *failingStore) LoadPayloads(string, int) ([]models.MRecordedPayload, error) {
	return nil, nil
}
func (f *failingStore) CleanupOldData() error { return nil }
func (f *failingStore) Close() error          { return nil }

func TestRecorderDropsAfterRepeatedFailures(t *testing.T) {
	store := &failingStore{}
	rec := NewRecorder(store, 1, logger.Nop())

	for i := 0; i < maxSaveErrors-1; i++ {
		err := rec.HandlePayload(payload("A/1Min/OHLCV", int64(i), 1))
		require.Error(t, err)
		assert.NotContains(t, err.Error(), "dropped")
	}
	err := rec.HandlePayload(payload("A/1Min/OHLCV", 99, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dropped 10 payloads")

	assert.Equal(t, maxSaveErrors, store.calls)
	assert.NoError(t, rec.Flush())
}

func TestNewPayloadStoreRejectsUnknownType(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Storage.DBType = "mongo"
	_, err := NewPayloadStore(cfg, logger.Nop())
	assert.Error(t, err)

	cfg.Storage.DBType = "postgres"
	store, err := NewPayloadStore(cfg, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, "recorder_test", store.(*PostgresPayloadStore).Schema)
}

func TestAsInt64RejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want int64
		ok   bool
	}{
		{"int64", int64(1700000000), 1700000000, true},
		{"uint64 max int64", uint64(math.MaxInt64), math.MaxInt64, true},
		{"uint64 overflow", uint64(math.MaxUint64), 0, false},
		{"uint64 just above", uint64(math.MaxInt64) + 1, 0, false},
		{"float64", float64(1700000000), 1700000000, true},
		{"float64 overflow", math.MaxFloat64, 0, false},
		{"float64 negative overflow", -math.MaxFloat64, 0, false},
		{"float64 NaN", math.NaN(), 0, false},
		{"string", "1700000000", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := asInt64(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToRecordKeepsOverflowingEpochAtZero(t *testing.T) {
	p := models.MStreamPayload{Key: "A/1Min/OHLCV", Data: map[string]interface{}{"Epoch": uint64(math.MaxUint64)}}
	rec, err := toRecord(p, time.Unix(100, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(0), rec.Epoch)
	assert.Equal(t, int64(100), rec.ReceivedAt)
}
