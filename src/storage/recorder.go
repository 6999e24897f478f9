package storage

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"marketstore-client/src/helpers"
	"marketstore-client/src/interfaces"
	"marketstore-client/src/logger"
	"marketstore-client/src/models"
)

const (
	DefaultBatchSize = 100
	maxSaveErrors    = 10
)

// NewPayloadStore picks the backend named by storage.db_type.
func NewPayloadStore(cfg *models.MConfig, log *logger.Logger) (interfaces.IPayloadStore, error) {
	switch cfg.Storage.DBType {
	case "sqlite", "":
		return NewSQLitePayloadStore(cfg, log), nil
	case "postgres":
		return NewPostgresPayloadStore(cfg, log), nil
	default:
		return nil, fmt.Errorf("unsupported db_type %q", cfg.Storage.DBType)
	}
}

// -----------------------------------------------------------------------------
// Recorder
// -----------------------------------------------------------------------------

// Recorder is a payload handler that buffers delivered payloads and saves
// them in batches. Only payloads that reached the handler are recorded.
type Recorder struct {
	store     interfaces.IPayloadStore
	batchSize int
	logger    *logger.Logger
	errors    *helpers.ErrorHandler

	mu      sync.Mutex
	pending []models.MRecordedPayload
	saved   int64
}

func NewRecorder(store interfaces.IPayloadStore, batchSize int, log *logger.Logger) *Recorder {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &Recorder{
		store:     store,
		batchSize: batchSize,
		logger:    log,
		errors:    helpers.NewErrorHandler(log, maxSaveErrors),
	}
}

// -----------------------------------------------------------------------------

// HandlePayload implements interfaces.IPayloadHandler.
func (r *Recorder) HandlePayload(payload models.MStreamPayload) error {
	rec, err := toRecord(payload, time.Now().UTC())
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending = append(r.pending, rec)
	if len(r.pending) < r.batchSize {
		return nil
	}
	return r.flushLocked()
}

// -----------------------------------------------------------------------------

// Flush saves whatever is buffered.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked()
}

func (r *Recorder) flushLocked() error {
	if len(r.pending) == 0 {
		return nil
	}

	err := r.store.SavePayloads(r.pending)
	if r.errors.Handle(err, "SavePayloads") {
		// Drop the batch rather than grow without bound.
		dropped := len(r.pending)
		r.pending = r.pending[:0]
		r.errors.ResetErrorCount()
		return fmt.Errorf("dropped %d payloads after repeated save failures: %w", dropped, err)
	}
	if err != nil {
		return err
	}

	r.saved += int64(len(r.pending))
	r.logger.Debug("Saved %d payloads (%d total)", len(r.pending), r.saved)
	r.pending = r.pending[:0]
	return nil
}

// -----------------------------------------------------------------------------

// Saved returns how many payloads reached the store.
func (r *Recorder) Saved() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saved
}

// Close flushes and closes the store.
func (r *Recorder) Close() error {
	flushErr := r.Flush()
	if err := r.store.Close(); err != nil {
		return err
	}
	return flushErr
}

// -----------------------------------------------------------------------------

func toRecord(p models.MStreamPayload, now time.Time) (models.MRecordedPayload, error) {
	data, err := json.Marshal(p.Data)
	if err != nil {
		return models.MRecordedPayload{}, fmt.Errorf("encode payload %s: %w", p.Key, err)
	}
	epoch, _ := asInt64(p.Data["Epoch"])
	return models.MRecordedPayload{
		Key:        p.Key,
		Epoch:      epoch,
		Data:       string(data),
		ReceivedAt: now.Unix(),
		CreatedAt:  now,
	}, nil
}

// asInt64 reads a numeric epoch. Values outside the int64 range are rejected.
func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint32:
		return int64(n), true
	case float64:
		return floatToInt64(n)
	case float32:
		return floatToInt64(float64(n))
	default:
		return 0, false
	}
}

func floatToInt64(f float64) (int64, bool) {
	// 2^63 is exactly representable; MaxInt64 as a float64 rounds up to it.
	if math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
