package interfaces

import "marketstore-client/src/models"

// -----------------------------------------------------------------------------
// IPayloadStore persists delivered stream payloads.
// -----------------------------------------------------------------------------

type IPayloadStore interface {

	// -----------------------------------------------------------------------------

	// Initialize opens the database and creates the schema if missing.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SavePayloads inserts a batch of received payloads.
	SavePayloads(payloads []models.MRecordedPayload) error

	// -----------------------------------------------------------------------------

	// LoadPayloads returns recorded payloads of one key, oldest first.
	LoadPayloads(key string, limit int) ([]models.MRecordedPayload, error)

	// -----------------------------------------------------------------------------

	// CleanupOldData removes payloads older than the retention policy.
	CleanupOldData() error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
