package interfaces

import "marketstore-client/src/models"

// -----------------------------------------------------------------------------
// IStreamPublisher fans written rows out to stream subscribers.
// -----------------------------------------------------------------------------

type IStreamPublisher interface {
	// -----------------------------------------------------------------------------
	// Publish pushes one payload to every subscriber whose patterns match its key.
	Publish(payload models.MStreamPayload)

	// -----------------------------------------------------------------------------
	// Start the server
	Start() error

	// -----------------------------------------------------------------------------
	// Stop the server gracefully
	Stop() error
}
