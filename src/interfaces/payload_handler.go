package interfaces

import "marketstore-client/src/models"

// -----------------------------------------------------------------------------
// IPayloadHandler receives the decoded real-time updates of one subscription.
// -----------------------------------------------------------------------------

type IPayloadHandler interface {

	// HandlePayload is called once per data payload, in arrival order, and
	// never concurrently with itself for the same subscription. A returned
	// error is logged and does not end the subscription.
	HandlePayload(payload models.MStreamPayload) error
}
