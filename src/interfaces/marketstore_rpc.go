package interfaces

import (
	"context"

	"marketstore-client/src/models"
)

// -----------------------------------------------------------------------------
// IMarketStoreRPC is the request/response side of a MarketStore server.
// Every method is a single request with a single response.
// -----------------------------------------------------------------------------

type IMarketStoreRPC interface {

	// Query reads one time bucket key within a time range.
	Query(ctx context.Context, req *models.MQueryRequest) (*models.MNumpyMultiDataset, error)

	// -----------------------------------------------------------------------------

	// Write appends columnar rows to one time bucket key.
	Write(ctx context.Context, key string, data *models.MNumpyDataset) error

	// -----------------------------------------------------------------------------

	// ListSymbols returns symbols or full time bucket keys depending on format.
	ListSymbols(ctx context.Context, format models.SymbolFormat) ([]string, error)

	// -----------------------------------------------------------------------------

	// CreateBucket creates a fixed-row bucket with the given column schema.
	CreateBucket(ctx context.Context, key string, shapes []models.MDataShape) error

	// -----------------------------------------------------------------------------

	// DestroyBucket removes a bucket and its data.
	DestroyBucket(ctx context.Context, key string) error

	// -----------------------------------------------------------------------------

	// ServerVersion reports the server build version.
	ServerVersion(ctx context.Context) (string, error)

	// -----------------------------------------------------------------------------

	// Close releases the underlying connection.
	Close() error
}
