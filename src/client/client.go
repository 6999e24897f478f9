// Package client combines the administrative RPC channel and the streaming
// subscription channel behind one MarketStore client.
package client

import (
	"context"
	"sync"
	"time"

	"marketstore-client/src/grpc_client"
	"marketstore-client/src/helpers"
	"marketstore-client/src/interfaces"
	"marketstore-client/src/logger"
	"marketstore-client/src/models"
	"marketstore-client/src/stream"
	"marketstore-client/src/utils"

	"github.com/gorilla/websocket"
	"google.golang.org/grpc"
)

// MarketStoreClient shares one RPC connection between all administrative
// calls. Each call holds the guard for exactly one round trip, so concurrent
// calls queue and never interleave on the wire. Subscriptions do not touch
// the guard; each one opens its own stream connection.
type MarketStoreClient struct {
	StreamURL string

	rpcMu sync.Mutex
	rpc   interfaces.IMarketStoreRPC

	logger      *logger.Logger
	sessionOpts []stream.SessionOption
}

// -----------------------------------------------------------------------------
// Construction
// -----------------------------------------------------------------------------

type connectOptions struct {
	requestTimeout time.Duration
	dialOptions    []grpc.DialOption
	sessionOpts    []stream.SessionOption
}

type Option func(*connectOptions)

// WithRequestTimeout bounds every administrative round trip.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *connectOptions) { o.requestTimeout = d }
}

func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *connectOptions) { o.dialOptions = append(o.dialOptions, opts...) }
}

// WithSessionOptions applies to every subscription started by the client.
func WithSessionOptions(opts ...stream.SessionOption) Option {
	return func(o *connectOptions) { o.sessionOpts = append(o.sessionOpts, opts...) }
}

// -----------------------------------------------------------------------------

// Connect creates a client for a MarketStore gRPC address and stream URL.
// The RPC connection is established lazily on the first call.
func Connect(rpcAddress, streamURL string, log *logger.Logger, opts ...Option) (*MarketStoreClient, error) {
	o := &connectOptions{}
	for _, opt := range opts {
		opt(o)
	}

	rpc, err := grpc_client.NewGrpcClient(rpcAddress, o.requestTimeout, log.Named("GrpcClient"), o.dialOptions...)
	if err != nil {
		return nil, err
	}

	log.Info("MarketStore client ready (rpc=%s, stream=%s)", rpcAddress, streamURL)
	return New(rpc, streamURL, log, o.sessionOpts...), nil
}

// ConnectWithConfig is Connect with network settings taken from the config.
func ConnectWithConfig(cfg *models.MConfig, log *logger.Logger, opts ...Option) (*MarketStoreClient, error) {
	dialer := *websocket.DefaultDialer
	if cfg.Network.HandshakeTimeout > 0 {
		dialer.HandshakeTimeout = time.Duration(cfg.Network.HandshakeTimeout) * time.Second
	}

	base := []Option{
		WithRequestTimeout(time.Duration(cfg.Network.RequestTimeout) * time.Second),
		WithSessionOptions(stream.WithDialer(&dialer)),
	}
	if cfg.Network.MaxMessageSize > 0 {
		base = append(base, WithSessionOptions(stream.WithMaxMessageSize(int64(cfg.Network.MaxMessageSize))))
	}
	return Connect(cfg.GrpcAddress, cfg.StreamURL, log, append(base, opts...)...)
}

// New wraps an existing RPC implementation.
func New(rpc interfaces.IMarketStoreRPC, streamURL string, log *logger.Logger, sessionOpts ...stream.SessionOption) *MarketStoreClient {
	return &MarketStoreClient{
		StreamURL:   streamURL,
		rpc:         rpc,
		logger:      log,
		sessionOpts: sessionOpts,
	}
}

// -----------------------------------------------------------------------------
// Guard
// -----------------------------------------------------------------------------

// withRPC runs fn while holding the guard. Waiting for the guard is not an
// error; a cancelled ctx only affects the round trip itself.
func (c *MarketStoreClient) withRPC(fn func(rpc interfaces.IMarketStoreRPC) error) error {
	c.rpcMu.Lock()
	defer c.rpcMu.Unlock()
	return fn(c.rpc)
}

// -----------------------------------------------------------------------------
// Administrative calls
// -----------------------------------------------------------------------------

func (c *MarketStoreClient) Query(ctx context.Context, req *models.MQueryRequest) (*models.MNumpyMultiDataset, error) {
	var res *models.MNumpyMultiDataset
	err := c.withRPC(func(rpc interfaces.IMarketStoreRPC) error {
		var err error
		res, err = rpc.Query(ctx, req)
		return err
	})
	return res, err
}

// QueryOHLCV builds the request from its parts and decodes the result into bars.
func (c *MarketStoreClient) QueryOHLCV(ctx context.Context, symbol, timeframe, attrGroup string, start, end int64, limit int32) ([]models.MOHLCVData, error) {
	req, err := models.NewQueryRequest().
		Symbol(symbol).Timeframe(timeframe).AttrGroup(attrGroup).
		StartTime(start).EndTime(end).Limit(limit).
		Build()
	if err != nil {
		return nil, helpers.InvalidDataError(err, "build query")
	}

	res, err := c.Query(ctx, req)
	if err != nil {
		return nil, err
	}
	rows, err := utils.DatasetToOHLCV(res.Data)
	if err != nil {
		return nil, helpers.InvalidDataError(err, "decode %s", req.Destination)
	}
	return rows, nil
}

// -----------------------------------------------------------------------------

// Write stores bars under symbol/timeframe/attrGroup.
func (c *MarketStoreClient) Write(ctx context.Context, symbol, timeframe, attrGroup string, rows []models.MOHLCVData) error {
	key := models.BucketKey(symbol, timeframe, attrGroup)
	data := utils.OHLCVToDataset(rows)
	return c.withRPC(func(rpc interfaces.IMarketStoreRPC) error {
		return rpc.Write(ctx, key, data)
	})
}

func (c *MarketStoreClient) ListSymbols(ctx context.Context, format models.SymbolFormat) ([]string, error) {
	var out []string
	err := c.withRPC(func(rpc interfaces.IMarketStoreRPC) error {
		var err error
		out, err = rpc.ListSymbols(ctx, format)
		return err
	})
	return out, err
}

func (c *MarketStoreClient) CreateBucket(ctx context.Context, symbol, timeframe, attrGroup string, shapes []models.MDataShape) error {
	key := models.BucketKey(symbol, timeframe, attrGroup)
	return c.withRPC(func(rpc interfaces.IMarketStoreRPC) error {
		return rpc.CreateBucket(ctx, key, shapes)
	})
}

func (c *MarketStoreClient) DestroyBucket(ctx context.Context, symbol, timeframe, attrGroup string) error {
	key := models.BucketKey(symbol, timeframe, attrGroup)
	return c.withRPC(func(rpc interfaces.IMarketStoreRPC) error {
		return rpc.DestroyBucket(ctx, key)
	})
}

func (c *MarketStoreClient) ServerVersion(ctx context.Context) (string, error) {
	var v string
	err := c.withRPC(func(rpc interfaces.IMarketStoreRPC) error {
		var err error
		v, err = rpc.ServerVersion(ctx)
		return err
	})
	return v, err
}

// -----------------------------------------------------------------------------
// Batches
// -----------------------------------------------------------------------------

// BucketWrite is one element of BatchWrite.
type BucketWrite struct {
	Symbol    string
	Timeframe string
	AttrGroup string
	Rows      []models.MOHLCVData
}

// BatchQuery runs the queries in order, taking the guard once per query so
// other callers can interleave between elements. It stops at the first error
// and returns the results gathered so far.
func (c *MarketStoreClient) BatchQuery(ctx context.Context, reqs []*models.MQueryRequest) ([]*models.MNumpyMultiDataset, error) {
	results := make([]*models.MNumpyMultiDataset, 0, len(reqs))
	for _, req := range reqs {
		res, err := c.Query(ctx, req)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// BatchWrite writes each element in order and stops at the first error.
func (c *MarketStoreClient) BatchWrite(ctx context.Context, writes []BucketWrite) error {
	for _, w := range writes {
		if err := c.Write(ctx, w.Symbol, w.Timeframe, w.AttrGroup, w.Rows); err != nil {
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

// HealthCheck reports whether the server answers a version probe.
func (c *MarketStoreClient) HealthCheck(ctx context.Context) bool {
	if _, err := c.ServerVersion(ctx); err != nil {
		c.logger.Warning("Health check failed: %v", err)
		return false
	}
	return true
}

// -----------------------------------------------------------------------------
// Streaming
// -----------------------------------------------------------------------------

// Subscribe starts a subscription that runs until the server closes the
// stream or the transport fails.
func (c *MarketStoreClient) Subscribe(patterns []string, handler interfaces.IPayloadHandler) *stream.Subscription {
	return c.SubscribeCancelable(context.Background(), patterns, handler)
}

// SubscribeCancelable is Subscribe with a cancellation signal: cancelling ctx
// performs the close handshake and ends the subscription with a nil result.
func (c *MarketStoreClient) SubscribeCancelable(ctx context.Context, patterns []string, handler interfaces.IPayloadHandler) *stream.Subscription {
	session := stream.NewSession(c.StreamURL, patterns, handler, c.logger.Named("StreamSession"), c.sessionOpts...)
	return session.Start(ctx)
}

// -----------------------------------------------------------------------------

// Close releases the RPC connection once any in-flight call has finished.
// Running subscriptions are not affected.
func (c *MarketStoreClient) Close() error {
	return c.withRPC(func(rpc interfaces.IMarketStoreRPC) error {
		return rpc.Close()
	})
}
