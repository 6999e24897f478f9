// Package grpc_client talks to the proto.Marketstore gRPC service.
package grpc_client

import (
	"context"
	"errors"
	"time"

	"marketstore-client/src/helpers"
	"marketstore-client/src/logger"
	"marketstore-client/src/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

const (
	ServiceName = "proto.Marketstore"

	MethodQuery         = "/proto.Marketstore/Query"
	MethodWrite         = "/proto.Marketstore/Write"
	MethodListSymbols   = "/proto.Marketstore/ListSymbols"
	MethodCreate        = "/proto.Marketstore/Create"
	MethodDestroy       = "/proto.Marketstore/Destroy"
	MethodServerVersion = "/proto.Marketstore/ServerVersion"

	// RowTypeFixed is the only row type CreateBucket asks for.
	RowTypeFixed = "fixed"
)

// GrpcClient implements interfaces.IMarketStoreRPC over one grpc.ClientConn.
// It does no locking of its own; callers that share it serialize access.
type GrpcClient struct {
	conn    *grpc.ClientConn
	timeout time.Duration
	logger  *logger.Logger
}

// -----------------------------------------------------------------------------

// NewGrpcClient creates a lazily connecting client for address. A zero timeout
// leaves request deadlines to the caller's context.
func NewGrpcClient(address string, timeout time.Duration, log *logger.Logger, opts ...grpc.DialOption) (*GrpcClient, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(Codec{})),
	}
	dialOpts = append(dialOpts, opts...)

	conn, err := grpc.NewClient(address, dialOpts...)
	if err != nil {
		return nil, helpers.NewError(helpers.KindConnection, err, "create grpc client for %s", address)
	}

	log.Debug("gRPC client created for %s", address)
	return &GrpcClient{conn: conn, timeout: timeout, logger: log}, nil
}

// -----------------------------------------------------------------------------

func (c *GrpcClient) invoke(ctx context.Context, method string, req, resp Message) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	err := c.conn.Invoke(ctx, method, req, resp)
	c.logger.Debug("%s finished in %v", method, time.Since(start))
	if err != nil {
		return classify(method, err)
	}
	return nil
}

// classify maps grpc status codes onto error kinds.
func classify(method string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return helpers.NewError(helpers.KindTimeout, err, "%s", method)
	}
	st, ok := status.FromError(err)
	if !ok {
		return helpers.NewError(helpers.KindRpc, err, "%s", method)
	}
	switch st.Code() {
	case codes.DeadlineExceeded:
		return helpers.NewError(helpers.KindTimeout, err, "%s", method)
	case codes.Unavailable:
		return helpers.NewError(helpers.KindConnection, err, "%s", method)
	default:
		return helpers.NewError(helpers.KindRpc, err, "%s", method)
	}
}

func serverError(method string, resp *MultiServerResponse) error {
	if msg := resp.FirstError(); msg != "" {
		return helpers.NewError(helpers.KindRpc, errors.New(msg), "%s rejected by server", method)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (c *GrpcClient) Query(ctx context.Context, req *models.MQueryRequest) (*models.MNumpyMultiDataset, error) {
	in := &MultiQueryRequest{Requests: []*QueryRequest{QueryToWire(req)}}
	out := &MultiQueryResponse{}
	if err := c.invoke(ctx, MethodQuery, in, out); err != nil {
		return nil, err
	}

	if len(out.Responses) == 0 {
		return nil, helpers.InvalidDataError(nil, "empty response for %s", req.Destination)
	}
	result := out.Responses[0].Result
	if result == nil {
		return nil, helpers.InvalidDataError(nil, "empty dataset for %s", req.Destination)
	}
	return MultiDatasetFromWire(result), nil
}

// -----------------------------------------------------------------------------

func (c *GrpcClient) Write(ctx context.Context, key string, data *models.MNumpyDataset) error {
	if data == nil {
		return helpers.InvalidDataError(nil, "nothing to write to %s", key)
	}
	in := &MultiWriteRequest{Requests: []*WriteRequest{{
		Data: &NumpyMultiDataset{
			Data:       DatasetToWire(data),
			StartIndex: map[string]int32{key: 0},
			Lengths:    map[string]int32{key: data.Length},
		},
	}}}
	out := &MultiServerResponse{}
	if err := c.invoke(ctx, MethodWrite, in, out); err != nil {
		return err
	}
	return serverError(MethodWrite, out)
}

// -----------------------------------------------------------------------------

func (c *GrpcClient) ListSymbols(ctx context.Context, format models.SymbolFormat) ([]string, error) {
	out := &ListSymbolsResponse{}
	if err := c.invoke(ctx, MethodListSymbols, &ListSymbolsRequest{Format: int32(format)}, out); err != nil {
		return nil, err
	}
	if out.Results == nil {
		return []string{}, nil
	}
	return out.Results, nil
}

// -----------------------------------------------------------------------------

func (c *GrpcClient) CreateBucket(ctx context.Context, key string, shapes []models.MDataShape) error {
	in := &MultiCreateRequest{Requests: []*CreateRequest{{
		Key:        key,
		DataShapes: ShapesToWire(shapes),
		RowType:    RowTypeFixed,
	}}}
	out := &MultiServerResponse{}
	if err := c.invoke(ctx, MethodCreate, in, out); err != nil {
		return err
	}
	return serverError(MethodCreate, out)
}

// -----------------------------------------------------------------------------

func (c *GrpcClient) DestroyBucket(ctx context.Context, key string) error {
	in := &MultiKeyRequest{Requests: []*KeyRequest{{Key: key}}}
	out := &MultiServerResponse{}
	if err := c.invoke(ctx, MethodDestroy, in, out); err != nil {
		return err
	}
	return serverError(MethodDestroy, out)
}

// -----------------------------------------------------------------------------

func (c *GrpcClient) ServerVersion(ctx context.Context) (string, error) {
	out := &ServerVersionResponse{}
	if err := c.invoke(ctx, MethodServerVersion, &ServerVersionRequest{}, out); err != nil {
		return "", err
	}
	return out.Version, nil
}

// -----------------------------------------------------------------------------

func (c *GrpcClient) Close() error {
	return c.conn.Close()
}
