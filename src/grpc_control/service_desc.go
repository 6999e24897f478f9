package grpc_control

import (
	"context"

	"marketstore-client/src/grpc_client"

	"google.golang.org/grpc"
)

// MarketstoreServer is the server side of proto.Marketstore.
type MarketstoreServer interface {
	Query(context.Context, *grpc_client.MultiQueryRequest) (*grpc_client.MultiQueryResponse, error)
	Write(context.Context, *grpc_client.MultiWriteRequest) (*grpc_client.MultiServerResponse, error)
	ListSymbols(context.Context, *grpc_client.ListSymbolsRequest) (*grpc_client.ListSymbolsResponse, error)
	Create(context.Context, *grpc_client.MultiCreateRequest) (*grpc_client.MultiServerResponse, error)
	Destroy(context.Context, *grpc_client.MultiKeyRequest) (*grpc_client.MultiServerResponse, error)
	ServerVersion(context.Context, *grpc_client.ServerVersionRequest) (*grpc_client.ServerVersionResponse, error)
}

// NewServer returns a grpc.Server that speaks the hand-written messages.
func NewServer(opts ...grpc.ServerOption) *grpc.Server {
	return grpc.NewServer(append([]grpc.ServerOption{grpc_client.ServerCodecOption()}, opts...)...)
}

func RegisterMarketstoreServer(s grpc.ServiceRegistrar, srv MarketstoreServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// -----------------------------------------------------------------------------

// unary builds a method handler that decodes into a fresh Req and calls fn.
func unary[Req any, Resp any, PReq interface {
	*Req
	grpc_client.Message
}](method string, fn func(MarketstoreServer, context.Context, PReq) (Resp, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return fn(srv.(MarketstoreServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return fn(srv.(MarketstoreServer), ctx, req.(PReq))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: grpc_client.ServiceName,
	HandlerType: (*MarketstoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Query", Handler: unary(grpc_client.MethodQuery, MarketstoreServer.Query)},
		{MethodName: "Write", Handler: unary(grpc_client.MethodWrite, MarketstoreServer.Write)},
		{MethodName: "ListSymbols", Handler: unary(grpc_client.MethodListSymbols, MarketstoreServer.ListSymbols)},
		{MethodName: "Create", Handler: unary(grpc_client.MethodCreate, MarketstoreServer.Create)},
		{MethodName: "Destroy", Handler: unary(grpc_client.MethodDestroy, MarketstoreServer.Destroy)},
		{MethodName: "ServerVersion", Handler: unary(grpc_client.MethodServerVersion, MarketstoreServer.ServerVersion)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "marketstore.proto",
}
