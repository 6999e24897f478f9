package main

import (
	"fmt"
	"net"

	"marketstore-client/src/config"
	"marketstore-client/src/grpc_control"
	"marketstore-client/src/logger"
	"marketstore-client/src/server"

	"google.golang.org/grpc"
)

// -----------------------------------------------------------------------------

// startServers brings up the stream hub and the in-memory gRPC service. Rows
// written over gRPC are published to the hub.
func startServers(conf *config.Config, appLogger *logger.Logger) (*server.StreamServer, *grpc.Server, error) {

	// 1. Stream server
	streamServer := server.NewStreamServer(conf.MConfig, appLogger.Named("StreamServer"))
	go func() {
		if err := streamServer.Start(); err != nil {
			appLogger.Critical("Stream server failed: %v", err)
		}
	}()

	// 2. gRPC MarketStore service
	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", conf.Simulator.Host, conf.Simulator.GrpcPort))
	if err != nil {
		streamServer.Stop()
		return nil, nil, fmt.Errorf("failed to listen for gRPC: %w", err)
	}
	grpcServer := grpc_control.NewServer()
	service := grpc_control.NewMarketstoreService(appLogger.Named("MarketstoreService"), streamServer)
	grpc_control.RegisterMarketstoreServer(grpcServer, service)

	go func() {
		appLogger.Info("Starting gRPC MarketStore service on %s", lis.Addr())
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Critical("failed to serve gRPC: %v", err)
		}
	}()

	return streamServer, grpcServer, nil
}
