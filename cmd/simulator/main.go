package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketstore-client/src/client"
	"marketstore-client/src/config"
	"marketstore-client/src/logger"
	"marketstore-client/src/server"
)

func main() {
	// 1. Parse command line flags
	configPath := flag.String("config", "", "path to config file (defaults are used when empty)")
	feed := flag.Bool("feed", true, "write synthetic bars for the configured symbols")
	flag.Parse()

	// 2. Load config
	conf := config.Default()
	if *configPath != "" {
		var err error
		if conf, err = config.NewConfig(*configPath); err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	// 3. Setup Logger
	appLogger := logger.NewLogger(conf.LogLevel, conf.Name+"-simulator")

	// 4. Start Servers
	streamServer, grpcServer, err := startServers(conf, appLogger)
	if err != nil {
		appLogger.Critical("Failed to start simulator: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Feed synthetic bars through the gRPC side like any other writer
	if *feed && len(conf.Simulator.Symbols) > 0 {
		writer, err := client.Connect(fmt.Sprintf("127.0.0.1:%d", conf.Simulator.GrpcPort), "", appLogger.Named("Feeder"),
			client.WithRequestTimeout(time.Duration(conf.Network.RequestTimeout)*time.Second))
		if err != nil {
			appLogger.Critical("Failed to create feeder client: %v", err)
		}
		defer writer.Close()

		feeder := server.NewFeeder(conf.Simulator, writer, appLogger.Named("Feeder"))
		go feeder.Run(ctx)
	}

	<-ctx.Done()
	appLogger.Info("Shutting down...")

	if err := streamServer.Stop(); err != nil {
		appLogger.Warning("Stream server shutdown: %v", err)
	}
	grpcServer.GracefulStop()
}
