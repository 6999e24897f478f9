package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"marketstore-client/src/client"
	"marketstore-client/src/config"
	"marketstore-client/src/helpers"
	"marketstore-client/src/interfaces"
	"marketstore-client/src/logger"
	"marketstore-client/src/models"
	"marketstore-client/src/storage"
	"marketstore-client/src/stream"
)

const resubscribeDelay = 2 * time.Second

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "", "path to config file (defaults are used when empty)")
	streams := flag.String("streams", "", "comma separated stream patterns, overrides the config")
	flag.Parse()

	// Load config
	conf := config.Default()
	if *configPath != "" {
		var err error
		if conf, err = config.NewConfig(*configPath); err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	if *streams != "" {
		conf.Streams = strings.Split(*streams, ",")
		if err := conf.Validate(); err != nil {
			fmt.Printf("Invalid streams: %v\n", err)
			os.Exit(1)
		}
	}

	// Setup logger
	appLogger := logger.NewLogger(conf.LogLevel, conf.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf, appLogger); err != nil {
		appLogger.Error("Exiting: %v", err)
		os.Exit(1)
	}
	appLogger.Info("Shutdown complete")
}

// -----------------------------------------------------------------------------

func run(ctx context.Context, conf *config.Config, appLogger *logger.Logger) error {

	// 1. Connect and probe the server
	cli, err := client.ConnectWithConfig(conf.MConfig, appLogger)
	if err != nil {
		return err
	}
	defer cli.Close()

	var version string
	err = helpers.RetryWithBackoff(ctx, appLogger, "server version", conf.Network.MaxRetries+1, time.Second, func() error {
		var err error
		version, err = cli.ServerVersion(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("marketstore at %s is not reachable: %w", conf.GrpcAddress, err)
	}
	appLogger.Info("Connected to MarketStore %s", version)

	if keys, err := cli.ListSymbols(ctx, models.SymbolFormatTimeBucketKey); err != nil {
		appLogger.Warning("ListSymbols failed: %v", err)
	} else {
		appLogger.Info("Server has %d time bucket keys", len(keys))
	}

	if len(conf.Streams) == 0 {
		appLogger.Info("No streams configured, nothing to subscribe to")
		return nil
	}

	// 2. Payload handler, optionally recording
	handler, closeHandler, err := setupHandler(conf.MConfig, appLogger)
	if err != nil {
		return err
	}
	defer closeHandler()

	// 3. Subscribe until cancelled, resubscribing after transport failures
	return subscribeLoop(ctx, cli, conf, handler, appLogger)
}

// -----------------------------------------------------------------------------

func setupHandler(cfg *models.MConfig, appLogger *logger.Logger) (interfaces.IPayloadHandler, func(), error) {
	logPayload := func(p models.MStreamPayload) error {
		appLogger.Debug("%s %v", p.Key, p.Data)
		return nil
	}
	if !cfg.Storage.Enabled {
		return stream.HandlerFunc(logPayload), func() {}, nil
	}

	db, err := storage.NewPayloadStore(cfg, appLogger.Named("Storage"))
	if err != nil {
		return nil, nil, err
	}
	if err := db.Initialize(); err != nil {
		return nil, nil, fmt.Errorf("failed to init db: %w", err)
	}
	if err := db.CleanupOldData(); err != nil {
		appLogger.Warning("Cleanup failed: %v", err)
	}

	recorder := storage.NewRecorder(db, storage.DefaultBatchSize, appLogger.Named("Recorder"))
	handler := stream.HandlerFunc(func(p models.MStreamPayload) error {
		logPayload(p)
		return recorder.HandlePayload(p)
	})
	closeFn := func() {
		if err := recorder.Close(); err != nil {
			appLogger.Error("Failed to close recorder: %v", err)
		}
		appLogger.Info("Recorded %d payloads", recorder.Saved())
	}
	return handler, closeFn, nil
}

// -----------------------------------------------------------------------------

func subscribeLoop(ctx context.Context, cli *client.MarketStoreClient, conf *config.Config, handler interfaces.IPayloadHandler, appLogger *logger.Logger) error {
	attempts := conf.Network.MaxRetries + 1

	return helpers.RetryWithBackoff(ctx, appLogger, "subscription", attempts, resubscribeDelay, func() error {
		sub := cli.SubscribeCancelable(ctx, conf.Streams, handler)
		appLogger.Info("Subscription %s started for %v", sub.ID, conf.Streams)

		err := sub.Wait()
		st := sub.Stats()
		appLogger.Info("Subscription %s ended after %d payloads", sub.ID, st.Payloads)
		return err
	})
}
