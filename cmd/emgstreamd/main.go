package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"emgstream/internal/api"
	"emgstream/internal/config"
	"emgstream/internal/ingest"
	"emgstream/internal/logging"
	"emgstream/internal/pipeline"
	"emgstream/internal/storage"
	"emgstream/internal/telemetry"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "emgstream.yaml", "path to configuration file")
	flag.Parse()

	path := config.ResolvePath(*configPath)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := config.Save(path, config.DefaultConfig()); err != nil {
			fmt.Fprintln(os.Stderr, "write default config:", err)
			os.Exit(1)
		}
	}
	manager, err := config.NewManager(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	cfg := manager.Get()
	logger := logging.NewLogger(cfg.LogLevel)
	logger.Info("starting", "version", version, "config", path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		logger.Error("storage init error", "err", err)
		os.Exit(1)
	}
	if store != nil {
		initCtx, initCancel := context.WithTimeout(ctx, 10*time.Second)
		err = store.Init(initCtx)
		initCancel()
		if err != nil {
			logger.Error("storage schema error", "err", err)
			os.Exit(1)
		}
		defer store.Close()
	}

	telemetryStore := telemetry.NewStore()
	pipe, err := pipeline.New(cfg, logger, telemetryStore, store)
	if err != nil {
		logger.Error("pipeline construction error", "err", err)
		os.Exit(1)
	}

	frames := make(chan []byte, cfg.Ingest.ChannelBuffer)
	go pipe.Run(ctx, frames)

	ingest.StartTCPStream(ctx, manager, frames, logger)
	ingest.StartKafka(ctx, manager, frames, logger)
	api.Start(ctx, manager, telemetryStore, pipe, frames, logger, version)

	go manager.Watch(3*time.Second,
		func(next *config.Config) {
			// Cascade topology is fixed for the process lifetime; only
			// log level style settings take effect without restart.
			logger.Info("config reloaded", "path", manager.Path())
		},
		func(err error) {
			logger.Warn("config reload error", "err", err)
		},
		ctx.Done(),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down")
	cancel()
	time.Sleep(200 * time.Millisecond)
}
