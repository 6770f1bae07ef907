package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chain-observer/src/cache"
	"chain-observer/src/config"
	"chain-observer/src/grpc_control"
	"chain-observer/src/interfaces"
	"chain-observer/src/logger"
	"chain-observer/src/registry"
	"chain-observer/src/rpcqueue"
	"chain-observer/src/scheduler"
	"chain-observer/src/server"
	"chain-observer/src/storage"
	"chain-observer/src/upstream"
)

// -----------------------------------------------------------------------------

const (
	latencyRingCapacity = 100
	cleanupInterval     = time.Hour
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(cfg.LogLevel, cfg.Name)

	// 1. Request ledger storage
	var db interfaces.IDatabase

	switch cfg.Storage.DBType {
	case "postgres":
		db, err = storage.NewPostgresDB(cfg.MConfig, appLogger)
	default:
		// Default to SQLite
		db, err = storage.NewAsyncSQLiteDB(cfg.MConfig, appLogger)
	}

	if err != nil {
		appLogger.Critical("Failed to init db: %v", err)
	}
	if err := db.Initialize(); err != nil {
		appLogger.Critical("Failed to migrate db: %v", err)
	}

	recorder := storage.NewRecorder(db, latencyRingCapacity, appLogger)
	recorder.Start()

	// 2. Engine state: head cell, catalogue, registry, cache
	head := registry.NewChainHead()

	catalogue, err := registry.NewCatalogue(head, cfg.Streams)
	if err != nil {
		appLogger.Critical("Failed to build catalogue: %v", err)
	}

	reg := registry.NewRegistry()
	cacheStore := cache.NewStore(catalogue.TTLs(), nil)

	// 3. Upstream path: client behind the rate-limited queue
	client := upstream.NewClient(cfg.MConfig, logger.NewLogger(cfg.LogLevel, "Upstream"))

	queue := rpcqueue.NewQueue(cfg.MConfig, client, recorder, nil, logger.NewLogger(cfg.LogLevel, "Queue"))
	queue.Start()

	// 4. Scheduler and server (mutually referencing, wired in two steps)
	sched := scheduler.NewScheduler(
		catalogue, reg, head, cacheStore, queue,
		nil, recorder, nil,
		logger.NewLogger(cfg.LogLevel, "Scheduler"),
	)

	srv := server.NewServer(cfg.MConfig, sched, appLogger)
	sched.SetBroadcaster(srv)

	// 5. gRPC health listener
	control := grpc_control.NewControlService(cfg.MConfig, recorder, logger.NewLogger(cfg.LogLevel, "Control"))
	if err := control.Start(); err != nil {
		appLogger.Critical("Failed to start grpc listener: %v", err)
	}

	// 6. Start serving
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Critical("Server failed: %v", err)
		}
	}()

	appLogger.Info("chain-observer running (upstream %s)", cfg.Upstream.URL)

	// 7. Main loop: retention cleanup plus signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	cleanup := time.NewTicker(cleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-cleanup.C:
			if err := db.CleanupOldData(); err != nil {
				appLogger.Error("Ledger cleanup failed: %v", err)
			}

		case <-quit:
			appLogger.Info("Shutting down...")
			sched.Stop()
			queue.Stop()
			srv.Stop()
			control.Stop()
			recorder.Stop()
			if err := db.Close(); err != nil {
				appLogger.Error("Failed to close db: %v", err)
			}
			return
		}
	}
}
