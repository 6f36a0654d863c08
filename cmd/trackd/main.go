package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trackline-backend/config"
	"trackline-backend/internal/api"
	"trackline-backend/internal/cache"
	"trackline-backend/internal/db"
	"trackline-backend/internal/debounce"
	"trackline-backend/internal/jobs"
	"trackline-backend/internal/logger"
	"trackline-backend/internal/scheduler"
	"trackline-backend/internal/store"
	"trackline-backend/internal/tracks"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("configuration loaded", "path", configPath)

	// Initialize database
	gormDB, err := db.Init(&cfg.Database, log)
	if err != nil {
		log.Fatal("failed to initialize database", "error", err)
	}
	if err := db.Migrate(gormDB); err != nil {
		log.Fatal("failed to migrate database", "error", err)
	}
	log.Info("database initialized")

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kv, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		log.Fatal("failed to initialize cache", "backend", cfg.Cache.Backend, "error", err)
	}
	if closer, ok := kv.(io.Closer); ok {
		defer closer.Close()
	}

	queue := jobs.NewQueue(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, log)
	queue.Start(ctx)

	appStore := store.NewGormStore(gormDB)
	engine := tracks.NewEngine(tracks.Deps{
		Store:     appStore,
		Cache:     kv,
		Scheduler: queue,
		Config:    cfg,
		Logger:    log,
	})
	debouncer := debounce.New(kv, queue, engine.IncrementalJob, cfg.Realtime, log)

	daily := scheduler.NewDaily(cfg.Scheduler, appStore, engine, log)
	go daily.Run(ctx)

	// Initialize router
	router := api.NewRouter(api.NewHandler(engine, debouncer, appStore, log), cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		log.Info("HTTP server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server ListenAndServe", "error", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	log.Info("shutdown signal received, stopping services")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server Shutdown", "error", err)
	}
	cancel()
	queue.Stop()

	log.Info("server gracefully stopped")
}
