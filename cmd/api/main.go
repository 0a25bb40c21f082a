package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ArowuTest/xoso-live-backend/api/routes"
	"github.com/ArowuTest/xoso-live-backend/internal/broadcast"
	"github.com/ArowuTest/xoso-live-backend/internal/config"
	"github.com/ArowuTest/xoso-live-backend/internal/fabric"
	"github.com/ArowuTest/xoso-live-backend/internal/handlers"
	"github.com/ArowuTest/xoso-live-backend/internal/poller"
	"github.com/ArowuTest/xoso-live-backend/internal/repositories"
	mongorepo "github.com/ArowuTest/xoso-live-backend/internal/repositories/mongodb"
	"github.com/ArowuTest/xoso-live-backend/internal/services"
	"github.com/ArowuTest/xoso-live-backend/pkg/mongodb"
	"github.com/ArowuTest/xoso-live-backend/pkg/xoso"
)

func main() {
	// .env is optional; real deployments use the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)

	// Durable store
	mongoClient, err := mongodb.NewClient(cfg.MongoDB.URI)
	if err != nil {
		logger.Error("failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logger.Warn("error disconnecting from MongoDB", "error", err)
		}
	}()
	db := mongoClient.Database(cfg.MongoDB.Database)

	// Fabric
	fab, err := fabric.NewRedisFabric(cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to fabric", "error", err)
		os.Exit(1)
	}
	defer fab.Close()

	// Repositories and services
	var resultRepo repositories.ResultRepository = mongorepo.NewResultRepository(db)
	resultService := services.NewResultService(fab, resultRepo, cfg.Poller.CacheTTL)

	// Poller
	pageClient := xoso.NewClient(cfg.Poller.BaseURL, cfg.Poller.FetchTimeout, cfg.Poller.FetchRetries)
	defer pageClient.Close()
	pollManager := poller.NewManager(cfg.Poller, pageClient, resultService, fab, logger)
	defer pollManager.Shutdown()

	// Broadcast registry
	registry := broadcast.NewRegistry(cfg.Stream, fab, logger)
	registryCtx, stopRegistry := context.WithCancel(context.Background())
	go registry.Run(registryCtx)
	defer func() {
		stopRegistry()
		registry.Close()
	}()

	// Handlers and router
	resultHandler := handlers.NewResultHandler(resultService, registry, cfg.Stream)
	pollHandler := handlers.NewPollHandler(pollManager)

	router := routes.SetupRouter(cfg, logger, routes.HandlerDependencies{
		ResultHandler: resultHandler,
		PollHandler:   pollHandler,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	logger.Info("server starting", "port", cfg.Server.Port)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exiting")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
