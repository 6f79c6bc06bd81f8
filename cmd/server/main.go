// Command server is the entry point for the dental-relay transcription
// relay: it loads configuration, opens the database and Redis, runs
// migrations, wires the application, and serves HTTP/WebSocket traffic
// until an interrupt triggers a graceful shutdown.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jwvaartjes/dental-relay/internal/app"
	"github.com/jwvaartjes/dental-relay/internal/config"
	"github.com/jwvaartjes/dental-relay/internal/database"
	"github.com/jwvaartjes/dental-relay/internal/db"
	"github.com/jwvaartjes/dental-relay/pkg/Logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := Logger.New(cfg.Debug)
	logger.Info("logger initialized")

	gormDB, err := db.InitDB(cfg.DB.DSN(), *cfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := database.MigrateDB(gormDB); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	rc, err := database.NewRedis(cfg.Redis)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}

	application, err := app.NewApp(cfg, logger, gormDB, rc)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	application.Start(ctx)

	logger.Info("application initialized successfully")
	startServer(application, logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("error during application shutdown: %v", err)
	}
}

func startServer(application *app.App, logger *Logger.Logger) {
	port := application.Config.Server.Port
	if p := os.Getenv("PORT"); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	addr := ":" + strconv.Itoa(port)
	srv := &http.Server{
		Addr:    addr,
		Handler: application.Router().Handler(),
	}

	go func() {
		logger.Infof("server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("server forced to shutdown: %v", err)
	} else {
		logger.Info("server shutdown complete")
	}
}
