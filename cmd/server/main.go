package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dom/league-chat/internal/api"
	"github.com/dom/league-chat/internal/config"
	"github.com/dom/league-chat/internal/repository"
	"github.com/dom/league-chat/internal/repository/badgerdb"
	"github.com/dom/league-chat/internal/repository/postgres"
	"github.com/dom/league-chat/internal/service"
	"github.com/dom/league-chat/internal/websocket"
	"github.com/joho/godotenv"
	"gorm.io/gorm/logger"
)

func main() {
	// .env is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("WARN [main] failed to read .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Initialize storage
	repos, store, err := openStorage(cfg)
	if err != nil {
		log.Fatalf("failed to open %s storage: %v", cfg.StorageDriver, err)
	}
	defer store.Close()

	// Identity provider keys are fetched on first use
	keys := service.NewKeySet(cfg)
	defer keys.Close()

	// Initialize WebSocket hub
	hub := websocket.NewHub(cfg.HeartbeatInterval, cfg.SendQueueSize)
	go hub.Run()

	// Initialize services
	services := service.NewServices(repos, keys, hub, cfg)

	// Initialize router
	router := api.NewRouter(services, hub, cfg)

	// Create server. WriteTimeout covers the longest long-poll wait.
	srv := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 75 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on port %s (storage: %s)", cfg.Port, cfg.StorageDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("ERROR [main] server forced to shutdown: %v", err)
	}
	hub.Stop()

	log.Println("Server stopped")
}

func openStorage(cfg *config.Config) (*repository.Repositories, io.Closer, error) {
	switch cfg.StorageDriver {
	case config.StorageDriverBadger:
		db, err := badgerdb.Open(cfg.BadgerPath)
		if err != nil {
			return nil, nil, err
		}
		return badgerdb.NewRepositories(db), db, nil

	default:
		logLevel := logger.Warn
		if cfg.IsDevelopment() {
			logLevel = logger.Info
		}

		db, err := postgres.NewConnection(cfg.DatabaseURL, logLevel)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewRepositories(db), sqlDB, nil
	}
}
