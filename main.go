package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"

	"visittrack/api/config"
	"visittrack/api/database"
	"visittrack/api/handlers"
	"visittrack/api/notify"
	"visittrack/api/store"
	"visittrack/api/tracker"
	"visittrack/api/utils"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// --- PostgreSQL (salesperson accounts) ---
	dbClient, err := database.NewPostgresDB(cfg.Postgres.URL)
	if err != nil {
		log.Fatalf("Failed to initialize PostgreSQL database: %v", err)
	}
	defer dbClient.Close()
	if err := dbClient.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to prepare PostgreSQL schema: %v", err)
	}

	// --- Retention backend ---
	var (
		backend      store.Backend
		statsHandler *handlers.StatsHandlers
	)
	switch cfg.Retention.Backend {
	case config.BackendClickHouse:
		chClient, err := database.NewClickHouseDB(cfg.ClickHouse)
		if err != nil {
			log.Fatalf("Failed to initialize ClickHouse database: %v", err)
		}
		defer chClient.Close()
		if err := chClient.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to prepare ClickHouse schema: %v", err)
		}
		backend = store.NewClickHouseBackend(chClient, cfg.Retention.Capacity)
		statsHandler = handlers.NewStatsHandlers(store.NewVisitStatsStore(chClient))
	case config.BackendFile:
		backend = store.NewFileBackend(cfg.Retention.File, cfg.Retention.Capacity)
	default:
		backend = store.NewMemoryBackend()
	}

	retention, err := store.NewRetentionStore(ctx, backend, store.RetentionOptions{
		Capacity: cfg.Retention.Capacity,
		Async:    true,
	})
	if err != nil {
		log.Fatalf("Failed to initialize retention store: %v", err)
	}
	defer retention.Close()

	// --- Notification sinks ---
	hub := notify.NewHub(cfg.Server.FEOrigin)
	defer hub.Close()
	sinks := notify.MultiSink{hub}

	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL,
			nats.Name("visittrack-api"),
			nats.MaxReconnects(-1),
		)
		if err != nil {
			log.Fatalf("Failed to connect to NATS at %s: %v", cfg.NATS.URL, err)
		}
		defer nc.Drain()
		sinks = append(sinks, notify.NewNATSSink(nc, cfg.NATS.SubjectPrefix))
		log.Printf("Publishing salesperson notifications to NATS under %s.*", cfg.NATS.SubjectPrefix)
	}

	// --- Tracker ---
	manager := tracker.NewManager(tracker.Options{
		Retention:           retention,
		Sink:                sinks,
		SignificantDuration: cfg.Tracker.SignificantDuration,
		LookupTimeout:       cfg.Tracker.ViewerLookupTimeout,
		AsyncDelivery:       true,
	})
	// Runs before retention.Close and the sinks close so the last visit is
	// persisted and announced.
	defer manager.Close()

	tokens, err := utils.NewTokenIssuer(cfg.Auth.JWTSecret, time.Hour)
	if err != nil {
		log.Fatalf("Failed to configure JWT: %v", err)
	}

	r := handlers.NewRouter(handlers.RouterConfig{
		Auth:     handlers.NewAuthHandlers(store.NewSalespersonStore(dbClient.DB), tokens),
		Visits:   handlers.NewVisitHandlers(manager, hub),
		Stats:    statsHandler,
		Tokens:   tokens,
		APIKey:   cfg.Auth.APIKey,
		FEOrigin: cfg.Server.FEOrigin,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		log.Printf("Visit tracking API starting on http://localhost:%s (retention: %s, capacity %d)",
			cfg.Server.Port, cfg.Retention.Backend, retention.Capacity())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Visit tracking API failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}
