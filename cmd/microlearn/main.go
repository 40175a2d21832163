package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/lsec-edu/microlearn/pkg/api"
	"github.com/lsec-edu/microlearn/pkg/config"
	"github.com/lsec-edu/microlearn/pkg/observability"
	"github.com/lsec-edu/microlearn/pkg/roles"
	"github.com/lsec-edu/microlearn/pkg/storage"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	dbCfg := storage.DefaultConfig()
	dbCfg.URL = cfg.PostgresURL
	dbCfg.MaxConns = cfg.PostgresMaxConns

	db, err := storage.Open(dbCfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := storage.Migrate(ctx, db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	if err := roles.NewStore(db).Seed(ctx); err != nil {
		log.Fatalf("Failed to seed roles: %v", err)
	}

	opts := api.Options{
		DB:        db,
		JWTSecret: []byte(cfg.JWTSecret),
		TokenTTL:  cfg.TokenTTL,
		Logger:    observability.NewLogger(cfg.LogLevel, os.Stdout),
	}
	if cfg.MetricsEnabled {
		opts.MetricsRegistry = prometheus.NewRegistry()
	}
	server := api.NewServer(opts)

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      server,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		log.Infof("Microlearn server listening on %s", cfg.ListenAddr())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Shutdown error: %v", err)
	}
	log.Info("Server stopped")
}
