package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "custody-backend/internal/api/http"
	"custody-backend/internal/config"
	"custody-backend/internal/domain"
	"custody-backend/internal/logger"
	"custody-backend/internal/repository"
	"custody-backend/internal/repository/memory"
	"custody-backend/internal/repository/postgres"
	"custody-backend/internal/repository/redisseq"
	"custody-backend/internal/service"
	"custody-backend/internal/utils"
	"custody-backend/migrations"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file loaded, using process environment")
	}

	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	migrate := flag.Bool("migrate", false, "Apply database migrations before serving")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting custody server...", "log_level", cfg.Log.Level, "driver", cfg.Database.Driver)

	store, db := openStore(cfg, *migrate)
	if db != nil {
		defer db.Close()
	}

	seq, closeSeq := openSequence(cfg, db)
	defer closeSeq()

	// Initialize Services
	tariff := utils.Tariff{
		InternalRateCents:      cfg.Billing.InternalRateCents,
		ExternalDailyRateCents: cfg.Billing.ExternalDailyRateCents,
	}
	directory := service.NewStaticDirectory(cfg.Cleaning.ServiceCustodians)
	services := httpapi.Services{
		Assets:       service.NewAssetService(store, cfg.Store.BatchSize, cfg.AtomicBatches()),
		Availability: service.NewAvailabilityService(store, cfg.Lots.DefaultKeys),
		Transfers:    service.NewTransferService(store, seq, directory),
		Rentals:      service.NewRentalService(store, seq, tariff, cfg.Location(), cfg.Lots.DefaultKeys),
		Cleanings:    service.NewCleaningService(store, seq, domain.AssetStatus(cfg.Cleaning.DamagedStatus)),
	}

	srv := &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           httpapi.NewRouter(services, cfg.Location()),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down HTTP server...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
	logger.Info("HTTP server stopped")
}

// openStore connects the configured storage backend. db is nil for the
// in-memory store.
func openStore(cfg *config.Config, migrate bool) (repository.Store, *sql.DB) {
	if cfg.Database.Driver == config.DriverMemory {
		logger.Warn("Using in-memory store, data is lost on restart")
		return memory.NewStore(), nil
	}

	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if cfg.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}

	// Test database connection
	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	if migrate {
		if err := migrations.Run(db); err != nil {
			logger.Error("Failed to apply migrations", "error", err)
			log.Fatalf("Failed to apply migrations: %v", err)
		}
	}
	if version, err := migrations.Version(db); err == nil {
		logger.Info("Database schema ready", "version", version)
	}
	return postgres.NewStore(db).WithBatchSize(cfg.Store.BatchSize), db
}

// openSequence picks the document number source. The returned func releases
// any client it opened.
func openSequence(cfg *config.Config, db *sql.DB) (repository.SequenceRepository, func()) {
	switch cfg.Sequences.Backend {
	case config.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Error("Failed to ping redis", "error", err)
			log.Fatalf("Failed to ping redis: %v", err)
		}
		logger.Info("Redis sequences enabled", "addr", cfg.Redis.Addr, "prefix", cfg.Sequences.KeyPrefix)
		return redisseq.New(client, cfg.Sequences.KeyPrefix), func() { _ = client.Close() }
	case config.DriverPostgres:
		return postgres.NewSequence(db), func() {}
	}
	return memory.NewSequence(), func() {}
}
