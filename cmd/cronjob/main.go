package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"custody-backend/internal/config"
	"custody-backend/internal/jobs"
	"custody-backend/internal/logger"
	"custody-backend/internal/repository"
	"custody-backend/internal/repository/memory"
	"custody-backend/internal/repository/postgres"
	"custody-backend/internal/scheduler"
	"custody-backend/internal/service"
	"custody-backend/internal/utils"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file loaded, using process environment")
	}

	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'reconcile-rental-counters', 'all-nightly')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting custody cronjob runner...", "log_level", cfg.Log.Level)

	var store repository.Store
	if cfg.Database.Driver == config.DriverMemory {
		logger.Warn("Cronjob runner on the in-memory store only sees its own process")
		store = memory.NewStore()
	} else {
		logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
		db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
		if err != nil {
			logger.Error("Failed to connect to database", "error", err)
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := db.Ping(); err != nil {
			logger.Error("Failed to ping database", "error", err)
			log.Fatalf("Failed to ping database: %v", err)
		}
		logger.Info("Database connection established")
		store = postgres.NewStore(db).WithBatchSize(cfg.Store.BatchSize)
	}

	// Jobs never issue document numbers, so the sequence source is irrelevant here.
	tariff := utils.Tariff{
		InternalRateCents:      cfg.Billing.InternalRateCents,
		ExternalDailyRateCents: cfg.Billing.ExternalDailyRateCents,
	}
	rentalService := service.NewRentalService(store, memory.NewSequence(), tariff, cfg.Location(), cfg.Lots.DefaultKeys)

	jobRunner := jobs.NewJobRunner(&jobs.Services{Rental: rentalService}, cfg)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		runJobOnce(jobRunner, *runOnce)
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	cronScheduler, err := scheduler.NewScheduler(jobRunner)
	if err != nil {
		logger.Error("Failed to build scheduler", "error", err)
		log.Fatalf("Failed to build scheduler: %v", err)
	}

	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.", "jobs", cronScheduler.Entries())

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped")
}

// runJobOnce runs a specific job once and exits
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) {
	switch jobName {
	case "reconcile-rental-counters":
		jobRunner.ReconcileRentalCounters()
	case "report-overdue-rentals":
		jobRunner.ReportOverdueRentals()
	case "all-nightly":
		jobRunner.RunAllNightlyJobs()
	default:
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - reconcile-rental-counters\n")
		fmt.Printf("  - report-overdue-rentals\n")
		fmt.Printf("  - all-nightly\n")
		os.Exit(1)
	}
}
