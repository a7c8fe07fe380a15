package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"custody-backend/internal/domain"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Sequences SequenceConfig  `yaml:"sequences"`
	Billing   BillingConfig   `yaml:"billing"`
	Store     StoreConfig     `yaml:"store"`
	Cleaning  CleaningConfig  `yaml:"cleaning"`
	Lots      LotConfig       `yaml:"lots"`
	Log       LogConfig       `yaml:"log"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
	DriverRedis    = "redis"
)

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Driver       string `yaml:"driver"` // "postgres" or "memory"
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// RedisConfig is only needed when sequences.backend is "redis"
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SequenceConfig selects where document numbers come from
type SequenceConfig struct {
	Backend   string `yaml:"backend"` // "postgres", "redis" or "memory"
	KeyPrefix string `yaml:"key_prefix"`
}

// BillingConfig holds the rental tariff
type BillingConfig struct {
	InternalRateCents      int64  `yaml:"internal_rate_cents"`
	ExternalDailyRateCents int64  `yaml:"external_daily_rate_cents"`
	Timezone               string `yaml:"timezone"`
}

// StoreConfig controls chunked writes
type StoreConfig struct {
	BatchSize     int   `yaml:"batch_size"`
	AtomicBatches *bool `yaml:"atomic_batches"`
}

// CleaningConfig lists custodians acting as cleaning services
type CleaningConfig struct {
	ServiceCustodians []string `yaml:"service_custodians"`
	DamagedStatus     string   `yaml:"damaged_status"`
}

// LotConfig sets the default grouping keys
type LotConfig struct {
	DefaultKeys []string `yaml:"default_keys"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	ReconcileRentalCounters string `yaml:"reconcile_rental_counters"`
	ReportOverdueRentals    string `yaml:"report_overdue_rentals"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, applies environment overrides and validates the result
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_DRIVER"); val != "" {
		c.Database.Driver = val
	}
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// Redis
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		c.Redis.Addr = val
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		c.Redis.Password = val
	}
	if val := os.Getenv("SEQUENCE_BACKEND"); val != "" {
		c.Sequences.Backend = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}

	// Billing
	if val := os.Getenv("BILLING_INTERNAL_RATE_CENTS"); val != "" {
		fmt.Sscanf(val, "%d", &c.Billing.InternalRateCents)
	}
	if val := os.Getenv("BILLING_EXTERNAL_DAILY_RATE_CENTS"); val != "" {
		fmt.Sscanf(val, "%d", &c.Billing.ExternalDailyRateCents)
	}
	if val := os.Getenv("BILLING_TIMEZONE"); val != "" {
		c.Billing.Timezone = val
	}

	// Cleaning
	if val := os.Getenv("CLEANING_SERVICE_CUSTODIANS"); val != "" {
		c.Cleaning.ServiceCustodians = splitList(val)
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	// Set defaults for log if not configured
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks if the configuration is valid and fills in defaults
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	// Database validation
	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	// Sequence backend defaults to the database driver
	if c.Sequences.Backend == "" {
		c.Sequences.Backend = c.Database.Driver
	}
	switch c.Sequences.Backend {
	case DriverPostgres:
		if c.Database.Driver != DriverPostgres {
			return fmt.Errorf("postgres sequences require the postgres database driver")
		}
	case DriverRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address is required for redis sequences")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unsupported sequence backend: %s", c.Sequences.Backend)
	}
	if c.Sequences.KeyPrefix == "" {
		c.Sequences.KeyPrefix = "custody:"
	}

	// Billing validation
	if c.Billing.InternalRateCents < 0 || c.Billing.ExternalDailyRateCents < 0 {
		return fmt.Errorf("billing rates must not be negative")
	}
	if c.Billing.Timezone == "" {
		c.Billing.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(c.Billing.Timezone); err != nil {
		return fmt.Errorf("invalid billing timezone %q: %w", c.Billing.Timezone, err)
	}

	// Store defaults
	if c.Store.BatchSize == 0 {
		c.Store.BatchSize = 500
	}
	if c.Store.BatchSize < 0 || c.Store.BatchSize > 1000 {
		return fmt.Errorf("store batch size must be between 1 and 1000: %d", c.Store.BatchSize)
	}
	if c.Store.AtomicBatches == nil {
		atomic := true
		c.Store.AtomicBatches = &atomic
	}

	// Cleaning defaults
	if c.Cleaning.DamagedStatus == "" {
		c.Cleaning.DamagedStatus = string(domain.AssetStatusOutOfService)
	}
	switch domain.AssetStatus(c.Cleaning.DamagedStatus) {
	case domain.AssetStatusOutOfService, domain.AssetStatusInRepair:
	default:
		return fmt.Errorf("cleaning damaged status must be OUT_OF_SERVICE or IN_REPAIR: %s", c.Cleaning.DamagedStatus)
	}

	// Lot defaults
	if len(c.Lots.DefaultKeys) == 0 {
		c.Lots.DefaultKeys = []string{domain.AttrSize, domain.AttrColor, domain.AttrLocation}
	}

	// Scheduler defaults
	if c.Scheduler.ReconcileRentalCounters == "" {
		c.Scheduler.ReconcileRentalCounters = "0 0 2 * * *" // 2 AM UTC
	}
	if c.Scheduler.ReportOverdueRentals == "" {
		c.Scheduler.ReportOverdueRentals = "0 0 7 * * *" // 7 AM UTC
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Location returns the billing timezone. Validate must have run.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Billing.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AtomicBatches reports whether chunked batch writes share one transaction
func (c *Config) AtomicBatches() bool {
	return c.Store.AtomicBatches == nil || *c.Store.AtomicBatches
}
