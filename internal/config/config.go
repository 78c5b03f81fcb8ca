package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Upload configuration
	Import ImportConfig

	// Screening API configuration
	Screening ScreeningConfig

	// Product image fetching
	Images ImageConfig

	// Failure retry policy
	Retry RetryConfig

	// Platform and carrier allow-lists
	Catalog CatalogConfig

	// Logging configuration
	Log LogConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MigrationsPath  string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// ImportConfig holds upload settings
type ImportConfig struct {
	MaxUploadSize int64 // in bytes
}

// ScreeningConfig holds settings for the external screening API
type ScreeningConfig struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	Environment string // "sandbox" or "production"
	Concurrency int    // rows submitted in parallel, 1 = sequential
}

// ImageConfig holds product image fetch settings
type ImageConfig struct {
	FetchTimeout time.Duration
	MaxBytes     int64
}

// Implicit batch-retry scopes used when no failure IDs are given.
const (
	RetryScopeUpload = "upload"
	RetryScopeAll    = "all"
	RetryScopeNone   = "none"
)

// RetryConfig holds the failure retry policy
type RetryConfig struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	Concurrency       int
	ImplicitScope     string
	SchedulerEnabled  bool
	SchedulerInterval time.Duration
	SchedulerBatch    int
	StaleAfter        time.Duration // retrying records untouched this long count as abandoned
}

// CatalogConfig holds the platform and carrier allow-lists.
// Platforms are "id:domain" pairs; a bare id uses itself as the domain token.
type CatalogConfig struct {
	Platforms     []string
	Carriers      []string
	StrictDomains bool
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string
	Format string // "json" or "pretty"
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 300*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			MigrationsPath:  getEnv("MIGRATIONS_PATH", "./migrations"),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Name:         getEnv("DB_NAME", "customs_screening"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getIntEnv("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getDurationEnv("DB_MAX_LIFETIME", 5*time.Minute),
		},
		Import: ImportConfig{
			MaxUploadSize: getInt64Env("MAX_UPLOAD_SIZE", 50*1024*1024), // 50MB
		},
		Screening: ScreeningConfig{
			BaseURL:     getEnv("SCREENING_BASE_URL", ""),
			APIKey:      getEnv("SCREENING_API_KEY", ""),
			Timeout:     getDurationEnv("SCREENING_TIMEOUT", 30*time.Second),
			Environment: getEnv("SCREENING_ENVIRONMENT", "sandbox"),
			Concurrency: getIntEnv("SUBMISSION_CONCURRENCY", 1),
		},
		Images: ImageConfig{
			FetchTimeout: getDurationEnv("IMAGE_FETCH_TIMEOUT", 10*time.Second),
			MaxBytes:     getInt64Env("IMAGE_MAX_BYTES", 5*1024*1024),
		},
		Retry: RetryConfig{
			MaxAttempts:       getIntEnv("RETRY_MAX_ATTEMPTS", 3),
			BaseDelay:         getDurationEnv("RETRY_BASE_DELAY", time.Minute),
			MaxDelay:          getDurationEnv("RETRY_MAX_DELAY", time.Hour),
			Concurrency:       getIntEnv("RETRY_CONCURRENCY", 4),
			ImplicitScope:     getEnv("RETRY_IMPLICIT_SCOPE", RetryScopeUpload),
			SchedulerEnabled:  getBoolEnv("RETRY_SCHEDULER_ENABLED", false),
			SchedulerInterval: getDurationEnv("RETRY_SCHEDULER_INTERVAL", time.Minute),
			SchedulerBatch:    getIntEnv("RETRY_SCHEDULER_BATCH", 50),
			StaleAfter:        getDurationEnv("RETRY_STALE_AFTER", 15*time.Minute),
		},
		Catalog: CatalogConfig{
			Platforms:     getListEnv("CATALOG_PLATFORMS", nil),
			Carriers:      getListEnv("CATALOG_CARRIERS", nil),
			StrictDomains: getBoolEnv("CATALOG_STRICT_DOMAINS", false),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Screening.BaseURL == "" {
		return fmt.Errorf("SCREENING_BASE_URL is required")
	}
	if c.Screening.Timeout <= 0 {
		return fmt.Errorf("SCREENING_TIMEOUT must be positive")
	}
	if c.Screening.Concurrency < 1 {
		return fmt.Errorf("SUBMISSION_CONCURRENCY must be at least 1")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if c.Retry.Concurrency < 1 {
		return fmt.Errorf("RETRY_CONCURRENCY must be at least 1")
	}
	switch c.Retry.ImplicitScope {
	case RetryScopeUpload, RetryScopeAll, RetryScopeNone:
	default:
		return fmt.Errorf("RETRY_IMPLICIT_SCOPE must be one of: upload, all, none")
	}
	if c.Retry.SchedulerEnabled && c.Retry.SchedulerInterval <= 0 {
		return fmt.Errorf("RETRY_SCHEDULER_INTERVAL must be positive when the scheduler is enabled")
	}
	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getListEnv splits a comma-separated value, dropping empty entries
func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
