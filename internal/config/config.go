package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL string
	Port        string
	Environment string

	// Orchestration
	MaxConcurrent int
	MaxPages      int
	Headless      bool

	// Retry / backoff
	MaxRetries  int
	BackoffBase time.Duration
	BackoffCap  time.Duration

	// Anti-detection pacing between page fetches
	MinDelay   time.Duration
	MaxDelay   time.Duration
	SkipPacing bool

	// Timeouts
	FetchTimeout time.Duration
	JobTimeout   time.Duration

	// Validation bounds (exclusive)
	PriceMin float64
	PriceMax float64

	// Price history retention window
	RetentionDays int
}

func Load() *Config {
	defaultDSN := "gpu:gpu@tcp(localhost:3306)/gpu_prices?charset=utf8mb4&parseTime=True&loc=Local"

	return &Config{
		DatabaseURL: getEnv("DATABASE_URL", defaultDSN),
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		MaxConcurrent: getEnvInt("SCRAPER_MAX_CONCURRENT", 3),
		MaxPages:      getEnvInt("SCRAPER_MAX_PAGES", 20),
		Headless:      getEnvBool("SCRAPER_HEADLESS", true),

		MaxRetries:  getEnvInt("SCRAPER_MAX_RETRIES", 3),
		BackoffBase: getEnvDuration("SCRAPER_BACKOFF_BASE_MS", 500*time.Millisecond),
		BackoffCap:  getEnvDuration("SCRAPER_BACKOFF_CAP_MS", 8*time.Second),

		MinDelay:   getEnvDuration("SCRAPER_MIN_DELAY_MS", 1500*time.Millisecond),
		MaxDelay:   getEnvDuration("SCRAPER_MAX_DELAY_MS", 3500*time.Millisecond),
		SkipPacing: getEnvBool("SCRAPER_SKIP_PACING", false),

		FetchTimeout: getEnvDuration("SCRAPER_FETCH_TIMEOUT_MS", 30*time.Second),
		JobTimeout:   getEnvDuration("SCRAPER_JOB_TIMEOUT_MS", 10*time.Minute),

		PriceMin: getEnvFloat("PRICE_MIN", 0),
		PriceMax: getEnvFloat("PRICE_MAX", 100000),

		RetentionDays: getEnvInt("HISTORY_RETENTION_DAYS", 90),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration reads a millisecond count from the environment.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n >= 0 {
			return time.Duration(n) * time.Millisecond
		}
	}
	return defaultValue
}
