package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Config holds the process settings read from the environment
type Config struct {
	Port             string
	LogLevel         string
	StoreDriver      string
	DBPath           string
	JWTSecret        string
	TokenTTL         time.Duration
	SweepInterval    time.Duration
	BidRatePerSecond float64
	BidRateBurst     int
	SeedDemoData     bool
}

// Load reads the configuration from the environment, applying defaults
func Load() (Config, error) {
	cfg := Config{
		Port:        ":" + getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", DriverMemory)),
		DBPath:      getEnv("DB_PATH", "./data/auctions.db"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
	}

	var err error
	if cfg.TokenTTL, err = durationEnv("TOKEN_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.SweepInterval, err = durationEnv("SWEEP_INTERVAL", 60*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.BidRatePerSecond, err = floatEnv("BID_RATE_PER_SECOND", 5); err != nil {
		return Config{}, err
	}
	if cfg.BidRateBurst, err = intEnv("BID_RATE_BURST", 10); err != nil {
		return Config{}, err
	}
	if cfg.SeedDemoData, err = boolEnv("SEED_DEMO_DATA", false); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with
func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory, DriverSQLite:
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("config: JWT_SECRET is required")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("config: SWEEP_INTERVAL must be positive")
	}
	if c.BidRatePerSecond <= 0 || c.BidRateBurst <= 0 {
		return fmt.Errorf("config: bid rate limit must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return f, nil
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}
