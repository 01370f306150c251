// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for the price cache database (always absolute)
	LogLevel string
	DevMode  bool

	// Market data source (Alpaca-compatible daily bars API)
	AlpacaBaseURL string
	AlpacaAPIKey  string
	AlpacaSecret  string
	AlpacaFeed    string

	// Background price-cache refresh
	RefreshSchedule string   // cron spec, empty disables the job
	RefreshSymbols  []string // symbols pre-warmed by the refresh job
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("WEALTHWISE_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:         absDataDir,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		AlpacaBaseURL:   getEnv("ALPACA_DATA_BASE_URL", "https://data.alpaca.markets"),
		AlpacaAPIKey:    getEnv("ALPACA_API_KEY", ""),
		AlpacaSecret:    getEnv("ALPACA_SECRET", ""),
		AlpacaFeed:      getEnv("ALPACA_DATA_FEED", "iex"),
		RefreshSchedule: getEnv("PRICE_REFRESH_SCHEDULE", ""),
		RefreshSymbols:  splitSymbols(getEnv("PRICE_REFRESH_SYMBOLS", "")),
	}

	return cfg, nil
}

// CacheDBPath returns the path of the SQLite price-bar cache database.
func (c *Config) CacheDBPath() string {
	return filepath.Join(c.DataDir, "prices.db")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

func splitSymbols(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		sym := strings.ToUpper(strings.TrimSpace(p))
		if sym != "" {
			out = append(out, sym)
		}
	}
	return out
}
