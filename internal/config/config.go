// Package config contains everything related to configuration
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	APIBaseURL         string
	DataDir            string
	StorePath          string
	PairConcurrency    int
	MaxConcurrentKinds int
	ToleranceMinutes   int
	PluginCacheTTL     time.Duration
	CorruptDataPolicy  string // "refetch" or "wait"
}

// Default values
const (
	defaultAPIBaseURL         = "http://localhost:5000"
	defaultPairConcurrency    = 1
	defaultMaxConcurrentKinds = 3
	defaultToleranceMinutes   = 30
	defaultPluginCacheTTL     = time.Hour
	defaultCorruptDataPolicy  = "refetch"
)

// Load reads configuration from .env files and environment variables.
func Load() (*Config, error) {
	// Try loading .env from multiple locations
	envPaths := getEnvPaths()
	for _, path := range envPaths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	cfg := &Config{
		APIBaseURL:         getEnvString("API_BASE_URL", defaultAPIBaseURL),
		DataDir:            getEnvString("DATA_DIR", getDefaultDataDir()),
		StorePath:          getEnvString("STORE_PATH", getDefaultStorePath()),
		PairConcurrency:    getEnvInt("PAIR_CONCURRENCY", defaultPairConcurrency),
		MaxConcurrentKinds: getEnvInt("MAX_CONCURRENT_KINDS", defaultMaxConcurrentKinds),
		ToleranceMinutes:   getEnvInt("TOLERANCE_MINUTES", defaultToleranceMinutes),
		PluginCacheTTL:     getEnvDuration("PLUGIN_CACHE_TTL", defaultPluginCacheTTL),
		CorruptDataPolicy:  getEnvString("CORRUPT_DATA_POLICY", defaultCorruptDataPolicy),
	}

	if cfg.CorruptDataPolicy != "refetch" && cfg.CorruptDataPolicy != "wait" {
		return nil, fmt.Errorf("CORRUPT_DATA_POLICY must be \"refetch\" or \"wait\", got %q", cfg.CorruptDataPolicy)
	}
	if cfg.PairConcurrency < 1 {
		return nil, fmt.Errorf("PAIR_CONCURRENCY must be at least 1, got %d", cfg.PairConcurrency)
	}
	if cfg.MaxConcurrentKinds < 1 {
		return nil, fmt.Errorf("MAX_CONCURRENT_KINDS must be at least 1, got %d", cfg.MaxConcurrentKinds)
	}

	// Ensure store directory exists
	if err := ensureDir(filepath.Dir(cfg.StorePath)); err != nil {
		return nil, err
	}

	return cfg, nil
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	// Current directory
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	// Home directory location
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "seriesdash", ".env"))
	}

	// Parent directories (useful for development)
	if cwd, err := os.Getwd(); err == nil {
		parent := filepath.Dir(cwd)
		paths = append(paths, filepath.Join(parent, ".env"))
	}

	return paths
}

// getDefaultStorePath returns the default path for the SQLite store.
func getDefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "seriesdash.db"
	}
	return filepath.Join(home, ".config", "seriesdash", "seriesdash.db")
}

// getDefaultDataDir returns the default dataset directory.
func getDefaultDataDir() string {
	if cwd, err := os.Getwd(); err == nil {
		return filepath.Join(cwd, "data")
	}
	return "data"
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns the default.
// Accepts values like "30s", "1m", "500ms".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Try parsing as seconds if no unit specified
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

// ensureDir creates a directory and all parent directories if they don't exist.
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o750)
}
