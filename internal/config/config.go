// Package config resolves process-level settings (DB URL, manifest path,
// scan interval, ingest rate limit) from the environment, optionally
// pre-loaded from a .env file if one is present in the working directory.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/importly/health-dashboard-backend/internal/cclog"
)

// Config holds the resolved runtime settings for the server binary.
type Config struct {
	DatabaseURL          string
	ManifestPath         string
	ExternalImportDir    string
	ExternalScanInterval time.Duration
	IngestRatePerSecond  float64
	ListenAddr           string
}

func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		cclog.Warnf("failed to load .env file: %v", err)
	}

	cfg := Config{
		DatabaseURL:          getEnv("DATABASE_URL", "sqlite:health.db?mode=rwc"),
		ManifestPath:         getEnv("MANIFEST_PATH", "metrics_manifest.toml"),
		ExternalImportDir:    getEnv("EXTERNAL_IMPORT_DIR", "test_export"),
		ExternalScanInterval: getEnvDuration("EXTERNAL_SCAN_INTERVAL", 15*time.Minute),
		IngestRatePerSecond:  getEnvFloat("INGEST_RATE_PER_SEC", 1.0),
		ListenAddr:           getEnv("LISTEN_ADDR", ":3000"),
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		cclog.Warnf("invalid duration for %s=%q, using default %s", key, v, fallback)
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		cclog.Warnf("invalid float for %s=%q, using default %v", key, v, fallback)
	}
	return fallback
}
