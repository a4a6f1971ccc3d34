// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tidecast/tidecast/internal/log"
)

// ParseString reads a string environment variable or returns the
// default. Set-but-empty counts as unset.
func ParseString(key, def string) string {
	logger := log.WithComponent("config")
	if v, ok := os.LookupEnv(key); ok && v != "" {
		logEnv(logger, key, v)
		return v
	}
	return def
}

// ParseInt reads an integer environment variable, falling back to the
// default on absence or parse errors.
func ParseInt(key string, def int) int {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn().Str("key", key).Str("value", v).Int("default", def).
			Msg("invalid integer in environment variable, using default")
		return def
	}
	logEnv(logger, key, v)
	return i
}

// ParseFloat reads a float environment variable, falling back to the
// default on absence or parse errors.
func ParseFloat(key string, def float64) float64 {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logger.Warn().Str("key", key).Str("value", v).Float64("default", def).
			Msg("invalid float in environment variable, using default")
		return def
	}
	logEnv(logger, key, v)
	return f
}

// ParseBool reads a boolean environment variable, falling back to the
// default on absence or parse errors.
func ParseBool(key string, def bool) bool {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn().Str("key", key).Str("value", v).Bool("default", def).
			Msg("invalid boolean in environment variable, using default")
		return def
	}
	logEnv(logger, key, v)
	return b
}

// ParseDuration reads a duration environment variable, falling back to
// the default on absence or parse errors.
func ParseDuration(key string, def time.Duration) time.Duration {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.Warn().Str("key", key).Str("value", v).Dur("default", def).
			Msg("invalid duration in environment variable, using default")
		return def
	}
	logEnv(logger, key, v)
	return d
}

func logEnv(logger zerolog.Logger, key, value string) {
	lower := strings.ToLower(key)
	if strings.Contains(lower, "password") || strings.Contains(lower, "token") {
		logger.Debug().Str("key", key).Bool("sensitive", true).Msg("using environment variable")
		return
	}
	logger.Debug().Str("key", key).Str("value", value).Msg("using environment variable")
}

// applyEnv overlays TIDECAST_* environment variables on cfg.
func applyEnv(cfg *Config) {
	cfg.Server.Listen = ParseString("TIDECAST_LISTEN", cfg.Server.Listen)
	cfg.Server.ReadTimeout = ParseDuration("TIDECAST_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = ParseDuration("TIDECAST_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.ShutdownTimeout = ParseDuration("TIDECAST_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.RateLimit = ParseInt("TIDECAST_RATE_LIMIT", cfg.Server.RateLimit)
	cfg.Server.RateWindow = ParseDuration("TIDECAST_RATE_WINDOW", cfg.Server.RateWindow)

	cfg.Models.Directory = ParseString("TIDECAST_MODEL_DIR", cfg.Models.Directory)
	cfg.Models.Database = ParseString("TIDECAST_MODEL_DATABASE", cfg.Models.Database)
	cfg.Models.Method = ParseString("TIDECAST_METHOD", cfg.Models.Method)
	cfg.Models.CutoffKm = ParseFloat("TIDECAST_CUTOFF_KM", cfg.Models.CutoffKm)
	cfg.Models.MaxPoints = ParseInt("TIDECAST_MAX_POINTS", cfg.Models.MaxPoints)
	cfg.Models.Concurrency = ParseInt("TIDECAST_CONCURRENCY", cfg.Models.Concurrency)

	cfg.Cache.Backend = ParseString("TIDECAST_CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.TTL = ParseDuration("TIDECAST_CACHE_TTL", cfg.Cache.TTL)
	cfg.Cache.Redis.Addr = ParseString("TIDECAST_REDIS_ADDR", cfg.Cache.Redis.Addr)
	cfg.Cache.Redis.Password = ParseString("TIDECAST_REDIS_PASSWORD", cfg.Cache.Redis.Password)
	cfg.Cache.Redis.DB = ParseInt("TIDECAST_REDIS_DB", cfg.Cache.Redis.DB)

	cfg.Store.Directory = ParseString("TIDECAST_STORE_DIR", cfg.Store.Directory)
	cfg.Stations.Path = ParseString("TIDECAST_STATIONS_DB", cfg.Stations.Path)

	cfg.Telemetry.Enabled = ParseBool("TIDECAST_OTEL_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = ParseString("TIDECAST_OTEL_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = ParseString("TIDECAST_OTEL_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.Environment = ParseString("TIDECAST_OTEL_ENVIRONMENT", cfg.Telemetry.Environment)
	cfg.Telemetry.SamplingRate = ParseFloat("TIDECAST_OTEL_SAMPLING", cfg.Telemetry.SamplingRate)

	cfg.Logging.Level = ParseString("TIDECAST_LOG_LEVEL", cfg.Logging.Level)
}
