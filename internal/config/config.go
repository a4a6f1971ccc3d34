// SPDX-License-Identifier: MIT

// Package config loads and validates the tidecast service configuration
// from a YAML file and TIDECAST_* environment variables.
package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config is the full service configuration. The zero value is not
// usable; start from Default.
type Config struct {
	Server    Server    `yaml:"server"`
	Models    Models    `yaml:"models"`
	Cache     Cache     `yaml:"cache"`
	Store     Store     `yaml:"store"`
	Stations  Stations  `yaml:"stations"`
	Telemetry Telemetry `yaml:"telemetry"`
	Logging   Logging   `yaml:"logging"`
}

// Server configures the HTTP listener.
type Server struct {
	Listen          string        `yaml:"listen"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// RateLimit is requests per RateWindow per client; zero disables
	// rate limiting.
	RateLimit       int           `yaml:"rate_limit"`
	RateWindow      time.Duration `yaml:"rate_window"`
	MaxRequestBytes int64         `yaml:"max_request_bytes"`
}

// Models configures the tide model catalog and extraction defaults.
type Models struct {
	// Directory is the root under which every model file path resolves.
	Directory string `yaml:"directory"`
	// Database is an optional JSON file merged over the built-in model
	// database.
	Database string `yaml:"database"`
	// Method is the default interpolation method for extraction requests.
	Method string `yaml:"method"`
	// CutoffKm bounds nearest-neighbour extrapolation distances.
	CutoffKm float64 `yaml:"cutoff_km"`
	// MaxPoints caps the number of points a single request may carry.
	MaxPoints int `yaml:"max_points"`
	// Concurrency bounds parallel constituent reads per request.
	Concurrency int `yaml:"concurrency"`
}

// Cache selects and configures the constants cache backend.
type Cache struct {
	Backend         string        `yaml:"backend"` // memory, redis or none
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	Redis           Redis         `yaml:"redis"`
}

// Redis holds connection settings for the redis cache backend.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Store configures the persistent constants store. An empty directory
// disables persistence.
type Store struct {
	Directory string `yaml:"directory"`
}

// Stations configures the station registry database. An empty path
// keeps the registry in memory.
type Stations struct {
	Path string `yaml:"path"`
}

// Telemetry configures OpenTelemetry trace export.
type Telemetry struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"` // grpc or http
	Endpoint     string  `yaml:"endpoint"`
	Environment  string  `yaml:"environment"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// Logging configures the structured logger.
type Logging struct {
	Level string `yaml:"level"`
}

// Default returns the configuration the service starts from before the
// file and environment overrides are applied.
func Default() Config {
	return Config{
		Server: Server{
			Listen:          ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       120,
			RateWindow:      time.Minute,
			MaxRequestBytes: 1 << 20,
		},
		Models: Models{
			Directory:   "/var/lib/tidecast/models",
			Method:      "spline",
			CutoffKm:    10.0,
			MaxPoints:   10000,
			Concurrency: 4,
		},
		Cache: Cache{
			Backend:         "memory",
			TTL:             time.Hour,
			CleanupInterval: 10 * time.Minute,
			Redis:           Redis{Addr: "localhost:6379"},
		},
		Telemetry: Telemetry{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			Environment:  "development",
			SamplingRate: 1.0,
		},
		Logging: Logging{Level: "info"},
	}
}

// Validate checks the configuration for values the service cannot run
// with. The first problem found is returned.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen must not be empty: %w", ErrInvalid)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must not be negative: %w", ErrInvalid)
	}
	if c.Models.Directory == "" {
		return fmt.Errorf("models.directory must not be empty: %w", ErrInvalid)
	}
	switch c.Models.Method {
	case "spline", "bilinear", "linear", "nearest":
	default:
		return fmt.Errorf("models.method %q is not an interpolation method: %w", c.Models.Method, ErrInvalid)
	}
	if c.Models.MaxPoints <= 0 {
		return fmt.Errorf("models.max_points must be positive: %w", ErrInvalid)
	}
	if c.Models.Concurrency <= 0 {
		return fmt.Errorf("models.concurrency must be positive: %w", ErrInvalid)
	}
	switch c.Cache.Backend {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("cache.backend %q is not a cache backend: %w", c.Cache.Backend, ErrInvalid)
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr must be set for the redis backend: %w", ErrInvalid)
	}
	if c.Telemetry.Enabled {
		switch c.Telemetry.Exporter {
		case "grpc", "http":
		default:
			return fmt.Errorf("telemetry.exporter %q is not an exporter: %w", c.Telemetry.Exporter, ErrInvalid)
		}
	}
	if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
		return fmt.Errorf("telemetry.sampling_rate must be within [0, 1]: %w", ErrInvalid)
	}
	return nil
}
