// SPDX-License-Identifier: MIT

// Command tidecastd serves the tidecast HTTP API: tide model catalog,
// harmonic constant extraction and the station registry.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/tidecast/tidecast/internal/api"
	"github.com/tidecast/tidecast/internal/cache"
	"github.com/tidecast/tidecast/internal/config"
	"github.com/tidecast/tidecast/internal/log"
	"github.com/tidecast/tidecast/internal/model"
	"github.com/tidecast/tidecast/internal/stations"
	"github.com/tidecast/tidecast/internal/store"
	"github.com/tidecast/tidecast/internal/telemetry"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("tidecastd %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	log.Configure(log.Config{Level: "info", Service: "tidecast", Version: version})
	logger := log.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := strings.TrimSpace(*configPath)
	if path == "" {
		// pick up a config the operator dropped next to the models
		auto := filepath.Join(config.ParseString("TIDECAST_DATA", "/var/lib/tidecast"), "tidecast.yaml")
		if _, err := os.Stat(auto); err == nil {
			path = auto
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "config.load_failed").
			Str("config_path", path).Msg("failed to load configuration")
	}
	log.Configure(log.Config{Level: cfg.Logging.Level, Service: "tidecast", Version: version})
	logger.Info().Str("event", "config.loaded").Str("path", path).
		Str("listen", cfg.Server.Listen).Str("models", cfg.Models.Directory).
		Msg("configuration loaded")

	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "tidecast",
		ServiceVersion: version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	loadDB := func() (*model.Database, error) {
		if cfg.Models.Database != "" {
			return model.LoadDatabaseFrom(cfg.Models.Database)
		}
		return model.LoadDatabase()
	}
	db, err := loadDB()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load model database")
	}
	logger.Info().Int("models", len(db.Names())).Msg("model database loaded")

	var c cache.Cache
	switch cfg.Cache.Backend {
	case "redis":
		c, err = cache.NewRedis(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
	case "none":
		c = cache.NewNoop()
	default:
		c = cache.NewMemory(cfg.Cache.CleanupInterval)
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn().Err(err).Msg("cache close failed")
		}
	}()

	st, err := store.Open(cfg.Store.Directory)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open constants store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn().Err(err).Msg("store close failed")
		}
	}()

	reg, err := stations.Open(cfg.Stations.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open station registry")
	}
	defer func() {
		if err := reg.Close(); err != nil {
			logger.Warn().Err(err).Msg("station registry close failed")
		}
	}()

	holder := config.NewHolder(cfg, path)
	go func() {
		if err := holder.Watch(ctx); err != nil {
			logger.Warn().Err(err).Msg("config watcher stopped")
		}
	}()

	srv := api.New(api.Options{
		Holder:   holder,
		Database: db,
		Cache:    c,
		Store:    st,
		Stations: reg,
		ReloadDB: loadDB,
	})

	httpSrv := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      srv.Router(cfg.Telemetry.Enabled),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.Listen).Msg("listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}

	srv.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("stopped")
}
