// SPDX-License-Identifier: MIT

// Package api serves the tidecast HTTP API: model catalog browsing,
// harmonic constant extraction and the station registry.
package api

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tidecast/tidecast/internal/cache"
	"github.com/tidecast/tidecast/internal/config"
	"github.com/tidecast/tidecast/internal/log"
	"github.com/tidecast/tidecast/internal/model"
	"github.com/tidecast/tidecast/internal/stations"
	"github.com/tidecast/tidecast/internal/store"
)

// Server carries the dependencies of the HTTP handlers.
type Server struct {
	holder   *config.Holder
	cache    cache.Cache
	store    *store.Store
	stations *stations.Registry
	logger   zerolog.Logger

	dbMu     sync.RWMutex
	db       *model.Database
	reloadDB func() (*model.Database, error)

	startTime time.Time
	ready     atomic.Bool
}

// Options bundles the dependencies for New. Cache, Store and Stations
// may be nil; the matching endpoints then degrade gracefully.
type Options struct {
	Holder   *config.Holder
	Database *model.Database
	Cache    cache.Cache
	Store    *store.Store
	Stations *stations.Registry
	// ReloadDB rebuilds the model database on POST /api/v1/reload.
	ReloadDB func() (*model.Database, error)
}

// New builds a Server. Call Router to obtain the handler.
func New(o Options) *Server {
	c := o.Cache
	if c == nil {
		c = cache.NewNoop()
	}
	s := &Server{
		holder:    o.Holder,
		db:        o.Database,
		reloadDB:  o.ReloadDB,
		cache:     c,
		store:     o.Store,
		stations:  o.Stations,
		logger:    log.WithComponent("api"),
		startTime: time.Now(),
	}
	s.ready.Store(true)
	return s
}

// SetReady flips the readiness state reported by /readyz.
func (s *Server) SetReady(ready bool) { s.ready.Store(ready) }

func (s *Server) database() *model.Database {
	s.dbMu.RLock()
	defer s.dbMu.RUnlock()
	return s.db
}

// Router assembles the chi router with the middleware stack and all
// routes.
func (s *Server) Router(tracing bool) http.Handler {
	cfg := s.holder.Current()

	r := chi.NewRouter()
	r.Use(recoverer)
	r.Use(requestID)
	r.Use(logging)
	if cfg.Server.RateLimit > 0 {
		r.Use(rateLimit(cfg.Server.RateLimit, cfg.Server.RateWindow))
	}
	r.Use(httpMetrics)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/models", s.handleListModels)
		r.Get("/models/{name}", s.handleGetModel)
		r.Post("/constants", s.handleConstants)
		r.Post("/prime", s.handlePrime)
		r.Get("/primed", s.handleListPrimed)
		r.Post("/interpolate", s.handleInterpolate)
		r.Post("/reload", s.handleReload)

		r.Route("/stations", func(r chi.Router) {
			r.Get("/", s.handleListStations)
			r.Post("/", s.handleCreateStation)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetStation)
				r.Put("/", s.handleUpdateStation)
				r.Delete("/", s.handleDeleteStation)
				r.Get("/constants", s.handleStationConstants)
			})
		})
	})

	if tracing {
		return otelhttp.NewHandler(r, "tidecast.api")
	}
	return r
}
