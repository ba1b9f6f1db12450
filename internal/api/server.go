// Package api serves stored industry reports over HTTP and exposes on-demand
// regeneration.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/bher20/tariffmanager/internal/api/swagger"
	"github.com/bher20/tariffmanager/internal/industries"
	"github.com/bher20/tariffmanager/internal/report"
	"github.com/bher20/tariffmanager/internal/storage"
	"github.com/bher20/tariffmanager/internal/tariffs"
)

const (
	DefaultCacheTTL = 5 * time.Minute
	cleanupInterval = 10 * time.Minute
)

type Deps struct {
	Store    storage.Store
	Catalog  *industries.Catalog
	Tariffs  *tariffs.Service
	Pipeline *report.Pipeline
	CacheTTL time.Duration
	Log      *zap.Logger
}

type Server struct {
	store    storage.Store
	catalog  *industries.Catalog
	tariffs  *tariffs.Service
	pipeline *report.Pipeline

	docs   *cache.Cache
	flight singleflight.Group
	log    *zap.Logger
}

func NewServer(d Deps) *Server {
	ttl := d.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		store:    d.Store,
		catalog:  d.Catalog,
		tariffs:  d.Tariffs,
		pipeline: d.Pipeline,
		docs:     cache.New(ttl, cleanupInterval),
		log:      log.Named("api"),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", s.healthz)
	r.Get("/livez", s.livez)
	r.Get("/readyz", s.readyz)
	r.Handle("/docs/*", http.StripPrefix("/docs", swagger.Handler()))
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/docs/", http.StatusMovedPermanently)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.instrument)
		r.Get("/industries", s.listIndustries)
		r.Route("/reports/{industry}", func(r chi.Router) {
			r.Get("/last-modified", s.lastModified)
			r.Get("/{section}", s.getSection)
			r.Post("/tariff-updates/regenerate", s.regenerate)
			r.Post("/generate", s.generate)
		})
	})
	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) livez(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("live"))
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.log.Warn("readyz: storage ping failed", zap.Error(err))
		http.Error(w, "storage not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
