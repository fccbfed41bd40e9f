// Package server implements the HTTP server, middleware, and request handlers for the application.
package server

import (
	"net/http"
	"time"

	"github.com/woozymasta/pulsar/internal/config"
	"github.com/woozymasta/pulsar/internal/game"
	"github.com/woozymasta/pulsar/internal/geoip"
	"github.com/woozymasta/pulsar/internal/monitor"
	"github.com/woozymasta/pulsar/internal/storage"
)

// New creates a new Server instance with the provided storage, GeoIP provider, prober and configuration.
func New(store *storage.Repository, geo *geoip.Provider, prober monitor.Prober, cfg *config.Config) *Server {
	return &Server{
		storage:        store,
		geoip:          geo,
		cache:          newStatusCache(prober, cfg.Cache.TTL),
		queryDetails:   game.QueryDetails,
		a2sOptions:     cfg.A2S,
		trustProxy:     cfg.Server.TrustProxy,
		hardLimitCount: cfg.RateLimit.HardLimitCount,
		hardLimitWin:   cfg.RateLimit.HardLimitWin,
		workers:        cfg.Probe.Workers,
		probeTimeout:   cfg.Probe.Timeout,

		shutdown: make(chan struct{}),
	}
}

// Start launches the cache cleanup routine.
func (s *Server) Start() {
	go s.gcStatusCache()
}

// Stop ends background routines started by Start and the rate limiter.
func (s *Server) Stop() {
	close(s.shutdown)
}

// Run configures the HTTP routes and returns the main handler.
func (s *Server) Run() http.Handler {
	mux := http.NewServeMux()
	limited := s.RateLimitMiddleware()

	mux.Handle("GET /api/status", limited(http.HandlerFunc(s.handleStatus)))
	mux.Handle("GET /api/servers", limited(http.HandlerFunc(s.handleServers)))
	mux.Handle("GET /api/servers/{id}", limited(http.HandlerFunc(s.handleServer)))
	mux.Handle("GET /api/a2s", limited(http.HandlerFunc(s.handleA2S)))
	mux.Handle("GET /api/version", http.HandlerFunc(s.handleVersion))
	mux.Handle("GET /healthz", http.HandlerFunc(s.handleHealth))

	return s.LoggingMiddleware(mux)
}

// gcStatusCache periodically cleans up expired entries from the status cache.
func (s *Server) gcStatusCache() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case now := <-ticker.C:
			s.cache.purge(now)
		}
	}
}
