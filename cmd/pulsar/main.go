// main is the entry point of the Pulsar application.
// It initializes the configuration, logger, database, GeoIP provider, and starts the HTTP server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/pulsar/internal/config"
	"github.com/woozymasta/pulsar/internal/geoip"
	"github.com/woozymasta/pulsar/internal/logger"
	"github.com/woozymasta/pulsar/internal/maintenance"
	"github.com/woozymasta/pulsar/internal/models"
	"github.com/woozymasta/pulsar/internal/probe"
	"github.com/woozymasta/pulsar/internal/server"
	"github.com/woozymasta/pulsar/internal/storage"
)

func main() {
	cfg := config.Parse()

	logger.Setup(cfg.Logger)

	prober := probe.New(cfg.Probe.Timeout)

	// One-shot probe
	if cfg.Query != "" {
		os.Exit(query(prober, cfg.Query))
	}

	log.Info().Msg("Starting pulsar service...")

	// GeoIP Update
	log.Info().Msg("Checking GeoIP database...")
	if err := geoip.EnsureDB(cfg.GeoIP.Path, cfg.GeoIP.URL, cfg.GeoIP.Interval); err != nil {
		log.Error().Err(err).Msg("Failed to download GeoIP database")
	}

	geoProvider, err := geoip.Open(cfg.GeoIP.Path)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open GeoIP database, country detection disabled")
		geoProvider = nil
	} else {
		defer func() {
			if err := geoProvider.Close(); err != nil {
				log.Error().Err(err).Msg("Error closing GeoIP provider")
			}
		}()
	}

	// Database
	store, err := storage.New(cfg.Storage.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database")
		}
	}()

	// Watchlist maintenance
	if maintenance.Run(cfg, store, prober) {
		return
	}

	// Init server
	srvHandler := server.New(store, geoProvider, prober, cfg)
	srvHandler.Start()

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           srvHandler.Run(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		// watchlist listings extend their own deadline by watchlist size
		WriteTimeout: cfg.Probe.Timeout + geoip.ResolveTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	srvHandler.Stop()

	log.Info().Msg("Server exited")
}

// query probes one game:host[:port] target and prints the status as JSON.
// Returns the process exit code: 0 online, 1 offline, 2 invalid target.
func query(prober *probe.Prober, raw string) int {
	target, err := models.ParseTarget(raw)
	if err != nil {
		log.Error().Err(err).Msg("Invalid query target")
		return 2
	}

	status := prober.GetServerStatus(target.Game, target.Host, target.Port)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(status); err != nil {
		log.Error().Err(err).Msg("Failed to encode status")
		return 1
	}

	if !status.Online {
		return 1
	}

	return 0
}
