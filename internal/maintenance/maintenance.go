// Package maintenance provide tools for managing the watchlist from the command line
package maintenance

import (
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/pulsar/internal/config"
	"github.com/woozymasta/pulsar/internal/fake"
	"github.com/woozymasta/pulsar/internal/models"
	"github.com/woozymasta/pulsar/internal/monitor"
	"github.com/woozymasta/pulsar/internal/probe"
	"github.com/woozymasta/pulsar/internal/storage"
)

// Run checks if any maintenance flags are set and executes the corresponding tasks.
// Returns true if a maintenance task was executed (indicating the program should exit).
// Tasks run in order: fake data, add, remove, then check-all or prune-offline.
func Run(cfg *config.Config, store *storage.Repository, prober monitor.Prober) bool {
	ran := false

	if cfg.Storage.GenerateCount > 0 {
		n := fake.GenerateData(store, cfg.Storage.GenerateCount)
		log.Info().Int("added", n).Msg("Fake watchlist generated")
		ran = true
	}

	if len(cfg.Storage.Add) > 0 {
		addServers(store, cfg.Storage.Add, cfg.Storage.Label)
		ran = true
	}

	if len(cfg.Storage.Remove) > 0 {
		removeServers(store, cfg.Storage.Remove)
		ran = true
	}

	if cfg.Storage.CheckAll || cfg.Storage.PruneOffline {
		checkServers(store, prober, cfg.Probe.Workers, cfg.Storage.PruneOffline)
		ran = true
	}

	return ran
}

// parseTarget reads a game:host[:port] entry and fills in the game's default port.
func parseTarget(raw string) (models.Target, error) {
	t, err := models.ParseTarget(raw)
	if err != nil {
		return t, err
	}
	if t.Port == 0 {
		t.Port = probe.DefaultPort(t.Game)
	}

	return t, nil
}

func addServers(store *storage.Repository, entries []string, label string) {
	for _, raw := range entries {
		t, err := parseTarget(raw)
		if err != nil {
			log.Error().Err(err).Msg("Skipping watchlist entry")
			continue
		}

		s, err := store.AddServer(t, label)
		if err != nil {
			log.Error().Err(err).Str("target", t.String()).Msg("Failed to add server")
			continue
		}

		log.Info().Int64("id", s.ID).Str("target", t.String()).Str("label", s.Label).Msg("Server added to watchlist")
	}
}

func removeServers(store *storage.Repository, entries []string) {
	for _, raw := range entries {
		t, err := parseTarget(raw)
		if err != nil {
			log.Error().Err(err).Msg("Skipping watchlist entry")
			continue
		}

		deleted, err := store.DeleteServer(t)
		switch {
		case err != nil:
			log.Error().Err(err).Str("target", t.String()).Msg("Failed to remove server")
		case deleted:
			log.Info().Str("target", t.String()).Msg("Server removed from watchlist")
		default:
			log.Warn().Str("target", t.String()).Msg("Server not in watchlist")
		}
	}
}

func checkServers(store *storage.Repository, prober monitor.Prober, workers int, prune bool) {
	servers, err := store.GetServers("")
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch watchlist")
		return
	}

	if len(servers) == 0 {
		log.Info().Msg("Watchlist is empty")
		return
	}

	log.Info().Int("count", len(servers)).Int("workers", workers).Bool("prune", prune).Msg("Checking watchlist...")

	var online, pruned int
	for _, ws := range monitor.CheckServers(prober, servers, workers) {
		logCtx := log.With().
			Str("game", ws.Game).
			Str("host", ws.Host).
			Int("port", ws.Port).
			Logger()

		if ws.Status.Online {
			online++
			logCtx.Info().
				Int("players", ws.Status.Players.Current).
				Int("max_players", ws.Status.Players.Max).
				Int("ping", ws.Status.Ping).
				Str("version", ws.Status.Version).
				Msg("Server online")
			continue
		}

		logCtx.Warn().Str("motd", ws.Status.Motd).Msg("Server offline")

		if !prune {
			continue
		}
		if _, err := store.DeleteServer(ws.Target); err != nil {
			logCtx.Error().Err(err).Msg("Failed to prune server")
			continue
		}
		pruned++
	}

	log.Info().Int("online", online).Int("offline", len(servers)-online).Int("pruned", pruned).Msg("Watchlist check completed")
}
