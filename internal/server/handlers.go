package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/pulsar/internal/geoip"
	"github.com/woozymasta/pulsar/internal/models"
	"github.com/woozymasta/pulsar/internal/monitor"
	"github.com/woozymasta/pulsar/internal/probe"
	"github.com/woozymasta/pulsar/internal/vars"
)

// defaultGame is probed when /api/status is called without a game parameter.
const defaultGame = "minecraft"

// listingSlack covers database access and encoding on top of the probe rounds.
const listingSlack = 5 * time.Second

// handleStatus probes a single server and returns its normalized status.
// Query params: ?game=minecraft&host=play.example.com&port=25565
// A missing port selects the game's default port.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	host := strings.TrimSpace(q.Get("host"))
	if host == "" {
		http.Error(w, "Missing host", http.StatusBadRequest)
		return
	}

	port, ok := parsePort(q.Get("port"))
	if !ok {
		http.Error(w, "Invalid port", http.StatusBadRequest)
		return
	}

	gameType := q.Get("game")
	if gameType == "" {
		gameType = defaultGame
	}

	if status, hit := s.cache.lookup(gameType, host, port); hit {
		w.Header().Set("X-Cache", "HIT")
		writeJSON(w, http.StatusOK, status)
		return
	}

	w.Header().Set("X-Cache", "MISS")
	writeJSON(w, http.StatusOK, s.cache.GetServerStatus(gameType, host, port))
}

// handleServers returns every watched server with a live status and its country code.
// Query params: ?game=rust (optional filter)
func (s *Server) handleServers(w http.ResponseWriter, r *http.Request) {
	servers, err := s.storage.GetServers(strings.ToLower(r.URL.Query().Get("game")))
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch watchlist")
		http.Error(w, "Database Error", http.StatusInternalServerError)
		return
	}

	s.extendWriteDeadline(w, len(servers))

	result := make([]models.WatchedStatus, len(servers))
	monitor.ForEach(len(servers), s.workers, func(i int) {
		result[i] = s.watchedStatus(r.Context(), servers[i])
	})

	writeJSON(w, http.StatusOK, result)
}

// handleServer returns one watched server by id with a live status.
func (s *Server) handleServer(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		http.Error(w, "Invalid id", http.StatusBadRequest)
		return
	}

	server, err := s.storage.GetServer(id)
	if err != nil {
		log.Error().Err(err).Int64("id", id).Msg("Failed to fetch server")
		http.Error(w, "Database Error", http.StatusInternalServerError)
		return
	}

	if server == nil {
		http.NotFound(w, r)
		return
	}

	s.extendWriteDeadline(w, 1)
	writeJSON(w, http.StatusOK, s.watchedStatus(r.Context(), *server))
}

// watchedStatus probes a watched server and resolves its country.
func (s *Server) watchedStatus(ctx context.Context, ws models.WatchedServer) models.WatchedStatus {
	return models.WatchedStatus{
		WatchedServer: ws,
		Status:        s.cache.GetServerStatus(ws.Game, ws.Host, ws.Port),
		CountryCode:   s.geoip.CountryForHost(ctx, ws.Host),
	}
}

// extendWriteDeadline moves the response write deadline past the worst case of probing
// and resolving count servers in rounds of s.workers.
func (s *Server) extendWriteDeadline(w http.ResponseWriter, count int) {
	perRound := s.probeTimeout + geoip.ResolveTimeout
	budget := time.Duration(monitor.Rounds(count, s.workers))*perRound + listingSlack

	err := http.NewResponseController(w).SetWriteDeadline(time.Now().Add(budget))
	if err != nil && !errors.Is(err, http.ErrNotSupported) {
		log.Debug().Err(err).Msg("Failed to extend write deadline")
	}
}

// handleA2S performs a live detailed A2S query to a Source engine server.
// Query params: ?host=1.2.3.4&port=27015
func (s *Server) handleA2S(w http.ResponseWriter, r *http.Request) {
	host := strings.TrimSpace(r.URL.Query().Get("host"))
	if host == "" {
		http.Error(w, "Missing host", http.StatusBadRequest)
		return
	}

	port, ok := parsePort(r.URL.Query().Get("port"))
	if !ok {
		http.Error(w, "Invalid port", http.StatusBadRequest)
		return
	}
	if port == 0 {
		port = probe.SourceDefaultPort
	}

	details, err := s.queryDetails(host, port, s.a2sOptions)
	if err != nil {
		log.Debug().Err(err).Str("host", host).Int("port", port).Msg("A2S query failed")
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, details)
}

// handleVersion returns the build information.
func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, vars.Info())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok"))
}

// parsePort accepts an empty value as port 0 (game default) or a number in 1..65535.
func parsePort(raw string) (int, bool) {
	if raw == "" {
		return 0, true
	}

	port, err := strconv.Atoi(raw)
	if err != nil || port < 1 || port > 65535 {
		return 0, false
	}

	return port, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
