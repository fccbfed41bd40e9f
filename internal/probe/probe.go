// Package probe queries game servers over their native status protocols and
// normalizes every outcome into a models.ServerStatus.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/pulsar/internal/models"
)

// DefaultTimeout bounds a single probe from connection attempt to first response.
const DefaultTimeout = 5 * time.Second

// Default ports used when the caller passes port 0.
const (
	MinecraftDefaultPort = 25565
	SourceDefaultPort    = 27015
	RustDefaultPort      = 28015
)

// Rust servers answer A2S_INFO like any Source server; only the labels differ.
const (
	RustVersion  = "2024.12.10"
	RustSoftware = "Rust"
)

var errEmptyHost = errors.New("empty host")

// Adapter performs one status exchange with a server.
// The returned status is meaningful even when err is not nil; err is reserved for failures
// that are neither a timeout nor a transport error (e.g. invalid input).
type Adapter interface {
	Probe(host string, port int) (models.ServerStatus, error)
}

// Prober dispatches probes to protocol adapters by game type.
// A Prober holds no mutable state and is safe for concurrent use.
type Prober struct {
	// TCP handles minecraft and every unrecognized game type.
	TCP Adapter

	// UDP handles Source engine games and Rust.
	UDP Adapter
}

// New creates a Prober with the Minecraft and Source adapters bound to timeout.
// A non-positive timeout selects DefaultTimeout.
func New(timeout time.Duration) *Prober {
	return &Prober{
		TCP: &MinecraftAdapter{Timeout: timeout},
		UDP: &SourceAdapter{Timeout: timeout},
	}
}

type route struct {
	adapter     Adapter
	relabel     func(models.ServerStatus) models.ServerStatus
	defaultPort int
}

func (p *Prober) route(gameType string) route {
	switch strings.ToLower(strings.TrimSpace(gameType)) {
	case "minecraft":
		return route{adapter: p.TCP, defaultPort: MinecraftDefaultPort}
	case "cs2", "counter-strike":
		return route{adapter: p.UDP, defaultPort: SourceDefaultPort}
	case "rust":
		return route{
			adapter:     p.UDP,
			defaultPort: RustDefaultPort,
			relabel: func(s models.ServerStatus) models.ServerStatus {
				return s.Relabel(RustVersion, RustSoftware)
			},
		}
	default:
		// Unknown games are treated as Minecraft. This is an approximation.
		return route{adapter: p.TCP, defaultPort: MinecraftDefaultPort}
	}
}

// DefaultPort returns the port used for gameType when the caller does not specify one.
func DefaultPort(gameType string) int {
	return (&Prober{}).route(gameType).defaultPort
}

// Games lists the game types with a dedicated route.
func Games() []string {
	return []string{"minecraft", "cs2", "counter-strike", "rust"}
}

// GetServerStatus probes host:port using the protocol of gameType.
// It never fails: adapter errors and panics are reported as an offline "Query Failed" status.
// Port 0 selects the game's default port.
func (p *Prober) GetServerStatus(gameType, host string, port int) (status models.ServerStatus) {
	r := p.route(gameType)
	if port == 0 {
		port = r.defaultPort
	}

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			log.Warn().
				Str("game", gameType).
				Str("host", host).
				Int("port", port).
				Interface("panic", rec).
				Msg("Probe panicked")
			status = models.Offline(host, port, models.MotdQuery, "")
		}

		if r.relabel != nil {
			status = r.relabel(status)
		}

		log.Debug().
			Str("game", gameType).
			Str("host", host).
			Int("port", port).
			Bool("online", status.Online).
			Int("ping", status.Ping).
			Str("motd", status.Motd).
			Dur("took", time.Since(start)).
			Msg("Probe finished")
	}()

	if r.adapter == nil {
		log.Warn().Str("game", gameType).Msg("No adapter configured")
		return models.Offline(host, port, models.MotdQuery, "")
	}

	status, err := r.adapter.Probe(host, port)
	if err != nil {
		log.Warn().
			Err(err).
			Str("game", gameType).
			Str("host", host).
			Int("port", port).
			Msg("Probe failed")

		return models.Offline(host, port, models.MotdQuery, "")
	}

	return status
}

var defaultProber = New(DefaultTimeout)

// GetServerStatus probes a server with the default timeout.
func GetServerStatus(gameType, host string, port int) models.ServerStatus {
	return defaultProber.GetServerStatus(gameType, host, port)
}

// validateTarget checks the input that adapters cannot turn into a network outcome.
func validateTarget(host string, port int) error {
	if host == "" {
		return errEmptyHost
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %d", port)
	}
	return nil
}

// dial opens a connection whose deadline covers the whole exchange, dialing included.
func dial(network, host string, port int, timeout time.Duration) (net.Conn, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	deadline := time.Now().Add(timeout)
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, network, net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}

	if err := conn.SetDeadline(deadline); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return conn, nil
}

// failureMotd maps a network error to the offline message: deadline hits mean the
// server stayed silent, everything else is a transport failure.
func failureMotd(err error) string {
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return models.MotdOffline
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.MotdOffline
	}

	return models.MotdFailed
}
