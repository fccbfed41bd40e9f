// Package models defines the status value produced by probes and the data structures
// used for API responses and database persistence.
package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// PingUnreachable is the ping sentinel reported for servers that did not answer.
	PingUnreachable = 9999

	// UnknownValue is used for version and software when nothing better is known.
	UnknownValue = "Unknown"
)

// Messages of the day reported for failed probes.
const (
	MotdOffline = "Server Offline"
	MotdFailed  = "Connection Failed"
	MotdQuery   = "Query Failed"
)

// Players holds current and maximum occupancy.
type Players struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

// ServerStatus is the normalized result of a single probe.
type ServerStatus struct {
	Players  Players `json:"players"`
	Version  string  `json:"version"`
	Motd     string  `json:"motd"`
	Hostname string  `json:"hostname"`
	Software string  `json:"software"`
	Ping     int     `json:"ping"`
	Port     int     `json:"port"`
	Online   bool    `json:"online"`
}

// Online builds a status for a server that answered.
// Negative player counts are clamped to zero, empty version and software become "Unknown".
func Online(host string, port int, ping time.Duration, players Players, version, motd, software string) ServerStatus {
	if players.Current < 0 {
		players.Current = 0
	}
	if players.Max < 0 {
		players.Max = 0
	}

	return ServerStatus{
		Online:   true,
		Players:  players,
		Version:  orUnknown(version),
		Motd:     motd,
		Ping:     int(ping.Milliseconds()),
		Hostname: host,
		Port:     port,
		Software: orUnknown(software),
	}
}

// Offline builds a status for a server that did not answer.
// It always carries zero players and the unreachable ping sentinel.
func Offline(host string, port int, motd, software string) ServerStatus {
	return ServerStatus{
		Online:   false,
		Players:  Players{},
		Version:  UnknownValue,
		Motd:     motd,
		Ping:     PingUnreachable,
		Hostname: host,
		Port:     port,
		Software: orUnknown(software),
	}
}

// Relabel returns a copy of s with version and software replaced.
func (s ServerStatus) Relabel(version, software string) ServerStatus {
	s.Version = version
	s.Software = software
	return s
}

func orUnknown(v string) string {
	if v == "" {
		return UnknownValue
	}
	return v
}

// Target identifies a server to probe.
type Target struct {
	Game string `json:"game"`
	Host string `json:"host"`
	Port int    `json:"port"`
}

// String formats the target as game:host:port.
func (t Target) String() string {
	return t.Game + ":" + t.Host + ":" + strconv.Itoa(t.Port)
}

// ParseTarget parses "game:host[:port]". A missing port is returned as 0.
// IPv6 hosts must be bracketed, e.g. "cs2:[::1]:27015".
func ParseTarget(s string) (Target, error) {
	game, rest, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || game == "" || rest == "" {
		return Target{}, fmt.Errorf("invalid target %q, expected game:host[:port]", s)
	}

	t := Target{Game: strings.ToLower(game), Host: rest}

	if strings.HasPrefix(rest, "[") {
		end := strings.Index(rest, "]")
		if end < 0 {
			return Target{}, fmt.Errorf("invalid target %q, unclosed bracket", s)
		}
		t.Host = rest[1:end]
		rest = rest[end+1:]
		if rest == "" {
			return t, nil
		}
		if !strings.HasPrefix(rest, ":") {
			return Target{}, fmt.Errorf("invalid target %q", s)
		}
		return parseTargetPort(t, rest[1:], s)
	}

	if i := strings.LastIndex(rest, ":"); i >= 0 {
		t.Host = rest[:i]
		return parseTargetPort(t, rest[i+1:], s)
	}

	return t, nil
}

func parseTargetPort(t Target, portStr, raw string) (Target, error) {
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return Target{}, fmt.Errorf("invalid port in target %q", raw)
	}
	if t.Host == "" {
		return Target{}, fmt.Errorf("invalid target %q, empty host", raw)
	}
	t.Port = port
	return t, nil
}

// WatchedServer is a server registered in the watchlist.
type WatchedServer struct {
	AddedAt time.Time `json:"added_at"`
	Label   string    `json:"label"`
	Target
	ID int64 `json:"id"`
}

// WatchedStatus is a watchlist entry enriched with a live probe result.
type WatchedStatus struct {
	CountryCode string       `json:"country_code,omitempty"`
	Status      ServerStatus `json:"status"`
	WatchedServer
}

// SourceDetails is the extended A2S_INFO view of a Source engine server.
type SourceDetails struct {
	Name        string `json:"name"`
	Map         string `json:"map"`
	Game        string `json:"game"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
	Players     byte   `json:"players"`
	MaxPlayers  byte   `json:"max_players"`
}
