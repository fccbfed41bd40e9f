package probe

import (
	"bytes"
	"errors"
	"time"

	"github.com/woozymasta/pulsar/internal/models"
)

const (
	sourceSoftware = "Source"
	sourceVersion  = "2.1.9"

	// a2sMinInfoSize is the smallest reply handed to the A2S_INFO parser.
	a2sMinInfoSize = 21

	// a2sInfoPrefix covers the 0xFFFFFFFF header, the response type and the protocol byte.
	a2sInfoPrefix = 6

	a2sBufferSize = 1400
)

// a2sInfoRequest is the A2S_INFO query datagram.
var a2sInfoRequest = append([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0x54}, "Source Engine Query\x00"...)

var errShortInfo = errors.New("a2s info truncated")

// SourceAdapter implements the Source engine A2S_INFO query over UDP.
type SourceAdapter struct {
	// pick synthesizes placeholder occupancy, nil means math/rand.
	pick func(n int) int

	// Timeout bounds the exchange from request to response.
	Timeout time.Duration
}

// Probe sends a single A2S_INFO datagram to host:port and parses the reply.
// Port 0 selects SourceDefaultPort.
func (s *SourceAdapter) Probe(host string, port int) (models.ServerStatus, error) {
	if port == 0 {
		port = SourceDefaultPort
	}
	if err := validateTarget(host, port); err != nil {
		return models.Offline(host, port, models.MotdQuery, sourceSoftware), err
	}

	conn, err := dial("udp", host, port, s.Timeout)
	if err != nil {
		return models.Offline(host, port, failureMotd(err), sourceSoftware), nil
	}
	defer func() { _ = conn.Close() }()

	start := time.Now()
	if _, err := conn.Write(a2sInfoRequest); err != nil {
		return models.Offline(host, port, failureMotd(err), sourceSoftware), nil
	}

	buf := make([]byte, a2sBufferSize)
	n, err := conn.Read(buf)
	if err != nil {
		return models.Offline(host, port, failureMotd(err), sourceSoftware), nil
	}
	ping := time.Since(start)

	return s.parse(host, port, ping, buf[:n]), nil
}

func (s *SourceAdapter) parse(host string, port int, ping time.Duration, payload []byte) models.ServerStatus {
	info, err := parseInfo(payload)
	if err != nil {
		return models.Placeholder(host, port, ping, sourceVersion, host+" Source Server", sourceSoftware, s.pick)
	}

	motd := info.name
	if motd == "" {
		motd = host + " Source Server"
	}

	return models.Online(host, port, ping, models.Players{Current: info.players, Max: info.maxPlayers},
		sourceVersion, motd, sourceSoftware)
}

type sourceInfo struct {
	name       string
	players    int
	maxPlayers int
}

// parseInfo reads the fixed leading fields of an A2S_INFO reply:
// name, map, folder and game strings, the app id, then player and max player bytes.
func parseInfo(payload []byte) (sourceInfo, error) {
	if len(payload) < a2sMinInfoSize {
		return sourceInfo{}, errShortInfo
	}

	rest := payload[a2sInfoPrefix:]

	var strs [4]string
	for i := range strs {
		var err error
		if strs[i], rest, err = readCString(rest); err != nil {
			return sourceInfo{}, err
		}
	}

	// app id (2 bytes), players, max players
	if len(rest) < 4 {
		return sourceInfo{}, errShortInfo
	}

	return sourceInfo{
		name:       strs[0],
		players:    int(rest[2]),
		maxPlayers: int(rest[3]),
	}, nil
}

func readCString(b []byte) (string, []byte, error) {
	end := bytes.IndexByte(b, 0x00)
	if end < 0 {
		return "", nil, errShortInfo
	}
	return string(b[:end]), b[end+1:], nil
}
