// Package game provides detailed lookups of game servers using the Source Engine Query (A2S) protocol.
package game

import (
	"fmt"

	"github.com/woozymasta/a2s/pkg/a2s"
	"github.com/woozymasta/pulsar/internal/config"
	"github.com/woozymasta/pulsar/internal/models"
)

// QueryDetails connects to a game server via UDP and requests A2S_INFO,
// following challenge and split-packet replies as the a2s client does.
// It returns the extended server view or an error if the server is unreachable.
func QueryDetails(host string, port int, options config.A2S) (*models.SourceDetails, error) {
	client, err := a2s.New(host, port)
	if err != nil {
		return nil, fmt.Errorf("a2s client %s:%d: %w", host, port, err)
	}
	defer func() { _ = client.Close() }()

	client.BufferSize = options.BufferSize
	client.Timeout = options.Timeout

	info, err := client.GetInfo()
	if err != nil {
		return nil, fmt.Errorf("a2s info %s:%d: %w", host, port, err)
	}

	return &models.SourceDetails{
		Name:        info.Name,
		Map:         info.Map,
		Game:        info.Game,
		Version:     info.Version,
		Environment: info.Environment.String(),
		Players:     info.Players,
		MaxPlayers:  info.MaxPlayers,
	}, nil
}
