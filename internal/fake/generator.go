// Package fake seeds the watchlist with random servers for testing and development purposes.
package fake

import (
	"fmt"
	"math/rand"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/pulsar/internal/models"
)

// Store is the part of the watchlist repository the generator writes to.
type Store interface {
	AddServer(t models.Target, label string) (*models.WatchedServer, error)
}

type gameProfile struct {
	game   string
	label  string
	domain string
	ports  []int
}

var profiles = []gameProfile{
	{game: "minecraft", label: "Survival", domain: "mc", ports: []int{25565, 25566, 25575}},
	{game: "cs2", label: "Competitive", domain: "cs", ports: []int{27015, 27016, 27025}},
	{game: "counter-strike", label: "Casual", domain: "css", ports: []int{27015, 27020}},
	{game: "rust", label: "Vanilla", domain: "rust", ports: []int{28015, 28016}},
}

// GenerateData adds count random targets to the watchlist and returns how many were stored.
// Roughly half the hosts are IPv4 addresses so country lookups have something to resolve.
func GenerateData(store Store, count int) int {
	added := 0

	for i := 0; i < count; i++ {
		p := profiles[rand.Intn(len(profiles))]

		var host string
		if rand.Float32() < 0.5 {
			host = fmt.Sprintf("%d.%d.%d.%d", rand.Intn(220)+1, rand.Intn(255), rand.Intn(255), rand.Intn(254)+1)
		} else {
			host = fmt.Sprintf("%s%d.example.net", p.domain, rand.Intn(1000))
		}

		target := models.Target{
			Game: p.game,
			Host: host,
			Port: p.ports[rand.Intn(len(p.ports))],
		}
		label := fmt.Sprintf("%s #%d", p.label, rand.Intn(100))

		if _, err := store.AddServer(target, label); err != nil {
			log.Warn().Err(err).Str("target", target.String()).Msg("Failed to generate fake server")
			continue
		}
		added++
	}

	return added
}
