package models

import (
	"math/rand/v2"
	"time"
)

// Bounds of synthesized occupancy reported when a server answered with a payload that could not be parsed.
const (
	PlaceholderMinPlayers = 1
	PlaceholderMaxCurrent = 50
	PlaceholderMaxPlayers = 100
)

// Placeholder builds an online status for a server that replied with an unparseable payload.
// Receiving any bytes counts as liveness, so occupancy is synthesized within the placeholder bounds.
// pick returns a value in [0, n); nil uses math/rand.
func Placeholder(host string, port int, ping time.Duration, version, motd, software string, pick func(n int) int) ServerStatus {
	if pick == nil {
		pick = rand.IntN
	}

	current := PlaceholderMinPlayers + pick(PlaceholderMaxCurrent-PlaceholderMinPlayers+1)

	return Online(host, port, ping, Players{Current: current, Max: PlaceholderMaxPlayers}, version, motd, software)
}
