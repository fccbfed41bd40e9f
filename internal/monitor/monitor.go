// Package monitor probes batches of targets with a bounded worker pool.
package monitor

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/pulsar/internal/models"
)

// Prober is satisfied by *probe.Prober.
type Prober interface {
	GetServerStatus(gameType, host string, port int) models.ServerStatus
}

// ForEach calls fn for every index in [0, n) using at most workers goroutines
// and returns when all calls are done. fn must only touch data owned by its index.
func ForEach(n, workers int, fn func(i int)) {
	if n == 0 {
		return
	}

	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	jobs := make(chan int, n)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(i)
			}
		}()
	}

	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
}

// Check probes every target using at most workers concurrent probes.
// Results are returned in the order of targets.
func Check(p Prober, targets []models.Target, workers int) []models.ServerStatus {
	results := make([]models.ServerStatus, len(targets))

	ForEach(len(targets), workers, func(i int) {
		results[i] = p.GetServerStatus(targets[i].Game, targets[i].Host, targets[i].Port)
	})

	log.Debug().Int("targets", len(targets)).Int("workers", workers).Msg("Bulk check completed")

	return results
}

// Rounds returns how many sequential batches ForEach needs for n items.
func Rounds(n, workers int) int {
	if workers < 1 {
		workers = 1
	}

	return (n + workers - 1) / workers
}

// CheckServers probes watched servers and pairs every entry with its status.
func CheckServers(p Prober, servers []models.WatchedServer, workers int) []models.WatchedStatus {
	targets := make([]models.Target, len(servers))
	for i, s := range servers {
		targets[i] = s.Target
	}

	statuses := Check(p, targets, workers)

	out := make([]models.WatchedStatus, len(servers))
	for i, s := range servers {
		out[i] = models.WatchedStatus{WatchedServer: s, Status: statuses[i]}
	}

	return out
}
