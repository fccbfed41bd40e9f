package server

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/woozymasta/pulsar/internal/models"
	"github.com/woozymasta/pulsar/internal/monitor"
	"github.com/woozymasta/pulsar/internal/probe"
)

type cacheEntry struct {
	expires time.Time
	status  models.ServerStatus
}

// statusCache keeps probe results for a short TTL, keyed by the xxhash of the target.
// It implements monitor.Prober so bulk checks share it with single lookups.
type statusCache struct {
	next    monitor.Prober
	entries sync.Map // uint64 -> cacheEntry
	ttl     time.Duration
}

func newStatusCache(next monitor.Prober, ttl time.Duration) *statusCache {
	return &statusCache{next: next, ttl: ttl}
}

// cacheKey normalizes the target the same way the prober routes it.
func cacheKey(gameType, host string, port int) uint64 {
	gameType = strings.ToLower(strings.TrimSpace(gameType))
	if port == 0 {
		port = probe.DefaultPort(gameType)
	}

	return xxhash.Sum64String(gameType + "|" + strings.ToLower(host) + "|" + strconv.Itoa(port))
}

// lookup returns a fresh cached status if there is one.
func (c *statusCache) lookup(gameType, host string, port int) (models.ServerStatus, bool) {
	if c.ttl <= 0 {
		return models.ServerStatus{}, false
	}

	val, ok := c.entries.Load(cacheKey(gameType, host, port))
	if !ok {
		return models.ServerStatus{}, false
	}

	entry, ok := val.(cacheEntry)
	if !ok || time.Now().After(entry.expires) {
		return models.ServerStatus{}, false
	}

	return entry.status, true
}

// GetServerStatus serves the status from cache or probes and stores the result.
func (c *statusCache) GetServerStatus(gameType, host string, port int) models.ServerStatus {
	if status, ok := c.lookup(gameType, host, port); ok {
		return status
	}

	status := c.next.GetServerStatus(gameType, host, port)
	if c.ttl > 0 {
		c.entries.Store(cacheKey(gameType, host, port), cacheEntry{status: status, expires: time.Now().Add(c.ttl)})
	}

	return status
}

// purge drops expired entries.
func (c *statusCache) purge(now time.Time) {
	c.entries.Range(func(key, value any) bool {
		if entry, ok := value.(cacheEntry); !ok || now.After(entry.expires) {
			c.entries.Delete(key)
		}
		return true
	})
}
