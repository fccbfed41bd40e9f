package server

import (
	"time"

	"github.com/woozymasta/pulsar/internal/config"
	"github.com/woozymasta/pulsar/internal/geoip"
	"github.com/woozymasta/pulsar/internal/models"
	"github.com/woozymasta/pulsar/internal/storage"
)

// Server holds the dependencies, configuration, and runtime state required
// to handle HTTP requests.
type Server struct {
	// storage provides access to the watchlist.
	storage *storage.Repository

	// geoip resolves server hosts to country codes.
	// It can be nil if the GeoIP database is not initialized.
	geoip *geoip.Provider

	// cache serves recent probe results and falls through to the prober on a miss.
	cache *statusCache

	// queryDetails performs the extended A2S_INFO lookup behind /api/a2s.
	queryDetails func(host string, port int, options config.A2S) (*models.SourceDetails, error)

	// shutdown is closed on Stop to end background routines.
	shutdown chan struct{}

	// a2sOptions holds timeout and buffer settings for detailed A2S lookups.
	a2sOptions config.A2S

	// probeTimeout bounds one probe, used to size listing write deadlines.
	probeTimeout time.Duration

	// hardLimitWin is the time window duration for the hard rate limiter.
	hardLimitWin time.Duration

	// hardLimitCount is the maximum number of requests allowed per IP address
	// within the hardLimitWin duration.
	hardLimitCount int

	// workers bounds concurrent probes of a watchlist listing.
	workers int

	// trustProxy indicates whether the server should trust headers like X-Forwarded-For
	// or CF-Connecting-IP when determining the client's real IP address.
	trustProxy bool
}
