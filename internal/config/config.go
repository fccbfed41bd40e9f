// Package config handles the parsing and validation of application configuration
// from command-line arguments and environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/woozymasta/pulsar/internal/logger"
	"github.com/woozymasta/pulsar/internal/vars"
)

// Config represents the complete application flags configuration.
type Config struct {
	// betteralign:ignore

	Server    Server        `group:"Server Options" env-namespace:"PULSAR"`
	Probe     Probe         `group:"Probe Options" namespace:"probe" env-namespace:"PULSAR_PROBE"`
	Storage   Storage       `group:"Storage Options" namespace:"db" env-namespace:"PULSAR_DB"`
	GeoIP     GeoIP         `group:"GeoIP Options" namespace:"geoip" env-namespace:"PULSAR_GEOIP"`
	RateLimit RateLimit     `group:"Rate Limit Options" namespace:"rate-limit" env-namespace:"PULSAR_RATE_LIMIT"`
	Cache     Cache         `group:"Cache Options" namespace:"cache" env-namespace:"PULSAR_CACHE"`
	A2S       A2S           `group:"A2S Options" namespace:"a2s" env-namespace:"PULSAR_A2S"`
	Logger    logger.Config `group:"Logger Options" namespace:"log" env-namespace:"PULSAR_LOG"`

	Query   string `short:"q" long:"query" description:"Probe a single server and print its status as JSON, e.g. minecraft:play.example.com:25565"`
	Version bool   `short:"v" long:"version" description:"Print version and build info"`
}

// Server holds web server configuration.
type Server struct {
	// betteralign:ignore

	Address    string `short:"l" long:"address" env:"LISTEN_ADDRESS" description:"Server listen address" default:":8080"`
	TrustProxy bool   `long:"trust-proxy" env:"TRUST_PROXY" description:"Trust X-Forwarded-For headers"`
}

// Probe holds game server probing configuration.
type Probe struct {
	// betteralign:ignore

	Timeout time.Duration `long:"timeout" env:"TIMEOUT" description:"Timeout of a single status probe" default:"5s"`
	Workers int           `long:"workers" env:"WORKERS" description:"Concurrent probes for watchlist checks" default:"10"`
}

// Storage holds database configuration and watchlist maintenance tasks.
type Storage struct {
	// betteralign:ignore

	Path          string   `short:"d" long:"path" env:"PATH" description:"Path to SQLite database" default:"pulsar.db"`
	Add           []string `long:"add" description:"Add server to watchlist as game:host[:port], may be repeated"`
	Label         string   `long:"label" description:"Label for servers added with --db-add"`
	Remove        []string `long:"remove" description:"Remove server from watchlist as game:host[:port], may be repeated"`
	CheckAll      bool     `long:"check-all" description:"Probe every watched server and log the result"`
	PruneOffline  bool     `long:"prune-offline" description:"Probe every watched server and remove the offline ones"`
	GenerateCount int      `long:"gen-fake-data" hidden:"true"`
}

// GeoIP holds MaxMind GeoIP configuration.
type GeoIP struct {
	// betteralign:ignore

	Path     string        `short:"g" long:"path" env:"PATH" description:"Path to MMDB file" default:"pulsar.mmdb"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB" default:"https://git.io/GeoLite2-Country.mmdb"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Update interval check" default:"24h"`
}

// A2S holds configuration of detailed Source Query lookups.
type A2S struct {
	// betteralign:ignore

	Timeout    time.Duration `long:"timeout" env:"TIMEOUT" description:"Query timeout" default:"3s"`
	BufferSize uint16        `long:"buffer-size" env:"BUFFER_SIZE" description:"Response body buffer size" default:"1400"`
}

// RateLimit holds API rate limiting configuration.
type RateLimit struct {
	// betteralign:ignore

	HardLimitCount int           `long:"hard-count" env:"HARD_COUNT" description:"Hard IP limit: requests count" default:"30"`
	HardLimitWin   time.Duration `long:"hard-window" env:"HARD_WINDOW" description:"Hard IP limit: window duration" default:"1m"`
}

// Cache holds the API response cache configuration.
type Cache struct {
	// betteralign:ignore

	TTL time.Duration `long:"ttl" env:"TTL" description:"How long a probe result is served from cache, 0 disables" default:"15s"`
}

// Parse reads the configuration from flags and environment variables.
// It terminates the application if the configuration is invalid or if the help flag is invoked.
func Parse() *Config {
	cfg, err := ParseArgs(os.Args[1:])
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}

	if cfg.Version {
		vars.Print()
		os.Exit(0)
	}

	return cfg
}

// ParseArgs parses args and environment variables into a validated Config.
func ParseArgs(args []string) (*Config, error) {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	parser.NamespaceDelimiter = "-"

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Probe.Timeout <= 0 {
		return fmt.Errorf("probe timeout must be positive, got %s", c.Probe.Timeout)
	}
	if c.Probe.Workers < 1 {
		return fmt.Errorf("probe workers must be at least 1, got %d", c.Probe.Workers)
	}
	if c.RateLimit.HardLimitCount < 1 || c.RateLimit.HardLimitWin <= 0 {
		return fmt.Errorf("rate limit must allow at least one request per positive window")
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache ttl must not be negative, got %s", c.Cache.TTL)
	}

	return nil
}
