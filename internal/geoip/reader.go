package geoip

import (
	"context"
	"net"
	"time"

	"github.com/oschwald/geoip2-golang"
	"github.com/rs/zerolog/log"
)

// ResolveTimeout bounds the DNS lookup of a hostname before a country lookup.
const ResolveTimeout = 2 * time.Second

// Provider wraps the GeoIP2 database reader to provide country lookup functionality.
type Provider struct {
	db *geoip2.Reader
}

// Open initializes the GeoIP database reader from a specific file path.
func Open(path string) (*Provider, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}

	return &Provider{db: db}, nil
}

// Close closes the underlying GeoIP database reader.
func (p *Provider) Close() error {
	return p.db.Close()
}

// GetCountryCode looks up the ISO country code (e.g., "US", "DE") for a given IP address string.
// It returns an empty string if the IP is invalid or the country cannot be determined.
func (p *Provider) GetCountryCode(ipStr string) string {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return ""
	}

	record, err := p.db.Country(ip)
	if err != nil {
		return ""
	}

	return record.Country.IsoCode
}

// CountryForHost returns the country code of a server host, resolving hostnames first.
// A nil Provider, an unresolvable host or an unknown address yield an empty string.
func (p *Provider) CountryForHost(ctx context.Context, host string) string {
	if p == nil || host == "" {
		return ""
	}

	if net.ParseIP(host) != nil {
		return p.GetCountryCode(host)
	}

	ctx, cancel := context.WithTimeout(ctx, ResolveTimeout)
	defer cancel()

	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil || len(addrs) == 0 {
		log.Trace().Err(err).Str("host", host).Msg("Host not resolved for GeoIP")
		return ""
	}

	return p.GetCountryCode(addrs[0].IP.String())
}
