package geoip

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// ErrUnavailable is returned when no GeoIP database is configured.
var ErrUnavailable = errors.New("geoip resolver unavailable")

// CountryResolver maps a client IP to an ISO 3166-1 country code. Output
// events carry the resolved code in their metadata so engagement can be
// sliced by region without storing raw addresses.
type CountryResolver interface {
	CountryCode(ip string) (string, error)
}

// Resolver backs CountryResolver with a local MaxMind GeoIP2 database file.
type Resolver struct {
	db *geoip2.Reader
}

// NewResolver opens the database at path. An empty path means geo enrichment
// is switched off and the caller gets a nil resolver, not an error.
func NewResolver(path string) (CountryResolver, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open database: %w", err)
	}
	return &Resolver{db: db}, nil
}

// CountryCode resolves the ISO code for ip. An address the database does not
// know yields an empty code and no error, so callers can treat "unknown" and
// "not configured" the same way.
func (r *Resolver) CountryCode(ip string) (string, error) {
	if r == nil || r.db == nil {
		return "", ErrUnavailable
	}
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return "", fmt.Errorf("geoip: invalid ip %q", ip)
	}
	record, err := r.db.Country(parsed)
	if err != nil {
		return "", fmt.Errorf("geoip: lookup country: %w", err)
	}
	if record == nil {
		return "", nil
	}
	return record.Country.IsoCode, nil
}

// Close releases the underlying database handle.
func (r *Resolver) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}
