// Package geo resolves a best-effort approximate location for a client
// address. A local GeoLite2 database is preferred when configured; an
// unauthenticated HTTP geolocation endpoint is the fallback. Lookups
// never fail outward: every error degrades to an empty location.
package geo

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/oschwald/geoip2-golang"
	"github.com/pariz/gountries"

	"visitry/internal/config"
	"visitry/internal/visitors"
)

// ipPlaceholder in the endpoint URL is replaced with the client address.
const ipPlaceholder = "{ip}"

type geoResponse struct {
	CountryName string `json:"country_name"`
	City        string `json:"city"`
}

// Enricher implements visitors.LocationResolver.
type Enricher struct {
	logger    *slog.Logger
	geoDB     *geoip2.Reader
	countries *gountries.Query
	endpoint  string
	client    *http.Client
}

// NewEnricher builds an Enricher from configuration. A missing or
// unreadable GeoLite2 database is not an error; the HTTP fallback takes
// over (GeoIP is optional).
func NewEnricher(cfg *config.Config, logger *slog.Logger) *Enricher {
	e := &Enricher{
		logger:    logger,
		countries: gountries.New(),
		endpoint:  cfg.GeoAPIURL,
		client: &http.Client{
			Timeout: time.Duration(cfg.GeoAPITimeoutSeconds) * time.Second,
		},
	}

	if cfg.GeoDBPath == "" {
		logger.Debug("GeoIP database path not configured - using HTTP fallback only")
		return e
	}

	if _, err := os.Stat(cfg.GeoDBPath); err != nil {
		logger.Info("GeoLite2 database not found - using HTTP fallback only",
			slog.String("path", cfg.GeoDBPath),
			slog.String("hint", "Download from https://www.maxmind.com/en/geolite2/signup"))
		return e
	}

	db, err := geoip2.Open(cfg.GeoDBPath)
	if err != nil {
		logger.Error("Failed to open GeoLite2 database",
			slog.String("path", cfg.GeoDBPath),
			slog.Any("error", err))
		return e
	}

	e.geoDB = db
	logger.Info("GeoLite2 database initialized successfully",
		slog.String("path", cfg.GeoDBPath))
	return e
}

// Close releases the local database handle, if any.
func (e *Enricher) Close() {
	if e.geoDB != nil {
		e.geoDB.Close()
	}
}

// Lookup resolves an approximate country/city for the address. Best
// effort: any failure returns an empty location.
func (e *Enricher) Lookup(ctx context.Context, ipAddress string) visitors.Location {
	if location, ok := e.lookupLocal(ipAddress); ok {
		return location
	}
	return e.lookupHTTP(ctx, ipAddress)
}

func (e *Enricher) lookupLocal(ipAddress string) (visitors.Location, bool) {
	if e.geoDB == nil {
		return visitors.Location{}, false
	}

	ip := net.ParseIP(ipAddress)
	if ip == nil {
		e.logger.Debug("Failed to parse IP address for geo lookup",
			slog.String("ip_address", ipAddress))
		return visitors.Location{}, false
	}

	record, err := e.geoDB.City(ip)
	if err != nil {
		e.logger.Debug("GeoLite2 lookup failed",
			slog.String("ip_address", ipAddress),
			slog.Any("error", err))
		return visitors.Location{}, false
	}

	location := visitors.Location{
		Country: record.Country.Names["en"],
		City:    record.City.Names["en"],
	}

	// Some database editions carry only the ISO code.
	if location.Country == "" && record.Country.IsoCode != "" {
		if country, err := e.countries.FindCountryByAlpha(record.Country.IsoCode); err == nil {
			location.Country = country.Name.Common
		}
	}

	if location.Country == "" && location.City == "" {
		return visitors.Location{}, false
	}
	return location, true
}

func (e *Enricher) lookupHTTP(ctx context.Context, ipAddress string) visitors.Location {
	if e.endpoint == "" {
		return visitors.Location{}
	}

	url := e.endpoint
	if strings.Contains(url, ipPlaceholder) {
		url = strings.ReplaceAll(url, ipPlaceholder, ipAddress)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		e.logger.Debug("Failed to build geolocation request", slog.Any("error", err))
		return visitors.Location{}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Debug("Geolocation request failed", slog.Any("error", err))
		return visitors.Location{}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e.logger.Debug("Geolocation request returned non-2xx",
			slog.Int("status", resp.StatusCode))
		return visitors.Location{}
	}

	var body geoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		e.logger.Debug("Failed to decode geolocation response", slog.Any("error", err))
		return visitors.Location{}
	}

	return visitors.Location{
		Country: body.CountryName,
		City:    body.City,
	}
}
