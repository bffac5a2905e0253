package geo_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visitry/internal/config"
	"visitry/internal/pkg/geo"
)

func testConfig(t *testing.T, endpoint string) *config.Config {
	t.Helper()

	cfg := config.GetConfig()
	require.Equal(t, config.Test, cfg.Environment, "geo tests must run with VISITRY_ENV=test")

	copied := *cfg
	copied.GeoAPIURL = endpoint
	copied.GeoAPITimeoutSeconds = 2
	copied.GeoDBPath = ""
	return &copied
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLookupHTTPFallback(t *testing.T) {
	t.Run("Resolves country and city from the endpoint", func(t *testing.T) {
		var requestedPath string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestedPath = r.URL.Path
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"country_name": "Germany", "city": "Berlin", "ip": "203.0.113.7"}`))
		}))
		defer server.Close()

		enricher := geo.NewEnricher(testConfig(t, server.URL+"/geo/{ip}"), discardLogger())
		defer enricher.Close()

		location := enricher.Lookup(context.Background(), "203.0.113.7")
		assert.Equal(t, "Germany", location.Country)
		assert.Equal(t, "Berlin", location.City)
		assert.Equal(t, "/geo/203.0.113.7", requestedPath)
	})

	t.Run("Non-2xx response degrades to empty location", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		enricher := geo.NewEnricher(testConfig(t, server.URL), discardLogger())
		defer enricher.Close()

		location := enricher.Lookup(context.Background(), "203.0.113.7")
		assert.Empty(t, location.Country)
		assert.Empty(t, location.City)
	})

	t.Run("Malformed response body degrades to empty location", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer server.Close()

		enricher := geo.NewEnricher(testConfig(t, server.URL), discardLogger())
		defer enricher.Close()

		assert.Empty(t, enricher.Lookup(context.Background(), "203.0.113.7").Country)
	})

	t.Run("Unreachable endpoint degrades to empty location", func(t *testing.T) {
		enricher := geo.NewEnricher(testConfig(t, "http://127.0.0.1:1/geo"), discardLogger())
		defer enricher.Close()

		assert.Empty(t, enricher.Lookup(context.Background(), "203.0.113.7").Country)
	})

	t.Run("Empty endpoint resolves nothing", func(t *testing.T) {
		enricher := geo.NewEnricher(testConfig(t, ""), discardLogger())
		defer enricher.Close()

		assert.Empty(t, enricher.Lookup(context.Background(), "203.0.113.7").Country)
	})
}

func TestNewEnricherMissingDatabase(t *testing.T) {
	// A configured but absent GeoLite2 file must not be fatal.
	cfg := testConfig(t, "")
	cfg.GeoDBPath = "/nonexistent/GeoLite2-City.mmdb"

	enricher := geo.NewEnricher(cfg, discardLogger())
	defer enricher.Close()

	assert.Empty(t, enricher.Lookup(context.Background(), "203.0.113.7").Country)
}
