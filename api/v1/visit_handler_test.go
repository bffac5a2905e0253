// Package v1_test contains tests for the API v1 handlers
package v1_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visitry/internal/pkg/sessiontoken"
	"visitry/internal/testsupport"
	"visitry/internal/visitors"
)

func visitPayload(t *testing.T, signals visitors.Signals, withinTab bool) *bytes.Reader {
	t.Helper()

	body, err := json.Marshal(map[string]interface{}{
		"signals":   signals,
		"withinTab": withinTab,
	})
	require.NoError(t, err)
	return bytes.NewReader(body)
}

func browserSignals() visitors.Signals {
	return visitors.Signals{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		Language:       "en-US",
		ScreenWidth:    1920,
		ScreenHeight:   1080,
		ColorDepth:     24,
		TimezoneOffset: -60,
		Platform:       "Win32",
		CookiesEnabled: true,
		LocalStorage:   true,
		SessionStorage: true,
		CanvasHash:     "a1b2c3d4",
	}
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &parsed), "unexpected body: %s", string(body))
	return parsed
}

func TestTrackVisitHandler(t *testing.T) {
	t.Run("Accepts a first visit and sets the session cookie", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		app := testsupport.CreateMinimalTestApp(t, db)

		req := httptest.NewRequest("POST", "/x/api/v1/visits", visitPayload(t, browserSignals(), false))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", browserSignals().UserAgent)
		req.Header.Set("Sec-Fetch-Site", "cross-site") // Required for browser-only validation

		resp, err := app.Test(req, 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)

		parsed := decodeJSON(t, resp)
		assert.Equal(t, true, parsed["unique"])
		assert.NotEmpty(t, parsed["visitorAlias"])
		assert.NotEmpty(t, parsed["sessionId"])

		var tokenCookie *http.Cookie
		for _, cookie := range resp.Cookies() {
			if cookie.Name == sessiontoken.CookieName {
				tokenCookie = cookie
			}
		}
		require.NotNil(t, tokenCookie, "session token cookie should be set")
		assert.Equal(t, parsed["sessionId"], tokenCookie.Value)
	})

	t.Run("Repeat visit is not unique", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		app := testsupport.CreateMinimalTestApp(t, db)

		first := httptest.NewRequest("POST", "/x/api/v1/visits", visitPayload(t, browserSignals(), false))
		first.Header.Set("Content-Type", "application/json")
		first.Header.Set("Sec-Fetch-Site", "cross-site") // Required for browser-only validation
		resp, err := app.Test(first, 30000)
		require.NoError(t, err)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		second := httptest.NewRequest("POST", "/x/api/v1/visits", visitPayload(t, browserSignals(), true))
		second.Header.Set("Content-Type", "application/json")
		second.Header.Set("Sec-Fetch-Site", "cross-site")
		resp, err = app.Test(second, 30000)
		require.NoError(t, err)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		parsed := decodeJSON(t, resp)
		assert.Equal(t, false, parsed["unique"])

		global, err := visitors.GetGlobalStat(db)
		require.NoError(t, err)
		assert.Equal(t, 1, global.UniqueVisitors)
		assert.Equal(t, 2, global.PageViews)
	})

	t.Run("Bot user agent is acknowledged but ignored", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		app := testsupport.CreateMinimalTestApp(t, db)

		signals := browserSignals()
		signals.UserAgent = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"

		req := httptest.NewRequest("POST", "/x/api/v1/visits", visitPayload(t, signals, false))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Sec-Fetch-Site", "cross-site") // Required for browser-only validation

		resp, err := app.Test(req, 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)

		parsed := decodeJSON(t, resp)
		assert.Equal(t, true, parsed["ignored"])

		global, err := visitors.GetGlobalStat(db)
		require.NoError(t, err)
		assert.Equal(t, 0, global.PageViews)
	})

	t.Run("Missing user agent falls back to the request header", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		app := testsupport.CreateMinimalTestApp(t, db)

		signals := browserSignals()
		signals.UserAgent = ""

		req := httptest.NewRequest("POST", "/x/api/v1/visits", visitPayload(t, signals, false))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0")
		req.Header.Set("Sec-Fetch-Site", "cross-site") // Required for browser-only validation

		resp, err := app.Test(req, 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)

		parsed := decodeJSON(t, resp)
		assert.Equal(t, true, parsed["unique"])
	})

	t.Run("Malformed body is rejected", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		app := testsupport.CreateMinimalTestApp(t, db)

		req := httptest.NewRequest("POST", "/x/api/v1/visits", bytes.NewReader([]byte("{not json")))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Sec-Fetch-Site", "cross-site") // Required for browser-only validation

		resp, err := app.Test(req, 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		parsed := decodeJSON(t, resp)
		assert.Equal(t, "INVALID_REQUEST", parsed["code"])
	})

	t.Run("Expired session token is replaced", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		app := testsupport.CreateMinimalTestApp(t, db)

		req := httptest.NewRequest("POST", "/x/api/v1/visits", visitPayload(t, browserSignals(), false))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Sec-Fetch-Site", "cross-site") // Required for browser-only validation
		// Token minted in 2020, long past the 24h lifetime.
		req.AddCookie(&http.Cookie{Name: sessiontoken.CookieName, Value: "session_1577836800000_abcdefghi"})

		resp, err := app.Test(req, 30000)
		require.NoError(t, err)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		parsed := decodeJSON(t, resp)
		assert.NotEqual(t, "session_1577836800000_abcdefghi", parsed["sessionId"])
	})

	t.Run("Rejects request without Sec-Fetch-Site header (server-to-server)", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		app := testsupport.CreateMinimalTestApp(t, db)

		req := httptest.NewRequest("POST", "/x/api/v1/visits", visitPayload(t, browserSignals(), false))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", browserSignals().UserAgent)
		// No Sec-Fetch-Site header - simulating server-to-server request

		resp, err := app.Test(req, 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		global, err := visitors.GetGlobalStat(db)
		require.NoError(t, err)
		assert.Equal(t, 0, global.PageViews, "rejected request must not be counted")

		var sessions int64
		require.NoError(t, db.Model(&visitors.VisitorSession{}).Count(&sessions).Error)
		assert.Equal(t, int64(0), sessions)
	})
}

func TestGetStatsHandler(t *testing.T) {
	t.Run("Returns zeroed counters with no traffic", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		app := testsupport.CreateMinimalTestApp(t, db)

		req := httptest.NewRequest("GET", "/x/api/v1/stats", nil)
		resp, err := app.Test(req, 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		parsed := decodeJSON(t, resp)
		global := parsed["global"].(map[string]interface{})
		assert.EqualValues(t, 0, global["uniqueVisitors"])
		assert.EqualValues(t, 0, global["pageViews"])
		assert.NotEmpty(t, parsed["date"])
	})

	t.Run("Reflects tracked visits", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		app := testsupport.CreateMinimalTestApp(t, db)

		visit := httptest.NewRequest("POST", "/x/api/v1/visits", visitPayload(t, browserSignals(), false))
		visit.Header.Set("Content-Type", "application/json")
		visit.Header.Set("Sec-Fetch-Site", "cross-site") // Required for browser-only validation
		resp, err := app.Test(visit, 30000)
		require.NoError(t, err)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		req := httptest.NewRequest("GET", "/x/api/v1/stats", nil)
		resp, err = app.Test(req, 30000)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		parsed := decodeJSON(t, resp)
		global := parsed["global"].(map[string]interface{})
		today := parsed["today"].(map[string]interface{})
		assert.EqualValues(t, 1, global["uniqueVisitors"])
		assert.EqualValues(t, 1, global["pageViews"])
		assert.EqualValues(t, 1, today["uniqueVisitors"])
	})
}

func TestHealthEndpoint(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	app := testsupport.CreateMinimalTestApp(t, dbManager.GetConnection())

	req := httptest.NewRequest("GET", "/_health", nil)
	resp, err := app.Test(req, 30000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	parsed := decodeJSON(t, resp)
	assert.Equal(t, "ok", parsed["status"])
}
