package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxiledger/internal/metrics"
)

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestObserveRequest(t *testing.T) {
	m := metrics.New(nil)

	m.ObserveRequest(http.MethodGet, "GET /api/dashboard", http.StatusOK, 20*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "GET /api/dashboard", http.StatusOK, 30*time.Millisecond)
	m.ObserveRequest(http.MethodPost, "POST /api/login", http.StatusUnauthorized, time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, `taxiledger_requests_total{code="200",method="GET",route="GET /api/dashboard"} 2`)
	assert.Contains(t, body, `taxiledger_requests_total{code="401",method="POST",route="POST /api/login"} 1`)
	assert.Contains(t, body, `taxiledger_request_duration_seconds_count{code="200",method="GET",route="GET /api/dashboard"} 2`)
}

func TestObserveLoginAndEntry(t *testing.T) {
	m := metrics.New(func() int { return 3 })

	m.ObserveLogin("ok")
	m.ObserveLogin("failed")
	m.ObserveLogin("failed")
	m.ObserveEntry("add")
	m.ObserveEntry("delete")

	body := scrape(t, m)
	assert.Contains(t, body, `taxiledger_logins_total{outcome="failed"} 2`)
	assert.Contains(t, body, `taxiledger_logins_total{outcome="ok"} 1`)
	assert.Contains(t, body, `taxiledger_entry_operations_total{op="add"} 1`)
	assert.Contains(t, body, `taxiledger_entry_operations_total{op="delete"} 1`)
	assert.Contains(t, body, "taxiledger_active_sessions 3")
}

func TestNoSessionGauge(t *testing.T) {
	m := metrics.New(nil)
	m.ObserveLogin("ok")

	assert.NotContains(t, scrape(t, m), "taxiledger_active_sessions")
}

func TestIndependentRegistries(t *testing.T) {
	a := metrics.New(nil)
	b := metrics.New(nil)
	a.ObserveEntry("add")

	assert.NotContains(t, scrape(t, b), `op="add"`)
}
