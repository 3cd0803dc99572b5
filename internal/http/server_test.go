package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxiledger/internal/auth"
	"taxiledger/internal/metrics"
	"taxiledger/internal/services"
	"taxiledger/internal/storage"
	"taxiledger/internal/storage/memory"
)

var testNow = time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)

func newTestServer(t *testing.T, opts Options) (*Server, *storage.Repository) {
	t.Helper()
	repo := storage.NewRepository(memory.New())
	svc := services.NewLedgerService(repo, services.Options{
		Location: time.UTC,
		Now:      func() time.Time { return testNow },
	})
	srv := NewServer(":0", services.NewSessionStore(svc, 16, time.Hour), opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, repo
}

// client replays the session cookie like a browser.
type client struct {
	t      *testing.T
	srv    *Server
	cookie *http.Cookie
}

func (c *client) do(method, target, body string) *httptest.ResponseRecorder {
	c.t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if strings.HasPrefix(body, "{") {
		req.Header.Set("Content-Type", "application/json")
	} else if body != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}

	rr := httptest.NewRecorder()
	c.srv.Handler.ServeHTTP(rr, req)

	for _, ck := range rr.Result().Cookies() {
		if ck.Name != SessionCookie {
			continue
		}
		if ck.MaxAge < 0 {
			c.cookie = nil
		} else {
			c.cookie = ck
		}
	}
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

// loginApp registers license and completes the first password change.
func loginApp(t *testing.T, c *client, license string) {
	t.Helper()
	rr := c.do(http.MethodPost, "/api/login", `{"license":"`+license+`","password":"`+license+`"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, auth.StageChange, decode[sessionState](t, rr).Stage)

	rr = c.do(http.MethodPost, "/api/password", `{"password":"secret","confirm":"secret"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, auth.StageApp, decode[sessionState](t, rr).Stage)
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	c := &client{t: t, srv: srv}

	rr := c.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, rr)["status"])

	rr = c.do(http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ready", decode[map[string]any](t, rr)["status"])
}

func TestReadyReportsStorageFailure(t *testing.T) {
	srv, _ := newTestServer(t, Options{
		Ready: func(context.Context) error { return errors.New("database is locked") },
	})
	c := &client{t: t, srv: srv}

	rr := c.do(http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	body := decode[map[string]any](t, rr)
	assert.Equal(t, "not_ready", body["status"])
	assert.NotContains(t, rr.Body.String(), "database is locked")
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	c := &client{t: t, srv: srv}

	rr := c.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestLoginFlow(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	c := &client{t: t, srv: srv}

	rr := c.do(http.MethodGet, "/api/session", "")
	assert.Equal(t, auth.StageLogin, decode[sessionState](t, rr).Stage)

	rr = c.do(http.MethodPost, "/api/login", `{"license":"  ","password":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "license is required", decode[ErrorBody](t, rr).Error)
	assert.Nil(t, c.cookie)

	loginApp(t, c, "LIC42")

	rr = c.do(http.MethodGet, "/api/session", "")
	state := decode[sessionState](t, rr)
	assert.Equal(t, auth.StageApp, state.Stage)
	assert.Equal(t, "LIC42", state.License)

	rr = c.do(http.MethodPost, "/api/logout", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Nil(t, c.cookie)

	rr = c.do(http.MethodPost, "/api/login", "license=LIC42&password=LIC42")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "incorrect password", decode[ErrorBody](t, rr).Error)

	rr = c.do(http.MethodPost, "/api/login", "license=LIC42&password=secret")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, auth.StageApp, decode[sessionState](t, rr).Stage)
}

func TestChangePasswordValidation(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	c := &client{t: t, srv: srv}

	rr := c.do(http.MethodPost, "/api/password", `{"password":"abcd","confirm":"abcd"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "no session")

	rr = c.do(http.MethodPost, "/api/login", `{"license":"NEW1","password":"NEW1"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = c.do(http.MethodPost, "/api/password", `{"password":"abc","confirm":"xyz"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "password must be at least 4 characters", decode[ErrorBody](t, rr).Error)

	rr = c.do(http.MethodPost, "/api/password", `{"password":"abcd","confirm":"abce"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "passwords do not match", decode[ErrorBody](t, rr).Error)

	rr = c.do(http.MethodGet, "/api/dashboard", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "change stage cannot read the ledger")
}

func TestLedgerRequiresSession(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	c := &client{t: t, srv: srv}

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/dashboard"},
		{http.MethodGet, "/api/overview"},
		{http.MethodGet, "/api/entries"},
		{http.MethodPost, "/api/entries"},
		{http.MethodDelete, "/api/entries/1?confirm=true"},
		{http.MethodGet, "/api/settings"},
		{http.MethodPut, "/api/settings"},
	} {
		rr := c.do(tc.method, tc.path, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code, tc.method+" "+tc.path)
		assert.Equal(t, "not logged in", decode[ErrorBody](t, rr).Error)
	}
}

type entryBody struct {
	ID            json.Number `json:"id"`
	Date          string      `json:"date"`
	Cash          json.Number `json:"cash"`
	EfectivoTotal json.Number `json:"efectivoTotal"`
	DriverShare   json.Number `json:"driverShare"`
	Diff          json.Number `json:"diff"`
}

func TestEntryLifecycle(t *testing.T) {
	srv, repo := newTestServer(t, Options{})
	c := &client{t: t, srv: srv}
	loginApp(t, c, "LIC1")

	rr := c.do(http.MethodPost, "/api/entries", `{"date":"2024-03-09","total":200,"card":"120","expCash":10,"driverPct":40}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[entryBody](t, rr)
	assert.Equal(t, "80", created.Cash.String())
	assert.Equal(t, "70", created.EfectivoTotal.String())
	assert.Equal(t, "80", created.DriverShare.String())
	assert.Equal(t, "10", created.Diff.String())
	assert.Equal(t, "/api/entries/"+created.ID.String(), rr.Header().Get("Location"))

	rr = c.do(http.MethodPost, "/api/entries", "total=abc&card=&note=vacío")
	require.Equal(t, http.StatusCreated, rr.Code, "non-numeric input is coerced to zero")

	rr = c.do(http.MethodPost, "/api/entries", `{"date":"2024-02-30","total":10}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "invalid date", decode[ErrorBody](t, rr).Error)

	entries, err := repo.LoadEntries(context.Background(), "LIC1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "2024-03-10", entries[0].Date, "blank date means today")

	id := created.ID.String()
	rr = c.do(http.MethodDelete, "/api/entries/"+id, "")
	assert.Equal(t, http.StatusPreconditionRequired, rr.Code)

	rr = c.do(http.MethodDelete, "/api/entries/abc?confirm=true", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = c.do(http.MethodDelete, "/api/entries/999?confirm=true", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = c.do(http.MethodDelete, "/api/entries/"+id+"?confirm=true", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	entries, err = repo.LoadEntries(context.Background(), "LIC1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestHistoryFilter(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	c := &client{t: t, srv: srv}
	loginApp(t, c, "LIC1")

	for _, body := range []string{
		`{"date":"2024-03-01","total":100,"note":"Aeropuerto"}`,
		`{"date":"2024-03-05","total":150,"note":"Estación"}`,
		`{"date":"2024-02-20","total":90,"note":"aeropuerto T4"}`,
		`{"date":"2023-12-31","total":300}`,
	} {
		require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/entries", body).Code)
	}

	type history struct {
		Filter struct {
			Month string `json:"month"`
			Year  string `json:"year"`
			Query string `json:"query"`
		} `json:"filter"`
		Entries []entryBody `json:"entries"`
		Summary struct {
			Days int `json:"days"`
		} `json:"summary"`
	}

	h := decode[history](t, c.do(http.MethodGet, "/api/entries", ""))
	assert.Equal(t, "2024-03", h.Filter.Month, "defaults to the current month")
	assert.Len(t, h.Entries, 2)
	assert.Equal(t, "2024-03-05", h.Entries[0].Date)

	h = decode[history](t, c.do(http.MethodGet, "/api/entries?year=2024&q=AEROPUERTO", ""))
	assert.Empty(t, h.Filter.Month)
	assert.Len(t, h.Entries, 2)
	assert.Equal(t, 2, h.Summary.Days)

	h = decode[history](t, c.do(http.MethodGet, "/api/entries", ""))
	assert.Equal(t, "2024", h.Filter.Year, "filter persists in the session")

	h = decode[history](t, c.do(http.MethodGet, "/api/entries?month=", ""))
	assert.Len(t, h.Entries, 2, "blank month keeps only the query")

	h = decode[history](t, c.do(http.MethodGet, "/api/entries?reset=true", ""))
	assert.Equal(t, "2024-03", h.Filter.Month)
	assert.Empty(t, h.Filter.Query)
	assert.Len(t, h.Entries, 2)
}

func TestSettingsEndpoints(t *testing.T) {
	srv, repo := newTestServer(t, Options{})
	c := &client{t: t, srv: srv}
	loginApp(t, c, "LIC1")

	type settings struct {
		MonthlyGoals map[string]json.Number `json:"monthlyGoals"`
		DriverPct    json.Number            `json:"driverPct"`
	}

	s := decode[settings](t, c.do(http.MethodGet, "/api/settings", ""))
	assert.Equal(t, "40", s.DriverPct.String())
	assert.Empty(t, s.MonthlyGoals)

	rr := c.do(http.MethodPut, "/api/settings", `{"driverPct":"45,5","goal":5000}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	s = decode[settings](t, rr)
	assert.Equal(t, "45.5", s.DriverPct.String())
	assert.Equal(t, "5000", s.MonthlyGoals["2024-03"].String(), "blank month means the current one")

	rr = c.do(http.MethodPut, "/api/settings", "month=2024-13&goal=10")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = c.do(http.MethodPut, "/api/settings", "month=2024-04&goal=7000")
	require.Equal(t, http.StatusOK, rr.Code)

	stored, found, err := repo.LoadSettings(context.Background(), "LIC1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "7000", stored.GoalFor("2024-04").String())
	assert.Equal(t, "45.5", stored.DriverPct.String())
}

func TestDashboardAndOverview(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	c := &client{t: t, srv: srv}
	loginApp(t, c, "LIC1")

	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/entries", `{"date":"2024-03-10","total":200}`).Code)
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/entries", `{"date":"2023-11-02","total":100}`).Code)

	rr := c.do(http.MethodGet, "/api/dashboard", "")
	require.Equal(t, http.StatusOK, rr.Code)
	dash := decode[map[string]any](t, rr)
	assert.Equal(t, "LIC1", dash["license"])
	assert.Equal(t, "2024-03", dash["month"])
	assert.Len(t, dash["last7"], 2)

	rr = c.do(http.MethodGet, "/api/overview", "")
	require.Equal(t, http.StatusOK, rr.Code)
	ov := decode[map[string]any](t, rr)
	assert.Equal(t, []any{"2024-03", "2023-11"}, ov["monthKeys"])
	assert.Equal(t, []any{"2024", "2023"}, ov["yearKeys"])
}

func TestRateLimitOnMutations(t *testing.T) {
	srv, _ := newTestServer(t, Options{RequestsPerMinute: 2})
	c := &client{t: t, srv: srv}

	for i := 0; i < 2; i++ {
		rr := c.do(http.MethodPost, "/api/login", `{"license":"","password":""}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	}
	rr := c.do(http.MethodPost, "/api/login", `{"license":"","password":""}`)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	rr = c.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code, "reads are not limited")
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New(nil)
	srv, _ := newTestServer(t, Options{Metrics: m})
	c := &client{t: t, srv: srv}

	c.do(http.MethodGet, "/healthz", "")
	c.do(http.MethodGet, "/nope", "")

	rr := c.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `route="GET /healthz"`)
	assert.Contains(t, rr.Body.String(), `route="unmatched"`)
}

func TestMalformedBody(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	c := &client{t: t, srv: srv}

	rr := c.do(http.MethodPost, "/api/login", `{"license":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "malformed request body", decode[ErrorBody](t, rr).Error)
}

func TestSuspiciousRequestBlocking(t *testing.T) {
	cases := []struct {
		name  string
		block bool
		want  int
	}{
		{"logged only", false, http.StatusOK},
		{"blocked", true, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newTestServer(t, Options{BlockSuspicious: tc.block})
			c := &client{t: t, srv: srv}
			loginApp(t, c, "LIC1")

			rr := c.do(http.MethodGet, "/api/entries?q=.env", "")
			assert.Equal(t, tc.want, rr.Code, rr.Body.String())
			assert.EqualValues(t, 1, srv.detector.SuspiciousRequests())
		})
	}
}
