// Package http exposes the ledger as a JSON API over net/http.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"taxiledger/internal/log"
	"taxiledger/internal/metrics"
	"taxiledger/internal/middleware/ratelimit"
	"taxiledger/internal/middleware/security"
	"taxiledger/internal/middleware/trace"
	"taxiledger/internal/services"
)

// Options tunes the server. Zero values are usable.
type Options struct {
	Logger  *log.Logger
	Metrics *metrics.Metrics

	// RequestsPerMinute limits mutating requests per client IP.
	RequestsPerMinute int
	TrustedProxies    []string

	// BlockSuspicious answers flagged requests with 400 instead of only
	// logging them.
	BlockSuspicious bool

	// Ready reports whether dependencies (the store) are usable.
	Ready func(ctx context.Context) error
}

// Server wraps http.Server with the session store and middlewares.
type Server struct {
	http.Server

	sessions *services.SessionStore
	logger   *log.Logger
	metrics  *metrics.Metrics
	limiter  *ratelimit.Limiter
	detector *security.Detector
	block    bool
	ready    func(ctx context.Context) error
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middlewares, returning a ready-to-run server.
func NewServer(addr string, sessions *services.SessionStore, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", "cidr", cidr, "error", err)
		}
	}

	s := &Server{
		sessions: sessions,
		logger:   logger,
		metrics:  opts.Metrics,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RequestsPerMinute,
		}),
		detector: detector,
		block:    opts.BlockSuspicious,
		ready:    opts.Ready,
		started:  time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	mux.HandleFunc("GET /api/session", s.handleSession)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/password", s.handleChangePassword)
	mux.HandleFunc("POST /api/logout", s.handleLogout)

	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/overview", s.handleOverview)
	mux.HandleFunc("GET /api/entries", s.handleListEntries)
	mux.HandleFunc("POST /api/entries", s.handleCreateEntry)
	mux.HandleFunc("DELETE /api/entries/{id}", s.handleDeleteEntry)
	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handleUpdateSettings)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.chain(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// chain wraps h with, outermost first: tracing, security headers, probe
// detection and rate limiting of mutating methods. Nothing below tracing may
// replace the request, or r.Pattern would not reach the route label.
func (s *Server) chain(h http.Handler) http.Handler {
	var observer trace.Observer
	if s.metrics != nil {
		observer = s.metrics
	}

	onLimit := func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		TooManyRequestsError().Write(w)
	}

	h = s.limiter.Middleware(s.detector.ExtractClientIP, onLimit,
		http.MethodPost, http.MethodPut, http.MethodDelete)(h)
	h = s.detector.Middleware(s.block)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = trace.NewMiddleware(s.logger, s.detector.ExtractClientIP, observer).Middleware(h)
	return h
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	code := http.StatusOK
	checks := map[string]any{}

	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			checks["storage"] = "failed"
			status = "not_ready"
			code = http.StatusServiceUnavailable
		} else {
			checks["storage"] = "ok"
		}
	}

	checks["sessions"] = s.sessions.Len()
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.limiter.ActiveClients(),
		"rejected":       s.limiter.Rejected(),
	}
	checks["suspicious_requests"] = s.detector.SuspiciousRequests()

	NewResponse().Status(code).JSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}
