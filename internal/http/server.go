// Package http exposes the ledger over a small JSON API. Reads support
// JSONP for embedded clients; writes are synchronous unless the mutation
// queue is enabled.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"pocketfin/internal/core"
	"pocketfin/internal/ledger"
	"pocketfin/internal/queue"
)

// Ledger is the slice of the ledger service the API serves.
type Ledger interface {
	GetSettings(ctx context.Context) (core.Settings, error)
	GetCategories(ctx context.Context) ([]core.CategoryMapping, error)
	GetBudgets(ctx context.Context) ([]core.BudgetLimit, error)
	GetMovements(ctx context.Context, monthFilter string) ([]core.Movement, error)
	GetSummary(ctx context.Context, monthFilter string) (core.Summary, error)
	AddMovement(ctx context.Context, in ledger.AddInput) (core.Movement, error)
	UpdateMovement(ctx context.Context, id string, patch ledger.UpdatePatch) (core.Movement, error)
	DeleteMovement(ctx context.Context, id string) (bool, error)
}

// Publisher queues a mutation instead of applying it inline.
type Publisher interface {
	PublishMutation(ctx context.Context, m *queue.Mutation) error
}

type Server struct {
	http.Server

	svc         Ledger
	apiKey      string
	publisher   Publisher
	queueWrites bool

	rateLimiter  *rateLimiter
	metrics      *securityMetrics
	shutdownOnce sync.Once
}

// Option configures the server beyond the required ledger.
type Option func(*Server)

// WithAPIKey requires the shared secret on every /api request.
func WithAPIKey(key string) Option {
	return func(s *Server) { s.apiKey = key }
}

// WithQueuedWrites publishes mutations to the queue instead of applying
// them synchronously.
func WithQueuedWrites(p Publisher) Option {
	return func(s *Server) {
		s.publisher = p
		s.queueWrites = p != nil
	}
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, svc Ledger, opts ...Option) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		svc:         svc,
		rateLimiter: newRateLimiter(),
		metrics:     &securityMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	mux.HandleFunc("GET /api/settings", s.wrap(s.handleGetSettings))
	mux.HandleFunc("GET /api/categories", s.wrap(s.handleGetCategories))
	mux.HandleFunc("GET /api/budgets", s.wrap(s.handleGetBudgets))
	mux.HandleFunc("GET /api/movements", s.wrap(s.handleGetMovements))
	mux.HandleFunc("GET /api/summary", s.wrap(s.handleGetSummary))
	mux.HandleFunc("GET /api/export", s.wrap(s.handleExport))

	mux.HandleFunc("POST /api/add", s.wrap(s.handleAdd))
	mux.HandleFunc("POST /api/update", s.wrap(s.handleUpdate))
	mux.HandleFunc("POST /api/delete", s.wrap(s.handleDelete))

	return s
}

// wrap is the middleware chain for /api handlers: request ID, logging,
// security headers, and rate limiting on mutations.
func (s *Server) wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)

		requestID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)
		w.Header().Set("X-Request-Id", requestID)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP, s.metrics) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cache-Control", "no-store")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", clientIP)
	}
}

type requestIDKey struct{}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady probes the backing store with a cheap settings read.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if _, err := s.svc.GetSettings(ctx); err != nil {
		slog.ErrorContext(ctx, "Readiness probe failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
