// Package api provides the HTTP surface of the escrow service: the
// contract API, the payment provider webhook, and the settlement
// control endpoints.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	shared "github.com/felixgeelhaar/trustline/internal/shared/domain"
	"github.com/felixgeelhaar/trustline/pkg/observability"
)

// ReadinessCheck reports whether the server's dependencies are usable.
// A nil check means the server is always ready.
type ReadinessCheck func(ctx context.Context) error

// Server is the HTTP API server.
type Server struct {
	mux        *http.ServeMux
	server     *http.Server
	logger     *slog.Logger
	metrics    observability.Metrics
	contracts  *ContractHandler
	webhooks   *WebhookHandler
	settlement *SettlementHandler
	ready      ReadinessCheck
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	Metrics      observability.Metrics
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "0.0.0.0:8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig, contracts *ContractHandler, webhooks *WebhookHandler, settlement *SettlementHandler, ready ReadinessCheck, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}

	mux := http.NewServeMux()

	s := &Server{
		mux:        mux,
		logger:     logger,
		metrics:    metrics,
		contracts:  contracts,
		webhooks:   webhooks,
		settlement: settlement,
		ready:      ready,
	}

	s.registerRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.withRequestContext(s.mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// registerRoutes sets up the API routes.
func (s *Server) registerRoutes() {
	// Probes
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /readyz", s.handleReadyz)

	// Provider callbacks
	s.mux.HandleFunc("POST /webhooks/payment", s.webhooks.HandlePaymentWebhook)

	// Settlement control
	s.mux.HandleFunc("POST /settlement/run", s.settlement.Run)
	s.mux.HandleFunc("GET /settlement/status", s.settlement.Status)

	// Contracts API v1
	s.mux.HandleFunc("POST /api/v1/contracts", s.contracts.Create)
	s.mux.HandleFunc("GET /api/v1/contracts", s.contracts.List)
	s.mux.HandleFunc("GET /api/v1/contracts/{contractID}", s.contracts.Get)
	s.mux.HandleFunc("POST /api/v1/contracts/{contractID}/confirm", s.contracts.Confirm)
	s.mux.HandleFunc("POST /api/v1/contracts/{contractID}/accept-terms", s.contracts.AcceptTerms)
	s.mux.HandleFunc("POST /api/v1/contracts/{contractID}/stages/{stageID}/initiate-payment", s.contracts.InitiatePayment)
	s.mux.HandleFunc("POST /api/v1/contracts/{contractID}/complete", s.contracts.Complete)
	s.mux.HandleFunc("POST /api/v1/contracts/{contractID}/dispute", s.contracts.Dispute)
	s.mux.HandleFunc("POST /api/v1/contracts/{contractID}/cancel", s.contracts.Cancel)
	s.mux.HandleFunc("POST /api/v1/contracts/{contractID}/refund", s.contracts.Refund)
	s.mux.HandleFunc("POST /api/v1/contracts/{contractID}/release", s.contracts.Release)
}

// withRequestContext stamps every request with a request ID and a
// correlation ID (propagated from X-Correlation-ID when the caller
// sends one), logs the outcome, and records request metrics.
func (s *Server) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := observability.NewRequestContext(r.Context(), r.Header.Get("X-Correlation-ID"))
		if user := r.Header.Get("X-User-ID"); user != "" {
			ctx = observability.WithUserID(ctx, user)
		}
		r = r.WithContext(ctx)

		timer := observability.StartTimer("http.request").WithMetrics(s.metrics)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		duration := timer.WithTags(
			observability.T("method", r.Method),
			observability.T("route", route),
			observability.T("status", strconv.Itoa(rec.status)),
		).Stop()

		s.logger.InfoContext(ctx, "http request",
			"method", r.Method,
			"route", route,
			"status", rec.status,
			"duration_ms", duration.Milliseconds(),
		)
	})
}

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// handleHealthz reports process liveness.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReadyz reports whether dependencies are reachable.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "dependencies not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info("starting API server",
		"addr", s.server.Addr,
	)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Handler exposes the request pipeline for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Log error but can't do much at this point
			slog.Error("failed to encode JSON response", "error", err)
		}
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error":   http.StatusText(status),
		"message": message,
	})
}

// writeDomainError maps the business-rule error taxonomy onto HTTP
// statuses and writes the error body. Errors outside the taxonomy are
// logged and reported as 500 without leaking their message.
func writeDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	code := shared.CodeOf(err)
	status, ok := statusForCode[code]
	if !ok {
		logger.Error("unclassified error in request handling", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, status, map[string]string{
		"error":   string(code),
		"message": err.Error(),
	})
}

var statusForCode = map[shared.ErrorCode]int{
	shared.CodeValidation:     http.StatusBadRequest,
	shared.CodeNotFound:       http.StatusNotFound,
	shared.CodeInvalidState:   http.StatusConflict,
	shared.CodeAmountMismatch: http.StatusUnprocessableEntity,
	shared.CodeGateway:        http.StatusBadGateway,
	shared.CodeConfiguration:  http.StatusServiceUnavailable,
}
