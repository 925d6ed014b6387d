package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/trustline/pkg/config"
	"github.com/felixgeelhaar/trustline/pkg/observability"
)

// Worker runs the background side of the service: the outbox processor,
// the settlement scheduler, and the billing renewal scheduler. It blocks
// until the context is cancelled.
type Worker struct {
	container *Container
	cfg       *config.Config
	logger    *slog.Logger
}

// NewWorker creates a worker over an initialized container.
func NewWorker(container *Container, cfg *config.Config, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{container: container, cfg: cfg, logger: logger}
}

// Run starts all background loops and blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	c := w.container

	if c.OutboxProcessor == nil {
		return fmt.Errorf("worker requires an outbox processor")
	}

	w.logger.Info("starting outbox processor",
		"poll_interval", w.cfg.OutboxPollInterval,
		"batch_size", w.cfg.OutboxBatchSize,
		"max_retries", w.cfg.OutboxMaxRetries,
	)
	if err := c.OutboxProcessor.Start(ctx); err != nil {
		return fmt.Errorf("failed to start outbox processor: %w", err)
	}
	defer c.OutboxProcessor.Stop()

	if c.SettlementScheduler != nil {
		go c.SettlementScheduler.Start(ctx)
		w.logger.Info("settlement scheduler started", "enabled", w.cfg.SettlementEnabled)
	}
	if c.BillingScheduler != nil {
		go c.BillingScheduler.Start(ctx)
		w.logger.Info("billing scheduler started", "target_hour", w.cfg.BillingTargetHour)
	}

	go w.cleanupLoop(ctx)
	go w.statsLoop(ctx)

	if w.cfg.WorkerHealthAddr != "" {
		w.serveHealth(ctx)
	}

	<-ctx.Done()
	w.logger.Info("shutting down worker")
	return nil
}

// cleanupLoop periodically deletes published outbox messages past the
// retention window.
func (w *Worker) cleanupLoop(ctx context.Context) {
	interval := w.cfg.OutboxCleanupInterval
	if interval <= 0 {
		return
	}
	logger := observability.LogOperation(w.logger, "outbox_cleanup")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := w.container.OutboxRepo.DeleteOld(ctx, w.cfg.OutboxRetentionDays)
			if err != nil {
				logger.Error("outbox cleanup failed", "error", err)
				continue
			}
			if deleted > 0 {
				logger.Info("outbox cleanup completed", "deleted", deleted, "retention_days", w.cfg.OutboxRetentionDays)
			}
		}
	}
}

func (w *Worker) statsLoop(ctx context.Context) {
	interval := w.cfg.OutboxStatsInterval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := w.container.OutboxProcessor.GetStats()
			w.logger.Info("outbox stats",
				"running", stats.IsRunning,
				"published", stats.PublishedCount,
				"failed", stats.FailedCount,
				"dead", stats.DeadCount,
				"lag_seconds", stats.LagSeconds,
				"oldest_message_at", stats.OldestMessageAt,
				"last_processed_at", stats.LastProcessedAt,
				"last_error_at", stats.LastErrorAt,
				"last_error", stats.LastError,
			)
		}
	}
}

func (w *Worker) serveHealth(ctx context.Context) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		stats := w.container.OutboxProcessor.GetStats()
		response := map[string]any{
			"status":            "ok",
			"running":           stats.IsRunning,
			"published":         stats.PublishedCount,
			"failed":            stats.FailedCount,
			"dead":              stats.DeadCount,
			"last_processed_at": stats.LastProcessedAt,
			"last_error_at":     stats.LastErrorAt,
			"last_error":        stats.LastError,
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(response)
	})

	mux.HandleFunc("/readyz", func(rw http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := w.container.Ready(checkCtx); err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(map[string]any{
				"status": "not_ready",
				"error":  err.Error(),
			})
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{"status": "ready"})
	})

	healthSrv := &http.Server{
		Addr:              w.cfg.WorkerHealthAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		w.logger.Info("health server starting", "addr", w.cfg.WorkerHealthAddr)
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			w.logger.Error("health server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := healthSrv.Shutdown(shutdownCtx); err != nil {
			w.logger.Warn("health server shutdown error", "error", err)
		}
	}()
}
