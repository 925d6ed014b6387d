package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	sharedApplication "github.com/felixgeelhaar/trustline/internal/shared/application"
)

// Scheduler runs the renewal pass once per day at the target hour.
type Scheduler struct {
	renewal    *Renewal
	targetHour int
	clock      sharedApplication.Clock
	logger     *slog.Logger

	mu         sync.Mutex
	isRunning  bool
	lastRunDay string
	lastResult *RenewalResult
}

// NewScheduler creates a renewal scheduler.
func NewScheduler(renewal *Renewal, targetHour int, clock sharedApplication.Clock, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = sharedApplication.ClockFunc(time.Now)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		renewal:    renewal,
		targetHour: targetHour,
		clock:      clock,
		logger:     logger,
	}
}

// Start runs the ticker loop until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	s.logger.Info("renewal scheduler started", "target_hour", s.targetHour)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("renewal scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs the pass when the target hour has been reached and today's
// pass has not run yet. Exported so tests can drive the scheduler
// without the ticker.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.clock.Now()
	if now.Hour() < s.targetHour {
		return
	}
	day := now.Format("2006-01-02")

	s.mu.Lock()
	if s.isRunning || s.lastRunDay == day {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	result, err := s.renewal.Run(ctx, now)
	if err != nil {
		s.logger.Error("renewal pass failed", "error", err)
	}

	s.mu.Lock()
	s.isRunning = false
	if err == nil {
		s.lastRunDay = day
		s.lastResult = &result
	}
	s.mu.Unlock()
}

// LastResult returns the most recent completed pass, or nil.
func (s *Scheduler) LastResult() *RenewalResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastResult
}
