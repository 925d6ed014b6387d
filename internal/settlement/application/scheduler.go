package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/trustline/internal/settlement/domain"
	sharedApplication "github.com/felixgeelhaar/trustline/internal/shared/application"
	"github.com/google/uuid"
)

// SchedulerConfig controls when the daily settlement run fires.
type SchedulerConfig struct {
	// TargetHour/TargetMinute is the local daily target time.
	TargetHour   int
	TargetMinute int

	// Window is how long after the target a missed tick may still fire.
	Window time.Duration

	// MinInterval is the shortest allowed gap between two runs. It keeps
	// a restart inside the window from triggering a second batch.
	MinInterval time.Duration

	// LeaseDuration bounds how long this instance holds the daily lease.
	LeaseDuration time.Duration
}

// DefaultSchedulerConfig fires at 02:00 with a 5 minute window.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		TargetHour:    2,
		TargetMinute:  0,
		Window:        5 * time.Minute,
		MinInterval:   time.Hour,
		LeaseDuration: time.Hour,
	}
}

// SchedulerStatus is the scheduler's observable state.
type SchedulerStatus struct {
	Enabled    bool              `json:"enabled"`
	IsRunning  bool              `json:"is_running"`
	LastRunAt  *time.Time        `json:"last_run_at,omitempty"`
	NextRunAt  time.Time         `json:"next_run_at"`
	LastResult *domain.RunResult `json:"last_result,omitempty"`
}

// Scheduler fires the settlement batch once per day. A minute ticker
// checks whether local time fell into the window after the target; the
// isRunning flag, the minimum interval and a cross-instance database
// lease guard against double triggering.
type Scheduler struct {
	batch    *Batch
	lock     domain.RunLock
	config   SchedulerConfig
	enabled  bool
	clock    sharedApplication.Clock
	logger   *slog.Logger
	instance string

	mu         sync.Mutex
	isRunning  bool
	lastRunAt  *time.Time
	lastResult *domain.RunResult
}

// NewScheduler creates a settlement scheduler.
func NewScheduler(batch *Batch, lock domain.RunLock, config SchedulerConfig, enabled bool, clock sharedApplication.Clock, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = sharedApplication.ClockFunc(time.Now)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		batch:    batch,
		lock:     lock,
		config:   config,
		enabled:  enabled,
		clock:    clock,
		logger:   logger,
		instance: uuid.NewString(),
	}
}

// Start runs the ticker loop until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	s.logger.Info("settlement scheduler started",
		"enabled", s.enabled,
		"target", s.targetFor(s.clock.Now()).Format(time.Kitchen),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("settlement scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick checks the window and guards, and runs the batch when they all
// pass. Exported so tests can drive the scheduler without the ticker.
func (s *Scheduler) Tick(ctx context.Context) {
	if !s.enabled {
		return
	}
	now := s.clock.Now()
	if !s.inWindow(now) {
		return
	}
	s.runGuarded(ctx, now, false)
}

// TriggerNow runs the batch outside the daily window, for operator use.
// The isRunning guard still applies; the interval and lease guards do
// too, so a trigger right after the scheduled run is a no-op.
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	if !s.enabled {
		return domain.ErrSettlementDisabled
	}
	s.runGuarded(ctx, s.clock.Now(), true)
	return nil
}

// Status reports the scheduler's observable state.
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SchedulerStatus{
		Enabled:    s.enabled,
		IsRunning:  s.isRunning,
		LastRunAt:  s.lastRunAt,
		NextRunAt:  s.nextRunAfter(s.clock.Now()),
		LastResult: s.lastResult,
	}
}

func (s *Scheduler) runGuarded(ctx context.Context, now time.Time, manual bool) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	if s.lastRunAt != nil && now.Sub(*s.lastRunAt) < s.config.MinInterval {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
	}()

	acquired, err := s.lock.Acquire(ctx, now, s.instance, now.Add(s.config.LeaseDuration))
	if err != nil {
		s.logger.Error("settlement lease acquisition failed", "error", err)
		return
	}
	if !acquired {
		s.logger.Info("settlement lease held elsewhere, skipping", "manual", manual)
		return
	}

	result, err := s.batch.Run(ctx)
	if err != nil {
		s.logger.Error("settlement run failed", "error", err)
		// Drop the lease so a manual re-trigger can retry today.
		if relErr := s.lock.Release(ctx, now, s.instance); relErr != nil {
			s.logger.Error("settlement lease release failed", "error", relErr)
		}
		// A failed run does not count against the minimum interval,
		// otherwise the released lease would be pointless.
		s.mu.Lock()
		s.lastResult = &result
		s.mu.Unlock()
		return
	}

	finished := s.clock.Now()
	s.mu.Lock()
	s.lastRunAt = &finished
	s.lastResult = &result
	s.mu.Unlock()
}

// inWindow reports whether now falls within the window after today's
// target time.
func (s *Scheduler) inWindow(now time.Time) bool {
	target := s.targetFor(now)
	return !now.Before(target) && now.Sub(target) <= s.config.Window
}

func (s *Scheduler) targetFor(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), s.config.TargetHour, s.config.TargetMinute, 0, 0, now.Location())
}

func (s *Scheduler) nextRunAfter(now time.Time) time.Time {
	target := s.targetFor(now)
	if now.After(target) {
		return target.AddDate(0, 0, 1)
	}
	return target
}
