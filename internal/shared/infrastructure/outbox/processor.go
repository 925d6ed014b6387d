package outbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/trustline/internal/shared/domain"
	"github.com/felixgeelhaar/trustline/internal/shared/infrastructure/eventbus"
)

// ProcessorConfig tunes the outbox drain loop.
type ProcessorConfig struct {
	PollInterval     time.Duration
	BatchSize        int
	MaxRetries       int
	RetryBackoffBase time.Duration
	RetryBackoffMax  time.Duration
}

// DefaultProcessorConfig returns the defaults the worker ships with.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		PollInterval:     100 * time.Millisecond,
		BatchSize:        100,
		MaxRetries:       5,
		RetryBackoffBase: 1 * time.Second,
		RetryBackoffMax:  1 * time.Minute,
	}
}

// Processor drains staged escrow, settlement and billing events from the
// outbox table to the broker. Publishing is at-least-once: a message is
// only marked published after the broker accepted it, so consumers must
// deduplicate on event_id.
type Processor struct {
	repo      Repository
	publisher eventbus.Publisher
	config    ProcessorConfig
	logger    *slog.Logger

	wg       sync.WaitGroup
	stopChan chan struct{}
	running  bool
	mu       sync.Mutex

	statsMu sync.Mutex
	stats   Stats
}

// NewProcessor creates an outbox processor.
func NewProcessor(repo Repository, publisher eventbus.Publisher, config ProcessorConfig, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		repo:      repo,
		publisher: publisher,
		config:    config,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start begins the drain loop in a goroutine. Starting a running
// processor is a no-op.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.stopChan = make(chan struct{})
	p.mu.Unlock()

	p.wg.Add(1)
	go p.loop(ctx)

	p.logger.Info("outbox processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize,
	)
	return nil
}

// Stop stops the drain loop and waits for the in-flight batch.
func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopChan)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("outbox processor stopped")
}

// IsRunning reports whether the drain loop is active.
func (p *Processor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// ProcessOnce drains a single batch synchronously.
func (p *Processor) ProcessOnce(ctx context.Context) error {
	return p.drainBatch(ctx)
}

func (p *Processor) loop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopChan:
			return
		case <-ticker.C:
			if err := p.drainBatch(ctx); err != nil {
				p.logger.Error("outbox batch failed", "error", err)
			}
		}
	}
}

func (p *Processor) drainBatch(ctx context.Context) error {
	messages, err := p.repo.GetUnpublished(ctx, p.config.BatchSize)
	if err != nil {
		p.noteError(err)
		return err
	}

	p.noteBatch(messages)

	for _, msg := range messages {
		p.dispatch(ctx, msg)
	}
	return nil
}

// dispatch publishes one message and records the outcome. A publish
// failure either schedules a retry or dead-letters the message once the
// retry budget is spent.
func (p *Processor) dispatch(ctx context.Context, msg *Message) {
	if err := p.publisher.Publish(ctx, msg.RoutingKey, msg.Payload); err != nil {
		p.logger.Warn("event publish failed",
			append([]any{
				"id", msg.ID,
				"routing_key", msg.RoutingKey,
				"event_id", msg.EventID,
				"error", err,
			}, msg.traceFields()...)...,
		)
		p.settleFailure(ctx, msg, err)
		return
	}

	if err := p.repo.MarkPublished(ctx, msg.ID); err != nil {
		// The broker has the event; the next poll republishes it and
		// consumers drop the duplicate by event_id.
		p.logger.Error("failed to mark message as published",
			"id", msg.ID,
			"event_id", msg.EventID,
			"error", err,
		)
		return
	}
	p.notePublished()
}

func (p *Processor) settleFailure(ctx context.Context, msg *Message, pubErr error) {
	if p.retriesExhausted(msg) {
		p.noteDead(pubErr)
		if err := p.repo.MarkDead(ctx, msg.ID, pubErr.Error()); err != nil {
			p.logger.Error("failed to dead-letter message", "id", msg.ID, "error", err)
		}
		return
	}

	p.noteFailed(pubErr)
	nextRetryAt := time.Now().Add(p.retryBackoff(msg.RetryCount + 1))
	if err := p.repo.MarkFailed(ctx, msg.ID, pubErr.Error(), nextRetryAt); err != nil {
		p.logger.Error("failed to schedule message retry", "id", msg.ID, "error", err)
	}
}

func (p *Processor) retriesExhausted(msg *Message) bool {
	if p.config.MaxRetries <= 0 {
		return true
	}
	return msg.RetryCount+1 >= p.config.MaxRetries
}

// retryBackoff doubles per attempt from the base, capped at the max.
func (p *Processor) retryBackoff(nextRetryCount int) time.Duration {
	base := p.config.RetryBackoffBase
	if base <= 0 {
		base = time.Second
	}
	max := p.config.RetryBackoffMax
	if max <= 0 {
		max = time.Minute
	}
	if nextRetryCount < 1 {
		nextRetryCount = 1
	}

	shift := nextRetryCount - 1
	if shift > 16 {
		shift = 16
	}
	backoff := base * time.Duration(1<<shift)
	if backoff > max {
		return max
	}
	return backoff
}

// traceFields extracts the event metadata as log attributes, so a failed
// publish can be traced back to the triggering command.
func (m *Message) traceFields() []any {
	if len(m.Metadata) == 0 {
		return nil
	}

	var metadata domain.EventMetadata
	if err := json.Unmarshal(m.Metadata, &metadata); err != nil {
		return nil
	}

	return []any{
		"correlation_id", metadata.CorrelationID.String(),
		"causation_id", metadata.CausationID.String(),
		"actor_id", metadata.ActorID.String(),
	}
}

// Stats is a snapshot of the processor's counters, exposed on the
// worker's health endpoint.
type Stats struct {
	IsRunning       bool
	PublishedCount  uint64
	FailedCount     uint64
	DeadCount       uint64
	LagSeconds      float64
	LastError       string
	LastErrorAt     *time.Time
	LastProcessedAt *time.Time
	OldestMessageAt *time.Time
}

// GetStats returns a snapshot of the processor's counters.
func (p *Processor) GetStats() Stats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()

	snapshot := p.stats
	snapshot.IsRunning = p.IsRunning()
	return snapshot
}

func (p *Processor) notePublished() {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.stats.PublishedCount++
}

func (p *Processor) noteFailed(err error) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.stats.FailedCount++
	p.setLastErrorLocked(err)
}

func (p *Processor) noteDead(err error) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.stats.DeadCount++
	p.setLastErrorLocked(err)
}

func (p *Processor) noteError(err error) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.setLastErrorLocked(err)
}

func (p *Processor) setLastErrorLocked(err error) {
	now := time.Now()
	p.stats.LastError = err.Error()
	p.stats.LastErrorAt = &now
}

// noteBatch tracks publish lag: the age of the oldest message the poll
// just picked up.
func (p *Processor) noteBatch(messages []*Message) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	now := time.Now()
	p.stats.LastProcessedAt = &now
	if len(messages) == 0 {
		p.stats.LagSeconds = 0
		p.stats.OldestMessageAt = nil
		return
	}

	oldest := messages[0].CreatedAt
	for _, msg := range messages[1:] {
		if msg.CreatedAt.Before(oldest) {
			oldest = msg.CreatedAt
		}
	}
	p.stats.OldestMessageAt = &oldest
	p.stats.LagSeconds = now.Sub(oldest).Seconds()
}
