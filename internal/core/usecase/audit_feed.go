package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
	"github.com/atvirokodosprendimai/identityapi/internal/core/ports"
)

const maxRetryDelay = 5 * time.Minute

type FeedConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

func (c FeedConfig) withDefaults() FeedConfig {
	if c.Interval <= 0 {
		c.Interval = 2 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	return c
}

// AuditFeed delivers the outbox rows written next to every audit entry to an
// EventPublisher. A row that keeps failing is retried with growing delays
// and parked as dead once it has used MaxAttempts.
type AuditFeed struct {
	outbox    ports.OutboxRepository
	publisher ports.EventPublisher
	metrics   ports.FeedMetrics
	logger    *slog.Logger
	cfg       FeedConfig

	mu   sync.Mutex
	stop context.CancelFunc
	done chan struct{}
}

func NewAuditFeed(outbox ports.OutboxRepository, publisher ports.EventPublisher, metrics ports.FeedMetrics, logger *slog.Logger, cfg FeedConfig) *AuditFeed {
	if metrics == nil {
		metrics = ports.NopFeedMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditFeed{
		outbox:    outbox,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg.withDefaults(),
	}
}

// Run drains the outbox every Interval in a background goroutine until ctx
// is done or Close is called. Calling Run on a running feed is a no-op.
func (f *AuditFeed) Run(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stop != nil {
		return
	}
	ctx, f.stop = context.WithCancel(ctx)
	f.done = make(chan struct{})
	go f.poll(ctx, f.done)
}

func (f *AuditFeed) Close() error {
	f.mu.Lock()
	stop, done := f.stop, f.done
	f.stop, f.done = nil, nil
	f.mu.Unlock()
	if stop == nil {
		return nil
	}
	stop()
	<-done
	return nil
}

func (f *AuditFeed) poll(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(f.cfg.Interval)
	defer ticker.Stop()
	for {
		if _, err := f.Drain(ctx); err != nil && !errors.Is(err, context.Canceled) {
			f.logger.ErrorContext(ctx, "audit feed drain failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Drain publishes one batch of events due at domain.Now(ctx) and returns how
// many were delivered. Publish failures are recorded on the row; only
// storage errors are returned.
func (f *AuditFeed) Drain(ctx context.Context) (int, error) {
	now := domain.Now(ctx)
	due, err := f.outbox.FetchPending(ctx, now, f.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	delivered := 0
	for _, event := range due {
		if cause := f.publish(ctx, event); cause != nil {
			if err := f.fail(ctx, now, event, cause); err != nil {
				return delivered, err
			}
			continue
		}
		if err := f.outbox.MarkDispatched(ctx, event.ID, now); err != nil {
			return delivered, err
		}
		f.metrics.FeedDelivered(event.Topic)
		delivered++
	}
	return delivered, nil
}

func (f *AuditFeed) publish(ctx context.Context, event domain.OutboxEvent) error {
	var envelope domain.EventEnvelope
	if err := json.Unmarshal(event.PayloadJSON, &envelope); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	return f.publisher.Publish(ctx, event.Topic, envelope)
}

func (f *AuditFeed) fail(ctx context.Context, now time.Time, event domain.OutboxEvent, cause error) error {
	attempts := event.Attempts + 1
	log := f.logger.With("event_id", event.EventID, "topic", event.Topic, "attempts", attempts, "error", cause)
	if attempts >= f.cfg.MaxAttempts {
		if err := f.outbox.MarkDead(ctx, event.ID, attempts, cause.Error()); err != nil {
			return err
		}
		f.metrics.FeedParked(event.Topic)
		log.WarnContext(ctx, "audit feed event parked")
		return nil
	}
	next := now.Add(retryDelay(attempts))
	if err := f.outbox.MarkFailed(ctx, event.ID, attempts, next, cause.Error()); err != nil {
		return err
	}
	f.metrics.FeedRetried(event.Topic)
	log.InfoContext(ctx, "audit feed publish failed", "retry_at", next)
	return nil
}

// retryDelay doubles from one second per attempt.
func retryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 9 {
		return maxRetryDelay
	}
	return min(time.Second<<(attempt-1), maxRetryDelay)
}
