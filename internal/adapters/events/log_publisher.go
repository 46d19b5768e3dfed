package events

import (
	"context"
	"log/slog"

	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
)

// LogPublisher writes audit events to the application log instead of a remote sink.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, topic string, event domain.EventEnvelope) error {
	p.logger.InfoContext(ctx, "outbox publish",
		"topic", topic,
		"event_id", event.EventID,
		"event_type", event.EventType,
		"entity_type", event.EntityType,
		"entity_key", event.EntityKey,
		"actor", event.Actor,
	)
	return nil
}
