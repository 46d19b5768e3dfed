package ports

import (
	"context"

	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
)

// EventPublisher delivers audit feed envelopes read from the outbox. An
// error leaves the event pending for another attempt.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event domain.EventEnvelope) error
}
