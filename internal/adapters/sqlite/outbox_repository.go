package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/atvirokodosprendimai/identityapi/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
)

const (
	outboxPending    = "pending"
	outboxDispatched = "dispatched"
	outboxDead       = "dead"
)

type OutboxRepository struct {
	db *gormsqlite.DB
}

func NewOutboxRepository(db *gormsqlite.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) FetchPending(ctx context.Context, now time.Time, limit int) ([]domain.OutboxEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []outboxEventModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("status = ? AND next_attempt_at <= ?", outboxPending, now.UTC()).
			Order("id ASC").
			Limit(limit).
			Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("fetch pending outbox: %w", err)
	}

	result := make([]domain.OutboxEvent, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.OutboxEvent{
			ID:            row.ID,
			EventID:       row.EventID,
			Topic:         row.Topic,
			PayloadJSON:   json.RawMessage(row.PayloadJSON),
			Status:        row.Status,
			Attempts:      row.Attempts,
			NextAttemptAt: row.NextAttemptAt,
			LastError:     row.LastError,
			CreatedAt:     row.CreatedAt,
			DispatchedAt:  row.DispatchedAt,
		})
	}
	return result, nil
}

func (r *OutboxRepository) MarkDispatched(ctx context.Context, id int64, at time.Time) error {
	at = at.UTC()
	return r.update(ctx, "mark outbox dispatched", id, map[string]any{
		"status":        outboxDispatched,
		"dispatched_at": &at,
		"last_error":    "",
	})
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id int64, attempts int, nextAttemptAt time.Time, errMsg string) error {
	return r.update(ctx, "mark outbox failed", id, map[string]any{
		"attempts":        attempts,
		"next_attempt_at": nextAttemptAt.UTC(),
		"last_error":      errMsg,
	})
}

// MarkDead parks an event that exhausted its retries.
func (r *OutboxRepository) MarkDead(ctx context.Context, id int64, attempts int, errMsg string) error {
	return r.update(ctx, "mark outbox dead", id, map[string]any{
		"status":     outboxDead,
		"attempts":   attempts,
		"last_error": errMsg,
	})
}

func (r *OutboxRepository) update(ctx context.Context, what string, id int64, columns map[string]any) error {
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Model(&outboxEventModel{}).Where("id = ?", id).Updates(columns).Error
	})
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}
