package sqlite

import (
	"context"
	"fmt"

	"github.com/atvirokodosprendimai/identityapi/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

type AuditTrailRepository struct {
	db *gormsqlite.DB
}

func NewAuditTrailRepository(db *gormsqlite.DB) *AuditTrailRepository {
	return &AuditTrailRepository{db: db}
}

// List filters audit entries. EntityKey matches as a substring so composite
// keys can be searched by either half.
func (r *AuditTrailRepository) List(ctx context.Context, q domain.AuditQuery) ([]domain.AuditEntry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}
	offset := max(q.Offset, 0)
	order := "created_at DESC, rowid DESC"
	if q.Ascending {
		order = "created_at ASC, rowid ASC"
	}

	var rows []auditEntryModel
	err := readTX(ctx, r.db, func(tx *gormsqlite.Tx) error {
		query := tx.Model(&auditEntryModel{})
		if q.EntityType != "" {
			query = query.Where("entity_type = ?", q.EntityType)
		}
		if q.EntityKey != "" {
			query = query.Where(`entity_key LIKE ? ESCAPE '\'`, "%"+escapeLike(q.EntityKey)+"%")
		}
		if q.Actor != "" {
			query = query.Where("created_by = ?", q.Actor)
		}
		if q.From != nil {
			query = query.Where("created_at >= ?", q.From.UTC())
		}
		if q.To != nil {
			query = query.Where("created_at <= ?", q.To.UTC())
		}
		return query.Order(order).Limit(limit).Offset(offset).Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}

	result := make([]domain.AuditEntry, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}
