package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/atvirokodosprendimai/identityapi/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/identityapi/internal/core/changeset"
	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UnitOfWorkStore persists gateway batches. Every audit entry is mirrored
// into the outbox in the same transaction.
type UnitOfWorkStore struct {
	db *gormsqlite.DB
}

func NewUnitOfWorkStore(db *gormsqlite.DB) *UnitOfWorkStore {
	return &UnitOfWorkStore{db: db}
}

var _ changeset.Store = (*UnitOfWorkStore)(nil)

func (s *UnitOfWorkStore) Begin(ctx context.Context) (context.Context, changeset.StoreTx, error) {
	tx, err := s.db.BeginWrite(ctx)
	if err != nil {
		return nil, nil, writeError(err, "begin unit of work")
	}
	return withTx(ctx, tx), &storeTx{tx: tx}, nil
}

type storeTx struct {
	tx *gormsqlite.Tx
}

func (t *storeTx) Write(ctx context.Context, ops []changeset.Operation) error {
	db := t.tx.WithContext(ctx)
	for _, op := range ops {
		if err := applyOperation(db, op); err != nil {
			return err
		}
	}
	return nil
}

func applyOperation(tx *gorm.DB, op changeset.Operation) error {
	switch e := op.Entity.(type) {
	case *domain.User:
		m := toUserModel(e)
		return applyRow(tx, op.State, "user", &m, m.columns(), "id = ?", m.ID)
	case *domain.Role:
		m := toRoleModel(e)
		return applyRow(tx, op.State, "role", &m, m.columns(), "id = ?", m.ID)
	case *domain.UserRole:
		m := userRoleModel{UserID: e.UserID, RoleID: e.RoleID, AssignedAt: e.AssignedAt.UTC()}
		return applyRow(tx, op.State, "user role", &m, map[string]any{"assigned_at": m.AssignedAt},
			"user_id = ? AND role_id = ?", m.UserID, m.RoleID)
	case *domain.RefreshToken:
		m := toRefreshTokenModel(e)
		where := "id = ?"
		if op.State == changeset.Modified && m.RevokedAt != nil && !m.IsDeleted {
			// Revocation is one-way: a token revoked by a concurrent
			// commit matches nothing and surfaces as a conflict.
			where = "id = ? AND revoked_at IS NULL"
		}
		if err := applyRow(tx, op.State, "refresh token", &m, m.columns(), where, m.ID); err != nil {
			return err
		}
		if op.State == changeset.Added {
			e.ID = m.ID
		}
		return nil
	default:
		return fmt.Errorf("unsupported entity %T", op.Entity)
	}
}

// applyRow inserts, updates or deletes one row. Updates and deletes that
// match nothing are conflicts: the row changed or vanished since it was read.
func applyRow(tx *gorm.DB, state changeset.State, what string, model any, columns map[string]any, where string, args ...any) error {
	switch state {
	case changeset.Added:
		if err := tx.Create(model).Error; err != nil {
			return writeError(err, "insert "+what)
		}
		return nil
	case changeset.Modified:
		res := tx.Model(model).Where(where, args...).Updates(columns)
		if res.Error != nil {
			return writeError(res.Error, "update "+what)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("update %s: %w: no matching row", what, domain.ErrConflict)
		}
		return nil
	case changeset.Removed:
		res := tx.Where(where, args...).Delete(model)
		if res.Error != nil {
			return writeError(res.Error, "delete "+what)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("delete %s: %w: no matching row", what, domain.ErrConflict)
		}
		return nil
	default:
		return fmt.Errorf("write %s: unexpected state %s", what, state)
	}
}

func (t *storeTx) AppendAudit(ctx context.Context, entries []domain.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	db := t.tx.WithContext(ctx)

	rows := make([]auditEntryModel, 0, len(entries))
	outbox := make([]outboxEventModel, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, toAuditEntryModel(e))
		event, err := auditOutboxEvent(e)
		if err != nil {
			return err
		}
		outbox = append(outbox, event)
	}

	if err := db.Create(&rows).Error; err != nil {
		return fmt.Errorf("insert audit entries: %w", err)
	}
	if err := db.Create(&outbox).Error; err != nil {
		return fmt.Errorf("insert outbox events: %w", err)
	}
	return nil
}

func auditOutboxEvent(e domain.AuditEntry) (outboxEventModel, error) {
	payload, err := json.Marshal(map[string]any{
		"action":         e.Action,
		"old_values":     e.OldValues,
		"new_values":     e.NewValues,
		"changed_fields": e.ChangedFields,
		"client_ip":      e.ClientIP,
	})
	if err != nil {
		return outboxEventModel{}, fmt.Errorf("marshal audit payload: %w", err)
	}
	envelope := domain.EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     domain.AuditEventType(e.EntityType, e.Action),
		SchemaVersion: domain.CurrentEventSchemaVersion,
		EntityType:    e.EntityType,
		EntityKey:     e.EntityKey,
		OccurredAt:    e.CreatedAt.UTC(),
		Actor:         e.CreatedBy,
		Payload:       payload,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return outboxEventModel{}, fmt.Errorf("marshal outbox payload: %w", err)
	}
	return outboxEventModel{
		EventID:       envelope.EventID,
		Topic:         "audit." + strings.ToLower(e.EntityType) + "." + strings.ToLower(string(e.Action)),
		PayloadJSON:   string(body),
		Status:        "pending",
		NextAttemptAt: envelope.OccurredAt,
		CreatedAt:     envelope.OccurredAt,
	}, nil
}

func (t *storeTx) Commit() error {
	if err := t.tx.Commit().Error; err != nil {
		return writeError(err, "commit unit of work")
	}
	return nil
}

func (t *storeTx) Rollback() error {
	if err := t.tx.Rollback().Error; err != nil {
		return fmt.Errorf("rollback unit of work: %w", err)
	}
	return nil
}
