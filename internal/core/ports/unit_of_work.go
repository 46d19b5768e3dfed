package ports

import (
	"context"

	"github.com/atvirokodosprendimai/identityapi/internal/core/changeset"
	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
)

// UnitOfWork stages entity changes and persists them with their audit trail.
// Implemented by *changeset.Gateway.
type UnitOfWork interface {
	Attach(e changeset.Entity) error
	Add(e changeset.Entity) error
	Update(e changeset.Entity) error
	Remove(e changeset.Entity) error
	Commit(ctx context.Context) ([]domain.AuditEntry, error)
	BeginTransaction(ctx context.Context) (context.Context, error)
	CommitTransaction(ctx context.Context) error
	RollbackTransaction(ctx context.Context) error
}

// UnitOfWorkFactory returns a fresh unit of work per operation.
type UnitOfWorkFactory func() UnitOfWork
