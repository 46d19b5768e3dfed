package ports

import (
	"context"
	"time"

	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
)

// Repositories read through the unit-of-work transaction carried by ctx when
// there is one. Writes go through UnitOfWork only.

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByIDIncludingDeleted(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
	List(ctx context.Context, filter domain.UserFilter) (domain.UserPage, error)
}

type RoleRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Role, error)
	FindByName(ctx context.Context, name string) (*domain.Role, error)
	List(ctx context.Context) ([]domain.RoleSummary, error)
	ListForUser(ctx context.Context, userID string) ([]domain.Role, error)
}

type UserRoleRepository interface {
	Find(ctx context.Context, userID, roleID string) (*domain.UserRole, error)
	ListForUser(ctx context.Context, userID string) ([]*domain.UserRole, error)
}

type RefreshTokenRepository interface {
	FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error)
	ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]*domain.RefreshToken, error)
}

type AuditTrailRepository interface {
	List(ctx context.Context, query domain.AuditQuery) ([]domain.AuditEntry, error)
}

type OutboxRepository interface {
	// FetchPending returns pending events due at or before now, oldest first.
	FetchPending(ctx context.Context, now time.Time, limit int) ([]domain.OutboxEvent, error)
	MarkDispatched(ctx context.Context, id int64, at time.Time) error
	MarkFailed(ctx context.Context, id int64, attempts int, nextAttemptAt time.Time, errMsg string) error
	MarkDead(ctx context.Context, id int64, attempts int, errMsg string) error
}
