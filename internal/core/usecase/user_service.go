package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
	"github.com/atvirokodosprendimai/identityapi/internal/core/ports"
)

// UpdateProfileInput holds the fields to change; nil leaves a field as is.
type UpdateProfileInput struct {
	FirstName   *string
	LastName    *string
	Email       *string
	PhoneNumber *string
}

type UserService struct {
	newUnitOfWork ports.UnitOfWorkFactory
	users         ports.UserRepository
	roles         ports.RoleRepository
	lifecycle     *TokenLifecycle
	metrics       ports.SecurityMetrics
	logger        *slog.Logger
}

func NewUserService(newUnitOfWork ports.UnitOfWorkFactory, users ports.UserRepository, roles ports.RoleRepository, lifecycle *TokenLifecycle, metrics ports.SecurityMetrics, logger *slog.Logger) *UserService {
	if metrics == nil {
		metrics = ports.NopSecurityMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		newUnitOfWork: newUnitOfWork,
		users:         users,
		roles:         roles,
		lifecycle:     lifecycle,
		metrics:       metrics,
		logger:        logger,
	}
}

func (s *UserService) List(ctx context.Context, filter domain.UserFilter) (domain.UserPage, error) {
	page, err := s.users.List(ctx, filter)
	if err != nil {
		return domain.UserPage{}, err
	}
	for i := range page.Items {
		page.Items[i].PasswordHash = ""
	}
	return page, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*domain.UserWithRoles, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	roles, err := s.roles.ListForUser(ctx, id)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	return &domain.UserWithRoles{User: *user, Roles: roles}, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, id string, in UpdateProfileInput) (*domain.UserWithRoles, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	uow := s.newUnitOfWork()
	if err := uow.Attach(user); err != nil {
		return nil, err
	}

	if in.FirstName != nil {
		user.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		user.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.PhoneNumber != nil {
		user.PhoneNumber = strings.TrimSpace(*in.PhoneNumber)
	}
	if in.Email != nil {
		email := domain.NormalizeEmail(*in.Email)
		if email != user.Email {
			taken, err := s.users.EmailTaken(ctx, email)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, fmt.Errorf("email %s: %w", email, domain.ErrAlreadyExists)
			}
			user.Email = email
			user.IsEmailVerified = false
		}
	}

	if err := uow.Update(user); err != nil {
		return nil, err
	}
	if _, err := uow.Commit(ctx); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return s.Get(ctx, id)
}

// Delete soft-deletes the user and revokes every active session.
func (s *UserService) Delete(ctx context.Context, id string) error {
	return s.retire(ctx, id, domain.RevokeReasonDeleted, func(uow ports.UnitOfWork, user *domain.User) error {
		return uow.Remove(user)
	})
}

// SetActive enables or disables login. Deactivation revokes every active
// session.
func (s *UserService) SetActive(ctx context.Context, id string, active bool) error {
	if active {
		user, err := s.users.FindByID(ctx, id)
		if err != nil {
			return err
		}
		uow := s.newUnitOfWork()
		if err := uow.Attach(user); err != nil {
			return err
		}
		user.IsActive = true
		if err := uow.Update(user); err != nil {
			return err
		}
		if _, err := uow.Commit(ctx); err != nil {
			return fmt.Errorf("activate user: %w", err)
		}
		return nil
	}
	return s.retire(ctx, id, domain.RevokeReasonDisabled, func(uow ports.UnitOfWork, user *domain.User) error {
		user.IsActive = false
		return uow.Update(user)
	})
}

func (s *UserService) retire(ctx context.Context, id, reason string, stage func(ports.UnitOfWork, *domain.User) error) error {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return err
	}
	uow := s.newUnitOfWork()
	if err := uow.Attach(user); err != nil {
		return err
	}
	if err := stage(uow, user); err != nil {
		return err
	}
	revoked, err := s.lifecycle.RevokeAllForUser(ctx, uow, user.ID, domain.ActorFrom(ctx).IP, reason)
	if err != nil {
		return err
	}
	if _, err := uow.Commit(ctx); err != nil {
		return fmt.Errorf("%s: %w", strings.ToLower(reason), err)
	}
	s.metrics.TokensRevoked(revoked)
	s.logger.InfoContext(ctx, "user retired", "user_id", user.ID, "reason", reason, "revoked", revoked)
	return nil
}
