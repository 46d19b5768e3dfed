package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
	"github.com/atvirokodosprendimai/identityapi/internal/core/ports"
	"github.com/google/uuid"
)

type RoleService struct {
	newUnitOfWork ports.UnitOfWorkFactory
	users         ports.UserRepository
	roles         ports.RoleRepository
	userRoles     ports.UserRoleRepository
	logger        *slog.Logger
}

func NewRoleService(newUnitOfWork ports.UnitOfWorkFactory, users ports.UserRepository, roles ports.RoleRepository, userRoles ports.UserRoleRepository, logger *slog.Logger) *RoleService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoleService{newUnitOfWork: newUnitOfWork, users: users, roles: roles, userRoles: userRoles, logger: logger}
}

func (s *RoleService) CreateRole(ctx context.Context, name, description string) (*domain.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("role name is required: %w", domain.ErrInvalidInput)
	}
	if _, err := s.roles.FindByName(ctx, name); err == nil {
		return nil, fmt.Errorf("role %s: %w", name, domain.ErrAlreadyExists)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	role := &domain.Role{ID: uuid.NewString(), Name: name, Description: strings.TrimSpace(description)}
	uow := s.newUnitOfWork()
	if err := uow.Add(role); err != nil {
		return nil, err
	}
	if _, err := uow.Commit(ctx); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("role %s: %w: %w", name, domain.ErrAlreadyExists, err)
		}
		return nil, fmt.Errorf("create role: %w", err)
	}
	s.logger.InfoContext(ctx, "role created", "role_id", role.ID, "name", role.Name)
	return role, nil
}

func (s *RoleService) ListRoles(ctx context.Context) ([]domain.RoleSummary, error) {
	return s.roles.List(ctx)
}

// AssignRole grants roleName to the user. Unknown users and roles and
// duplicate assignments are reported in the result, not as errors.
func (s *RoleService) AssignRole(ctx context.Context, userID, roleName string) (domain.RoleAssignmentResult, error) {
	user, role, result, err := s.resolve(ctx, userID, roleName)
	if err != nil || result != nil {
		return deref(result), err
	}

	if _, err := s.userRoles.Find(ctx, user.ID, role.ID); err == nil {
		return failure("Role already assigned", fmt.Sprintf("User already has the role '%s'", role.Name)), nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.RoleAssignmentResult{}, err
	}

	uow := s.newUnitOfWork()
	if err := uow.Add(&domain.UserRole{UserID: user.ID, RoleID: role.ID, AssignedAt: domain.Now(ctx)}); err != nil {
		return domain.RoleAssignmentResult{}, err
	}
	if _, err := uow.Commit(ctx); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return failure("Role already assigned", fmt.Sprintf("User already has the role '%s'", role.Name)), nil
		}
		return domain.RoleAssignmentResult{}, fmt.Errorf("assign role: %w", err)
	}

	updated, err := s.UserRoles(ctx, user.ID)
	if err != nil {
		return domain.RoleAssignmentResult{}, err
	}
	return domain.RoleAssignmentResult{
		Success: true,
		Message: fmt.Sprintf("Role '%s' successfully assigned to user", role.Name),
		User:    updated,
	}, nil
}

// RemoveRole deletes the assignment row; assignments are not soft-deleted.
func (s *RoleService) RemoveRole(ctx context.Context, userID, roleName string) (domain.RoleAssignmentResult, error) {
	user, role, result, err := s.resolve(ctx, userID, roleName)
	if err != nil || result != nil {
		return deref(result), err
	}

	link, err := s.userRoles.Find(ctx, user.ID, role.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return failure("Role not assigned", fmt.Sprintf("User does not have the role '%s'", role.Name)), nil
	}
	if err != nil {
		return domain.RoleAssignmentResult{}, err
	}

	uow := s.newUnitOfWork()
	if err := uow.Attach(link); err != nil {
		return domain.RoleAssignmentResult{}, err
	}
	if err := uow.Remove(link); err != nil {
		return domain.RoleAssignmentResult{}, err
	}
	if _, err := uow.Commit(ctx); err != nil {
		return domain.RoleAssignmentResult{}, fmt.Errorf("remove role: %w", err)
	}

	updated, err := s.UserRoles(ctx, user.ID)
	if err != nil {
		return domain.RoleAssignmentResult{}, err
	}
	return domain.RoleAssignmentResult{
		Success: true,
		Message: fmt.Sprintf("Role '%s' successfully removed from user", role.Name),
		User:    updated,
	}, nil
}

func (s *RoleService) resolve(ctx context.Context, userID, roleName string) (*domain.User, *domain.Role, *domain.RoleAssignmentResult, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		r := failure("User not found", "User does not exist or has been deleted")
		return nil, nil, &r, nil
	}
	if err != nil {
		return nil, nil, nil, err
	}
	role, err := s.roles.FindByName(ctx, roleName)
	if errors.Is(err, domain.ErrNotFound) {
		r := failure("Role not found", fmt.Sprintf("Role '%s' does not exist", roleName))
		return nil, nil, &r, nil
	}
	if err != nil {
		return nil, nil, nil, err
	}
	return user, role, nil, nil
}

// BulkAssignRoles grants every named role to every listed user inside one
// explicit transaction. Missing users and roles count as failures; roles a
// user already has are skipped. A failed commit rolls back all of it.
func (s *RoleService) BulkAssignRoles(ctx context.Context, userIDs, roleNames []string) (domain.BulkAssignmentResult, error) {
	result := domain.BulkAssignmentResult{TotalUsers: len(userIDs)}

	uow := s.newUnitOfWork()
	txCtx, err := uow.BeginTransaction(ctx)
	if err != nil {
		return domain.BulkAssignmentResult{}, err
	}
	rollback := func(cause error) (domain.BulkAssignmentResult, error) {
		if rbErr := uow.RollbackTransaction(txCtx); rbErr != nil {
			s.logger.ErrorContext(ctx, "bulk assignment rollback failed", "error", rbErr)
		}
		return domain.BulkAssignmentResult{}, fmt.Errorf("bulk assign roles: %w", cause)
	}

	roles := make([]*domain.Role, 0, len(roleNames))
	for _, name := range roleNames {
		role, err := s.roles.FindByName(txCtx, name)
		if errors.Is(err, domain.ErrNotFound) {
			result.Errors = append(result.Errors, fmt.Sprintf("Role %s not found", name))
			continue
		}
		if err != nil {
			return rollback(err)
		}
		roles = append(roles, role)
	}

	seen := make(map[string]bool, len(userIDs))
	done := make([]string, 0, len(userIDs))
	for _, userID := range userIDs {
		if seen[userID] {
			result.FailedAssignments++
			result.Errors = append(result.Errors, fmt.Sprintf("User %s listed more than once", userID))
			continue
		}
		seen[userID] = true

		if _, err := s.users.FindByID(txCtx, userID); errors.Is(err, domain.ErrNotFound) {
			result.FailedAssignments++
			result.Errors = append(result.Errors, fmt.Sprintf("User %s not found", userID))
			continue
		} else if err != nil {
			return rollback(err)
		}

		for _, role := range roles {
			if _, err := s.userRoles.Find(txCtx, userID, role.ID); err == nil {
				continue
			} else if !errors.Is(err, domain.ErrNotFound) {
				return rollback(err)
			}
			if err := uow.Add(&domain.UserRole{UserID: userID, RoleID: role.ID, AssignedAt: domain.Now(ctx)}); err != nil {
				return rollback(err)
			}
		}
		if _, err := uow.Commit(txCtx); err != nil {
			return rollback(err)
		}
		result.SuccessfulAssignments++
		done = append(done, userID)
	}

	for _, userID := range done {
		updated, err := s.UserRoles(txCtx, userID)
		if err != nil {
			return rollback(err)
		}
		result.UpdatedUsers = append(result.UpdatedUsers, *updated)
	}
	if err := uow.CommitTransaction(txCtx); err != nil {
		return domain.BulkAssignmentResult{}, fmt.Errorf("bulk assign roles: %w", err)
	}

	s.logger.InfoContext(ctx, "bulk role assignment finished",
		"users", result.TotalUsers,
		"succeeded", result.SuccessfulAssignments,
		"failed", result.FailedAssignments,
	)
	return result, nil
}

// UserRoles returns the user with the roles currently assigned.
func (s *RoleService) UserRoles(ctx context.Context, userID string) (*domain.UserWithRoles, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	roles, err := s.roles.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	return &domain.UserWithRoles{User: *user, Roles: roles}, nil
}

func (s *RoleService) UsersWithRoles(ctx context.Context, filter domain.UserFilter) (domain.UserPage, error) {
	page, err := s.users.List(ctx, filter)
	if err != nil {
		return domain.UserPage{}, err
	}
	for i := range page.Items {
		page.Items[i].PasswordHash = ""
	}
	return page, nil
}

func failure(message string, errs ...string) domain.RoleAssignmentResult {
	return domain.RoleAssignmentResult{Success: false, Message: message, Errors: errs}
}

func deref(r *domain.RoleAssignmentResult) domain.RoleAssignmentResult {
	if r == nil {
		return domain.RoleAssignmentResult{}
	}
	return *r
}
