package sqlite

import (
	"context"
	"fmt"

	"github.com/atvirokodosprendimai/identityapi/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
)

type RoleRepository struct {
	db *gormsqlite.DB
}

func NewRoleRepository(db *gormsqlite.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) FindByID(ctx context.Context, id string) (*domain.Role, error) {
	var model roleModel
	err := readTX(ctx, r.db, func(tx *gormsqlite.Tx) error {
		return tx.Where("id = ? AND is_deleted = ?", id, false).First(&model).Error
	})
	if err != nil {
		return nil, notFound(err, "find role")
	}
	return model.toDomain(), nil
}

// FindByName matches case-insensitively.
func (r *RoleRepository) FindByName(ctx context.Context, name string) (*domain.Role, error) {
	var model roleModel
	err := readTX(ctx, r.db, func(tx *gormsqlite.Tx) error {
		return tx.Where("name = ? COLLATE NOCASE AND is_deleted = ?", name, false).First(&model).Error
	})
	if err != nil {
		return nil, notFound(err, "find role by name")
	}
	return model.toDomain(), nil
}

func (r *RoleRepository) List(ctx context.Context) ([]domain.RoleSummary, error) {
	var rows []roleModel
	var counts []struct {
		RoleID    string
		UserCount int64
	}
	err := readTX(ctx, r.db, func(tx *gormsqlite.Tx) error {
		if err := tx.Where("is_deleted = ?", false).Order("name ASC").Find(&rows).Error; err != nil {
			return err
		}
		return tx.Model(&userRoleModel{}).
			Select("user_roles.role_id AS role_id, COUNT(*) AS user_count").
			Joins("JOIN users ON users.id = user_roles.user_id AND users.is_deleted = 0").
			Group("user_roles.role_id").
			Scan(&counts).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}

	byRole := make(map[string]int64, len(counts))
	for _, c := range counts {
		byRole[c.RoleID] = c.UserCount
	}
	result := make([]domain.RoleSummary, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.RoleSummary{Role: *row.toDomain(), UserCount: byRole[row.ID]})
	}
	return result, nil
}

func (r *RoleRepository) ListForUser(ctx context.Context, userID string) ([]domain.Role, error) {
	var roles map[string][]domain.Role
	err := readTX(ctx, r.db, func(tx *gormsqlite.Tx) error {
		var err error
		roles, err = rolesByUser(tx.DB, []string{userID})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list user roles: %w", err)
	}
	return roles[userID], nil
}

type UserRoleRepository struct {
	db *gormsqlite.DB
}

func NewUserRoleRepository(db *gormsqlite.DB) *UserRoleRepository {
	return &UserRoleRepository{db: db}
}

func (r *UserRoleRepository) Find(ctx context.Context, userID, roleID string) (*domain.UserRole, error) {
	var model userRoleModel
	err := readTX(ctx, r.db, func(tx *gormsqlite.Tx) error {
		return tx.Where("user_id = ? AND role_id = ?", userID, roleID).First(&model).Error
	})
	if err != nil {
		return nil, notFound(err, "find user role")
	}
	return model.toDomain(), nil
}

func (r *UserRoleRepository) ListForUser(ctx context.Context, userID string) ([]*domain.UserRole, error) {
	var rows []userRoleModel
	err := readTX(ctx, r.db, func(tx *gormsqlite.Tx) error {
		return tx.Where("user_id = ?", userID).Order("assigned_at ASC").Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list user role links: %w", err)
	}
	result := make([]*domain.UserRole, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}
