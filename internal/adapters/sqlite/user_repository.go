package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/atvirokodosprendimai/identityapi/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gormsqlite.DB
}

func NewUserRepository(db *gormsqlite.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, "find user", "id = ? AND is_deleted = ?", id, false)
}

// FindByIDIncludingDeleted returns the row even when it is soft-deleted.
func (r *UserRepository) FindByIDIncludingDeleted(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, "find user", "id = ?", id)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, "find user by email", "email = ? AND is_deleted = ?", domain.NormalizeEmail(email), false)
}

func (r *UserRepository) findOne(ctx context.Context, what, where string, args ...any) (*domain.User, error) {
	var model userModel
	err := readTX(ctx, r.db, func(tx *gormsqlite.Tx) error {
		return tx.Where(where, args...).First(&model).Error
	})
	if err != nil {
		return nil, notFound(err, what)
	}
	return model.toDomain(), nil
}

// EmailTaken also counts soft-deleted users: the unique index covers them.
func (r *UserRepository) EmailTaken(ctx context.Context, email string) (bool, error) {
	var count int64
	err := readTX(ctx, r.db, func(tx *gormsqlite.Tx) error {
		return tx.Model(&userModel{}).Where("email = ?", domain.NormalizeEmail(email)).Count(&count).Error
	})
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return count > 0, nil
}

func (r *UserRepository) List(ctx context.Context, filter domain.UserFilter) (domain.UserPage, error) {
	filter = filter.Normalize()
	page := domain.UserPage{Page: filter.Page, PageSize: filter.PageSize}

	var rows []userModel
	var roles map[string][]domain.Role
	err := readTX(ctx, r.db, func(tx *gormsqlite.Tx) error {
		base := func() *gorm.DB {
			q := tx.Model(&userModel{}).Where("is_deleted = ?", false)
			if filter.Search != "" {
				like := "%" + escapeLike(strings.ToLower(filter.Search)) + "%"
				q = q.Where(`(lower(first_name) LIKE ? ESCAPE '\' OR lower(last_name) LIKE ? ESCAPE '\' OR email LIKE ? ESCAPE '\')`, like, like, like)
			}
			if filter.Role != "" {
				q = q.Where(`id IN (SELECT ur.user_id FROM user_roles ur JOIN roles ro ON ro.id = ur.role_id
					WHERE ro.name = ? COLLATE NOCASE AND ro.is_deleted = 0)`, filter.Role)
			}
			return q
		}
		if err := base().Count(&page.TotalCount).Error; err != nil {
			return err
		}
		if err := base().Order("created_at DESC, id ASC").Limit(filter.PageSize).Offset(filter.Offset()).Find(&rows).Error; err != nil {
			return err
		}

		ids := make([]string, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
		}
		var err error
		roles, err = rolesByUser(tx.DB, ids)
		return err
	})
	if err != nil {
		return domain.UserPage{}, fmt.Errorf("list users: %w", err)
	}

	page.Items = make([]domain.UserWithRoles, 0, len(rows))
	for _, row := range rows {
		page.Items = append(page.Items, domain.UserWithRoles{User: *row.toDomain(), Roles: roles[row.ID]})
	}
	return page, nil
}

// rolesByUser loads the active roles of the given users keyed by user id.
func rolesByUser(tx *gorm.DB, userIDs []string) (map[string][]domain.Role, error) {
	out := make(map[string][]domain.Role, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	var links []userRoleModel
	if err := tx.Where("user_id IN ?", userIDs).Find(&links).Error; err != nil {
		return nil, fmt.Errorf("load user roles: %w", err)
	}
	if len(links) == 0 {
		return out, nil
	}

	roleIDs := make([]string, 0, len(links))
	for _, l := range links {
		roleIDs = append(roleIDs, l.RoleID)
	}
	var roleRows []roleModel
	if err := tx.Where("id IN ? AND is_deleted = ?", roleIDs, false).Order("name ASC").Find(&roleRows).Error; err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	byID := make(map[string]domain.Role, len(roleRows))
	for _, rm := range roleRows {
		byID[rm.ID] = *rm.toDomain()
	}
	for _, l := range links {
		if role, ok := byID[l.RoleID]; ok {
			out[l.UserID] = append(out[l.UserID], role)
		}
	}
	return out, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
