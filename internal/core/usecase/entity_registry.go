package usecase

import (
	"time"

	"github.com/atvirokodosprendimai/identityapi/internal/core/changeset"
	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
)

// NewEntityRegistry describes every persisted entity to the change tracker.
// Audit stamps are not tracked fields.
func NewEntityRegistry() *changeset.Registry {
	r := changeset.NewRegistry()

	changeset.MustRegister(r, changeset.Type[domain.User]{
		Name: "User",
		Fields: []changeset.Field[domain.User]{
			{Name: "ID", Key: true, Get: func(u *domain.User) any { return u.ID }},
			{Name: "FirstName", Get: func(u *domain.User) any { return u.FirstName }},
			{Name: "LastName", Get: func(u *domain.User) any { return u.LastName }},
			{Name: "Email", Get: func(u *domain.User) any { return u.Email }},
			{Name: "PasswordHash", Sensitive: true, Get: func(u *domain.User) any { return u.PasswordHash }},
			{Name: "PhoneNumber", Get: func(u *domain.User) any { return u.PhoneNumber }},
			{Name: "IsEmailVerified", Get: func(u *domain.User) any { return u.IsEmailVerified }},
			{Name: "IsActive", Get: func(u *domain.User) any { return u.IsActive }},
			{Name: "LastLoginAt", Get: func(u *domain.User) any { return copyTime(u.LastLoginAt) }},
			{Name: "IsDeleted", Get: func(u *domain.User) any { return u.IsDeleted }},
			{Name: "DeletedAt", Get: func(u *domain.User) any { return copyTime(u.DeletedAt) }},
			{Name: "DeletedBy", Get: func(u *domain.User) any { return u.DeletedBy }},
		},
		SoftDelete: func(u *domain.User) *domain.SoftDelete { return &u.SoftDelete },
		Stamp:      func(u *domain.User) *domain.AuditStamp { return &u.AuditStamp },
	})

	changeset.MustRegister(r, changeset.Type[domain.Role]{
		Name: "Role",
		Fields: []changeset.Field[domain.Role]{
			{Name: "ID", Key: true, Get: func(ro *domain.Role) any { return ro.ID }},
			{Name: "Name", Get: func(ro *domain.Role) any { return ro.Name }},
			{Name: "Description", Get: func(ro *domain.Role) any { return ro.Description }},
			{Name: "IsDeleted", Get: func(ro *domain.Role) any { return ro.IsDeleted }},
			{Name: "DeletedAt", Get: func(ro *domain.Role) any { return copyTime(ro.DeletedAt) }},
			{Name: "DeletedBy", Get: func(ro *domain.Role) any { return ro.DeletedBy }},
		},
		SoftDelete: func(ro *domain.Role) *domain.SoftDelete { return &ro.SoftDelete },
		Stamp:      func(ro *domain.Role) *domain.AuditStamp { return &ro.AuditStamp },
	})

	changeset.MustRegister(r, changeset.Type[domain.UserRole]{
		Name: "UserRole",
		Fields: []changeset.Field[domain.UserRole]{
			{Name: "UserID", Key: true, Get: func(ur *domain.UserRole) any { return ur.UserID }},
			{Name: "RoleID", Key: true, Get: func(ur *domain.UserRole) any { return ur.RoleID }},
			{Name: "AssignedAt", Get: func(ur *domain.UserRole) any { return ur.AssignedAt }},
		},
	})

	changeset.MustRegister(r, changeset.Type[domain.RefreshToken]{
		Name: "RefreshToken",
		Fields: []changeset.Field[domain.RefreshToken]{
			{Name: "ID", Key: true, StoreGenerated: true, Get: func(t *domain.RefreshToken) any { return t.ID }},
			{Name: "Token", Sensitive: true, Get: func(t *domain.RefreshToken) any { return t.Token }},
			{Name: "UserID", Get: func(t *domain.RefreshToken) any { return t.UserID }},
			{Name: "ExpiresAt", Get: func(t *domain.RefreshToken) any { return t.ExpiresAt }},
			{Name: "CreatedByIP", Get: func(t *domain.RefreshToken) any { return t.CreatedByIP }},
			{Name: "RevokedAt", Get: func(t *domain.RefreshToken) any { return copyTime(t.RevokedAt) }},
			{Name: "RevokedByIP", Get: func(t *domain.RefreshToken) any { return t.RevokedByIP }},
			{Name: "ReasonRevoked", Get: func(t *domain.RefreshToken) any { return t.ReasonRevoked }},
			{Name: "ReplacedByToken", Sensitive: true, Get: func(t *domain.RefreshToken) any { return t.ReplacedByToken }},
			{Name: "IsDeleted", Get: func(t *domain.RefreshToken) any { return t.IsDeleted }},
			{Name: "DeletedAt", Get: func(t *domain.RefreshToken) any { return copyTime(t.DeletedAt) }},
			{Name: "DeletedBy", Get: func(t *domain.RefreshToken) any { return t.DeletedBy }},
		},
		SoftDelete: func(t *domain.RefreshToken) *domain.SoftDelete { return &t.SoftDelete },
		Stamp:      func(t *domain.RefreshToken) *domain.AuditStamp { return &t.AuditStamp },
	})

	return r
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
