package domain

import (
	"strings"
	"time"
)

type User struct {
	ID              string
	FirstName       string
	LastName        string
	Email           string
	PasswordHash    string
	PhoneNumber     string
	IsEmailVerified bool
	IsActive        bool
	LastLoginAt     *time.Time
	AuditStamp
	SoftDelete
}

func (User) EntityName() string { return "User" }

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// CanAuthenticate reports whether the user may log in or refresh a session.
func (u User) CanAuthenticate() bool {
	return u.IsActive && !u.IsDeleted
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type UserWithRoles struct {
	User
	Roles []Role
}

func (u UserWithRoles) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}

type UserFilter struct {
	Search   string
	Role     string
	Page     int
	PageSize int
}

func (f UserFilter) Normalize() UserFilter {
	f.Search = strings.TrimSpace(f.Search)
	f.Role = strings.TrimSpace(f.Role)
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = 10
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}
	return f
}

func (f UserFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

type UserPage struct {
	Items      []UserWithRoles
	TotalCount int64
	Page       int
	PageSize   int
}

func (p UserPage) TotalPages() int {
	if p.PageSize <= 0 {
		return 0
	}
	return int((p.TotalCount + int64(p.PageSize) - 1) / int64(p.PageSize))
}
