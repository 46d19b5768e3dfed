package domain

import "time"

const (
	RoleAdmin = "Admin"
	RoleUser  = "User"
)

type Role struct {
	ID          string
	Name        string
	Description string
	AuditStamp
	SoftDelete
}

func (Role) EntityName() string { return "Role" }

// UserRole links a user to a role. Removing it deletes the row.
type UserRole struct {
	UserID     string
	RoleID     string
	AssignedAt time.Time
}

func (UserRole) EntityName() string { return "UserRole" }

type RoleSummary struct {
	Role
	UserCount int64
}

// RoleAssignmentResult reports the outcome of a single assignment change.
// Business failures are reported here rather than as errors.
type RoleAssignmentResult struct {
	Success bool
	Message string
	Errors  []string
	User    *UserWithRoles
}

type BulkAssignmentResult struct {
	TotalUsers            int
	SuccessfulAssignments int
	FailedAssignments     int
	Errors                []string
	UpdatedUsers          []UserWithRoles
}
