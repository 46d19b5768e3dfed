package httpapi

import (
	"encoding/json"
	"time"

	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
)

type userResponse struct {
	ID              string   `json:"id"`
	FirstName       string   `json:"firstName"`
	LastName        string   `json:"lastName"`
	FullName        string   `json:"fullName"`
	Email           string   `json:"email"`
	PhoneNumber     string   `json:"phoneNumber,omitempty"`
	IsEmailVerified bool     `json:"isEmailVerified"`
	IsActive        bool     `json:"isActive"`
	LastLoginAt     *string  `json:"lastLoginAt,omitempty"`
	CreatedAt       string   `json:"createdAt"`
	CreatedBy       string   `json:"createdBy,omitempty"`
	UpdatedAt       *string  `json:"updatedAt,omitempty"`
	UpdatedBy       string   `json:"updatedBy,omitempty"`
	Roles           []string `json:"roles"`
}

type roleResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"createdAt"`
	UserCount   *int64 `json:"userCount,omitempty"`
}

type sessionResponse struct {
	AccessToken           string       `json:"accessToken"`
	AccessTokenExpiresAt  string       `json:"accessTokenExpiresAt"`
	RefreshToken          string       `json:"refreshToken"`
	RefreshTokenExpiresAt string       `json:"refreshTokenExpiresAt"`
	User                  userResponse `json:"user"`
}

type userPageResponse struct {
	Items      []userResponse `json:"items"`
	TotalCount int64          `json:"totalCount"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalPages int            `json:"totalPages"`
}

type bulkAssignmentResponse struct {
	TotalUsers            int            `json:"totalUsers"`
	SuccessfulAssignments int            `json:"successfulAssignments"`
	FailedAssignments     int            `json:"failedAssignments"`
	Errors                []string       `json:"errors,omitempty"`
	UpdatedUsers          []userResponse `json:"updatedUsers"`
}

type auditResponse struct {
	ID            string          `json:"id"`
	EntityType    string          `json:"entityType"`
	EntityKey     string          `json:"entityKey"`
	Action        string          `json:"action"`
	Description   string          `json:"description"`
	OldValues     json.RawMessage `json:"oldValues,omitempty"`
	NewValues     json.RawMessage `json:"newValues,omitempty"`
	ChangedFields []string        `json:"changedFields,omitempty"`
	CreatedAt     string          `json:"createdAt"`
	CreatedBy     string          `json:"createdBy"`
	ClientIP      string          `json:"clientIp,omitempty"`
	ClientAgent   string          `json:"clientAgent,omitempty"`
	Client        string          `json:"client,omitempty"`
}

type auditSummaryResponse struct {
	From          *string        `json:"from,omitempty"`
	To            *string        `json:"to,omitempty"`
	TotalActions  int            `json:"totalActions"`
	UserCreations int            `json:"userCreations"`
	UserUpdates   int            `json:"userUpdates"`
	UserDeletions int            `json:"userDeletions"`
	LoginAttempts int            `json:"loginAttempts"`
	ActionsByType map[string]int `json:"actionsByType"`
	ActionsByUser map[string]int `json:"actionsByUser"`
}

func toUserResponse(u domain.UserWithRoles) userResponse {
	return userResponse{
		ID:              u.ID,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		FullName:        u.FullName(),
		Email:           u.Email,
		PhoneNumber:     u.PhoneNumber,
		IsEmailVerified: u.IsEmailVerified,
		IsActive:        u.IsActive,
		LastLoginAt:     formatTimePtr(u.LastLoginAt),
		CreatedAt:       formatTime(u.CreatedAt),
		CreatedBy:       u.CreatedBy,
		UpdatedAt:       formatTimePtr(u.UpdatedAt),
		UpdatedBy:       u.UpdatedBy,
		Roles:           u.RoleNames(),
	}
}

func toUserResponses(users []domain.UserWithRoles) []userResponse {
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return out
}

func toRoleResponse(r domain.Role) roleResponse {
	return roleResponse{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		CreatedAt:   formatTime(r.CreatedAt),
	}
}

func toSessionResponse(s domain.Session) sessionResponse {
	return sessionResponse{
		AccessToken:           s.AccessToken,
		AccessTokenExpiresAt:  formatTime(s.AccessTokenExpiresAt),
		RefreshToken:          s.RefreshToken,
		RefreshTokenExpiresAt: formatTime(s.RefreshTokenExpiresAt),
		User:                  toUserResponse(s.User),
	}
}

func toUserPageResponse(p domain.UserPage) userPageResponse {
	return userPageResponse{
		Items:      toUserResponses(p.Items),
		TotalCount: p.TotalCount,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: p.TotalPages(),
	}
}

func toAuditResponses(activities []domain.AuditActivity) []auditResponse {
	out := make([]auditResponse, 0, len(activities))
	for _, a := range activities {
		out = append(out, auditResponse{
			ID:            a.ID,
			EntityType:    a.EntityType,
			EntityKey:     a.EntityKey,
			Action:        string(a.Action),
			Description:   a.Description,
			OldValues:     a.OldValues,
			NewValues:     a.NewValues,
			ChangedFields: a.Changed(),
			CreatedAt:     formatTime(a.CreatedAt),
			CreatedBy:     a.CreatedBy,
			ClientIP:      a.ClientIP,
			ClientAgent:   a.ClientAgent,
			Client:        a.Client,
		})
	}
	return out
}

func toAuditSummaryResponse(s domain.AuditSummary) auditSummaryResponse {
	return auditSummaryResponse{
		From:          formatTimePtr(s.From),
		To:            formatTimePtr(s.To),
		TotalActions:  s.TotalActions,
		UserCreations: s.UserCreations,
		UserUpdates:   s.UserUpdates,
		UserDeletions: s.UserDeletions,
		LoginAttempts: s.LoginAttempts,
		ActionsByType: s.ActionsByType,
		ActionsByUser: s.ActionsByUser,
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
