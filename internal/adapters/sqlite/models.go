package sqlite

import (
	"encoding/json"
	"time"

	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
)

type userModel struct {
	ID              string     `gorm:"column:id;primaryKey"`
	FirstName       string     `gorm:"column:first_name;not null"`
	LastName        string     `gorm:"column:last_name;not null"`
	Email           string     `gorm:"column:email;not null"`
	PasswordHash    string     `gorm:"column:password_hash;not null"`
	PhoneNumber     string     `gorm:"column:phone_number;not null"`
	IsEmailVerified bool       `gorm:"column:is_email_verified;not null"`
	IsActive        bool       `gorm:"column:is_active;not null"`
	LastLoginAt     *time.Time `gorm:"column:last_login_at"`
	CreatedAt       time.Time  `gorm:"column:created_at;not null;autoCreateTime:false"`
	CreatedBy       string     `gorm:"column:created_by;not null"`
	UpdatedAt       *time.Time `gorm:"column:updated_at;autoUpdateTime:false"`
	UpdatedBy       string     `gorm:"column:updated_by;not null"`
	IsDeleted       bool       `gorm:"column:is_deleted;not null"`
	DeletedAt       *time.Time `gorm:"column:deleted_at"`
	DeletedBy       string     `gorm:"column:deleted_by;not null"`
}

func (userModel) TableName() string {
	return "users"
}

func toUserModel(u *domain.User) userModel {
	return userModel{
		ID:              u.ID,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Email:           u.Email,
		PasswordHash:    u.PasswordHash,
		PhoneNumber:     u.PhoneNumber,
		IsEmailVerified: u.IsEmailVerified,
		IsActive:        u.IsActive,
		LastLoginAt:     utcPtr(u.LastLoginAt),
		CreatedAt:       u.CreatedAt.UTC(),
		CreatedBy:       u.CreatedBy,
		UpdatedAt:       utcPtr(u.UpdatedAt),
		UpdatedBy:       u.UpdatedBy,
		IsDeleted:       u.IsDeleted,
		DeletedAt:       utcPtr(u.DeletedAt),
		DeletedBy:       u.DeletedBy,
	}
}

func (m userModel) columns() map[string]any {
	return map[string]any{
		"first_name":        m.FirstName,
		"last_name":         m.LastName,
		"email":             m.Email,
		"password_hash":     m.PasswordHash,
		"phone_number":      m.PhoneNumber,
		"is_email_verified": m.IsEmailVerified,
		"is_active":         m.IsActive,
		"last_login_at":     m.LastLoginAt,
		"updated_at":        m.UpdatedAt,
		"updated_by":        m.UpdatedBy,
		"is_deleted":        m.IsDeleted,
		"deleted_at":        m.DeletedAt,
		"deleted_by":        m.DeletedBy,
	}
}

func (m userModel) toDomain() *domain.User {
	return &domain.User{
		ID:              m.ID,
		FirstName:       m.FirstName,
		LastName:        m.LastName,
		Email:           m.Email,
		PasswordHash:    m.PasswordHash,
		PhoneNumber:     m.PhoneNumber,
		IsEmailVerified: m.IsEmailVerified,
		IsActive:        m.IsActive,
		LastLoginAt:     utcPtr(m.LastLoginAt),
		AuditStamp: domain.AuditStamp{
			CreatedAt: m.CreatedAt.UTC(),
			CreatedBy: m.CreatedBy,
			UpdatedAt: utcPtr(m.UpdatedAt),
			UpdatedBy: m.UpdatedBy,
		},
		SoftDelete: domain.SoftDelete{
			IsDeleted: m.IsDeleted,
			DeletedAt: utcPtr(m.DeletedAt),
			DeletedBy: m.DeletedBy,
		},
	}
}

type roleModel struct {
	ID          string     `gorm:"column:id;primaryKey"`
	Name        string     `gorm:"column:name;not null"`
	Description string     `gorm:"column:description;not null"`
	CreatedAt   time.Time  `gorm:"column:created_at;not null;autoCreateTime:false"`
	CreatedBy   string     `gorm:"column:created_by;not null"`
	UpdatedAt   *time.Time `gorm:"column:updated_at;autoUpdateTime:false"`
	UpdatedBy   string     `gorm:"column:updated_by;not null"`
	IsDeleted   bool       `gorm:"column:is_deleted;not null"`
	DeletedAt   *time.Time `gorm:"column:deleted_at"`
	DeletedBy   string     `gorm:"column:deleted_by;not null"`
}

func (roleModel) TableName() string {
	return "roles"
}

func toRoleModel(r *domain.Role) roleModel {
	return roleModel{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		CreatedAt:   r.CreatedAt.UTC(),
		CreatedBy:   r.CreatedBy,
		UpdatedAt:   utcPtr(r.UpdatedAt),
		UpdatedBy:   r.UpdatedBy,
		IsDeleted:   r.IsDeleted,
		DeletedAt:   utcPtr(r.DeletedAt),
		DeletedBy:   r.DeletedBy,
	}
}

func (m roleModel) columns() map[string]any {
	return map[string]any{
		"name":        m.Name,
		"description": m.Description,
		"updated_at":  m.UpdatedAt,
		"updated_by":  m.UpdatedBy,
		"is_deleted":  m.IsDeleted,
		"deleted_at":  m.DeletedAt,
		"deleted_by":  m.DeletedBy,
	}
}

func (m roleModel) toDomain() *domain.Role {
	return &domain.Role{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		AuditStamp: domain.AuditStamp{
			CreatedAt: m.CreatedAt.UTC(),
			CreatedBy: m.CreatedBy,
			UpdatedAt: utcPtr(m.UpdatedAt),
			UpdatedBy: m.UpdatedBy,
		},
		SoftDelete: domain.SoftDelete{
			IsDeleted: m.IsDeleted,
			DeletedAt: utcPtr(m.DeletedAt),
			DeletedBy: m.DeletedBy,
		},
	}
}

type userRoleModel struct {
	UserID     string    `gorm:"column:user_id;primaryKey"`
	RoleID     string    `gorm:"column:role_id;primaryKey"`
	AssignedAt time.Time `gorm:"column:assigned_at;not null"`
}

func (userRoleModel) TableName() string {
	return "user_roles"
}

func (m userRoleModel) toDomain() *domain.UserRole {
	return &domain.UserRole{UserID: m.UserID, RoleID: m.RoleID, AssignedAt: m.AssignedAt.UTC()}
}

type refreshTokenModel struct {
	ID              int64      `gorm:"column:id;primaryKey;autoIncrement"`
	Token           string     `gorm:"column:token;not null"`
	UserID          string     `gorm:"column:user_id;not null"`
	ExpiresAt       time.Time  `gorm:"column:expires_at;not null"`
	CreatedByIP     string     `gorm:"column:created_by_ip;not null"`
	RevokedAt       *time.Time `gorm:"column:revoked_at"`
	RevokedByIP     string     `gorm:"column:revoked_by_ip;not null"`
	ReasonRevoked   string     `gorm:"column:reason_revoked;not null"`
	ReplacedByToken string     `gorm:"column:replaced_by_token;not null"`
	CreatedAt       time.Time  `gorm:"column:created_at;not null;autoCreateTime:false"`
	CreatedBy       string     `gorm:"column:created_by;not null"`
	UpdatedAt       *time.Time `gorm:"column:updated_at;autoUpdateTime:false"`
	UpdatedBy       string     `gorm:"column:updated_by;not null"`
	IsDeleted       bool       `gorm:"column:is_deleted;not null"`
	DeletedAt       *time.Time `gorm:"column:deleted_at"`
	DeletedBy       string     `gorm:"column:deleted_by;not null"`
}

func (refreshTokenModel) TableName() string {
	return "refresh_tokens"
}

func toRefreshTokenModel(t *domain.RefreshToken) refreshTokenModel {
	return refreshTokenModel{
		ID:              t.ID,
		Token:           t.Token,
		UserID:          t.UserID,
		ExpiresAt:       t.ExpiresAt.UTC(),
		CreatedByIP:     t.CreatedByIP,
		RevokedAt:       utcPtr(t.RevokedAt),
		RevokedByIP:     t.RevokedByIP,
		ReasonRevoked:   t.ReasonRevoked,
		ReplacedByToken: t.ReplacedByToken,
		CreatedAt:       t.CreatedAt.UTC(),
		CreatedBy:       t.CreatedBy,
		UpdatedAt:       utcPtr(t.UpdatedAt),
		UpdatedBy:       t.UpdatedBy,
		IsDeleted:       t.IsDeleted,
		DeletedAt:       utcPtr(t.DeletedAt),
		DeletedBy:       t.DeletedBy,
	}
}

func (m refreshTokenModel) columns() map[string]any {
	return map[string]any{
		"token":             m.Token,
		"user_id":           m.UserID,
		"expires_at":        m.ExpiresAt,
		"created_by_ip":     m.CreatedByIP,
		"revoked_at":        m.RevokedAt,
		"revoked_by_ip":     m.RevokedByIP,
		"reason_revoked":    m.ReasonRevoked,
		"replaced_by_token": m.ReplacedByToken,
		"updated_at":        m.UpdatedAt,
		"updated_by":        m.UpdatedBy,
		"is_deleted":        m.IsDeleted,
		"deleted_at":        m.DeletedAt,
		"deleted_by":        m.DeletedBy,
	}
}

func (m refreshTokenModel) toDomain() *domain.RefreshToken {
	return &domain.RefreshToken{
		ID:              m.ID,
		Token:           m.Token,
		UserID:          m.UserID,
		ExpiresAt:       m.ExpiresAt.UTC(),
		CreatedByIP:     m.CreatedByIP,
		RevokedAt:       utcPtr(m.RevokedAt),
		RevokedByIP:     m.RevokedByIP,
		ReasonRevoked:   m.ReasonRevoked,
		ReplacedByToken: m.ReplacedByToken,
		AuditStamp: domain.AuditStamp{
			CreatedAt: m.CreatedAt.UTC(),
			CreatedBy: m.CreatedBy,
			UpdatedAt: utcPtr(m.UpdatedAt),
			UpdatedBy: m.UpdatedBy,
		},
		SoftDelete: domain.SoftDelete{
			IsDeleted: m.IsDeleted,
			DeletedAt: utcPtr(m.DeletedAt),
			DeletedBy: m.DeletedBy,
		},
	}
}

type auditEntryModel struct {
	ID            string    `gorm:"column:id;primaryKey"`
	EntityType    string    `gorm:"column:entity_type;not null"`
	EntityKey     string    `gorm:"column:entity_key;not null"`
	Action        string    `gorm:"column:action;not null"`
	OldValues     *string   `gorm:"column:old_values"`
	NewValues     *string   `gorm:"column:new_values"`
	ChangedFields *string   `gorm:"column:changed_fields"`
	CreatedAt     time.Time `gorm:"column:created_at;not null;autoCreateTime:false"`
	CreatedBy     string    `gorm:"column:created_by;not null"`
	ClientIP      string    `gorm:"column:client_ip;not null"`
	ClientAgent   string    `gorm:"column:client_agent;not null"`
}

func (auditEntryModel) TableName() string {
	return "audit_entries"
}

func toAuditEntryModel(e domain.AuditEntry) auditEntryModel {
	return auditEntryModel{
		ID:            e.ID,
		EntityType:    e.EntityType,
		EntityKey:     e.EntityKey,
		Action:        string(e.Action),
		OldValues:     nullableJSON(e.OldValues),
		NewValues:     nullableJSON(e.NewValues),
		ChangedFields: nullableJSON(e.ChangedFields),
		CreatedAt:     e.CreatedAt.UTC(),
		CreatedBy:     e.CreatedBy,
		ClientIP:      e.ClientIP,
		ClientAgent:   e.ClientAgent,
	}
}

func (m auditEntryModel) toDomain() domain.AuditEntry {
	return domain.AuditEntry{
		ID:            m.ID,
		EntityType:    m.EntityType,
		EntityKey:     m.EntityKey,
		Action:        domain.AuditAction(m.Action),
		OldValues:     rawJSON(m.OldValues),
		NewValues:     rawJSON(m.NewValues),
		ChangedFields: rawJSON(m.ChangedFields),
		CreatedAt:     m.CreatedAt.UTC(),
		CreatedBy:     m.CreatedBy,
		ClientIP:      m.ClientIP,
		ClientAgent:   m.ClientAgent,
	}
}

type outboxEventModel struct {
	ID            int64      `gorm:"column:id;primaryKey;autoIncrement"`
	EventID       string     `gorm:"column:event_id;not null"`
	Topic         string     `gorm:"column:topic;not null"`
	PayloadJSON   string     `gorm:"column:payload_json;not null"`
	Status        string     `gorm:"column:status;not null"`
	Attempts      int        `gorm:"column:attempts;not null"`
	NextAttemptAt time.Time  `gorm:"column:next_attempt_at;not null"`
	LastError     string     `gorm:"column:last_error;not null"`
	CreatedAt     time.Time  `gorm:"column:created_at;not null;autoCreateTime:false"`
	DispatchedAt  *time.Time `gorm:"column:dispatched_at"`
}

func (outboxEventModel) TableName() string {
	return "outbox_events"
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func nullableJSON(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	s := string(raw)
	return &s
}

func rawJSON(s *string) json.RawMessage {
	if s == nil {
		return nil
	}
	return json.RawMessage(*s)
}
