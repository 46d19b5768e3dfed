package domain

import "time"

const (
	RevokeReasonNewLogin = "Revoked due to new login"
	RevokeReasonReplaced = "Replaced by new token"
	RevokeReasonLogout   = "Logged out"
	RevokeReasonDeleted  = "User deleted"
	RevokeReasonDisabled = "User deactivated"
)

// RefreshToken is a long-lived bearer credential. ID is assigned by the
// store on insert.
type RefreshToken struct {
	ID              int64
	Token           string
	UserID          string
	ExpiresAt       time.Time
	CreatedByIP     string
	RevokedAt       *time.Time
	RevokedByIP     string
	ReasonRevoked   string
	ReplacedByToken string
	AuditStamp
	SoftDelete
}

func (RefreshToken) EntityName() string { return "RefreshToken" }

func (t RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

func (t RefreshToken) IsActive(now time.Time) bool {
	return !t.IsRevoked() && !t.IsExpired(now)
}

// WasRotated reports whether the token was revoked in favour of a successor.
func (t RefreshToken) WasRotated() bool {
	return t.IsRevoked() && t.ReplacedByToken != ""
}

func (t *RefreshToken) Revoke(at time.Time, ip, reason, replacedBy string) {
	at = at.UTC()
	t.RevokedAt = &at
	t.RevokedByIP = ip
	t.ReasonRevoked = reason
	t.ReplacedByToken = replacedBy
}
