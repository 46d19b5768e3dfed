package domain

import "time"

// AccessClaims is the identity carried by a signed access token.
type AccessClaims struct {
	UserID    string
	Email     string
	Name      string
	Roles     []string
	ExpiresAt time.Time
}

func (c AccessClaims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}

// Session is returned by register, login and refresh.
type Session struct {
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
	User                  UserWithRoles
}
