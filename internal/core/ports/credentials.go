package ports

import "github.com/atvirokodosprendimai/identityapi/internal/core/domain"

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

type AccessTokenSigner interface {
	Sign(claims domain.AccessClaims) (domain.AccessToken, error)
	Verify(token string) (domain.AccessClaims, error)
}
