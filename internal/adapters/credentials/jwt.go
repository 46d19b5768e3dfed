package credentials

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
)

// AccessTokenClaims is the JWT payload of an access token.
type AccessTokenClaims struct {
	UserID string   `json:"user_id"`
	Email  string   `json:"email"`
	Name   string   `json:"name"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// JWTSigner signs and verifies HS256 access tokens.
type JWTSigner struct {
	signingKey []byte
	issuer     string
	audience   string
	leeway     time.Duration
}

func NewJWTSigner(secret, issuer, audience string) (*JWTSigner, error) {
	if len(secret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 bytes")
	}
	return &JWTSigner{
		signingKey: []byte(secret),
		issuer:     issuer,
		audience:   audience,
		leeway:     30 * time.Second,
	}, nil
}

// Sign issues a token expiring at claims.ExpiresAt.
func (s *JWTSigner) Sign(claims domain.AccessClaims) (domain.AccessToken, error) {
	if claims.ExpiresAt.IsZero() {
		return domain.AccessToken{}, errors.New("access token expiry is required")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessTokenClaims{
		UserID: claims.UserID,
		Email:  claims.Email,
		Name:   claims.Name,
		Roles:  claims.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.UserID,
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return domain.AccessToken{}, fmt.Errorf("sign access token: %w", err)
	}
	return domain.AccessToken{Token: signed, ExpiresAt: claims.ExpiresAt}, nil
}

// Verify checks the signature, algorithm, issuer, audience and expiry.
func (s *JWTSigner) Verify(tokenString string) (domain.AccessClaims, error) {
	if tokenString == "" {
		return domain.AccessClaims{}, domain.ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &AccessTokenClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.leeway),
	)
	if err != nil || !parsed.Valid {
		return domain.AccessClaims{}, domain.ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*AccessTokenClaims)
	if !ok || claims.UserID == "" {
		return domain.AccessClaims{}, domain.ErrInvalidToken
	}
	out := domain.AccessClaims{
		UserID: claims.UserID,
		Email:  claims.Email,
		Name:   claims.Name,
		Roles:  claims.Roles,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return out, nil
}
