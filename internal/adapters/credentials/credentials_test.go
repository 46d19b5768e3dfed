package credentials

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
	"github.com/atvirokodosprendimai/identityapi/internal/core/ports"
)

var (
	_ ports.PasswordHasher    = (*BcryptHasher)(nil)
	_ ports.AccessTokenSigner = (*JWTSigner)(nil)
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestBcryptHasherRoundTrip(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("Secr3t!pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "Secr3t!pass" {
		t.Fatal("hash must not equal the password")
	}
	if !h.Verify("Secr3t!pass", hash) {
		t.Fatal("expected password to verify")
	}
	if h.Verify("wrong", hash) {
		t.Fatal("expected wrong password to be rejected")
	}
	if h.Verify("Secr3t!pass", "") {
		t.Fatal("expected empty hash to be rejected")
	}
}

func TestBcryptHasherClampsCost(t *testing.T) {
	if got := NewBcryptHasher(99).cost; got != bcrypt.DefaultCost {
		t.Fatalf("cost = %d, want %d", got, bcrypt.DefaultCost)
	}
}

func TestNewJWTSignerRejectsShortSecret(t *testing.T) {
	if _, err := NewJWTSigner("short", "identityapi", "identityapi"); err == nil {
		t.Fatal("expected error for short secret")
	}
}

func TestJWTSignAndVerify(t *testing.T) {
	s, err := NewJWTSigner(testSecret, "identityapi", "identityapi-clients")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	exp := time.Now().Add(15 * time.Minute).UTC().Truncate(time.Second)

	tok, err := s.Sign(domain.AccessClaims{
		UserID:    "u-1",
		Email:     "ada@example.com",
		Name:      "Ada Lovelace",
		Roles:     []string{"Admin", "User"},
		ExpiresAt: exp,
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if strings.Count(tok.Token, ".") != 2 {
		t.Fatalf("token %q is not a compact JWT", tok.Token)
	}

	claims, err := s.Verify(tok.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "u-1" || claims.Email != "ada@example.com" || claims.Name != "Ada Lovelace" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if !claims.HasRole("Admin") || !claims.HasRole("User") {
		t.Fatalf("roles = %v", claims.Roles)
	}
	if !claims.ExpiresAt.Equal(exp) {
		t.Fatalf("expires = %v, want %v", claims.ExpiresAt, exp)
	}
}

func TestJWTVerifyRejects(t *testing.T) {
	s, _ := NewJWTSigner(testSecret, "identityapi", "identityapi-clients")
	other, _ := NewJWTSigner(strings.Repeat("x", 32), "identityapi", "identityapi-clients")
	otherAudience, _ := NewJWTSigner(testSecret, "identityapi", "somebody-else")

	valid := domain.AccessClaims{UserID: "u-1", ExpiresAt: time.Now().Add(time.Minute)}
	expired := domain.AccessClaims{UserID: "u-1", ExpiresAt: time.Now().Add(-time.Hour)}

	foreign, _ := other.Sign(valid)
	wrongAud, _ := otherAudience.Sign(valid)
	stale, _ := s.Sign(expired)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, AccessTokenClaims{UserID: "u-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	cases := map[string]string{
		"empty":          "",
		"garbage":        "not-a-token",
		"wrong key":      foreign.Token,
		"wrong audience": wrongAud.Token,
		"expired":        stale.Token,
		"alg none":       none,
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Verify(tok); !errors.Is(err, domain.ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}
