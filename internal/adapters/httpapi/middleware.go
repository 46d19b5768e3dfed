package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
)

type ctxKey string

const claimsCtxKey ctxKey = "access_claims"

// clientInfo records the caller's address and user agent as an anonymous actor.
func (h *Handler) clientInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := domain.WithActor(r.Context(), domain.Actor{IP: clientIP(r), Agent: r.UserAgent()})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAuth verifies the bearer access token and makes its subject the actor.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeFailure(w, http.StatusUnauthorized, "", "Unauthorized")
			return
		}
		claims, err := h.signer.Verify(token)
		if err != nil {
			writeFailure(w, http.StatusUnauthorized, "", "Unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), claimsCtxKey, claims)
		actor := domain.ActorFrom(ctx)
		actor.ID = claims.UserID
		ctx = domain.WithActor(ctx, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := claimsFrom(r.Context())
			if !ok || !claims.HasRole(role) {
				writeFailure(w, http.StatusForbidden, "", "Forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func claimsFrom(ctx context.Context) (domain.AccessClaims, bool) {
	claims, ok := ctx.Value(claimsCtxKey).(domain.AccessClaims)
	return claims, ok
}

// selfOrAdmin reports whether the caller may act on userID's account.
func selfOrAdmin(ctx context.Context, userID string) bool {
	claims, ok := claimsFrom(ctx)
	if !ok {
		return false
	}
	return claims.UserID == userID || claims.HasRole(domain.RoleAdmin)
}

func bearerToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
