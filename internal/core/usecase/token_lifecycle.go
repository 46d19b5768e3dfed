package usecase

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
	"github.com/atvirokodosprendimai/identityapi/internal/core/ports"
)

const (
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
	refreshTokenBytes      = 32
)

// TokenLifecycle issues, rotates and revokes refresh tokens. Mutations are
// staged into the caller's unit of work; the caller commits.
type TokenLifecycle struct {
	tokens  ports.RefreshTokenRepository
	metrics ports.SecurityMetrics
	logger  *slog.Logger
	ttl     time.Duration
}

func NewTokenLifecycle(tokens ports.RefreshTokenRepository, metrics ports.SecurityMetrics, logger *slog.Logger, ttl time.Duration) *TokenLifecycle {
	if ttl <= 0 {
		ttl = DefaultRefreshTokenTTL
	}
	if metrics == nil {
		metrics = ports.NopSecurityMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenLifecycle{tokens: tokens, metrics: metrics, logger: logger, ttl: ttl}
}

// Issue stages a new token for userID. A non-positive ttl uses the
// lifecycle default.
func (l *TokenLifecycle) Issue(ctx context.Context, uow ports.UnitOfWork, userID, ip string, ttl time.Duration) (*domain.RefreshToken, error) {
	if ttl <= 0 {
		ttl = l.ttl
	}
	value, err := newTokenValue()
	if err != nil {
		return nil, err
	}
	token := &domain.RefreshToken{
		Token:       value,
		UserID:      userID,
		ExpiresAt:   domain.Now(ctx).Add(ttl),
		CreatedByIP: ip,
	}
	if err := uow.Add(token); err != nil {
		return nil, fmt.Errorf("stage refresh token: %w", err)
	}
	return token, nil
}

// Rotate revokes the presented token in favour of a freshly issued one for
// the same user. Both changes land in the same commit.
func (l *TokenLifecycle) Rotate(ctx context.Context, uow ports.UnitOfWork, oldValue, ip, reason string) (*domain.RefreshToken, error) {
	current, err := l.Authenticate(ctx, oldValue)
	if err != nil {
		return nil, err
	}
	if err := uow.Attach(current); err != nil {
		return nil, fmt.Errorf("attach refresh token: %w", err)
	}

	next, err := l.Issue(ctx, uow, current.UserID, ip, 0)
	if err != nil {
		return nil, err
	}
	current.Revoke(domain.Now(ctx), ip, reason, next.Token)
	if err := uow.Update(current); err != nil {
		return nil, fmt.Errorf("stage revoked token: %w", err)
	}
	return next, nil
}

// RevokeAllForUser stages the revocation of every active token of userID and
// returns how many were revoked.
func (l *TokenLifecycle) RevokeAllForUser(ctx context.Context, uow ports.UnitOfWork, userID, ip, reason string) (int, error) {
	now := domain.Now(ctx)
	active, err := l.tokens.ListActiveByUser(ctx, userID, now)
	if err != nil {
		return 0, err
	}
	for _, token := range active {
		if err := uow.Attach(token); err != nil {
			return 0, fmt.Errorf("attach refresh token: %w", err)
		}
		token.Revoke(now, ip, reason, "")
		if err := uow.Update(token); err != nil {
			return 0, fmt.Errorf("stage revoked token: %w", err)
		}
	}
	return len(active), nil
}

func (l *TokenLifecycle) GetByToken(ctx context.Context, value string) (*domain.RefreshToken, error) {
	if value == "" {
		return nil, domain.ErrNotFound
	}
	return l.tokens.FindByToken(ctx, value)
}

// Authenticate returns the token only while it is active.
func (l *TokenLifecycle) Authenticate(ctx context.Context, value string) (*domain.RefreshToken, error) {
	token, err := l.GetByToken(ctx, value)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if token.IsActive(domain.Now(ctx)) {
		return token, nil
	}
	if token.WasRotated() {
		l.metrics.TokenReuseDetected()
		l.logger.WarnContext(ctx, "rotated refresh token presented again",
			"user_id", token.UserID,
			"token_id", token.ID,
			"client_ip", domain.ActorFrom(ctx).IP,
		)
	}
	return nil, domain.ErrInvalidToken
}

func newTokenValue() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
