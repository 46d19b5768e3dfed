package usecase_test

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/identityapi/internal/core/changeset"
	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueStagesUniqueOpaqueTokens(t *testing.T) {
	f := newFixture(t)
	ctx := anonymous()
	session := f.register(t, ctx, "Ada", "ada@example.com")

	uow := f.newUoW()
	a, err := f.lifecycle.Issue(ctx, uow, session.User.ID, "10.0.0.2", time.Hour)
	require.NoError(t, err)
	b, err := f.lifecycle.Issue(ctx, uow, session.User.ID, "10.0.0.2", 0)
	require.NoError(t, err)
	assert.Zero(t, a.ID, "id is assigned on insert")

	_, err = uow.Commit(ctx)
	require.NoError(t, err)
	assert.NotZero(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.Token, b.Token)

	raw, err := base64.RawURLEncoding.DecodeString(a.Token)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
	assert.Equal(t, fixedNow.Add(time.Hour), a.ExpiresAt)
	assert.Equal(t, fixedNow.Add(7*24*time.Hour), b.ExpiresAt)
	assert.Equal(t, "10.0.0.2", a.CreatedByIP)
}

func TestAuthenticateAcceptsOnlyActiveTokens(t *testing.T) {
	f := newFixture(t)
	ctx := anonymous()
	session := f.register(t, ctx, "Ada", "ada@example.com")

	token, err := f.lifecycle.Authenticate(ctx, session.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, token.UserID)

	expiry := domain.WithTime(ctx, session.RefreshTokenExpiresAt)
	_, err = f.lifecycle.Authenticate(expiry, session.RefreshToken)
	require.ErrorIs(t, err, domain.ErrInvalidToken, "a token is expired at its expiry instant")

	_, err = f.lifecycle.GetByToken(ctx, "")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRevokeAllForUserOnlyTouchesActiveTokens(t *testing.T) {
	f := newFixture(t)
	ctx := anonymous()
	session := f.register(t, ctx, "Ada", "ada@example.com")
	_, err := f.auth.Refresh(ctx, session.RefreshToken)
	require.NoError(t, err)

	uow := f.newUoW()
	n, err := f.lifecycle.RevokeAllForUser(ctx, uow, session.User.ID, "10.0.0.3", domain.RevokeReasonLogout)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = uow.Commit(ctx)
	require.NoError(t, err)

	rotated, err := f.tokens.FindByToken(context.Background(), session.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, domain.RevokeReasonReplaced, rotated.ReasonRevoked, "already revoked tokens keep their reason")
}

func TestRevokeAllForUserRevokesEverySessionOfThatUserOnly(t *testing.T) {
	f := newFixture(t)
	ctx := anonymous()
	ada := f.register(t, ctx, "Ada", "ada@example.com")
	bob := f.register(t, ctx, "Bob", "bob@example.com")

	uow := f.newUoW()
	for range 2 {
		_, err := f.lifecycle.Issue(ctx, uow, ada.User.ID, "10.0.0.2", 0)
		require.NoError(t, err)
	}
	_, err := uow.Commit(ctx)
	require.NoError(t, err)

	active, err := f.tokens.ListActiveByUser(ctx, ada.User.ID, fixedNow)
	require.NoError(t, err)
	require.Len(t, active, 3)

	uow = f.newUoW()
	n, err := f.lifecycle.RevokeAllForUser(ctx, uow, ada.User.ID, "10.0.0.3", domain.RevokeReasonLogout)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	_, err = uow.Commit(ctx)
	require.NoError(t, err)

	active, err = f.tokens.ListActiveByUser(ctx, ada.User.ID, fixedNow)
	require.NoError(t, err)
	assert.Empty(t, active)
	others, err := f.tokens.ListActiveByUser(ctx, bob.User.ID, fixedNow)
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.Equal(t, bob.RefreshToken, others[0].Token)
}

func TestConcurrentRotationsOfOneTokenLetOnlyTheFirstCommit(t *testing.T) {
	f := newFixture(t)
	ctx := anonymous()
	session := f.register(t, ctx, "Ada", "ada@example.com")

	first, second := f.newUoW(), f.newUoW()
	nextA, err := f.lifecycle.Rotate(ctx, first, session.RefreshToken, "10.0.0.4", domain.RevokeReasonReplaced)
	require.NoError(t, err)
	nextB, err := f.lifecycle.Rotate(ctx, second, session.RefreshToken, "10.0.0.5", domain.RevokeReasonReplaced)
	require.NoError(t, err)

	_, err = first.Commit(ctx)
	require.NoError(t, err)
	_, err = second.Commit(ctx)
	require.ErrorIs(t, err, domain.ErrConflict)
	var commitErr *changeset.CommitError
	require.True(t, errors.As(err, &commitErr))

	old, err := f.tokens.FindByToken(ctx, session.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, nextA.Token, old.ReplacedByToken)
	assert.Equal(t, "10.0.0.4", old.RevokedByIP)

	active, err := f.tokens.ListActiveByUser(ctx, session.User.ID, fixedNow)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, nextA.Token, active[0].Token)

	_, err = f.tokens.FindByToken(ctx, nextB.Token)
	require.ErrorIs(t, err, domain.ErrNotFound, "the losing successor is rolled back")
}
