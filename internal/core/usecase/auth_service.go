package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
	"github.com/atvirokodosprendimai/identityapi/internal/core/ports"
	"github.com/google/uuid"
)

const DefaultAccessTokenTTL = 15 * time.Minute

type RegisterInput struct {
	FirstName   string
	LastName    string
	Email       string
	Password    string
	PhoneNumber string
}

type AuthService struct {
	newUnitOfWork ports.UnitOfWorkFactory
	users         ports.UserRepository
	roles         ports.RoleRepository
	lifecycle     *TokenLifecycle
	hasher        ports.PasswordHasher
	signer        ports.AccessTokenSigner
	metrics       ports.SecurityMetrics
	logger        *slog.Logger
	accessTTL     time.Duration
}

type AuthServiceDeps struct {
	UnitOfWork ports.UnitOfWorkFactory
	Users      ports.UserRepository
	Roles      ports.RoleRepository
	Lifecycle  *TokenLifecycle
	Hasher     ports.PasswordHasher
	Signer     ports.AccessTokenSigner
	Metrics    ports.SecurityMetrics
	Logger     *slog.Logger
	AccessTTL  time.Duration
}

func NewAuthService(deps AuthServiceDeps) *AuthService {
	s := &AuthService{
		newUnitOfWork: deps.UnitOfWork,
		users:         deps.Users,
		roles:         deps.Roles,
		lifecycle:     deps.Lifecycle,
		hasher:        deps.Hasher,
		signer:        deps.Signer,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		accessTTL:     deps.AccessTTL,
	}
	if s.metrics == nil {
		s.metrics = ports.NopSecurityMetrics{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.accessTTL <= 0 {
		s.accessTTL = DefaultAccessTokenTTL
	}
	return s
}

// Register creates an active user with the default role and opens a session.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (domain.Session, error) {
	email := domain.NormalizeEmail(in.Email)
	taken, err := s.users.EmailTaken(ctx, email)
	if err != nil {
		return domain.Session{}, err
	}
	if taken {
		return domain.Session{}, fmt.Errorf("email %s: %w", email, domain.ErrAlreadyExists)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return domain.Session{}, fmt.Errorf("hash password: %w", err)
	}
	role, err := s.roles.FindByName(ctx, domain.RoleUser)
	if err != nil {
		return domain.Session{}, fmt.Errorf("load default role: %w", err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        email,
		PasswordHash: hash,
		PhoneNumber:  strings.TrimSpace(in.PhoneNumber),
		IsActive:     true,
	}

	uow := s.newUnitOfWork()
	if err := uow.Add(user); err != nil {
		return domain.Session{}, err
	}
	if err := uow.Add(&domain.UserRole{UserID: user.ID, RoleID: role.ID, AssignedAt: domain.Now(ctx)}); err != nil {
		return domain.Session{}, err
	}
	refresh, err := s.lifecycle.Issue(ctx, uow, user.ID, domain.ActorFrom(ctx).IP, 0)
	if err != nil {
		return domain.Session{}, err
	}
	if _, err := uow.Commit(ctx); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return domain.Session{}, fmt.Errorf("email %s: %w: %w", email, domain.ErrAlreadyExists, err)
		}
		return domain.Session{}, fmt.Errorf("register user: %w", err)
	}

	s.metrics.UserRegistered()
	s.metrics.TokenIssued()
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return s.session(ctx, domain.UserWithRoles{User: *user, Roles: []domain.Role{*role}}, refresh)
}

// Login verifies credentials, ends every other session of the user and opens
// a new one. Unknown, inactive and deleted users all fail the same way.
func (s *AuthService) Login(ctx context.Context, email, password string) (domain.Session, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		s.metrics.LoginFailed()
		return domain.Session{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return domain.Session{}, err
	}
	if !s.hasher.Verify(password, user.PasswordHash) || !user.CanAuthenticate() {
		s.metrics.LoginFailed()
		s.logger.InfoContext(ctx, "login rejected", "user_id", user.ID)
		return domain.Session{}, domain.ErrInvalidCredentials
	}

	ctx = actingAs(ctx, user.ID)
	actor := domain.ActorFrom(ctx)
	now := domain.Now(ctx)

	uow := s.newUnitOfWork()
	if err := uow.Attach(user); err != nil {
		return domain.Session{}, err
	}
	user.LastLoginAt = &now
	if err := uow.Update(user); err != nil {
		return domain.Session{}, err
	}
	revoked, err := s.lifecycle.RevokeAllForUser(ctx, uow, user.ID, actor.IP, domain.RevokeReasonNewLogin)
	if err != nil {
		return domain.Session{}, err
	}
	refresh, err := s.lifecycle.Issue(ctx, uow, user.ID, actor.IP, 0)
	if err != nil {
		return domain.Session{}, err
	}
	if _, err := uow.Commit(ctx); err != nil {
		return domain.Session{}, fmt.Errorf("login: %w", err)
	}

	s.metrics.TokensRevoked(revoked)
	s.metrics.TokenIssued()
	return s.sessionFor(ctx, user, refresh)
}

// Refresh rotates the presented refresh token and signs a new access token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domain.Session, error) {
	current, err := s.lifecycle.Authenticate(ctx, refreshToken)
	if err != nil {
		return domain.Session{}, err
	}
	user, err := s.users.FindByID(ctx, current.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Session{}, domain.ErrInvalidToken
	}
	if err != nil {
		return domain.Session{}, err
	}
	if !user.CanAuthenticate() {
		return domain.Session{}, domain.ErrInvalidToken
	}

	ctx = actingAs(ctx, user.ID)
	uow := s.newUnitOfWork()
	next, err := s.lifecycle.Rotate(ctx, uow, refreshToken, domain.ActorFrom(ctx).IP, domain.RevokeReasonReplaced)
	if err != nil {
		return domain.Session{}, err
	}
	if _, err := uow.Commit(ctx); err != nil {
		return domain.Session{}, fmt.Errorf("refresh: %w", err)
	}

	s.metrics.TokensRevoked(1)
	s.metrics.TokenIssued()
	return s.sessionFor(ctx, user, next)
}

// Logout revokes every active refresh token of the user.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	uow := s.newUnitOfWork()
	revoked, err := s.lifecycle.RevokeAllForUser(ctx, uow, userID, domain.ActorFrom(ctx).IP, domain.RevokeReasonLogout)
	if err != nil {
		return err
	}
	if _, err := uow.Commit(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.metrics.TokensRevoked(revoked)
	s.logger.InfoContext(ctx, "user logged out", "user_id", userID, "revoked", revoked)
	return nil
}

// EnsureAdmin creates an active Admin user for email unless an account with
// that email already exists. It reports whether a user was created.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return false, fmt.Errorf("admin email and password are required: %w", domain.ErrInvalidInput)
	}
	taken, err := s.users.EmailTaken(ctx, email)
	if err != nil {
		return false, err
	}
	if taken {
		return false, nil
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	user := &domain.User{
		ID:              uuid.NewString(),
		FirstName:       "System",
		LastName:        "Administrator",
		Email:           email,
		PasswordHash:    hash,
		IsEmailVerified: true,
		IsActive:        true,
	}

	uow := s.newUnitOfWork()
	if err := uow.Add(user); err != nil {
		return false, err
	}
	for _, name := range []string{domain.RoleAdmin, domain.RoleUser} {
		role, err := s.roles.FindByName(ctx, name)
		if err != nil {
			return false, fmt.Errorf("load role %s: %w", name, err)
		}
		if err := uow.Add(&domain.UserRole{UserID: user.ID, RoleID: role.ID, AssignedAt: domain.Now(ctx)}); err != nil {
			return false, err
		}
	}
	if _, err := uow.Commit(ctx); err != nil {
		return false, fmt.Errorf("create admin: %w", err)
	}
	s.logger.InfoContext(ctx, "admin user created", "user_id", user.ID, "email", email)
	return true, nil
}

func (s *AuthService) sessionFor(ctx context.Context, user *domain.User, refresh *domain.RefreshToken) (domain.Session, error) {
	roles, err := s.roles.ListForUser(ctx, user.ID)
	if err != nil {
		return domain.Session{}, err
	}
	return s.session(ctx, domain.UserWithRoles{User: *user, Roles: roles}, refresh)
}

func (s *AuthService) session(ctx context.Context, user domain.UserWithRoles, refresh *domain.RefreshToken) (domain.Session, error) {
	access, err := s.signer.Sign(domain.AccessClaims{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.FullName(),
		Roles:     user.RoleNames(),
		ExpiresAt: domain.Now(ctx).Add(s.accessTTL),
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("sign access token: %w", err)
	}
	user.PasswordHash = ""
	return domain.Session{
		AccessToken:           access.Token,
		AccessTokenExpiresAt:  access.ExpiresAt,
		RefreshToken:          refresh.Token,
		RefreshTokenExpiresAt: refresh.ExpiresAt,
		User:                  user,
	}, nil
}

// actingAs attributes the changes of an unauthenticated request to the user
// it authenticates, keeping the caller's client details.
func actingAs(ctx context.Context, userID string) context.Context {
	actor := domain.ActorFrom(ctx)
	if actor.ID != "" {
		return ctx
	}
	actor.ID = userID
	return domain.WithActor(ctx, actor)
}
