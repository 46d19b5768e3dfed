package usecase_test

import (
	"bytes"
	"context"
	"database/sql"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/identityapi/internal/adapters/sqlite"
	"github.com/atvirokodosprendimai/identityapi/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/identityapi/internal/core/changeset"
	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
	"github.com/atvirokodosprendimai/identityapi/internal/core/ports"
	"github.com/atvirokodosprendimai/identityapi/internal/core/usecase"
	"github.com/atvirokodosprendimai/identityapi/migrations"
	"github.com/stretchr/testify/require"
)

const chromeAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }
func (plainHasher) Verify(password, hash string) bool    { return hash == "hashed:"+password }

type stubSigner struct{}

func (stubSigner) Sign(c domain.AccessClaims) (domain.AccessToken, error) {
	return domain.AccessToken{Token: "access-for-" + c.UserID, ExpiresAt: c.ExpiresAt}, nil
}

func (stubSigner) Verify(string) (domain.AccessClaims, error) {
	return domain.AccessClaims{}, domain.ErrInvalidToken
}

type recordingMetrics struct {
	mu          sync.Mutex
	issued      int
	revoked     int
	reuse       int
	loginFailed int
	registered  int
}

func (m *recordingMetrics) TokenIssued()        { m.mu.Lock(); m.issued++; m.mu.Unlock() }
func (m *recordingMetrics) TokensRevoked(n int) { m.mu.Lock(); m.revoked += n; m.mu.Unlock() }
func (m *recordingMetrics) TokenReuseDetected() { m.mu.Lock(); m.reuse++; m.mu.Unlock() }
func (m *recordingMetrics) LoginFailed()        { m.mu.Lock(); m.loginFailed++; m.mu.Unlock() }
func (m *recordingMetrics) UserRegistered()     { m.mu.Lock(); m.registered++; m.mu.Unlock() }

type fixture struct {
	wdb       *sql.DB
	users     *sqlite.UserRepository
	roles     *sqlite.RoleRepository
	tokens    *sqlite.RefreshTokenRepository
	auditRepo *sqlite.AuditTrailRepository
	outbox    *sqlite.OutboxRepository
	metrics   *recordingMetrics
	logs      *bytes.Buffer
	newUoW    ports.UnitOfWorkFactory
	lifecycle *usecase.TokenLifecycle
	auth      *usecase.AuthService
	roleSvc   *usecase.RoleService
	userSvc   *usecase.UserService
	audit     *usecase.AuditService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gormsqlite.Open(filepath.Join(t.TempDir(), "identity.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	wdb, err := db.WriteSQLDB()
	require.NoError(t, err)
	require.NoError(t, migrations.Up(context.Background(), wdb))

	f := &fixture{
		wdb:       wdb,
		users:     sqlite.NewUserRepository(db),
		roles:     sqlite.NewRoleRepository(db),
		tokens:    sqlite.NewRefreshTokenRepository(db),
		auditRepo: sqlite.NewAuditTrailRepository(db),
		outbox:    sqlite.NewOutboxRepository(db),
		metrics:   &recordingMetrics{},
		logs:      &bytes.Buffer{},
	}
	logger := slog.New(slog.NewTextHandler(f.logs, nil))

	factory := changeset.NewFactory(usecase.NewEntityRegistry(), sqlite.NewUnitOfWorkStore(db))
	f.newUoW = func() ports.UnitOfWork { return factory.New() }
	f.lifecycle = usecase.NewTokenLifecycle(f.tokens, f.metrics, logger, 0)
	f.auth = usecase.NewAuthService(usecase.AuthServiceDeps{
		UnitOfWork: f.newUoW,
		Users:      f.users,
		Roles:      f.roles,
		Lifecycle:  f.lifecycle,
		Hasher:     plainHasher{},
		Signer:     stubSigner{},
		Metrics:    f.metrics,
		Logger:     logger,
	})
	f.roleSvc = usecase.NewRoleService(f.newUoW, f.users, f.roles, sqlite.NewUserRoleRepository(db), logger)
	f.userSvc = usecase.NewUserService(f.newUoW, f.users, f.roles, f.lifecycle, f.metrics, logger)
	f.audit = usecase.NewAuditService(f.auditRepo)
	return f
}

// anonymous is a request without an authenticated caller.
func anonymous() context.Context {
	ctx := domain.WithActor(context.Background(), domain.Actor{IP: "10.0.0.1", Agent: chromeAgent})
	return domain.WithTime(ctx, fixedNow)
}

func actingAs(ctx context.Context, userID string) context.Context {
	actor := domain.ActorFrom(ctx)
	actor.ID = userID
	return domain.WithActor(ctx, actor)
}

func later(ctx context.Context, d time.Duration) context.Context {
	return domain.WithTime(ctx, domain.Now(ctx).Add(d))
}

func (f *fixture) register(t *testing.T, ctx context.Context, first, email string) domain.Session {
	t.Helper()
	session, err := f.auth.Register(ctx, registerInput(first, email))
	require.NoError(t, err)
	return session
}

func (f *fixture) history(t *testing.T, entity string) []domain.AuditEntry {
	t.Helper()
	entries, err := f.auditRepo.List(context.Background(), domain.AuditQuery{EntityType: entity, Ascending: true})
	require.NoError(t, err)
	return entries
}

func decode(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	values, err := changeset.DecodeValues(raw)
	require.NoError(t, err)
	return values
}
