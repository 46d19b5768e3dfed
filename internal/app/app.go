package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atvirokodosprendimai/identityapi/internal/adapters/credentials"
	"github.com/atvirokodosprendimai/identityapi/internal/adapters/events"
	"github.com/atvirokodosprendimai/identityapi/internal/adapters/httpapi"
	"github.com/atvirokodosprendimai/identityapi/internal/adapters/metrics"
	sqliteadapter "github.com/atvirokodosprendimai/identityapi/internal/adapters/sqlite"
	"github.com/atvirokodosprendimai/identityapi/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/identityapi/internal/core/changeset"
	"github.com/atvirokodosprendimai/identityapi/internal/core/ports"
	"github.com/atvirokodosprendimai/identityapi/internal/core/usecase"
	"github.com/atvirokodosprendimai/identityapi/migrations"
)

type Config struct {
	Addr   string
	DBPath string

	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int

	LogFormat     string
	LogLevel      string
	DevMode       bool
	AuthRateLimit int

	WebhookURL       string
	WebhookSecret    string
	DispatchInterval time.Duration

	BootstrapAdminEmail    string
	BootstrapAdminPassword string
}

// NewLogger builds the process logger; format is "json" or "text".
func NewLogger(w io.Writer, format, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

type resourceCloser struct {
	closers []io.Closer
}

func (r resourceCloser) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func NewServer(ctx context.Context, cfg Config, logger *slog.Logger) (*http.Server, io.Closer, error) {
	if logger == nil {
		logger = NewLogger(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	}

	signer, err := credentials.NewJWTSigner(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience)
	if err != nil {
		return nil, nil, fmt.Errorf("configure access tokens: %w", err)
	}
	validator, err := usecase.NewRequestValidator()
	if err != nil {
		return nil, nil, fmt.Errorf("compile request schemas: %w", err)
	}

	db, err := gormsqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}

	writeSQLDB, err := db.WriteSQLDB()
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("resolve writer sql db: %w", err)
	}

	migrateCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := migrations.Up(migrateCtx, writeSQLDB); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(registry)

	users := sqliteadapter.NewUserRepository(db)
	roles := sqliteadapter.NewRoleRepository(db)
	userRoles := sqliteadapter.NewUserRoleRepository(db)
	tokens := sqliteadapter.NewRefreshTokenRepository(db)
	auditTrail := sqliteadapter.NewAuditTrailRepository(db)
	outboxRepo := sqliteadapter.NewOutboxRepository(db)

	factory := changeset.NewFactory(
		usecase.NewEntityRegistry(),
		sqliteadapter.NewUnitOfWorkStore(db),
		changeset.WithObserver(appMetrics),
	)
	newUnitOfWork := func() ports.UnitOfWork { return factory.New() }

	lifecycle := usecase.NewTokenLifecycle(tokens, appMetrics, logger, cfg.RefreshTokenTTL)
	authService := usecase.NewAuthService(usecase.AuthServiceDeps{
		UnitOfWork: newUnitOfWork,
		Users:      users,
		Roles:      roles,
		Lifecycle:  lifecycle,
		Hasher:     credentials.NewBcryptHasher(cfg.BcryptCost),
		Signer:     signer,
		Metrics:    appMetrics,
		Logger:     logger,
		AccessTTL:  cfg.AccessTokenTTL,
	})
	roleService := usecase.NewRoleService(newUnitOfWork, users, roles, userRoles, logger)
	userService := usecase.NewUserService(newUnitOfWork, users, roles, lifecycle, appMetrics, logger)
	auditService := usecase.NewAuditService(auditTrail)

	if cfg.BootstrapAdminEmail != "" {
		bootstrapCtx, bootstrapCancel := context.WithTimeout(ctx, 5*time.Second)
		created, err := authService.EnsureAdmin(bootstrapCtx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword)
		bootstrapCancel()
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("bootstrap admin: %w", err)
		}
		if !created {
			logger.Info("bootstrap admin already exists", "email", cfg.BootstrapAdminEmail)
		}
	}

	var publisher ports.EventPublisher = events.NewLogPublisher(logger)
	if cfg.WebhookURL != "" {
		publisher = events.NewWebhookPublisher(cfg.WebhookURL, cfg.WebhookSecret, 0)
	}
	feed := usecase.NewAuditFeed(outboxRepo, publisher, appMetrics, logger, usecase.FeedConfig{
		Interval: cfg.DispatchInterval,
	})
	feed.Run(context.Background())

	handler := httpapi.NewHandler(httpapi.Deps{
		Auth:      authService,
		Roles:     roleService,
		Users:     userService,
		Audit:     auditService,
		Validator: validator,
		Signer:    signer,
		Metrics:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Logger:    logger,
		DevMode:   cfg.DevMode,

		AuthRateLimit: cfg.AuthRateLimit,
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	return server, resourceCloser{closers: []io.Closer{feed, db}}, nil
}
