package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/atvirokodosprendimai/identityapi/internal/app"
	"github.com/atvirokodosprendimai/identityapi/internal/core/usecase"
)

func main() {
	cmd := &cli.Command{
		Name:  "identityapi",
		Usage: "Identity API with an audited persistence pipeline",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Value:   ":8080",
				Sources: cli.EnvVars("IDENTITYAPI_ADDR"),
				Usage:   "HTTP listen address",
			},
			&cli.StringFlag{
				Name:    "db-path",
				Value:   "./identityapi.sqlite",
				Sources: cli.EnvVars("IDENTITYAPI_DB_PATH"),
				Usage:   "SQLite file path",
			},
			&cli.StringFlag{
				Name:     "jwt-secret",
				Sources:  cli.EnvVars("IDENTITYAPI_JWT_SECRET"),
				Usage:    "HMAC secret for access tokens (at least 32 bytes)",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "jwt-issuer",
				Value:   "identityapi",
				Sources: cli.EnvVars("IDENTITYAPI_JWT_ISSUER"),
				Usage:   "Issuer claim of access tokens",
			},
			&cli.StringFlag{
				Name:    "jwt-audience",
				Value:   "identityapi-clients",
				Sources: cli.EnvVars("IDENTITYAPI_JWT_AUDIENCE"),
				Usage:   "Audience claim of access tokens",
			},
			&cli.DurationFlag{
				Name:    "access-token-ttl",
				Value:   usecase.DefaultAccessTokenTTL,
				Sources: cli.EnvVars("IDENTITYAPI_ACCESS_TOKEN_TTL"),
				Usage:   "Access token lifetime",
			},
			&cli.DurationFlag{
				Name:    "refresh-token-ttl",
				Value:   usecase.DefaultRefreshTokenTTL,
				Sources: cli.EnvVars("IDENTITYAPI_REFRESH_TOKEN_TTL"),
				Usage:   "Refresh token lifetime",
			},
			&cli.IntFlag{
				Name:    "bcrypt-cost",
				Value:   10,
				Sources: cli.EnvVars("IDENTITYAPI_BCRYPT_COST"),
				Usage:   "bcrypt work factor for password hashes",
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "text",
				Sources: cli.EnvVars("IDENTITYAPI_LOG_FORMAT"),
				Usage:   "Log output format: text or json",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Sources: cli.EnvVars("IDENTITYAPI_LOG_LEVEL"),
				Usage:   "Minimum log level: debug, info, warn or error",
			},
			&cli.BoolFlag{
				Name:    "dev",
				Sources: cli.EnvVars("IDENTITYAPI_DEV"),
				Usage:   "Development mode: include internal error details in responses",
			},
			&cli.IntFlag{
				Name:    "auth-rate-limit",
				Value:   20,
				Sources: cli.EnvVars("IDENTITYAPI_AUTH_RATE_LIMIT"),
				Usage:   "Register, login and refresh requests allowed per client IP and minute",
			},
			&cli.StringFlag{
				Name:    "webhook-url",
				Sources: cli.EnvVars("IDENTITYAPI_WEBHOOK_URL"),
				Usage:   "Audit feed webhook target URL (events are logged when unset)",
			},
			&cli.StringFlag{
				Name:    "webhook-secret",
				Sources: cli.EnvVars("IDENTITYAPI_WEBHOOK_SECRET"),
				Usage:   "HMAC-SHA256 signing secret for outbound webhook requests",
			},
			&cli.DurationFlag{
				Name:    "dispatch-interval",
				Value:   2 * time.Second,
				Sources: cli.EnvVars("IDENTITYAPI_DISPATCH_INTERVAL"),
				Usage:   "Polling interval of the audit feed",
			},
			&cli.StringFlag{
				Name:    "bootstrap-admin-email",
				Sources: cli.EnvVars("IDENTITYAPI_BOOTSTRAP_ADMIN_EMAIL"),
				Usage:   "Optional admin account to create at startup",
			},
			&cli.StringFlag{
				Name:    "bootstrap-admin-password",
				Sources: cli.EnvVars("IDENTITYAPI_BOOTSTRAP_ADMIN_PASSWORD"),
				Usage:   "Password of the bootstrap admin account",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := app.Config{
				Addr:                   c.String("addr"),
				DBPath:                 c.String("db-path"),
				JWTSecret:              c.String("jwt-secret"),
				JWTIssuer:              c.String("jwt-issuer"),
				JWTAudience:            c.String("jwt-audience"),
				AccessTokenTTL:         c.Duration("access-token-ttl"),
				RefreshTokenTTL:        c.Duration("refresh-token-ttl"),
				BcryptCost:             int(c.Int("bcrypt-cost")),
				LogFormat:              c.String("log-format"),
				LogLevel:               c.String("log-level"),
				DevMode:                c.Bool("dev"),
				AuthRateLimit:          int(c.Int("auth-rate-limit")),
				WebhookURL:             c.String("webhook-url"),
				WebhookSecret:          c.String("webhook-secret"),
				DispatchInterval:       c.Duration("dispatch-interval"),
				BootstrapAdminEmail:    c.String("bootstrap-admin-email"),
				BootstrapAdminPassword: c.String("bootstrap-admin-password"),
			}
			logger := app.NewLogger(os.Stderr, cfg.LogFormat, cfg.LogLevel)
			slog.SetDefault(logger)

			server, closer, err := app.NewServer(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("create server: %w", err)
			}
			defer func() {
				if closeErr := closer.Close(); closeErr != nil {
					logger.Error("close resources", "error", closeErr)
				}
			}()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening", "addr", cfg.Addr)
				errCh <- server.ListenAndServe()
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			case sig := <-sigCh:
				logger.Info("received signal", "signal", sig.String())
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("identityapi failed", "error", err)
		os.Exit(1)
	}
}
