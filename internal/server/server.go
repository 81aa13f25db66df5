// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/oliverandrich/aura/internal/config"
	"codeberg.org/oliverandrich/aura/internal/database"
	"codeberg.org/oliverandrich/aura/internal/handlers"
	"codeberg.org/oliverandrich/aura/internal/housekeeping"
	"codeberg.org/oliverandrich/aura/internal/i18n"
	"codeberg.org/oliverandrich/aura/internal/models"
	"codeberg.org/oliverandrich/aura/internal/repository"
	authsvc "codeberg.org/oliverandrich/aura/internal/services/auth"
	"codeberg.org/oliverandrich/aura/internal/services/email"
	"codeberg.org/oliverandrich/aura/internal/services/token"
	"codeberg.org/oliverandrich/aura/internal/services/verification"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
	"go.uber.org/multierr"
)

const shutdownTimeout = 10 * time.Second

// App holds the wired services behind the HTTP server.
type App struct {
	Echo    *echo.Echo
	Auth    *authsvc.Service
	Tokens  *verification.Store
	Cleaner *housekeeping.Cleaner
}

// Services holds the domain services built from configuration.
type Services struct {
	Repo   *repository.Repository
	Auth   *authsvc.Service
	Tokens *verification.Store
}

// NewServices builds the auth stack on top of db.
func NewServices(cfg *config.Config, db *sqlx.DB) (*Services, error) {
	signer, err := token.NewSigner(token.Config{
		Secret:     cfg.Auth.JWTSecret,
		Production: cfg.Auth.IsProduction(),
		Issuer:     cfg.Auth.JWTIssuer,
		AccessTTL:  cfg.Auth.AccessTTL,
		RefreshTTL: cfg.Auth.RefreshTTL,
	})
	if err != nil {
		return nil, err
	}

	repo := repository.New(db)
	tokens := verification.NewStore(repo,
		verification.WithTTL(models.PurposeEmailVerification, cfg.Auth.VerificationTTL),
		verification.WithTTL(models.PurposePasswordReset, cfg.Auth.ResetTTL),
	)

	mailer, err := newMailer(cfg, tokens)
	if err != nil {
		return nil, err
	}

	svc := authsvc.NewService(repo, signer, tokens, mailer,
		authsvc.NewBcryptHasher(cfg.Auth.BcryptCost),
		authsvc.WithResetRequiresToken(cfg.Auth.ResetRequiresToken),
	)

	return &Services{Repo: repo, Auth: svc, Tokens: tokens}, nil
}

func newMailer(cfg *config.Config, tokens *verification.Store) (email.Sender, error) {
	if !cfg.SMTP.Enabled() {
		slog.Warn("smtp_not_configured", "hint", "emails are logged instead of sent")
		return email.NewLogService(), nil
	}
	svc, err := email.NewService(&cfg.SMTP, cfg.FrontendURL,
		email.WithTokenLifetimes(
			tokens.TTL(models.PurposeEmailVerification),
			tokens.TTL(models.PurposePasswordReset),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set up email: %w", err)
	}
	return svc, nil
}

// NewApp wires services, middleware and routes into an echo instance.
func NewApp(cfg *config.Config, db *sqlx.DB) (*App, error) {
	if err := i18n.Init(); err != nil {
		return nil, fmt.Errorf("failed to init i18n: %w", err)
	}

	services, err := NewServices(cfg, db)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	handlers.Configure(e)

	setupMiddleware(e, cfg)
	setupRoutes(e, db, services.Auth)

	cleaner := housekeeping.NewCleaner(services.Tokens,
		housekeeping.WithSchedule(cfg.Housekeeping.Schedule),
	)

	return &App{
		Echo:    e,
		Auth:    services.Auth,
		Tokens:  services.Tokens,
		Cleaner: cleaner,
	}, nil
}

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"environment", cfg.Auth.Environment,
	)
	if cfg.Auth.JWTSecret == "" && !config.IsLocalhost(cfg.Server.Host) && !cfg.Auth.IsProduction() {
		slog.Warn("jwt_default_secret_on_public_host", "host", cfg.Server.Host)
	}

	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	app, err := NewApp(cfg, db)
	if err != nil {
		return err
	}

	if cfg.Seed.Demo {
		if err := seedDemo(ctx, app.Auth, cfg.Seed.DemoPassword); err != nil {
			return err
		}
	}

	if cfg.Housekeeping.Enabled {
		if err := app.Cleaner.Start(); err != nil {
			return fmt.Errorf("failed to start housekeeping: %w", err)
		}
	}

	return startWithGracefulShutdown(ctx, app, cfg)
}

func seedDemo(ctx context.Context, svc *authsvc.Service, password string) error {
	created, err := svc.EnsureDemoAccounts(ctx, authsvc.DefaultDemoAccounts(password))
	if err != nil {
		return fmt.Errorf("failed to seed demo accounts: %w", err)
	}
	slog.Info("demo_accounts_seeded", "created", created)
	return nil
}

func startWithGracefulShutdown(ctx context.Context, app *App, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		slog.Info("Server running", "url", cfg.Server.BaseURL)
		if err := app.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
	case serveErr = <-errChan:
		slog.Error("server error", "error", serveErr)
	}

	return multierr.Append(serveErr, shutdown(app))
}

func shutdown(app *App) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs error
	if err := app.Echo.Shutdown(shutdownCtx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("failed to shutdown server: %w", err))
	}

	select {
	case <-app.Cleaner.Stop().Done():
	case <-shutdownCtx.Done():
		errs = multierr.Append(errs, fmt.Errorf("housekeeping did not stop: %w", shutdownCtx.Err()))
	}

	slog.Info("server stopped")
	return errs
}
