// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"fmt"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server       ServerConfig
	Log          LogConfig
	Database     DatabaseConfig
	Auth         AuthConfig
	SMTP         SMTPConfig
	Housekeeping HousekeepingConfig
	Seed         SeedConfig
	FrontendURL  string
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string
	MaxBodySize int // in MB
	CORSOrigins []string
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	Driver string // sqlite, postgres
	DSN    string
}

type AuthConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Environment        string
	JWTSecret          string
	JWTIssuer          string
	AccessTTL          time.Duration
	RefreshTTL         time.Duration
	VerificationTTL    time.Duration
	ResetTTL           time.Duration
	BcryptCost         int
	ResetRequiresToken bool
}

// IsProduction reports whether the service runs in production mode.
func (c *AuthConfig) IsProduction() bool {
	return strings.EqualFold(c.Environment, EnvProduction)
}

type SMTPConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	FromName   string
	TLS        bool
	MaxRetries int
}

// Enabled reports whether enough SMTP settings exist to deliver mail.
func (c *SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

type HousekeepingConfig struct {
	Enabled  bool
	Schedule string // cron spec, e.g. "@hourly"
}

type SeedConfig struct {
	Demo         bool
	DemoPassword string
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
			CORSOrigins: cmd.StringSlice("cors-origins"),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			Driver: cmd.String("database-driver"),
			DSN:    cmd.String("database-dsn"),
		},
		Auth: AuthConfig{
			Environment:        cmd.String("environment"),
			JWTSecret:          cmd.String("jwt-secret"),
			JWTIssuer:          cmd.String("jwt-issuer"),
			AccessTTL:          cmd.Duration("access-token-ttl"),
			RefreshTTL:         cmd.Duration("refresh-token-ttl"),
			VerificationTTL:    cmd.Duration("verification-token-ttl"),
			ResetTTL:           cmd.Duration("reset-token-ttl"),
			BcryptCost:         int(cmd.Int("bcrypt-cost")),
			ResetRequiresToken: cmd.Bool("reset-requires-token"),
		},
		SMTP: SMTPConfig{
			Host:       cmd.String("smtp-host"),
			Port:       int(cmd.Int("smtp-port")),
			Username:   cmd.String("smtp-username"),
			Password:   cmd.String("smtp-password"),
			From:       cmd.String("smtp-from"),
			FromName:   cmd.String("smtp-from-name"),
			TLS:        cmd.Bool("smtp-tls"),
			MaxRetries: int(cmd.Int("smtp-max-retries")),
		},
		Housekeeping: HousekeepingConfig{
			Enabled:  cmd.Bool("housekeeping"),
			Schedule: cmd.String("housekeeping-schedule"),
		},
		Seed: SeedConfig{
			Demo:         cmd.Bool("seed-demo"),
			DemoPassword: cmd.String("seed-demo-password"),
		},
		FrontendURL: cmd.String("frontend-url"),
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}
	cfg.FrontendURL = strings.TrimSuffix(cfg.FrontendURL, "/")

	return cfg
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port

	if port == 80 {
		return fmt.Sprintf("http://%s", host)
	}
	return fmt.Sprintf("http://%s:%d", host, port)
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	// Check for *.localhost subdomains (e.g., app.localhost)
	return strings.HasSuffix(host, ".localhost")
}

func Flags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: cli.NewValueSourceChain(cli.EnvVar("HOST"), toml.TOML("server.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PORT"), toml.TOML("server.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Public base URL of the API",
			Sources: cli.NewValueSourceChain(cli.EnvVar("BASE_URL"), toml.TOML("server.base_url", configFile)),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   1,
			Usage:   "Maximum request body size in MB",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAX_BODY_SIZE"), toml.TOML("server.max_body_size", configFile)),
		},
		&cli.StringSliceFlag{
			Name:    "cors-origins",
			Value:   []string{"http://localhost:5173"},
			Usage:   "Allowed CORS origins",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CORS_ORIGINS"), toml.TOML("server.cors_origins", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_LEVEL"), toml.TOML("log.level", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_FORMAT"), toml.TOML("log.format", configFile)),
		},
		&cli.StringFlag{
			Name:    "database-driver",
			Value:   "sqlite",
			Usage:   "Database driver (sqlite, postgres)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DATABASE_DRIVER"), toml.TOML("database.driver", configFile)),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/aura.db",
			Usage:   "Database DSN",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DATABASE_DSN"), toml.TOML("database.dsn", configFile)),
		},
		&cli.StringFlag{
			Name:    "frontend-url",
			Value:   "http://localhost:5173",
			Usage:   "Frontend URL used for links in emails",
			Sources: cli.NewValueSourceChain(cli.EnvVar("FRONTEND_URL"), toml.TOML("frontend_url", configFile)),
		},
	}

	flags = append(flags, authFlags()...)
	flags = append(flags, smtpFlags()...)
	flags = append(flags, housekeepingFlags()...)
	flags = append(flags, seedFlags()...)
	return flags
}

func authFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "environment",
			Value:   EnvDevelopment,
			Usage:   "Deployment environment (development, production)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("APP_ENV"), toml.TOML("auth.environment", configFile)),
		},
		&cli.StringFlag{
			Name:    "jwt-secret",
			Usage:   "Secret used to sign bearer tokens (required in production)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SECRET_KEY"), toml.TOML("auth.jwt_secret", configFile)),
		},
		&cli.StringFlag{
			Name:    "jwt-issuer",
			Value:   "aura",
			Usage:   "Issuer claim for bearer tokens",
			Sources: cli.NewValueSourceChain(cli.EnvVar("JWT_ISSUER"), toml.TOML("auth.jwt_issuer", configFile)),
		},
		&cli.DurationFlag{
			Name:    "access-token-ttl",
			Value:   24 * time.Hour,
			Usage:   "Lifetime of access tokens",
			Sources: cli.NewValueSourceChain(cli.EnvVar("ACCESS_TOKEN_TTL"), toml.TOML("auth.access_ttl", configFile)),
		},
		&cli.DurationFlag{
			Name:    "refresh-token-ttl",
			Value:   7 * 24 * time.Hour,
			Usage:   "Lifetime of refresh tokens",
			Sources: cli.NewValueSourceChain(cli.EnvVar("REFRESH_TOKEN_TTL"), toml.TOML("auth.refresh_ttl", configFile)),
		},
		&cli.DurationFlag{
			Name:    "verification-token-ttl",
			Value:   24 * time.Hour,
			Usage:   "Lifetime of email verification tokens",
			Sources: cli.NewValueSourceChain(cli.EnvVar("VERIFICATION_TOKEN_TTL"), toml.TOML("auth.verification_ttl", configFile)),
		},
		&cli.DurationFlag{
			Name:    "reset-token-ttl",
			Value:   time.Hour,
			Usage:   "Lifetime of password reset tokens",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RESET_TOKEN_TTL"), toml.TOML("auth.reset_ttl", configFile)),
		},
		&cli.IntFlag{
			Name:    "bcrypt-cost",
			Value:   12,
			Usage:   "bcrypt work factor (minimum 10)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("BCRYPT_COST"), toml.TOML("auth.bcrypt_cost", configFile)),
		},
		&cli.BoolFlag{
			Name:    "reset-requires-token",
			Usage:   "Require a mailed reset token for password resets",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RESET_REQUIRES_TOKEN"), toml.TOML("auth.reset_requires_token", configFile)),
		},
	}
}

func smtpFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP server host (mail is logged when empty)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_SERVER"), toml.TOML("smtp.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP server port",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PORT"), toml.TOML("smtp.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SENDER_EMAIL"), toml.TOML("smtp.username", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SENDER_PASSWORD"), toml.TOML("smtp.password", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Usage:   "Sender address",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM"), toml.TOML("smtp.from", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Value:   "AURA",
			Usage:   "Sender display name",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM_NAME"), toml.TOML("smtp.from_name", configFile)),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for SMTP",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_TLS"), toml.TOML("smtp.tls", configFile)),
		},
		&cli.IntFlag{
			Name:    "smtp-max-retries",
			Value:   3,
			Usage:   "Retries for failed SMTP deliveries",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_MAX_RETRIES"), toml.TOML("smtp.max_retries", configFile)),
		},
	}
}

func housekeepingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "housekeeping",
			Value:   true,
			Usage:   "Periodically purge expired verification tokens",
			Sources: cli.NewValueSourceChain(cli.EnvVar("HOUSEKEEPING"), toml.TOML("housekeeping.enabled", configFile)),
		},
		&cli.StringFlag{
			Name:    "housekeeping-schedule",
			Value:   "@hourly",
			Usage:   "Cron schedule for token purging",
			Sources: cli.NewValueSourceChain(cli.EnvVar("HOUSEKEEPING_SCHEDULE"), toml.TOML("housekeeping.schedule", configFile)),
		},
	}
}

func seedFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "seed-demo",
			Usage:   "Create the demo patient and doctor accounts at startup",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SEED_DEMO"), toml.TOML("seed.demo", configFile)),
		},
		&cli.StringFlag{
			Name:    "seed-demo-password",
			Value:   "Demo12345",
			Usage:   "Password for the demo accounts",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SEED_DEMO_PASSWORD"), toml.TOML("seed.demo_password", configFile)),
		},
	}
}
