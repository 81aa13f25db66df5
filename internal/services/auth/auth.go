// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth implements the account use cases: registration, login, token
// refresh, email verification and password management.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"codeberg.org/oliverandrich/aura/internal/metrics"
	"codeberg.org/oliverandrich/aura/internal/models"
	"codeberg.org/oliverandrich/aura/internal/repository"
	"codeberg.org/oliverandrich/aura/internal/services/token"
	"codeberg.org/oliverandrich/aura/internal/services/verification"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrDuplicateEmail      = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountNotFound     = errors.New("user not found")
	ErrAlreadyVerified     = errors.New("email already verified")
	ErrEmailDeliveryFailed = errors.New("failed to send email")
	ErrTokenExpired        = errors.New("token has expired")
	ErrTokenInvalid        = errors.New("invalid token")
	ErrTokenAlreadyUsed    = errors.New("token has already been used")
)

// AccountStore is the account persistence used by the service.
type AccountStore interface {
	CreateAccount(ctx context.Context, email, passwordHash, fullName string) (*models.Account, error)
	GetAccountByID(ctx context.Context, id string) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	AccountExists(ctx context.Context, email string) (bool, error)
	UpdateAccountPassword(ctx context.Context, id, passwordHash string) (bool, error)
	MarkEmailVerified(ctx context.Context, id string) (bool, error)
	AssignRole(ctx context.Context, accountID string, role models.Role) error
	GetAccountRoles(ctx context.Context, accountID string) ([]models.Role, error)
}

// Signer issues and verifies bearer tokens.
type Signer interface {
	IssuePair(userID, email string) (*token.Pair, error)
	IssueAccess(userID, email string) (string, error)
	VerifyKind(tokenString string, kind token.Kind) (*token.Claims, error)
	AccessTTL() time.Duration
}

// VerificationStore issues and redeems single-use tokens.
type VerificationStore interface {
	Issue(ctx context.Context, accountID string, purpose models.TokenPurpose, ttl time.Duration) (string, error)
	Lookup(ctx context.Context, token string) (*models.VerificationToken, error)
	Consume(ctx context.Context, token string, purpose models.TokenPurpose) (*models.VerificationToken, error)
	InvalidatePurpose(ctx context.Context, accountID string, purpose models.TokenPurpose) (int64, error)
}

// Mailer delivers verification and password reset links.
type Mailer interface {
	SendVerification(ctx context.Context, to, name, token string) error
	SendPasswordReset(ctx context.Context, to, name, token string) error
}

// Service orchestrates the account flows.
type Service struct {
	accounts           AccountStore
	signer             Signer
	tokens             VerificationStore
	mailer             Mailer
	hasher             Hasher
	passwordValidator  *PasswordValidator
	resetRequiresToken bool

	dummyOnce sync.Once
	dummyHash string
}

// Option configures a Service.
type Option func(*Service)

// WithResetRequiresToken makes ResetPassword demand a password reset token.
func WithResetRequiresToken(required bool) Option {
	return func(s *Service) {
		s.resetRequiresToken = required
	}
}

// WithPasswordValidator replaces the default password policy.
func WithPasswordValidator(v *PasswordValidator) Option {
	return func(s *Service) {
		if v != nil {
			s.passwordValidator = v
		}
	}
}

func NewService(accounts AccountStore, signer Signer, tokens VerificationStore, mailer Mailer, hasher Hasher, opts ...Option) *Service {
	s := &Service{
		accounts:          accounts,
		signer:            signer,
		tokens:            tokens,
		mailer:            mailer,
		hasher:            hasher,
		passwordValidator: DefaultPasswordValidator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PasswordValidator returns the password validator for use in handlers
func (s *Service) PasswordValidator() *PasswordValidator {
	return s.passwordValidator
}

// ResetRequiresToken reports whether password resets need a mailed token.
func (s *Service) ResetRequiresToken() bool {
	return s.resetRequiresToken
}

// Session is the result of a successful register or login.
type Session struct {
	Account *models.Account
	Roles   []models.Role
	Tokens  *token.Pair
}

// RefreshResult carries a freshly issued access token.
type RefreshResult struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// RegisterParams holds the parameters for user registration
type RegisterParams struct {
	Email    string
	Password string
	FullName string
}

// Register creates a PATIENT account and signs it in.
func (s *Service) Register(ctx context.Context, params RegisterParams) (session *Session, err error) {
	defer func() { metrics.RecordAuthEvent("register", err) }()

	email := NormalizeEmail(params.Email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := s.passwordValidator.Validate(params.Password).Err(); err != nil {
		return nil, err
	}
	fullName := strings.TrimSpace(params.FullName)
	if params.FullName != "" {
		if err := ValidateFullName(fullName); err != nil {
			return nil, err
		}
	} else {
		fullName = models.LocalPart(email)
	}

	exists, err := s.accounts.AccountExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing account: %w", err)
	}
	if exists {
		slog.Warn("register_failed", "email", email, "reason", "duplicate_email")
		return nil, ErrDuplicateEmail
	}

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.CreateAccount(ctx, email, hash, fullName)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			slog.Warn("register_failed", "email", email, "reason", "duplicate_email")
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	if err := s.accounts.AssignRole(ctx, account.ID, models.RolePatient); err != nil {
		return nil, fmt.Errorf("failed to assign role: %w", err)
	}

	pair, err := s.signer.IssuePair(account.ID, account.Email)
	if err != nil {
		return nil, err
	}

	slog.Info("register_success", "user_id", account.ID, "email", account.Email)

	return &Session{Account: account, Roles: []models.Role{models.RolePatient}, Tokens: pair}, nil
}

// Login authenticates by email and password.
func (s *Service) Login(ctx context.Context, email, password string) (session *Session, err error) {
	defer func() { metrics.RecordAuthEvent("login", err) }()

	email = NormalizeEmail(email)
	if email == "" {
		return nil, &FieldError{Field: "email", Message: "Email is required."}
	}
	if password == "" {
		return nil, &FieldError{Field: "password", Message: "Password is required."}
	}

	account, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Constant-time: always perform a hash comparison to prevent timing attacks
			_, _ = s.hasher.Verify(password, s.dummy())
			slog.Warn("login_failed", "email", email, "reason", "user_not_found")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	ok, err := s.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		slog.Warn("login_failed", "email", email, "reason", "invalid_password")
		return nil, ErrInvalidCredentials
	}
	if !account.IsActive {
		slog.Warn("login_failed", "email", email, "reason", "inactive")
		return nil, ErrInvalidCredentials
	}

	roles, err := s.Roles(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	pair, err := s.signer.IssuePair(account.ID, account.Email)
	if err != nil {
		return nil, err
	}

	slog.Info("login_success", "user_id", account.ID, "email", email)
	return &Session{Account: account, Roles: roles, Tokens: pair}, nil
}

// Logout exists for symmetry with the client flow. Bearer tokens are not
// revoked and stay valid until they expire.
func (s *Service) Logout(_ context.Context, accountID string) {
	slog.Info("logout", "user_id", accountID)
	metrics.RecordAuthEvent("logout", nil)
}

// Refresh exchanges a refresh token for a new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (result *RefreshResult, err error) {
	defer func() { metrics.RecordAuthEvent("refresh", err) }()

	claims, err := s.signer.VerifyKind(refreshToken, token.KindRefresh)
	if err != nil {
		return nil, mapBearerError(err)
	}

	account, err := s.accounts.GetAccountByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	access, err := s.signer.IssueAccess(account.ID, account.Email)
	if err != nil {
		return nil, err
	}

	return &RefreshResult{
		AccessToken: access,
		ExpiresIn:   int64(s.signer.AccessTTL().Seconds()),
	}, nil
}

// VerifyToken checks an access token and returns its claims.
func (s *Service) VerifyToken(accessToken string) (*token.Claims, error) {
	claims, err := s.signer.VerifyKind(accessToken, token.KindAccess)
	if err != nil {
		return nil, mapBearerError(err)
	}
	return claims, nil
}

// Account loads an account by id.
func (s *Service) Account(ctx context.Context, accountID string) (*models.Account, error) {
	account, err := s.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// Roles returns the roles of an account. Accounts without an explicit
// assignment are patients.
func (s *Service) Roles(ctx context.Context, accountID string) ([]models.Role, error) {
	roles, err := s.accounts.GetAccountRoles(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get roles: %w", err)
	}
	if len(roles) == 0 {
		return []models.Role{models.RolePatient}, nil
	}
	return roles, nil
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("dummy-password-for-timing")
	})
	return s.dummyHash
}

func mapBearerError(err error) error {
	if errors.Is(err, token.ErrExpired) {
		return ErrTokenExpired
	}
	return ErrTokenInvalid
}

func mapVerificationError(err error) error {
	switch {
	case errors.Is(err, verification.ErrNotFound):
		return ErrTokenInvalid
	case errors.Is(err, verification.ErrExpired):
		return ErrTokenExpired
	case errors.Is(err, verification.ErrAlreadyUsed):
		return ErrTokenAlreadyUsed
	default:
		return err
	}
}
