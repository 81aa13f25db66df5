// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package verification manages single-use tokens for email confirmation and
// password reset.
package verification

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/aura/internal/models"
	"codeberg.org/oliverandrich/aura/internal/repository"
	"github.com/google/uuid"
)

const (
	DefaultEmailVerificationTTL = 24 * time.Hour
	DefaultPasswordResetTTL     = time.Hour

	tokenBytes = 32
)

var (
	ErrNotFound    = errors.New("verification token not found")
	ErrExpired     = errors.New("verification token has expired")
	ErrAlreadyUsed = errors.New("verification token has already been used")
)

// Repository is the persistence the store needs.
type Repository interface {
	IssueVerificationToken(ctx context.Context, tok *models.VerificationToken) error
	GetVerificationToken(ctx context.Context, token string) (*models.VerificationToken, error)
	ConsumeVerificationToken(ctx context.Context, token string, purpose models.TokenPurpose, now time.Time) (bool, error)
	InvalidateVerificationTokens(ctx context.Context, accountID string, purpose models.TokenPurpose, now time.Time) (int64, error)
	DeleteExpiredVerificationTokens(ctx context.Context, before time.Time) (int64, error)
}

// Store issues and redeems verification tokens.
type Store struct {
	repo Repository
	now  func() time.Time
	ttls map[models.TokenPurpose]time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithTTL sets the default lifetime for a purpose. Non-positive values are ignored.
func WithTTL(purpose models.TokenPurpose, ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttls[purpose] = ttl
		}
	}
}

// NewStore creates a Store backed by repo.
func NewStore(repo Repository, opts ...Option) *Store {
	s := &Store{
		repo: repo,
		now:  time.Now,
		ttls: map[models.TokenPurpose]time.Duration{
			models.PurposeEmailVerification: DefaultEmailVerificationTTL,
			models.PurposePasswordReset:     DefaultPasswordResetTTL,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the default lifetime for purpose.
func (s *Store) TTL(purpose models.TokenPurpose) time.Duration {
	if ttl, ok := s.ttls[purpose]; ok {
		return ttl
	}
	return DefaultEmailVerificationTTL
}

// Issue creates a fresh token for the account and invalidates any earlier
// unused token with the same purpose. A non-positive ttl selects the purpose
// default.
func (s *Store) Issue(ctx context.Context, accountID string, purpose models.TokenPurpose, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.TTL(purpose)
	}

	value, err := GenerateToken()
	if err != nil {
		return "", err
	}

	now := s.now().UTC()
	tok := &models.VerificationToken{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Token:     value,
		Purpose:   purpose,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.repo.IssueVerificationToken(ctx, tok); err != nil {
		return "", fmt.Errorf("failed to issue verification token: %w", err)
	}

	slog.Debug("verification_token_issued", "account_id", accountID, "purpose", purpose, "expires_at", tok.ExpiresAt)
	return value, nil
}

// Lookup returns the stored record without changing it.
func (s *Store) Lookup(ctx context.Context, token string) (*models.VerificationToken, error) {
	tok, err := s.repo.GetVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up verification token: %w", err)
	}
	return tok, nil
}

// Consume redeems a token for purpose. At most one concurrent caller succeeds
// for a given token.
func (s *Store) Consume(ctx context.Context, token string, purpose models.TokenPurpose) (*models.VerificationToken, error) {
	tok, err := s.Lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	if tok.Purpose != purpose {
		return nil, ErrNotFound
	}
	if tok.Used {
		return nil, ErrAlreadyUsed
	}

	now := s.now().UTC()
	if tok.IsExpired(now) {
		return nil, ErrExpired
	}

	ok, err := s.repo.ConsumeVerificationToken(ctx, token, purpose, now)
	if err != nil {
		return nil, fmt.Errorf("failed to consume verification token: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyUsed
	}

	tok.Used = true
	tok.UsedAt = &now
	return tok, nil
}

// InvalidateAll marks every unused token of the account as used.
func (s *Store) InvalidateAll(ctx context.Context, accountID string) (int64, error) {
	return s.invalidate(ctx, accountID, "")
}

// InvalidatePurpose marks unused tokens of one purpose as used.
func (s *Store) InvalidatePurpose(ctx context.Context, accountID string, purpose models.TokenPurpose) (int64, error) {
	return s.invalidate(ctx, accountID, purpose)
}

func (s *Store) invalidate(ctx context.Context, accountID string, purpose models.TokenPurpose) (int64, error) {
	n, err := s.repo.InvalidateVerificationTokens(ctx, accountID, purpose, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate verification tokens: %w", err)
	}
	return n, nil
}

// PurgeExpired deletes tokens whose expiry has passed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpiredVerificationTokens(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge verification tokens: %w", err)
	}
	return n, nil
}

// GenerateToken returns 32 random bytes as unpadded URL-safe base64.
func GenerateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
