// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package token issues and verifies HS256 bearer tokens.
package token

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSecret is used outside production when no secret is configured.
const DefaultSecret = "your-secret-key-change-in-production"

const (
	DefaultAccessTTL  = 24 * time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

var (
	ErrConfiguration = errors.New("token signer is not configured")
	ErrExpired       = errors.New("token has expired")
	ErrInvalid       = errors.New("invalid token")
)

// Kind distinguishes access tokens from refresh tokens.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims are the JWT claims carried by every bearer token.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Kind   Kind   `json:"typ"`
	jwt.RegisteredClaims
}

// Pair is the token bundle handed out on register and login.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Config configures a Signer.
type Config struct {
	Secret     string
	Production bool
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Clock      func() time.Time
}

// Signer signs and verifies tokens with one shared secret.
type Signer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewSigner creates a Signer. An empty secret is refused in production.
func NewSigner(cfg Config) (*Signer, error) {
	secret := cfg.Secret
	if secret == "" {
		if cfg.Production {
			return nil, fmt.Errorf("%w: SECRET_KEY must be set in production", ErrConfiguration)
		}
		slog.Warn("jwt_insecure_default_secret", "hint", "set SECRET_KEY before deploying")
		secret = DefaultSecret
	}

	s := &Signer{
		secret:     []byte(secret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        cfg.Clock,
	}
	if s.accessTTL <= 0 {
		s.accessTTL = DefaultAccessTTL
	}
	if s.refreshTTL <= 0 {
		s.refreshTTL = DefaultRefreshTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// AccessTTL returns the lifetime of access tokens.
func (s *Signer) AccessTTL() time.Duration {
	return s.accessTTL
}

// Issue stamps iat and exp onto claims and signs them.
func (s *Signer) Issue(claims Claims, ttl time.Duration) (string, error) {
	if claims.UserID == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalid)
	}
	now := s.now()
	claims.Subject = claims.UserID
	claims.Issuer = s.issuer
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// IssueAccess issues an access token.
func (s *Signer) IssueAccess(userID, email string) (string, error) {
	return s.Issue(Claims{UserID: userID, Email: email, Kind: KindAccess}, s.accessTTL)
}

// IssuePair issues an access token and a refresh token for the same subject.
func (s *Signer) IssuePair(userID, email string) (*Pair, error) {
	access, err := s.IssueAccess(userID, email)
	if err != nil {
		return nil, err
	}
	refresh, err := s.Issue(Claims{UserID: userID, Email: email, Kind: KindRefresh}, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

// Verify checks the signature and expiry of a token and returns its claims.
func (s *Signer) Verify(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)

	claims := &Claims{}
	_, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalid)
	}
	return claims, nil
}

// VerifyKind is Verify plus a check that the token was issued as kind.
// Tokens without a typ claim are accepted as access tokens.
func (s *Signer) VerifyKind(tokenString string, kind Kind) (*Claims, error) {
	claims, err := s.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	got := claims.Kind
	if got == "" {
		got = KindAccess
	}
	if got != kind {
		return nil, fmt.Errorf("%w: expected %s token", ErrInvalid, kind)
	}
	return claims, nil
}
