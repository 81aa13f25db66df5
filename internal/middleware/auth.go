// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package middleware contains the echo middleware of the API.
package middleware

import (
	"errors"
	"strings"

	"codeberg.org/oliverandrich/aura/internal/auth"
	"codeberg.org/oliverandrich/aura/internal/services/token"
	"github.com/labstack/echo/v4"
)

var (
	// ErrMissingToken is returned when no Authorization header is present.
	ErrMissingToken = errors.New("token not provided")
	// ErrMalformedHeader is returned for an Authorization header that is not "Bearer <token>".
	ErrMalformedHeader = errors.New("invalid authorization header format")
)

// TokenVerifier checks an access token.
type TokenVerifier interface {
	VerifyToken(accessToken string) (*token.Claims, error)
}

// ErrorFunc renders a middleware failure.
type ErrorFunc func(c echo.Context, err error) error

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", ErrMalformedHeader
	}
	return parts[1], nil
}

// RequireBearer rejects requests without a valid access token and stores the
// verified claims in the request context.
func RequireBearer(verifier TokenVerifier, onError ErrorFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, err := BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return onError(c, err)
			}

			claims, err := verifier.VerifyToken(raw)
			if err != nil {
				return onError(c, err)
			}

			ctx := auth.WithClaims(c.Request().Context(), claims)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
