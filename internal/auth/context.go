// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth provides authentication context helpers.
package auth

import (
	"context"

	"codeberg.org/oliverandrich/aura/internal/ctxkeys"
	"codeberg.org/oliverandrich/aura/internal/services/token"
)

// WithClaims stores verified bearer claims in the context.
func WithClaims(ctx context.Context, claims *token.Claims) context.Context {
	return context.WithValue(ctx, ctxkeys.Claims{}, claims)
}

// GetClaims returns the bearer claims from the context, or nil if the request is not authenticated.
func GetClaims(ctx context.Context) *token.Claims {
	if claims, ok := ctx.Value(ctxkeys.Claims{}).(*token.Claims); ok {
		return claims
	}
	return nil
}

// AccountID returns the authenticated account id, or "" if there is none.
func AccountID(ctx context.Context) string {
	if claims := GetClaims(ctx); claims != nil {
		return claims.UserID
	}
	return ""
}

// IsAuthenticated returns true if the context has verified claims.
func IsAuthenticated(ctx context.Context) bool {
	return GetClaims(ctx) != nil
}

// WithRequestID stores the request id so log lines can carry it.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxkeys.RequestID{}, id)
}

// RequestID returns the request id from the context.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(ctxkeys.RequestID{}).(string); ok {
		return id
	}
	return ""
}
