// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package ctxkeys defines typed context keys used across packages.
package ctxkeys

// Claims is the context key for the verified bearer token claims.
type Claims struct{}

// RequestID is the context key for the request id.
type RequestID struct{}
