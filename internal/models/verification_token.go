// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// TokenPurpose scopes a verification token to a single flow.
type TokenPurpose string

const (
	PurposeEmailVerification TokenPurpose = "email_verification"
	PurposePasswordReset     TokenPurpose = "password_reset"
)

// VerificationToken is a single-use, expiring token proving control of an email address.
type VerificationToken struct { //nolint:govet // fieldalignment: readability over optimization
	ID        string       `db:"id" json:"id"`
	AccountID string       `db:"account_id" json:"account_id"`
	Token     string       `db:"token" json:"-"`
	Purpose   TokenPurpose `db:"purpose" json:"purpose"`
	ExpiresAt time.Time    `db:"expires_at" json:"expires_at"`
	Used      bool         `db:"used" json:"used"`
	UsedAt    *time.Time   `db:"used_at" json:"used_at,omitempty"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}

// IsExpired reports whether now lies past the expiry.
func (t *VerificationToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// IsValid reports whether the token is unused and unexpired.
func (t *VerificationToken) IsValid(now time.Time) bool {
	return !t.Used && !t.IsExpired(now)
}
