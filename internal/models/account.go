// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"net/url"
	"strings"
	"time"
)

const avatarBaseURL = "https://api.dicebear.com/7.x/avataaars/svg?seed="

// Account is a registered identity.
type Account struct { //nolint:govet // fieldalignment: readability over optimization
	ID              string     `db:"id" json:"id"`
	Email           string     `db:"email" json:"email"`
	PasswordHash    string     `db:"password_hash" json:"-"`
	FullName        string     `db:"full_name" json:"fullName"`
	IsActive        bool       `db:"is_active" json:"isActive"`
	EmailVerified   bool       `db:"email_verified" json:"emailVerified"`
	EmailVerifiedAt *time.Time `db:"email_verified_at" json:"emailVerifiedAt,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updatedAt"`
}

// AvatarURL returns a generated avatar for the account's email.
func (a *Account) AvatarURL() string {
	return avatarBaseURL + url.QueryEscape(a.Email)
}

// DisplayName falls back to the local part of the email.
func (a *Account) DisplayName() string {
	if name := strings.TrimSpace(a.FullName); name != "" {
		return name
	}
	return LocalPart(a.Email)
}

// LocalPart returns everything before the first "@".
func LocalPart(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
