// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MaxEmailLength    = 255
	MinFullNameLength = 2
	MaxFullNameLength = 255
	MinTokenLength    = 20
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// FieldError reports a single invalid input field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *FieldError) Unwrap() error {
	return ErrValidation
}

// NormalizeEmail trims surrounding whitespace. Case is preserved.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

// ValidateEmail checks the trimmed email against the accepted format.
func ValidateEmail(email string) error {
	email = NormalizeEmail(email)
	switch {
	case email == "":
		return &FieldError{Field: "email", Message: "Email is required."}
	case len(email) > MaxEmailLength:
		return &FieldError{Field: "email", Message: fmt.Sprintf("Email must be at most %d characters long.", MaxEmailLength)}
	case !emailPattern.MatchString(email):
		return &FieldError{Field: "email", Message: "Invalid email format."}
	}
	return nil
}

// ValidateFullName checks the trimmed display name length.
func ValidateFullName(name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n < MinFullNameLength || n > MaxFullNameLength {
		return &FieldError{
			Field:   "fullName",
			Message: fmt.Sprintf("Full name must be between %d and %d characters long.", MinFullNameLength, MaxFullNameLength),
		}
	}
	return nil
}

// ValidateTokenFormat rejects tokens that cannot have been issued by the store.
func ValidateTokenFormat(token string) error {
	if token == "" {
		return &FieldError{Field: "token", Message: "Token is required."}
	}
	if len(token) < MinTokenLength {
		return &FieldError{Field: "token", Message: "Invalid token format."}
	}
	return nil
}
