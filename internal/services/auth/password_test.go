// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth_test

import (
	"errors"
	"strings"
	"testing"

	"codeberg.org/oliverandrich/aura/internal/services/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordValidator_Validate(t *testing.T) {
	v := auth.DefaultPasswordValidator()

	tests := []struct {
		name     string
		password string
		codes    []string
	}{
		{"valid", "Abcdef12", nil},
		{"valid max length", "Ab1" + strings.Repeat("x", 125), nil},
		{"too short", "Abc12", []string{"min_length"}},
		{"too long", "Ab1" + strings.Repeat("x", 126), []string{"max_length"}},
		{"no uppercase", "abcdef12", []string{"no_uppercase"}},
		{"no lowercase", "ABCDEF12", []string{"no_lowercase"}},
		{"no digit", "Abcdefgh", []string{"no_digit"}},
		{"non-ascii letters do not count", "ÄÖÜäöü12", []string{"no_uppercase", "no_lowercase"}},
		{"empty", "", []string{"min_length", "no_uppercase", "no_lowercase", "no_digit"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Validate(tt.password)

			var codes []string
			for _, e := range result.Errors {
				codes = append(codes, e.Code)
			}
			assert.Equal(t, tt.codes, codes)
			assert.Equal(t, len(tt.codes) == 0, result.Valid)
		})
	}
}

func TestPasswordValidator_CountsRunes(t *testing.T) {
	v := auth.DefaultPasswordValidator()

	// 8 runes, more than 8 bytes
	result := v.Validate("Aa1éééé")
	assert.False(t, result.Valid)

	result = v.Validate("Aa1ééééé")
	assert.True(t, result.Valid)
}

func TestValidationResult_Err(t *testing.T) {
	v := auth.DefaultPasswordValidator()

	assert.NoError(t, v.Validate("Abcdef12").Err())

	err := v.Validate("short").Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrValidation)

	var pvErr *auth.PasswordValidationError
	require.True(t, errors.As(err, &pvErr))
	assert.NotEmpty(t, pvErr.Messages())
	assert.Equal(t, pvErr.Errors[0].Message, pvErr.Error())
}

func TestPasswordValidationError_Empty(t *testing.T) {
	err := &auth.PasswordValidationError{}

	assert.Equal(t, "password validation failed", err.Error())
}

func TestPasswordValidator_GetHelpTexts(t *testing.T) {
	texts := auth.DefaultPasswordValidator().GetHelpTexts()

	assert.Equal(t, []string{
		"Between 8 and 128 characters",
		"At least one uppercase letter",
		"At least one lowercase letter",
		"At least one digit",
	}, texts)
}
