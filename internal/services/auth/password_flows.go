// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/aura/internal/metrics"
	"codeberg.org/oliverandrich/aura/internal/models"
	"codeberg.org/oliverandrich/aura/internal/repository"
)

// ChangePasswordParams holds the input of a password change.
type ChangePasswordParams struct {
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
}

// ResetPasswordParams holds the input of a password reset. Token is only
// consulted when resets require one.
type ResetPasswordParams struct {
	Email           string
	Token           string
	NewPassword     string
	ConfirmPassword string
}

// ChangePassword changes a user's password (when they know their current password)
func (s *Service) ChangePassword(ctx context.Context, accountID string, params ChangePasswordParams) (err error) {
	defer func() { metrics.RecordAuthEvent("change_password", err) }()

	if params.CurrentPassword == "" {
		return &FieldError{Field: "currentPassword", Message: "Current password is required."}
	}
	if err := s.validateNewPassword(params.NewPassword, params.ConfirmPassword); err != nil {
		return err
	}

	account, err := s.Account(ctx, accountID)
	if err != nil {
		return err
	}

	ok, err := s.hasher.Verify(params.CurrentPassword, account.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		slog.Warn("change_password_failed", "user_id", account.ID, "reason", "invalid_password")
		return ErrInvalidCredentials
	}

	if err := s.setPassword(ctx, account.ID, params.NewPassword); err != nil {
		return err
	}

	slog.Info("password_changed", "user_id", account.ID)
	return nil
}

// ForgotPassword mails a reset link when the email belongs to an account.
// The outcome is not revealed to the caller.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return err
	}

	account, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			slog.Info("password_reset_skipped", "reason", "user_not_found")
			return nil
		}
		return fmt.Errorf("failed to get account: %w", err)
	}
	if !account.IsActive {
		slog.Info("password_reset_skipped", "user_id", account.ID, "reason", "inactive")
		return nil
	}

	tok, err := s.tokens.Issue(ctx, account.ID, models.PurposePasswordReset, 0)
	if err != nil {
		return err
	}
	metrics.RecordToken(string(models.PurposePasswordReset), "issued", 1)

	err = s.mailer.SendPasswordReset(ctx, account.Email, account.DisplayName(), tok)
	metrics.RecordEmail("password_reset", err)
	if err != nil {
		slog.Error("password_reset_send_failed", "user_id", account.ID, "error", err)
		return nil
	}

	slog.Info("password_reset_sent", "user_id", account.ID, "email", account.Email)
	return nil
}

// ResetPassword sets a new password for the account behind params.Email.
// Without token mode an unknown email succeeds silently.
func (s *Service) ResetPassword(ctx context.Context, params ResetPasswordParams) (err error) {
	defer func() { metrics.RecordAuthEvent("reset_password", err) }()

	email := NormalizeEmail(params.Email)
	if err := ValidateEmail(email); err != nil {
		return err
	}
	if s.resetRequiresToken {
		if err := ValidateTokenFormat(params.Token); err != nil {
			return err
		}
	}
	if err := s.validateNewPassword(params.NewPassword, params.ConfirmPassword); err != nil {
		return err
	}

	account, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to get account: %w", err)
		}
		if s.resetRequiresToken {
			return ErrTokenInvalid
		}
		slog.Info("password_reset_skipped", "reason", "user_not_found")
		return nil
	}

	if s.resetRequiresToken {
		if err := s.redeemResetToken(ctx, account.ID, params.Token); err != nil {
			return err
		}
	}

	if err := s.setPassword(ctx, account.ID, params.NewPassword); err != nil {
		return err
	}

	n, err := s.tokens.InvalidatePurpose(ctx, account.ID, models.PurposePasswordReset)
	if err != nil {
		return err
	}
	metrics.RecordToken(string(models.PurposePasswordReset), "invalidated", n)

	slog.Info("password_reset", "user_id", account.ID, "with_token", s.resetRequiresToken)
	return nil
}

// redeemResetToken consumes a reset token only if it belongs to accountID.
func (s *Service) redeemResetToken(ctx context.Context, accountID, value string) error {
	tok, err := s.tokens.Lookup(ctx, value)
	if err != nil {
		return mapVerificationError(err)
	}
	if tok.AccountID != accountID || tok.Purpose != models.PurposePasswordReset {
		slog.Warn("password_reset_failed", "user_id", accountID, "reason", "token_mismatch")
		return ErrTokenInvalid
	}
	if _, err := s.tokens.Consume(ctx, value, models.PurposePasswordReset); err != nil {
		return mapVerificationError(err)
	}
	metrics.RecordToken(string(models.PurposePasswordReset), "consumed", 1)
	return nil
}

func (s *Service) validateNewPassword(password, confirm string) error {
	if err := s.passwordValidator.Validate(password).Err(); err != nil {
		return err
	}
	if password != confirm {
		return &FieldError{Field: "confirmPassword", Message: "Passwords do not match."}
	}
	return nil
}

func (s *Service) setPassword(ctx context.Context, accountID, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	ok, err := s.accounts.UpdateAccountPassword(ctx, accountID, hash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if !ok {
		return ErrAccountNotFound
	}
	return nil
}
