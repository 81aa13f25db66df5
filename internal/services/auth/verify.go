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

// SendVerification mails a fresh verification link to an account.
func (s *Service) SendVerification(ctx context.Context, accountID string) error {
	account, err := s.Account(ctx, accountID)
	if err != nil {
		return err
	}
	if account.EmailVerified {
		return ErrAlreadyVerified
	}

	if err := s.deliverVerification(ctx, account); err != nil {
		return err
	}
	return nil
}

// ResendVerification mails a new verification link if the email belongs to
// an unverified account. The outcome is not revealed to the caller.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return err
	}

	account, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			slog.Info("verification_resend_skipped", "reason", "user_not_found")
			return nil
		}
		return fmt.Errorf("failed to get account: %w", err)
	}
	if account.EmailVerified {
		slog.Info("verification_resend_skipped", "user_id", account.ID, "reason", "already_verified")
		return nil
	}

	if err := s.deliverVerification(ctx, account); err != nil {
		if errors.Is(err, ErrEmailDeliveryFailed) {
			return nil
		}
		return err
	}
	return nil
}

func (s *Service) deliverVerification(ctx context.Context, account *models.Account) error {
	tok, err := s.tokens.Issue(ctx, account.ID, models.PurposeEmailVerification, 0)
	if err != nil {
		return err
	}
	metrics.RecordToken(string(models.PurposeEmailVerification), "issued", 1)

	err = s.mailer.SendVerification(ctx, account.Email, account.DisplayName(), tok)
	metrics.RecordEmail("verification", err)
	if err != nil {
		slog.Error("verification_send_failed", "user_id", account.ID, "email", account.Email, "error", err)
		return fmt.Errorf("%w: %v", ErrEmailDeliveryFailed, err)
	}

	slog.Info("verification_sent", "user_id", account.ID, "email", account.Email)
	return nil
}

// VerifyEmail redeems an email verification token and marks the account
// verified.
func (s *Service) VerifyEmail(ctx context.Context, tokenValue string) (account *models.Account, err error) {
	defer func() { metrics.RecordAuthEvent("verify_email", err) }()

	if err := ValidateTokenFormat(tokenValue); err != nil {
		return nil, err
	}

	tok, err := s.tokens.Consume(ctx, tokenValue, models.PurposeEmailVerification)
	if err != nil {
		slog.Warn("verification_failed", "error", err)
		return nil, mapVerificationError(err)
	}
	metrics.RecordToken(string(models.PurposeEmailVerification), "consumed", 1)

	ok, err := s.accounts.MarkEmailVerified(ctx, tok.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark email verified: %w", err)
	}
	if !ok {
		return nil, ErrAccountNotFound
	}

	account, err = s.Account(ctx, tok.AccountID)
	if err != nil {
		return nil, err
	}

	slog.Info("verification_consumed", "user_id", account.ID, "email", account.Email)
	return account, nil
}
