// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/aura/internal/models"
	"codeberg.org/oliverandrich/aura/internal/repository"
)

// DemoAccount describes an account created by EnsureDemoAccounts.
type DemoAccount struct {
	Email    string
	Password string
	FullName string
	Role     models.Role
}

// DefaultDemoAccounts returns the patient and doctor used for local demos.
func DefaultDemoAccounts(password string) []DemoAccount {
	return []DemoAccount{
		{Email: "patient@example.com", Password: password, FullName: "Demo Patient", Role: models.RolePatient},
		{Email: "doctor@example.com", Password: password, FullName: "Demo Doctor", Role: models.RoleDoctor},
	}
}

// EnsureDemoAccounts creates the given accounts if they are missing. Existing
// accounts keep their password but get the role assigned. Returns the number
// of accounts created.
func (s *Service) EnsureDemoAccounts(ctx context.Context, accounts []DemoAccount) (int, error) {
	created := 0
	for _, demo := range accounts {
		email := NormalizeEmail(demo.Email)
		if err := ValidateEmail(email); err != nil {
			return created, err
		}

		account, err := s.accounts.GetAccountByEmail(ctx, email)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				return created, fmt.Errorf("failed to get account: %w", err)
			}
			account, err = s.createDemoAccount(ctx, email, demo)
			if err != nil {
				return created, err
			}
			created++
		}

		if err := s.accounts.AssignRole(ctx, account.ID, demo.Role); err != nil {
			return created, fmt.Errorf("failed to assign role: %w", err)
		}
	}

	if created > 0 {
		slog.Info("demo_accounts_seeded", "created", created)
	}
	return created, nil
}

func (s *Service) createDemoAccount(ctx context.Context, email string, demo DemoAccount) (*models.Account, error) {
	if err := s.passwordValidator.Validate(demo.Password).Err(); err != nil {
		return nil, fmt.Errorf("demo password for %s: %w", email, err)
	}
	hash, err := s.hasher.Hash(demo.Password)
	if err != nil {
		return nil, err
	}
	account, err := s.accounts.CreateAccount(ctx, email, hash, demo.FullName)
	if err != nil {
		return nil, fmt.Errorf("failed to create demo account: %w", err)
	}
	if _, err := s.accounts.MarkEmailVerified(ctx, account.ID); err != nil {
		return nil, fmt.Errorf("failed to verify demo account: %w", err)
	}
	return account, nil
}
