// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"fmt"

	"codeberg.org/oliverandrich/aura/internal/database"
	"codeberg.org/oliverandrich/aura/internal/models"
	"github.com/google/uuid"
)

const accountColumns = `id, email, password_hash, full_name, is_active, email_verified, email_verified_at, created_at, updated_at`

// CreateAccount inserts a new account. The UNIQUE constraint on email is the
// authoritative duplicate check.
func (r *Repository) CreateAccount(ctx context.Context, email, passwordHash, fullName string) (*models.Account, error) {
	now := r.timestamp()
	account := &models.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		FullName:     fullName,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := r.db.ExecContext(ctx, r.q(
		`INSERT INTO accounts (id, email, password_hash, full_name, is_active, email_verified, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		account.ID, account.Email, account.PasswordHash, account.FullName,
		account.IsActive, account.EmailVerified, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to insert account: %w", err)
	}

	return account, nil
}

// GetAccountByID retrieves an account by ID.
func (r *Repository) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	err := r.db.GetContext(ctx, &account, r.q(`SELECT `+accountColumns+` FROM accounts WHERE id = ?`), id)
	if err != nil {
		return nil, wrapError(err)
	}
	return &account, nil
}

// GetAccountByEmail retrieves an account by exact email match.
func (r *Repository) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	err := r.db.GetContext(ctx, &account, r.q(`SELECT `+accountColumns+` FROM accounts WHERE email = ?`), email)
	if err != nil {
		return nil, wrapError(err)
	}
	return &account, nil
}

// AccountExists checks whether an account with the email exists.
func (r *Repository) AccountExists(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, r.q(`SELECT count(*) FROM accounts WHERE email = ?`), email); err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateAccountPassword replaces the password hash. It returns false when no
// account matched.
func (r *Repository) UpdateAccountPassword(ctx context.Context, id, passwordHash string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.q(`UPDATE accounts SET password_hash = ?, updated_at = ? WHERE id = ?`),
		passwordHash, r.timestamp(), id)
	if err != nil {
		return false, fmt.Errorf("failed to update password: %w", err)
	}
	return affected(res)
}

// MarkEmailVerified sets the verified flag. The first verification timestamp
// is kept on repeated calls. It returns false when no account matched.
func (r *Repository) MarkEmailVerified(ctx context.Context, id string) (bool, error) {
	now := r.timestamp()
	res, err := r.db.ExecContext(ctx, r.q(
		`UPDATE accounts
		 SET email_verified = TRUE,
		     email_verified_at = COALESCE(email_verified_at, ?),
		     updated_at = ?
		 WHERE id = ?`), now, now, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark email verified: %w", err)
	}
	return affected(res)
}

// SetAccountActive enables or disables login for an account.
func (r *Repository) SetAccountActive(ctx context.Context, id string, active bool) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.q(`UPDATE accounts SET is_active = ?, updated_at = ? WHERE id = ?`),
		active, r.timestamp(), id)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// CountAccounts returns the total number of accounts
func (r *Repository) CountAccounts(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT count(*) FROM accounts`); err != nil {
		return 0, err
	}
	return count, nil
}
