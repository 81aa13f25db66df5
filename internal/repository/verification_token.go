// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"codeberg.org/oliverandrich/aura/internal/models"
)

const tokenColumns = `id, account_id, token, purpose, expires_at, used, used_at, created_at`

// IssueVerificationToken marks every unused token of the same account and
// purpose as used and inserts tok, in one transaction.
func (r *Repository) IssueVerificationToken(ctx context.Context, tok *models.VerificationToken) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, r.q(
		`UPDATE verification_tokens SET used = TRUE, used_at = ?
		 WHERE account_id = ? AND purpose = ? AND used = FALSE`),
		tok.CreatedAt, tok.AccountID, string(tok.Purpose)); err != nil {
		return fmt.Errorf("failed to invalidate previous tokens: %w", err)
	}

	if _, err := tx.ExecContext(ctx, r.q(
		`INSERT INTO verification_tokens (id, account_id, token, purpose, expires_at, used, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		tok.ID, tok.AccountID, tok.Token, string(tok.Purpose), tok.ExpiresAt, false, tok.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert token: %w", err)
	}

	return tx.Commit()
}

// GetVerificationToken retrieves a token record without mutating it.
func (r *Repository) GetVerificationToken(ctx context.Context, token string) (*models.VerificationToken, error) {
	var tok models.VerificationToken
	err := r.db.GetContext(ctx, &tok, r.q(`SELECT `+tokenColumns+` FROM verification_tokens WHERE token = ?`), token)
	if err != nil {
		return nil, wrapError(err)
	}
	return &tok, nil
}

// ConsumeVerificationToken marks a valid token as used. The condition is
// evaluated by the database, so of several concurrent callers only one gets true.
func (r *Repository) ConsumeVerificationToken(ctx context.Context, token string, purpose models.TokenPurpose, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.q(
		`UPDATE verification_tokens SET used = TRUE, used_at = ?
		 WHERE token = ? AND purpose = ? AND used = FALSE AND expires_at >= ?`),
		now, token, string(purpose), now)
	if err != nil {
		return false, fmt.Errorf("failed to consume token: %w", err)
	}
	return affected(res)
}

// InvalidateVerificationTokens marks unused tokens of an account as used. An
// empty purpose matches every purpose.
func (r *Repository) InvalidateVerificationTokens(ctx context.Context, accountID string, purpose models.TokenPurpose, now time.Time) (int64, error) {
	query := `UPDATE verification_tokens SET used = TRUE, used_at = ? WHERE account_id = ? AND used = FALSE`
	args := []any{now, accountID}
	if purpose != "" {
		query += ` AND purpose = ?`
		args = append(args, string(purpose))
	}

	res, err := r.db.ExecContext(ctx, r.q(query), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate tokens: %w", err)
	}
	return res.RowsAffected()
}

// ListVerificationTokens returns all tokens of an account, newest first.
func (r *Repository) ListVerificationTokens(ctx context.Context, accountID string) ([]models.VerificationToken, error) {
	var tokens []models.VerificationToken
	err := r.db.SelectContext(ctx, &tokens, r.q(
		`SELECT `+tokenColumns+` FROM verification_tokens WHERE account_id = ? ORDER BY created_at DESC`), accountID)
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// DeleteExpiredVerificationTokens deletes tokens that expired before the given time.
func (r *Repository) DeleteExpiredVerificationTokens(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.q(`DELETE FROM verification_tokens WHERE expires_at < ?`), before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	return res.RowsAffected()
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
