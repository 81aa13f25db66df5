// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"fmt"

	"codeberg.org/oliverandrich/aura/internal/models"
)

// AssignRole grants a role to an account. Assigning an existing role is a no-op.
func (r *Repository) AssignRole(ctx context.Context, accountID string, role models.Role) error {
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}
	_, err := r.db.ExecContext(ctx, r.q(
		`INSERT INTO account_roles (account_id, role, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (account_id, role) DO NOTHING`),
		accountID, string(role), r.timestamp())
	if err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}
	return nil
}

// RevokeRole removes a role from an account.
func (r *Repository) RevokeRole(ctx context.Context, accountID string, role models.Role) error {
	_, err := r.db.ExecContext(ctx, r.q(`DELETE FROM account_roles WHERE account_id = ? AND role = ?`),
		accountID, string(role))
	return err
}

// GetAccountRoles lists the roles assigned to an account, ordered by name.
func (r *Repository) GetAccountRoles(ctx context.Context, accountID string) ([]models.Role, error) {
	var roles []models.Role
	err := r.db.SelectContext(ctx, &roles, r.q(`SELECT role FROM account_roles WHERE account_id = ? ORDER BY role`), accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	return roles, nil
}
