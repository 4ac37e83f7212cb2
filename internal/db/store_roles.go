package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/MacJediWizard/orgwarden/internal/models"
	"github.com/MacJediWizard/orgwarden/internal/store"
	"github.com/jackc/pgx/v5"
)

// CreateRole inserts role and sets its ID. An empty identifier is stored as
// NULL until SetRoleIdentifier runs.
func (db *DB) CreateRole(ctx context.Context, role *models.Role) error {
	err := db.q.QueryRow(ctx, `
		INSERT INTO roles (organization_id, name, role)
		VALUES ($1, $2, NULLIF($3, ''))
		RETURNING id
	`, role.OrganizationID, role.Name, role.Role).Scan(&role.ID)
	if err != nil {
		return fmt.Errorf("create role: %w", mapPostgresError(err))
	}
	return nil
}

// SetRoleIdentifier stores the derived identifier.
func (db *DB) SetRoleIdentifier(ctx context.Context, roleID int64, identifier string) error {
	result, err := db.q.Exec(ctx, `UPDATE roles SET role = $2 WHERE id = $1`, roleID, identifier)
	if err != nil {
		return fmt.Errorf("set role identifier: %w", mapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return store.ErrRoleNotFound
	}
	return nil
}

// GetRole returns a role by ID.
func (db *DB) GetRole(ctx context.Context, id int64) (*models.Role, error) {
	var r models.Role
	err := db.q.QueryRow(ctx, `
		SELECT id, organization_id, name, COALESCE(role, '') FROM roles WHERE id = $1
	`, id).Scan(&r.ID, &r.OrganizationID, &r.Name, &r.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrRoleNotFound
		}
		return nil, fmt.Errorf("get role: %w", err)
	}
	return &r, nil
}

// ListRolesByOrganization returns the organization's roles ordered by ID.
func (db *DB) ListRolesByOrganization(ctx context.Context, orgID int64) ([]*models.Role, error) {
	rows, err := db.q.Query(ctx, `
		SELECT id, organization_id, name, COALESCE(role, '')
		FROM roles WHERE organization_id = $1 ORDER BY id
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var roles []*models.Role
	for rows.Next() {
		var r models.Role
		if err := rows.Scan(&r.ID, &r.OrganizationID, &r.Name, &r.Role); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}
	return roles, nil
}

// DeleteRole deletes the role; assignments go through ON DELETE CASCADE.
func (db *DB) DeleteRole(ctx context.Context, id int64) error {
	result, err := db.q.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete role: %w", mapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return store.ErrRoleNotFound
	}
	return nil
}
