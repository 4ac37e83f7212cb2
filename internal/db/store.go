package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MacJediWizard/orgwarden/internal/models"
	"github.com/MacJediWizard/orgwarden/internal/store"
	"github.com/jackc/pgx/v5"
)

var _ store.Store = (*DB)(nil)

const organizationColumns = `id, name, role, street, zip_code, city, country,
	contact_name, contact_email, contact_phone, image, logo, created_at, updated_at`

func scanOrganization(row pgx.Row) (*models.Organization, error) {
	var org models.Organization
	err := row.Scan(
		&org.ID, &org.Name, &org.Role,
		&org.Address.Street, &org.Address.ZipCode, &org.Address.City, &org.Address.Country,
		&org.ContactName, &org.ContactEmail, &org.ContactPhone,
		&org.Image, &org.Logo, &org.CreatedAt, &org.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// Organization methods

// CreateOrganization inserts org and sets its ID.
func (db *DB) CreateOrganization(ctx context.Context, org *models.Organization) error {
	now := time.Now()
	err := db.q.QueryRow(ctx, `
		INSERT INTO organizations (name, role, street, zip_code, city, country,
			contact_name, contact_email, contact_phone, image, logo, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		RETURNING id
	`, org.Name, org.Role,
		org.Address.Street, org.Address.ZipCode, org.Address.City, org.Address.Country,
		org.ContactName, org.ContactEmail, org.ContactPhone, org.Image, org.Logo, now,
	).Scan(&org.ID)
	if err != nil {
		return fmt.Errorf("create organization: %w", mapPostgresError(err))
	}
	org.CreatedAt, org.UpdatedAt = now, now

	db.logger.Debug().Int64("org_id", org.ID).Str("name", org.Name).Msg("created organization")
	return nil
}

// GetOrganization returns the organization with users and roles loaded.
func (db *DB) GetOrganization(ctx context.Context, id int64) (*models.Organization, error) {
	org, err := scanOrganization(db.q.QueryRow(ctx,
		`SELECT `+organizationColumns+` FROM organizations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("get organization: %w", err)
	}

	if org.Users, err = db.ListUsersByOrganization(ctx, id); err != nil {
		return nil, err
	}
	if org.Roles, err = db.ListRolesByOrganization(ctx, id); err != nil {
		return nil, err
	}
	return org, nil
}

// GetOrganizationByName returns the organization without its collections.
func (db *DB) GetOrganizationByName(ctx context.Context, name string) (*models.Organization, error) {
	org, err := scanOrganization(db.q.QueryRow(ctx,
		`SELECT `+organizationColumns+` FROM organizations WHERE name = $1`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("get organization by name: %w", err)
	}
	return org, nil
}

// ListOrganizations returns all organizations ordered by name.
func (db *DB) ListOrganizations(ctx context.Context) ([]*models.Organization, error) {
	rows, err := db.q.Query(ctx, `SELECT `+organizationColumns+` FROM organizations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*models.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate organizations: %w", err)
	}
	return orgs, nil
}

// UpdateOrganization writes the mutable fields. role is left untouched.
func (db *DB) UpdateOrganization(ctx context.Context, org *models.Organization) error {
	org.UpdatedAt = time.Now()
	result, err := db.q.Exec(ctx, `
		UPDATE organizations SET
			name = $2, street = $3, zip_code = $4, city = $5, country = $6,
			contact_name = $7, contact_email = $8, contact_phone = $9,
			image = $10, logo = $11, updated_at = $12
		WHERE id = $1
	`, org.ID, org.Name,
		org.Address.Street, org.Address.ZipCode, org.Address.City, org.Address.Country,
		org.ContactName, org.ContactEmail, org.ContactPhone, org.Image, org.Logo, org.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update organization: %w", mapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return store.ErrOrganizationNotFound
	}
	return nil
}

// DeleteOrganization deletes the organization. Users, roles and assignments
// go with it through ON DELETE CASCADE.
func (db *DB) DeleteOrganization(ctx context.Context, id int64) error {
	result, err := db.q.Exec(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete organization: %w", mapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return store.ErrOrganizationNotFound
	}

	db.logger.Debug().Int64("org_id", id).Msg("deleted organization")
	return nil
}

// RoleIdentifierInUse checks organization admin roles and custom roles.
func (db *DB) RoleIdentifierInUse(ctx context.Context, identifier string) (bool, error) {
	var exists bool
	err := db.q.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM organizations WHERE role = $1)
			OR EXISTS(SELECT 1 FROM roles WHERE role = $1)
	`, identifier).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check role identifier: %w", err)
	}
	return exists, nil
}
