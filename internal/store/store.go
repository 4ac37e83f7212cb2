// Package store defines the persistence contract of the organization model.
//
// Two implementations exist: internal/db (PostgreSQL) and internal/store/memory
// (development and tests). Both return the sentinel errors below, or coded
// errs.Error values, so that services never depend on the backend.
package store

import (
	"context"

	"github.com/MacJediWizard/orgwarden/internal/errs"
	"github.com/MacJediWizard/orgwarden/internal/models"
)

// Sentinel errors for store operations.
var (
	ErrOrganizationNotFound = &errs.Error{Code: errs.ENotFound, Msg: "organization not found"}
	ErrUserNotFound         = &errs.Error{Code: errs.ENotFound, Msg: "user not found"}
	ErrRoleNotFound         = &errs.Error{Code: errs.ENotFound, Msg: "role not found"}

	ErrOrganizationExists = &errs.Error{Code: errs.EConflict, Msg: "organization name or role already exists"}
	ErrLoginExists        = &errs.Error{Code: errs.EConflict, Msg: "login already exists"}
	ErrRoleExists         = &errs.Error{Code: errs.EConflict, Msg: "role identifier already exists"}
)

// OrganizationStore persists organizations.
type OrganizationStore interface {
	// CreateOrganization inserts org and sets its ID.
	// Returns ErrOrganizationExists if the name or the admin role is taken.
	CreateOrganization(ctx context.Context, org *models.Organization) error

	// GetOrganization returns the organization with its users and roles loaded.
	GetOrganization(ctx context.Context, id int64) (*models.Organization, error)

	// GetOrganizationByName returns the organization without its collections.
	GetOrganizationByName(ctx context.Context, name string) (*models.Organization, error)

	// ListOrganizations returns all organizations ordered by name, without
	// their collections.
	ListOrganizations(ctx context.Context) ([]*models.Organization, error)

	// UpdateOrganization writes the mutable fields. The admin role is never
	// written after creation.
	UpdateOrganization(ctx context.Context, org *models.Organization) error

	// DeleteOrganization deletes the organization together with its users,
	// roles and role assignments.
	DeleteOrganization(ctx context.Context, id int64) error

	// RoleIdentifierInUse reports whether identifier is used as an
	// organization admin role or a custom role anywhere in the system.
	RoleIdentifierInUse(ctx context.Context, identifier string) (bool, error)
}

// UserStore persists users and their role assignments.
type UserStore interface {
	// CreateUser inserts user and sets its ID.
	// Returns ErrLoginExists if the login is taken.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUser returns the user with its roles loaded.
	GetUser(ctx context.Context, id int64) (*models.User, error)

	// GetUserByLogin looks up a user by normalized login across all
	// organizations.
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)

	// GetUserByAcceptKey looks up an invited user by accept key. Expiry is the
	// caller's concern.
	GetUserByAcceptKey(ctx context.Context, key string) (*models.User, error)

	// ListUsersByOrganization returns the organization's users, roles loaded,
	// ordered by ID.
	ListUsersByOrganization(ctx context.Context, orgID int64) ([]*models.User, error)

	// UpdateUser writes status, accept key, admin flag and invite language.
	UpdateUser(ctx context.Context, user *models.User) error

	// SetUserRoles replaces the user's role assignments, keeping order.
	SetUserRoles(ctx context.Context, userID int64, roleIDs []int64) error

	// DeleteUser deletes the user and its role assignments.
	DeleteUser(ctx context.Context, id int64) error
}

// RoleStore persists custom roles.
type RoleStore interface {
	// CreateRole inserts role and sets its ID. The identifier may still be
	// empty; it is derived from the ID afterwards.
	CreateRole(ctx context.Context, role *models.Role) error

	// SetRoleIdentifier stores the derived identifier of a role.
	// Returns ErrRoleExists if the identifier is taken.
	SetRoleIdentifier(ctx context.Context, roleID int64, identifier string) error

	// GetRole returns a role by ID.
	GetRole(ctx context.Context, id int64) (*models.Role, error)

	// ListRolesByOrganization returns the organization's roles ordered by ID.
	ListRolesByOrganization(ctx context.Context, orgID int64) ([]*models.Role, error)

	// DeleteRole deletes the role and every assignment of it.
	DeleteRole(ctx context.Context, id int64) error
}

// Store is the complete persistence contract.
type Store interface {
	OrganizationStore
	UserStore
	RoleStore

	// InTx runs fn inside a transaction. The Store passed to fn must be used
	// for every call that belongs to the transaction. Returning an error
	// rolls back. Calling InTx on a transactional Store reuses the running
	// transaction.
	InTx(ctx context.Context, fn func(tx Store) error) error
}
