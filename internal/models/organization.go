// Package models defines the domain models for orgwarden.
package models

import (
	"time"

	"github.com/MacJediWizard/orgwarden/internal/errs"
	"github.com/MacJediWizard/orgwarden/internal/naming"
)

// Address is the postal address embedded in an organization.
type Address struct {
	Street  string `json:"street,omitempty"`
	ZipCode string `json:"zip_code,omitempty"`
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
}

// Organization is a tenant. It owns its users and roles.
type Organization struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	Address      Address   `json:"address"`
	ContactName  string    `json:"contact_name,omitempty"`
	ContactEmail string    `json:"contact_email,omitempty"`
	ContactPhone string    `json:"contact_phone,omitempty"`
	Image        string    `json:"image,omitempty"`
	Logo         string    `json:"logo,omitempty"`
	Users        []*User   `json:"-"`
	Roles        []*Role   `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewOrganization creates an Organization with the given name. The admin role
// is not derived yet; see AssignRole.
func NewOrganization(name string) *Organization {
	now := time.Now()
	return &Organization{
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AssignRole derives the organization admin role from the name. It must be
// called exactly once, before the organization is first persisted.
func (o *Organization) AssignRole(n naming.Namer) error {
	if o.Role != "" {
		return errs.ErrRoleAlreadyAssigned
	}
	o.Role = n.AdminRoleName(o.Name)
	return nil
}

// RoleIdentifiers returns the identifiers of the organization's custom roles.
func (o *Organization) RoleIdentifiers() []string {
	ids := make([]string, 0, len(o.Roles))
	for _, r := range o.Roles {
		if r.Role != "" {
			ids = append(ids, r.Role)
		}
	}
	return ids
}

// FindUserByLogin returns the member with the given (normalized) login.
func (o *Organization) FindUserByLogin(login string) *User {
	login = NormalizeLogin(login)
	for _, u := range o.Users {
		if u.Login == login {
			return u
		}
	}
	return nil
}

// IsEmpty reports whether no users and no roles remain attached.
func (o *Organization) IsEmpty() bool {
	return len(o.Users) == 0 && len(o.Roles) == 0
}
