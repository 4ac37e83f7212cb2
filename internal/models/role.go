package models

import (
	"github.com/MacJediWizard/orgwarden/internal/errs"
	"github.com/MacJediWizard/orgwarden/internal/naming"
)

// Role is a custom role owned by one organization. Name is for display; Role
// is the derived directory identifier.
type Role struct {
	ID             int64  `json:"id"`
	OrganizationID int64  `json:"organization_id"`
	Name           string `json:"name"`
	Role           string `json:"role"`
}

// AssignIdentifier derives the directory identifier once the role has an id.
func (r *Role) AssignIdentifier(n naming.Namer, organizationName string) error {
	if r.Role != "" {
		return errs.ErrRoleAlreadyAssigned
	}
	r.Role = n.RoleName(organizationName, r.ID)
	return nil
}
