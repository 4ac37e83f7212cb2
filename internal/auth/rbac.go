package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MacJediWizard/orgwarden/internal/errs"
	"github.com/MacJediWizard/orgwarden/internal/models"
	"github.com/MacJediWizard/orgwarden/internal/store"
)

// Permission defines an action that can be performed.
type Permission string

const (
	// Organization permissions
	PermOrgRead          Permission = "org:read"
	PermOrgUpdate        Permission = "org:update"
	PermOrgDelete        Permission = "org:delete"
	PermOrgCascadeDelete Permission = "org:cascade_delete"

	// Member and role permissions
	PermMemberRead   Permission = "member:read"
	PermMemberManage Permission = "member:manage"
	PermMemberInvite Permission = "member:invite"

	// Device permissions
	PermDeviceRead   Permission = "device:read"
	PermDeviceManage Permission = "device:manage"
)

// Level is the access a principal has to one organization.
type Level string

const (
	LevelNone   Level = ""
	LevelMember Level = "member"
	LevelAdmin  Level = "admin"
	LevelSystem Level = "system"
)

// levelPermissions maps access levels to their allowed permissions.
var levelPermissions = map[Level][]Permission{
	LevelSystem: {
		PermOrgRead, PermOrgUpdate, PermOrgDelete, PermOrgCascadeDelete,
		PermMemberRead, PermMemberManage, PermMemberInvite,
		PermDeviceRead, PermDeviceManage,
	},
	LevelAdmin: {
		// cascade delete stays with system administrators
		PermOrgRead, PermOrgUpdate, PermOrgDelete,
		PermMemberRead, PermMemberManage, PermMemberInvite,
		PermDeviceRead, PermDeviceManage,
	},
	LevelMember: {
		PermOrgRead,
		PermMemberRead,
		PermDeviceRead,
	},
}

// MembershipStore defines the lookups authorization needs.
type MembershipStore interface {
	GetOrganization(ctx context.Context, id int64) (*models.Organization, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
}

// Authorizer decides what a principal may do in an organization. Holders
// of the system admin role may do everything; holders of an organization's
// admin role, and its accepted admin users, administer it; its other
// accepted users may read.
type Authorizer struct {
	store           MembershipStore
	systemAdminRole string
}

// NewAuthorizer creates a new Authorizer.
func NewAuthorizer(st MembershipStore, systemAdminRole string) *Authorizer {
	return &Authorizer{store: st, systemAdminRole: systemAdminRole}
}

// IsSystemAdmin reports whether p holds the system admin role.
func (a *Authorizer) IsSystemAdmin(p models.Principal) bool {
	return a.systemAdminRole != "" && p.HasRole(a.systemAdminRole)
}

// Level returns the access level of p in the organization. An unknown
// organization grants no access; only system admins learn it is missing.
func (a *Authorizer) Level(ctx context.Context, p models.Principal, orgID int64) (Level, error) {
	if p.Anonymous() {
		return LevelNone, nil
	}
	if a.IsSystemAdmin(p) {
		return LevelSystem, nil
	}
	org, err := a.store.GetOrganization(ctx, orgID)
	if errs.Is(err, errs.ENotFound) {
		return LevelNone, nil
	}
	if err != nil {
		return LevelNone, err
	}
	if p.HasRole(org.Role) {
		return LevelAdmin, nil
	}

	user, err := a.member(ctx, p)
	if err != nil {
		return LevelNone, err
	}
	if user == nil || user.OrganizationID != org.ID || !user.IsAccepted() {
		return LevelNone, nil
	}
	if user.IsAdmin {
		return LevelAdmin, nil
	}
	return LevelMember, nil
}

// HasLevelPermission checks if a level has the given permission.
func HasLevelPermission(level Level, perm Permission) bool {
	for _, p := range levelPermissions[level] {
		if p == perm {
			return true
		}
	}
	return false
}

// Authorize returns nil if p holds perm in the organization, ErrUnauthenticated
// for anonymous callers and a forbidden error otherwise. An unknown
// organization is reported as not found.
func (a *Authorizer) Authorize(ctx context.Context, p models.Principal, orgID int64, perm Permission) error {
	if p.Anonymous() {
		return errs.ErrUnauthenticated
	}
	level, err := a.Level(ctx, p, orgID)
	if err != nil {
		return err
	}
	if !HasLevelPermission(level, perm) {
		return errs.Forbidden("%s may not %s in organization %d", p.Login, perm, orgID)
	}
	return nil
}

// RequireSystemAdmin returns a forbidden error unless p is a system admin.
func (a *Authorizer) RequireSystemAdmin(p models.Principal) error {
	if p.Anonymous() {
		return errs.ErrUnauthenticated
	}
	if !a.IsSystemAdmin(p) {
		return errs.Forbidden("%s is not a system administrator", p.Login)
	}
	return nil
}

// Conceal answers a failed lookup of something p wants to act on. Unless p
// is a system admin, not found becomes forbidden.
func (a *Authorizer) Conceal(p models.Principal, err error, perm Permission) error {
	if errs.Is(err, errs.ENotFound) && !a.IsSystemAdmin(p) {
		return errs.Forbidden("%s may not %s", p.Login, perm)
	}
	return err
}

// Visible filters orgs down to the ones p may read.
func (a *Authorizer) Visible(ctx context.Context, p models.Principal, orgs []*models.Organization) ([]*models.Organization, error) {
	if p.Anonymous() {
		return nil, errs.ErrUnauthenticated
	}
	if a.IsSystemAdmin(p) {
		return orgs, nil
	}
	user, err := a.member(ctx, p)
	if err != nil {
		return nil, err
	}

	out := make([]*models.Organization, 0, len(orgs))
	for _, org := range orgs {
		if p.HasRole(org.Role) || (user != nil && user.IsAccepted() && user.OrganizationID == org.ID) {
			out = append(out, org)
		}
	}
	return out, nil
}

func (a *Authorizer) member(ctx context.Context, p models.Principal) (*models.User, error) {
	user, err := a.store.GetUserByLogin(ctx, p.Login)
	if errors.Is(err, store.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return user, nil
}
