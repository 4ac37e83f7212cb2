// Package membership enforces the invariants around users, roles and their
// assignments, and keeps the directory in step with every change.
//
// Each operation runs in one store transaction. Directory and callback calls
// happen inside it, so a failing call rolls the local change back.
package membership

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/MacJediWizard/orgwarden/internal/callbacks"
	"github.com/MacJediWizard/orgwarden/internal/directory"
	"github.com/MacJediWizard/orgwarden/internal/errs"
	"github.com/MacJediWizard/orgwarden/internal/models"
	"github.com/MacJediWizard/orgwarden/internal/naming"
	"github.com/MacJediWizard/orgwarden/internal/store"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"
)

// Config holds the settings the membership rules depend on.
type Config struct {
	Namer                 naming.Namer
	DefaultInviteLanguage string
}

// Service implements the membership operations.
type Service struct {
	store     store.Store
	directory directory.Directory
	callbacks callbacks.Receiver
	config    Config
	logger    zerolog.Logger
}

// NewService creates a membership service.
func NewService(st store.Store, dir directory.Directory, cb callbacks.Receiver, cfg Config, logger zerolog.Logger) *Service {
	if cfg.DefaultInviteLanguage == "" {
		cfg.DefaultInviteLanguage = "en"
	}
	return &Service{
		store:     st,
		directory: dir,
		callbacks: cb,
		config:    cfg,
		logger:    logger.With().Str("component", "membership").Logger(),
	}
}

// WithStore returns a copy of the service bound to st. Passing a
// transactional store makes every operation join that transaction.
func (s *Service) WithStore(st store.Store) *Service {
	c := *s
	c.store = st
	return &c
}

// NormalizeLanguage validates an IETF language tag. An empty tag yields the
// default invite language.
func (s *Service) NormalizeLanguage(tag string) (string, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return s.config.DefaultInviteLanguage, nil
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return "", errs.Invalid("invalid invite language %q", tag)
	}
	return parsed.String(), nil
}

// AddRoles creates custom roles in an organization. Each role is inserted to
// obtain its id, which its identifier is derived from; every identifier must
// be unused locally and unknown to the directory before the directory gets
// any of them. Names only need to be distinct within the batch.
func (s *Service) AddRoles(ctx context.Context, orgID int64, roles []*models.Role) ([]*models.Role, error) {
	seen := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		if r == nil {
			return nil, errs.Invalid("role must not be null")
		}
		if r.Role != "" {
			return nil, errs.Invalid("role identifier %q is derived and cannot be set", r.Role)
		}
		key := displayKey(r.Name)
		if key == "" {
			return nil, errs.Invalid("role name is required")
		}
		if _, dup := seen[key]; dup {
			return nil, errs.Conflict("role %q appears more than once", strings.TrimSpace(r.Name))
		}
		seen[key] = struct{}{}
	}

	err := s.store.InTx(ctx, func(tx store.Store) error {
		org, err := tx.GetOrganization(ctx, orgID)
		if err != nil {
			return err
		}
		known, err := s.directory.AllRoleNames(ctx)
		if err != nil {
			return fmt.Errorf("list directory roles: %w", err)
		}

		for _, r := range roles {
			r.Name = strings.TrimSpace(r.Name)
			r.OrganizationID = org.ID
			if err := tx.CreateRole(ctx, r); err != nil {
				return fmt.Errorf("create role %q: %w", r.Name, err)
			}
			if err := r.AssignIdentifier(s.config.Namer, org.Name); err != nil {
				return err
			}

			inUse, err := tx.RoleIdentifierInUse(ctx, r.Role)
			if err != nil {
				return fmt.Errorf("check role identifier: %w", err)
			}
			if _, ok := known[r.Role]; inUse || ok {
				return errs.Conflict("role identifier %s already exists", r.Role)
			}
			if err := tx.SetRoleIdentifier(ctx, r.ID, r.Role); err != nil {
				return err
			}
			known[r.Role] = struct{}{}
		}

		for _, r := range roles {
			if err := s.directory.AddRole(ctx, r.Role); err != nil {
				return fmt.Errorf("add directory role %s: %w", r.Role, err)
			}
			s.logger.Info().Int64("org_id", org.ID).Str("role", r.Role).Msg("role created")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return roles, nil
}

// AddUsers adds CREATED users to an organization. Logins are normalized.
// A user whose login already is a member, or appeared earlier in the batch,
// is dropped without error; a login owned by another organization is a
// conflict.
func (s *Service) AddUsers(ctx context.Context, orgID int64, users []*models.User) ([]*models.User, error) {
	for _, u := range users {
		if u == nil {
			return nil, errs.Invalid("user must not be null")
		}
		u.Login = models.NormalizeLogin(u.Login)
		if u.Login == "" {
			return nil, errs.Invalid("login is required")
		}
		lang, err := s.NormalizeLanguage(u.InviteLanguage)
		if err != nil {
			return nil, err
		}
		u.InviteLanguage = lang
	}

	var added []*models.User
	err := s.store.InTx(ctx, func(tx store.Store) error {
		org, err := tx.GetOrganization(ctx, orgID)
		if err != nil {
			return err
		}

		batch := make(map[string]struct{}, len(users))
		for _, u := range users {
			if _, dup := batch[u.Login]; dup || org.FindUserByLogin(u.Login) != nil {
				s.logger.Debug().Int64("org_id", org.ID).Str("login", u.Login).Msg("dropping duplicate user")
				continue
			}
			batch[u.Login] = struct{}{}

			owner, err := tx.GetUserByLogin(ctx, u.Login)
			switch {
			case err == nil:
				return errs.Conflict("login %s belongs to organization %d", u.Login, owner.OrganizationID)
			case !errors.Is(err, store.ErrUserNotFound):
				return err
			}

			u.ID = 0
			u.OrganizationID = org.ID
			u.Status = models.UserStatusCreated
			u.AcceptKey = nil
			u.Roles = nil
			if err := tx.CreateUser(ctx, u); err != nil {
				return fmt.Errorf("create user %s: %w", u.Login, err)
			}
			added = append(added, u)
			s.logger.Info().Int64("org_id", org.ID).Int64("user_id", u.ID).Str("login", u.Login).Msg("user added")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// LinkUserRoles assigns roles to a user. The user keeps the union of old and
// new roles. An accepted user known to the directory receives the roles of
// this batch there too.
func (s *Service) LinkUserRoles(ctx context.Context, userID int64, roles []*models.Role) (*models.User, error) {
	ids := make(map[int64]struct{}, len(roles))
	for _, r := range roles {
		if r == nil {
			return nil, errs.Invalid("role must not be null")
		}
		if _, dup := ids[r.ID]; dup {
			return nil, errs.Conflict("role %d appears more than once", r.ID)
		}
		ids[r.ID] = struct{}{}
	}

	var user *models.User
	err := s.store.InTx(ctx, func(tx store.Store) error {
		var err error
		user, err = tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}

		batch := make([]string, 0, len(roles))
		identifiers := make(map[string]struct{}, len(roles))
		assigned := user.RoleIDs()
		for _, ref := range roles {
			role, err := tx.GetRole(ctx, ref.ID)
			if err != nil {
				return err
			}
			if role.OrganizationID != user.OrganizationID {
				return errs.Invalid("role %d does not belong to the user's organization", role.ID)
			}
			if _, dup := identifiers[role.Role]; dup {
				return errs.Conflict("role %s appears more than once", role.Role)
			}
			identifiers[role.Role] = struct{}{}
			batch = append(batch, role.Role)
			if !user.HasRole(role.Role) {
				assigned = append(assigned, role.ID)
			}
		}

		if err := tx.SetUserRoles(ctx, user.ID, assigned); err != nil {
			return err
		}

		if user.IsAccepted() {
			known, err := s.directory.UserExists(ctx, user.Login)
			if err != nil {
				return fmt.Errorf("look up directory user %s: %w", user.Login, err)
			}
			if known {
				if err := s.directory.AssignRolesToUser(ctx, user.Login, batch); err != nil {
					return fmt.Errorf("assign directory roles: %w", err)
				}
			}
		}

		user, err = tx.GetUser(ctx, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// UnlinkUserRoles removes roles from a user. Role ids the user does not hold
// are ignored. For an accepted user known to the directory, the directory
// loses exactly the organization's custom roles the user no longer holds
// locally; roles of other organizations are never touched.
func (s *Service) UnlinkUserRoles(ctx context.Context, userID int64, roleIDs []int64) (*models.User, error) {
	remove := make(map[int64]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		remove[id] = struct{}{}
	}

	var user *models.User
	err := s.store.InTx(ctx, func(tx store.Store) error {
		var err error
		user, err = tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}

		var remaining []int64
		keep := make(map[string]struct{})
		for _, r := range user.Roles {
			if _, ok := remove[r.ID]; ok {
				continue
			}
			remaining = append(remaining, r.ID)
			keep[r.Role] = struct{}{}
		}
		if err := tx.SetUserRoles(ctx, user.ID, remaining); err != nil {
			return err
		}

		if user.IsAccepted() {
			if err := s.unlinkInDirectory(ctx, tx, user, keep); err != nil {
				return err
			}
		}

		user, err = tx.GetUser(ctx, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) unlinkInDirectory(ctx context.Context, tx store.Store, user *models.User, keep map[string]struct{}) error {
	known, err := s.directory.UserExists(ctx, user.Login)
	if err != nil {
		return fmt.Errorf("look up directory user %s: %w", user.Login, err)
	}
	if !known {
		return nil
	}

	held, err := s.directory.UserRoles(ctx, user.Login)
	if err != nil {
		return fmt.Errorf("get directory roles of %s: %w", user.Login, err)
	}
	orgRoles, err := tx.ListRolesByOrganization(ctx, user.OrganizationID)
	if err != nil {
		return err
	}

	var revoke []string
	for _, r := range orgRoles {
		_, isHeld := held[r.Role]
		_, isKept := keep[r.Role]
		if r.Role != "" && isHeld && !isKept {
			revoke = append(revoke, r.Role)
		}
	}
	sort.Strings(revoke)
	if err := s.directory.RemoveRolesFromUser(ctx, user.Login, revoke); err != nil {
		return fmt.Errorf("remove directory roles: %w", err)
	}
	return nil
}

// DeleteRole strips a role from every member of its organization, deletes
// it and removes it from the directory.
func (s *Service) DeleteRole(ctx context.Context, roleID int64) error {
	return s.store.InTx(ctx, func(tx store.Store) error {
		role, err := tx.GetRole(ctx, roleID)
		if err != nil {
			return err
		}

		members, err := tx.ListUsersByOrganization(ctx, role.OrganizationID)
		if err != nil {
			return err
		}
		for _, u := range members {
			if !holds(u, role.ID) {
				continue
			}
			var remaining []int64
			for _, id := range u.RoleIDs() {
				if id != role.ID {
					remaining = append(remaining, id)
				}
			}
			if err := tx.SetUserRoles(ctx, u.ID, remaining); err != nil {
				return err
			}
		}

		if err := tx.DeleteRole(ctx, role.ID); err != nil {
			return err
		}
		if role.Role != "" {
			if err := s.revokeEverywhere(ctx, role.Role); err != nil {
				return err
			}
			if err := s.directory.DeleteRole(ctx, role.Role); err != nil {
				return fmt.Errorf("delete directory role %s: %w", role.Role, err)
			}
		}
		s.logger.Info().Int64("org_id", role.OrganizationID).Str("role", role.Role).Msg("role deleted")
		return nil
	})
}

// revokeEverywhere takes role away from every directory account holding it,
// including accounts the local store no longer knows.
func (s *Service) revokeEverywhere(ctx context.Context, role string) error {
	holders, err := s.directory.UsersInRole(ctx, role)
	if err != nil {
		return fmt.Errorf("list holders of directory role %s: %w", role, err)
	}
	for _, login := range directory.Sorted(holders) {
		if err := s.directory.RemoveRolesFromUser(ctx, login, []string{role}); err != nil {
			return fmt.Errorf("revoke directory role %s from %s: %w", role, login, err)
		}
	}
	return nil
}

// DeleteUser deletes a user. When the directory knows the user, it loses the
// organization's admin and custom roles it holds. The callback receiver is
// always told.
func (s *Service) DeleteUser(ctx context.Context, userID int64) error {
	return s.store.InTx(ctx, func(tx store.Store) error {
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		org, err := tx.GetOrganization(ctx, user.OrganizationID)
		if err != nil {
			return err
		}

		known, err := s.directory.UserExists(ctx, user.Login)
		if err != nil {
			return fmt.Errorf("look up directory user %s: %w", user.Login, err)
		}
		if known {
			held, err := s.directory.UserRoles(ctx, user.Login)
			if err != nil {
				return fmt.Errorf("get directory roles of %s: %w", user.Login, err)
			}
			var revoke []string
			for _, r := range append([]string{org.Role}, org.RoleIdentifiers()...) {
				if _, ok := held[r]; ok {
					revoke = append(revoke, r)
				}
			}
			sort.Strings(revoke)
			if err := s.directory.RemoveRolesFromUser(ctx, user.Login, revoke); err != nil {
				return fmt.Errorf("remove directory roles: %w", err)
			}
		}

		if err := tx.DeleteUser(ctx, user.ID); err != nil {
			return err
		}
		if err := s.callbacks.UserRemoved(ctx, callbacks.UserEvent{Login: user.Login, OrganizationID: org.ID}); err != nil {
			return fmt.Errorf("notify user removal: %w", err)
		}

		s.logger.Info().Int64("org_id", org.ID).Int64("user_id", user.ID).Str("login", user.Login).Msg("user deleted")
		return nil
	})
}

// Profile is a user together with what the directory knows about it.
type Profile struct {
	*models.User
	Directory *directory.UserInfo `json:"directory,omitempty"`
}

// Profile returns the user and its directory profile, if any.
func (s *Service) Profile(ctx context.Context, userID int64) (*Profile, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	info, ok, err := s.directory.UserInfo(ctx, user.Login)
	if err != nil {
		return nil, fmt.Errorf("get directory profile of %s: %w", user.Login, err)
	}
	p := &Profile{User: user}
	if ok {
		p.Directory = info
	}
	return p, nil
}

// SetAdmin changes a user's admin flag. An accepted user known to the
// directory gains or loses the organization admin role there.
func (s *Service) SetAdmin(ctx context.Context, userID int64, isAdmin bool) (*models.User, error) {
	var user *models.User
	err := s.store.InTx(ctx, func(tx store.Store) error {
		var err error
		user, err = tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if user.IsAdmin == isAdmin {
			return nil
		}
		user.IsAdmin = isAdmin
		if err := tx.UpdateUser(ctx, user); err != nil {
			return err
		}
		if !user.IsAccepted() {
			return nil
		}

		known, err := s.directory.UserExists(ctx, user.Login)
		if err != nil {
			return fmt.Errorf("look up directory user %s: %w", user.Login, err)
		}
		if !known {
			return nil
		}
		org, err := tx.GetOrganization(ctx, user.OrganizationID)
		if err != nil {
			return err
		}
		if isAdmin {
			err = s.directory.AssignRolesToUser(ctx, user.Login, []string{org.Role})
		} else {
			err = s.directory.RemoveRolesFromUser(ctx, user.Login, []string{org.Role})
		}
		if err != nil {
			return fmt.Errorf("update directory admin role: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func displayKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func holds(u *models.User, roleID int64) bool {
	for _, r := range u.Roles {
		if r.ID == roleID {
			return true
		}
	}
	return false
}
