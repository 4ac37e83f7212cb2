// Package orgs manages the lifecycle of organizations and keeps the
// directory, the asset registry and the callback receiver in step with it.
package orgs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MacJediWizard/orgwarden/internal/assets"
	"github.com/MacJediWizard/orgwarden/internal/callbacks"
	"github.com/MacJediWizard/orgwarden/internal/directory"
	"github.com/MacJediWizard/orgwarden/internal/errs"
	"github.com/MacJediWizard/orgwarden/internal/events"
	"github.com/MacJediWizard/orgwarden/internal/models"
	"github.com/MacJediWizard/orgwarden/internal/naming"
	"github.com/MacJediWizard/orgwarden/internal/store"
	"github.com/rs/zerolog"
)

// Config holds the organization settings.
type Config struct {
	Namer                 naming.Namer
	DefaultInviteLanguage string
	// SystemAdminRole exempts its holders from becoming a member of the
	// organizations they create.
	SystemAdminRole string
}

// Service implements the organization operations.
type Service struct {
	store     store.Store
	directory directory.Directory
	callbacks callbacks.Receiver
	assets    *assets.Service
	bus       *events.Bus
	config    Config
	logger    zerolog.Logger
}

// NewService creates an organization service.
func NewService(
	st store.Store,
	dir directory.Directory,
	cb callbacks.Receiver,
	assetSvc *assets.Service,
	bus *events.Bus,
	cfg Config,
	logger zerolog.Logger,
) *Service {
	if cfg.DefaultInviteLanguage == "" {
		cfg.DefaultInviteLanguage = "en"
	}
	return &Service{
		store:     st,
		directory: dir,
		callbacks: cb,
		assets:    assetSvc,
		bus:       bus,
		config:    cfg,
		logger:    logger.With().Str("component", "orgs").Logger(),
	}
}

// Get returns an organization with its users and roles.
func (s *Service) Get(ctx context.Context, id int64) (*models.Organization, error) {
	return s.store.GetOrganization(ctx, id)
}

// List returns all organizations ordered by name.
func (s *Service) List(ctx context.Context) ([]*models.Organization, error) {
	return s.store.ListOrganizations(ctx)
}

// Create persists a new organization and provisions its admin role in the
// directory. Unless the actor is a system administrator, the actor becomes
// an accepted admin member and receives the role.
func (s *Service) Create(ctx context.Context, actor models.Principal, org *models.Organization) (*models.Organization, error) {
	if org == nil {
		return nil, errs.Invalid("organization is required")
	}
	org.Name = strings.TrimSpace(org.Name)
	if err := org.AssignRole(s.config.Namer); err != nil {
		return nil, err
	}

	var admin *models.User
	if !actor.Anonymous() && !s.isSystemAdmin(actor) {
		admin = models.NewUser(actor.Login, s.config.DefaultInviteLanguage)
		admin.Status = models.UserStatusAccepted
		admin.IsAdmin = true
	}

	var created *models.Organization
	err := s.store.InTx(ctx, func(tx store.Store) error {
		if _, err := tx.GetOrganizationByName(ctx, org.Name); err == nil {
			return errs.Conflict("organization %q already exists", org.Name)
		} else if !errors.Is(err, store.ErrOrganizationNotFound) {
			return err
		}

		inUse, err := tx.RoleIdentifierInUse(ctx, org.Role)
		if err != nil {
			return fmt.Errorf("check admin role: %w", err)
		}
		if inUse {
			return errs.Conflict("role %s already exists", org.Role)
		}
		known, err := s.directory.AllRoleNames(ctx)
		if err != nil {
			return fmt.Errorf("list directory roles: %w", err)
		}
		if _, ok := known[org.Role]; ok {
			return errs.Conflict("role %s already exists in the directory", org.Role)
		}

		if admin != nil {
			switch owner, err := tx.GetUserByLogin(ctx, admin.Login); {
			case err == nil:
				return errs.Conflict("login %s belongs to organization %d", admin.Login, owner.OrganizationID)
			case !errors.Is(err, store.ErrUserNotFound):
				return err
			}
		}

		now := time.Now()
		org.CreatedAt, org.UpdatedAt = now, now
		if err := tx.CreateOrganization(ctx, org); err != nil {
			return err
		}
		if admin != nil {
			admin.OrganizationID = org.ID
			if err := tx.CreateUser(ctx, admin); err != nil {
				return fmt.Errorf("create admin user: %w", err)
			}
		}

		if err := s.directory.AddRole(ctx, org.Role); err != nil {
			return fmt.Errorf("add directory role %s: %w", org.Role, err)
		}
		if admin != nil {
			if err := s.directory.AssignRolesToUser(ctx, admin.Login, []string{org.Role}); err != nil {
				return fmt.Errorf("assign admin role to %s: %w", admin.Login, err)
			}
		}

		created, err = tx.GetOrganization(ctx, org.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("org_id", created.ID).Str("role", created.Role).Str("login", actor.Login).Msg("organization created")
	return created, nil
}

// Update writes the mutable fields of the organization with id from
// changes. The admin role never changes.
func (s *Service) Update(ctx context.Context, id int64, changes *models.Organization) (*models.Organization, error) {
	if changes == nil {
		return nil, errs.Invalid("organization is required")
	}
	if changes.Role != "" {
		return nil, errs.Invalid("the admin role of an organization cannot be changed")
	}

	var updated *models.Organization
	err := s.store.InTx(ctx, func(tx store.Store) error {
		org, err := tx.GetOrganization(ctx, id)
		if err != nil {
			return err
		}

		name := strings.TrimSpace(changes.Name)
		if name != org.Name {
			switch other, err := tx.GetOrganizationByName(ctx, name); {
			case err == nil && other.ID != org.ID:
				return errs.Conflict("organization %q already exists", name)
			case err != nil && !errors.Is(err, store.ErrOrganizationNotFound):
				return err
			}
		}

		org.Name = name
		org.Address = changes.Address
		org.ContactName = changes.ContactName
		org.ContactEmail = changes.ContactEmail
		org.ContactPhone = changes.ContactPhone
		org.Image = changes.Image
		org.Logo = changes.Logo
		org.UpdatedAt = time.Now()
		if err := tx.UpdateOrganization(ctx, org); err != nil {
			return err
		}
		updated = org
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("org_id", updated.ID).Msg("organization updated")
	return updated, nil
}

// Delete removes an empty organization. It is refused while users, roles
// or registry devices are attached, and when the callback receiver vetoes.
// Afterwards the admin role leaves the directory and the receiver is told.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.store.InTx(ctx, func(tx store.Store) error {
		org, err := tx.GetOrganization(ctx, id)
		if err != nil {
			return err
		}
		if !org.IsEmpty() {
			return errs.Invalid("organization %q still has %d users and %d roles", org.Name, len(org.Users), len(org.Roles))
		}

		owned, err := s.assets.HasOwned(ctx, org.ID)
		if err != nil {
			return fmt.Errorf("check owned devices: %w", err)
		}
		if owned {
			return errs.Invalid("organization %q still owns devices", org.Name)
		}

		allow, err := s.callbacks.OrganizationPreDeleteCheck(ctx, org.ID)
		if err != nil {
			return fmt.Errorf("pre-delete check: %w", err)
		}
		if !allow {
			return errs.Conflict("deletion of organization %q was vetoed", org.Name)
		}

		if err := tx.DeleteOrganization(ctx, org.ID); err != nil {
			return err
		}
		if err := s.directory.DeleteRole(ctx, org.Role); err != nil {
			return fmt.Errorf("delete directory role %s: %w", org.Role, err)
		}
		if _, err := s.assets.ReleaseAll(ctx, org.ID); err != nil {
			return fmt.Errorf("release devices: %w", err)
		}
		if err := s.callbacks.OrganizationRemoved(ctx, org.ID); err != nil {
			return fmt.Errorf("notify organization removal: %w", err)
		}

		s.logger.Info().Int64("org_id", org.ID).Str("role", org.Role).Msg("organization deleted")
		return nil
	})
}

func (s *Service) isSystemAdmin(p models.Principal) bool {
	return s.config.SystemAdminRole != "" && p.HasRole(s.config.SystemAdminRole)
}
