package orgs

import (
	"context"

	"github.com/MacJediWizard/orgwarden/internal/events"
	"github.com/MacJediWizard/orgwarden/internal/store"
)

// Cascade steps reported in a CascadeFailure.
const (
	StepCallback      = "callback"
	StepDirectoryRole = "directory_role"
	StepPublish       = "publish"
)

// CascadeFailure is a cleanup step that failed after the organization was
// already deleted.
type CascadeFailure struct {
	Step   string `json:"step"`
	Target string `json:"target,omitempty"`
	Error  string `json:"error"`
}

// CascadeReport describes what a cascade delete did.
type CascadeReport struct {
	OrganizationID        int64            `json:"organization_id"`
	DeletedUsers          int              `json:"deleted_users"`
	DeletedRoles          int              `json:"deleted_roles"`
	DirectoryRolesDeleted []string         `json:"directory_roles_deleted"`
	Failures              []CascadeFailure `json:"failures,omitempty"`
}

// OK reports whether every cleanup step succeeded.
func (r *CascadeReport) OK() bool { return len(r.Failures) == 0 }

func (r *CascadeReport) fail(step, target string, err error) {
	r.Failures = append(r.Failures, CascadeFailure{Step: step, Target: target, Error: err.Error()})
}

// CascadeDelete deletes an organization with all its users and roles,
// whatever is still attached. The local delete is committed first; then
// the callback receiver is told, the admin and custom roles are deleted
// from the directory and OrganizationCascadeDeleted is published so that
// owned devices get released.
//
// Cleanup steps run best-effort. A failing step is logged and recorded in
// the report and never retried; the returned error is reserved for the
// local delete.
func (s *Service) CascadeDelete(ctx context.Context, id int64) (*CascadeReport, error) {
	var ev events.OrganizationCascadeDeleted
	report := &CascadeReport{OrganizationID: id}

	err := s.store.InTx(ctx, func(tx store.Store) error {
		org, err := tx.GetOrganization(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteOrganization(ctx, org.ID); err != nil {
			return err
		}
		report.DeletedUsers = len(org.Users)
		report.DeletedRoles = len(org.Roles)
		ev = events.OrganizationCascadeDeleted{
			OrganizationID:   org.ID,
			OrganizationName: org.Name,
			AdminRole:        org.Role,
			RoleIdentifiers:  org.RoleIdentifiers(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger := s.logger.With().Int64("org_id", id).Logger()
	logger.Info().Int("users", report.DeletedUsers).Int("roles", report.DeletedRoles).Msg("organization cascade deleted")

	if err := s.callbacks.OrganizationRemoved(ctx, id); err != nil {
		logger.Error().Err(err).Msg("cascade: callback failed")
		report.fail(StepCallback, "", err)
	}

	for _, role := range append([]string{ev.AdminRole}, ev.RoleIdentifiers...) {
		if err := s.directory.DeleteRole(ctx, role); err != nil {
			logger.Error().Err(err).Str("role", role).Msg("cascade: directory role delete failed")
			report.fail(StepDirectoryRole, role, err)
			continue
		}
		report.DirectoryRolesDeleted = append(report.DirectoryRolesDeleted, role)
	}

	if err := s.bus.Publish(ctx, ev); err != nil {
		logger.Error().Err(err).Msg("cascade: event subscribers failed")
		report.fail(StepPublish, ev.EventName(), err)
	}

	return report, nil
}
