package directory

import (
	"context"
	"time"

	"github.com/MacJediWizard/orgwarden/internal/metrics"
)

const system = "directory"

// Instrumented records call counts and latency of the wrapped Directory.
type Instrumented struct {
	next    Directory
	metrics *metrics.Metrics
}

var _ Directory = (*Instrumented)(nil)

// NewInstrumented wraps next.
func NewInstrumented(next Directory, m *metrics.Metrics) *Instrumented {
	return &Instrumented{next: next, metrics: m}
}

// AddRole implements Directory.
func (d *Instrumented) AddRole(ctx context.Context, role string) (err error) {
	defer func(start time.Time) { d.metrics.ObserveExternalCall(system, "add_role", start, err) }(time.Now())
	return d.next.AddRole(ctx, role)
}

// DeleteRole implements Directory.
func (d *Instrumented) DeleteRole(ctx context.Context, role string) (err error) {
	defer func(start time.Time) { d.metrics.ObserveExternalCall(system, "delete_role", start, err) }(time.Now())
	return d.next.DeleteRole(ctx, role)
}

// AllRoleNames implements Directory.
func (d *Instrumented) AllRoleNames(ctx context.Context) (_ map[string]struct{}, err error) {
	defer func(start time.Time) { d.metrics.ObserveExternalCall(system, "all_role_names", start, err) }(time.Now())
	return d.next.AllRoleNames(ctx)
}

// AssignRolesToUser implements Directory.
func (d *Instrumented) AssignRolesToUser(ctx context.Context, login string, roles []string) (err error) {
	defer func(start time.Time) { d.metrics.ObserveExternalCall(system, "assign_roles", start, err) }(time.Now())
	return d.next.AssignRolesToUser(ctx, login, roles)
}

// RemoveRolesFromUser implements Directory.
func (d *Instrumented) RemoveRolesFromUser(ctx context.Context, login string, roles []string) (err error) {
	defer func(start time.Time) { d.metrics.ObserveExternalCall(system, "remove_roles", start, err) }(time.Now())
	return d.next.RemoveRolesFromUser(ctx, login, roles)
}

// UserRoles implements Directory.
func (d *Instrumented) UserRoles(ctx context.Context, login string) (_ map[string]struct{}, err error) {
	defer func(start time.Time) { d.metrics.ObserveExternalCall(system, "user_roles", start, err) }(time.Now())
	return d.next.UserRoles(ctx, login)
}

// UsersInRole implements Directory.
func (d *Instrumented) UsersInRole(ctx context.Context, role string) (_ map[string]struct{}, err error) {
	defer func(start time.Time) { d.metrics.ObserveExternalCall(system, "users_in_role", start, err) }(time.Now())
	return d.next.UsersInRole(ctx, role)
}

// UserExists implements Directory.
func (d *Instrumented) UserExists(ctx context.Context, login string) (_ bool, err error) {
	defer func(start time.Time) { d.metrics.ObserveExternalCall(system, "user_exists", start, err) }(time.Now())
	return d.next.UserExists(ctx, login)
}

// UnblockUser implements Directory.
func (d *Instrumented) UnblockUser(ctx context.Context, login string) (err error) {
	defer func(start time.Time) { d.metrics.ObserveExternalCall(system, "unblock_user", start, err) }(time.Now())
	return d.next.UnblockUser(ctx, login)
}

// UserInfo implements Directory.
func (d *Instrumented) UserInfo(ctx context.Context, login string) (_ *UserInfo, _ bool, err error) {
	defer func(start time.Time) { d.metrics.ObserveExternalCall(system, "user_info", start, err) }(time.Now())
	return d.next.UserInfo(ctx, login)
}
