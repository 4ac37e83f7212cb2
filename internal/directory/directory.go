// Package directory talks to the external identity and authorization
// directory that holds the authoritative role assignments.
package directory

import (
	"context"
	"sort"
)

// UserInfo is the profile the directory keeps for a login.
type UserInfo struct {
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	PictureURL string `json:"picture_url,omitempty"`
}

// Directory is the contract consumed by the organization services. Every call
// is synchronous; errors abort the surrounding operation.
type Directory interface {
	AddRole(ctx context.Context, role string) error
	DeleteRole(ctx context.Context, role string) error
	AllRoleNames(ctx context.Context) (map[string]struct{}, error)
	AssignRolesToUser(ctx context.Context, login string, roles []string) error
	RemoveRolesFromUser(ctx context.Context, login string, roles []string) error
	UserRoles(ctx context.Context, login string) (map[string]struct{}, error)
	UsersInRole(ctx context.Context, role string) (map[string]struct{}, error)
	UserExists(ctx context.Context, login string) (bool, error)
	UnblockUser(ctx context.Context, login string) error
	// UserInfo returns false when the directory does not know the login.
	UserInfo(ctx context.Context, login string) (*UserInfo, bool, error)
}

// Set builds a string set.
func Set(values ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// Sorted returns the members of s in ascending order.
func Sorted(s map[string]struct{}) []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
