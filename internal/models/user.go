package models

import (
	"strings"
	"time"

	"github.com/MacJediWizard/orgwarden/internal/errs"
	"github.com/google/uuid"
)

// UserStatus is the invitation state of a user.
type UserStatus string

const (
	// UserStatusCreated is a placeholder that has not been invited yet.
	UserStatusCreated UserStatus = "CREATED"
	// UserStatusInvited has a live accept key.
	UserStatusInvited UserStatus = "INVITED"
	// UserStatusAccepted followed the invite link.
	UserStatusAccepted UserStatus = "ACCEPTED"
)

// IsValid reports whether s is a known status.
func (s UserStatus) IsValid() bool {
	switch s {
	case UserStatusCreated, UserStatusInvited, UserStatusAccepted:
		return true
	}
	return false
}

// AcceptKey is the single-use token issued with an invitation.
type AcceptKey struct {
	Key       string    `json:"-"`
	Timestamp time.Time `json:"issued_at"`
}

// NewAcceptKey issues a fresh random key stamped with now.
func NewAcceptKey(now time.Time) *AcceptKey {
	return &AcceptKey{
		Key:       uuid.NewString(),
		Timestamp: now,
	}
}

// ValidAt reports whether key matches and was issued after now minus maxAge.
func (k *AcceptKey) ValidAt(key string, now time.Time, maxAge time.Duration) bool {
	if k == nil || key == "" || k.Key != key {
		return false
	}
	return k.Timestamp.After(now.Add(-maxAge))
}

// User is a member of exactly one organization.
type User struct {
	ID             int64      `json:"id"`
	OrganizationID int64      `json:"organization_id"`
	Login          string     `json:"login"`
	InviteLanguage string     `json:"invite_language"`
	Status         UserStatus `json:"status"`
	AcceptKey      *AcceptKey `json:"accept_key,omitempty"`
	IsAdmin        bool       `json:"is_admin"`
	Roles          []*Role    `json:"roles"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NormalizeLogin lowercases and trims a login.
func NormalizeLogin(login string) string {
	return strings.ToLower(strings.TrimSpace(login))
}

// NewUser creates a CREATED placeholder user.
func NewUser(login, inviteLanguage string) *User {
	now := time.Now()
	return &User{
		Login:          NormalizeLogin(login),
		InviteLanguage: inviteLanguage,
		Status:         UserStatusCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Invite issues a new accept key, replacing any previous one. It is legal from
// CREATED and, for resends, from INVITED.
func (u *User) Invite(now time.Time) error {
	switch u.Status {
	case UserStatusCreated, UserStatusInvited:
	default:
		return errs.Invalid("user %q has already accepted the invitation", u.Login)
	}
	u.Status = UserStatusInvited
	u.AcceptKey = NewAcceptKey(now)
	u.UpdatedAt = now
	return nil
}

// Accept marks the user ACCEPTED and drops the accept key. It reports whether
// anything changed; accepting twice is a no-op.
func (u *User) Accept() bool {
	if u.Status == UserStatusAccepted {
		return false
	}
	u.Status = UserStatusAccepted
	u.AcceptKey = nil
	u.UpdatedAt = time.Now()
	return true
}

// IsAccepted returns true once the invitation was accepted.
func (u *User) IsAccepted() bool {
	return u.Status == UserStatusAccepted
}

// HasRole reports whether the user holds the role with the given identifier.
func (u *User) HasRole(identifier string) bool {
	for _, r := range u.Roles {
		if r.Role == identifier {
			return true
		}
	}
	return false
}

// RoleIdentifiers returns the identifiers of the user's roles.
func (u *User) RoleIdentifiers() []string {
	ids := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		ids = append(ids, r.Role)
	}
	return ids
}

// RoleIDs returns the numeric ids of the user's roles.
func (u *User) RoleIDs() []int64 {
	ids := make([]int64, 0, len(u.Roles))
	for _, r := range u.Roles {
		ids = append(ids, r.ID)
	}
	return ids
}
