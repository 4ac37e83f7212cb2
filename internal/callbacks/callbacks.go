// Package callbacks notifies sibling services of membership and
// organization lifecycle changes.
//
// Every notification is a blocking call made inside the request that caused
// it. An error aborts that request; nothing is queued or retried.
package callbacks

import (
	"context"
)

// Event types sent to the receiver.
const (
	EventUserAccepted          = "user.accepted"
	EventUserRemoved           = "user.removed"
	EventDeviceRemoved         = "device.removed"
	EventOrganizationRemoved   = "organization.removed"
	EventOrganizationPreDelete = "organization.pre_delete"
)

// UserEvent identifies a user within its organization.
type UserEvent struct {
	Login          string `json:"login"`
	OrganizationID int64  `json:"organizationId"`
}

// DeviceEvent identifies a device detached from an organization.
type DeviceEvent struct {
	DeviceID       string `json:"deviceId"`
	OrganizationID int64  `json:"organizationId"`
}

// OrganizationEvent identifies an organization.
type OrganizationEvent struct {
	OrganizationID int64 `json:"organizationId"`
}

// Receiver is the callback consumer of lifecycle notifications.
type Receiver interface {
	UserAccepted(ctx context.Context, ev UserEvent) error
	UserRemoved(ctx context.Context, ev UserEvent) error
	DeviceRemoved(ctx context.Context, ev DeviceEvent) error
	OrganizationRemoved(ctx context.Context, orgID int64) error

	// OrganizationPreDeleteCheck asks whether the organization may be
	// deleted. A false result vetoes the deletion.
	OrganizationPreDeleteCheck(ctx context.Context, orgID int64) (bool, error)
}
