package events

// Event names.
const (
	NameOrganizationCascadeDeleted = "organization.cascade_deleted"
)

// OrganizationCascadeDeleted is published after an organization and
// everything it owned locally were deleted by the cascade path.
type OrganizationCascadeDeleted struct {
	OrganizationID   int64
	OrganizationName string
	AdminRole        string
	RoleIdentifiers  []string
}

// EventName implements Event.
func (OrganizationCascadeDeleted) EventName() string { return NameOrganizationCascadeDeleted }
