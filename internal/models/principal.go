package models

// Principal is the authenticated caller of an operation. It is passed
// explicitly to every operation that needs to know who is acting.
type Principal struct {
	Login string   `json:"login"`
	Roles []string `json:"roles"`
}

// HasRole reports whether the principal carries the directory role.
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Anonymous returns true if no login is attached.
func (p Principal) Anonymous() bool {
	return p.Login == ""
}
