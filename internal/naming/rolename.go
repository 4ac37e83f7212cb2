// Package naming derives directory role identifiers from organization names.
package naming

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	// Prefix starts every derived role identifier.
	Prefix = "ROLE_"
	// AdminSuffix ends every organization admin role identifier.
	AdminSuffix = "_ADMIN"

	// DefaultAdminRoleMaxLength bounds organization admin role identifiers.
	DefaultAdminRoleMaxLength = 200
	// DefaultRoleMaxLength bounds the prefix and dynamic part of custom role
	// identifiers. The numeric role id is appended after it.
	DefaultRoleMaxLength = 190
)

var nonWord = regexp.MustCompile(`\W+`)

// Namer derives role identifiers with configurable length bounds.
type Namer struct {
	AdminMax int
	RoleMax  int
}

// Default is the Namer with the standard bounds.
var Default = Namer{AdminMax: DefaultAdminRoleMaxLength, RoleMax: DefaultRoleMaxLength}

// AdminRoleName derives the admin role identifier of an organization.
func (n Namer) AdminRoleName(organizationName string) string {
	dynamic := truncate(normalize(organizationName), n.AdminMax-len(Prefix)-len(AdminSuffix))
	return Prefix + dynamic + AdminSuffix
}

// RoleName derives the identifier of a custom role. The role id keeps the
// identifier unique even when organization names collide after normalization.
func (n Namer) RoleName(organizationName string, roleID int64) string {
	dynamic := truncate(normalize(organizationName), n.RoleMax-len(Prefix))
	return Prefix + dynamic + "_" + strconv.FormatInt(roleID, 10)
}

// AdminRoleName derives an admin role identifier using the default bounds.
func AdminRoleName(organizationName string) string {
	return Default.AdminRoleName(organizationName)
}

// RoleName derives a custom role identifier using the default bounds.
func RoleName(organizationName string, roleID int64) string {
	return Default.RoleName(organizationName, roleID)
}

// normalize trims the name, collapses runs of non-word characters into a
// single underscore and uppercases the result.
func normalize(name string) string {
	return strings.ToUpper(nonWord.ReplaceAllString(strings.TrimSpace(name), "_"))
}

// truncate keeps the leading max characters. \W is ASCII-only, so normalized
// names are plain ASCII and byte slicing is safe.
func truncate(s string, max int) string {
	if max < 0 {
		max = 0
	}
	if len(s) <= max {
		return s
	}
	return s[:max]
}
