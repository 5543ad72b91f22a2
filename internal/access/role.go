// Package access maps caller roles to document visibility predicates and
// produces the role-specific messages returned when a caller asks about
// documents above their clearance.
//
// Every function in this package is pure: the same role always yields the
// same filter, and no state is shared between calls.
package access

import (
	"errors"
	"fmt"
	"strings"
)

// Role identifies the caller's clearance level.
type Role string

const (
	// RoleAnonymous is an unauthenticated caller.
	RoleAnonymous Role = "anonymous"
	// RoleStudent is an authenticated student.
	RoleStudent Role = "student"
	// RoleLecturer is an authenticated lecturer.
	RoleLecturer Role = "lecturer"
	// RoleAdmin is a system administrator with unrestricted visibility.
	RoleAdmin Role = "admin"
)

// ErrUnknownRole is returned by ParseRole for values outside the role table.
var ErrUnknownRole = errors.New("access: unknown role")

// Roles lists every role ordered from least to most privileged.
var Roles = []Role{RoleAnonymous, RoleStudent, RoleLecturer, RoleAdmin}

// ParseRole converts a case-insensitive role name into a Role.
// An empty string resolves to RoleAnonymous.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case "", RoleAnonymous:
		return RoleAnonymous, nil
	case RoleStudent:
		return RoleStudent, nil
	case RoleLecturer:
		return RoleLecturer, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// Privilege returns the rank of r. Anonymous and student share rank 0
// because they see exactly the same documents.
func (r Role) Privilege() int {
	switch r {
	case RoleLecturer:
		return 1
	case RoleAdmin:
		return 2
	default:
		return 0
	}
}

// String implements fmt.Stringer.
func (r Role) String() string { return string(r) }

// Valid reports whether r is one of Roles.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}
