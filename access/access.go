// Package access supplies the caller identity and capability context checked
// at the entry of every mutating engine operation. Permissions are carried by
// the caller value rather than baked into types: whoever constructs the
// Caller (factory, API key mapping, tests) decides which capabilities it
// holds.
package access

import "strings"

// Role is a named capability.
type Role string

const (
	// RoleAdmin may withdraw from the pool, move locked funds and release on
	// behalf of any beneficiary.
	RoleAdmin Role = "admin"

	// RoleGranter may create and revoke vesting schedules.
	RoleGranter Role = "granter"
)

// Caller identifies who is invoking an operation and which capabilities they
// were granted.
type Caller struct {
	Address string
	Roles   []Role
}

// NewCaller builds a caller with a normalized address.
func NewCaller(address string, roles ...Role) Caller {
	return Caller{Address: normalize(address), Roles: roles}
}

// HasRole reports whether the caller was granted the capability.
func (c Caller) HasRole(role Role) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Is reports whether the caller is the given account.
func (c Caller) Is(address string) bool {
	return normalize(c.Address) == normalize(address) && c.Address != ""
}

func normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
