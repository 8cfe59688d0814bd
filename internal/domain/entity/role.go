// Package entity contains the core business objects of the project.
package entity

import "slices"

// Role is carried in the access token and gates the admin routes.
type Role string

const (
	RoleUser Role = "user"
	// RoleAdmin may create notifications addressed to any user.
	RoleAdmin Role = "admin"
)

func (r Role) String() string {
	return string(r)
}

func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

type Roles []Role

func (rs Roles) Contains(role Role) bool {
	return slices.Contains(rs, role)
}

// HasAny reports whether rs grants at least one of want.
func (rs Roles) HasAny(want ...Role) bool {
	return slices.ContainsFunc(want, rs.Contains)
}

// ToStrings is the form stored in the users.roles column and the token claims.
func (rs Roles) ToStrings() []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}

	return out
}

// RolesFromStrings drops any role this service does not know.
func RolesFromStrings(ss []string) Roles {
	out := make(Roles, 0, len(ss))
	for _, s := range ss {
		if r := Role(s); r.IsValid() {
			out = append(out, r)
		}
	}

	return out
}
