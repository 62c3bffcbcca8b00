// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package authz

// Role is a role label carried by an identity or required by a surface.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleAccountant Role = "accountant"
	RoleUser       Role = "user"

	// RoleOnlyGuest gates unauthenticated-only surfaces such as sign-in.
	RoleOnlyGuest Role = "onlyGuest"
)

// String returns the role label.
func (r Role) String() string {
	return string(r)
}

// Policy maps a required role to the roles that satisfy it.
// An empty (non-nil or nil) slice registers a guest-only requirement.
type Policy map[Role][]Role

// DefaultPolicy returns the ERP role table. Keep the rows in sync by hand
// when adding tiers.
func DefaultPolicy() Policy {
	return Policy{
		RoleAdmin:      {RoleAdmin},
		RoleAccountant: {RoleAdmin, RoleAccountant},
		RoleUser:       {RoleAdmin, RoleAccountant, RoleUser},
		RoleOnlyGuest:  {},
	}
}

// Clone returns a deep copy.
func (p Policy) Clone() Policy {
	out := make(Policy, len(p))
	for required, satisfying := range p {
		rows := make([]Role, len(satisfying))
		copy(rows, satisfying)
		out[required] = rows
	}
	return out
}
