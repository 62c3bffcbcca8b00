// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

/*
Package authz holds the role policy table used by every guarded surface.

The table maps a required role to the explicit set of actual roles that
satisfy it:

	admin       -> {admin}
	accountant  -> {admin, accountant}
	user        -> {admin, accountant, user}
	onlyGuest   -> {}

Nothing is derived. admin satisfies "user" only because it is listed under
"user"; adding a new tier means editing every row that should accept it.
An empty set marks a guest-only surface (the sign-in page): it is satisfied
only by an identity with no roles at all, or by no identity.

The rows are compiled into a casbin SyncedEnforcer with a flat model (no
role inheritance section), so the enforcer evaluates exactly the enumerated
pairs:

	table, err := authz.NewTable(authz.DefaultPolicy())
	if table.Satisfies(authz.RoleAccountant, session.Roles()) { ... }

Unknown required roles and enforcement errors fail closed.
*/
package authz
