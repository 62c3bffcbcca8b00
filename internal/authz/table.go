// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package authz

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/tomtom215/ledgerline/internal/logging"
)

//go:embed model.conf
var embeddedModel string

// ErrEmptyRole is returned when a policy row uses an empty role label.
var ErrEmptyRole = errors.New("authz: empty role in policy")

// Table evaluates the role policy. It is built once at startup and only
// read afterwards, so concurrent use needs no extra locking.
type Table struct {
	policy   Policy
	enforcer *casbin.SyncedEnforcer
}

// NewTable compiles policy into a casbin enforcer. Each (satisfying,
// required) pair becomes one "p" row.
func NewTable(policy Policy) (*Table, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	var rules [][]string
	for required, satisfying := range policy {
		if required == "" {
			return nil, ErrEmptyRole
		}
		for _, role := range satisfying {
			if role == "" {
				return nil, fmt.Errorf("%w: required role %q", ErrEmptyRole, required)
			}
			rules = append(rules, []string{string(role), string(required)})
		}
	}
	if len(rules) > 0 {
		if _, err := enforcer.AddPolicies(rules); err != nil {
			return nil, fmt.Errorf("failed to add policy rows: %w", err)
		}
	}

	return &Table{
		policy:   policy.Clone(),
		enforcer: enforcer,
	}, nil
}

// MustDefaultTable builds the table from DefaultPolicy and panics on error.
// The default policy is static, so a failure here is a programming error.
func MustDefaultTable() *Table {
	t, err := NewTable(DefaultPolicy())
	if err != nil {
		panic(err)
	}
	return t
}

// Known reports whether required is registered in the table.
func (t *Table) Known(required Role) bool {
	_, ok := t.policy[required]
	return ok
}

// Policy returns a copy of the compiled policy.
func (t *Table) Policy() Policy {
	return t.policy.Clone()
}

// Satisfies reports whether any of actual satisfies required.
func (t *Table) Satisfies(required Role, actual []string) bool {
	satisfying, ok := t.policy[required]
	if !ok {
		recordDecision(required, outcomeUnknown)
		return false
	}

	if len(satisfying) == 0 {
		allowed := len(actual) == 0
		recordDecision(required, outcomeFor(allowed))
		return allowed
	}

	for _, role := range actual {
		if role == "" {
			continue
		}
		allowed, err := t.enforcer.Enforce(role, string(required))
		if err != nil {
			logging.Error().Err(err).
				Str("required", string(required)).
				Str("role", role).
				Msg("Role policy enforcement failed")
			recordDecision(required, outcomeError)
			return false
		}
		if allowed {
			recordDecision(required, outcomeAllow)
			return true
		}
	}

	recordDecision(required, outcomeDeny)
	return false
}
