// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tomtom215/ledgerline/internal/auth"
	"github.com/tomtom215/ledgerline/internal/authz"
	"github.com/tomtom215/ledgerline/internal/logging"
)

// State is the route guard's view of session resolution.
type State int

const (
	// StateLoading means resolution has not settled.
	StateLoading State = iota
	// StateUnauthenticated means no identity is present.
	StateUnauthenticated
	// StateAuthenticated means an identity is present.
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// transitions lists the legal moves. Loading is only ever the initial state.
var transitions = map[State][]State{
	StateLoading:         {StateUnauthenticated, StateAuthenticated},
	StateUnauthenticated: {StateAuthenticated},
	StateAuthenticated:   {StateUnauthenticated},
}

// ErrIllegalTransition is returned for a move not in the transition table.
var ErrIllegalTransition = errors.New("illegal route guard transition")

// CanTransition reports whether moving from s to next is legal.
func (s State) CanTransition(next State) bool {
	for _, to := range transitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// Outcome is what a guarded surface should render.
type Outcome int

const (
	// Placeholder renders a loading or splash view.
	Placeholder Outcome = iota
	// Children renders the protected content.
	Children
)

func (o Outcome) String() string {
	if o == Children {
		return "children"
	}
	return "placeholder"
}

// SignInPath is where unauthenticated users are sent.
const SignInPath = "/signin"

// Surface describes a guarded view.
type Surface struct {
	Path string
	// Required is the role the surface demands. Empty means any
	// authenticated identity; authz.RoleOnlyGuest marks sign-in style
	// surfaces.
	Required authz.Role
}

// Redirector performs navigation to target.
type Redirector func(target string)

// SessionSource delivers settled session snapshots. Runtime implements it.
type SessionSource interface {
	Observe(fn Listener) (unsubscribe func())
}

// Attacher is implemented by sources whose background work, such as the
// refresh timer, lives only while a guard is mounted. Runtime implements it.
type Attacher interface {
	Attach() (detach func())
}

// RouteGuard gates rendering of one surface on the session state.
type RouteGuard struct {
	source   SessionSource
	table    *authz.Table
	nav      *Navigator
	redirect Redirector
	surface  Surface

	mu          sync.Mutex
	ctx         context.Context
	state       State
	session     *auth.Session
	redirected  bool
	mounted     bool
	unsubscribe func()
	detach      func()
}

// NewRouteGuard creates an unmounted guard in StateLoading. nav and
// redirect may be nil.
func NewRouteGuard(source SessionSource, table *authz.Table, nav *Navigator, redirect Redirector, surface Surface) *RouteGuard {
	return &RouteGuard{
		source:   source,
		table:    table,
		nav:      nav,
		redirect: redirect,
		surface:  surface,
		ctx:      context.Background(),
		state:    StateLoading,
		session:  auth.Absent(),
	}
}

// Mount records the visit and starts following the session.
func (g *RouteGuard) Mount(ctx context.Context) {
	g.mu.Lock()
	if g.mounted {
		g.mu.Unlock()
		return
	}
	g.mounted = true
	g.ctx = ctx
	g.state = StateLoading
	g.session = auth.Absent()
	g.redirected = false
	g.mu.Unlock()

	if g.nav != nil {
		if err := g.nav.Visit(ctx, g.surface.Path); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("path", g.surface.Path).Msg("Failed to record visited path")
		}
	}

	detach := func() {}
	if a, ok := g.source.(Attacher); ok {
		detach = a.Attach()
	}

	// Observe may call back synchronously, so mu must not be held here.
	unsubscribe := g.source.Observe(g.observe)

	g.mu.Lock()
	if !g.mounted {
		g.mu.Unlock()
		unsubscribe()
		detach()
		return
	}
	g.unsubscribe = unsubscribe
	g.detach = detach
	g.mu.Unlock()
}

// Unmount detaches the guard. A delivery already in flight is ignored. When
// the source is an Attacher and this was its last mounted guard, no refresh
// call starts afterwards.
func (g *RouteGuard) Unmount() {
	g.mu.Lock()
	g.mounted = false
	unsubscribe, detach := g.unsubscribe, g.detach
	g.unsubscribe, g.detach = nil, nil
	g.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if detach != nil {
		detach()
	}
}

// State returns the current state.
func (g *RouteGuard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Render decides what the surface shows now.
func (g *RouteGuard) Render() Outcome {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.renderLocked()
}

func (g *RouteGuard) renderLocked() Outcome {
	switch g.state {
	case StateAuthenticated:
		if g.surface.Required == "" || g.table.Satisfies(g.surface.Required, g.session.Roles()) {
			return Children
		}
	case StateUnauthenticated:
		// Only guest-only surfaces are satisfied by an empty role set.
		if g.surface.Required != "" && g.table.Satisfies(g.surface.Required, nil) {
			return Children
		}
	}
	return Placeholder
}

// observe applies a settled session snapshot.
func (g *RouteGuard) observe(s *auth.Session) {
	g.mu.Lock()
	if !g.mounted {
		g.mu.Unlock()
		return
	}

	next := StateUnauthenticated
	if s.IsAuthenticated() {
		next = StateAuthenticated
	}
	if next != g.state {
		if err := g.transitionLocked(next); err != nil {
			g.mu.Unlock()
			return
		}
	}
	g.session = s

	target, ok := g.redirectTargetLocked()
	if !ok || g.redirected {
		g.mu.Unlock()
		return
	}
	g.redirected = true
	ctx := g.ctx
	g.mu.Unlock()

	if target == "" && g.nav != nil {
		target = g.nav.RedirectTarget(ctx)
	}
	if target == "" {
		target = "/"
	}
	if g.redirect != nil {
		g.redirect(target)
	}
}

// transitionLocked must be called with mu held.
func (g *RouteGuard) transitionLocked(next State) error {
	if !g.state.CanTransition(next) {
		return fmt.Errorf("%w: %s to %s", ErrIllegalTransition, g.state, next)
	}
	g.state = next
	g.redirected = false
	return nil
}

// redirectTargetLocked returns where to send the user, if anywhere. An empty
// target with ok set means the last visited path.
func (g *RouteGuard) redirectTargetLocked() (target string, ok bool) {
	if g.renderLocked() == Children {
		return "", false
	}
	switch {
	case g.state == StateUnauthenticated:
		return SignInPath, true
	case g.surface.Required == authz.RoleOnlyGuest:
		return "", true
	case g.state == StateAuthenticated:
		return "/", true
	}
	return "", false
}
