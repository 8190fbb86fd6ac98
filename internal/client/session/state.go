// Package session implements the client side of the auth lifecycle: a session
// state machine, durable token storage, and an HTTP transport that attaches the
// access token and refreshes it once when the server answers 403.
package session

import "github.com/and161185/simplidoc/internal/api"

// State is a snapshot of the client session. States are values; transitions
// return new States and never mutate the Identity they were given.
type State struct {
	Identity      *api.Identity
	AccessToken   string
	RefreshToken  string
	Authenticated bool
	Loading       bool
	Err           string
}

// Initial is the state before Bootstrap has run.
func Initial() State { return State{Loading: true} }

// Action is one of the named session transitions.
type Action interface {
	apply(State) State
}

// Start begins an auth operation.
type Start struct{}

// Success records a completed login, registration or bootstrap.
type Success struct {
	Identity     api.Identity
	AccessToken  string
	RefreshToken string
}

// Failure records a failed auth operation and drops any credentials.
type Failure struct{ Message string }

// Logout drops everything.
type Logout struct{}

// SetLoading sets the loading flag only.
type SetLoading struct{ Loading bool }

// ClearError clears the last error message.
type ClearError struct{}

// UpdateIdentity merges a partial identity into the current one. Tokens are untouched.
type UpdateIdentity struct{ Identity api.Identity }

// TokenRefreshed replaces the access token after a successful refresh. It is
// ignored once the refresh token has been dropped.
type TokenRefreshed struct{ AccessToken string }

// Restore loads persisted tokens at bootstrap. The session stays
// unauthenticated and loading until the identity is known.
type Restore struct {
	AccessToken  string
	RefreshToken string
}

func (Start) apply(s State) State {
	s.Loading = true
	s.Err = ""
	return s
}

func (a Success) apply(State) State {
	id := a.Identity
	return State{
		Identity:      &id,
		AccessToken:   a.AccessToken,
		RefreshToken:  a.RefreshToken,
		Authenticated: true,
	}
}

func (a Failure) apply(State) State {
	return State{Err: a.Message}
}

func (Logout) apply(State) State { return State{} }

func (a SetLoading) apply(s State) State {
	s.Loading = a.Loading
	return s
}

func (ClearError) apply(s State) State {
	s.Err = ""
	return s
}

func (a UpdateIdentity) apply(s State) State {
	if s.Identity == nil {
		return s
	}
	merged := s.Identity.Merge(a.Identity)
	s.Identity = &merged
	return s
}

func (a TokenRefreshed) apply(s State) State {
	if s.RefreshToken == "" {
		return s
	}
	s.AccessToken = a.AccessToken
	return s
}

func (a Restore) apply(State) State {
	return State{
		AccessToken:  a.AccessToken,
		RefreshToken: a.RefreshToken,
		Loading:      true,
	}
}

// Reduce applies a to s.
func Reduce(s State, a Action) State { return a.apply(s) }
