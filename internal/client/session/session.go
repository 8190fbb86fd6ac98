package session

import "sync"

// Session holds the current State and serializes transitions.
type Session struct {
	mu    sync.Mutex
	state State
}

// NewSession returns a session in the Initial state.
func NewSession() *Session { return &Session{state: Initial()} }

// Dispatch applies a and returns the resulting state.
func (s *Session) Dispatch(a Action) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Reduce(s.state, a)
	return s.state
}

// Snapshot returns the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
