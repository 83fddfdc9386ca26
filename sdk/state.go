package tempo

import "sync"

// State is a snapshot of the user-visible realtime session state. It is
// derived output: only the capture pipeline, playback queue, transport
// session, and event router mutate it.
type State struct {
	// Connected reports transport-level open (or an application-level
	// connection confirmation).
	Connected bool
	// Listening gates microphone frames onto the wire.
	Listening bool
	// Speaking is true from turn creation until the server has reported the
	// turn done AND the playback queue has fully drained.
	Speaking bool
	// Loading is true while the server is preparing a response.
	Loading bool
	// TurnID identifies the current assistant turn; empty between turns.
	TurnID string
	// Err is the single user-visible session error, nil when healthy.
	Err error
}

// sessionState holds the flags behind a mutex and pushes change
// notifications to one observer. All mutation goes through update so every
// transition produces a coherent snapshot.
type sessionState struct {
	mu       sync.Mutex
	state    State
	onChange func(State)
}

func newSessionState(onChange func(State)) *sessionState {
	return &sessionState{onChange: onChange}
}

// update applies fn under the lock and notifies the observer with the
// resulting snapshot. The callback runs outside the lock.
func (s *sessionState) update(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	snapshot := s.state
	notify := s.onChange
	s.mu.Unlock()

	if notify != nil {
		notify(snapshot)
	}
}

// snapshot returns a copy of the current state.
func (s *sessionState) snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *sessionState) listening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Listening
}

func (s *sessionState) connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Connected
}
