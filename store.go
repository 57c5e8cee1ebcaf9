package sessionsync

import (
	"sync"

	"github.com/MrEthical07/sessionsync/session"
)

// Store holds one mount's session state. Consumers read it; only the mount writes it,
// through commit.
type Store struct {
	mu         sync.RWMutex
	state      State
	generation uint64
	lastSource Source
	committed  bool
	closed     bool

	resolved     chan struct{}
	resolvedOnce sync.Once
}

func newStore() *Store {
	return &Store{
		state:    State{Loading: true},
		resolved: make(chan struct{}),
	}
}

// State returns the current snapshot. The returned session is a copy.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{Loading: s.state.Loading, Session: s.state.Session.Clone()}
}

// Generation is the number of listener commits so far.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// LastSource reports which component made the latest commit.
func (s *Store) LastSource() Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSource
}

// Resolved is closed once Loading becomes false.
func (s *Store) Resolved() <-chan struct{} {
	return s.resolved
}

// commit is the single write entry point. A bootstrap write is accepted at most once and
// only while no listener write has happened. Listener writes are always accepted. After
// close every write fails with ErrStaleWrite.
func (s *Store) commit(src Source, sess *session.Session) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return State{}, ErrStaleWrite
	}

	switch src {
	case SourceBootstrap:
		if s.generation > 0 || s.committed {
			return State{}, ErrSuperseded
		}
	case SourceListener:
		s.generation++
	default:
		return State{}, ErrStaleWrite
	}

	s.state = State{Loading: false, Session: sess.Clone()}
	s.lastSource = src
	s.committed = true
	s.resolvedOnce.Do(func() { close(s.resolved) })

	return State{Loading: false, Session: sess.Clone()}, nil
}

func (s *Store) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
