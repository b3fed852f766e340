package rotation

import (
	"sync"
	"time"

	"github.com/pscheid92/linkorbit/internal/domain"
)

const (
	DefaultRecentActions   = 50
	DefaultSnapshotActions = 20
)

// State guards the rotation Record. Snapshot reads and mutations are mutually
// exclusive, so no reader ever sees a half-applied change.
type State struct {
	mu              sync.RWMutex
	rec             *Record
	snapshotActions int
}

type Option func(*State)

// WithSnapshotActions limits how many recent actions a snapshot carries.
func WithSnapshotActions(n int) Option {
	return func(s *State) { s.snapshotActions = n }
}

func NewState(recentSize int, opts ...Option) *State {
	s := &State{
		rec:             newRecord(recentSize),
		snapshotActions: DefaultSnapshotActions,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// View runs fn under the read side of the gate.
func (s *State) View(fn func(r Reader)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.rec)
}

// Apply runs fn under the exclusive side of the gate. fn must not block on I/O.
func (s *State) Apply(fn func(r *Record) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.rec)
}

// Snapshot returns a deep copy of the state as of now.
func (s *State) Snapshot(now time.Time) domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.snapshot(now, s.snapshotActions)
}

// ResumeAfter makes the next installed rotation's ID greater than last. It
// never lowers the current ID.
func (s *State) ResumeAfter(last uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last > s.rec.rotationID {
		s.rec.rotationID = last
	}
}

// SetViewerCount records the number of connected viewers.
func (s *State) SetViewerCount(n int) {
	_ = s.Apply(func(r *Record) error {
		r.SetViewerCount(n)
		return nil
	})
}
