// Package memory provides in-process implementations of domain stores for
// single-instance deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const pruneEvery = 1024

// CooldownStore keeps reaction cooldowns in a map. Expired entries are pruned
// lazily every pruneEvery acquisitions.
type CooldownStore struct {
	clock clockwork.Clock

	mu       sync.Mutex
	until    map[string]time.Time
	acquired int
}

func NewCooldownStore(clock clockwork.Clock) *CooldownStore {
	return &CooldownStore{
		clock: clock,
		until: make(map[string]time.Time),
	}
}

func (s *CooldownStore) Acquire(_ context.Context, userID string, window time.Duration) (time.Duration, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if until, ok := s.until[userID]; ok && now.Before(until) {
		return until.Sub(now), nil
	}

	s.until[userID] = now.Add(window)
	s.acquired++
	if s.acquired%pruneEvery == 0 {
		s.prune(now)
	}
	return 0, nil
}

func (s *CooldownStore) Release(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.until, userID)
	return nil
}

func (s *CooldownStore) prune(now time.Time) {
	for user, until := range s.until {
		if !now.Before(until) {
			delete(s.until, user)
		}
	}
}

// Len returns the number of tracked users, expired or not.
func (s *CooldownStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.until)
}
