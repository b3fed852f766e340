package app

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/pscheid92/linkorbit/internal/domain"
)

// --- candidate pool ---

type fakePool struct {
	mu         sync.Mutex
	candidates []domain.Candidate
	shown      map[domain.CandidateID]bool
	err        error
	queries    []string
}

func newFakePool(ids ...int64) *fakePool {
	p := &fakePool{shown: make(map[domain.CandidateID]bool)}
	for _, id := range ids {
		p.candidates = append(p.candidates, testCandidate(id))
	}
	return p
}

func poolRange(from, to int64) *fakePool {
	var ids []int64
	for id := from; id <= to; id++ {
		ids = append(ids, id)
	}
	return newFakePool(ids...)
}

func (p *fakePool) markShown(ids ...int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		p.shown[domain.CandidateID(id)] = true
	}
}

func (p *fakePool) filter(kind string, exclude []domain.CandidateID, limit int, keep func(domain.Candidate) bool) ([]domain.Candidate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries = append(p.queries, kind)
	if p.err != nil {
		return nil, p.err
	}

	var out []domain.Candidate
	for _, c := range p.candidates {
		if len(out) == limit {
			break
		}
		if slices.Contains(exclude, c.ID) || !keep(c) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (p *fakePool) Fresh(_ context.Context, exclude []domain.CandidateID, limit int) ([]domain.Candidate, error) {
	return p.filter("fresh", exclude, limit, func(c domain.Candidate) bool { return !p.shown[c.ID] })
}

func (p *fakePool) Rerun(_ context.Context, _ int, exclude []domain.CandidateID, limit int) ([]domain.Candidate, error) {
	return p.filter("rerun", exclude, limit, func(c domain.Candidate) bool { return p.shown[c.ID] })
}

func (p *fakePool) Random(_ context.Context, exclude []domain.CandidateID, limit int) ([]domain.Candidate, error) {
	return p.filter("random", exclude, limit, func(domain.Candidate) bool { return true })
}

// --- rotation history ---

type fakeHistory struct {
	ids []domain.CandidateID
	err error
}

func (h *fakeHistory) RecentFeatured(_ context.Context, limit int) ([]domain.CandidateID, error) {
	if h.err != nil {
		return nil, h.err
	}
	return h.ids[:min(limit, len(h.ids))], nil
}

// --- event publisher ---

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *fakePublisher) Publish(evt domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *fakePublisher) all() []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.events)
}

func (p *fakePublisher) ofType(t string) []domain.Event {
	var out []domain.Event
	for _, e := range p.all() {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

// --- record queue ---

type fakeQueue struct {
	mu      sync.Mutex
	records []domain.Record
	full    bool
}

func (q *fakeQueue) Enqueue(r domain.Record) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return false
	}
	q.records = append(q.records, r)
	return true
}

func (q *fakeQueue) scoreDeltas() []domain.ScoreDelta {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []domain.ScoreDelta
	for _, r := range q.records {
		if d, ok := r.(domain.ScoreDelta); ok {
			out = append(out, d)
		}
	}
	return out
}

func (q *fakeQueue) ofKind(kind string) []domain.Record {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []domain.Record
	for _, r := range q.records {
		if r.RecordKind() == kind {
			out = append(out, r)
		}
	}
	return out
}

// --- cooldown store ---

type failingCooldown struct{}

func (failingCooldown) Acquire(context.Context, string, time.Duration) (time.Duration, error) {
	return 0, fmt.Errorf("redis unavailable")
}

func (failingCooldown) Release(context.Context, string) error {
	return fmt.Errorf("redis unavailable")
}

// hookedCooldown runs afterAcquire once a window has been granted.
type hookedCooldown struct {
	domain.CooldownStore
	afterAcquire func()
}

func (c *hookedCooldown) Acquire(ctx context.Context, userID string, window time.Duration) (time.Duration, error) {
	wait, err := c.CooldownStore.Acquire(ctx, userID, window)
	if err == nil && wait == 0 && c.afterAcquire != nil {
		c.afterAcquire()
	}
	return wait, err
}

// --- record sink ---

type fakeSink struct {
	mu          sync.Mutex
	scoreFn     func(domain.ScoreDelta) error
	nominations []domain.NominationRecord
	rotations   []domain.RotationRecord
	scores      []domain.ScoreDelta
	calls       int
}

func (s *fakeSink) ApplyScoreDelta(_ context.Context, d domain.ScoreDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.scoreFn != nil {
		if err := s.scoreFn(d); err != nil {
			return err
		}
	}
	s.scores = append(s.scores, d)
	return nil
}

func (s *fakeSink) RecordNomination(_ context.Context, n domain.NominationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.nominations = append(s.nominations, n)
	return nil
}

func (s *fakeSink) RecordRotation(_ context.Context, r domain.RotationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.rotations = append(s.rotations, r)
	return nil
}

func (s *fakeSink) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *fakeSink) written() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scores) + len(s.nominations) + len(s.rotations)
}

func testCandidate(id int64) domain.Candidate {
	return domain.Candidate{
		ID:    domain.CandidateID(id),
		Title: fmt.Sprintf("Link %d", id),
		URL:   fmt.Sprintf("https://example.com/%d", id),
	}
}
