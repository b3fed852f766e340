package rotation

import (
	"time"

	"github.com/pscheid92/linkorbit/internal/domain"
)

// Reader is the read-only view of a Record.
type Reader interface {
	RotationID() uint64
	Featured() (domain.FeaturedSlot, bool)
	IsFeatured(id domain.CandidateID) bool
	IsSatellite(id domain.CandidateID) bool
	Candidate(id domain.CandidateID) (domain.Candidate, bool)
	NominationCount(id domain.CandidateID) int
	SkipPending() bool
	Closing() bool
	ViewerCount() int
}

// Outgoing describes a rotation that is about to be replaced.
type Outgoing struct {
	RotationID  uint64
	Featured    *domain.Candidate
	Satellites  []domain.Candidate
	Nominations map[domain.CandidateID]int
}

// Record is the mutable rotation state. It is only reachable through State.
type Record struct {
	rotationID    uint64
	featured      *domain.FeaturedSlot
	satellites    []domain.Satellite
	nominations   map[string]domain.CandidateID
	downvotes     map[string]int
	downvoteTotal int
	skipPending   bool
	closing       bool
	lastDecay     time.Time
	recent        *recentRing
	viewers       int
}

func newRecord(recentSize int) *Record {
	return &Record{
		nominations: make(map[string]domain.CandidateID),
		downvotes:   make(map[string]int),
		recent:      newRecentRing(recentSize),
	}
}

func (r *Record) RotationID() uint64 { return r.rotationID }

func (r *Record) Featured() (domain.FeaturedSlot, bool) {
	if r.featured == nil {
		return domain.FeaturedSlot{}, false
	}
	return *r.featured, true
}

func (r *Record) IsFeatured(id domain.CandidateID) bool {
	return r.featured != nil && r.featured.Candidate.ID == id
}

func (r *Record) IsSatellite(id domain.CandidateID) bool {
	return r.satelliteIndex(id) >= 0
}

// Candidate looks up id among the featured candidate and the satellites.
func (r *Record) Candidate(id domain.CandidateID) (domain.Candidate, bool) {
	if r.IsFeatured(id) {
		return r.featured.Candidate, true
	}
	if i := r.satelliteIndex(id); i >= 0 {
		return r.satellites[i].Candidate, true
	}
	return domain.Candidate{}, false
}

func (r *Record) satelliteIndex(id domain.CandidateID) int {
	for i := range r.satellites {
		if r.satellites[i].Candidate.ID == id {
			return i
		}
	}
	return -1
}

func (r *Record) NominationCount(id domain.CandidateID) int {
	n := 0
	for _, nominated := range r.nominations {
		if nominated == id {
			n++
		}
	}
	return n
}

func (r *Record) SkipPending() bool { return r.skipPending }

// Closing reports whether the current rotation is being replaced. A closing
// rotation accepts no reactions or nominations.
func (r *Record) Closing() bool { return r.closing }

func (r *Record) ViewerCount() int { return r.viewers }

// Decay subtracts the time elapsed since the previous decay from the
// remaining duration.
func (r *Record) Decay(now time.Time) {
	if r.featured == nil {
		return
	}
	if elapsed := now.Sub(r.lastDecay); elapsed > 0 {
		r.featured.Remaining = clamp(r.featured.Remaining-elapsed, 0, r.featured.Remaining)
		r.lastDecay = now
	}
}

// AdjustRemaining applies delta to the remaining duration as of now and clamps
// the result to [0, limit]. It returns the new remaining duration.
func (r *Record) AdjustRemaining(now time.Time, delta, limit time.Duration) time.Duration {
	if r.featured == nil {
		return 0
	}
	r.Decay(now)
	r.featured.Remaining = clamp(r.featured.Remaining+delta, 0, limit)
	return r.featured.Remaining
}

// RecordDownvote counts a downvote by userID in the current rotation and
// returns the user's tally and the rotation-wide tally.
func (r *Record) RecordDownvote(userID string) (user, total int) {
	r.downvotes[userID]++
	r.downvoteTotal++
	return r.downvotes[userID], r.downvoteTotal
}

// RequestSkip forces a rotation on the next tick.
func (r *Record) RequestSkip() { r.skipPending = true }

// Nominate sets userID's pick for the current rotation. changed is false when
// the user re-submitted the pick they already had.
func (r *Record) Nominate(userID string, id domain.CandidateID) (count int, changed bool, err error) {
	if r.featured == nil || r.closing {
		return 0, false, domain.ErrNoActiveRotation
	}
	if !r.IsSatellite(id) {
		return 0, false, domain.ErrNotASatellite
	}

	previous, had := r.nominations[userID]
	r.nominations[userID] = id
	return r.NominationCount(id), !had || previous != id, nil
}

// Reveal flips every satellite whose reveal time has passed and returns the
// indices that changed.
func (r *Record) Reveal(now time.Time) []int {
	var revealed []int
	for i := range r.satellites {
		s := &r.satellites[i]
		if !s.Revealed && !now.Before(s.RevealAt) {
			s.Revealed = true
			revealed = append(revealed, i)
		}
	}
	return revealed
}

// RotationDue reports whether the scheduler must rotate: nothing is featured
// yet, the time ran out, or a skip was requested.
func (r *Record) RotationDue() bool {
	return r.featured == nil || r.featured.Remaining <= 0 || r.skipPending
}

// BeginRotation closes the current rotation and captures it. The captured
// tally stays final until Install or AbortRotation reopens the record.
func (r *Record) BeginRotation() Outgoing {
	r.closing = true
	return r.Outgoing()
}

// AbortRotation reopens the current rotation after a failed replacement.
func (r *Record) AbortRotation() { r.closing = false }

// Outgoing captures the rotation that is about to end.
func (r *Record) Outgoing() Outgoing {
	out := Outgoing{
		RotationID:  r.rotationID,
		Nominations: make(map[domain.CandidateID]int),
	}
	if r.featured != nil {
		c := r.featured.Candidate
		out.Featured = &c
	}
	for _, s := range r.satellites {
		out.Satellites = append(out.Satellites, s.Candidate)
	}
	for _, id := range r.nominations {
		out.Nominations[id]++
	}
	return out
}

// Install replaces the featured slot and satellites, discarding nominations,
// downvote tallies and a pending skip. It returns the new rotation ID.
func (r *Record) Install(next domain.Rotation, now time.Time) uint64 {
	featured := next.Featured
	if featured.Remaining <= 0 {
		featured.Remaining = featured.Duration
	}

	r.rotationID++
	r.featured = &featured
	r.satellites = append([]domain.Satellite(nil), next.Satellites...)
	for i := range r.satellites {
		r.satellites[i].Nominations = 0
	}
	clear(r.nominations)
	clear(r.downvotes)
	r.downvoteTotal = 0
	r.skipPending = false
	r.closing = false
	r.lastDecay = now

	r.AppendAction(domain.RecentAction{
		Kind:        domain.ActionRotation,
		CandidateID: featured.Candidate.ID,
		Title:       featured.Candidate.Title,
		Reason:      featured.Reason,
		At:          now,
	})
	return r.rotationID
}

func (r *Record) AppendAction(a domain.RecentAction) {
	r.recent.push(a)
}

func (r *Record) SetViewerCount(n int) { r.viewers = n }

func (r *Record) snapshot(now time.Time, actionLimit int) domain.Snapshot {
	snap := domain.Snapshot{
		RotationID:    r.rotationID,
		RecentActions: r.recent.newest(actionLimit),
		ViewerCount:   r.viewers,
		SkipPending:   r.skipPending,
		TakenAt:       now,
	}

	if r.featured != nil {
		featured := *r.featured
		if elapsed := now.Sub(r.lastDecay); elapsed > 0 {
			featured.Remaining = clamp(featured.Remaining-elapsed, 0, featured.Remaining)
		}
		snap.Featured = &featured
	}

	counts := make(map[domain.CandidateID]int, len(r.nominations))
	for _, id := range r.nominations {
		counts[id]++
	}
	snap.Satellites = make([]domain.Satellite, len(r.satellites))
	for i, s := range r.satellites {
		s.Nominations = counts[s.Candidate.ID]
		snap.Satellites[i] = s
	}

	return snap
}

func clamp(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
