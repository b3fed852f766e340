package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/pscheid92/linkorbit/internal/adapter/metrics"
	"github.com/pscheid92/linkorbit/internal/domain"
	"github.com/pscheid92/linkorbit/internal/rotation"
)

// candidateSample is how many eligible candidates a pool query returns; the
// engine then picks uniformly among them.
const candidateSample = 16

var (
	satellitePositions = []string{"top", "top-left", "top-right", "left", "right"}
	satelliteLabels    = []string{"deep-dive", "deep-dive", "pivot", "pivot", "wildcard"}
)

type strategy int

const (
	strategyFresh strategy = iota
	strategyRerun
	strategyWildcard
)

func (s strategy) reason() domain.SelectionReason {
	switch s {
	case strategyFresh:
		return domain.ReasonFresh
	case strategyRerun:
		return domain.ReasonRerun
	default:
		return domain.ReasonWildcard
	}
}

// SelectionEngine chooses the next featured candidate and its satellites.
type SelectionEngine struct {
	pool    domain.CandidatePool
	policy  Policy
	metrics *metrics.RotationMetrics

	mu      sync.Mutex
	rng     *rand.Rand
	history []domain.CandidateID // newest first, at most policy.FatigueLookback
}

func NewSelectionEngine(pool domain.CandidatePool, policy Policy, rng *rand.Rand, rotationMetrics *metrics.RotationMetrics) *SelectionEngine {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return &SelectionEngine{
		pool:    pool,
		policy:  policy,
		metrics: rotationMetrics,
		rng:     rng,
	}
}

// LoadHistory seeds the fatigue window from the persisted rotation log.
func (e *SelectionEngine) LoadHistory(ctx context.Context, history domain.RotationHistory) error {
	if e.policy.FatigueLookback == 0 {
		return nil
	}
	ids, err := history.RecentFeatured(ctx, e.policy.FatigueLookback)
	if err != nil {
		return fmt.Errorf("failed to load rotation history: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append([]domain.CandidateID(nil), ids...)
	e.trimHistory()
	return nil
}

// Next builds the rotation that replaces out, starting at now.
func (e *SelectionEngine) Next(ctx context.Context, out rotation.Outgoing, now time.Time) (domain.Rotation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	featured, reason, ok := nominationWinner(out)
	if !ok {
		var err error
		featured, reason, err = e.fromPool(ctx, out)
		if err != nil {
			return domain.Rotation{}, err
		}
	}

	satellites, err := e.satellites(ctx, featured.ID)
	if err != nil {
		return domain.Rotation{}, err
	}

	e.remember(featured.ID)

	return domain.Rotation{
		Featured: domain.FeaturedSlot{
			Candidate: featured,
			StartedAt: now,
			Duration:  e.policy.RotationDuration,
			Remaining: e.policy.RotationDuration,
			Reason:    reason,
		},
		Satellites: e.layout(satellites, now),
	}, nil
}

// nominationWinner returns the satellite with the strictly highest number of
// nominations. A tie or no nominations at all yields ok=false.
func nominationWinner(out rotation.Outgoing) (domain.Candidate, domain.SelectionReason, bool) {
	var (
		best  domain.Candidate
		top   int
		ties  int
		found bool
	)
	for _, s := range out.Satellites {
		n := out.Nominations[s.ID]
		switch {
		case n == 0:
			continue
		case n > top:
			best, top, ties, found = s, n, 1, true
		case n == top:
			ties++
		}
	}
	if !found || ties > 1 {
		return domain.Candidate{}, "", false
	}
	return best, domain.ReasonNominated, true
}

func (e *SelectionEngine) fromPool(ctx context.Context, out rotation.Outgoing) (domain.Candidate, domain.SelectionReason, error) {
	var outgoing []domain.CandidateID
	if out.Featured != nil {
		outgoing = append(outgoing, out.Featured.ID)
	}
	withFatigue := append(slices.Clone(e.history), outgoing...)

	order := e.strategyOrder()
	for pass, exclude := range [][]domain.CandidateID{withFatigue, outgoing} {
		for i, s := range order {
			found, err := e.query(ctx, s, exclude, candidateSample)
			if err != nil {
				return domain.Candidate{}, "", err
			}
			if len(found) == 0 {
				continue
			}
			if i > 0 {
				e.fallback("strategy")
			}
			if pass > 0 {
				e.fallback("fatigue")
				slog.InfoContext(ctx, "Fatigue window exhausted the pool, selecting without it", "strategy", s.reason())
			}
			return found[e.rng.IntN(len(found))], s.reason(), nil
		}
	}

	// Only the outgoing candidate is left, so it runs again.
	found, err := e.pool.Random(ctx, nil, 1)
	if err != nil {
		return domain.Candidate{}, "", fmt.Errorf("failed to query candidate pool: %w", err)
	}
	if len(found) == 0 {
		return domain.Candidate{}, "", domain.ErrPoolExhausted
	}
	e.fallback("unconstrained")
	return found[0], domain.ReasonWildcard, nil
}

// strategyOrder draws the preferred strategy by weight and appends the others
// in fixed order as fallbacks.
func (e *SelectionEngine) strategyOrder() []strategy {
	w := e.policy.Weights
	weights := []float64{w.Fresh, w.Rerun, w.Wildcard}

	var total float64
	for _, v := range weights {
		total += v
	}

	first := strategyWildcard
	if total > 0 {
		r := e.rng.Float64() * total
		for i, v := range weights {
			if r < v {
				first = strategy(i)
				break
			}
			r -= v
		}
	}

	order := []strategy{first}
	for _, s := range []strategy{strategyFresh, strategyRerun, strategyWildcard} {
		if s != first {
			order = append(order, s)
		}
	}
	return order
}

func (e *SelectionEngine) query(ctx context.Context, s strategy, exclude []domain.CandidateID, limit int) ([]domain.Candidate, error) {
	var (
		found []domain.Candidate
		err   error
	)
	switch s {
	case strategyFresh:
		found, err = e.pool.Fresh(ctx, exclude, limit)
	case strategyRerun:
		found, err = e.pool.Rerun(ctx, e.policy.FatigueLookback, exclude, limit)
	default:
		found, err = e.pool.Random(ctx, exclude, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query %s candidates: %w", s.reason(), err)
	}
	return found, nil
}

// satellites draws distinct candidates other than the featured one, avoiding
// the fatigue window while the pool allows it.
func (e *SelectionEngine) satellites(ctx context.Context, featured domain.CandidateID) ([]domain.Candidate, error) {
	n := e.policy.SatelliteCount
	if n == 0 {
		return nil, nil
	}

	exclude := append(slices.Clone(e.history), featured)
	picked, err := e.pool.Random(ctx, exclude, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query satellites: %w", err)
	}

	if len(picked) < n {
		exclude = []domain.CandidateID{featured}
		for _, c := range picked {
			exclude = append(exclude, c.ID)
		}
		more, err := e.pool.Random(ctx, exclude, n-len(picked))
		if err != nil {
			return nil, fmt.Errorf("failed to query satellites: %w", err)
		}
		picked = append(picked, more...)
	}

	picked = dedupe(picked, featured)
	e.rng.Shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })
	if len(picked) > n {
		picked = picked[:n]
	}
	return picked, nil
}

func (e *SelectionEngine) layout(candidates []domain.Candidate, start time.Time) []domain.Satellite {
	offsets := revealOffsets(len(candidates), e.policy.RevealInterval, e.policy.RotationDuration)

	out := make([]domain.Satellite, len(candidates))
	for i, c := range candidates {
		out[i] = domain.Satellite{
			Candidate: c,
			Position:  satellitePosition(i),
			Label:     satelliteLabel(i),
			RevealAt:  start.Add(offsets[i]),
		}
	}
	return out
}

// revealOffsets spaces n reveals by interval from the start of the rotation.
// When they would not all fit before the duration ends, the interval shrinks
// to duration/(n+1).
func revealOffsets(n int, interval, duration time.Duration) []time.Duration {
	if n == 0 {
		return nil
	}
	if time.Duration(n)*interval >= duration {
		interval = duration / time.Duration(n+1)
	}

	offsets := make([]time.Duration, n)
	for i := range offsets {
		offsets[i] = time.Duration(i+1) * interval
	}
	return offsets
}

func satellitePosition(i int) string {
	if i < len(satellitePositions) {
		return satellitePositions[i]
	}
	return fmt.Sprintf("orbit-%d", i+1)
}

func satelliteLabel(i int) string {
	if i < len(satelliteLabels) {
		return satelliteLabels[i]
	}
	return "related"
}

func (e *SelectionEngine) remember(id domain.CandidateID) {
	e.history = append([]domain.CandidateID{id}, e.history...)
	e.trimHistory()
}

func (e *SelectionEngine) trimHistory() {
	if len(e.history) > e.policy.FatigueLookback {
		e.history = e.history[:e.policy.FatigueLookback]
	}
}

func (e *SelectionEngine) fallback(kind string) {
	if e.metrics != nil {
		e.metrics.SelectionFallbacks.WithLabelValues(kind).Inc()
	}
}

func dedupe(candidates []domain.Candidate, skip domain.CandidateID) []domain.Candidate {
	seen := map[domain.CandidateID]struct{}{skip: {}}
	out := candidates[:0]
	for _, c := range candidates {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}
