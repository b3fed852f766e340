package app

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/linkorbit/internal/adapter/memory"
	"github.com/pscheid92/linkorbit/internal/domain"
	"github.com/pscheid92/linkorbit/internal/rotation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	clock     *clockwork.FakeClock
	state     *rotation.State
	publisher *fakePublisher
	queue     *fakeQueue
	policy    Policy
	proc      *ActionProcessor
}

func newHarness(t *testing.T, mutate ...func(*Policy)) *harness {
	t.Helper()

	policy := DefaultPolicy()
	for _, m := range mutate {
		m(&policy)
	}

	h := &harness{
		clock:     clockwork.NewFakeClockAt(testEpoch),
		state:     rotation.NewState(rotation.DefaultRecentActions),
		publisher: &fakePublisher{},
		queue:     &fakeQueue{},
		policy:    policy,
	}
	h.proc = NewActionProcessor(h.state, memory.NewCooldownStore(h.clock), h.publisher, h.queue, policy, h.clock, nil)
	return h
}

// install puts featured in the primary slot with the given satellites.
func (h *harness) install(t *testing.T, featured int64, satellites ...int64) {
	t.Helper()
	now := h.clock.Now()
	rot := domain.Rotation{
		Featured: domain.FeaturedSlot{
			Candidate: testCandidate(featured),
			StartedAt: now,
			Duration:  h.policy.RotationDuration,
			Reason:    domain.ReasonFresh,
		},
	}
	for i, id := range satellites {
		rot.Satellites = append(rot.Satellites, domain.Satellite{
			Candidate: testCandidate(id),
			Position:  satellitePosition(i),
			Label:     satelliteLabel(i),
			RevealAt:  now.Add(time.Duration(i+1) * h.policy.RevealInterval),
		})
	}
	require.NoError(t, h.state.Apply(func(r *rotation.Record) error {
		r.Install(rot, now)
		return nil
	}))
}

func (h *harness) snapshot() domain.Snapshot {
	return h.state.Snapshot(h.clock.Now())
}

// --- react ---

func TestReact_InvalidValue(t *testing.T) {
	h := newHarness(t)
	h.install(t, 1, 10, 11)
	before := h.snapshot()

	for _, v := range []int{0, 2, -2, 100} {
		_, err := h.proc.React(context.Background(), "alice", 1, v)
		assert.ErrorIs(t, err, domain.ErrInvalidValue)
	}

	assert.Equal(t, before, h.snapshot())
	assert.Empty(t, h.publisher.all())
	assert.Empty(t, h.queue.scoreDeltas())
}

func TestReact_NotFeatured(t *testing.T) {
	h := newHarness(t)
	h.install(t, 1, 10, 11)

	_, err := h.proc.React(context.Background(), "alice", 10, 1)
	assert.ErrorIs(t, err, domain.ErrNotFeatured)

	empty := newHarness(t)
	_, err = empty.proc.React(context.Background(), "alice", 1, 1)
	assert.ErrorIs(t, err, domain.ErrNotFeatured)
}

func TestReact_NotFeaturedDoesNotConsumeCooldown(t *testing.T) {
	h := newHarness(t)
	h.install(t, 1, 10)

	_, err := h.proc.React(context.Background(), "alice", 10, 1)
	require.ErrorIs(t, err, domain.ErrNotFeatured)

	_, err = h.proc.React(context.Background(), "alice", 1, 1)
	assert.NoError(t, err)
}

func TestReact_UpvoteExtendsRemaining(t *testing.T) {
	h := newHarness(t)
	h.install(t, 1, 10)

	result, err := h.proc.React(context.Background(), "alice", 1, 1)
	require.NoError(t, err)

	assert.Equal(t, 135*time.Second, result.Remaining)
	assert.False(t, result.SkipPending)
	assert.Equal(t, 135*time.Second, h.snapshot().Featured.Remaining)

	events := h.publisher.ofType("react")
	require.Len(t, events, 1)
	assert.Equal(t, domain.ReactEvent{CandidateID: 1, Value: 1, Actor: "alice", Remaining: 135 * time.Second}, events[0])

	deltas := h.queue.scoreDeltas()
	require.Len(t, deltas, 1)
	assert.Equal(t, domain.CandidateID(1), deltas[0].CandidateID)
	assert.InDelta(t, 1.0, deltas[0].Delta, 1e-9)
	assert.Equal(t, domain.ActionReact, deltas[0].Reason)

	recent := h.snapshot().RecentActions
	require.NotEmpty(t, recent)
	assert.Equal(t, domain.ActionReact, recent[0].Kind)
	assert.Equal(t, "alice", recent[0].Actor)
	assert.Equal(t, "Link 1", recent[0].Title)
}

func TestReact_UpvotesAreCapped(t *testing.T) {
	h := newHarness(t)
	h.install(t, 1)

	var last domain.ReactResult
	for i := range 30 {
		var err error
		last, err = h.proc.React(context.Background(), "user-"+string(rune('a'+i)), 1, 1)
		require.NoError(t, err)
	}

	assert.Equal(t, h.policy.MaxRemaining, last.Remaining)
	assert.Equal(t, h.policy.MaxRemaining, h.snapshot().Featured.Remaining)
}

func TestReact_RepeatWithinCooldownIsRejected(t *testing.T) {
	h := newHarness(t)
	h.install(t, 1)

	_, err := h.proc.React(context.Background(), "alice", 1, 1)
	require.NoError(t, err)

	_, err = h.proc.React(context.Background(), "alice", 1, 1)
	require.ErrorIs(t, err, domain.ErrCooldownActive)

	assert.Len(t, h.queue.scoreDeltas(), 1)
	assert.Len(t, h.publisher.ofType("react"), 1)
	assert.Equal(t, 135*time.Second, h.snapshot().Featured.Remaining)
}

func TestReact_CooldownReportsRemainingWait(t *testing.T) {
	h := newHarness(t)
	h.install(t, 1)

	_, err := h.proc.React(context.Background(), "alice", 1, 1)
	require.NoError(t, err)

	h.clock.Advance(5 * time.Second)
	_, err = h.proc.React(context.Background(), "alice", 1, -1)

	var cooldown *domain.CooldownError
	require.ErrorAs(t, err, &cooldown)
	assert.GreaterOrEqual(t, cooldown.Remaining, 5*time.Second)

	h.clock.Advance(5 * time.Second)
	_, err = h.proc.React(context.Background(), "alice", 1, -1)
	assert.NoError(t, err)
}

func TestReact_CooldownIsGlobalAcrossRotations(t *testing.T) {
	h := newHarness(t)
	h.install(t, 1)

	_, err := h.proc.React(context.Background(), "alice", 1, 1)
	require.NoError(t, err)

	h.install(t, 2)
	_, err = h.proc.React(context.Background(), "alice", 2, 1)
	assert.ErrorIs(t, err, domain.ErrCooldownActive)
}

func TestReact_CooldownStoreFailureAcceptsReaction(t *testing.T) {
	h := newHarness(t)
	h.proc = NewActionProcessor(h.state, failingCooldown{}, h.publisher, h.queue, h.policy, h.clock, nil)
	h.install(t, 1)

	_, err := h.proc.React(context.Background(), "alice", 1, 1)
	assert.NoError(t, err)
}

func TestReact_LostRotationRaceKeepsCooldownWindow(t *testing.T) {
	h := newHarness(t)
	cooldown := &hookedCooldown{CooldownStore: memory.NewCooldownStore(h.clock)}
	h.proc = NewActionProcessor(h.state, cooldown, h.publisher, h.queue, h.policy, h.clock, nil)
	h.install(t, 1, 10)
	ctx := context.Background()

	cooldown.afterAcquire = func() {
		_ = h.state.Apply(func(r *rotation.Record) error {
			r.BeginRotation()
			return nil
		})
	}
	_, err := h.proc.React(ctx, "alice", 1, 1)
	require.ErrorIs(t, err, domain.ErrNotFeatured)

	cooldown.afterAcquire = nil
	h.install(t, 2, 20)

	_, err = h.proc.React(ctx, "alice", 2, 1)
	assert.NoError(t, err)
	assert.Len(t, h.publisher.ofType("react"), 1)
}

func TestReact_DownvoteClampsAtZeroAndRotatesOnNextTick(t *testing.T) {
	h := newHarness(t, func(p *Policy) { p.DownvotePenalty = 500 * time.Second })
	h.install(t, 1, 10, 11)

	result, err := h.proc.React(context.Background(), "alice", 1, -1)
	require.NoError(t, err)
	assert.Zero(t, result.Remaining)

	// still featured until the scheduler runs
	snap := h.snapshot()
	require.NotNil(t, snap.Featured)
	assert.Equal(t, domain.CandidateID(1), snap.Featured.Candidate.ID)
	assert.Zero(t, snap.Featured.Remaining)

	sched := NewScheduler(h.state, NewSelectionEngine(poolRange(1, 20), h.policy, seededRand(), nil), h.publisher, h.queue, h.clock, time.Second, nil)
	sched.tick(context.Background())

	snap = h.snapshot()
	assert.NotEqual(t, domain.CandidateID(1), snap.Featured.Candidate.ID)
	assert.Equal(t, uint64(2), snap.RotationID)
}

func TestReact_ThreeDownvotesByOneUserForceSkip(t *testing.T) {
	h := newHarness(t)
	h.install(t, 1, 10, 11)
	ctx := context.Background()

	for i := range 3 {
		if i > 0 {
			h.clock.Advance(h.policy.ReactCooldown)
		}
		result, err := h.proc.React(ctx, "grumpy", 1, -1)
		require.NoError(t, err)
		assert.Equal(t, i == 2, result.SkipPending, "after downvote %d", i+1)
	}

	snap := h.snapshot()
	assert.True(t, snap.SkipPending)
	assert.Greater(t, snap.Featured.Remaining, time.Duration(0))

	sched := NewScheduler(h.state, NewSelectionEngine(poolRange(1, 20), h.policy, seededRand(), nil), h.publisher, h.queue, h.clock, time.Second, nil)
	sched.tick(ctx)

	snap = h.snapshot()
	assert.NotEqual(t, domain.CandidateID(1), snap.Featured.Candidate.ID)
	assert.False(t, snap.SkipPending)
}

func TestReact_SkipScopeUser_IgnoresOtherUsers(t *testing.T) {
	h := newHarness(t)
	h.install(t, 1)

	for _, user := range []string{"a", "b", "c"} {
		result, err := h.proc.React(context.Background(), user, 1, -1)
		require.NoError(t, err)
		assert.False(t, result.SkipPending)
	}
	assert.False(t, h.snapshot().SkipPending)
}

func TestReact_SkipScopeRotation_CountsEveryone(t *testing.T) {
	h := newHarness(t, func(p *Policy) { p.SkipScope = SkipPerRotation })
	h.install(t, 1)

	var last domain.ReactResult
	for _, user := range []string{"a", "b", "c"} {
		var err error
		last, err = h.proc.React(context.Background(), user, 1, -1)
		require.NoError(t, err)
	}
	assert.True(t, last.SkipPending)
}

func TestReact_DownvoteTallyResetsAtRotation(t *testing.T) {
	h := newHarness(t)
	h.install(t, 1)
	ctx := context.Background()

	for range 2 {
		_, err := h.proc.React(ctx, "grumpy", 1, -1)
		require.NoError(t, err)
		h.clock.Advance(h.policy.ReactCooldown)
	}

	h.install(t, 2)
	result, err := h.proc.React(ctx, "grumpy", 2, -1)
	require.NoError(t, err)
	assert.False(t, result.SkipPending)
}

// --- nominate ---

func TestNominate_NoActiveRotation(t *testing.T) {
	h := newHarness(t)

	_, err := h.proc.Nominate(context.Background(), "alice", 10)
	assert.ErrorIs(t, err, domain.ErrNoActiveRotation)
}

func TestNominate_NotASatellite(t *testing.T) {
	h := newHarness(t)
	h.install(t, 1, 10, 11)

	_, err := h.proc.Nominate(context.Background(), "alice", 1)
	assert.ErrorIs(t, err, domain.ErrNotASatellite)

	_, err = h.proc.Nominate(context.Background(), "alice", 99)
	assert.ErrorIs(t, err, domain.ErrNotASatellite)
	assert.Empty(t, h.publisher.all())
}

func TestNominate_CountsAndOverwrites(t *testing.T) {
	h := newHarness(t)
	h.install(t, 1, 10, 11)
	ctx := context.Background()

	res, err := h.proc.Nominate(ctx, "alice", 10)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Nominations)

	res, err = h.proc.Nominate(ctx, "bob", 10)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Nominations)

	// a changed pick moves the tally instead of growing it
	res, err = h.proc.Nominate(ctx, "alice", 11)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Nominations)

	count, err := h.proc.NominationCount(10)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	snap := h.snapshot()
	assert.Equal(t, 1, snap.Satellites[0].Nominations)
	assert.Equal(t, 1, snap.Satellites[1].Nominations)

	events := h.publisher.ofType("nominate")
	require.Len(t, events, 3)
	assert.Equal(t, domain.NominateEvent{CandidateID: 11, Actor: "alice", Nominations: 1}, events[2])
}

func TestNominate_RetryReaffirmsWithoutDuplicateRecords(t *testing.T) {
	h := newHarness(t)
	h.install(t, 1, 10, 11)
	ctx := context.Background()

	for range 3 {
		res, err := h.proc.Nominate(ctx, "alice", 10)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Nominations)
	}

	assert.Len(t, h.queue.ofKind("nomination"), 1)
	deltas := h.queue.scoreDeltas()
	require.Len(t, deltas, 1)
	assert.InDelta(t, 0.5, deltas[0].Delta, 1e-9)
	assert.Equal(t, domain.ActionNominate, deltas[0].Reason)
}

func TestNominationCount_Errors(t *testing.T) {
	h := newHarness(t)
	h.state.ResumeAfter(5)

	_, err := h.proc.NominationCount(10)
	assert.ErrorIs(t, err, domain.ErrNoActiveRotation)

	h.install(t, 1, 10)
	_, err = h.proc.NominationCount(1)
	assert.ErrorIs(t, err, domain.ErrNotASatellite)
}

func TestResultLabel(t *testing.T) {
	assert.Equal(t, "applied", resultLabel(nil))
	assert.Equal(t, "invalid", resultLabel(domain.ErrInvalidValue))
	assert.Equal(t, "cooldown", resultLabel(&domain.CooldownError{Remaining: time.Second}))
	assert.Equal(t, "out_of_scope", resultLabel(domain.ErrNotASatellite))
	assert.Equal(t, "error", resultLabel(context.DeadlineExceeded))
}
