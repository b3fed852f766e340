package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/linkorbit/internal/adapter/metrics"
	"github.com/pscheid92/linkorbit/internal/domain"
	"github.com/pscheid92/linkorbit/internal/rotation"
)

// ActionProcessor applies viewer reactions and nominations to the rotation.
type ActionProcessor struct {
	state     *rotation.State
	cooldown  domain.CooldownStore
	publisher domain.EventPublisher
	records   domain.RecordQueue
	policy    Policy
	clock     clockwork.Clock
	metrics   *metrics.ActionMetrics
}

func NewActionProcessor(
	state *rotation.State,
	cooldown domain.CooldownStore,
	publisher domain.EventPublisher,
	records domain.RecordQueue,
	policy Policy,
	clock clockwork.Clock,
	actionMetrics *metrics.ActionMetrics,
) *ActionProcessor {
	return &ActionProcessor{
		state:     state,
		cooldown:  cooldown,
		publisher: publisher,
		records:   records,
		policy:    policy,
		clock:     clock,
		metrics:   actionMetrics,
	}
}

// React applies a +1/-1 reaction by userID to the featured candidate.
func (p *ActionProcessor) React(ctx context.Context, userID string, id domain.CandidateID, value int) (domain.ReactResult, error) {
	start := p.clock.Now()
	result, err := p.react(ctx, userID, id, value)
	p.observe(domain.ActionReact, start, err)
	return result, err
}

func (p *ActionProcessor) react(ctx context.Context, userID string, id domain.CandidateID, value int) (domain.ReactResult, error) {
	if value != 1 && value != -1 {
		return domain.ReactResult{}, domain.ErrInvalidValue
	}

	var featured bool
	p.state.View(func(r rotation.Reader) { featured = r.IsFeatured(id) && !r.Closing() })
	if !featured {
		return domain.ReactResult{}, domain.ErrNotFeatured
	}

	// The cooldown store may be remote, so it is consulted outside the gate.
	wait, err := p.cooldown.Acquire(ctx, userID, p.policy.ReactCooldown)
	acquired := err == nil && wait <= 0
	switch {
	case err != nil:
		slog.WarnContext(ctx, "Cooldown check failed, accepting reaction", "user", userID, "error", err)
	case wait > 0:
		return domain.ReactResult{}, &domain.CooldownError{Remaining: wait}
	}

	now := p.clock.Now()
	delta := p.policy.UpvoteBonus
	if value < 0 {
		delta = -p.policy.DownvotePenalty
	}

	result := domain.ReactResult{CandidateID: id, Value: value}
	var skipTriggered bool
	err = p.state.Apply(func(r *rotation.Record) error {
		if !r.IsFeatured(id) || r.Closing() {
			return domain.ErrNotFeatured
		}

		result.Remaining = r.AdjustRemaining(now, delta, p.policy.MaxRemaining)
		if value < 0 {
			user, total := r.RecordDownvote(userID)
			tally := user
			if p.policy.SkipScope == SkipPerRotation {
				tally = total
			}
			if tally >= p.policy.SkipThreshold && !r.SkipPending() {
				r.RequestSkip()
				skipTriggered = true
			}
		}
		result.SkipPending = r.SkipPending()

		c, _ := r.Candidate(id)
		r.AppendAction(domain.RecentAction{
			Kind:        domain.ActionReact,
			CandidateID: id,
			Title:       c.Title,
			Value:       value,
			Actor:       userID,
			At:          now,
		})
		return nil
	})
	if err != nil {
		// The rotation moved on after the cooldown check; the window is not spent.
		if acquired {
			if relErr := p.cooldown.Release(ctx, userID); relErr != nil {
				slog.WarnContext(ctx, "Failed to release cooldown", "user", userID, "error", relErr)
			}
		}
		return domain.ReactResult{}, err
	}

	if skipTriggered {
		slog.InfoContext(ctx, "Downvote threshold reached, skip pending", "candidate_id", id, "user", userID)
		if p.metrics != nil {
			p.metrics.ForcedSkips.Inc()
		}
	}

	p.publisher.Publish(domain.ReactEvent{CandidateID: id, Value: value, Actor: userID, Remaining: result.Remaining})
	p.enqueue(ctx, domain.ScoreDelta{CandidateID: id, Delta: float64(value), Reason: domain.ActionReact, Actor: userID, At: now})

	return result, nil
}

// Nominate records userID's pick among the current satellites. A later pick
// by the same user in the same rotation replaces the earlier one.
func (p *ActionProcessor) Nominate(ctx context.Context, userID string, id domain.CandidateID) (domain.NominateResult, error) {
	start := p.clock.Now()
	result, err := p.nominate(ctx, userID, id)
	p.observe(domain.ActionNominate, start, err)
	return result, err
}

func (p *ActionProcessor) nominate(ctx context.Context, userID string, id domain.CandidateID) (domain.NominateResult, error) {
	now := p.clock.Now()

	var (
		count      int
		changed    bool
		rotationID uint64
	)
	err := p.state.Apply(func(r *rotation.Record) error {
		var err error
		count, changed, err = r.Nominate(userID, id)
		if err != nil {
			return err
		}
		rotationID = r.RotationID()

		c, _ := r.Candidate(id)
		r.AppendAction(domain.RecentAction{
			Kind:        domain.ActionNominate,
			CandidateID: id,
			Title:       c.Title,
			Actor:       userID,
			At:          now,
		})
		return nil
	})
	if err != nil {
		return domain.NominateResult{}, err
	}

	p.publisher.Publish(domain.NominateEvent{CandidateID: id, Actor: userID, Nominations: count})

	if changed {
		p.enqueue(ctx, domain.NominationRecord{RotationID: rotationID, CandidateID: id, Actor: userID, At: now})
		if p.policy.NominationScoreBoost != 0 {
			p.enqueue(ctx, domain.ScoreDelta{CandidateID: id, Delta: p.policy.NominationScoreBoost, Reason: domain.ActionNominate, Actor: userID, At: now})
		}
	}

	return domain.NominateResult{CandidateID: id, Nominations: count}, nil
}

// NominationCount returns the live nomination count of a satellite.
func (p *ActionProcessor) NominationCount(id domain.CandidateID) (int, error) {
	var (
		count int
		err   error
	)
	p.state.View(func(r rotation.Reader) {
		switch {
		case !hasFeatured(r):
			err = domain.ErrNoActiveRotation
		case !r.IsSatellite(id):
			err = domain.ErrNotASatellite
		default:
			count = r.NominationCount(id)
		}
	})
	return count, err
}

func hasFeatured(r rotation.Reader) bool {
	_, ok := r.Featured()
	return ok
}

func (p *ActionProcessor) enqueue(ctx context.Context, rec domain.Record) {
	if !p.records.Enqueue(rec) {
		slog.WarnContext(ctx, "Persistence queue full, record dropped", "kind", rec.RecordKind())
	}
}

func (p *ActionProcessor) observe(kind domain.ActionKind, start time.Time, err error) {
	if p.metrics == nil {
		return
	}
	p.metrics.Actions.WithLabelValues(string(kind), resultLabel(err)).Inc()
	p.metrics.ProcessingDuration.Observe(p.clock.Since(start).Seconds())
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "applied"
	case errors.Is(err, domain.ErrInvalidValue):
		return "invalid"
	case errors.Is(err, domain.ErrCooldownActive):
		return "cooldown"
	case errors.Is(err, domain.ErrNotFeatured), errors.Is(err, domain.ErrNotASatellite), errors.Is(err, domain.ErrNoActiveRotation):
		return "out_of_scope"
	default:
		return "error"
	}
}
