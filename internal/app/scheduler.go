package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/linkorbit/internal/adapter/metrics"
	"github.com/pscheid92/linkorbit/internal/domain"
	"github.com/pscheid92/linkorbit/internal/platform/correlation"
	"github.com/pscheid92/linkorbit/internal/rotation"
)

const (
	DefaultTickInterval    = 2 * time.Second
	defaultSelectTimeout   = 1 * time.Second
	selectTimeoutTickShare = 2 // selection may use at most 1/2 of a tick
)

// Selector picks the rotation that replaces an outgoing one.
type Selector interface {
	Next(ctx context.Context, out rotation.Outgoing, now time.Time) (domain.Rotation, error)
}

// SchedulerStatus is a point-in-time view of the scheduler for operators.
type SchedulerStatus struct {
	Running      bool      `json:"running"`
	Ticks        uint64    `json:"ticks"`
	Rotations    uint64    `json:"rotations"`
	LastTick     time.Time `json:"last_tick"`
	LastRotation time.Time `json:"last_rotation"`
	LastError    string    `json:"last_error,omitempty"`
}

// Scheduler periodically decays the featured slot, reveals satellites,
// rotates when the time is up or a skip is pending, and broadcasts a full
// snapshot on every tick so lagging viewers resynchronize.
type Scheduler struct {
	state     *rotation.State
	selector  Selector
	publisher domain.EventPublisher
	records   domain.RecordQueue
	clock     clockwork.Clock
	interval  time.Duration
	metrics   *metrics.RotationMetrics

	selectTimeout time.Duration

	mu     sync.Mutex
	status SchedulerStatus
}

func NewScheduler(
	state *rotation.State,
	selector Selector,
	publisher domain.EventPublisher,
	records domain.RecordQueue,
	clock clockwork.Clock,
	interval time.Duration,
	rotationMetrics *metrics.RotationMetrics,
) *Scheduler {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	selectTimeout := min(defaultSelectTimeout, interval/selectTimeoutTickShare)

	return &Scheduler{
		state:         state,
		selector:      selector,
		publisher:     publisher,
		records:       records,
		clock:         clock,
		interval:      interval,
		metrics:       rotationMetrics,
		selectTimeout: selectTimeout,
	}
}

// Run ticks until ctx is cancelled. The first tick runs immediately so a
// fresh process installs its first rotation without waiting.
func (s *Scheduler) Run(ctx context.Context) error {
	s.setRunning(true)
	defer s.setRunning(false)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("Scheduler started", "interval", s.interval)
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduler stopped")
			return nil
		case <-ticker.Chan():
			s.tick(ctx)
		}
	}
}

// RequestSkip makes the next tick rotate regardless of the remaining time.
func (s *Scheduler) RequestSkip() error {
	return s.state.Apply(func(r *rotation.Record) error {
		if _, ok := r.Featured(); !ok {
			return domain.ErrNoActiveRotation
		}
		r.RequestSkip()
		return nil
	})
}

func (s *Scheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Scheduler) tick(ctx context.Context) {
	ctx = correlation.WithNewID(ctx)
	now := s.clock.Now()

	var (
		due        bool
		out        rotation.Outgoing
		revealed   []int
		rotationID uint64
	)
	_ = s.state.Apply(func(r *rotation.Record) error {
		rotationID = r.RotationID()
		r.Decay(now)
		revealed = r.Reveal(now)
		if due = r.RotationDue(); due {
			out = r.BeginRotation()
		}
		return nil
	})

	if len(revealed) > 0 {
		slog.DebugContext(ctx, "Satellites revealed", "rotation", rotationID, "indices", revealed)
	}

	if due {
		s.rotate(ctx, out, now)
	}

	snap := s.state.Snapshot(s.clock.Now())
	s.publisher.Publish(domain.StateEvent{Snapshot: snap})

	s.mu.Lock()
	s.status.Ticks++
	s.status.LastTick = now
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.TickDuration.Observe(s.clock.Since(now).Seconds())
		if snap.Featured != nil {
			s.metrics.Remaining.Set(snap.Featured.Remaining.Seconds())
		}
	}
}

func (s *Scheduler) rotate(ctx context.Context, out rotation.Outgoing, now time.Time) {
	selectCtx, cancel := context.WithTimeout(ctx, s.selectTimeout)
	defer cancel()

	next, err := s.selector.Next(selectCtx, out, now)
	if err != nil {
		// The current slot stays; the next tick tries again.
		_ = s.state.Apply(func(r *rotation.Record) error {
			r.AbortRotation()
			return nil
		})
		slog.WarnContext(ctx, "Rotation failed, keeping current state", "rotation", out.RotationID, "error", err)
		s.recordError(err)
		if s.metrics != nil {
			s.metrics.SelectionErrors.Inc()
		}
		return
	}

	var rotationID uint64
	_ = s.state.Apply(func(r *rotation.Record) error {
		rotationID = r.Install(next, now)
		return nil
	})

	featured := next.Featured
	slog.InfoContext(ctx, "Rotated",
		"rotation", rotationID,
		"candidate_id", featured.Candidate.ID,
		"reason", featured.Reason,
		"satellites", len(next.Satellites),
	)

	s.publisher.Publish(domain.RotationEvent{
		RotationID: rotationID,
		Candidate:  featured.Candidate,
		Reason:     featured.Reason,
		Duration:   featured.Duration,
	})

	rec := domain.RotationRecord{
		RotationID:  rotationID,
		CandidateID: featured.Candidate.ID,
		Reason:      featured.Reason,
		Duration:    featured.Duration,
		StartedAt:   featured.StartedAt,
	}
	if !s.records.Enqueue(rec) {
		slog.WarnContext(ctx, "Persistence queue full, rotation record dropped", "rotation", rotationID)
	}

	s.mu.Lock()
	s.status.Rotations++
	s.status.LastRotation = now
	s.status.LastError = ""
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.Rotations.WithLabelValues(string(featured.Reason)).Inc()
	}
}

func (s *Scheduler) setRunning(running bool) {
	s.mu.Lock()
	s.status.Running = running
	s.mu.Unlock()
}

func (s *Scheduler) recordError(err error) {
	s.mu.Lock()
	s.status.LastError = err.Error()
	s.mu.Unlock()
}
