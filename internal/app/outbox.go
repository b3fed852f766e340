package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/pscheid92/linkorbit/internal/adapter/metrics"
	"github.com/pscheid92/linkorbit/internal/domain"
	"github.com/pscheid92/linkorbit/internal/platform/retry"
)

const (
	defaultWriteTimeout = 2 * time.Second
	defaultDrainTimeout = 5 * time.Second
)

var defaultWritePolicy = retry.Policy{
	MaxAttempts:    3,
	InitialBackoff: 100 * time.Millisecond,
	MaxBackoff:     1 * time.Second,
}

// Outbox is the persistence work queue. The core enqueues records without
// waiting; Run drains them into the sink with bounded retries behind a
// circuit breaker, so a slow or failing store never reaches the hot path.
type Outbox struct {
	queue        chan domain.Record
	sink         domain.RecordSink
	breaker      circuitbreaker.CircuitBreaker[any]
	policy       retry.Policy
	writeTimeout time.Duration
	drainTimeout time.Duration
	metrics      *metrics.OutboxMetrics
}

type OutboxOption func(*Outbox)

func WithBreaker(cb circuitbreaker.CircuitBreaker[any]) OutboxOption {
	return func(o *Outbox) { o.breaker = cb }
}

func WithWritePolicy(p retry.Policy) OutboxOption {
	return func(o *Outbox) { o.policy = p }
}

func NewOutbox(sink domain.RecordSink, size int, outboxMetrics *metrics.OutboxMetrics, opts ...OutboxOption) *Outbox {
	o := &Outbox{
		queue:        make(chan domain.Record, size),
		sink:         sink,
		policy:       defaultWritePolicy,
		writeTimeout: defaultWriteTimeout,
		drainTimeout: defaultDrainTimeout,
		metrics:      outboxMetrics,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.breaker == nil {
		o.breaker = newSinkBreaker(outboxMetrics)
	}
	return o
}

// newSinkBreaker opens after 60% failures among at least 5 writes in 10s and
// tries again after 30s.
func newSinkBreaker(m *metrics.OutboxMetrics) circuitbreaker.CircuitBreaker[any] {
	return circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(0.6, 5, 10*time.Second).
		WithDelay(30 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", "outbox",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			if m != nil {
				m.CircuitState.Set(stateToFloat(e.NewState))
			}
		}).
		Build()
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	default:
		return 2
	}
}

// Enqueue hands r to the writer. It never blocks and reports false when the
// queue is full.
func (o *Outbox) Enqueue(r domain.Record) bool {
	select {
	case o.queue <- r:
		if o.metrics != nil {
			o.metrics.Enqueued.WithLabelValues(r.RecordKind()).Inc()
			o.metrics.Depth.Set(float64(len(o.queue)))
		}
		return true
	default:
		o.drop("queue_full")
		return false
	}
}

// Len returns the number of records waiting to be written.
func (o *Outbox) Len() int {
	return len(o.queue)
}

// Run writes records until ctx is cancelled, then drains what is left within
// a short grace period.
func (o *Outbox) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			o.drain()
			return nil
		case r := <-o.queue:
			o.write(ctx, r)
		}
	}
}

func (o *Outbox) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), o.drainTimeout)
	defer cancel()

	for {
		select {
		case r := <-o.queue:
			if ctx.Err() != nil {
				o.drop("shutdown")
				continue
			}
			o.write(ctx, r)
		default:
			return
		}
	}
}

func (o *Outbox) write(ctx context.Context, r domain.Record) {
	if o.metrics != nil {
		o.metrics.Depth.Set(float64(len(o.queue)))
	}

	if !o.breaker.TryAcquirePermit() {
		o.drop("circuit_open")
		slog.DebugContext(ctx, "Sink circuit open, record dropped", "kind", r.RecordKind())
		return
	}

	err := retry.DoVoid(ctx, o.policy, classifyWriteError, func(ctx context.Context) error {
		writeCtx, cancel := context.WithTimeout(ctx, o.writeTimeout)
		defer cancel()
		return o.dispatch(writeCtx, r)
	})
	if err != nil {
		o.breaker.RecordError(err)
		slog.WarnContext(ctx, "Failed to persist record", "kind", r.RecordKind(), "error", err)
		if o.metrics != nil {
			o.metrics.Failed.WithLabelValues(r.RecordKind()).Inc()
		}
		return
	}
	o.breaker.RecordSuccess()
}

func (o *Outbox) dispatch(ctx context.Context, r domain.Record) error {
	switch rec := r.(type) {
	case domain.ScoreDelta:
		return o.sink.ApplyScoreDelta(ctx, rec)
	case domain.NominationRecord:
		return o.sink.RecordNomination(ctx, rec)
	case domain.RotationRecord:
		return o.sink.RecordRotation(ctx, rec)
	default:
		return &retry.PermanentError{Err: fmt.Errorf("unknown record kind %q", r.RecordKind())}
	}
}

func classifyWriteError(err error) retry.Action {
	var permanent *retry.PermanentError
	if errors.As(err, &permanent) || errors.Is(err, context.Canceled) {
		return retry.Stop
	}
	return retry.Retry
}

func (o *Outbox) drop(reason string) {
	if o.metrics != nil {
		o.metrics.Dropped.WithLabelValues(reason).Inc()
	}
}
