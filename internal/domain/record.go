package domain

import (
	"context"
	"time"
)

// Record is a unit of work for the durable store. Records are produced by the
// core and written asynchronously; the core never waits for them.
type Record interface {
	RecordKind() string
}

type ScoreDelta struct {
	CandidateID CandidateID
	Delta       float64
	Reason      ActionKind
	Actor       string
	At          time.Time
}

type NominationRecord struct {
	RotationID  uint64
	CandidateID CandidateID
	Actor       string
	At          time.Time
}

type RotationRecord struct {
	RotationID  uint64
	CandidateID CandidateID
	Reason      SelectionReason
	Duration    time.Duration
	StartedAt   time.Time
}

func (ScoreDelta) RecordKind() string       { return "score_delta" }
func (NominationRecord) RecordKind() string { return "nomination" }
func (RotationRecord) RecordKind() string   { return "rotation" }

// RecordSink is the durable store for history and scores.
type RecordSink interface {
	ApplyScoreDelta(ctx context.Context, d ScoreDelta) error
	RecordNomination(ctx context.Context, n NominationRecord) error
	RecordRotation(ctx context.Context, r RotationRecord) error
}

// RecordQueue accepts records without blocking. Enqueue reports false when the
// record had to be dropped.
type RecordQueue interface {
	Enqueue(r Record) bool
}
