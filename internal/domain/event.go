package domain

import "time"

// Event is an outbound message for connected viewers.
type Event interface {
	EventType() string
}

type StateEvent struct {
	Snapshot Snapshot
}

type ReactEvent struct {
	CandidateID CandidateID
	Value       int
	Actor       string
	Remaining   time.Duration
}

type NominateEvent struct {
	CandidateID CandidateID
	Actor       string
	Nominations int
}

type RotationEvent struct {
	RotationID uint64
	Candidate  Candidate
	Reason     SelectionReason
	Duration   time.Duration
}

func (StateEvent) EventType() string    { return "state" }
func (ReactEvent) EventType() string    { return "react" }
func (NominateEvent) EventType() string { return "nominate" }
func (RotationEvent) EventType() string { return "rotation" }

// EventPublisher pushes events to every connected viewer without blocking.
type EventPublisher interface {
	Publish(evt Event)
}
