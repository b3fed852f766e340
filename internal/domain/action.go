package domain

import "time"

type ActionKind string

const (
	ActionReact    ActionKind = "react"
	ActionNominate ActionKind = "nominate"
	ActionRotation ActionKind = "rotation"
)

// RecentAction is one entry of the display-only activity feed.
type RecentAction struct {
	Kind        ActionKind
	CandidateID CandidateID
	Title       string
	Value       int
	Actor       string
	Reason      SelectionReason
	At          time.Time
}

// ReactResult is returned to the caller of a successful reaction.
type ReactResult struct {
	CandidateID CandidateID
	Value       int
	Remaining   time.Duration
	SkipPending bool
}

// NominateResult is returned to the caller of a successful nomination.
type NominateResult struct {
	CandidateID CandidateID
	Nominations int
}
