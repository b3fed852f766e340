package domain

import "time"

type SelectionReason string

const (
	ReasonFresh     SelectionReason = "fresh"
	ReasonRerun     SelectionReason = "rerun"
	ReasonWildcard  SelectionReason = "wildcard"
	ReasonNominated SelectionReason = "nominated"
)

// FeaturedSlot is the candidate in the primary display position.
type FeaturedSlot struct {
	Candidate Candidate
	StartedAt time.Time
	Duration  time.Duration // allotted at selection time
	Remaining time.Duration // extended or shortened by reactions, decayed by ticks
	Reason    SelectionReason
}

// Satellite is one of the candidates orbiting the featured slot.
type Satellite struct {
	Candidate   Candidate
	Position    string
	Label       string
	RevealAt    time.Time
	Revealed    bool
	Nominations int
}

// Rotation is what the selection engine hands over to be installed.
type Rotation struct {
	Featured   FeaturedSlot
	Satellites []Satellite
}

// Snapshot is a consistent copy of the live rotation state.
type Snapshot struct {
	RotationID    uint64
	Featured      *FeaturedSlot // nil until the first rotation is installed
	Satellites    []Satellite
	RecentActions []RecentAction
	ViewerCount   int
	SkipPending   bool
	TakenAt       time.Time
}
