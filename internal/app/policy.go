package app

import "time"

// SkipScope decides whose downvotes count towards the skip threshold.
type SkipScope string

const (
	SkipPerUser     SkipScope = "user"     // one user's downvotes in the current rotation
	SkipPerRotation SkipScope = "rotation" // everyone's downvotes in the current rotation
)

// PoolWeights is the ratio between the pool strategies.
type PoolWeights struct {
	Fresh    float64
	Rerun    float64
	Wildcard float64
}

// Policy holds the tunable rules of the rotation.
type Policy struct {
	RotationDuration time.Duration
	MaxRemaining     time.Duration
	RevealInterval   time.Duration
	SatelliteCount   int

	UpvoteBonus     time.Duration
	DownvotePenalty time.Duration
	ReactCooldown   time.Duration
	SkipThreshold   int
	SkipScope       SkipScope

	Weights              PoolWeights
	FatigueLookback      int
	NominationScoreBoost float64
}

func DefaultPolicy() Policy {
	return Policy{
		RotationDuration:     120 * time.Second,
		MaxRemaining:         300 * time.Second,
		RevealInterval:       20 * time.Second,
		SatelliteCount:       5,
		UpvoteBonus:          15 * time.Second,
		DownvotePenalty:      20 * time.Second,
		ReactCooldown:        10 * time.Second,
		SkipThreshold:        3,
		SkipScope:            SkipPerUser,
		Weights:              PoolWeights{Fresh: 0.6, Rerun: 0.3, Wildcard: 0.1},
		FatigueLookback:      20,
		NominationScoreBoost: 0.5,
	}
}
