package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidValue       = errors.New("reaction value must be +1 or -1")
	ErrInvalidCandidateID = errors.New("invalid candidate id")
	ErrNotFeatured        = errors.New("candidate is not the featured candidate")
	ErrCooldownActive     = errors.New("reaction cooldown active")
	ErrNoActiveRotation   = errors.New("no active rotation")
	ErrNotASatellite      = errors.New("candidate is not a current satellite")
	ErrPoolExhausted      = errors.New("candidate pool is empty")
	ErrTooManyViewers     = errors.New("viewer limit reached")
	ErrHubClosed          = errors.New("broadcast hub closed")
)

// CooldownError carries the remaining wait of an active cooldown.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: retry in %s", ErrCooldownActive, e.Remaining.Round(time.Millisecond))
}

func (e *CooldownError) Unwrap() error { return ErrCooldownActive }
