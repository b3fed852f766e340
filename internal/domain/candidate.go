package domain

import (
	"context"
	"strconv"
	"time"
)

type CandidateID int64

func (id CandidateID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseCandidateID parses a positive decimal candidate ID.
func ParseCandidateID(s string) (CandidateID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, ErrInvalidCandidateID
	}
	return CandidateID(n), nil
}

// Candidate is an item that can be featured or orbit the featured item.
type Candidate struct {
	ID          CandidateID
	Title       string
	URL         string
	Score       float64
	TimesShown  int
	LastShownAt time.Time
}

// CandidatePool answers the selection queries. Every query skips the IDs in
// exclude and returns at most limit candidates in no particular order.
type CandidatePool interface {
	// Fresh returns candidates that were never featured.
	Fresh(ctx context.Context, exclude []CandidateID, limit int) ([]Candidate, error)
	// Rerun returns candidates featured before but not within the last
	// lookback rotations.
	Rerun(ctx context.Context, lookback int, exclude []CandidateID, limit int) ([]Candidate, error)
	// Random returns candidates without any history constraint.
	Random(ctx context.Context, exclude []CandidateID, limit int) ([]Candidate, error)
}

// RotationHistory exposes the persisted rotation log.
type RotationHistory interface {
	// RecentFeatured returns the IDs of the last limit featured candidates, newest first.
	RecentFeatured(ctx context.Context, limit int) ([]CandidateID, error)
}
