package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/linkorbit/internal/domain"
)

// RotationRepo is the rotation and nomination log.
type RotationRepo struct {
	pool *pgxpool.Pool
}

var _ domain.RotationHistory = (*RotationRepo)(nil)

func NewRotationRepo(pool *pgxpool.Pool) *RotationRepo {
	return &RotationRepo{pool: pool}
}

func (r *RotationRepo) RecentFeatured(ctx context.Context, limit int) ([]domain.CandidateID, error) {
	rows, err := r.pool.Query(ctx, `SELECT candidate_id FROM rotations ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query rotation log: %w", err)
	}
	raw, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to scan rotation log: %w", err)
	}

	out := make([]domain.CandidateID, len(raw))
	for i, id := range raw {
		out[i] = domain.CandidateID(id)
	}
	return out, nil
}

// LastRotationID returns the highest rotation ID found in the rotation or
// nomination log, or 0 for an empty log.
func (r *RotationRepo) LastRotationID(ctx context.Context) (uint64, error) {
	var last int64
	err := r.pool.QueryRow(ctx, `
		SELECT GREATEST(
			(SELECT COALESCE(MAX(rotation_id), 0) FROM rotations),
			(SELECT COALESCE(MAX(rotation_id), 0) FROM nominations)
		)`).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("failed to query last rotation id: %w", err)
	}
	return uint64(last), nil
}

// RecordRotation appends to the rotation log and marks the candidate shown.
func (r *RotationRepo) RecordRotation(ctx context.Context, rec domain.RotationRecord) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO rotations (rotation_id, candidate_id, reason, duration_ms, started_at)
			VALUES ($1, $2, $3, $4, $5)`,
			int64(rec.RotationID), int64(rec.CandidateID), string(rec.Reason), rec.Duration.Milliseconds(), rec.StartedAt); err != nil {
			return fmt.Errorf("failed to insert rotation: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE candidates SET times_shown = times_shown + 1, last_shown_at = $2
			WHERE id = $1`,
			int64(rec.CandidateID), rec.StartedAt); err != nil {
			return fmt.Errorf("failed to mark candidate shown: %w", err)
		}
		return nil
	})
}

func (r *RotationRepo) RecordNomination(ctx context.Context, n domain.NominationRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO nominations (rotation_id, candidate_id, actor, created_at)
		VALUES ($1, $2, $3, $4)`,
		int64(n.RotationID), int64(n.CandidateID), n.Actor, n.At)
	if err != nil {
		return fmt.Errorf("failed to insert nomination: %w", err)
	}
	return nil
}

// Sink combines both repositories into the durable record store.
type Sink struct {
	*CandidateRepo
	*RotationRepo
}

var _ domain.RecordSink = (*Sink)(nil)

func NewSink(pool *pgxpool.Pool) *Sink {
	return &Sink{CandidateRepo: NewCandidateRepo(pool), RotationRepo: NewRotationRepo(pool)}
}
