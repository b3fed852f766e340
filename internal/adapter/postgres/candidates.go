package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/linkorbit/internal/domain"
)

const candidateColumns = `id, title, url, score, times_shown, last_shown_at`

// CandidateRepo answers the selection engine's pool queries and keeps
// cumulative scores.
type CandidateRepo struct {
	pool *pgxpool.Pool
}

var _ domain.CandidatePool = (*CandidateRepo)(nil)

func NewCandidateRepo(pool *pgxpool.Pool) *CandidateRepo {
	return &CandidateRepo{pool: pool}
}

func (r *CandidateRepo) Fresh(ctx context.Context, exclude []domain.CandidateID, limit int) ([]domain.Candidate, error) {
	return r.query(ctx, `
		SELECT `+candidateColumns+` FROM candidates
		WHERE times_shown = 0 AND NOT (id = ANY($1))
		ORDER BY random() LIMIT $2`,
		ids(exclude), limit)
}

// Rerun skips candidates among the last lookback entries of the rotation log.
func (r *CandidateRepo) Rerun(ctx context.Context, lookback int, exclude []domain.CandidateID, limit int) ([]domain.Candidate, error) {
	return r.query(ctx, `
		SELECT `+candidateColumns+` FROM candidates
		WHERE times_shown > 0
		  AND NOT (id = ANY($1))
		  AND id NOT IN (SELECT candidate_id FROM rotations ORDER BY id DESC LIMIT $3)
		ORDER BY random() LIMIT $2`,
		ids(exclude), limit, lookback)
}

func (r *CandidateRepo) Random(ctx context.Context, exclude []domain.CandidateID, limit int) ([]domain.Candidate, error) {
	return r.query(ctx, `
		SELECT `+candidateColumns+` FROM candidates
		WHERE NOT (id = ANY($1))
		ORDER BY random() LIMIT $2`,
		ids(exclude), limit)
}

// ApplyScoreDelta logs the delta and adds it to the candidate's score.
func (r *CandidateRepo) ApplyScoreDelta(ctx context.Context, d domain.ScoreDelta) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO score_events (candidate_id, delta, reason, actor, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			int64(d.CandidateID), d.Delta, string(d.Reason), d.Actor, d.At); err != nil {
			return fmt.Errorf("failed to insert score event: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE candidates SET score = score + $2 WHERE id = $1`, int64(d.CandidateID), d.Delta); err != nil {
			return fmt.Errorf("failed to update score: %w", err)
		}
		return nil
	})
}

func (r *CandidateRepo) query(ctx context.Context, sql string, args ...any) ([]domain.Candidate, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	candidates, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Candidate, error) {
		return scanCandidate(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan candidates: %w", err)
	}
	return candidates, nil
}

func scanCandidate(row pgx.Row) (domain.Candidate, error) {
	var (
		c        domain.Candidate
		id       int64
		lastShow *time.Time
	)
	if err := row.Scan(&id, &c.Title, &c.URL, &c.Score, &c.TimesShown, &lastShow); err != nil {
		return domain.Candidate{}, err
	}
	c.ID = domain.CandidateID(id)
	if lastShow != nil {
		c.LastShownAt = *lastShow
	}
	return c, nil
}

func ids(in []domain.CandidateID) []int64 {
	out := make([]int64, len(in))
	for i, id := range in {
		out[i] = int64(id)
	}
	return out
}
