package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/caregrid/sentinel/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgProfileRepository persists behavior profiles as JSONB documents keyed by
// user id. Implements behavior.ProfileRepository.
type PgProfileRepository struct {
	pool *pgxpool.Pool
}

// NewPgProfileRepository creates a PgProfileRepository.
func NewPgProfileRepository(pool *pgxpool.Pool) *PgProfileRepository {
	return &PgProfileRepository{pool: pool}
}

// Get returns a profile, or (nil, nil) when the user has none.
func (r *PgProfileRepository) Get(ctx context.Context, userID string) (*domain.BehaviorProfile, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT profile FROM behavior_profiles WHERE user_id = $1`, userID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p domain.BehaviorProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns all profiles, most recently updated first.
func (r *PgProfileRepository) List(ctx context.Context, limit int) ([]domain.BehaviorProfile, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT profile FROM behavior_profiles ORDER BY updated_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BehaviorProfile
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var p domain.BehaviorProfile
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// WithUserLock serializes profile read-modify-write cycles across processes.
// The advisory lock is transaction-scoped and keyed on the user id's hash; it
// is held for the whole fn window and released when the transaction ends, so
// the API server and the event consumer never interleave updates to the same
// document.
func (r *PgProfileRepository) WithUserLock(ctx context.Context, userID string, fn func(ctx context.Context) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Save upserts a profile document.
func (r *PgProfileRepository) Save(ctx context.Context, p *domain.BehaviorProfile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO behavior_profiles (user_id, profile, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (user_id) DO UPDATE SET profile = $2, updated_at = now()`,
		p.UserID, raw)
	return err
}
