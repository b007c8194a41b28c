package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/itayakad/juno-master/internal/domain"
)

// ProfileStore persists projected user profiles.
type ProfileStore struct {
	pool *pgxpool.Pool
}

// NewProfileStore constructs a ProfileStore.
func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

// GetProfile implements domain.ProfileStore. Unknown users yield nil, nil.
func (s *ProfileStore) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	const query = `SELECT user_id, exercise_minutes, workout_days, calories_consumed, protein_consumed, updated_at
        FROM user_profiles WHERE user_id=$1`

	var p domain.UserProfile
	err := s.pool.QueryRow(ctx, query, userID).Scan(&p.UserID, &p.ExerciseMinutes, &p.WorkoutDays, &p.CaloriesConsumed, &p.ProteinConsumed, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// SaveProfile implements domain.ProfileStore.
func (s *ProfileStore) SaveProfile(ctx context.Context, p domain.UserProfile) error {
	const stmt = `INSERT INTO user_profiles (user_id, exercise_minutes, workout_days, calories_consumed, protein_consumed, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (user_id) DO UPDATE SET
            exercise_minutes = EXCLUDED.exercise_minutes,
            workout_days = EXCLUDED.workout_days,
            calories_consumed = EXCLUDED.calories_consumed,
            protein_consumed = EXCLUDED.protein_consumed,
            updated_at = EXCLUDED.updated_at`

	days := p.WorkoutDays
	if days == nil {
		days = []string{}
	}
	_, err := s.pool.Exec(ctx, stmt, p.UserID, p.ExerciseMinutes, days, p.CaloriesConsumed, p.ProteinConsumed, p.UpdatedAt)
	return err
}
