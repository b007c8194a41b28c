package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/itayakad/juno-master/internal/domain"
	"github.com/itayakad/juno-master/internal/events"
)

const (
	exerciseColumns = `log_id, user_id, exercise_type, logged_at, duration_min, calories_burned, notes, has_photo, photo_url, record_workout, record_quantity, created_at`
	mealColumns     = `log_id, user_id, description, logged_at, calories, carbs, fat, protein, has_photo, photo_url, created_at`
)

// Repository provides Postgres-backed persistence for logs and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// withUser runs fn in a transaction scoped to userID for row-level security.
func (r *Repository) withUser(ctx context.Context, userID string, fn func(pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.user_id', $1, true)", userID); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// FindExerciseByIdempotency implements domain.LogRepository.
func (r *Repository) FindExerciseByIdempotency(ctx context.Context, userID, idempotencyKey string) (*domain.ExerciseLog, error) {
	if idempotencyKey == "" {
		return nil, nil
	}
	var found *domain.ExerciseLog
	err := r.withUser(ctx, userID, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+exerciseColumns+` FROM exercise_logs WHERE user_id=$1 AND idempotency_key=$2`, userID, idempotencyKey)
		entry, err := scanExercise(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return err
		}
		found = &entry
		return nil
	})
	return found, err
}

// FindMealByIdempotency implements domain.LogRepository.
func (r *Repository) FindMealByIdempotency(ctx context.Context, userID, idempotencyKey string) (*domain.MealLog, error) {
	if idempotencyKey == "" {
		return nil, nil
	}
	var found *domain.MealLog
	err := r.withUser(ctx, userID, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+mealColumns+` FROM meal_logs WHERE user_id=$1 AND idempotency_key=$2`, userID, idempotencyKey)
		entry, err := scanMeal(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return err
		}
		found = &entry
		return nil
	})
	return found, err
}

// CreateExercise persists the log and its outbox event inside a single transaction.
func (r *Repository) CreateExercise(ctx context.Context, entry domain.ExerciseLog, idempotencyKey string, created events.LogCreated) error {
	return r.withUser(ctx, entry.UserID, func(tx pgx.Tx) error {
		const stmt = `INSERT INTO exercise_logs (log_id, user_id, exercise_type, logged_at, duration_min, calories_burned, notes, has_photo, photo_url, record_workout, record_quantity, idempotency_key, created_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
		if _, err := tx.Exec(ctx, stmt,
			entry.ID,
			entry.UserID,
			entry.ExerciseType,
			entry.LoggedAt,
			entry.DurationMin,
			entry.CaloriesBurned,
			entry.Notes,
			entry.HasPhoto,
			entry.PhotoURL,
			entry.RecordWorkout,
			entry.RecordQuantity,
			nullIfEmpty(idempotencyKey),
			entry.CreatedAt,
		); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, outboxRecord{
			userID:      entry.UserID,
			aggregateID: entry.ID,
			kind:        domain.KindExercise,
			eventType:   events.TypeLogCreated,
			payload:     created,
		})
	})
}

// CreateMeal persists the log and its outbox event inside a single transaction.
func (r *Repository) CreateMeal(ctx context.Context, entry domain.MealLog, idempotencyKey string, created events.LogCreated) error {
	return r.withUser(ctx, entry.UserID, func(tx pgx.Tx) error {
		const stmt = `INSERT INTO meal_logs (log_id, user_id, description, logged_at, calories, carbs, fat, protein, has_photo, photo_url, idempotency_key, created_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
		if _, err := tx.Exec(ctx, stmt,
			entry.ID,
			entry.UserID,
			entry.Description,
			entry.LoggedAt,
			entry.Calories,
			entry.Carbs,
			entry.Fat,
			entry.Protein,
			entry.HasPhoto,
			entry.PhotoURL,
			nullIfEmpty(idempotencyKey),
			entry.CreatedAt,
		); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, outboxRecord{
			userID:      entry.UserID,
			aggregateID: entry.ID,
			kind:        domain.KindMeal,
			eventType:   events.TypeLogCreated,
			payload:     created,
		})
	})
}

// GetExercise retrieves an exercise by ID. A missing row yields nil, nil.
func (r *Repository) GetExercise(ctx context.Context, userID, id string) (*domain.ExerciseLog, error) {
	var found *domain.ExerciseLog
	err := r.withUser(ctx, userID, func(tx pgx.Tx) error {
		entry, err := scanExercise(tx.QueryRow(ctx, `SELECT `+exerciseColumns+` FROM exercise_logs WHERE user_id=$1 AND log_id=$2`, userID, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return err
		}
		found = &entry
		return nil
	})
	return found, err
}

// GetMeal retrieves a meal by ID. A missing row yields nil, nil.
func (r *Repository) GetMeal(ctx context.Context, userID, id string) (*domain.MealLog, error) {
	var found *domain.MealLog
	err := r.withUser(ctx, userID, func(tx pgx.Tx) error {
		entry, err := scanMeal(tx.QueryRow(ctx, `SELECT `+mealColumns+` FROM meal_logs WHERE user_id=$1 AND log_id=$2`, userID, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return err
		}
		found = &entry
		return nil
	})
	return found, err
}

// ListExercises returns exercises newest first.
func (r *Repository) ListExercises(ctx context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.ExerciseLog, *domain.Cursor, error) {
	query, args := pageQuery(`SELECT `+exerciseColumns+` FROM exercise_logs WHERE user_id=$1`, userID, cursor, limit)

	results := make([]domain.ExerciseLog, 0, limit)
	err := r.withUser(ctx, userID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			entry, err := scanExercise(rows)
			if err != nil {
				return err
			}
			results = append(results, entry)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return results, next, nil
}

// ListMeals returns meals newest first.
func (r *Repository) ListMeals(ctx context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.MealLog, *domain.Cursor, error) {
	query, args := pageQuery(`SELECT `+mealColumns+` FROM meal_logs WHERE user_id=$1`, userID, cursor, limit)

	results := make([]domain.MealLog, 0, limit)
	err := r.withUser(ctx, userID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			entry, err := scanMeal(rows)
			if err != nil {
				return err
			}
			results = append(results, entry)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return results, next, nil
}

// AllExercises returns every exercise of the user in insertion order.
func (r *Repository) AllExercises(ctx context.Context, userID string) ([]domain.ExerciseLog, error) {
	results := make([]domain.ExerciseLog, 0)
	err := r.withUser(ctx, userID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+exerciseColumns+` FROM exercise_logs WHERE user_id=$1 ORDER BY created_at, log_id`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			entry, err := scanExercise(rows)
			if err != nil {
				return err
			}
			results = append(results, entry)
		}
		return rows.Err()
	})
	return results, err
}

// AllMeals returns every meal of the user in insertion order.
func (r *Repository) AllMeals(ctx context.Context, userID string) ([]domain.MealLog, error) {
	results := make([]domain.MealLog, 0)
	err := r.withUser(ctx, userID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+mealColumns+` FROM meal_logs WHERE user_id=$1 ORDER BY created_at, log_id`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			entry, err := scanMeal(rows)
			if err != nil {
				return err
			}
			results = append(results, entry)
		}
		return rows.Err()
	})
	return results, err
}

// DeleteLog removes the row and records a log.deleted event.
func (r *Repository) DeleteLog(ctx context.Context, d domain.Deletion) error {
	table, err := tableFor(d.Kind)
	if err != nil {
		return err
	}
	return r.withUser(ctx, d.UserID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE user_id=$1 AND log_id=$2`, d.UserID, d.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrLogNotFound
		}
		return insertOutbox(ctx, tx, outboxRecord{
			userID:      d.UserID,
			aggregateID: d.ID,
			kind:        d.Kind,
			eventType:   events.TypeLogDeleted,
			payload: events.LogDeleted{
				LogID:       d.ID,
				UserID:      d.UserID,
				Kind:        string(d.Kind),
				DurationMin: d.DurationMin,
				Calories:    d.Calories,
				Protein:     d.Protein,
				SameDay:     d.SameDay,
				DeletedAt:   d.DeletedAt,
			},
		})
	})
}

// ClearPhoto resets the photo fields and records a log.photo_detached event.
func (r *Repository) ClearPhoto(ctx context.Context, kind domain.Kind, userID, id string, detached events.PhotoDetached) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	return r.withUser(ctx, userID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE `+table+` SET has_photo=FALSE, photo_url='' WHERE user_id=$1 AND log_id=$2`, userID, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrLogNotFound
		}
		return insertOutbox(ctx, tx, outboxRecord{
			userID:      userID,
			aggregateID: id,
			kind:        kind,
			eventType:   events.TypePhotoDetached,
			payload:     detached,
		})
	})
}

type outboxRecord struct {
	userID      string
	aggregateID string
	kind        domain.Kind
	eventType   string
	payload     any
}

func insertOutbox(ctx context.Context, tx pgx.Tx, rec outboxRecord) error {
	body, err := json.Marshal(rec.payload)
	if err != nil {
		return err
	}

	meta, ok := EventCatalog[rec.eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", rec.eventType)
	}

	const stmt = `INSERT INTO outbox (user_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, stmt,
		rec.userID,
		string(rec.kind),
		rec.aggregateID,
		rec.eventType,
		meta.Topic,
		meta.SchemaSubject,
		meta.PartitionKeyFn(rec.userID, rec.aggregateID),
		body,
		fmt.Sprintf("%s:%s:%s", rec.kind, rec.aggregateID, rec.eventType),
	)
	return err
}

func pageQuery(base, userID string, cursor *domain.Cursor, limit int) (string, []any) {
	args := []any{userID, limit}
	query := base
	if cursor != nil {
		query += ` AND (created_at, log_id) < ($3, $4)`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}
	query += ` ORDER BY created_at DESC, log_id DESC LIMIT $2`
	return query, args
}

func tableFor(kind domain.Kind) (string, error) {
	switch kind {
	case domain.KindExercise:
		return "exercise_logs", nil
	case domain.KindMeal:
		return "meal_logs", nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrInvalidKind, kind)
}

func scanExercise(row pgx.Row) (domain.ExerciseLog, error) {
	var e domain.ExerciseLog
	err := row.Scan(&e.ID, &e.UserID, &e.ExerciseType, &e.LoggedAt, &e.DurationMin, &e.CaloriesBurned, &e.Notes, &e.HasPhoto, &e.PhotoURL, &e.RecordWorkout, &e.RecordQuantity, &e.CreatedAt)
	return e, err
}

func scanMeal(row pgx.Row) (domain.MealLog, error) {
	var m domain.MealLog
	err := row.Scan(&m.ID, &m.UserID, &m.Description, &m.LoggedAt, &m.Calories, &m.Carbs, &m.Fat, &m.Protein, &m.HasPhoto, &m.PhotoURL, &m.CreatedAt)
	return m, err
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	SchemaSubject  string
	PartitionKeyFn func(userID, logID string) string
}

// EventCatalog routes each event type to its topic. Events that feed the
// profile projection are keyed by user so they stay ordered per user.
var EventCatalog = map[string]EventMetadata{
	events.TypeLogCreated: {
		Topic:          "log_events",
		SchemaSubject:  "log_events-log.created-value",
		PartitionKeyFn: byUser,
	},
	events.TypeLogDeleted: {
		Topic:          "log_events",
		SchemaSubject:  "log_events-log.deleted-value",
		PartitionKeyFn: byUser,
	},
	events.TypePhotoDetached: {
		Topic:         "log_photo_events",
		SchemaSubject: "log_photo_events-value",
		PartitionKeyFn: func(_, logID string) string {
			return logID
		},
	},
}

func byUser(userID, _ string) string {
	return userID
}
