package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/quizengine/internal/model"
)

// AttemptRepository handles attempt data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Create inserts a new attempt.
func (r *AttemptRepository) Create(ctx context.Context, a *model.AttemptRecord) error {
	settings, err := json.Marshal(a.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO attempts (id, quiz_id, user_id, question_ids, settings, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.QuizID, a.UserID, a.QuestionIDs, settings, a.StartedAt,
	)
	return err
}

// GetByID retrieves an attempt by its ID.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.AttemptRecord, error) {
	a := &model.AttemptRecord{}
	var settings []byte
	err := r.pool.QueryRow(ctx,
		`SELECT id, quiz_id, user_id, question_ids, settings, started_at
		 FROM attempts WHERE id = $1`, id,
	).Scan(&a.ID, &a.QuizID, &a.UserID, &a.QuestionIDs, &settings, &a.StartedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(settings, &a.Settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return a, nil
}
