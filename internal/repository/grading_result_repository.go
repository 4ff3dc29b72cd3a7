package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/quizengine/internal/config"
	"github.com/stemsi/quizengine/internal/model"
)

const gradingResultTTL = time.Hour

// GradingResultRepository stores the latest grading result per attempt.
type GradingResultRepository struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
}

// NewGradingResultRepository creates a new GradingResultRepository.
func NewGradingResultRepository(pool *pgxpool.Pool, rdb *redis.Client) *GradingResultRepository {
	return &GradingResultRepository{pool: pool, rdb: rdb}
}

// Save upserts one result.
func (r *GradingResultRepository) Save(ctx context.Context, res *model.GradingResult) error {
	return r.SaveBatch(ctx, []*model.GradingResult{res})
}

// SaveBatch upserts many results in one statement using UNNEST.
func (r *GradingResultRepository) SaveBatch(ctx context.Context, results []*model.GradingResult) error {
	if len(results) == 0 {
		return nil
	}

	n := len(results)
	attemptIDs := make([]uuid.UUID, 0, n)
	totals := make([]float64, 0, n)
	maxes := make([]float64, 0, n)
	statuses := make([]string, 0, n)
	feedbacks := make([]string, 0, n)
	gradedAts := make([]time.Time, 0, n)
	gradedBys := make([]string, 0, n)

	for _, res := range results {
		fb, err := json.Marshal(res.OverallFeedback)
		if err != nil {
			return fmt.Errorf("encode feedback: %w", err)
		}
		attemptIDs = append(attemptIDs, res.AttemptID)
		totals = append(totals, res.TotalScore)
		maxes = append(maxes, res.TotalMaxScore)
		statuses = append(statuses, string(res.GradingStatus))
		feedbacks = append(feedbacks, string(fb))
		gradedAts = append(gradedAts, res.GradedAt)
		gradedBys = append(gradedBys, res.GradedBy)
	}

	query := `
		INSERT INTO grading_results
			(attempt_id, total_score, total_max_score, grading_status, overall_feedback, graded_at, graded_by)
		SELECT u.attempt_id, u.total_score, u.total_max_score, u.grading_status,
		       u.overall_feedback::jsonb, u.graded_at, u.graded_by
		FROM UNNEST(
			$1::uuid[],
			$2::float8[],
			$3::float8[],
			$4::text[],
			$5::text[],
			$6::timestamptz[],
			$7::text[]
		) AS u (attempt_id, total_score, total_max_score, grading_status, overall_feedback, graded_at, graded_by)
		ON CONFLICT (attempt_id) DO UPDATE
		SET total_score      = EXCLUDED.total_score,
		    total_max_score  = EXCLUDED.total_max_score,
		    grading_status   = EXCLUDED.grading_status,
		    overall_feedback = EXCLUDED.overall_feedback,
		    graded_at        = EXCLUDED.graded_at,
		    graded_by        = EXCLUDED.graded_by
	`
	if _, err := r.pool.Exec(ctx, query, attemptIDs, totals, maxes, statuses, feedbacks, gradedAts, gradedBys); err != nil {
		return err
	}

	pipe := r.rdb.Pipeline()
	for _, id := range attemptIDs {
		pipe.Del(ctx, config.CacheKey.GradingResultKey(id.String()))
	}
	_, _ = pipe.Exec(ctx)
	return nil
}

// GetByAttempt returns the stored result of an attempt.
func (r *GradingResultRepository) GetByAttempt(ctx context.Context, attemptID uuid.UUID) (*model.GradingResult, error) {
	key := config.CacheKey.GradingResultKey(attemptID.String())
	if cached, err := r.rdb.Get(ctx, key).Bytes(); err == nil {
		var res model.GradingResult
		if json.Unmarshal(cached, &res) == nil {
			return &res, nil
		}
	}

	res := &model.GradingResult{AttemptID: attemptID}
	var (
		status   string
		feedback []byte
	)
	err := r.pool.QueryRow(ctx,
		`SELECT total_score, total_max_score, grading_status, overall_feedback, graded_at, graded_by
		 FROM grading_results WHERE attempt_id = $1`, attemptID,
	).Scan(&res.TotalScore, &res.TotalMaxScore, &status, &feedback, &res.GradedAt, &res.GradedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	res.GradingStatus = model.GradingStatus(status)
	if err := json.Unmarshal(feedback, &res.OverallFeedback); err != nil {
		return nil, fmt.Errorf("decode feedback: %w", err)
	}

	if raw, err := json.Marshal(res); err == nil {
		r.rdb.Set(ctx, key, raw, gradingResultTTL)
	}
	return res, nil
}
