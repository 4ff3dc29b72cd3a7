package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/quizengine/internal/config"
	"github.com/stemsi/quizengine/internal/model"
)

// AnswerRepository holds autosaved draft answers. Writes land in a Redis hash
// and are queued for the answer worker, which makes them durable in Postgres.
type AnswerRepository struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool, rdb *redis.Client) *AnswerRepository {
	return &AnswerRepository{pool: pool, rdb: rdb}
}

// SaveDraft stores the answer in Redis and queues it for persistence.
func (r *AnswerRepository) SaveDraft(ctx context.Context, draft model.DraftAnswer) error {
	answer, err := json.Marshal(draft.Answer)
	if err != nil {
		return fmt.Errorf("encode answer: %w", err)
	}
	payload, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, config.CacheKey.AttemptAnswersKey(draft.AttemptID.String()), draft.QuestionID.String(), answer)
	pipe.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload)
	_, err = pipe.Exec(ctx)
	return err
}

// Drafts returns the latest saved answer per question, reading Redis first
// and Postgres when the hash is gone.
func (r *AnswerRepository) Drafts(ctx context.Context, attemptID uuid.UUID) ([]model.QuestionAnswer, error) {
	fields, err := r.rdb.HGetAll(ctx, config.CacheKey.AttemptAnswersKey(attemptID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("read draft answers: %w", err)
	}
	if len(fields) > 0 {
		answers := make([]model.QuestionAnswer, 0, len(fields))
		for qID, raw := range fields {
			id, err := uuid.Parse(qID)
			if err != nil {
				continue
			}
			var a model.Answer
			if err := json.Unmarshal([]byte(raw), &a); err != nil {
				return nil, fmt.Errorf("decode draft answer %s: %w", qID, err)
			}
			answers = append(answers, model.QuestionAnswer{QuestionID: id, Answer: a})
		}
		return answers, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT question_id, answer FROM attempt_answers WHERE attempt_id = $1`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.QuestionAnswer
	for rows.Next() {
		var (
			qa  model.QuestionAnswer
			doc []byte
		)
		if err := rows.Scan(&qa.QuestionID, &doc); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(doc, &qa.Answer); err != nil {
			return nil, fmt.Errorf("decode draft answer %s: %w", qa.QuestionID, err)
		}
		answers = append(answers, qa)
	}
	return answers, rows.Err()
}

// Upsert makes one draft answer durable.
func (r *AnswerRepository) Upsert(ctx context.Context, draft *model.DraftAnswer) error {
	answer, err := json.Marshal(draft.Answer)
	if err != nil {
		return fmt.Errorf("encode answer: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO attempt_answers (attempt_id, question_id, answer)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (attempt_id, question_id) DO UPDATE
		 SET answer = EXCLUDED.answer, updated_at = NOW()`,
		draft.AttemptID, draft.QuestionID, answer,
	)
	return err
}

// ClearDrafts drops the Redis hashes of graded attempts.
func (r *AnswerRepository) ClearDrafts(ctx context.Context, attemptIDs []uuid.UUID) error {
	pipe := r.rdb.Pipeline()
	for _, id := range attemptIDs {
		pipe.Del(ctx, config.CacheKey.AttemptAnswersKey(id.String()))
	}
	_, err := pipe.Exec(ctx)
	return err
}
