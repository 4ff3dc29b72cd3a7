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
	"github.com/rs/zerolog"
	"github.com/stemsi/quizengine/internal/config"
	"github.com/stemsi/quizengine/internal/model"
)

// rawQuestionTTL bounds how long a cached raw question can be served after an
// update on another instance.
const rawQuestionTTL = 10 * time.Minute

// QuestionRepository stores raw question documents as JSONB, with a Redis
// read-through cache in front of single lookups.
type QuestionRepository struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *QuestionRepository {
	return &QuestionRepository{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "question_repository").Logger(),
	}
}

// Create inserts a new question. q.ID must already be assigned.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	doc, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode question: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO questions (id, question_type, is_parameterized, points, document)
		 VALUES ($1, $2, $3, $4, $5)`,
		q.ID, q.Type, q.IsParameterized, q.Points, doc,
	)
	return err
}

// Update replaces the stored document of an existing question.
func (r *QuestionRepository) Update(ctx context.Context, q *model.Question) error {
	doc, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode question: %w", err)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE questions
		 SET question_type = $2, is_parameterized = $3, points = $4, document = $5, updated_at = NOW()
		 WHERE id = $1`,
		q.ID, q.Type, q.IsParameterized, q.Points, doc,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	r.rdb.Del(ctx, config.CacheKey.RawQuestionKey(q.ID.String()))
	return nil
}

// GetByID returns the raw question, serving from cache when possible.
func (r *QuestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	key := config.CacheKey.RawQuestionKey(id.String())
	if cached, err := r.rdb.Get(ctx, key).Bytes(); err == nil {
		var q model.Question
		if err := json.Unmarshal(cached, &q); err == nil {
			return &q, nil
		}
		r.log.Warn().Str("question_id", id.String()).Msg("Dropping undecodable cached question")
	} else if !errors.Is(err, redis.Nil) {
		r.log.Warn().Err(err).Msg("Question cache read failed")
	}

	var doc []byte
	err := r.pool.QueryRow(ctx, `SELECT document FROM questions WHERE id = $1`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var q model.Question
	if err := json.Unmarshal(doc, &q); err != nil {
		return nil, fmt.Errorf("decode question %s: %w", id, err)
	}
	r.rdb.Set(ctx, key, doc, rawQuestionTTL)
	return &q, nil
}

// GetByIDs loads several questions at once. Missing ids are absent from the result.
func (r *QuestionRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.Question, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, document FROM questions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID]*model.Question, len(ids))
	for rows.Next() {
		var (
			id  uuid.UUID
			doc []byte
		)
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, err
		}
		var q model.Question
		if err := json.Unmarshal(doc, &q); err != nil {
			return nil, fmt.Errorf("decode question %s: %w", id, err)
		}
		out[id] = &q
	}
	return out, rows.Err()
}

// List returns a page of questions, newest first, optionally filtered by type.
func (r *QuestionRepository) List(ctx context.Context, page, perPage int, qType model.QuestionType) ([]model.Question, int, error) {
	offset := (page - 1) * perPage

	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM questions WHERE ($1::text = '' OR question_type = $1::text)`, qType,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT document FROM questions
		 WHERE ($1::text = '' OR question_type = $1::text)
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`, qType, perPage, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	questions := make([]model.Question, 0, perPage)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, 0, err
		}
		var q model.Question
		if err := json.Unmarshal(doc, &q); err != nil {
			return nil, 0, fmt.Errorf("decode question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, total, rows.Err()
}
