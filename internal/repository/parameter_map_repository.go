package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizengine/internal/config"
	"github.com/stemsi/quizengine/internal/model"
)

// ParameterMapRepository keeps the map each question of an attempt was
// rendered with. Postgres is the source of truth; Redis holds a copy for the
// grading hot path and is refilled from Postgres on a miss.
type ParameterMapRepository struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	ttl  time.Duration
	log  zerolog.Logger
}

// NewParameterMapRepository creates a new ParameterMapRepository.
func NewParameterMapRepository(pool *pgxpool.Pool, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *ParameterMapRepository {
	return &ParameterMapRepository{
		pool: pool,
		rdb:  rdb,
		ttl:  ttl,
		log:  log.With().Str("component", "parameter_map_repository").Logger(),
	}
}

// SaveAll persists the maps of one attempt in a single statement and then
// warms the cache.
func (r *ParameterMapRepository) SaveAll(ctx context.Context, records []model.ParameterMapRecord) error {
	if len(records) == 0 {
		return nil
	}

	n := len(records)
	attemptIDs := make([]uuid.UUID, 0, n)
	questionIDs := make([]uuid.UUID, 0, n)
	docs := make([]string, 0, n)
	for _, rec := range records {
		doc, err := json.Marshal(rec.ParameterMap)
		if err != nil {
			return fmt.Errorf("encode parameter map: %w", err)
		}
		attemptIDs = append(attemptIDs, rec.AttemptID)
		questionIDs = append(questionIDs, rec.QuestionID)
		docs = append(docs, string(doc))
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO parameter_maps (attempt_id, question_id, parameter_map)
		 SELECT u.attempt_id, u.question_id, u.parameter_map::jsonb
		 FROM UNNEST($1::uuid[], $2::uuid[], $3::text[]) AS u (attempt_id, question_id, parameter_map)
		 ON CONFLICT (attempt_id, question_id) DO NOTHING`,
		attemptIDs, questionIDs, docs,
	)
	if err != nil {
		return err
	}

	pipe := r.rdb.Pipeline()
	for i, rec := range records {
		pipe.Set(ctx, config.CacheKey.ParameterMapKey(rec.AttemptID.String(), rec.QuestionID.String()), docs[i], r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.Warn().Err(err).Msg("Parameter map cache warmup failed")
	}
	return nil
}

// GetForAttempt returns the stored maps for the given questions of an
// attempt. Questions without a stored map are absent from the result.
func (r *ParameterMapRepository) GetForAttempt(ctx context.Context, attemptID uuid.UUID, questionIDs []uuid.UUID) (map[uuid.UUID]model.ParameterMap, error) {
	out := make(map[uuid.UUID]model.ParameterMap, len(questionIDs))
	if len(questionIDs) == 0 {
		return out, nil
	}

	pipe := r.rdb.Pipeline()
	cmds := make([]*redis.StringCmd, len(questionIDs))
	for i, qID := range questionIDs {
		cmds[i] = pipe.Get(ctx, config.CacheKey.ParameterMapKey(attemptID.String(), qID.String()))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		r.log.Warn().Err(err).Msg("Parameter map cache read failed")
	}

	missing := make([]uuid.UUID, 0)
	for i, cmd := range cmds {
		raw, err := cmd.Bytes()
		if err != nil {
			missing = append(missing, questionIDs[i])
			continue
		}
		var pm model.ParameterMap
		if err := json.Unmarshal(raw, &pm); err != nil {
			missing = append(missing, questionIDs[i])
			continue
		}
		out[questionIDs[i]] = pm
	}
	if len(missing) == 0 {
		return out, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT question_id, parameter_map FROM parameter_maps
		 WHERE attempt_id = $1 AND question_id = ANY($2)`, attemptID, missing,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refill := r.rdb.Pipeline()
	for rows.Next() {
		var (
			qID uuid.UUID
			doc []byte
		)
		if err := rows.Scan(&qID, &doc); err != nil {
			return nil, err
		}
		var pm model.ParameterMap
		if err := json.Unmarshal(doc, &pm); err != nil {
			return nil, fmt.Errorf("decode parameter map %s/%s: %w", attemptID, qID, err)
		}
		out[qID] = pm
		refill.Set(ctx, config.CacheKey.ParameterMapKey(attemptID.String(), qID.String()), doc, r.ttl)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if refill.Len() > 0 {
		if _, err := refill.Exec(ctx); err != nil {
			r.log.Warn().Err(err).Msg("Parameter map cache refill failed")
		}
	}
	return out, nil
}

// Get returns the map one question of an attempt was rendered with.
func (r *ParameterMapRepository) Get(ctx context.Context, attemptID, questionID uuid.UUID) (model.ParameterMap, error) {
	maps, err := r.GetForAttempt(ctx, attemptID, []uuid.UUID{questionID})
	if err != nil {
		return nil, err
	}
	pm, ok := maps[questionID]
	if !ok {
		return nil, ErrNotFound
	}
	return pm, nil
}

// PurgeOlderThan deletes durable maps created before cutoff and reports how
// many rows were removed.
func (r *ParameterMapRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM parameter_maps WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
