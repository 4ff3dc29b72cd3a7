package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizengine/internal/config"
	"github.com/stemsi/quizengine/internal/model"
)

// DraftWriter makes autosaved answers durable.
type DraftWriter interface {
	Upsert(ctx context.Context, draft *model.DraftAnswer) error
}

// AnswerWorker consumes persist_answers_queue and UPSERTs answers to PostgreSQL.
type AnswerWorker struct {
	rdb        *redis.Client
	drafts     DraftWriter
	retryDelay time.Duration
	log        zerolog.Logger
}

// NewAnswerWorker creates a new AnswerWorker.
func NewAnswerWorker(rdb *redis.Client, drafts DraftWriter, log zerolog.Logger) *AnswerWorker {
	return &AnswerWorker{
		rdb:        rdb,
		drafts:     drafts,
		retryDelay: 5 * time.Second,
		log:        log.With().Str("component", "answer_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *AnswerWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AnswerWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PersistAnswersQueue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	if err := w.handle(ctx, result[1]); err != nil {
		w.log.Error().Err(err).Msg("Persist error, retrying")
		// Push back to queue for retry.
		w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, result[1])
		select {
		case <-ctx.Done():
		case <-time.After(w.retryDelay):
		}
	}
}

// handle persists one queued draft. Undecodable payloads are logged and
// dropped; the returned error means the payload should be retried.
func (w *AnswerWorker) handle(ctx context.Context, raw string) error {
	var draft model.DraftAnswer
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error, dropping payload")
		return nil
	}

	if err := w.drafts.Upsert(ctx, &draft); err != nil {
		w.log.Error().Err(err).
			Str("attempt_id", draft.AttemptID.String()).
			Str("question_id", draft.QuestionID.String()).
			Msg("Upsert draft answer failed")
		return err
	}
	return nil
}

// drain processes all remaining items in the queue before shutdown.
func (w *AnswerWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.PersistAnswersQueue).Result()
		if err != nil {
			break
		}

		if err := w.handle(ctx, result); err != nil {
			w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
