package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizengine/internal/config"
	"github.com/stemsi/quizengine/internal/engine/processing"
	"github.com/stemsi/quizengine/internal/metrics"
	"github.com/stemsi/quizengine/internal/model"
	"github.com/stemsi/quizengine/internal/service"
)

const (
	GradeBatchSize    = 50
	GradeBatchTimeout = 2 * time.Second
	GradePollTimeout  = 1 * time.Second
	// GradeMaxRetries is how often a job is requeued before it is buried.
	GradeMaxRetries = 5
)

// Grading job outcomes, used as metric labels.
const (
	outcomeGraded   = "graded"
	outcomeRetried  = "retried"
	outcomeRejected = "rejected"
	outcomeDead     = "dead"
)

// Evaluator grades an attempt without storing the result.
type Evaluator interface {
	Evaluate(ctx context.Context, attemptID uuid.UUID, answers []model.QuestionAnswer) (*model.GradingResult, *model.AttemptRecord, error)
}

// ResultWriter persists grading results.
type ResultWriter interface {
	Save(ctx context.Context, res *model.GradingResult) error
	SaveBatch(ctx context.Context, results []*model.GradingResult) error
}

// JobQueue requeues or buries jobs and announces finished results.
type JobQueue interface {
	Enqueue(ctx context.Context, job *model.GradingJob) error
	Bury(ctx context.Context, job *model.GradingJob) error
	Publish(ctx context.Context, res *model.GradingResult) error
}

// DraftCleaner removes autosaved answers of graded attempts.
type DraftCleaner interface {
	ClearDrafts(ctx context.Context, attemptIDs []uuid.UUID) error
}

// GradingWorker consumes grade_attempts_queue in batches, grades each
// attempt, and bulk-upserts the results.
type GradingWorker struct {
	rdb     *redis.Client
	eval    Evaluator
	results ResultWriter
	queue   JobQueue
	drafts  DraftCleaner
	log     zerolog.Logger
}

// NewGradingWorker creates a new GradingWorker.
func NewGradingWorker(rdb *redis.Client, eval Evaluator, results ResultWriter, queue JobQueue, drafts DraftCleaner, log zerolog.Logger) *GradingWorker {
	return &GradingWorker{
		rdb:     rdb,
		eval:    eval,
		results: results,
		queue:   queue,
		drafts:  drafts,
		log:     log.With().Str("component", "grading_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

// Start runs until ctx is cancelled. Call in a goroutine.
func (w *GradingWorker) Start(ctx context.Context) {
	w.log.Info().Msg("GradingWorker started")

	batch := make([]*model.GradingJob, 0, GradeBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= GradeBatchSize || time.Since(lastFlush) >= GradeBatchTimeout) {

			w.Process(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			w.Process(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, GradePollTimeout, config.WorkerKey.GradeAttemptsQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var job model.GradingJob
			if err := json.Unmarshal([]byte(item[1]), &job); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &job)
		}
	}
}

// ----------------------------------------------------------------
// Batch processing
// ----------------------------------------------------------------

// Process grades a batch of jobs and stores the results. Jobs that fail for
// transient reasons are requeued; jobs that can never succeed are buried.
func (w *GradingWorker) Process(ctx context.Context, batch []*model.GradingJob) {
	if len(batch) == 0 {
		return
	}

	graded := make([]*model.GradingResult, 0, len(batch))
	jobs := make([]*model.GradingJob, 0, len(batch))
	for _, job := range batch {
		res, _, err := w.eval.Evaluate(ctx, job.AttemptID, job.Answers)
		if err != nil {
			w.fail(ctx, job, err)
			continue
		}
		graded = append(graded, res)
		jobs = append(jobs, job)
	}
	if len(graded) == 0 {
		return
	}

	saved := graded
	if err := w.results.SaveBatch(ctx, graded); err != nil {
		w.log.Warn().Err(err).Int("count", len(graded)).Msg("bulk result upsert failed, using fallback")

		saved = saved[:0:0]
		for i, res := range graded {
			if err := w.results.Save(ctx, res); err != nil {
				w.retry(ctx, jobs[i], err)
				continue
			}
			saved = append(saved, res)
		}
	}

	w.announce(ctx, saved)
}

// announce publishes stored results and clears the attempts' drafts.
func (w *GradingWorker) announce(ctx context.Context, saved []*model.GradingResult) {
	if len(saved) == 0 {
		return
	}

	ids := make([]uuid.UUID, 0, len(saved))
	for _, res := range saved {
		ids = append(ids, res.AttemptID)
		if err := w.queue.Publish(ctx, res); err != nil {
			w.log.Warn().Err(err).Str("attempt_id", res.AttemptID.String()).Msg("Publish result failed")
		}
		metrics.GradingJobs.WithLabelValues(outcomeGraded).Inc()
	}

	if err := w.drafts.ClearDrafts(ctx, ids); err != nil {
		w.log.Warn().Err(err).Msg("Clear draft answers failed")
	}
	w.log.Info().Int("count", len(saved)).Msg("Attempts graded")
}

func (w *GradingWorker) fail(ctx context.Context, job *model.GradingJob, err error) {
	if !isPermanent(err) {
		w.retry(ctx, job, err)
		return
	}

	w.log.Warn().Err(err).Str("attempt_id", job.AttemptID.String()).Msg("Grading job rejected")
	metrics.GradingJobs.WithLabelValues(outcomeRejected).Inc()
	w.bury(ctx, job)
}

func (w *GradingWorker) retry(ctx context.Context, job *model.GradingJob, cause error) {
	job.Retries++
	if job.Retries > GradeMaxRetries {
		w.log.Error().Err(cause).Str("attempt_id", job.AttemptID.String()).Int("retries", job.Retries).
			Msg("Grading job exhausted retries")
		metrics.GradingJobs.WithLabelValues(outcomeDead).Inc()
		w.bury(ctx, job)
		return
	}

	w.log.Error().Err(cause).Str("attempt_id", job.AttemptID.String()).Int("retries", job.Retries).
		Msg("Grading failed, requeueing")
	metrics.GradingJobs.WithLabelValues(outcomeRetried).Inc()
	if err := w.queue.Enqueue(ctx, job); err != nil {
		w.log.Error().Err(err).Str("attempt_id", job.AttemptID.String()).Msg("Requeue failed")
	}
}

func (w *GradingWorker) bury(ctx context.Context, job *model.GradingJob) {
	if err := w.queue.Bury(ctx, job); err != nil {
		w.log.Error().Err(err).Str("attempt_id", job.AttemptID.String()).Msg("Bury failed")
	}
}

// isPermanent reports whether retrying the job can never succeed.
func isPermanent(err error) bool {
	var (
		malformed  *processing.MalformedAnswerError
		gradeErr   *processing.GradeError
		notInQuiz  *service.QuestionNotInAttemptError
		missingQns *service.MissingQuestionsError
	)
	switch {
	case errors.Is(err, service.ErrAttemptNotFound),
		errors.Is(err, service.ErrNoAnswers),
		errors.As(err, &malformed),
		errors.As(err, &gradeErr),
		errors.As(err, &notInQuiz),
		errors.As(err, &missingQns):
		return true
	}
	return false
}
