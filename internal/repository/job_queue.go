package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/quizengine/internal/config"
	"github.com/stemsi/quizengine/internal/model"
)

// GradingQueue pushes grading jobs for the grading worker and publishes
// finished results to the attempt's feedback channel.
type GradingQueue struct {
	rdb *redis.Client
}

// NewGradingQueue creates a new GradingQueue.
func NewGradingQueue(rdb *redis.Client) *GradingQueue {
	return &GradingQueue{rdb: rdb}
}

// Enqueue appends a job to the grading queue.
func (q *GradingQueue) Enqueue(ctx context.Context, job *model.GradingJob) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode grading job: %w", err)
	}
	return q.rdb.RPush(ctx, config.WorkerKey.GradeAttemptsQueue, raw).Err()
}

// Publish notifies feedback stream subscribers of an attempt's result.
func (q *GradingQueue) Publish(ctx context.Context, res *model.GradingResult) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode grading result: %w", err)
	}
	return q.rdb.Publish(ctx, config.CacheKey.AttemptFeedbackChannel(res.AttemptID.String()), raw).Err()
}

// Bury moves a job that can no longer be retried to the dead queue.
func (q *GradingQueue) Bury(ctx context.Context, job *model.GradingJob) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode grading job: %w", err)
	}
	return q.rdb.RPush(ctx, config.WorkerKey.GradeAttemptsDeadQueue, raw).Err()
}
