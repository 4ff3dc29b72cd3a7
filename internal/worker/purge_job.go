package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Purger removes durable parameter maps older than a retention window.
type Purger interface {
	PurgeParameterMaps(ctx context.Context, retention time.Duration) (int64, error)
}

// PurgeJob periodically deletes parameter maps past their retention.
type PurgeJob struct {
	purger    Purger
	retention time.Duration
	timeout   time.Duration
	log       zerolog.Logger
}

// NewPurgeJob creates a new PurgeJob.
func NewPurgeJob(purger Purger, retention time.Duration, log zerolog.Logger) *PurgeJob {
	return &PurgeJob{
		purger:    purger,
		retention: retention,
		timeout:   5 * time.Minute,
		log:       log.With().Str("component", "purge_job").Logger(),
	}
}

// Schedule registers the job on a new cron scheduler and starts it. The
// caller stops the returned scheduler on shutdown.
func (j *PurgeJob) Schedule(spec string) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { j.Run(context.Background()) }); err != nil {
		return nil, fmt.Errorf("schedule parameter map purge %q: %w", spec, err)
	}
	c.Start()
	j.log.Info().Str("cron", spec).Dur("retention", j.retention).Msg("Parameter map purge scheduled")
	return c, nil
}

// Run purges once.
func (j *PurgeJob) Run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	n, err := j.purger.PurgeParameterMaps(ctx, j.retention)
	if err != nil {
		j.log.Error().Err(err).Msg("Parameter map purge failed")
		return
	}
	if n > 0 {
		j.log.Info().Int64("count", n).Msg("Purged expired parameter maps")
	}
}
