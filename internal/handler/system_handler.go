package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizengine/internal/config"
	"github.com/stemsi/quizengine/internal/response"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// SystemHandler serves liveness and runtime status.
type SystemHandler struct {
	rdb       *redis.Client
	checks    map[string]HealthCheck
	startTime time.Time
	log       zerolog.Logger
}

// NewSystemHandler creates a new SystemHandler. checks maps a dependency
// name to its probe.
func NewSystemHandler(rdb *redis.Client, checks map[string]HealthCheck, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		rdb:       rdb,
		checks:    checks,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

// Health godoc
// GET /health
// Returns 503 when any dependency fails its probe.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	deps := make(map[string]string, len(h.checks))
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.log.Warn().Err(err).Str("dependency", name).Msg("Health check failed")
			deps[name] = "down"
			healthy = false
			continue
		}
		deps[name] = "up"
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "dependencies": deps})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "dependencies": deps})
}

type systemStatus struct {
	Uptime     string `json:"uptime"`
	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	NumGC      uint32 `json:"num_gc"`
	GoVersion  string `json:"go_version"`

	// Worker Queues
	QueueGrading     int64 `json:"queue_grading"`
	QueueGradingDead int64 `json:"queue_grading_dead"`
	QueueAnswers     int64 `json:"queue_answers"`
}

// Status godoc
// GET /api/v1/system/status
// Returns runtime figures and worker queue depths.
func (h *SystemHandler) Status(c *gin.Context) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	s := systemStatus{
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  ms.HeapAlloc,
		NumGC:      ms.NumGC,
		GoVersion:  runtime.Version(),
	}

	ctx := c.Request.Context()
	pipe := h.rdb.Pipeline()
	gradingCmd := pipe.LLen(ctx, config.WorkerKey.GradeAttemptsQueue)
	deadCmd := pipe.LLen(ctx, config.WorkerKey.GradeAttemptsDeadQueue)
	answersCmd := pipe.LLen(ctx, config.WorkerKey.PersistAnswersQueue)
	if _, err := pipe.Exec(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Read queue depths failed")
	} else {
		s.QueueGrading, _ = gradingCmd.Result()
		s.QueueGradingDead, _ = deadCmd.Result()
		s.QueueAnswers, _ = answersCmd.Result()
	}

	response.Success(c, http.StatusOK, s)
}
