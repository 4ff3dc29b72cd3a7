// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	QuestionsRendered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_questions_rendered_total",
			Help: "Questions rendered for presentation, by type",
		},
		[]string{"type"},
	)

	AnswersGraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_answers_graded_total",
			Help: "Graded answers, by question type and feedback status",
		},
		[]string{"type", "status"},
	)

	EngineErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_engine_errors_total",
			Help: "Authoring, render and grade failures reported by the engine",
		},
		[]string{"stage"},
	)

	GradingJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_grading_jobs_total",
			Help: "Queued grading jobs processed by the worker, by outcome",
		},
		[]string{"outcome"},
	)

	GradingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quiz_attempt_grading_duration_seconds",
			Help:    "Time spent grading one attempt",
			Buckets: prometheus.DefBuckets,
		},
	)

	FeedbackStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quiz_feedback_streams",
			Help: "Open WebSocket feedback streams",
		},
	)

	ParameterMapsPurged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_parameter_maps_purged_total",
			Help: "Durable parameter maps removed by the retention job",
		},
	)
)

var initOnce sync.Once

// Init registers every collector with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			QuestionsRendered,
			AnswersGraded,
			EngineErrors,
			GradingJobs,
			GradingDuration,
			FeedbackStreams,
			ParameterMapsPurged,
		)
	})
}

// Handler exposes the default registry.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
