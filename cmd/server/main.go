package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/stemsi/quizengine/internal/config"
	"github.com/stemsi/quizengine/internal/database"
	"github.com/stemsi/quizengine/internal/engine/processing"
	"github.com/stemsi/quizengine/internal/engine/template"
	"github.com/stemsi/quizengine/internal/handler"
	"github.com/stemsi/quizengine/internal/logger"
	"github.com/stemsi/quizengine/internal/metrics"
	"github.com/stemsi/quizengine/internal/middleware"
	"github.com/stemsi/quizengine/internal/repository"
	"github.com/stemsi/quizengine/internal/router"
	"github.com/stemsi/quizengine/internal/service"
	"github.com/stemsi/quizengine/internal/validator"
	"github.com/stemsi/quizengine/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting quiz engine")
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// ─── Initialize Validator & Metrics ────────────────────────────────
	validator.Setup()
	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	questionRepo := repository.NewQuestionRepository(pool, rdb, log)
	attemptRepo := repository.NewAttemptRepository(pool)
	mapRepo := repository.NewParameterMapRepository(pool, rdb, cfg.ParameterMapTTL, log)
	answerRepo := repository.NewAnswerRepository(pool, rdb)
	resultRepo := repository.NewGradingResultRepository(pool, rdb)
	tokenRepo := repository.NewTokenRepository(rdb)
	gradingQueue := repository.NewGradingQueue(rdb)

	// ─── Initialize Engine & Services ──────────────────────────────────
	proc := processing.New(
		processing.WithTemplateEngine(template.New(template.WithMaxExpressionLength(cfg.MaxExpressionLength))),
		processing.WithLogger(log),
	)

	authService := service.NewAuthService(cfg, tokenRepo)
	questionService := service.NewQuestionService(questionRepo, proc, log)
	attemptService := service.NewAttemptService(
		questionRepo, attemptRepo, mapRepo, answerRepo, resultRepo, gradingQueue,
		authService, proc, cfg.SeedSalt, log,
	)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:     handler.NewAuthHandler(authService, log),
		Question: handler.NewQuestionHandler(questionService, log),
		Attempt:  handler.NewAttemptHandler(attemptService, log),
		WS:       handler.NewWSHandler(rdb, attemptService, log, cfg.AllowedOrigins),
		System: handler.NewSystemHandler(rdb, map[string]handler.HealthCheck{
			"postgres": pool.Ping,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	answerWorker := worker.NewAnswerWorker(rdb, answerRepo, log)
	workers.Add(1)
	go func() {
		defer workers.Done()
		answerWorker.Start(workerCtx)
	}()

	if cfg.GradeWorkerEnabled {
		gradingWorker := worker.NewGradingWorker(rdb, attemptService, resultRepo, gradingQueue, answerRepo, log)
		workers.Add(1)
		go func() {
			defer workers.Done()
			gradingWorker.Start(workerCtx)
		}()
	}

	purge, err := worker.NewPurgeJob(attemptService, cfg.ParameterMapRetention, log).Schedule(cfg.PurgeCron)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule parameter map purge")
	}

	limiterDone := make(chan struct{})
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)
	limiter.StartCleanup(limiterDone)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, limiter, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the scheduler and let a running purge finish.
	<-purge.Stop().Done()
	close(limiterDone)

	// 3. Stop background workers and wait for queues to drain.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Server stopped")
}
