package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/quizengine/internal/config"
	"github.com/stemsi/quizengine/internal/handler"
	"github.com/stemsi/quizengine/internal/metrics"
	"github.com/stemsi/quizengine/internal/middleware"
	"github.com/stemsi/quizengine/internal/model"
	"github.com/stemsi/quizengine/internal/response"
	"github.com/stemsi/quizengine/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth     *handler.AuthHandler
	Question *handler.QuestionHandler
	Attempt  *handler.AttemptHandler
	WS       *handler.WSHandler
	System   *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	limiter *middleware.RateLimiter,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", response.HeaderRequestID}
	corsConfig.ExposeHeaders = []string{response.HeaderRequestID, "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Metrics())
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.System.Health)
	router.GET("/metrics", metrics.Handler())

	// ─── 1. Service Group (platform JWT + permissions) ─────────────────
	api := router.Group("/api/v1")
	api.Use(
		middleware.RequireServiceJWT(authService),
		middleware.CheckRevocation(authService),
		limiter.Middleware(),
	)
	{
		authGroup := api.Group("/auth")
		{
			authGroup.GET("/me", handlers.Auth.Me)
			authGroup.POST("/logout", handlers.Auth.Logout)
		}

		api.POST("/tokens/revoke", middleware.RequirePermission(model.PermissionTokensRevoke), handlers.Auth.RevokeToken)
		api.GET("/system/status", middleware.RequirePermission(model.PermissionResultsRead), handlers.System.Status)

		questions := api.Group("/questions")
		{
			questions.POST("/validate", middleware.RequirePermission(model.PermissionQuestionsWrite), handlers.Question.ValidateQuestion)
			questions.POST("", middleware.RequirePermission(model.PermissionQuestionsWrite), handlers.Question.CreateQuestion)
			questions.GET("", middleware.RequirePermission(model.PermissionQuestionsRead), handlers.Question.ListQuestions)
			questions.GET("/:id", middleware.RequirePermission(model.PermissionQuestionsRead), handlers.Question.GetQuestion)
			questions.PUT("/:id", middleware.RequirePermission(model.PermissionQuestionsWrite), handlers.Question.UpdateQuestion)
			questions.GET("/:id/render", middleware.RequirePermission(model.PermissionQuestionsRead), middleware.NoStore(), handlers.Question.RenderQuestion)
		}

		attempts := api.Group("/attempts")
		attempts.Use(middleware.NoStore())
		{
			attempts.POST("", middleware.RequirePermission(model.PermissionAttemptsWrite), handlers.Attempt.StartAttempt)
			attempts.PUT("/:attempt_id/answers", middleware.RequirePermission(model.PermissionAttemptsWrite), handlers.Attempt.SaveAnswer)
			attempts.POST("/:attempt_id/grade", middleware.RequirePermission(model.PermissionAttemptsGrade), handlers.Attempt.GradeAttempt)
			attempts.POST("/:attempt_id/submit", middleware.RequirePermission(model.PermissionAttemptsGrade), handlers.Attempt.SubmitAttempt)
			attempts.GET("/:attempt_id/result", middleware.RequirePermission(model.PermissionResultsRead), handlers.Attempt.GetResult)
		}
	}

	// ─── 2. Student Group (student JWT, own attempt only) ──────────────
	studentAPI := router.Group("/api/v1/student/attempts/:attempt_id")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.CheckRevocation(authService),
		middleware.RequireAttemptOwner("attempt_id"),
		limiter.Middleware(),
		middleware.NoStore(),
	)
	{
		studentAPI.PUT("/answers", handlers.Attempt.SaveAnswer)
		studentAPI.POST("/submit", handlers.Attempt.SubmitAttempt)
		studentAPI.GET("/result", handlers.Attempt.GetResult)
	}

	// ─── 3. WebSocket Group (student WS auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireStudentWSAuth(authService),
		middleware.CheckRevocation(authService),
		middleware.RequireAttemptOwner("attempt_id"),
	)
	{
		ws.GET("/attempts/:attempt_id/feedback", handlers.WS.AttemptFeedback)
	}

	return router
}
