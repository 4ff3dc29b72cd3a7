package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizengine/internal/model"
	"github.com/stemsi/quizengine/internal/response"
	"github.com/stemsi/quizengine/internal/service"
	"github.com/stemsi/quizengine/internal/validator"
)

// AttemptHandler handles quiz presentation and grading endpoints.
type AttemptHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService, log zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "attempt_handler").Logger(),
	}
}

// StartAttempt godoc
// POST /api/v1/attempts
// Renders the quiz's questions for one student and stores the parameter maps.
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	var req model.StartAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.attemptService.Start(c.Request.Context(), &req)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, res)
}

// SaveAnswer godoc
// PUT /api/v1/attempts/:attempt_id/answers
// Autosaves one answer. Saved answers are graded when a grade or submit
// request carries no answers.
func (h *AttemptHandler) SaveAnswer(c *gin.Context) {
	attemptID, ok := parseAttemptID(c)
	if !ok {
		return
	}

	var req model.SaveAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.attemptService.SaveAnswer(c.Request.Context(), attemptID, &req); err != nil {
		failWithError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"saved": true})
}

// GradeAttempt godoc
// POST /api/v1/attempts/:attempt_id/grade
// Grades synchronously and returns the result filtered by the quiz's
// visibility settings.
func (h *AttemptHandler) GradeAttempt(c *gin.Context) {
	attemptID, ok := parseAttemptID(c)
	if !ok {
		return
	}

	var req model.GradeAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, err := h.attemptService.Grade(c.Request.Context(), attemptID, req.Answers)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": view})
}

// SubmitAttempt godoc
// POST /api/v1/attempts/:attempt_id/submit
// Queues the attempt for the grading worker. The result arrives on the
// feedback stream and through GetResult.
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	attemptID, ok := parseAttemptID(c)
	if !ok {
		return
	}

	var req model.GradeAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	job, err := h.attemptService.Submit(c.Request.Context(), attemptID, req.Answers)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{
		"attempt_id":  job.AttemptID,
		"enqueued_at": job.EnqueuedAt,
	})
}

// GetResult godoc
// GET /api/v1/attempts/:attempt_id/result
func (h *AttemptHandler) GetResult(c *gin.Context) {
	attemptID, ok := parseAttemptID(c)
	if !ok {
		return
	}

	view, err := h.attemptService.Result(c.Request.Context(), attemptID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": view})
}

func parseAttemptID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
