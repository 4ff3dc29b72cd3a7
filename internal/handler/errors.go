package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizengine/internal/engine/processing"
	"github.com/stemsi/quizengine/internal/response"
	"github.com/stemsi/quizengine/internal/service"
)

// failWithError maps engine and service errors onto the response envelope.
// Anything unrecognised is logged and reported as an internal error.
func failWithError(c *gin.Context, log zerolog.Logger, err error) {
	status, code, ok := classify(err)
	if !ok {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.FailWithDetail(c, status, code, err.Error())
}

func classify(err error) (int, response.ErrCode, bool) {
	var (
		authoring   *processing.AuthoringError
		render      *processing.RenderError
		grade       *processing.GradeError
		malformed   *processing.MalformedAnswerError
		notInQuiz   *service.QuestionNotInAttemptError
		missingQuiz *service.MissingQuestionsError
	)

	switch {
	case errors.Is(err, processing.ErrUnknownVariant):
		return http.StatusUnprocessableEntity, response.ErrUnknownVariant, true
	case errors.As(err, &authoring):
		return http.StatusUnprocessableEntity, response.ErrAuthoring, true
	case errors.As(err, &malformed):
		return http.StatusUnprocessableEntity, response.ErrMalformedAnswer, true
	case errors.As(err, &render):
		return http.StatusUnprocessableEntity, response.ErrRender, true
	case errors.As(err, &grade):
		return http.StatusUnprocessableEntity, response.ErrGrade, true
	case errors.As(err, &notInQuiz), errors.As(err, &missingQuiz):
		return http.StatusUnprocessableEntity, response.ErrUnknownQuestion, true
	case errors.Is(err, service.ErrNoQuestions):
		return http.StatusUnprocessableEntity, response.ErrNoQuestions, true
	case errors.Is(err, service.ErrNoAnswers):
		return http.StatusBadRequest, response.ErrValidation, true
	case errors.Is(err, service.ErrQuestionNotFound),
		errors.Is(err, service.ErrAttemptNotFound),
		errors.Is(err, service.ErrNotGraded):
		return http.StatusNotFound, response.ErrNotFound, true
	}
	return 0, "", false
}
