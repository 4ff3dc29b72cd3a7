package model

import (
	"time"

	"github.com/google/uuid"
)

// Attempt is the presentation of a quiz's questions to one student.
type Attempt struct {
	ID        uuid.UUID     `json:"id"`
	QuizID    string        `json:"quiz_id"`
	UserID    string        `json:"user_id"`
	Questions []*RenderView `json:"questions"`
	StartedAt time.Time     `json:"started_at"`
}

// AttemptRecord is the stored form of an attempt: which questions were
// presented and under which quiz settings.
type AttemptRecord struct {
	ID          uuid.UUID    `json:"id"`
	QuizID      string       `json:"quiz_id"`
	UserID      string       `json:"user_id"`
	QuestionIDs []uuid.UUID  `json:"question_ids"`
	Settings    QuizSettings `json:"settings"`
	StartedAt   time.Time    `json:"started_at"`
}

// Contains reports whether questionID was presented in the attempt.
func (a *AttemptRecord) Contains(questionID uuid.UUID) bool {
	for _, id := range a.QuestionIDs {
		if id == questionID {
			return true
		}
	}
	return false
}

// QuestionAnswer is a submitted answer for one question of an attempt.
type QuestionAnswer struct {
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
	Answer     Answer    `json:"answer"`
}

// GradingJob is the queue payload for asynchronous attempt grading.
// Retries counts failed grading runs of this job.
type GradingJob struct {
	AttemptID  uuid.UUID        `json:"attempt_id"`
	Answers    []QuestionAnswer `json:"answers"`
	Retries    int              `json:"retries,omitempty"`
	EnqueuedAt time.Time        `json:"enqueued_at"`
}

// DraftAnswer is the queue payload for persisting an autosaved answer.
type DraftAnswer struct {
	AttemptID  uuid.UUID `json:"attempt_id"`
	QuestionID uuid.UUID `json:"question_id"`
	Answer     Answer    `json:"answer"`
}

// ParameterMapRecord is the durable form of a parameter map.
type ParameterMapRecord struct {
	AttemptID    uuid.UUID    `json:"attempt_id"`
	QuestionID   uuid.UUID    `json:"question_id"`
	ParameterMap ParameterMap `json:"parameter_map"`
}

// ─── Requests ────────────────────────────────────────────────────────────────

// StartAttemptRequest is the payload for presenting a quiz's questions.
type StartAttemptRequest struct {
	QuizID      string       `json:"quiz_id" binding:"required,max=128"`
	UserID      string       `json:"user_id" binding:"required,max=128"`
	QuestionIDs []uuid.UUID  `json:"question_ids" binding:"required,min=1,max=500"`
	Settings    QuizSettings `json:"settings"`
}

// GradeAttemptRequest is the payload for grading an attempt's answers. An
// empty list falls back to the attempt's saved draft answers.
type GradeAttemptRequest struct {
	Answers []QuestionAnswer `json:"answers" binding:"omitempty,max=500,dive"`
}

// SaveAnswerRequest is the payload for autosaving one answer.
type SaveAnswerRequest struct {
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
	Answer     Answer    `json:"answer"`
}

// StartAttemptResponse is returned when an attempt starts. StudentToken lets
// the student follow the attempt's feedback stream.
type StartAttemptResponse struct {
	Attempt      *Attempt `json:"attempt"`
	StudentToken string   `json:"student_token"`
}

// GradingResultView is a GradingResult filtered by the quiz's visibility
// settings. Nil fields are hidden from the student.
type GradingResultView struct {
	AttemptID       uuid.UUID      `json:"attempt_id"`
	GradingStatus   GradingStatus  `json:"grading_status,omitempty"`
	TotalScore      *float64       `json:"total_score,omitempty"`
	TotalMaxScore   *float64       `json:"total_max_score,omitempty"`
	OverallFeedback []FeedbackView `json:"overall_feedback,omitempty"`
	GradedAt        time.Time      `json:"graded_at"`
}

// FeedbackView is one feedback entry after visibility filtering.
type FeedbackView struct {
	QuestionID   uuid.UUID      `json:"question_id"`
	Status       FeedbackStatus `json:"status"`
	Score        *float64       `json:"score,omitempty"`
	FeedbackText string         `json:"answer_feedback,omitempty"`
}
