package model

import (
	"time"

	"github.com/google/uuid"
)

// LotOrderAnswer is one submitted position for an ORDER_THE_LOTS question.
type LotOrderAnswer struct {
	LotItemID string `json:"lot_item_id"`
	Order     int    `json:"order"`
}

// Answer is a submitted answer. Exactly one field must be set, and it must
// match the variant of the question being graded.
type Answer struct {
	LotItemID  string           `json:"lot_item_id,omitempty"`  // SELECT_ONE_IN_LOT
	LotItemIDs []string         `json:"lot_item_ids,omitempty"` // SELECT_MANY_IN_LOT
	Orders     []LotOrderAnswer `json:"orders,omitempty"`       // ORDER_THE_LOTS
	Value      *float64         `json:"value,omitempty"`        // NUMERIC_ANSWER_TYPE
	AnswerText *string          `json:"answer_text,omitempty"`  // DESCRIPTIVE
}

// Shape returns the variant this answer's populated field belongs to. ok is
// false when no field or more than one field is set.
func (a Answer) Shape() (t QuestionType, ok bool) {
	n := 0
	if a.LotItemID != "" {
		t, n = QuestionTypeSelectOneInLot, n+1
	}
	if a.LotItemIDs != nil {
		t, n = QuestionTypeSelectManyInLot, n+1
	}
	if a.Orders != nil {
		t, n = QuestionTypeOrderTheLots, n+1
	}
	if a.Value != nil {
		t, n = QuestionTypeNumericAnswer, n+1
	}
	if a.AnswerText != nil {
		t, n = QuestionTypeDescriptive, n+1
	}
	if n != 1 {
		return "", false
	}
	return t, true
}

// FeedbackStatus is the outcome of grading one answer.
type FeedbackStatus string

const (
	FeedbackCorrect   FeedbackStatus = "CORRECT"
	FeedbackPartial   FeedbackStatus = "PARTIAL"
	FeedbackIncorrect FeedbackStatus = "INCORRECT"
	// FeedbackPending marks answers that need manual review.
	FeedbackPending FeedbackStatus = "PENDING"
)

// Feedback is the graded result of one answer.
type Feedback struct {
	QuestionID   uuid.UUID      `json:"question_id"`
	Status       FeedbackStatus `json:"status"`
	Score        float64        `json:"score"`
	FeedbackText string         `json:"answer_feedback,omitempty"`
}

// QuizSettings are the quiz level policies supplied by the caller.
type QuizSettings struct {
	AllowPartialGrading               bool    `json:"allow_partial_grading"`
	PassThreshold                     float64 `json:"pass_threshold" binding:"gte=0,lte=1"`
	QuestionVisibility                int     `json:"question_visibility" binding:"gte=0"`
	ShowScoreAfterSubmission          bool    `json:"show_score_after_submission"`
	ShowCorrectAnswersAfterSubmission bool    `json:"show_correct_answers_after_submission"`
	ShowExplanationAfterSubmission    bool    `json:"show_explanation_after_submission"`
}

// GradingStatus is the overall outcome of an attempt.
type GradingStatus string

const (
	GradingPassed  GradingStatus = "PASSED"
	GradingFailed  GradingStatus = "FAILED"
	GradingPending GradingStatus = "PENDING"
)

// GradedBySystem identifies automatic grading in GradingResult.GradedBy.
const GradedBySystem = "system"

// GradingResult aggregates the feedback of every answer in an attempt.
type GradingResult struct {
	AttemptID       uuid.UUID     `json:"attempt_id"`
	TotalScore      float64       `json:"total_score"`
	TotalMaxScore   float64       `json:"total_max_score"`
	OverallFeedback []Feedback    `json:"overall_feedback"`
	GradingStatus   GradingStatus `json:"grading_status"`
	GradedAt        time.Time     `json:"graded_at"`
	GradedBy        string        `json:"graded_by"`
}
