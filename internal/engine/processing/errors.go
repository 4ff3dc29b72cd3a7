package processing

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/stemsi/quizengine/internal/model"
)

var (
	// ErrUnknownVariant is wrapped by every error caused by a question type
	// that has no registered implementation.
	ErrUnknownVariant = errors.New("unknown question variant")

	ErrParameterization     = errors.New("is_parameterized must be true exactly when parameters are declared")
	ErrDuplicateParameter   = errors.New("duplicate parameter name")
	ErrMissingTag           = errors.New("parameterized question must have a valid tag in the question text")
	ErrMissingLotItemTag    = errors.New("at least one lot item must contain a valid tag")
	ErrTagsWithoutParameter = errors.New("tags are only allowed in parameterized questions")
	ErrDuplicateLotItem     = errors.New("duplicate lot item id")
	ErrDuplicateOrder       = errors.New("duplicate order position")
	ErrMissingAnswerKey     = errors.New("answer key is missing")
	ErrNoLotItems           = errors.New("question has no lot items")
)

// AuthoringError rejects a question document at create or update time.
type AuthoringError struct {
	QuestionID uuid.UUID
	Field      string
	Err        error
}

func (e *AuthoringError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid question %s: %v", e.QuestionID, e.Err)
	}
	return fmt.Sprintf("invalid question %s: %s: %v", e.QuestionID, e.Field, e.Err)
}

func (e *AuthoringError) Unwrap() error { return e.Err }

// RenderError reports a failure to produce a student view.
type RenderError struct {
	QuestionID uuid.UUID
	Field      string
	Err        error
}

func (e *RenderError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("render question %s: %v", e.QuestionID, e.Err)
	}
	return fmt.Sprintf("render question %s: %s: %v", e.QuestionID, e.Field, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// GradeError reports that an answer could not be graded. It is never a
// graded outcome: callers must not record it as an incorrect answer.
type GradeError struct {
	QuestionID uuid.UUID
	Err        error
}

func (e *GradeError) Error() string {
	return fmt.Sprintf("grade question %s: %v", e.QuestionID, e.Err)
}

func (e *GradeError) Unwrap() error { return e.Err }

// MalformedAnswerError reports an answer whose shape does not match the
// question variant.
type MalformedAnswerError struct {
	QuestionID uuid.UUID
	Expected   model.QuestionType
	Got        model.QuestionType
}

func (e *MalformedAnswerError) Error() string {
	if e.Got == "" {
		return fmt.Sprintf("malformed answer for question %s: expected exactly one %s answer field", e.QuestionID, e.Expected)
	}
	return fmt.Sprintf("malformed answer for question %s: expected %s answer, got %s answer", e.QuestionID, e.Expected, e.Got)
}
