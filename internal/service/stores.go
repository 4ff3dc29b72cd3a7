package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/quizengine/internal/model"
)

// QuestionStore is the raw question store.
type QuestionStore interface {
	Create(ctx context.Context, q *model.Question) error
	Update(ctx context.Context, q *model.Question) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.Question, error)
	List(ctx context.Context, page, perPage int, qType model.QuestionType) ([]model.Question, int, error)
}

// AttemptStore persists attempts.
type AttemptStore interface {
	Create(ctx context.Context, a *model.AttemptRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.AttemptRecord, error)
}

// ParameterMapStore keeps the map every question of an attempt was rendered with.
type ParameterMapStore interface {
	SaveAll(ctx context.Context, records []model.ParameterMapRecord) error
	GetForAttempt(ctx context.Context, attemptID uuid.UUID, questionIDs []uuid.UUID) (map[uuid.UUID]model.ParameterMap, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AnswerStore holds autosaved draft answers.
type AnswerStore interface {
	SaveDraft(ctx context.Context, draft model.DraftAnswer) error
	Drafts(ctx context.Context, attemptID uuid.UUID) ([]model.QuestionAnswer, error)
}

// GradingResultStore keeps the latest result per attempt.
type GradingResultStore interface {
	Save(ctx context.Context, res *model.GradingResult) error
	GetByAttempt(ctx context.Context, attemptID uuid.UUID) (*model.GradingResult, error)
}

// GradingQueue hands attempts to the asynchronous grading worker.
type GradingQueue interface {
	Enqueue(ctx context.Context, job *model.GradingJob) error
}
