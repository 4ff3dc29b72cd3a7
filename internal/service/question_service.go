package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizengine/internal/engine/processing"
	"github.com/stemsi/quizengine/internal/metrics"
	"github.com/stemsi/quizengine/internal/model"
	"github.com/stemsi/quizengine/internal/repository"
	"github.com/stemsi/quizengine/internal/response"
)

// ErrQuestionNotFound is returned when a question id matches nothing.
var ErrQuestionNotFound = errors.New("question not found")

// QuestionService handles question authoring and previews.
type QuestionService struct {
	store QuestionStore
	proc  *processing.Processor
	log   zerolog.Logger
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(store QuestionStore, proc *processing.Processor, log zerolog.Logger) *QuestionService {
	return &QuestionService{
		store: store,
		proc:  proc,
		log:   log.With().Str("component", "question_service").Logger(),
	}
}

// Validate checks a question document without storing it. Lot items without
// an id are checked as if ids had been assigned.
func (s *QuestionService) Validate(q model.Question) error {
	q = cloneForIDs(q)
	q.EnsureIDs()
	if err := s.proc.Validate(&q); err != nil {
		metrics.EngineErrors.WithLabelValues("authoring").Inc()
		return err
	}
	return nil
}

// Create assigns ids, validates and stores a new question.
func (s *QuestionService) Create(ctx context.Context, q *model.Question) error {
	q.ID = uuid.Nil
	q.EnsureIDs()
	if err := s.proc.Validate(q); err != nil {
		metrics.EngineErrors.WithLabelValues("authoring").Inc()
		return err
	}
	if err := s.store.Create(ctx, q); err != nil {
		return fmt.Errorf("store question: %w", err)
	}
	s.log.Info().Str("question_id", q.ID.String()).Str("type", string(q.Type)).Msg("Question created")
	return nil
}

// Update validates and replaces an existing question.
func (s *QuestionService) Update(ctx context.Context, id uuid.UUID, q *model.Question) error {
	q.ID = id
	q.EnsureIDs()
	if err := s.proc.Validate(q); err != nil {
		metrics.EngineErrors.WithLabelValues("authoring").Inc()
		return err
	}
	if err := s.store.Update(ctx, q); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrQuestionNotFound
		}
		return fmt.Errorf("update question: %w", err)
	}
	return nil
}

// Get returns the raw question including its solution.
func (s *QuestionService) Get(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	q, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrQuestionNotFound
		}
		return nil, err
	}
	return q, nil
}

// List retrieves questions with pagination, optionally filtered by type.
func (s *QuestionService) List(ctx context.Context, page, perPage int, qType model.QuestionType) ([]model.Question, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	questions, total, err := s.store.List(ctx, page, perPage, qType)
	if err != nil {
		return nil, nil, err
	}
	if questions == nil {
		questions = []model.Question{}
	}
	return questions, response.NewPagination(page, perPage, total), nil
}

// Render previews a stored question with a freshly generated parameter map.
func (s *QuestionService) Render(ctx context.Context, id uuid.UUID) (*model.RenderView, model.ParameterMap, error) {
	q, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	view, pm, err := s.proc.Render(q, nil)
	if err != nil {
		metrics.EngineErrors.WithLabelValues("render").Inc()
		return nil, nil, err
	}
	metrics.QuestionsRendered.WithLabelValues(string(q.Type)).Inc()
	return view, pm, nil
}

// cloneForIDs copies the lot item slices so EnsureIDs cannot write into the
// caller's document.
func cloneForIDs(q model.Question) model.Question {
	if q.Solution.CorrectLotItem != nil {
		item := *q.Solution.CorrectLotItem
		q.Solution.CorrectLotItem = &item
	}
	q.Solution.IncorrectLotItems = append([]model.LotItem(nil), q.Solution.IncorrectLotItems...)
	q.Solution.CorrectLotItems = append([]model.LotItem(nil), q.Solution.CorrectLotItems...)
	q.Solution.Ordering = append([]model.LotOrder(nil), q.Solution.Ordering...)
	return q
}
