package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizengine/internal/engine/params"
	"github.com/stemsi/quizengine/internal/engine/processing"
	"github.com/stemsi/quizengine/internal/metrics"
	"github.com/stemsi/quizengine/internal/model"
	"github.com/stemsi/quizengine/internal/repository"
)

// Attempt errors.
var (
	ErrAttemptNotFound = errors.New("attempt not found")
	ErrNotGraded       = errors.New("attempt has not been graded yet")
	ErrNoAnswers       = errors.New("no answers submitted or saved")
	ErrNoQuestions     = errors.New("no questions to present")
)

// NoAnswerFeedback is the feedback text of a presented question left unanswered.
const NoAnswerFeedback = "No answer submitted."

// QuestionNotInAttemptError reports an answer for a question the attempt never presented.
type QuestionNotInAttemptError struct {
	QuestionID uuid.UUID
}

func (e *QuestionNotInAttemptError) Error() string {
	return fmt.Sprintf("question %s is not part of this attempt", e.QuestionID)
}

// MissingQuestionsError lists requested questions that do not exist.
type MissingQuestionsError struct {
	IDs []uuid.UUID
}

func (e *MissingQuestionsError) Error() string {
	return fmt.Sprintf("%d question(s) not found, first %s", len(e.IDs), e.IDs[0])
}

// AttemptService presents questions to students and grades their answers.
type AttemptService struct {
	questions QuestionStore
	attempts  AttemptStore
	maps      ParameterMapStore
	answers   AnswerStore
	results   GradingResultStore
	queue     GradingQueue
	auth      *AuthService
	proc      *processing.Processor
	seedSalt  string
	now       func() time.Time
	log       zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	questions QuestionStore,
	attempts AttemptStore,
	maps ParameterMapStore,
	answers AnswerStore,
	results GradingResultStore,
	queue GradingQueue,
	auth *AuthService,
	proc *processing.Processor,
	seedSalt string,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		questions: questions,
		attempts:  attempts,
		maps:      maps,
		answers:   answers,
		results:   results,
		queue:     queue,
		auth:      auth,
		proc:      proc,
		seedSalt:  seedSalt,
		now:       time.Now,
		log:       log.With().Str("component", "attempt_service").Logger(),
	}
}

// ────────────────────────────────────────────────────────────────────────────
// Presentation
// ────────────────────────────────────────────────────────────────────────────

// Start renders the quiz's questions for one student. When the quiz shows
// fewer questions than it lists, a random subset is drawn. Every parameterized
// question gets its own map, which is stored for grading.
func (s *AttemptService) Start(ctx context.Context, req *model.StartAttemptRequest) (*model.StartAttemptResponse, error) {
	ids := dedupe(req.QuestionIDs)
	if len(ids) == 0 {
		return nil, ErrNoQuestions
	}

	found, err := s.questions.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	var missing []uuid.UUID
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingQuestionsError{IDs: missing}
	}

	attemptID := uuid.New()
	ids = s.selectQuestions(attemptID, ids, req.Settings.QuestionVisibility)

	views := make([]*model.RenderView, 0, len(ids))
	records := make([]model.ParameterMapRecord, 0, len(ids))
	for _, id := range ids {
		q := found[id]
		pm, err := s.parameterMap(attemptID, q)
		if err != nil {
			return nil, &processing.RenderError{QuestionID: q.ID, Field: "parameters", Err: err}
		}
		view, used, err := s.proc.Render(q, pm, processing.WithOrderSeed(s.seedSalt, attemptID.String()))
		if err != nil {
			metrics.EngineErrors.WithLabelValues("render").Inc()
			return nil, err
		}
		metrics.QuestionsRendered.WithLabelValues(string(q.Type)).Inc()
		views = append(views, view)
		if used != nil {
			records = append(records, model.ParameterMapRecord{AttemptID: attemptID, QuestionID: id, ParameterMap: used})
		}
	}

	record := &model.AttemptRecord{
		ID:          attemptID,
		QuizID:      req.QuizID,
		UserID:      req.UserID,
		QuestionIDs: ids,
		Settings:    req.Settings,
		StartedAt:   s.now().UTC(),
	}
	if err := s.attempts.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("store attempt: %w", err)
	}
	if err := s.maps.SaveAll(ctx, records); err != nil {
		return nil, fmt.Errorf("store parameter maps: %w", err)
	}

	token, err := s.auth.GenerateStudentToken(req.UserID, attemptID)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("attempt_id", attemptID.String()).
		Str("quiz_id", req.QuizID).
		Int("questions", len(views)).
		Msg("Attempt started")

	return &model.StartAttemptResponse{
		Attempt: &model.Attempt{
			ID:        attemptID,
			QuizID:    req.QuizID,
			UserID:    req.UserID,
			Questions: views,
			StartedAt: record.StartedAt,
		},
		StudentToken: token,
	}, nil
}

// selectQuestions keeps at most visible questions, in their listed order.
func (s *AttemptService) selectQuestions(attemptID uuid.UUID, ids []uuid.UUID, visible int) []uuid.UUID {
	if visible <= 0 || visible >= len(ids) {
		return ids
	}
	picked := params.NewSeededGenerator(s.seedSalt, "selection", attemptID.String()).Sample(len(ids), visible)
	slices.Sort(picked)
	out := make([]uuid.UUID, 0, visible)
	for _, i := range picked {
		out = append(out, ids[i])
	}
	return out
}

// parameterMap derives the map of one question in one attempt. The draw only
// depends on the salt and the two ids, so a lost map can be regenerated.
func (s *AttemptService) parameterMap(attemptID uuid.UUID, q *model.Question) (model.ParameterMap, error) {
	if !q.IsParameterized {
		return nil, nil
	}
	return params.NewSeededGenerator(s.seedSalt, attemptID.String(), q.ID.String()).Generate(q.Parameters)
}

// SaveAnswer autosaves one answer after checking it fits the question.
func (s *AttemptService) SaveAnswer(ctx context.Context, attemptID uuid.UUID, req *model.SaveAnswerRequest) error {
	attempt, err := s.getAttempt(ctx, attemptID)
	if err != nil {
		return err
	}
	if !attempt.Contains(req.QuestionID) {
		return &QuestionNotInAttemptError{QuestionID: req.QuestionID}
	}
	q, err := s.questions.GetByID(ctx, req.QuestionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrQuestionNotFound
		}
		return err
	}
	if shape, ok := req.Answer.Shape(); !ok || shape != q.Type {
		return &processing.MalformedAnswerError{QuestionID: q.ID, Expected: q.Type, Got: shape}
	}
	return s.answers.SaveDraft(ctx, model.DraftAnswer{AttemptID: attemptID, QuestionID: req.QuestionID, Answer: req.Answer})
}

// ────────────────────────────────────────────────────────────────────────────
// Grading
// ────────────────────────────────────────────────────────────────────────────

// Evaluate grades answers against the attempt without storing anything. An
// empty answer list falls back to the saved drafts. Presented questions
// without an answer score zero.
func (s *AttemptService) Evaluate(ctx context.Context, attemptID uuid.UUID, answers []model.QuestionAnswer) (*model.GradingResult, *model.AttemptRecord, error) {
	started := s.now()
	attempt, err := s.getAttempt(ctx, attemptID)
	if err != nil {
		return nil, nil, err
	}

	if len(answers) == 0 {
		if answers, err = s.answers.Drafts(ctx, attemptID); err != nil {
			return nil, nil, fmt.Errorf("load draft answers: %w", err)
		}
		if len(answers) == 0 {
			return nil, nil, ErrNoAnswers
		}
	}

	byQuestion := make(map[uuid.UUID]model.Answer, len(answers))
	for _, a := range answers {
		if !attempt.Contains(a.QuestionID) {
			return nil, nil, &QuestionNotInAttemptError{QuestionID: a.QuestionID}
		}
		byQuestion[a.QuestionID] = a.Answer
	}

	questions, err := s.questions.GetByIDs(ctx, attempt.QuestionIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("load questions: %w", err)
	}
	maps, err := s.maps.GetForAttempt(ctx, attemptID, attempt.QuestionIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("load parameter maps: %w", err)
	}

	res := &model.GradingResult{
		AttemptID:       attemptID,
		OverallFeedback: make([]model.Feedback, 0, len(attempt.QuestionIDs)),
		GradedBy:        model.GradedBySystem,
	}
	for _, qID := range attempt.QuestionIDs {
		q, ok := questions[qID]
		if !ok {
			return nil, nil, &MissingQuestionsError{IDs: []uuid.UUID{qID}}
		}
		res.TotalMaxScore += q.Points

		ans, answered := byQuestion[qID]
		if !answered {
			res.OverallFeedback = append(res.OverallFeedback, model.Feedback{
				QuestionID:   qID,
				Status:       model.FeedbackIncorrect,
				FeedbackText: NoAnswerFeedback,
			})
			continue
		}

		pm := maps[qID]
		if q.IsParameterized && pm == nil {
			s.log.Warn().Str("attempt_id", attemptID.String()).Str("question_id", qID.String()).
				Msg("Parameter map missing, regenerating from seed")
			if pm, err = s.parameterMap(attemptID, q); err != nil {
				return nil, nil, &processing.GradeError{QuestionID: qID, Err: err}
			}
		}

		fb, err := s.proc.Grade(q, ans, attempt.Settings, pm)
		if err != nil {
			metrics.EngineErrors.WithLabelValues("grade").Inc()
			return nil, nil, err
		}
		metrics.AnswersGraded.WithLabelValues(string(q.Type), string(fb.Status)).Inc()
		res.OverallFeedback = append(res.OverallFeedback, *fb)
		res.TotalScore += fb.Score
	}

	res.GradingStatus = Aggregate(res.OverallFeedback, res.TotalScore, res.TotalMaxScore, attempt.Settings.PassThreshold)
	res.GradedAt = s.now().UTC()
	metrics.GradingDuration.Observe(s.now().Sub(started).Seconds())
	return res, attempt, nil
}

// Grade evaluates and stores the result, returning it filtered by the quiz's
// visibility settings.
func (s *AttemptService) Grade(ctx context.Context, attemptID uuid.UUID, answers []model.QuestionAnswer) (*model.GradingResultView, error) {
	res, attempt, err := s.Evaluate(ctx, attemptID, answers)
	if err != nil {
		return nil, err
	}
	if err := s.results.Save(ctx, res); err != nil {
		return nil, fmt.Errorf("store grading result: %w", err)
	}
	s.log.Info().
		Str("attempt_id", attemptID.String()).
		Float64("total_score", res.TotalScore).
		Str("status", string(res.GradingStatus)).
		Msg("Attempt graded")
	return BuildGradingResultView(res, attempt.Settings), nil
}

// Submit queues the attempt for the grading worker.
func (s *AttemptService) Submit(ctx context.Context, attemptID uuid.UUID, answers []model.QuestionAnswer) (*model.GradingJob, error) {
	attempt, err := s.getAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	for _, a := range answers {
		if !attempt.Contains(a.QuestionID) {
			return nil, &QuestionNotInAttemptError{QuestionID: a.QuestionID}
		}
	}
	job := &model.GradingJob{AttemptID: attemptID, Answers: answers, EnqueuedAt: s.now().UTC()}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue grading job: %w", err)
	}
	return job, nil
}

// Result returns the stored result of an attempt, filtered for the student.
func (s *AttemptService) Result(ctx context.Context, attemptID uuid.UUID) (*model.GradingResultView, error) {
	attempt, err := s.getAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	res, err := s.results.GetByAttempt(ctx, attemptID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotGraded
		}
		return nil, err
	}
	return BuildGradingResultView(res, attempt.Settings), nil
}

// Settings returns the quiz settings an attempt was started with.
func (s *AttemptService) Settings(ctx context.Context, attemptID uuid.UUID) (model.QuizSettings, error) {
	attempt, err := s.getAttempt(ctx, attemptID)
	if err != nil {
		return model.QuizSettings{}, err
	}
	return attempt.Settings, nil
}

// PurgeParameterMaps removes durable maps older than retention.
func (s *AttemptService) PurgeParameterMaps(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := s.maps.PurgeOlderThan(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, err
	}
	metrics.ParameterMapsPurged.Add(float64(n))
	return n, nil
}

func (s *AttemptService) getAttempt(ctx context.Context, id uuid.UUID) (*model.AttemptRecord, error) {
	a, err := s.attempts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	return a, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
