package service

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizengine/internal/config"
	"github.com/stemsi/quizengine/internal/engine/params"
	"github.com/stemsi/quizengine/internal/engine/processing"
	"github.com/stemsi/quizengine/internal/model"
	"github.com/stemsi/quizengine/internal/repository"
)

type memQuestions struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*model.Question
}

func newMemQuestions(qs ...*model.Question) *memQuestions {
	m := &memQuestions{byID: make(map[uuid.UUID]*model.Question)}
	for _, q := range qs {
		m.byID[q.ID] = q
	}
	return m
}

func (m *memQuestions) Create(_ context.Context, q *model.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[q.ID] = q
	return nil
}

func (m *memQuestions) Update(_ context.Context, q *model.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[q.ID]; !ok {
		return repository.ErrNotFound
	}
	m.byID[q.ID] = q
	return nil
}

func (m *memQuestions) GetByID(_ context.Context, id uuid.UUID) (*model.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return q, nil
}

func (m *memQuestions) GetByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uuid.UUID]*model.Question)
	for _, id := range ids {
		if q, ok := m.byID[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}

func (m *memQuestions) List(_ context.Context, page, perPage int, qType model.QuestionType) ([]model.Question, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.Question
	for _, q := range m.byID {
		if qType == "" || q.Type == qType {
			all = append(all, *q)
		}
	}
	start := min((page-1)*perPage, len(all))
	end := min(start+perPage, len(all))
	return all[start:end], len(all), nil
}

type memAttempts struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*model.AttemptRecord
}

func (m *memAttempts) Create(_ context.Context, a *model.AttemptRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[a.ID] = a
	return nil
}

func (m *memAttempts) GetByID(_ context.Context, id uuid.UUID) (*model.AttemptRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return a, nil
}

type mapKey struct{ attempt, question uuid.UUID }

type memMaps struct {
	mu     sync.Mutex
	maps   map[mapKey]model.ParameterMap
	purged time.Time
}

func (m *memMaps) SaveAll(_ context.Context, records []model.ParameterMapRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.maps[mapKey{r.AttemptID, r.QuestionID}] = r.ParameterMap
	}
	return nil
}

func (m *memMaps) GetForAttempt(_ context.Context, attemptID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]model.ParameterMap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uuid.UUID]model.ParameterMap)
	for _, id := range ids {
		if pm, ok := m.maps[mapKey{attemptID, id}]; ok {
			out[id] = pm
		}
	}
	return out, nil
}

func (m *memMaps) PurgeOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purged = cutoff
	n := int64(len(m.maps))
	m.maps = make(map[mapKey]model.ParameterMap)
	return n, nil
}

type memAnswers struct {
	mu     sync.Mutex
	drafts map[uuid.UUID]map[uuid.UUID]model.Answer
}

func (m *memAnswers) SaveDraft(_ context.Context, d model.DraftAnswer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.drafts[d.AttemptID] == nil {
		m.drafts[d.AttemptID] = make(map[uuid.UUID]model.Answer)
	}
	m.drafts[d.AttemptID][d.QuestionID] = d.Answer
	return nil
}

func (m *memAnswers) Drafts(_ context.Context, attemptID uuid.UUID) ([]model.QuestionAnswer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.QuestionAnswer
	for qID, a := range m.drafts[attemptID] {
		out = append(out, model.QuestionAnswer{QuestionID: qID, Answer: a})
	}
	return out, nil
}

type memResults struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*model.GradingResult
}

func (m *memResults) Save(_ context.Context, res *model.GradingResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[res.AttemptID] = res
	return nil
}

func (m *memResults) GetByAttempt(_ context.Context, id uuid.UUID) (*model.GradingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return res, nil
}

type memQueue struct {
	mu   sync.Mutex
	jobs []*model.GradingJob
}

func (m *memQueue) Enqueue(_ context.Context, job *model.GradingJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
	return nil
}

type memRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
}

func (m *memRevocations) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[jti] = ttl
	return nil
}

func (m *memRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[jti]
	return ok, nil
}

// ─── Fixtures ───────────────────────────────────────────────────────────────

var (
	primeID = uuid.MustParse("0e4b4a1c-31f7-4a7f-8f0e-000000000001")
	sumID   = uuid.MustParse("0e4b4a1c-31f7-4a7f-8f0e-000000000002")
	essayID = uuid.MustParse("0e4b4a1c-31f7-4a7f-8f0e-000000000003")
)

func ptr[T any](v T) *T { return &v }

func primeQuestion() *model.Question {
	return &model.Question{
		ID:     primeID,
		Type:   model.QuestionTypeSelectOneInLot,
		Text:   "Which number is prime?",
		Points: 10,
		Solution: model.Solution{
			CorrectLotItem:    &model.LotItem{ID: "A", Text: "7"},
			IncorrectLotItems: []model.LotItem{{ID: "B", Text: "8"}, {ID: "C", Text: "9"}},
		},
	}
}

func sumQuestion() *model.Question {
	return &model.Question{
		ID:              sumID,
		Type:            model.QuestionTypeNumericAnswer,
		Text:            "What is <QParam>a</QParam> + <QParam>b</QParam>?",
		IsParameterized: true,
		Parameters: []model.Parameter{
			{Name: "a", PossibleValues: []any{1.0, 2.0, 3.0}, Type: model.SemanticTypeNumber},
			{Name: "b", PossibleValues: []any{4.0, 5.0}, Type: model.SemanticTypeNumber},
		},
		Points:   20,
		Solution: model.Solution{Expression: "a + b"},
	}
}

func essayQuestion() *model.Question {
	return &model.Question{
		ID:       essayID,
		Type:     model.QuestionTypeDescriptive,
		Text:     "Explain why the sky is blue.",
		Points:   5,
		Solution: model.Solution{SolutionText: "Rayleigh scattering."},
	}
}

type fixture struct {
	questions *memQuestions
	attempts  *memAttempts
	maps      *memMaps
	answers   *memAnswers
	results   *memResults
	queue     *memQueue
	revoked   *memRevocations
	auth      *AuthService
	svc       *AttemptService
}

func testConfig() *config.Config {
	return &config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour, SeedSalt: "salt"}
}

func newTestProcessor() *processing.Processor {
	return processing.New(processing.WithGenerator(params.NewGenerator(rand.NewPCG(3, 5))))
}

func newFixture(qs ...*model.Question) *fixture {
	f := &fixture{
		questions: newMemQuestions(qs...),
		attempts:  &memAttempts{byID: make(map[uuid.UUID]*model.AttemptRecord)},
		maps:      &memMaps{maps: make(map[mapKey]model.ParameterMap)},
		answers:   &memAnswers{drafts: make(map[uuid.UUID]map[uuid.UUID]model.Answer)},
		results:   &memResults{byID: make(map[uuid.UUID]*model.GradingResult)},
		queue:     &memQueue{},
		revoked:   &memRevocations{revoked: make(map[string]time.Duration)},
	}
	cfg := testConfig()
	f.auth = NewAuthService(cfg, f.revoked)
	f.svc = NewAttemptService(f.questions, f.attempts, f.maps, f.answers, f.results, f.queue,
		f.auth, newTestProcessor(), cfg.SeedSalt, zerolog.Nop())
	return f
}
