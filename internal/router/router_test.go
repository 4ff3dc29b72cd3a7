package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizengine/internal/config"
	"github.com/stemsi/quizengine/internal/engine/params"
	"github.com/stemsi/quizengine/internal/engine/processing"
	"github.com/stemsi/quizengine/internal/handler"
	"github.com/stemsi/quizengine/internal/middleware"
	"github.com/stemsi/quizengine/internal/model"
	"github.com/stemsi/quizengine/internal/repository"
	"github.com/stemsi/quizengine/internal/response"
	"github.com/stemsi/quizengine/internal/service"
	"github.com/stemsi/quizengine/internal/validator"
)

// ─── In-memory stores ───────────────────────────────────────────────────────

type store struct {
	mu        sync.Mutex
	questions map[uuid.UUID]*model.Question
	attempts  map[uuid.UUID]*model.AttemptRecord
	maps      map[[2]uuid.UUID]model.ParameterMap
	drafts    map[uuid.UUID]map[uuid.UUID]model.Answer
	results   map[uuid.UUID]*model.GradingResult
	jobs      []*model.GradingJob
	revoked   map[string]bool
}

func newStore() *store {
	return &store{
		questions: make(map[uuid.UUID]*model.Question),
		attempts:  make(map[uuid.UUID]*model.AttemptRecord),
		maps:      make(map[[2]uuid.UUID]model.ParameterMap),
		drafts:    make(map[uuid.UUID]map[uuid.UUID]model.Answer),
		results:   make(map[uuid.UUID]*model.GradingResult),
		revoked:   make(map[string]bool),
	}
}

type questionStore struct{ *store }

func (s questionStore) Create(_ context.Context, q *model.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions[q.ID] = q
	return nil
}

func (s questionStore) Update(_ context.Context, q *model.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[q.ID]; !ok {
		return repository.ErrNotFound
	}
	s.questions[q.ID] = q
	return nil
}

func (s questionStore) GetByID(_ context.Context, id uuid.UUID) (*model.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return q, nil
}

func (s questionStore) GetByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uuid.UUID]*model.Question)
	for _, id := range ids {
		if q, ok := s.questions[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}

func (s questionStore) List(_ context.Context, _, _ int, qType model.QuestionType) ([]model.Question, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Question
	for _, q := range s.questions {
		if qType == "" || q.Type == qType {
			out = append(out, *q)
		}
	}
	return out, len(out), nil
}

type attemptStore struct{ *store }

func (s attemptStore) Create(_ context.Context, a *model.AttemptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[a.ID] = a
	return nil
}

func (s attemptStore) GetByID(_ context.Context, id uuid.UUID) (*model.AttemptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return a, nil
}

type mapStore struct{ *store }

func (s mapStore) SaveAll(_ context.Context, records []model.ParameterMapRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.maps[[2]uuid.UUID{r.AttemptID, r.QuestionID}] = r.ParameterMap
	}
	return nil
}

func (s mapStore) GetForAttempt(_ context.Context, attemptID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]model.ParameterMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uuid.UUID]model.ParameterMap)
	for _, id := range ids {
		if pm, ok := s.maps[[2]uuid.UUID{attemptID, id}]; ok {
			out[id] = pm
		}
	}
	return out, nil
}

func (s mapStore) PurgeOlderThan(context.Context, time.Time) (int64, error) { return 0, nil }

type answerStore struct{ *store }

func (s answerStore) SaveDraft(_ context.Context, d model.DraftAnswer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drafts[d.AttemptID] == nil {
		s.drafts[d.AttemptID] = make(map[uuid.UUID]model.Answer)
	}
	s.drafts[d.AttemptID][d.QuestionID] = d.Answer
	return nil
}

func (s answerStore) Drafts(_ context.Context, attemptID uuid.UUID) ([]model.QuestionAnswer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.QuestionAnswer
	for qID, a := range s.drafts[attemptID] {
		out = append(out, model.QuestionAnswer{QuestionID: qID, Answer: a})
	}
	return out, nil
}

type resultStore struct{ *store }

func (s resultStore) Save(_ context.Context, res *model.GradingResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[res.AttemptID] = res
	return nil
}

func (s resultStore) GetByAttempt(_ context.Context, id uuid.UUID) (*model.GradingResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.results[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return res, nil
}

type jobQueue struct{ *store }

func (s jobQueue) Enqueue(_ context.Context, job *model.GradingJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	return nil
}

type revocations struct{ *store }

func (s revocations) Revoke(_ context.Context, jti string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[jti] = true
	return nil
}

func (s revocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revoked[jti], nil
}

// ─── Harness ────────────────────────────────────────────────────────────────

type harness struct {
	t      *testing.T
	store  *store
	auth   *service.AuthService
	router *gin.Engine
}

func newHarness(t *testing.T, checks map[string]handler.HealthCheck) *harness {
	t.Helper()
	validator.Setup()

	cfg := &config.Config{
		GinMode:            gin.TestMode,
		JWTSecret:          "router-test-secret",
		JWTExpiry:          time.Hour,
		SeedSalt:           "salt",
		RateLimitPerMinute: 1000,
	}
	st := newStore()
	auth := service.NewAuthService(cfg, revocations{st})
	proc := processing.New(processing.WithGenerator(params.NewGenerator(rand.NewPCG(1, 2))))
	log := zerolog.Nop()

	questionService := service.NewQuestionService(questionStore{st}, proc, log)
	attemptService := service.NewAttemptService(questionStore{st}, attemptStore{st}, mapStore{st},
		answerStore{st}, resultStore{st}, jobQueue{st}, auth, proc, cfg.SeedSalt, log)

	if checks == nil {
		checks = map[string]handler.HealthCheck{"postgres": func(context.Context) error { return nil }}
	}
	handlers := &Handlers{
		Auth:     handler.NewAuthHandler(auth, log),
		Question: handler.NewQuestionHandler(questionService, log),
		Attempt:  handler.NewAttemptHandler(attemptService, log),
		WS:       handler.NewWSHandler(nil, attemptService, log, nil),
		System:   handler.NewSystemHandler(nil, checks, log),
	}

	return &harness{
		t:      t,
		store:  st,
		auth:   auth,
		router: SetupRouter(auth, handlers, middleware.NewRateLimiter(cfg.RateLimitPerMinute), cfg),
	}
}

func (h *harness) token(perms ...model.Permission) string {
	h.t.Helper()
	tok, _, err := h.auth.GenerateServiceToken("lms", perms)
	if err != nil {
		h.t.Fatal(err)
	}
	return tok
}

func (h *harness) do(method, path, token string, body any) (*httptest.ResponseRecorder, response.Response) {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			h.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	var env response.Response
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

// decodeData re-decodes the envelope's data field into dst.
func decodeData(t *testing.T, env response.Response, dst any) {
	t.Helper()
	raw, err := json.Marshal(env.Data)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		t.Fatal(err)
	}
}

func primeQuestion() model.Question {
	return model.Question{
		Type:   model.QuestionTypeSelectOneInLot,
		Text:   "Which number is prime?",
		Points: 10,
		Solution: model.Solution{
			CorrectLotItem:    &model.LotItem{ID: "A", Text: "7"},
			IncorrectLotItems: []model.LotItem{{ID: "B", Text: "8"}, {ID: "C", Text: "9"}},
		},
	}
}

// ─── Tests ──────────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	h := newHarness(t, nil)
	if w, _ := h.do(http.MethodGet, "/health", "", nil); w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}

	down := newHarness(t, map[string]handler.HealthCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	if w, _ := down.do(http.MethodGet, "/health", "", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestServiceAuth(t *testing.T) {
	h := newHarness(t, nil)

	tests := []struct {
		name   string
		token  func() string
		status int
		code   response.ErrCode
	}{
		{"missing token", func() string { return "" }, http.StatusUnauthorized, response.ErrTokenRequired},
		{"garbage token", func() string { return "not-a-jwt" }, http.StatusUnauthorized, response.ErrTokenInvalid},
		{"missing permission", func() string { return h.token(model.PermissionResultsRead) }, http.StatusForbidden, response.ErrPermissionDenied},
		{"student token", func() string {
			tok, err := h.auth.GenerateStudentToken("s1", uuid.New())
			if err != nil {
				t.Fatal(err)
			}
			return tok
		}, http.StatusForbidden, response.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := h.do(http.MethodGet, "/api/v1/questions", tt.token(), nil)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.status, w.Body)
			}
			if env.Error == nil || env.Error.Code != tt.code {
				t.Errorf("error = %+v, want %s", env.Error, tt.code)
			}
		})
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	h := newHarness(t, nil)
	tok := h.token(model.PermissionQuestionsRead)

	if w, _ := h.do(http.MethodPost, "/api/v1/auth/logout", tok, nil); w.Code != http.StatusOK {
		t.Fatalf("logout status = %d: %s", w.Code, w.Body)
	}
	w, env := h.do(http.MethodGet, "/api/v1/questions", tok, nil)
	if w.Code != http.StatusUnauthorized || env.Error == nil || env.Error.Code != response.ErrTokenInvalid {
		t.Errorf("status = %d, error = %+v", w.Code, env.Error)
	}
}

func TestQuestionEndpoints(t *testing.T) {
	h := newHarness(t, nil)
	tok := h.token(model.PermissionQuestionsRead, model.PermissionQuestionsWrite)

	w, _ := h.do(http.MethodPost, "/api/v1/questions/validate", tok, model.QuestionRequest{Question: primeQuestion()})
	if w.Code != http.StatusOK {
		t.Fatalf("validate status = %d: %s", w.Code, w.Body)
	}

	bad := primeQuestion()
	bad.Solution.IncorrectLotItems = nil
	w, env := h.do(http.MethodPost, "/api/v1/questions", tok, model.QuestionRequest{Question: bad})
	if w.Code != http.StatusUnprocessableEntity || env.Error == nil || env.Error.Code != response.ErrAuthoring {
		t.Fatalf("status = %d, error = %+v", w.Code, env.Error)
	}

	w, env = h.do(http.MethodPost, "/api/v1/questions", tok, model.QuestionRequest{Question: primeQuestion()})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body)
	}
	var created struct {
		Question model.Question `json:"question"`
	}
	decodeData(t, env, &created)
	if created.Question.ID == uuid.Nil {
		t.Fatal("created question has no id")
	}
	id := created.Question.ID.String()

	if w, _ := h.do(http.MethodGet, "/api/v1/questions/"+id, tok, nil); w.Code != http.StatusOK {
		t.Errorf("get status = %d", w.Code)
	}
	if w, _ := h.do(http.MethodGet, "/api/v1/questions/"+uuid.NewString(), tok, nil); w.Code != http.StatusNotFound {
		t.Errorf("get unknown status = %d", w.Code)
	}
	if w, _ := h.do(http.MethodGet, "/api/v1/questions/not-a-uuid", tok, nil); w.Code != http.StatusBadRequest {
		t.Errorf("get invalid id status = %d", w.Code)
	}

	w, env = h.do(http.MethodGet, "/api/v1/questions/"+id+"/render", tok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("render status = %d: %s", w.Code, w.Body)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "no-store" {
		t.Errorf("Cache-Control = %q", cc)
	}
	var rendered struct {
		Question model.RenderView `json:"question"`
	}
	decodeData(t, env, &rendered)
	if len(rendered.Question.LotItems) != 3 {
		t.Errorf("rendered lot items = %+v", rendered.Question.LotItems)
	}

	w, env = h.do(http.MethodGet, "/api/v1/questions?type=SELECT_ONE_IN_LOT", tok, nil)
	if w.Code != http.StatusOK || env.Pagination == nil || env.Pagination.TotalItems != 1 {
		t.Errorf("list status = %d, pagination = %+v", w.Code, env.Pagination)
	}
	if w, _ := h.do(http.MethodGet, "/api/v1/questions?type=ESSAY", tok, nil); w.Code != http.StatusBadRequest {
		t.Errorf("list bad type status = %d", w.Code)
	}
}

func TestAttemptFlow(t *testing.T) {
	h := newHarness(t, nil)
	q := primeQuestion()
	q.ID = uuid.New()
	h.store.questions[q.ID] = &q

	tok := h.token(model.PermissionAttemptsWrite, model.PermissionAttemptsGrade, model.PermissionResultsRead)

	w, env := h.do(http.MethodPost, "/api/v1/attempts", tok, model.StartAttemptRequest{
		QuizID:      "quiz-1",
		UserID:      "student-1",
		QuestionIDs: []uuid.UUID{q.ID},
		Settings:    model.QuizSettings{PassThreshold: 0.5, ShowScoreAfterSubmission: true},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("start status = %d: %s", w.Code, w.Body)
	}
	var started model.StartAttemptResponse
	decodeData(t, env, &started)
	attemptID := started.Attempt.ID.String()
	if started.StudentToken == "" || len(started.Attempt.Questions) != 1 {
		t.Fatalf("start response = %+v", started)
	}

	// The student autosaves through their own token.
	w, _ = h.do(http.MethodPut, "/api/v1/student/attempts/"+attemptID+"/answers", started.StudentToken,
		model.SaveAnswerRequest{QuestionID: q.ID, Answer: model.Answer{LotItemID: "A"}})
	if w.Code != http.StatusOK {
		t.Fatalf("save status = %d: %s", w.Code, w.Body)
	}

	// A student token is bound to its attempt.
	w, _ = h.do(http.MethodGet, "/api/v1/student/attempts/"+uuid.NewString()+"/result", started.StudentToken, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("foreign attempt status = %d", w.Code)
	}

	w, env = h.do(http.MethodGet, "/api/v1/attempts/"+attemptID+"/result", tok, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("result before grading status = %d", w.Code)
	}

	// Grading without answers uses the saved drafts.
	w, env = h.do(http.MethodPost, "/api/v1/attempts/"+attemptID+"/grade", tok, model.GradeAttemptRequest{})
	if w.Code != http.StatusOK {
		t.Fatalf("grade status = %d: %s", w.Code, w.Body)
	}
	var graded struct {
		Result model.GradingResultView `json:"result"`
	}
	decodeData(t, env, &graded)
	if graded.Result.GradingStatus != model.GradingPassed || graded.Result.TotalScore == nil || *graded.Result.TotalScore != 10 {
		t.Errorf("result = %+v", graded.Result)
	}
	if graded.Result.OverallFeedback != nil {
		t.Errorf("feedback shown although hidden by settings: %+v", graded.Result.OverallFeedback)
	}

	w, _ = h.do(http.MethodGet, "/api/v1/student/attempts/"+attemptID+"/result", started.StudentToken, nil)
	if w.Code != http.StatusOK {
		t.Errorf("student result status = %d", w.Code)
	}

	w, env = h.do(http.MethodPost, "/api/v1/attempts/"+attemptID+"/grade", tok, model.GradeAttemptRequest{
		Answers: []model.QuestionAnswer{{QuestionID: uuid.New(), Answer: model.Answer{LotItemID: "A"}}},
	})
	if w.Code != http.StatusUnprocessableEntity || env.Error == nil || env.Error.Code != response.ErrUnknownQuestion {
		t.Errorf("foreign question status = %d, error = %+v", w.Code, env.Error)
	}

	w, env = h.do(http.MethodPost, "/api/v1/attempts/"+attemptID+"/grade", tok, model.GradeAttemptRequest{
		Answers: []model.QuestionAnswer{{QuestionID: q.ID, Answer: model.Answer{LotItemIDs: []string{"A"}}}},
	})
	if w.Code != http.StatusUnprocessableEntity || env.Error == nil || env.Error.Code != response.ErrMalformedAnswer {
		t.Errorf("malformed answer status = %d, error = %+v", w.Code, env.Error)
	}

	w, _ = h.do(http.MethodPost, "/api/v1/student/attempts/"+attemptID+"/submit", started.StudentToken, model.GradeAttemptRequest{})
	if w.Code != http.StatusAccepted || len(h.store.jobs) != 1 {
		t.Errorf("submit status = %d, jobs = %d", w.Code, len(h.store.jobs))
	}
}
