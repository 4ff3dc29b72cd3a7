package processing

import (
	"fmt"
	"math"

	"github.com/stemsi/quizengine/internal/engine/expression"
	"github.com/stemsi/quizengine/internal/engine/template"
	"github.com/stemsi/quizengine/internal/model"
)

// Grade scores ans against the answer key of q. pm must be the map the
// student was shown; it may be nil for questions without parameters.
// Evaluation failures are *GradeError, shape mismatches *MalformedAnswerError.
func (p *Processor) Grade(q *model.Question, ans model.Answer, s model.QuizSettings, pm model.ParameterMap) (*model.Feedback, error) {
	v, ok := p.variants[q.Type]
	if !ok {
		return nil, &GradeError{QuestionID: q.ID, Err: ErrUnknownVariant}
	}
	if shape, ok := ans.Shape(); !ok || shape != q.Type {
		return nil, &MalformedAnswerError{QuestionID: q.ID, Expected: q.Type, Got: shape}
	}

	fb, err := v.grade(q, ans, s, pm)
	if err != nil {
		p.log.Warn().Err(err).Str("question_id", q.ID.String()).Str("type", string(q.Type)).Msg("grading failed")
		return nil, &GradeError{QuestionID: q.ID, Err: err}
	}
	fb.QuestionID = q.ID

	p.log.Debug().
		Str("question_id", q.ID.String()).
		Str("status", string(fb.Status)).
		Float64("score", fb.Score).
		Msg("answer graded")
	return fb, nil
}

func gradeSelectOne(q *model.Question, ans model.Answer, _ model.QuizSettings, _ model.ParameterMap) (*model.Feedback, error) {
	if q.Solution.CorrectLotItem == nil {
		return nil, ErrMissingAnswerKey
	}
	if ans.LotItemID == q.Solution.CorrectLotItem.ID {
		return &model.Feedback{Status: model.FeedbackCorrect, Score: q.Points, FeedbackText: "Correct answer!"}, nil
	}
	return &model.Feedback{Status: model.FeedbackIncorrect, Score: 0, FeedbackText: "Incorrect answer."}, nil
}

// gradeSelectMany compares the submitted set A with the correct set C.
// Without partial grading only A == C scores; with it the score is
// points * |A ∩ C| / |C|.
func gradeSelectMany(q *model.Question, ans model.Answer, s model.QuizSettings, _ model.ParameterMap) (*model.Feedback, error) {
	correct := make(map[string]struct{}, len(q.Solution.CorrectLotItems))
	for _, item := range q.Solution.CorrectLotItems {
		correct[item.ID] = struct{}{}
	}
	if len(correct) == 0 {
		return nil, ErrMissingAnswerKey
	}

	submitted := make(map[string]struct{}, len(ans.LotItemIDs))
	for _, id := range ans.LotItemIDs {
		submitted[id] = struct{}{}
	}
	hits := 0
	for id := range submitted {
		if _, ok := correct[id]; ok {
			hits++
		}
	}

	if !s.AllowPartialGrading {
		if hits == len(correct) && len(submitted) == len(correct) {
			return &model.Feedback{Status: model.FeedbackCorrect, Score: q.Points, FeedbackText: "Correct answer!"}, nil
		}
		return &model.Feedback{Status: model.FeedbackIncorrect, Score: 0, FeedbackText: "Incorrect answer. Please try again."}, nil
	}

	fb := &model.Feedback{FeedbackText: fmt.Sprintf("You got %d out of %d correct.", hits, len(correct))}
	switch {
	case hits == len(correct):
		fb.Status, fb.Score = model.FeedbackCorrect, q.Points
	case hits > 0:
		fb.Status, fb.Score = model.FeedbackPartial, q.Points*float64(hits)/float64(len(correct))
	default:
		fb.Status, fb.Score = model.FeedbackIncorrect, 0
	}
	return fb, nil
}

// gradeOrder counts lot items placed at their canonical position. Each lot
// item counts once; a repeated submission for the same item is ignored.
func gradeOrder(q *model.Question, ans model.Answer, s model.QuizSettings, _ model.ParameterMap) (*model.Feedback, error) {
	total := len(q.Solution.Ordering)
	if total == 0 {
		return nil, ErrMissingAnswerKey
	}
	canonical := make(map[string]int, total)
	for _, o := range q.Solution.Ordering {
		canonical[o.LotItem.ID] = o.Order
	}

	counted := make(map[string]struct{}, len(ans.Orders))
	hits := 0
	for _, o := range ans.Orders {
		if _, dup := counted[o.LotItemID]; dup {
			continue
		}
		counted[o.LotItemID] = struct{}{}
		if want, ok := canonical[o.LotItemID]; ok && want == o.Order {
			hits++
		}
	}

	switch {
	case hits == total:
		return &model.Feedback{
			Status:       model.FeedbackCorrect,
			Score:        q.Points,
			FeedbackText: "Great job! You ordered all items correctly.",
		}, nil
	case s.AllowPartialGrading && hits > 0:
		score := math.Min(math.Round(q.Points/float64(total)*float64(hits)), q.Points)
		return &model.Feedback{
			Status:       model.FeedbackPartial,
			Score:        score,
			FeedbackText: fmt.Sprintf("You ordered %d out of %d items correctly.", hits, total),
		}, nil
	case hits > 0:
		return &model.Feedback{
			Status:       model.FeedbackIncorrect,
			Score:        0,
			FeedbackText: fmt.Sprintf("You ordered %d out of %d items correctly.", hits, total),
		}, nil
	}
	return &model.Feedback{
		Status:       model.FeedbackIncorrect,
		Score:        0,
		FeedbackText: "None of the items were in the correct order.",
	}, nil
}

// gradeNumeric accepts the rounded answer when it lies in the closed band
// [expected - lower_limit, expected + upper_limit]. The bounds are rounded to
// the same precision as the answer so both sides share one grid.
func (p *Processor) gradeNumeric(q *model.Question, ans model.Answer, _ model.QuizSettings, pm model.ParameterMap) (*model.Feedback, error) {
	expected, err := p.ExpectedValue(q, pm)
	if err != nil {
		return nil, err
	}

	precision := q.Solution.DecimalPrecision
	got := roundTo(*ans.Value, precision)
	lower := roundTo(expected-q.Solution.LowerLimit, precision)
	upper := roundTo(expected+q.Solution.UpperLimit, precision)

	if got >= lower && got <= upper {
		return &model.Feedback{Status: model.FeedbackCorrect, Score: q.Points, FeedbackText: "Correct answer."}, nil
	}
	return &model.Feedback{
		Status: model.FeedbackIncorrect,
		Score:  0,
		FeedbackText: fmt.Sprintf("Incorrect. Expected a value near %s ± %s",
			expression.Format(expected), expression.Format(q.Solution.UpperLimit)),
	}, nil
}

// ExpectedValue returns the rounded expected answer of a numeric question.
// The expression wins over the literal value when both are set.
func (p *Processor) ExpectedValue(q *model.Question, pm model.ParameterMap) (float64, error) {
	sol := q.Solution
	precision := sol.DecimalPrecision
	if sol.Expression == "" {
		if sol.Value == nil {
			return 0, ErrMissingAnswerKey
		}
		return roundTo(*sol.Value, precision), nil
	}

	expr, err := p.tags.ParseExpression(sol.Expression)
	if err != nil {
		return 0, err
	}
	v, err := expr.Eval(template.Bindings(pm))
	if err != nil {
		return 0, err
	}
	return roundTo(v, precision), nil
}

func gradeDescriptive(*model.Question, model.Answer, model.QuizSettings, model.ParameterMap) (*model.Feedback, error) {
	return &model.Feedback{
		Status:       model.FeedbackPending,
		Score:        0,
		FeedbackText: "Awaiting manual review.",
	}, nil
}

func roundTo(v float64, precision int) float64 {
	scale := math.Pow(10, float64(precision))
	return math.Round(v*scale) / scale
}
