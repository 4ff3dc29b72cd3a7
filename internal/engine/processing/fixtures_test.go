package processing

import (
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/stemsi/quizengine/internal/engine/params"
	"github.com/stemsi/quizengine/internal/model"
)

func ptr[T any](v T) *T { return &v }

func newTestProcessor() *Processor {
	return New(WithGenerator(params.NewGenerator(rand.NewPCG(11, 13))))
}

func selectOneQuestion() *model.Question {
	return &model.Question{
		ID:     uuid.MustParse("5f0c3a52-7a0e-4d5e-9a56-3c1b1f0c0001"),
		Type:   model.QuestionTypeSelectOneInLot,
		Text:   "Which number is prime?",
		Hint:   "It has exactly two divisors.",
		Points: 10,
		Solution: model.Solution{
			CorrectLotItem: &model.LotItem{ID: "A", Text: "7", Explanation: "7 is only divisible by 1 and 7."},
			IncorrectLotItems: []model.LotItem{
				{ID: "B", Text: "8", Explanation: "8 is even."},
				{ID: "C", Text: "9", Explanation: "9 is 3 squared."},
			},
		},
	}
}

func selectManyQuestion() *model.Question {
	return &model.Question{
		ID:     uuid.MustParse("5f0c3a52-7a0e-4d5e-9a56-3c1b1f0c0002"),
		Type:   model.QuestionTypeSelectManyInLot,
		Text:   "Select every even number.",
		Points: 30,
		Solution: model.Solution{
			CorrectLotItems:   []model.LotItem{{ID: "A", Text: "2"}, {ID: "B", Text: "4"}, {ID: "C", Text: "6"}},
			IncorrectLotItems: []model.LotItem{{ID: "D", Text: "7"}},
		},
	}
}

func orderQuestion() *model.Question {
	return &model.Question{
		ID:     uuid.MustParse("5f0c3a52-7a0e-4d5e-9a56-3c1b1f0c0003"),
		Type:   model.QuestionTypeOrderTheLots,
		Text:   "Order from smallest to largest.",
		Points: 40,
		Solution: model.Solution{
			Ordering: []model.LotOrder{
				{LotItem: model.LotItem{ID: "A", Text: "1", Explanation: "smallest"}, Order: 1},
				{LotItem: model.LotItem{ID: "B", Text: "2"}, Order: 2},
				{LotItem: model.LotItem{ID: "C", Text: "3"}, Order: 3},
				{LotItem: model.LotItem{ID: "D", Text: "4", Explanation: "largest"}, Order: 4},
			},
		},
	}
}

func numericQuestion() *model.Question {
	return &model.Question{
		ID:     uuid.MustParse("5f0c3a52-7a0e-4d5e-9a56-3c1b1f0c0004"),
		Type:   model.QuestionTypeNumericAnswer,
		Text:   "What is 4 + 6?",
		Points: 5,
		Solution: model.Solution{
			Value:            ptr(10.0),
			DecimalPrecision: 0,
			LowerLimit:       1,
			UpperLimit:       2,
		},
	}
}

func descriptiveQuestion() *model.Question {
	return &model.Question{
		ID:     uuid.MustParse("5f0c3a52-7a0e-4d5e-9a56-3c1b1f0c0005"),
		Type:   model.QuestionTypeDescriptive,
		Text:   "Explain why the sky is blue.",
		Points: 20,
		Solution: model.Solution{
			SolutionText: "Rayleigh scattering.",
		},
	}
}

func allQuestions() map[model.QuestionType]func() *model.Question {
	return map[model.QuestionType]func() *model.Question{
		model.QuestionTypeSelectOneInLot:  selectOneQuestion,
		model.QuestionTypeSelectManyInLot: selectManyQuestion,
		model.QuestionTypeOrderTheLots:    orderQuestion,
		model.QuestionTypeNumericAnswer:   numericQuestion,
		model.QuestionTypeDescriptive:     descriptiveQuestion,
	}
}

// parameterize turns q into a valid parameterized question using a and b.
func parameterize(q *model.Question, values ...any) *model.Question {
	if len(values) == 0 {
		values = []any{"5"}
	}
	q.IsParameterized = true
	q.Parameters = []model.Parameter{
		{Name: "a", Type: model.SemanticTypeNumber, PossibleValues: values},
		{Name: "b", Type: model.SemanticTypeNumber, PossibleValues: values},
	}
	q.Text += " Use a = <QParam>a</QParam> and a + b = <NumExpr>a + b</NumExpr>."

	switch q.Type {
	case model.QuestionTypeSelectOneInLot:
		q.Solution.CorrectLotItem.Text = "<NumExpr>a * b</NumExpr>"
	case model.QuestionTypeSelectManyInLot:
		q.Solution.CorrectLotItems[0].Text = "<NumExpr>a * 2</NumExpr>"
	case model.QuestionTypeOrderTheLots:
		q.Solution.Ordering[0].LotItem.Explanation = "<NumExprTex>a / b</NumExprTex> is smallest"
	case model.QuestionTypeNumericAnswer:
		q.Solution.Value = nil
		q.Solution.Expression = "a + b"
	}
	return q
}
