package processing

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/stemsi/quizengine/internal/engine/template"
	"github.com/stemsi/quizengine/internal/model"
)

func TestValidateAcceptsEveryVariant(t *testing.T) {
	p := newTestProcessor()
	for typ, build := range allQuestions() {
		t.Run(string(typ), func(t *testing.T) {
			if err := p.Validate(build()); err != nil {
				t.Errorf("plain: %v", err)
			}
			if err := p.Validate(parameterize(build())); err != nil {
				t.Errorf("parameterized: %v", err)
			}
		})
	}
}

func TestValidateParameterizedWithoutTextTag(t *testing.T) {
	p := newTestProcessor()
	for typ, build := range allQuestions() {
		t.Run(string(typ), func(t *testing.T) {
			q := parameterize(build())
			q.Text = "No tags at all."

			err := p.Validate(q)
			var ae *AuthoringError
			if !errors.As(err, &ae) {
				t.Fatalf("got %v, want AuthoringError", err)
			}
			if !errors.Is(err, ErrMissingTag) || ae.Field != "text" {
				t.Errorf("got %v (field %q), want ErrMissingTag on text", err, ae.Field)
			}
		})
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name  string
		build func() *model.Question
		field string
		want  error
	}{
		{
			name: "flag without parameters",
			build: func() *model.Question {
				q := selectOneQuestion()
				q.IsParameterized = true
				return q
			},
			field: "parameters",
			want:  ErrParameterization,
		},
		{
			name: "parameters without flag",
			build: func() *model.Question {
				q := parameterize(numericQuestion())
				q.IsParameterized = false
				return q
			},
			field: "parameters",
			want:  ErrParameterization,
		},
		{
			name: "duplicate parameter",
			build: func() *model.Question {
				q := parameterize(numericQuestion())
				q.Parameters[1].Name = "a"
				return q
			},
			field: "parameters[1]",
			want:  ErrDuplicateParameter,
		},
		{
			name: "tags without parameters",
			build: func() *model.Question {
				q := descriptiveQuestion()
				q.Hint = "Think of <QParam>a</QParam>."
				return q
			},
			field: "hint",
			want:  ErrTagsWithoutParameter,
		},
		{
			name: "undeclared parameter in hint",
			build: func() *model.Question {
				q := parameterize(descriptiveQuestion())
				q.Hint = "Try <QParam>c</QParam>."
				return q
			},
			field: "hint",
			want:  template.ErrUndeclaredParameter,
		},
		{
			name: "text parameter in numeric tag",
			build: func() *model.Question {
				q := parameterize(descriptiveQuestion())
				q.Parameters = append(q.Parameters, model.Parameter{Name: "who", Type: model.SemanticTypeText, PossibleValues: []any{"Ana"}})
				q.Text += " <NumExpr>who + 1</NumExpr>"
				return q
			},
			field: "text",
			want:  template.ErrParameterType,
		},
		{
			name: "lot items without tags",
			build: func() *model.Question {
				q := parameterize(selectOneQuestion())
				q.Solution.CorrectLotItem.Text = "plain"
				return q
			},
			field: "lot_items",
			want:  ErrMissingLotItemTag,
		},
		{
			name: "undeclared parameter in lot explanation",
			build: func() *model.Question {
				q := parameterize(orderQuestion())
				q.Solution.Ordering[2].LotItem.Explanation = "<QParam>zz</QParam>"
				return q
			},
			field: "lot_items[2].explanation",
			want:  template.ErrUndeclaredParameter,
		},
		{
			name: "missing correct item",
			build: func() *model.Question {
				q := selectOneQuestion()
				q.Solution.CorrectLotItem = nil
				return q
			},
			field: "solution.correct_lot_item",
			want:  ErrMissingAnswerKey,
		},
		{
			name: "duplicate lot item id",
			build: func() *model.Question {
				q := selectManyQuestion()
				q.Solution.IncorrectLotItems[0].ID = "A"
				return q
			},
			field: "lot_items[3].id",
			want:  ErrDuplicateLotItem,
		},
		{
			name: "duplicate order",
			build: func() *model.Question {
				q := orderQuestion()
				q.Solution.Ordering[3].Order = 1
				return q
			},
			field: "solution.ordering[3].order",
			want:  ErrDuplicateOrder,
		},
		{
			name: "numeric without key",
			build: func() *model.Question {
				q := numericQuestion()
				q.Solution.Value = nil
				return q
			},
			field: "solution.value",
			want:  ErrMissingAnswerKey,
		},
		{
			name: "numeric expression with undeclared variable",
			build: func() *model.Question {
				q := parameterize(numericQuestion())
				q.Solution.Expression = "a + c"
				return q
			},
			field: "solution.expression",
			want:  template.ErrUndeclaredParameter,
		},
		{
			name: "descriptive solution with undeclared parameter",
			build: func() *model.Question {
				q := parameterize(descriptiveQuestion())
				q.Solution.SolutionText = "<NumExpr>a + z</NumExpr>"
				return q
			},
			field: "solution.solution_text",
			want:  template.ErrUndeclaredParameter,
		},
	}

	p := newTestProcessor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Validate(tt.build())
			var ae *AuthoringError
			if !errors.As(err, &ae) {
				t.Fatalf("got %v, want AuthoringError", err)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
			if ae.Field != tt.field {
				t.Errorf("field = %q, want %q", ae.Field, tt.field)
			}
		})
	}
}

func TestValidateStructuralRules(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(q *model.Question)
		field string
	}{
		{"empty text", func(q *model.Question) { q.Text = "" }, "text"},
		{"negative points", func(q *model.Question) { q.Points = -1 }, "points"},
		{"empty lot text", func(q *model.Question) { q.Solution.IncorrectLotItems[0].Text = "" }, "solution.incorrect_lot_items[0].text"},
		{"bad parameter type", func(q *model.Question) {
			q.IsParameterized = true
			q.Parameters = []model.Parameter{{Name: "a", Type: "date", PossibleValues: []any{"x"}}}
		}, "parameters[0].type"},
	}

	p := newTestProcessor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := selectOneQuestion()
			tt.edit(q)
			err := p.Validate(q)
			var ae *AuthoringError
			if !errors.As(err, &ae) {
				t.Fatalf("got %v, want AuthoringError", err)
			}
			if ae.Field != tt.field {
				t.Errorf("field = %q, want %q", ae.Field, tt.field)
			}
		})
	}
}

func TestValidateDoesNotMutate(t *testing.T) {
	p := newTestProcessor()
	for typ, build := range allQuestions() {
		t.Run(string(typ), func(t *testing.T) {
			q := parameterize(build())
			before, _ := json.Marshal(q)
			_ = p.Validate(q)
			after, _ := json.Marshal(q)
			if !reflect.DeepEqual(before, after) {
				t.Errorf("question changed:\n%s\n%s", before, after)
			}
		})
	}
}
