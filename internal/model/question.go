package model

import (
	"github.com/google/uuid"
)

// QuestionType is the variant tag of a question.
type QuestionType string

const (
	QuestionTypeSelectOneInLot  QuestionType = "SELECT_ONE_IN_LOT"
	QuestionTypeSelectManyInLot QuestionType = "SELECT_MANY_IN_LOT"
	QuestionTypeOrderTheLots    QuestionType = "ORDER_THE_LOTS"
	QuestionTypeNumericAnswer   QuestionType = "NUMERIC_ANSWER_TYPE"
	QuestionTypeDescriptive     QuestionType = "DESCRIPTIVE"
)

// QuestionTypes lists every supported variant.
var QuestionTypes = []QuestionType{
	QuestionTypeSelectOneInLot,
	QuestionTypeSelectManyInLot,
	QuestionTypeOrderTheLots,
	QuestionTypeNumericAnswer,
	QuestionTypeDescriptive,
}

// HasLotItems reports whether the variant presents lot items to the student.
func (t QuestionType) HasLotItems() bool {
	switch t {
	case QuestionTypeSelectOneInLot, QuestionTypeSelectManyInLot, QuestionTypeOrderTheLots:
		return true
	}
	return false
}

// SemanticType is the declared type of a parameter's values.
type SemanticType string

const (
	SemanticTypeText   SemanticType = "text"
	SemanticTypeNumber SemanticType = "number"
)

// Parameter declares a named placeholder and the values it may take.
// PossibleValues holds strings or numbers as decoded from JSON.
type Parameter struct {
	Name           string       `json:"name" validate:"required,max=64"`
	PossibleValues []any        `json:"possible_values" validate:"required,min=1"`
	Type           SemanticType `json:"type" validate:"required,oneof=text number"`
}

// ParameterMap binds each parameter name to the concrete value drawn for one
// presentation. Numeric values are float64, text values are string.
type ParameterMap map[string]any

// LotItem is a selectable or orderable option.
type LotItem struct {
	ID          string `json:"id"`
	Text        string `json:"text" validate:"required,max=2000"`
	Explanation string `json:"explanation,omitempty" validate:"max=4000"`
}

// LotOrder pairs a lot item with its canonical position.
type LotOrder struct {
	LotItem LotItem `json:"lot_item"`
	Order   int     `json:"order" validate:"gte=1"`
}

// Solution holds the variant specific answer key. Only the fields of the
// question's own variant are meaningful; it is never sent to students.
type Solution struct {
	// SELECT_ONE_IN_LOT
	CorrectLotItem *LotItem `json:"correct_lot_item,omitempty"`
	// SELECT_ONE_IN_LOT and SELECT_MANY_IN_LOT
	IncorrectLotItems []LotItem `json:"incorrect_lot_items,omitempty" validate:"dive"`
	// SELECT_MANY_IN_LOT
	CorrectLotItems []LotItem `json:"correct_lot_items,omitempty" validate:"dive"`
	// ORDER_THE_LOTS
	Ordering []LotOrder `json:"ordering,omitempty" validate:"dive"`

	// NUMERIC_ANSWER_TYPE
	DecimalPrecision int      `json:"decimal_precision,omitempty" validate:"gte=0,lte=10"`
	LowerLimit       float64  `json:"lower_limit,omitempty" validate:"gte=0"`
	UpperLimit       float64  `json:"upper_limit,omitempty" validate:"gte=0"`
	Value            *float64 `json:"value,omitempty"`
	Expression       string   `json:"expression,omitempty" validate:"max=1024"`

	// DESCRIPTIVE
	SolutionText string `json:"solution_text,omitempty" validate:"max=10000"`
}

// Question is the raw, solution-carrying question document.
type Question struct {
	ID               uuid.UUID    `json:"id"`
	Type             QuestionType `json:"type" validate:"required"`
	Text             string       `json:"text" validate:"required,max=5000"`
	Hint             string       `json:"hint,omitempty" validate:"max=2000"`
	IsParameterized  bool         `json:"is_parameterized"`
	Parameters       []Parameter  `json:"parameters,omitempty" validate:"dive"`
	Points           float64      `json:"points" validate:"gte=0"`
	TimeLimitSeconds int          `json:"time_limit_seconds,omitempty" validate:"gte=0"`
	Solution         Solution     `json:"solution"`
}

// LotItems returns every lot item the question carries, in authored order.
func (q *Question) LotItems() []LotItem {
	switch q.Type {
	case QuestionTypeSelectOneInLot:
		items := make([]LotItem, 0, 1+len(q.Solution.IncorrectLotItems))
		if q.Solution.CorrectLotItem != nil {
			items = append(items, *q.Solution.CorrectLotItem)
		}
		return append(items, q.Solution.IncorrectLotItems...)
	case QuestionTypeSelectManyInLot:
		items := make([]LotItem, 0, len(q.Solution.CorrectLotItems)+len(q.Solution.IncorrectLotItems))
		items = append(items, q.Solution.CorrectLotItems...)
		return append(items, q.Solution.IncorrectLotItems...)
	case QuestionTypeOrderTheLots:
		items := make([]LotItem, 0, len(q.Solution.Ordering))
		for _, o := range q.Solution.Ordering {
			items = append(items, o.LotItem)
		}
		return items
	}
	return nil
}

// EnsureIDs assigns fresh identifiers to the question and to every lot item
// that was authored without one.
func (q *Question) EnsureIDs() {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	fill := func(item *LotItem) {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
	}
	if q.Solution.CorrectLotItem != nil {
		fill(q.Solution.CorrectLotItem)
	}
	for i := range q.Solution.IncorrectLotItems {
		fill(&q.Solution.IncorrectLotItems[i])
	}
	for i := range q.Solution.CorrectLotItems {
		fill(&q.Solution.CorrectLotItems[i])
	}
	for i := range q.Solution.Ordering {
		fill(&q.Solution.Ordering[i].LotItem)
	}
}

// LotItemView is a lot item as presented to a student.
type LotItemView struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Explanation string `json:"explanation,omitempty"`
}

// RenderView is a question stripped of its solution with tags substituted.
type RenderView struct {
	ID               uuid.UUID     `json:"id"`
	Type             QuestionType  `json:"type"`
	Text             string        `json:"text"`
	Hint             string        `json:"hint,omitempty"`
	IsParameterized  bool          `json:"is_parameterized"`
	Points           float64       `json:"points"`
	TimeLimitSeconds int           `json:"time_limit_seconds,omitempty"`
	LotItems         []LotItemView `json:"lot_items,omitempty"`
	DecimalPrecision *int          `json:"decimal_precision,omitempty"`
	ParameterMap     ParameterMap  `json:"parameter_map,omitempty"`
}

// ─── Requests ────────────────────────────────────────────────────────────────

// QuestionRequest is the payload for validating or creating a question.
type QuestionRequest struct {
	Question Question `json:"question" binding:"required"`
}

// ListQuestionsQuery holds the query parameters of the question listing.
type ListQuestionsQuery struct {
	Page    int    `form:"page" binding:"omitempty,gte=1"`
	PerPage int    `form:"per_page" binding:"omitempty,gte=1,lte=100"`
	Type    string `form:"type" binding:"omitempty,question_type"`
}
