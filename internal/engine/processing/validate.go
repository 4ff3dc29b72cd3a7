package processing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/stemsi/quizengine/internal/engine/params"
	"github.com/stemsi/quizengine/internal/engine/template"
	"github.com/stemsi/quizengine/internal/model"
)

// Validate checks q against the rules of its variant. It never modifies q.
// Every failure is an *AuthoringError.
func (p *Processor) Validate(q *model.Question) error {
	v, ok := p.variants[q.Type]
	if !ok {
		return &AuthoringError{QuestionID: q.ID, Field: "type", Err: fmt.Errorf("%w: %q", ErrUnknownVariant, q.Type)}
	}
	if err := p.validateBase(q); err != nil {
		return err
	}
	if err := v.validate(q); err != nil {
		return err
	}
	p.log.Debug().Str("question_id", q.ID.String()).Str("type", string(q.Type)).Msg("question validated")
	return nil
}

func authoring(q *model.Question, field string, err error) error {
	return &AuthoringError{QuestionID: q.ID, Field: field, Err: err}
}

func (p *Processor) validateBase(q *model.Question) error {
	if err := p.validate.Struct(q); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			field := strings.TrimPrefix(fe.Namespace(), "Question.")
			return authoring(q, field, fmt.Errorf("failed on the '%s' rule", fe.Tag()))
		}
		return authoring(q, "", err)
	}

	if q.IsParameterized != (len(q.Parameters) > 0) {
		return authoring(q, "parameters", ErrParameterization)
	}

	seen := make(map[string]struct{}, len(q.Parameters))
	for i, param := range q.Parameters {
		field := fmt.Sprintf("parameters[%d]", i)
		if _, dup := seen[param.Name]; dup {
			return authoring(q, field, fmt.Errorf("%w: %q", ErrDuplicateParameter, param.Name))
		}
		seen[param.Name] = struct{}{}
		for _, v := range param.PossibleValues {
			if _, err := params.Coerce(param, v); err != nil {
				return authoring(q, field, err)
			}
		}
	}

	if q.IsParameterized && !p.tags.HasTags(q.Text) {
		return authoring(q, "text", ErrMissingTag)
	}
	if err := p.checkTags(q, "text", q.Text); err != nil {
		return err
	}
	return p.checkTags(q, "hint", q.Hint)
}

// checkTags validates the tags of one field. Tags in a question without
// parameters are rejected since they could never be substituted.
func (p *Processor) checkTags(q *model.Question, field, text string) error {
	if !p.tags.HasTags(text) {
		return nil
	}
	if !q.IsParameterized {
		return authoring(q, field, ErrTagsWithoutParameter)
	}
	if err := p.tags.ValidateTags(text, q.Parameters); err != nil {
		return authoring(q, field, err)
	}
	return nil
}

// validateLotItems enforces unique ids and, for parameterized questions, at
// least one tagged lot item.
func (p *Processor) validateLotItems(q *model.Question, field string, items []model.LotItem) error {
	if len(items) == 0 {
		return authoring(q, field, ErrNoLotItems)
	}

	ids := make(map[string]struct{}, len(items))
	tagged := false
	for i, item := range items {
		itemField := fmt.Sprintf("%s[%d]", field, i)
		if item.ID != "" {
			if _, dup := ids[item.ID]; dup {
				return authoring(q, itemField+".id", fmt.Errorf("%w: %q", ErrDuplicateLotItem, item.ID))
			}
			ids[item.ID] = struct{}{}
		}
		if p.tags.HasTags(item.Text) || p.tags.HasTags(item.Explanation) {
			tagged = true
		}
		if err := p.checkTags(q, itemField+".text", item.Text); err != nil {
			return err
		}
		if err := p.checkTags(q, itemField+".explanation", item.Explanation); err != nil {
			return err
		}
	}

	if q.IsParameterized && !tagged {
		return authoring(q, field, ErrMissingLotItemTag)
	}
	return nil
}

func (p *Processor) validateSelectOne(q *model.Question) error {
	if q.Solution.CorrectLotItem == nil {
		return authoring(q, "solution.correct_lot_item", ErrMissingAnswerKey)
	}
	if len(q.Solution.IncorrectLotItems) == 0 {
		return authoring(q, "solution.incorrect_lot_items", ErrNoLotItems)
	}
	return p.validateLotItems(q, "lot_items", q.LotItems())
}

func (p *Processor) validateSelectMany(q *model.Question) error {
	if len(q.Solution.CorrectLotItems) == 0 {
		return authoring(q, "solution.correct_lot_items", ErrMissingAnswerKey)
	}
	return p.validateLotItems(q, "lot_items", q.LotItems())
}

func (p *Processor) validateOrder(q *model.Question) error {
	if len(q.Solution.Ordering) == 0 {
		return authoring(q, "solution.ordering", ErrMissingAnswerKey)
	}
	orders := make(map[int]struct{}, len(q.Solution.Ordering))
	for i, o := range q.Solution.Ordering {
		if _, dup := orders[o.Order]; dup {
			return authoring(q, fmt.Sprintf("solution.ordering[%d].order", i), fmt.Errorf("%w: %d", ErrDuplicateOrder, o.Order))
		}
		orders[o.Order] = struct{}{}
	}
	return p.validateLotItems(q, "lot_items", q.LotItems())
}

// validateNumeric requires a literal value or an expression. When both are
// set the expression is authoritative and must itself be valid.
func (p *Processor) validateNumeric(q *model.Question) error {
	s := q.Solution
	if s.Expression == "" {
		if s.Value == nil {
			return authoring(q, "solution.value", ErrMissingAnswerKey)
		}
		return nil
	}

	expr, err := p.tags.ParseExpression(s.Expression)
	if err != nil {
		return authoring(q, "solution.expression", err)
	}
	declared := make(map[string]model.SemanticType, len(q.Parameters))
	for _, param := range q.Parameters {
		declared[param.Name] = param.Type
	}
	for _, name := range expr.Variables() {
		typ, ok := declared[name]
		if !ok {
			return authoring(q, "solution.expression", fmt.Errorf("%w: %q", template.ErrUndeclaredParameter, name))
		}
		if typ != model.SemanticTypeNumber {
			return authoring(q, "solution.expression", fmt.Errorf("%w: %q", template.ErrParameterType, name))
		}
	}
	return nil
}

func (p *Processor) validateDescriptive(q *model.Question) error {
	return p.checkTags(q, "solution.solution_text", q.Solution.SolutionText)
}
