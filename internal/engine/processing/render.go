package processing

import (
	"strings"

	"github.com/stemsi/quizengine/internal/engine/params"
	"github.com/stemsi/quizengine/internal/model"
)

// RenderOption adjusts a single Render call.
type RenderOption func(*renderScope)

// WithOrderSeed mixes parts, typically an attempt id, into the seed that
// orders lot items. Renders with the same parts list items in the same order;
// without it the order depends on the question alone.
func WithOrderSeed(parts ...string) RenderOption {
	return func(rs *renderScope) { rs.orderSeed = append(rs.orderSeed, parts...) }
}

// Render produces the student view of q. A parameterized question without a
// map gets a freshly generated one; the map actually used is returned so the
// caller can keep it for grading. Questions without parameters never carry a
// map. Every failure is a *RenderError.
func (p *Processor) Render(q *model.Question, pm model.ParameterMap, opts ...RenderOption) (*model.RenderView, model.ParameterMap, error) {
	v, ok := p.variants[q.Type]
	if !ok {
		return nil, nil, &RenderError{QuestionID: q.ID, Field: "type", Err: ErrUnknownVariant}
	}

	if !q.IsParameterized {
		pm = nil
	} else if pm == nil {
		generated, err := p.gen.Generate(q.Parameters)
		if err != nil {
			return nil, nil, &RenderError{QuestionID: q.ID, Field: "parameters", Err: err}
		}
		pm = generated
	}

	sub := func(field, text string) (string, error) {
		if pm == nil {
			return text, nil
		}
		out, err := p.tags.ProcessText(text, pm)
		if err != nil {
			return "", &RenderError{QuestionID: q.ID, Field: field, Err: err}
		}
		return out, nil
	}

	view := &model.RenderView{
		ID:               q.ID,
		Type:             q.Type,
		IsParameterized:  q.IsParameterized,
		Points:           q.Points,
		TimeLimitSeconds: q.TimeLimitSeconds,
		ParameterMap:     pm,
	}
	var err error
	if view.Text, err = sub("text", q.Text); err != nil {
		return nil, nil, err
	}
	if view.Hint, err = sub("hint", q.Hint); err != nil {
		return nil, nil, err
	}
	rs := renderScope{sub: sub}
	for _, opt := range opts {
		opt(&rs)
	}
	if err := v.render(q, rs, view); err != nil {
		return nil, nil, err
	}

	p.log.Debug().Str("question_id", q.ID.String()).Str("type", string(q.Type)).Msg("question rendered")
	return view, pm, nil
}

// renderSelect lists every option. Explanations stay hidden until submission.
func renderSelect(q *model.Question, rs renderScope, view *model.RenderView) error {
	items, err := renderLotItems(q.LotItems(), rs.sub, false)
	if err != nil {
		return err
	}
	view.LotItems = shuffleLotItems(q, items, rs.orderSeed)
	return nil
}

func renderOrder(q *model.Question, rs renderScope, view *model.RenderView) error {
	items, err := renderLotItems(q.LotItems(), rs.sub, true)
	if err != nil {
		return err
	}
	view.LotItems = shuffleLotItems(q, items, rs.orderSeed)
	return nil
}

func renderNumeric(q *model.Question, _ renderScope, view *model.RenderView) error {
	precision := q.Solution.DecimalPrecision
	view.DecimalPrecision = &precision
	return nil
}

func renderDescriptive(*model.Question, renderScope, *model.RenderView) error {
	return nil
}

func renderLotItems(items []model.LotItem, sub substituteFunc, withExplanation bool) ([]model.LotItemView, error) {
	views := make([]model.LotItemView, len(items))
	for i, item := range items {
		text, err := sub("lot_items.text", item.Text)
		if err != nil {
			return nil, err
		}
		views[i] = model.LotItemView{ID: item.ID, Text: text}
		if withExplanation {
			if views[i].Explanation, err = sub("lot_items.explanation", item.Explanation); err != nil {
				return nil, err
			}
		}
	}
	return views, nil
}

// shuffleLotItems permutes items with a source seeded from the question, its
// lot item ids and any extra seed parts.
func shuffleLotItems(q *model.Question, items []model.LotItemView, extra []string) []model.LotItemView {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	parts := append([]string{"lot-order", q.ID.String(), strings.Join(ids, ",")}, extra...)
	g := params.NewSeededGenerator(parts...)
	g.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
	return items
}
