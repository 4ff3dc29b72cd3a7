// Package processing validates, renders and grades questions. Every variant
// is a row in a dispatch table; nothing here performs I/O.
package processing

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/stemsi/quizengine/internal/engine/params"
	"github.com/stemsi/quizengine/internal/engine/template"
	"github.com/stemsi/quizengine/internal/model"
)

type substituteFunc func(field, text string) (string, error)

// renderScope carries the per-call inputs a variant renderer needs.
type renderScope struct {
	sub       substituteFunc
	orderSeed []string
}

type variant struct {
	validate func(q *model.Question) error
	render   func(q *model.Question, rs renderScope, view *model.RenderView) error
	grade    func(q *model.Question, ans model.Answer, s model.QuizSettings, pm model.ParameterMap) (*model.Feedback, error)
}

// Processor is the entry point of the engine. It is safe for concurrent use.
type Processor struct {
	tags     *template.Engine
	gen      *params.Generator
	validate *validator.Validate
	log      zerolog.Logger
	variants map[model.QuestionType]variant
}

// Option configures a Processor.
type Option func(*Processor)

// WithGenerator sets the source of parameter maps for renders without one.
func WithGenerator(g *params.Generator) Option {
	return func(p *Processor) { p.gen = g }
}

// WithTemplateEngine replaces the default tag engine.
func WithTemplateEngine(e *template.Engine) Option {
	return func(p *Processor) { p.tags = e }
}

// WithLogger attaches a logger; the default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(p *Processor) { p.log = log.With().Str("component", "processor").Logger() }
}

func New(opts ...Option) *Processor {
	p := &Processor{
		tags:     template.New(),
		gen:      params.NewRandomGenerator(),
		validate: newStructValidator(),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.variants = map[model.QuestionType]variant{
		model.QuestionTypeSelectOneInLot: {
			validate: p.validateSelectOne,
			render:   renderSelect,
			grade:    gradeSelectOne,
		},
		model.QuestionTypeSelectManyInLot: {
			validate: p.validateSelectMany,
			render:   renderSelect,
			grade:    gradeSelectMany,
		},
		model.QuestionTypeOrderTheLots: {
			validate: p.validateOrder,
			render:   renderOrder,
			grade:    gradeOrder,
		},
		model.QuestionTypeNumericAnswer: {
			validate: p.validateNumeric,
			render:   renderNumeric,
			grade:    p.gradeNumeric,
		},
		model.QuestionTypeDescriptive: {
			validate: p.validateDescriptive,
			render:   renderDescriptive,
			grade:    gradeDescriptive,
		},
	}
	return p
}

// supports reports whether t has a registered implementation.
func (p *Processor) supports(t model.QuestionType) bool {
	_, ok := p.variants[t]
	return ok
}

func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
