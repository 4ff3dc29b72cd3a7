// Package template finds and substitutes the parameter tags embedded in
// question text: <QParam>name</QParam>, <NumExpr>expr</NumExpr> and
// <NumExprTex>expr</NumExprTex>. Tags do not nest; text inside a tag is never
// scanned again.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/stemsi/quizengine/internal/engine/expression"
	"github.com/stemsi/quizengine/internal/model"
)

// TagKind is the closed set of recognized tags.
type TagKind int

const (
	TagQParam TagKind = iota + 1
	TagNumExpr
	TagNumExprTex
)

func (k TagKind) String() string {
	switch k {
	case TagQParam:
		return "QParam"
	case TagNumExpr:
		return "NumExpr"
	case TagNumExprTex:
		return "NumExprTex"
	}
	return "TagKind(" + strconv.Itoa(int(k)) + ")"
}

// One alternative per kind keeps opening and closing names paired without
// backreferences. Submatch group i+1 holds the inner text of kinds[i].
var (
	kinds   = []TagKind{TagQParam, TagNumExpr, TagNumExprTex}
	tagExpr = regexp.MustCompile(`(?s)<QParam>(.*?)</QParam>|<NumExpr>(.*?)</NumExpr>|<NumExprTex>(.*?)</NumExprTex>`)
)

var (
	ErrMissingParameter    = errors.New("parameter not present in parameter map")
	ErrUndeclaredParameter = errors.New("parameter is not declared")
	ErrParameterType       = errors.New("parameter must be of type 'number'")
)

// Tag is one recognized span of a text.
type Tag struct {
	Kind  TagKind
	Inner string
	// Start and End are byte offsets of the whole span, End exclusive.
	Start, End int
}

// TagError ties a failure to the tag that produced it.
type TagError struct {
	Tag Tag
	Err error
}

func (e *TagError) Error() string {
	return fmt.Sprintf("<%s>%s</%s>: %v", e.Tag.Kind, e.Tag.Inner, e.Tag.Kind, e.Err)
}

func (e *TagError) Unwrap() error { return e.Err }

// Engine validates and substitutes tags. The zero value is not usable; call New.
type Engine struct {
	maxExpressionLength int
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxExpressionLength bounds the source length of numeric expressions.
func WithMaxExpressionLength(n int) Option {
	return func(e *Engine) { e.maxExpressionLength = n }
}

func New(opts ...Option) *Engine {
	e := &Engine{maxExpressionLength: expression.DefaultMaxLength}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ParseExpression parses src under the engine's expression limits.
func (e *Engine) ParseExpression(src string) (*expression.Expression, error) {
	return expression.Parse(src, e.maxExpressionLength)
}

// ExtractTags returns every recognized tag in order of appearance.
func (e *Engine) ExtractTags(text string) []Tag {
	matches := tagExpr.FindAllStringSubmatchIndex(text, -1)
	tags := make([]Tag, 0, len(matches))
	for _, m := range matches {
		for i, kind := range kinds {
			lo, hi := m[2*(i+1)], m[2*(i+1)+1]
			if lo < 0 {
				continue
			}
			tags = append(tags, Tag{Kind: kind, Inner: text[lo:hi], Start: m[0], End: m[1]})
			break
		}
	}
	return tags
}

// HasTags reports whether text contains at least one recognized tag.
func (e *Engine) HasTags(text string) bool {
	return tagExpr.MatchString(text)
}

// ValidateTags checks every tag in text against the declared parameters: a
// QParam must name a declared parameter, and every variable of a numeric
// expression must be declared with the number type.
func (e *Engine) ValidateTags(text string, params []model.Parameter) error {
	declared := make(map[string]model.SemanticType, len(params))
	for _, p := range params {
		declared[p.Name] = p.Type
	}

	for _, tag := range e.ExtractTags(text) {
		if err := e.validateTag(tag, declared); err != nil {
			return &TagError{Tag: tag, Err: err}
		}
	}
	return nil
}

func (e *Engine) validateTag(tag Tag, declared map[string]model.SemanticType) error {
	switch tag.Kind {
	case TagQParam:
		name := strings.TrimSpace(tag.Inner)
		if _, ok := declared[name]; !ok {
			return fmt.Errorf("%w: %q", ErrUndeclaredParameter, name)
		}
		return nil
	case TagNumExpr, TagNumExprTex:
		expr, err := e.ParseExpression(tag.Inner)
		if err != nil {
			return err
		}
		for _, name := range expr.Variables() {
			typ, ok := declared[name]
			if !ok {
				return fmt.Errorf("%w: %q", ErrUndeclaredParameter, name)
			}
			if typ != model.SemanticTypeNumber {
				return fmt.Errorf("%w: %q", ErrParameterType, name)
			}
		}
		return nil
	}
	return fmt.Errorf("unhandled tag kind %s", tag.Kind)
}

// ProcessText replaces every tag in text with its value under pm. The result
// depends only on text and pm.
func (e *Engine) ProcessText(text string, pm model.ParameterMap) (string, error) {
	tags := e.ExtractTags(text)
	if len(tags) == 0 {
		return text, nil
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, tag := range tags {
		out, err := e.processTag(tag, pm)
		if err != nil {
			return "", &TagError{Tag: tag, Err: err}
		}
		b.WriteString(text[last:tag.Start])
		b.WriteString(out)
		last = tag.End
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

func (e *Engine) processTag(tag Tag, pm model.ParameterMap) (string, error) {
	switch tag.Kind {
	case TagQParam:
		name := strings.TrimSpace(tag.Inner)
		v, ok := pm[name]
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrMissingParameter, name)
		}
		return FormatValue(v), nil
	case TagNumExpr, TagNumExprTex:
		expr, err := e.ParseExpression(tag.Inner)
		if err != nil {
			return "", err
		}
		vars, err := numericBindings(expr.Variables(), pm)
		if err != nil {
			return "", err
		}
		if tag.Kind == TagNumExprTex {
			tex, err := expr.Tex(vars)
			if err != nil {
				return "", err
			}
			return "$" + tex + "$", nil
		}
		v, err := expr.Eval(vars)
		if err != nil {
			return "", err
		}
		return expression.Format(v), nil
	}
	return "", fmt.Errorf("unhandled tag kind %s", tag.Kind)
}

func numericBindings(names []string, pm model.ParameterMap) (map[string]float64, error) {
	vars := make(map[string]float64, len(names))
	for _, name := range names {
		v, ok := pm[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingParameter, name)
		}
		f, ok := ToFloat(v)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrParameterType, name)
		}
		vars[name] = f
	}
	return vars, nil
}

// Bindings converts the numeric entries of pm to expression bindings. Entries
// that are not numeric are skipped.
func Bindings(pm model.ParameterMap) map[string]float64 {
	vars := make(map[string]float64, len(pm))
	for name, v := range pm {
		if f, ok := ToFloat(v); ok {
			vars[name] = f
		}
	}
	return vars
}

// FormatValue renders a parameter value for substitution.
func FormatValue(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return expression.Format(v)
	case int:
		return strconv.Itoa(v)
	case json.Number:
		return v.String()
	}
	return fmt.Sprint(v)
}

// ToFloat coerces a parameter value to a number. Numeric strings are accepted.
func ToFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil && isFinite(f)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil && isFinite(f)
	}
	return 0, false
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
