package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stemsi/quizengine/internal/engine/processing"
	"github.com/stemsi/quizengine/internal/model"
)

// report is the outcome of checking one question document.
type report struct {
	Source       string             `json:"source"`
	Index        int                `json:"index"`
	Type         model.QuestionType `json:"type,omitempty"`
	Valid        bool               `json:"valid"`
	Error        string             `json:"error,omitempty"`
	Render       *model.RenderView  `json:"render,omitempty"`
	ParameterMap model.ParameterMap `json:"parameter_map,omitempty"`
	Feedback     *model.Feedback    `json:"feedback,omitempty"`
}

type options struct {
	render   bool
	answer   *model.Answer
	settings model.QuizSettings
}

// decodeQuestions accepts a single question object or an array of them.
func decodeQuestions(data []byte) ([]model.Question, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty document")
	}
	if data[0] == '[' {
		var qs []model.Question
		if err := json.Unmarshal(data, &qs); err != nil {
			return nil, fmt.Errorf("decode question list: %w", err)
		}
		return qs, nil
	}
	var q model.Question
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("decode question: %w", err)
	}
	return []model.Question{q}, nil
}

// check validates q and optionally renders and grades it with one shared
// parameter map.
func check(proc *processing.Processor, source string, index int, q model.Question, opts options) report {
	r := report{Source: source, Index: index, Type: q.Type}
	q.EnsureIDs()

	if err := proc.Validate(&q); err != nil {
		r.Error = err.Error()
		return r
	}
	r.Valid = true

	var pm model.ParameterMap
	if opts.render || opts.answer != nil {
		view, generated, err := proc.Render(&q, nil)
		if err != nil {
			r.Error = err.Error()
			return r
		}
		pm = generated
		r.ParameterMap = pm
		if opts.render {
			r.Render = view
		}
	}

	if opts.answer != nil {
		fb, err := proc.Grade(&q, *opts.answer, opts.settings, pm)
		if err != nil {
			r.Error = err.Error()
			return r
		}
		r.Feedback = fb
	}
	return r
}
