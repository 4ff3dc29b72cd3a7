package websocket

import (
	"github.com/google/uuid"
	"github.com/stemsi/quizengine/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestPayload carries every client action. Fields not used by an action
// are left empty.
type RequestPayload struct {
	Action     Action        `json:"action"`
	QuestionID uuid.UUID     `json:"question_id,omitempty"`
	Answer     *model.Answer `json:"answer,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError  Event = "error"
	EventSaved  Event = "saved"
	EventQueued Event = "queued"
	EventGraded Event = "graded"
	EventPong   Event = "pong"
)

type SavedResponse struct {
	Event      Event     `json:"event"`
	QuestionID uuid.UUID `json:"question_id"`
}

type QueuedResponse struct {
	Event     Event     `json:"event"`
	AttemptID uuid.UUID `json:"attempt_id"`
}

// GradedResponse pushes a grading result, already filtered by the quiz's
// visibility settings.
type GradedResponse struct {
	Event  Event                    `json:"event"`
	Result *model.GradingResultView `json:"result"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
