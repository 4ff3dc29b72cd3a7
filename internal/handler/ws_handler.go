package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizengine/internal/config"
	"github.com/stemsi/quizengine/internal/metrics"
	"github.com/stemsi/quizengine/internal/model"
	"github.com/stemsi/quizengine/internal/service"
	ws "github.com/stemsi/quizengine/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams an attempt's grading feedback to the student and accepts
// autosave and submit actions on the same connection.
type WSHandler struct {
	rdb            *redis.Client
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(rdb *redis.Client, attemptService *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		rdb:            rdb,
		attemptService: attemptService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// AttemptFeedback godoc
// WS /ws/v1/attempts/:attempt_id/feedback?token=...
// Pushes grading results as they are stored. Results are filtered by the
// settings the attempt was started with.
func (h *WSHandler) AttemptFeedback(c *gin.Context) {
	attemptID, ok := parseAttemptID(c)
	if !ok {
		return
	}

	// Resolve the attempt before upgrading so unknown IDs get a plain HTTP error.
	settings, err := h.attemptService.Settings(c.Request.Context(), attemptID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.Wrap(raw)
	defer conn.Close()

	metrics.FeedbackStreams.Inc()
	defer metrics.FeedbackStreams.Dec()

	wsLog := h.log.With().Str("attempt_id", attemptID.String()).Logger()
	wsLog.Info().Msg("Student connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := h.rdb.Subscribe(ctx, config.CacheKey.AttemptFeedbackChannel(attemptID.String()))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		wsLog.Error().Err(err).Msg("Subscribe failed")
		_ = conn.WriteError("feedback stream unavailable")
		return
	}

	go h.forwardResults(ctx, conn, sub, settings, wsLog)

	// A result stored before the client connected is sent right away.
	if view, err := h.attemptService.Result(ctx, attemptID); err == nil {
		_ = conn.WriteTyped(ws.GradedResponse{Event: ws.EventGraded, Result: view})
	} else if !errors.Is(err, service.ErrNotGraded) {
		wsLog.Warn().Err(err).Msg("Load stored result failed")
	}

	for {
		var msg ws.RequestPayload
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionAutosave:
			h.handleAutosave(ctx, conn, attemptID, &msg)
		case ws.ActionSubmit:
			h.handleSubmit(ctx, conn, wsLog, attemptID)
		case ws.ActionPing:
			_ = conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			_ = conn.WriteError("unknown action: " + string(msg.Action))
		}
	}
}

// forwardResults relays published results until ctx is cancelled.
func (h *WSHandler) forwardResults(ctx context.Context, conn *ws.Conn, sub *redis.PubSub, settings model.QuizSettings, log zerolog.Logger) {
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var res model.GradingResult
			if err := json.Unmarshal([]byte(msg.Payload), &res); err != nil {
				log.Error().Err(err).Msg("Invalid grading result payload")
				continue
			}
			view := service.BuildGradingResultView(&res, settings)
			if err := conn.WriteTyped(ws.GradedResponse{Event: ws.EventGraded, Result: view}); err != nil {
				log.Debug().Err(err).Msg("Write graded event failed")
				return
			}
		}
	}
}

func (h *WSHandler) handleAutosave(ctx context.Context, conn *ws.Conn, attemptID uuid.UUID, msg *ws.RequestPayload) {
	if msg.QuestionID == uuid.Nil || msg.Answer == nil {
		_ = conn.WriteError("question_id and answer are required")
		return
	}

	req := &model.SaveAnswerRequest{QuestionID: msg.QuestionID, Answer: *msg.Answer}
	if err := h.attemptService.SaveAnswer(ctx, attemptID, req); err != nil {
		if _, _, known := classify(err); known {
			_ = conn.WriteError(err.Error())
			return
		}
		h.log.Error().Err(err).Str("attempt_id", attemptID.String()).Msg("Autosave failed")
		_ = conn.WriteError("failed to save answer")
		return
	}

	_ = conn.WriteTyped(ws.SavedResponse{Event: ws.EventSaved, QuestionID: msg.QuestionID})
}

func (h *WSHandler) handleSubmit(ctx context.Context, conn *ws.Conn, log zerolog.Logger, attemptID uuid.UUID) {
	job, err := h.attemptService.Submit(ctx, attemptID, nil)
	if err != nil {
		log.Error().Err(err).Msg("Submit failed")
		_ = conn.WriteError("failed to submit attempt")
		return
	}

	log.Info().Msg("Attempt submitted for grading")
	_ = conn.WriteTyped(ws.QueuedResponse{Event: ws.EventQueued, AttemptID: job.AttemptID})
}
