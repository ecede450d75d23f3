package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/edukita/securexam-backend/internal/middleware"
	"github.com/edukita/securexam-backend/internal/model"
	"github.com/edukita/securexam-backend/internal/service"
	ws "github.com/edukita/securexam-backend/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty origins slice permits all origins (development mode).
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

// WSHandler multiplexes the session's answer, event, and submit operations
// over a single WebSocket for clients that prefer a stream to HTTP calls.
type WSHandler struct {
	sessions    *service.SessionService
	proctor     *service.ProctorService
	submissions *service.SubmissionService
	log         zerolog.Logger
	upgrader    websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(
	sessions *service.SessionService,
	proctor *service.ProctorService,
	submissions *service.SubmissionService,
	log zerolog.Logger,
	allowedOrigins []string,
) *WSHandler {
	return &WSHandler{
		sessions:    sessions,
		proctor:     proctor,
		submissions: submissions,
		log:         log.With().Str("component", "ws_handler").Logger(),
		upgrader:    buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/session/stream?token=...
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetSessionClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("session_id", claims.SessionID.String()).
		Str("student_id", claims.StudentID).
		Logger()
	wsLog.Info().Msg("student connected")

	ctx := c.Request.Context()

	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("unexpected close")
			} else {
				wsLog.Debug().Msg("connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionAnswer:
			h.handleAnswer(ctx, conn, claims, msg.Payload)
		case ws.ActionEvent:
			done := h.handleEvent(ctx, conn, claims, msg.Payload)
			if done {
				return
			}
		case ws.ActionSubmit:
			h.handleSubmit(ctx, conn, wsLog, claims, msg.Payload)
			return
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			ws.WriteError(conn, "unknown action")
		}
	}
}

func (h *WSHandler) handleAnswer(ctx context.Context, conn *websocket.Conn, claims *service.SessionClaims, payload json.RawMessage) {
	var req model.SubmitAnswerRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.QuestionID == "" {
		ws.WriteError(conn, "invalid answer payload")
		return
	}

	answer, err := h.submissions.SubmitAnswer(ctx, claims.SessionID, &req)
	if err != nil {
		ws.WriteError(conn, err.Error())
		return
	}
	ws.WriteTyped(conn, ws.AnswerResponse{
		Event:      ws.EventSuccess,
		QuestionID: answer.QuestionID,
		Hash:       answer.Hash,
	})
}

// handleEvent reports one proctor event. Returns true when the event
// terminated the session, in which case the stream closes.
func (h *WSHandler) handleEvent(ctx context.Context, conn *websocket.Conn, claims *service.SessionClaims, payload json.RawMessage) bool {
	var req model.RecordEventRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.EventID == "" {
		ws.WriteError(conn, "invalid event payload")
		return false
	}

	outcome, err := h.proctor.RecordEvent(ctx, claims.SessionID, &req)
	if err != nil {
		ws.WriteError(conn, err.Error())
		return false
	}

	event := ws.EventSuccess
	switch outcome.Action {
	case model.ActionWarn:
		event = ws.EventWarn
	case model.ActionTerminate:
		event = ws.EventTerminate
	}
	ws.WriteTyped(conn, ws.EventResponse{
		Event:          event,
		Action:         outcome.Action,
		IntegrityScore: outcome.IntegrityScore,
		Status:         outcome.Status,
	})
	return outcome.Action == model.ActionTerminate
}

func (h *WSHandler) handleSubmit(ctx context.Context, conn *websocket.Conn, wsLog zerolog.Logger, claims *service.SessionClaims, payload json.RawMessage) {
	var req model.SubmitExamRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			ws.WriteError(conn, "invalid submit payload")
			return
		}
	}

	resp, err := h.submissions.SubmitExam(ctx, claims.SessionID, &req)
	if err != nil {
		ws.WriteError(conn, err.Error())
		return
	}

	wsLog.Info().Str("submission_id", resp.SubmissionID.String()).Msg("submitted over stream")
	ws.WriteTyped(conn, ws.SubmittedResponse{
		Event:          ws.EventSubmitted,
		SubmissionID:   resp.SubmissionID.String(),
		IntegrityScore: resp.IntegrityScore,
		Status:         resp.Status,
	})
}
