package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/edukita/securexam-backend/internal/middleware"
	"github.com/edukita/securexam-backend/internal/monitor"
	"github.com/edukita/securexam-backend/internal/response"
	"github.com/edukita/securexam-backend/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const keepAliveInterval = 30 * time.Second

// MonitorHandler streams an exam's live monitoring feed to staff over SSE.
type MonitorHandler struct {
	hub   *monitor.Hub
	exams *service.ExamService
	log   zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(hub *monitor.Hub, exams *service.ExamService, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		hub:   hub,
		exams: exams,
		log:   log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorExamSSE godoc
// GET /api/v1/staff/exams/:exam_id/monitor
// Streams proctor events, status changes, and stats snapshots.
func (h *MonitorHandler) MonitorExamSSE(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	if _, err := h.exams.GetExam(c.Request.Context(), examID); err != nil {
		failFromService(c, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	frames, unsubscribe := h.hub.Subscribe(examID)
	defer unsubscribe()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	reqCtx := c.Request.Context()
	pingPayload, _ := json.Marshal(map[string]string{"kind": "ping"})

	h.log.Info().Str("exam_id", examID.String()).Msg("staff attached to monitor SSE")

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("exam_id", examID.String()).Msg("staff detached from monitor SSE")
			return

		case frame, ok := <-frames:
			if !ok {
				return
			}
			writeSSE(c, frame)

		case <-keepAlive.C:
			writeSSE(c, pingPayload)
		}
	}
}

func writeSSE(c *gin.Context, payload []byte) {
	c.Writer.Write([]byte("data: "))
	c.Writer.Write(payload)
	c.Writer.Write([]byte("\n\n"))
	c.Writer.Flush()
}
