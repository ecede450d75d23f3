package handler

import (
	"errors"
	"net/http"

	"github.com/edukita/securexam-backend/internal/middleware"
	"github.com/edukita/securexam-backend/internal/model"
	"github.com/edukita/securexam-backend/internal/response"
	"github.com/edukita/securexam-backend/internal/service"
	"github.com/edukita/securexam-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionHandler handles the student-facing exam session endpoints.
type SessionHandler struct {
	sessions    *service.SessionService
	proctor     *service.ProctorService
	submissions *service.SubmissionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(
	sessions *service.SessionService,
	proctor *service.ProctorService,
	submissions *service.SubmissionService,
) *SessionHandler {
	return &SessionHandler{
		sessions:    sessions,
		proctor:     proctor,
		submissions: submissions,
	}
}

// StartSession godoc
// POST /api/v1/exams/:exam_id/sessions
// Starts or resumes the student's session for an exam.
func (h *SessionHandler) StartSession(c *gin.Context) {
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

	var req model.StartSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	client := model.ClientInfo{
		Address: c.ClientIP(),
		Agent:   c.Request.UserAgent(),
	}

	result, err := h.sessions.StartSession(c.Request.Context(), examID, identity.UserID(), client, &req)
	if err != nil {
		failFromService(c, err)
		return
	}

	status := http.StatusCreated
	if result.Resumed {
		status = http.StatusOK
	}
	response.Success(c, status, result)
}

// SubmitAnswer godoc
// PUT /api/v1/session/answers
// Upserts one working answer for the authenticated session.
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	claims := middleware.GetSessionClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	answer, err := h.submissions.SubmitAnswer(c.Request.Context(), claims.SessionID, &req)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"question_id": answer.QuestionID,
		"hash":        answer.Hash,
	})
}

// RecordEvent godoc
// POST /api/v1/session/events
// Reports one proctor telemetry event.
func (h *SessionHandler) RecordEvent(c *gin.Context) {
	claims := middleware.GetSessionClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.RecordEventRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	outcome, err := h.proctor.RecordEvent(c.Request.Context(), claims.SessionID, &req)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, outcome)
}

// SubmitExam godoc
// POST /api/v1/session/submit
// Finalizes the session. Grading happens in background.
func (h *SessionHandler) SubmitExam(c *gin.Context) {
	claims := middleware.GetSessionClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.SubmitExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	resp, err := h.submissions.SubmitExam(c.Request.Context(), claims.SessionID, &req)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusCreated, resp)
}

// GetSessionState godoc
// GET /api/v1/session
// Returns the session's current progress for client recovery.
func (h *SessionHandler) GetSessionState(c *gin.Context) {
	claims := middleware.GetSessionClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sess, err := h.sessions.GetSession(c.Request.Context(), claims.SessionID)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, sess)
}

// failFromService maps service sentinel errors onto the response envelope.
func failFromService(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrExamNotAvailable):
		response.Fail(c, http.StatusConflict, response.ErrExamNotAvailable)
	case errors.Is(err, service.ErrExamNotDraft):
		response.Fail(c, http.StatusConflict, response.ErrExamNotDraft)
	case errors.Is(err, service.ErrNoQuestions):
		response.Fail(c, http.StatusConflict, response.ErrNoQuestions)
	case errors.Is(err, service.ErrInvalidAccessCode):
		response.Fail(c, http.StatusForbidden, response.ErrAccessCodeInvalid)
	case errors.Is(err, service.ErrOutsideWindow):
		response.Fail(c, http.StatusForbidden, response.ErrExamWindowClosed)
	case errors.Is(err, service.ErrAlreadyCompleted):
		response.Fail(c, http.StatusConflict, response.ErrSessionCompleted)
	case errors.Is(err, service.ErrSessionTerminated):
		response.Fail(c, http.StatusConflict, response.ErrSessionTerminated)
	case errors.Is(err, service.ErrSessionFinalized):
		response.Fail(c, http.StatusConflict, response.ErrSessionNotMutable)
	case errors.Is(err, service.ErrDuplicateSubmission):
		response.Fail(c, http.StatusConflict, response.ErrDuplicateSubmission)
	case errors.Is(err, service.ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrTokenMismatch):
		response.Fail(c, http.StatusUnauthorized, response.ErrSessionOwnership)
	case errors.Is(err, service.ErrQuestionNotInExam):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrValidation)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
