package handler

import (
	"net/http"
	"strconv"

	"github.com/edukita/securexam-backend/internal/middleware"
	"github.com/edukita/securexam-backend/internal/model"
	"github.com/edukita/securexam-backend/internal/response"
	"github.com/edukita/securexam-backend/internal/service"
	"github.com/edukita/securexam-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ExamHandler handles the staff-facing exam management endpoints.
type ExamHandler struct {
	exams       *service.ExamService
	sessions    *service.SessionService
	submissions *service.SubmissionService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(
	exams *service.ExamService,
	sessions *service.SessionService,
	submissions *service.SubmissionService,
) *ExamHandler {
	return &ExamHandler{
		exams:       exams,
		sessions:    sessions,
		submissions: submissions,
	}
}

// ListExams godoc
// GET /api/v1/staff/exams
func (h *ExamHandler) ListExams(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	exams, total, err := h.exams.ListExams(c.Request.Context(), identity.BranchID, perPage, (page-1)*perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	totalPages := (total + perPage - 1) / perPage
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exams": exams}, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: totalPages,
	})
}

// CreateExam godoc
// POST /api/v1/staff/exams
func (h *ExamHandler) CreateExam(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.exams.CreateExam(c.Request.Context(), identity.BranchID, identity.UserID(), &req)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusCreated, exam)
}

// GetExam godoc
// GET /api/v1/staff/exams/:exam_id
func (h *ExamHandler) GetExam(c *gin.Context) {
	examID, ok := h.examParam(c)
	if !ok {
		return
	}
	exam, err := h.exams.GetExam(c.Request.Context(), examID)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, exam)
}

// UpdateExam godoc
// PATCH /api/v1/staff/exams/:exam_id
func (h *ExamHandler) UpdateExam(c *gin.Context) {
	examID, ok := h.examParam(c)
	if !ok {
		return
	}

	var req model.UpdateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.exams.UpdateExam(c.Request.Context(), examID, &req)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, exam)
}

// ReplaceQuestions godoc
// PUT /api/v1/staff/exams/:exam_id/questions
func (h *ExamHandler) ReplaceQuestions(c *gin.Context) {
	examID, ok := h.examParam(c)
	if !ok {
		return
	}

	var req model.ReplaceQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questions, err := h.exams.ReplaceQuestions(c.Request.Context(), examID, &req)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"count": len(questions)})
}

// PublishExam godoc
// POST /api/v1/staff/exams/:exam_id/publish
func (h *ExamHandler) PublishExam(c *gin.Context) {
	examID, ok := h.examParam(c)
	if !ok {
		return
	}
	exam, err := h.exams.Publish(c.Request.Context(), examID)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, exam)
}

// ArchiveExam godoc
// POST /api/v1/staff/exams/:exam_id/archive
func (h *ExamHandler) ArchiveExam(c *gin.Context) {
	examID, ok := h.examParam(c)
	if !ok {
		return
	}
	if err := h.exams.Archive(c.Request.Context(), examID); err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": model.ExamStatusArchived})
}

// ListSessions godoc
// GET /api/v1/staff/exams/:exam_id/sessions
func (h *ExamHandler) ListSessions(c *gin.Context) {
	examID, ok := h.examParam(c)
	if !ok {
		return
	}
	sessions, err := h.sessions.ListSessions(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sessions": sessions})
}

// TerminateSession godoc
// POST /api/v1/staff/sessions/:session_id/terminate
func (h *ExamHandler) TerminateSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req struct {
		Reason string `json:"reason" binding:"required,min=3,max=500"`
	}
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessions.Terminate(c.Request.Context(), sessionID, req.Reason); err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": model.SessionStatusTerminated})
}

// IntegrityReport godoc
// GET /api/v1/staff/exams/:exam_id/students/:student_id/integrity
func (h *ExamHandler) IntegrityReport(c *gin.Context) {
	examID, ok := h.examParam(c)
	if !ok {
		return
	}
	studentID := c.Param("student_id")
	if studentID == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	report, err := h.submissions.IntegrityReport(c.Request.Context(), examID, studentID)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, report)
}

// ListSubmissions godoc
// GET /api/v1/staff/exams/:exam_id/submissions
func (h *ExamHandler) ListSubmissions(c *gin.Context) {
	examID, ok := h.examParam(c)
	if !ok {
		return
	}
	subs, err := h.submissions.ListSubmissions(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"submissions": subs})
}

// VerifySubmission godoc
// GET /api/v1/staff/submissions/:submission_id/verify
// Recomputes the submission's tamper-evidence hashes.
func (h *ExamHandler) VerifySubmission(c *gin.Context) {
	submissionID, err := uuid.Parse(c.Param("submission_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	check, err := h.submissions.VerifyIntegrity(c.Request.Context(), submissionID)
	if err != nil {
		failFromService(c, err)
		return
	}
	if !check.Valid {
		response.FailWithFields(c, http.StatusConflict, response.ErrIntegrityViolation,
			findingsMap(check.Findings))
		return
	}
	response.Success(c, http.StatusOK, check)
}

func findingsMap(findings []string) map[string]string {
	out := make(map[string]string, len(findings))
	for i, f := range findings {
		out[strconv.Itoa(i)] = f
	}
	return out
}

func (h *ExamHandler) examParam(c *gin.Context) (uuid.UUID, bool) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return examID, true
}
