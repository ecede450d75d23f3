package router

import (
	"net/http"
	"time"

	"github.com/edukita/securexam-backend/internal/config"
	"github.com/edukita/securexam-backend/internal/handler"
	"github.com/edukita/securexam-backend/internal/middleware"
	"github.com/edukita/securexam-backend/internal/response"
	"github.com/edukita/securexam-backend/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	Exam    *handler.ExamHandler
	Monitor *handler.MonitorHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	tokens *service.TokenService,
	sessions *service.SessionService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Session starts carry access-code checks; keep code guessing slow.
	startLimiter := middleware.NewRateLimiter(10, time.Minute)

	// ─── 1. Session start (identity JWT, rate limited) ─────────────────
	examsAPI := router.Group("/api/v1/exams")
	examsAPI.Use(middleware.RequireStudentIdentity(cfg), startLimiter.Middleware())
	{
		examsAPI.POST("/:exam_id/sessions", handlers.Session.StartSession)
	}

	// ─── 2. Session scope (session token) ──────────────────────────────
	sessionAPI := router.Group("/api/v1/session")
	sessionAPI.Use(middleware.RequireSessionToken(tokens, sessions))
	{
		sessionAPI.GET("", handlers.Session.GetSessionState)
		sessionAPI.PUT("/answers", handlers.Session.SubmitAnswer)
		sessionAPI.POST("/events", handlers.Session.RecordEvent)
		sessionAPI.POST("/submit", handlers.Session.SubmitExam)
	}

	// ─── 3. WebSocket stream (session token via query) ─────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireSessionToken(tokens, sessions))
	{
		ws.GET("/session/stream", handlers.WS.SessionStream)
	}

	// ─── 4. Staff surface (staff identity JWT) ─────────────────────────
	staffAPI := router.Group("/api/v1/staff")
	staffAPI.Use(middleware.RequireStaff(cfg))
	{
		staffAPI.GET("/exams", handlers.Exam.ListExams)
		staffAPI.POST("/exams", handlers.Exam.CreateExam)
		staffAPI.GET("/exams/:exam_id", handlers.Exam.GetExam)
		staffAPI.PATCH("/exams/:exam_id", handlers.Exam.UpdateExam)
		staffAPI.PUT("/exams/:exam_id/questions", handlers.Exam.ReplaceQuestions)
		staffAPI.POST("/exams/:exam_id/publish", handlers.Exam.PublishExam)
		staffAPI.POST("/exams/:exam_id/archive", handlers.Exam.ArchiveExam)

		staffAPI.GET("/exams/:exam_id/sessions", handlers.Exam.ListSessions)
		staffAPI.GET("/exams/:exam_id/submissions", handlers.Exam.ListSubmissions)
		staffAPI.GET("/exams/:exam_id/students/:student_id/integrity", handlers.Exam.IntegrityReport)
		staffAPI.GET("/exams/:exam_id/monitor", handlers.Monitor.MonitorExamSSE)

		staffAPI.POST("/sessions/:session_id/terminate", handlers.Exam.TerminateSession)
		staffAPI.GET("/submissions/:submission_id/verify", handlers.Exam.VerifySubmission)
	}

	return router
}
