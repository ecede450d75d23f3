package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edukita/securexam-backend/internal/config"
	"github.com/edukita/securexam-backend/internal/database"
	"github.com/edukita/securexam-backend/internal/handler"
	"github.com/edukita/securexam-backend/internal/logger"
	"github.com/edukita/securexam-backend/internal/monitor"
	"github.com/edukita/securexam-backend/internal/registry"
	"github.com/edukita/securexam-backend/internal/repository"
	"github.com/edukita/securexam-backend/internal/router"
	"github.com/edukita/securexam-backend/internal/secrets"
	"github.com/edukita/securexam-backend/internal/service"
	"github.com/edukita/securexam-backend/internal/validator"
	"github.com/edukita/securexam-backend/internal/worker"
	"github.com/rs/zerolog"
)

const (
	registryJanitorInterval = 5 * time.Minute
	registryMaxIdle         = 30 * time.Minute
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting SecurExam Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Secrets Keyring ───────────────────────────────────────────────
	secretManager, err := secrets.NewManager(cfg.EncryptionKeys, cfg.ActiveKeyID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize secrets keyring")
	}

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	submissionRepo := repository.NewSubmissionRepository(pool)
	eventRepo := repository.NewEventRepository(pool)

	// ─── Live Session Registry ─────────────────────────────────────────
	store := registry.New()
	store.StartJanitor(ctx, registryJanitorInterval, registryMaxIdle)

	// ─── Initialize Services ───────────────────────────────────────────
	tokenService := service.NewTokenService(cfg)
	examService := service.NewExamService(examRepo, questionRepo, secretManager, rdb, log)
	sessionService := service.NewSessionService(examService, sessionRepo, tokenService, store, rdb, log)
	proctorService := service.NewProctorService(sessionService, examService, sessionRepo, rdb, log)
	submissionService := service.NewSubmissionService(sessionService, examService, sessionRepo, submissionRepo, eventRepo, rdb, log)

	// ─── Monitor Hub ───────────────────────────────────────────────────
	hub := monitor.NewHub(ctx, rdb, sessionRepo, eventRepo, cfg.MonitorTick, cfg.MonitorWindow, log)

	// ─── Initialize Handlers ───────────────────────────────────────────
	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(sessionService, proctorService, submissionService),
		Exam:    handler.NewExamHandler(examService, sessionService, submissionService),
		Monitor: handler.NewMonitorHandler(hub, examService, log),
		WS:      handler.NewWSHandler(sessionService, proctorService, submissionService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ──────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	eventWorker := worker.NewEventWorker(eventRepo, rdb, log)
	go eventWorker.Start(workerCtx)

	for i := 0; i < cfg.GradingWorkers; i++ {
		gradingWorker := worker.NewGradingWorker(submissionRepo, examService, secretManager, rdb, log)
		go gradingWorker.Start(workerCtx)
	}

	sweeper := worker.NewSweeper(sessionRepo, sessionService, submissionService, examService, cfg.SweepInterval, log)
	go sweeper.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(tokenService, sessionService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
