package main

import (
	"context"
	"fmt"
	"time"

	"github.com/edukita/securexam-backend/internal/config"
	"github.com/edukita/securexam-backend/internal/database"
	"github.com/edukita/securexam-backend/internal/logger"
	"github.com/edukita/securexam-backend/internal/model"
	"github.com/edukita/securexam-backend/internal/repository"
	"github.com/edukita/securexam-backend/internal/secrets"
	"github.com/edukita/securexam-backend/internal/service"
	"github.com/google/uuid"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	secretManager, err := secrets.NewManager(cfg.EncryptionKeys, cfg.ActiveKeyID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build secrets keyring")
	}

	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	examService := service.NewExamService(examRepo, questionRepo, secretManager, rdb, log)

	fmt.Println("=== Seeding Demo Exam ===")

	branchID := uuid.New()
	authorID := "seed-tool"

	exam, err := examService.CreateExam(ctx, branchID, authorID, &model.CreateExamRequest{
		Title:              "General Knowledge Demo Exam",
		TotalMarks:         100,
		PassingMarks:       60,
		DurationMinutes:    45,
		GracePeriodMinutes: 5,
		ScheduledStart:     time.Now().Add(2 * time.Minute),
		AccessCode:         "DEMO-2024",
		Security: model.ExamSecurity{
			MaxTabSwitches:     3,
			RequireWebcam:      false,
			RequireLockdown:    false,
			RandomizeQuestions: true,
			AutoSubmit:         true,
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create exam")
	}
	fmt.Printf("Created exam %s (branch %s)\n", exam.ID, branchID)

	questions := []model.AddQuestionRequest{
		{
			Text:  "Which planet is known as the Red Planet?",
			Type:  string(model.QuestionTypeMultipleChoice),
			Marks: 20,
			Options: []model.Option{
				{ID: "a", Text: "Venus"},
				{ID: "b", Text: "Mars"},
				{ID: "c", Text: "Jupiter"},
				{ID: "d", Text: "Saturn"},
			},
			Answer:           "b",
			Difficulty:       "easy",
			Tags:             []string{"science"},
			RandomizeOptions: true,
		},
		{
			Text:   "The Great Wall of China is visible from the Moon with the naked eye.",
			Type:   string(model.QuestionTypeTrueFalse),
			Marks:  20,
			Answer: "false",
			Tags:   []string{"general"},
		},
		{
			Text:   "What is the chemical symbol for gold?",
			Type:   string(model.QuestionTypeShortAnswer),
			Marks:  20,
			Answer: "Au",
			Tags:   []string{"science"},
		},
		{
			Text:   "The capital city of Australia is ____.",
			Type:   string(model.QuestionTypeFillBlank),
			Marks:  20,
			Answer: "Canberra",
			Tags:   []string{"geography"},
		},
		{
			Text:       "Explain, in a short paragraph, why timezones exist.",
			Type:       string(model.QuestionTypeEssay),
			Marks:      20,
			Difficulty: "medium",
			Tags:       []string{"geography"},
		},
	}

	created, err := examService.ReplaceQuestions(ctx, exam.ID, &model.ReplaceQuestionsRequest{Questions: questions})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to seed questions")
	}
	fmt.Printf("Seeded %d questions\n", len(created))

	if _, err := examService.Publish(ctx, exam.ID); err != nil {
		log.Fatal().Err(err).Msg("Failed to publish exam")
	}

	fmt.Printf("\nSeed completed! Exam %s is PUBLISHED.\n", exam.ID)
	fmt.Println("Access code: DEMO-2024")
}
