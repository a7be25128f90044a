package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"echo-planner/internal/ai"
	"echo-planner/internal/bot"
	"echo-planner/internal/config"
	"echo-planner/internal/httpserver"
	"echo-planner/internal/repository"
	"echo-planner/internal/service"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zapLogger.Sync()
	logger := zapLogger.Sugar()

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalw("open db", "error", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	taskSvc := service.NewTaskService(taskRepo)
	reportSvc := service.NewReportService(taskSvc)

	// AI collaborators are capability-gated: without a key the bot and
	// the API run the plain path.
	var enricher *ai.Enricher
	var transcriber *ai.Client
	if cfg.AIEnabled() {
		client := ai.NewClient(cfg.OpenAI)
		enricher, err = ai.NewEnricher(client, logger)
		if err != nil {
			logger.Fatalw("create enricher", "error", err)
		}
		transcriber = client
		logger.Info("AI analysis enabled")
	} else {
		logger.Warn("OPENAI_API_KEY not set, AI analysis disabled")
	}

	telegramBot, err := bot.New(cfg.TelegramToken, userRepo, taskSvc, reportSvc, enricher, transcriber, &cfg, logger)
	if err != nil {
		logger.Fatalw("create bot", "error", err)
	}

	server, err := httpserver.New(httpserver.Config{
		Logger:     logger,
		Addr:       cfg.HTTPAddr,
		TaskSvc:    taskSvc,
		UserRepo:   userRepo,
		Enricher:   enricher,
		Dispatcher: telegramBot,
		RatePerMin: cfg.WebhookRatePerMin,
	})
	if err != nil {
		logger.Fatalw("create http server", "error", err)
	}

	if cfg.ReportInterval > 0 {
		scheduler := service.NewSchedulerService(time.Local)
		if _, err := scheduler.ScheduleInterval(cfg.ReportInterval, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := telegramBot.SendDailyReports(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warnw("daily reports", "error", err)
			}
		}); err != nil {
			logger.Fatalw("schedule reports", "error", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	go func() {
		if err := server.Run(ctx); err != nil {
			logger.Errorw("http server stopped", "error", err)
			stop()
		}
	}()

	logger.Info("Echo planner started")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalw("bot stopped", "error", err)
	}
	logger.Info("shutdown complete")
}
