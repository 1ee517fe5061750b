package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/lessonbot/internal/bot"
	"github.com/example/lessonbot/internal/catalog"
	"github.com/example/lessonbot/internal/config"
	"github.com/example/lessonbot/internal/database"
	"github.com/example/lessonbot/internal/logger"
	"github.com/example/lessonbot/internal/scheduler"
	"github.com/example/lessonbot/internal/stats"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zl.Sync()

	// Подключаемся к базе данных
	db, err := database.Connect(cfg.DBType, cfg.DSN())
	if err != nil {
		zl.Fatal("failed to connect to database", "driver", cfg.DBType, "error", err)
	}
	defer db.Close()

	if err := database.InitSchema(db); err != nil {
		zl.Fatal("failed to initialize schema", "error", err)
	}

	lessonRepo := database.NewLessonRepository(db)
	progressRepo := database.NewProgressRepository(db, cfg.ProgressBatchSize)
	userRepo := database.NewUserRepository(db)
	repairRepo := database.NewRepairRepository(db)

	engine := catalog.NewEngine(lessonRepo, progressRepo, repairRepo, zl.With("component", "catalog"))
	reports := stats.NewService(lessonRepo, progressRepo, userRepo, zl.With("component", "stats"))

	b := bot.New(cfg, bot.Deps{
		Lessons:  lessonRepo,
		Progress: progressRepo,
		Users:    userRepo,
		Engine:   engine,
		Stats:    reports,
		Log:      zl.With("component", "bot"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Планировщик: напоминания, отложенные исправления, ночной аудит
	if cfg.SchedulerEnabled {
		sched := scheduler.New(b, engine, userRepo, progressRepo, lessonRepo,
			scheduler.Options{StartHour: cfg.ReminderStartHour, EndHour: cfg.ReminderEndHour},
			zl.With("component", "scheduler"))
		if err := sched.Start(); err != nil {
			zl.Fatal("failed to start scheduler", "error", err)
		}
		defer sched.Stop()
	}

	// Горутина для обработки сигналов
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		zl.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	zl.Info("bot starting")
	if err := b.Start(ctx); err != nil {
		zl.Fatal("bot stopped with error", "error", err)
	}
	zl.Info("bot stopped")
}
