package main

import (
	"net/http"

	"Taskly/internal/config"
	"Taskly/internal/handlers"
	"Taskly/internal/logger"
	"Taskly/internal/middleware"
	"Taskly/internal/repo"
	"Taskly/internal/service"
)

func main() {
	cfg := config.NewConfig()

	// регистратор zap в режиме development с уровнем из конфига
	zl, err := logger.NewServer(cfg.LogLevel)
	if err != nil {
		panic(err)
	}

	// делаем регистратор SugaredLogger
	sugar := zl.Sugar()
	middleware.SetLogger(sugar) // передаём логгер в middleware
	//сброс буфера логгера
	defer func() {
		if err := zl.Sync(); err != nil {
			sugar.Errorw("Failed to sync logger", "error", err)
		}
	}()

	gormDB, err := repo.InitDB(cfg.DatabaseDSN)
	if err != nil {
		sugar.Fatalw("failed to initialize database", "error", err)
	}

	userRepo := repo.NewUserRepository(gormDB)
	recordRepo := repo.NewRecordRepository(gormDB)

	userService := service.NewUserService(userRepo)
	recordService := service.NewRecordService(recordRepo, sugar)
	transcriber := service.NewTranscribeService(cfg.TranscribeURL, cfg.TranscribeAPIKey, 2*cfg.RemoteTimeout)
	if !transcriber.Enabled() {
		sugar.Warnw("transcription backend is not configured, /api/transcribe will answer 503")
	}

	h := handlers.NewHandler(userService, recordService, transcriber, sugar, cfg)

	addr := cfg.BaseURL

	sugar.Infow(
		"Starting server",
		"addr", addr,
	)

	sugar.Infow("Config",
		"BaseURL", cfg.BaseURL,
		"EnableHTTPS", cfg.EnableHTTPS,
		"DatabaseDSN", cfg.DatabaseDSN,
		"AudioMaxSizeMB", cfg.AudioMaxSizeMB,
	)

	if err := http.ListenAndServe(addr, h.Router); err != nil {
		sugar.Fatalw("Server failed", "error", err)
	}
}
