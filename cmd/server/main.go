// Команда server запускает HTTP API асинхронной конвертации историй.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"vk-tg-transfer/internal/adapters/storage"
	"vk-tg-transfer/internal/adapters/vk"
	"vk-tg-transfer/internal/core/services"
	"vk-tg-transfer/internal/log"
	"vk-tg-transfer/internal/pkg/config"
	"vk-tg-transfer/internal/server"
	"vk-tg-transfer/internal/server/usecase"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}

// run инкапсулирует всю логику инициализации и запуска приложения.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := log.NewLogger(cfg.Logging.Level)
	slog.SetDefault(logger)

	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	api := vk.NewClient(cfg.Vk.AccessToken, cfg.Vk.APIVersion, vk.WithLogger(logger))
	factory, err := services.NewHistoryConverterFactory(api, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create converter factory: %w", err)
	}

	exportBase := filepath.Join(os.TempDir(), "vk-tg-transfer")
	processor := usecase.NewProcessHistoryUseCase(
		storage.NewVkHistoryStorage(),
		storage.NewTgHistoryStorage(),
		factory,
		nil, // в серверном режиме файл соответствия контактов не используется
		exportBase,
		logger,
	)

	taskStore := server.NewTaskStore()
	taskStore.StartCleanupTicker(appCtx, time.Hour)

	srv, err := server.New(cfg, processor, taskStore, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		logger.Info("Starting server", "addr", cfg.Address())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Signal received, shutting down...")
	appCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	<-serverDone
	logger.Info("Application exited gracefully")
	return nil
}
