// Команда importer заливает сконвертированную историю в существующий чат
// Telegram через протокол импорта.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gotd/td/tg"

	"vk-tg-transfer/internal/adapters/exporter"
	"vk-tg-transfer/internal/adapters/storage"
	"vk-tg-transfer/internal/adapters/telegram"
	"vk-tg-transfer/internal/log"
	"vk-tg-transfer/internal/pkg/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("import failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	historyPath := flag.String("history", config.DefaultTgExportFile, "путь к истории Telegram")
	peerTarget := flag.String("peer", "", "@username чата-получателя или self для Избранного")
	maxUploads := flag.Int("max-uploads", 4, "число одновременно загружаемых файлов")
	flag.Parse()

	if *peerTarget == "" {
		return fmt.Errorf("флаг -peer обязателен")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := log.NewLogger(cfg.Logging.Level)
	slog.SetDefault(logger)

	history, err := storage.NewTgHistoryStorage().LoadHistory(*historyPath)
	if err != nil {
		return fmt.Errorf("загрузка истории: %w", err)
	}
	logger.Info("History loaded", "path", *historyPath, "message_count", len(history.Messages))

	location, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := telegram.NewClient(telegram.ClientConfig{
		APIID:       cfg.Telegram.APIID,
		APIHash:     cfg.Telegram.APIHash,
		PhoneNumber: cfg.Telegram.PhoneNumber,
		SessionPath: cfg.Telegram.SessionFile,
	}, telegram.WithClientLogger(logger))

	return client.Run(ctx, func(ctx context.Context, api *tg.Client) error {
		peer, err := telegram.ResolvePeer(ctx, api, *peerTarget)
		if err != nil {
			return err
		}

		encoder := exporter.NewWhatsAppAndroidEncoder(location)
		importer, err := telegram.NewImporter(api, encoder, peer,
			telegram.WithImporterLogger(logger),
			telegram.WithMaxUploads(*maxUploads))
		if err != nil {
			return err
		}

		if err := importer.Import(ctx, history); err != nil {
			return err
		}
		fmt.Println("Import finished successfully")
		return nil
	})
}
