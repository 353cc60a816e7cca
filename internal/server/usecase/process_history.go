// Package usecase инкапсулирует сценарий конвертации истории для серверного режима.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"vk-tg-transfer/internal/domain"
	"vk-tg-transfer/internal/pkg/config"
	"vk-tg-transfer/internal/ports"
)

// ConverterFactory собирает конвейер конвертации под конкретный запуск.
type ConverterFactory interface {
	Create(contacts []domain.ContactInfo, mediaExportDir string) (ports.HistoryConverter, error)
}

// ProcessHistoryUseCase инкапсулирует бизнес-логику обработки одного файла
// выгрузки VK: загрузка, конвертация, сохранение артефактов.
type ProcessHistoryUseCase struct {
	vkStorage ports.VkHistoryStorage
	tgStorage ports.TgHistoryStorage
	factory   ConverterFactory
	contacts  []domain.ContactInfo
	// exportBase — корень, под которым каждая задача получает свой
	// пустой каталог для медиафайлов.
	exportBase string
	log        *slog.Logger
}

// NewProcessHistoryUseCase создает новый экземпляр ProcessHistoryUseCase.
func NewProcessHistoryUseCase(
	vkStorage ports.VkHistoryStorage,
	tgStorage ports.TgHistoryStorage,
	factory ConverterFactory,
	contacts []domain.ContactInfo,
	exportBase string,
	log *slog.Logger,
) *ProcessHistoryUseCase {
	if log == nil {
		log = slog.Default()
	}
	return &ProcessHistoryUseCase{
		vkStorage:  vkStorage,
		tgStorage:  tgStorage,
		factory:    factory,
		contacts:   contacts,
		exportBase: exportBase,
		log:        log,
	}
}

// ProcessHistory конвертирует файл выгрузки VK в историю Telegram.
// Медиафайлы и итоговый JSON складываются в отдельный каталог задачи.
func (uc *ProcessHistoryUseCase) ProcessHistory(ctx context.Context, vkHistoryPath string) (*domain.TgChatHistory, error) {
	vkHistory, err := uc.vkStorage.LoadHistory(vkHistoryPath)
	if err != nil {
		return nil, fmt.Errorf("не удалось загрузить историю VK из %s: %w", vkHistoryPath, err)
	}
	uc.log.InfoContext(ctx, "Loaded VK history", "path", vkHistoryPath, "message_count", len(vkHistory.Messages))

	exportDir := filepath.Join(uc.exportBase, uuid.NewString())
	converter, err := uc.factory.Create(uc.contacts, exportDir)
	if err != nil {
		return nil, fmt.Errorf("не удалось собрать конвейер конвертации: %w", err)
	}

	tgHistory, err := converter.Convert(ctx, vkHistory)
	if err != nil {
		return nil, fmt.Errorf("не удалось сконвертировать историю: %w", err)
	}
	uc.log.InfoContext(ctx, "History converted", "message_count", len(tgHistory.Messages), "export_dir", exportDir)

	outPath := filepath.Join(exportDir, config.DefaultTgExportFile)
	if err := uc.tgStorage.SaveHistory(tgHistory, outPath); err != nil {
		return nil, fmt.Errorf("не удалось сохранить историю Telegram в %s: %w", outPath, err)
	}

	return tgHistory, nil
}
