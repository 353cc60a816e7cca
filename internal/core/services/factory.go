package services

import (
	"fmt"
	"log/slog"
	"time"

	"vk-tg-transfer/internal/domain"
	"vk-tg-transfer/internal/pkg/config"
	"vk-tg-transfer/internal/ports"
)

// HistoryConverterFactory собирает полный конвейер конвертации на один
// запуск: резолвер имён, конвертер медиа с собственным каталогом экспорта и
// конвертер сообщений.
type HistoryConverterFactory struct {
	api      ports.VkAPI
	cfg      *config.Config
	location *time.Location
	log      *slog.Logger
}

// NewHistoryConverterFactory создает фабрику конвертеров истории.
func NewHistoryConverterFactory(api ports.VkAPI, cfg *config.Config, log *slog.Logger) (*HistoryConverterFactory, error) {
	location, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &HistoryConverterFactory{
		api:      api,
		cfg:      cfg,
		location: location,
		log:      log,
	}, nil
}

// Create создает конвертер истории. Каждый запуск получает свой резолвер и
// свой пустой каталог экспорта медиа.
func (f *HistoryConverterFactory) Create(contacts []domain.ContactInfo,
	mediaExportDir string) (ports.HistoryConverter, error) {
	resolver := NewUsernameResolver(f.api, contacts, f.log)

	extractor := NewVideoDownloader(VideoConfig{
		Retries:   f.cfg.Vk.MaxVideoDownloadRetries,
		MaxSizeMb: f.cfg.Vk.MaxVideoSizeMb,
		Quality:   f.cfg.Vk.VideoQuality(),
	}, WithVideoLogger(f.log))

	media, err := NewMediaConverter(f.api, extractor, mediaExportDir, MediaConfig{
		MaxNonVideoWorkers: int64(f.cfg.Vk.MaxNonVideoWorkers),
		MaxVideoWorkers:    int64(f.cfg.Vk.MaxVideoWorkers),
	}, WithMediaLogger(f.log))
	if err != nil {
		return nil, fmt.Errorf("failed to create media converter: %w", err)
	}

	messages := NewTgMessageConverter(f.location, resolver, media)
	return NewChatHistoryConverter(messages, media), nil
}
