// Package storage реализует файловые хранилища историй и контактов.
package storage

import (
	"encoding/json"
	"fmt"
	"os"

	"vk-tg-transfer/internal/domain"
)

// VkHistoryStorage загружает выгруженную историю VK из JSON-файла.
// Файл хранит сырые сообщения в том виде, в каком их отдал VK API.
type VkHistoryStorage struct{}

// NewVkHistoryStorage создает хранилище историй VK.
func NewVkHistoryStorage() *VkHistoryStorage {
	return &VkHistoryStorage{}
}

type vkHistoryFile struct {
	RawMessages []json.RawMessage `json:"raw_messages"`
	Title       *string           `json:"title_opt"`
	PhotoURL    *string           `json:"photo_url_opt"`
	PhotoSize   *int              `json:"photo_size_opt"`
}

// LoadHistory читает и разбирает файл истории.
func (s *VkHistoryStorage) LoadHistory(path string) (*domain.VkChatHistory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	var file vkHistoryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse history file %s: %w", path, err)
	}

	history := &domain.VkChatHistory{
		Messages: make([]*domain.VkMessage, 0, len(file.RawMessages)),
	}
	for i, raw := range file.RawMessages {
		msg, err := domain.ParseVkMessage(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse message %d: %w", i, err)
		}
		history.Messages = append(history.Messages, msg)
	}
	if file.Title != nil {
		history.Title = *file.Title
	}
	if file.PhotoURL != nil {
		photo := domain.VkPhoto{URL: *file.PhotoURL}
		if file.PhotoSize != nil {
			photo.Width = *file.PhotoSize
			photo.Height = *file.PhotoSize
		}
		history.Photo = &photo
	}
	return history, nil
}
