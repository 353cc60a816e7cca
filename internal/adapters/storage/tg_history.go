package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"vk-tg-transfer/internal/domain"
)

// TgHistoryStorage сохраняет и загружает сконвертированную историю в JSON.
// Сохранение требует, чтобы файла ещё не было: перезапись уничтожила бы
// результат долгой конвертации.
type TgHistoryStorage struct{}

// NewTgHistoryStorage создает хранилище историй Telegram.
func NewTgHistoryStorage() *TgHistoryStorage {
	return &TgHistoryStorage{}
}

type tgMessageFile struct {
	Ts         time.Time       `json:"ts"`
	User       string          `json:"user"`
	Text       string          `json:"text"`
	Attachment json.RawMessage `json:"attachment,omitempty"`
}

type tgHistoryFile struct {
	Messages []tgMessageFile `json:"messages"`
	Title    string          `json:"title,omitempty"`
	Photo    *domain.TgPhoto `json:"photo,omitempty"`
}

// SaveHistory пишет историю в новый файл.
func (s *TgHistoryStorage) SaveHistory(history *domain.TgChatHistory, path string) error {
	file := tgHistoryFile{
		Messages: make([]tgMessageFile, 0, len(history.Messages)),
		Title:    history.Title,
		Photo:    history.Photo,
	}
	for _, msg := range history.Messages {
		entry := tgMessageFile{Ts: msg.Ts, User: msg.User, Text: msg.Text}
		if msg.Attachment != nil {
			raw, err := domain.MarshalMedia(msg.Attachment)
			if err != nil {
				return fmt.Errorf("failed to encode attachment: %w", err)
			}
			entry.Attachment = raw
		}
		file.Messages = append(file.Messages, entry)
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create history file: %w", err)
	}
	if _, err := dst.Write(data); err != nil {
		dst.Close()
		return fmt.Errorf("failed to write history file: %w", err)
	}
	return dst.Close()
}

// LoadHistory читает историю из файла.
func (s *TgHistoryStorage) LoadHistory(path string) (*domain.TgChatHistory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	var file tgHistoryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse history file %s: %w", path, err)
	}

	history := &domain.TgChatHistory{
		Messages: make([]domain.TgMessage, 0, len(file.Messages)),
		Title:    file.Title,
		Photo:    file.Photo,
	}
	for i, entry := range file.Messages {
		var media domain.Media
		if len(entry.Attachment) > 0 {
			media, err = domain.UnmarshalMedia(entry.Attachment)
			if err != nil {
				return nil, fmt.Errorf("failed to decode attachment of message %d: %w", i, err)
			}
		}
		msg, err := domain.NewTgMessage(entry.Ts, entry.User, entry.Text, media)
		if err != nil {
			return nil, fmt.Errorf("message %d is invalid: %w", i, err)
		}
		history.Messages = append(history.Messages, msg)
	}
	return history, nil
}
