package services

import (
	"context"
	"fmt"

	"vk-tg-transfer/internal/domain"
	"vk-tg-transfer/internal/ports"
)

// ChatHistoryConverter конвертирует историю чата VK целиком: сообщения и
// фотографию чата, если она есть.
type ChatHistoryConverter struct {
	messages ports.MessageConverter
	media    ports.MediaConverter
}

// NewChatHistoryConverter создает конвертер истории.
func NewChatHistoryConverter(messages ports.MessageConverter, media ports.MediaConverter) *ChatHistoryConverter {
	return &ChatHistoryConverter{messages: messages, media: media}
}

// Convert конвертирует историю. Неудачная загрузка фотографии чата не
// считается ошибкой, история остаётся без фотографии.
func (c *ChatHistoryConverter) Convert(ctx context.Context, history *domain.VkChatHistory) (*domain.TgChatHistory, error) {
	var photo *domain.TgPhoto
	if history.Photo != nil {
		converted, err := c.media.TryConvert(ctx, []domain.Attachment{*history.Photo})
		if err != nil {
			return nil, fmt.Errorf("failed to convert chat photo: %w", err)
		}
		if len(converted) == 1 && converted[0] != nil {
			p, ok := converted[0].(*domain.TgPhoto)
			if !ok {
				return nil, fmt.Errorf("chat photo converted to unexpected media %T", converted[0])
			}
			photo = p
		}
	}

	messages, err := c.messages.Convert(ctx, history.Messages)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages: %w", err)
	}

	return &domain.TgChatHistory{
		Messages: messages,
		Title:    history.Title,
		Photo:    photo,
	}, nil
}
