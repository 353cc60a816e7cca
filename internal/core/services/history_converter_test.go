package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vk-tg-transfer/internal/domain"
)

type fakeMessageConverter struct {
	result []domain.TgMessage
}

func (f *fakeMessageConverter) Convert(context.Context, []*domain.VkMessage) ([]domain.TgMessage, error) {
	return f.result, nil
}

func TestChatHistoryConverter(t *testing.T) {
	ctx := context.Background()
	tgMsg, err := domain.NewTgMessage(makeTs(0, 0), "Tg 100", "Hi!", nil)
	require.NoError(t, err)

	t.Run("ConvertsPhotoAndMessages", func(t *testing.T) {
		vkPhoto := domain.VkPhoto{URL: "https://example.com/chat.jpg"}
		tgPhoto := domain.NewTgPhoto("data/chat.jpg")
		media := &fakeMediaConverter{}
		media.add(vkPhoto, tgPhoto)
		converter := NewChatHistoryConverter(&fakeMessageConverter{result: []domain.TgMessage{tgMsg}}, media)

		history, err := converter.Convert(ctx, &domain.VkChatHistory{
			Messages: []*domain.VkMessage{{Date: makeTs(0, 0), FromID: 100, Text: "Hi!"}},
			Title:    "Old friends",
			Photo:    &vkPhoto,
		})
		require.NoError(t, err)
		assert.Equal(t, "Old friends", history.Title)
		assert.Same(t, tgPhoto, history.Photo)
		require.Len(t, history.Messages, 1)
		assert.Equal(t, "Hi!", history.Messages[0].Text)
	})

	t.Run("PhotoFailureIsNotFatal", func(t *testing.T) {
		vkPhoto := domain.VkPhoto{URL: "https://example.com/chat.jpg"}
		media := &fakeMediaConverter{}
		media.add(vkPhoto, nil)
		converter := NewChatHistoryConverter(&fakeMessageConverter{result: []domain.TgMessage{tgMsg}}, media)

		history, err := converter.Convert(ctx, &domain.VkChatHistory{
			Messages: []*domain.VkMessage{{Date: makeTs(0, 0), FromID: 100, Text: "Hi!"}},
			Photo:    &vkPhoto,
		})
		require.NoError(t, err)
		assert.Nil(t, history.Photo)
	})

	t.Run("NoPhoto", func(t *testing.T) {
		converter := NewChatHistoryConverter(&fakeMessageConverter{}, &fakeMediaConverter{})
		history, err := converter.Convert(ctx, &domain.VkChatHistory{})
		require.NoError(t, err)
		assert.Nil(t, history.Photo)
		assert.Empty(t, history.Messages)
	})
}
