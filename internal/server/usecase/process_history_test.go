package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"vk-tg-transfer/internal/domain"
	"vk-tg-transfer/internal/ports"
)

type mockVkStorage struct{ mock.Mock }

func (m *mockVkStorage) LoadHistory(path string) (*domain.VkChatHistory, error) {
	args := m.Called(path)
	if res := args.Get(0); res != nil {
		return res.(*domain.VkChatHistory), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockTgStorage struct{ mock.Mock }

func (m *mockTgStorage) SaveHistory(history *domain.TgChatHistory, path string) error {
	args := m.Called(history, path)
	return args.Error(0)
}

func (m *mockTgStorage) LoadHistory(path string) (*domain.TgChatHistory, error) {
	args := m.Called(path)
	if res := args.Get(0); res != nil {
		return res.(*domain.TgChatHistory), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockFactory struct{ mock.Mock }

func (m *mockFactory) Create(contacts []domain.ContactInfo, mediaExportDir string) (ports.HistoryConverter, error) {
	args := m.Called(contacts, mediaExportDir)
	if res := args.Get(0); res != nil {
		return res.(ports.HistoryConverter), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockConverter struct{ mock.Mock }

func (m *mockConverter) Convert(ctx context.Context, history *domain.VkChatHistory) (*domain.TgChatHistory, error) {
	args := m.Called(ctx, history)
	if res := args.Get(0); res != nil {
		return res.(*domain.TgChatHistory), args.Error(1)
	}
	return nil, args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProcessHistoryUseCase(t *testing.T) {
	ctx := context.Background()
	vkHistory := &domain.VkChatHistory{}
	tgHistory := &domain.TgChatHistory{Title: "Friends"}
	contacts := []domain.ContactInfo{{VkID: 1, VkName: "Alice"}}

	t.Run("SuccessfulConversion", func(t *testing.T) {
		vkStorage := new(mockVkStorage)
		tgStorage := new(mockTgStorage)
		factory := new(mockFactory)
		converter := new(mockConverter)

		vkStorage.On("LoadHistory", "history.json").Return(vkHistory, nil).Once()
		factory.On("Create", contacts, mock.AnythingOfType("string")).Return(converter, nil).Once()
		converter.On("Convert", ctx, vkHistory).Return(tgHistory, nil).Once()
		tgStorage.On("SaveHistory", tgHistory, mock.AnythingOfType("string")).Return(nil).Once()

		uc := NewProcessHistoryUseCase(vkStorage, tgStorage, factory, contacts, "/tmp/export", testLogger())
		result, err := uc.ProcessHistory(ctx, "history.json")
		require.NoError(t, err)
		assert.Equal(t, tgHistory, result)

		// Каталог медиа уникален для каждой задачи и лежит под exportBase.
		exportDir := factory.Calls[0].Arguments.String(1)
		assert.True(t, strings.HasPrefix(exportDir, "/tmp/export/"))
		outPath := tgStorage.Calls[0].Arguments.String(1)
		assert.True(t, strings.HasPrefix(outPath, exportDir))

		vkStorage.AssertExpectations(t)
		factory.AssertExpectations(t)
		converter.AssertExpectations(t)
		tgStorage.AssertExpectations(t)
	})

	t.Run("LoadFailureIsWrapped", func(t *testing.T) {
		vkStorage := new(mockVkStorage)
		vkStorage.On("LoadHistory", "missing.json").Return(nil, errors.New("no such file")).Once()

		uc := NewProcessHistoryUseCase(vkStorage, new(mockTgStorage), new(mockFactory), nil, "/tmp/export", testLogger())
		_, err := uc.ProcessHistory(ctx, "missing.json")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing.json")
	})

	t.Run("ConversionFailureIsReturned", func(t *testing.T) {
		vkStorage := new(mockVkStorage)
		factory := new(mockFactory)
		converter := new(mockConverter)

		vkStorage.On("LoadHistory", "history.json").Return(vkHistory, nil).Once()
		factory.On("Create", mock.Anything, mock.AnythingOfType("string")).Return(converter, nil).Once()
		converter.On("Convert", ctx, vkHistory).Return(nil, errors.New("conversion broke")).Once()

		uc := NewProcessHistoryUseCase(vkStorage, new(mockTgStorage), factory, nil, "/tmp/export", testLogger())
		_, err := uc.ProcessHistory(ctx, "history.json")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "conversion broke")
	})

	t.Run("SaveFailureIsReturned", func(t *testing.T) {
		vkStorage := new(mockVkStorage)
		tgStorage := new(mockTgStorage)
		factory := new(mockFactory)
		converter := new(mockConverter)

		vkStorage.On("LoadHistory", "history.json").Return(vkHistory, nil).Once()
		factory.On("Create", mock.Anything, mock.AnythingOfType("string")).Return(converter, nil).Once()
		converter.On("Convert", ctx, vkHistory).Return(tgHistory, nil).Once()
		tgStorage.On("SaveHistory", tgHistory, mock.AnythingOfType("string")).Return(errors.New("disk full")).Once()

		uc := NewProcessHistoryUseCase(vkStorage, tgStorage, factory, nil, "/tmp/export", testLogger())
		_, err := uc.ProcessHistory(ctx, "history.json")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
	})
}
