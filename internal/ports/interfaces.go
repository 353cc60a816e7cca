package ports

import (
	"context"

	"vk-tg-transfer/internal/domain"
)

// NameResolver определяет интерфейс для разрешения имён пользователей и
// сообществ VK по их идентификаторам.
type NameResolver interface {
	// FullNames возвращает по одному имени на каждый входной id, сохраняя
	// порядок. Дубликаты допустимы.
	FullNames(ctx context.Context, ids []int64) ([]string, error)
	// FullName — частный случай FullNames для одного id.
	FullName(ctx context.Context, id int64) (string, error)
	// TryGetTgName ищет имя в заранее подготовленном соответствии контактов.
	// Сетевых вызовов не делает.
	TryGetTgName(id int64) (string, bool)
	// EgoID возвращает id аккаунта, от имени которого шла выгрузка.
	EgoID(ctx context.Context) (int64, error)
}

// MediaConverter определяет интерфейс для массовой конвертации вложений VK
// в медиа Telegram.
type MediaConverter interface {
	// TryConvert возвращает срез той же длины и порядка, что и вход;
	// nil в позиции означает, что конвертация не удалась или не поддержана.
	TryConvert(ctx context.Context, attachments []domain.Attachment) ([]domain.Media, error)
}

// MessageConverter определяет интерфейс для конвертации сообщений VK в
// плоскую последовательность сообщений Telegram.
type MessageConverter interface {
	Convert(ctx context.Context, messages []*domain.VkMessage) ([]domain.TgMessage, error)
}

// HistoryConverter определяет интерфейс для конвертации целой истории чата.
type HistoryConverter interface {
	Convert(ctx context.Context, history *domain.VkChatHistory) (*domain.TgChatHistory, error)
}

// VideoExtractor определяет интерфейс внешнего инструмента скачивания видео.
type VideoExtractor interface {
	// TryDownload скачивает видео по URL плеера в файл по шаблону и
	// возвращает итоговый путь. Неудача — это ok=false, не ошибка:
	// недокачанное видео не должно валить конвейер.
	TryDownload(ctx context.Context, playerURL, outputTemplate string) (path string, ok bool)
}

// VkHistoryStorage определяет интерфейс загрузки выгруженной истории VK.
type VkHistoryStorage interface {
	LoadHistory(path string) (*domain.VkChatHistory, error)
}

// TgHistoryStorage определяет интерфейс для сохранения и загрузки
// сконвертированной истории.
type TgHistoryStorage interface {
	SaveHistory(history *domain.TgChatHistory, path string) error
	LoadHistory(path string) (*domain.TgChatHistory, error)
}

// ContactsStorage определяет интерфейс для файла соответствия контактов.
type ContactsStorage interface {
	SaveContacts(contacts []domain.ContactInfo, path string) error
	LoadContacts(path string) ([]domain.ContactInfo, error)
}

// HistoryEncoder определяет интерфейс сериализации истории в текстовый
// транскрипт, который принимает импорт Telegram.
type HistoryEncoder interface {
	Encode(history *domain.TgChatHistory) (string, error)
}

// HistoryImporter определяет интерфейс воспроизведения истории через
// протокол импорта Telegram.
type HistoryImporter interface {
	Import(ctx context.Context, history *domain.TgChatHistory) error
}
