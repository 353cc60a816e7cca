package ports

import (
	"context"

	"vk-tg-transfer/internal/domain"
)

// VkUser — минимальные сведения о пользователе из ответа users.get.
type VkUser struct {
	ID        int64
	FirstName string
	LastName  string
}

// VkGroup — минимальные сведения о сообществе из ответа groups.getById.
// ID положительный, как его отдаёт API.
type VkGroup struct {
	ID   int64
	Name string
}

// VkAPI определяет узкий интерфейс клиента VK API, который нужен конвертеру.
type VkAPI interface {
	// UsersGet разрешает пакет идентификаторов пользователей. Удалённые
	// аккаунты могут отсутствовать в ответе.
	UsersGet(ctx context.Context, ids []int64) ([]VkUser, error)
	// GroupsGetByID разрешает пакет идентификаторов сообществ
	// (положительные значения).
	GroupsGetByID(ctx context.Context, ids []int64) ([]VkGroup, error)
	// Ego возвращает аккаунт владельца токена.
	Ego(ctx context.Context) (VkUser, error)
	// VideoPlayerURL возвращает короткоживущий подписанный URL плеера.
	// Пустая строка без ошибки означает, что видео удалено или закрыто.
	VideoPlayerURL(ctx context.Context, video domain.VkVideo) (string, error)
}
