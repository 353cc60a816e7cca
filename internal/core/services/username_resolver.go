package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"vk-tg-transfer/internal/domain"
	"vk-tg-transfer/internal/ports"
)

// maxIdsPerRequest ограничивает размер одного пакетного запроса к VK API.
const maxIdsPerRequest = 500

// UsernameResolver реализует интерфейс NameResolver поверх VK API.
// Разрешённые имена кэшируются на всё время жизни резолвера; резолвер
// создаётся один раз на запуск конвертации и выбрасывается после.
type UsernameResolver struct {
	api   ports.VkAPI
	log   *slog.Logger
	cache map[int64]domain.ContactInfo

	egoID    int64
	egoKnown bool
}

// NewUsernameResolver создает резолвер с необязательным заранее
// подготовленным соответствием контактов.
func NewUsernameResolver(api ports.VkAPI, contacts []domain.ContactInfo, log *slog.Logger) *UsernameResolver {
	cache := make(map[int64]domain.ContactInfo, len(contacts))
	for _, c := range contacts {
		cache[c.VkID] = c
	}
	return &UsernameResolver{
		api:   api,
		log:   log,
		cache: cache,
	}
}

// TryGetTgName ищет имя Telegram в подготовленном соответствии. Сетевых
// вызовов не делает: соответствие заполняется только при создании.
func (r *UsernameResolver) TryGetTgName(id int64) (string, bool) {
	contact, ok := r.cache[id]
	if !ok || contact.TgName == "" {
		return "", false
	}
	return contact.TgName, true
}

// EgoID возвращает id владельца токена, запрашивая его один раз.
func (r *UsernameResolver) EgoID(ctx context.Context) (int64, error) {
	if r.egoKnown {
		return r.egoID, nil
	}
	ego, err := r.api.Ego(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve own account: %w", err)
	}
	r.egoID = ego.ID
	r.egoKnown = true
	return r.egoID, nil
}

// FullName разрешает одно имя.
func (r *UsernameResolver) FullName(ctx context.Context, id int64) (string, error) {
	names, err := r.FullNames(ctx, []int64{id})
	if err != nil {
		return "", err
	}
	return names[0], nil
}

// FullNames возвращает по одному имени на каждый id, сохраняя порядок.
// Неизвестные id добиваются двумя пакетными запросами: отрицательные id
// принадлежат сообществам, неотрицательные — пользователям.
func (r *UsernameResolver) FullNames(ctx context.Context, ids []int64) ([]string, error) {
	var userIDs, groupIDs []int64
	seen := make(map[int64]struct{})
	for _, id := range ids {
		if _, cached := r.cache[id]; cached {
			continue
		}
		if _, queued := seen[id]; queued {
			continue
		}
		seen[id] = struct{}{}
		if id >= 0 {
			userIDs = append(userIDs, id)
		} else {
			groupIDs = append(groupIDs, id)
		}
	}

	if err := r.resolveUsers(ctx, userIDs); err != nil {
		return nil, err
	}
	if err := r.resolveGroups(ctx, groupIDs); err != nil {
		return nil, err
	}

	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = r.cache[id].VkName
	}
	return names, nil
}

func (r *UsernameResolver) resolveUsers(ctx context.Context, ids []int64) error {
	for _, batch := range splitBatches(ids, maxIdsPerRequest) {
		users, err := r.api.UsersGet(ctx, batch)
		if err != nil {
			return fmt.Errorf("failed to resolve user names: %w", err)
		}
		byID := make(map[int64]ports.VkUser, len(users))
		for _, u := range users {
			byID[u.ID] = u
		}
		for _, id := range batch {
			user, found := byID[id]
			name := makeFullName(user)
			if !found {
				// Удалённые и заблокированные аккаунты выпадают из ответа,
				// но имя обязано появиться у каждого id.
				name = deletedName(id)
				r.log.Warn("User is missing from the batch response, using placeholder", "vk_id", id)
			}
			r.cache[id] = domain.ContactInfo{VkID: id, VkName: name}
		}
	}
	return nil
}

func (r *UsernameResolver) resolveGroups(ctx context.Context, ids []int64) error {
	for _, batch := range splitBatches(ids, maxIdsPerRequest) {
		request := make([]int64, len(batch))
		for i, id := range batch {
			request[i] = -id // API ждёт положительные идентификаторы.
		}
		groups, err := r.api.GroupsGetByID(ctx, request)
		if err != nil {
			return fmt.Errorf("failed to resolve group names: %w", err)
		}
		byID := make(map[int64]ports.VkGroup, len(groups))
		for _, g := range groups {
			byID[g.ID] = g
		}
		for _, id := range batch {
			group, found := byID[-id]
			name := group.Name
			if !found {
				name = deletedName(id)
				r.log.Warn("Group is missing from the batch response, using placeholder", "vk_id", id)
			}
			r.cache[id] = domain.ContactInfo{VkID: id, VkName: name}
		}
	}
	return nil
}

// deletedName — детерминированная заглушка для id, которые пакетный запрос
// не смог разрешить.
func deletedName(id int64) string {
	return fmt.Sprintf("DELETED (id%d)", id)
}

func makeFullName(user ports.VkUser) string {
	return strings.TrimSpace(user.FirstName + " " + user.LastName)
}

func splitBatches(ids []int64, size int) [][]int64 {
	var batches [][]int64
	for len(ids) > size {
		batches = append(batches, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		batches = append(batches, ids)
	}
	return batches
}
