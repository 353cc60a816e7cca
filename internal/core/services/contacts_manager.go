package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"vk-tg-transfer/internal/domain"
	"vk-tg-transfer/internal/ports"
)

// TgContactsLister перечисляет отображаемые имена контактов Telegram
// авторизованного пользователя и его собственное имя.
type TgContactsLister interface {
	ContactNames(ctx context.Context) ([]string, error)
	SelfName(ctx context.Context) (string, error)
}

// ContactsManager готовит и проверяет файл соответствия контактов VK и
// Telegram. Файл правится вручную, поэтому важен стабильный порядок:
// сначала контакты без найденного имени Telegram.
type ContactsManager struct {
	resolver ports.NameResolver
	lister   TgContactsLister
	storage  ports.ContactsStorage
	log      *slog.Logger
}

// NewContactsManager создает новый экземпляр ContactsManager.
func NewContactsManager(resolver ports.NameResolver, lister TgContactsLister, storage ports.ContactsStorage, log *slog.Logger) *ContactsManager {
	if log == nil {
		log = slog.Default()
	}
	return &ContactsManager{resolver: resolver, lister: lister, storage: storage, log: log}
}

// PrepareMapping строит черновик файла соответствия по авторам сообщений
// истории: имена VK разрешаются через API, и если такое же имя есть среди
// контактов Telegram, оно подставляется как кандидат.
func (m *ContactsManager) PrepareMapping(ctx context.Context, history *domain.VkChatHistory, dstPath string) error {
	tgNames, err := m.contactNamesSet(ctx)
	if err != nil {
		return err
	}

	seen := make(map[int64]struct{})
	var userIDs []int64
	for _, msg := range history.Messages {
		if _, ok := seen[msg.FromID]; !ok {
			seen[msg.FromID] = struct{}{}
			userIDs = append(userIDs, msg.FromID)
		}
	}

	vkNames, err := m.resolver.FullNames(ctx, userIDs)
	if err != nil {
		return fmt.Errorf("failed to resolve vk names: %w", err)
	}

	contacts := make([]domain.ContactInfo, 0, len(userIDs))
	for i, id := range userIDs {
		contact := domain.ContactInfo{VkID: id, VkName: vkNames[i]}
		if _, found := tgNames[vkNames[i]]; found {
			contact.TgName = vkNames[i]
		}
		contacts = append(contacts, contact)
	}

	// Собственные сообщения импортируются от имени аккаунта Telegram,
	// поэтому владельцу выгрузки подставляется его имя из Telegram.
	egoID, err := m.resolver.EgoID(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve ego id: %w", err)
	}
	if _, ok := seen[egoID]; ok {
		selfName, err := m.lister.SelfName(ctx)
		if err != nil {
			return fmt.Errorf("failed to get own telegram name: %w", err)
		}
		for i := range contacts {
			if contacts[i].VkID == egoID {
				contacts[i].TgName = selfName
			}
		}
	}

	sort.Slice(contacts, func(i, j int) bool {
		a, b := contacts[i], contacts[j]
		if a.TgName != b.TgName {
			return a.TgName < b.TgName
		}
		if a.VkName != b.VkName {
			return a.VkName < b.VkName
		}
		return a.VkID < b.VkID
	})

	if err := m.storage.SaveContacts(contacts, dstPath); err != nil {
		return fmt.Errorf("failed to save contacts mapping: %w", err)
	}
	m.log.InfoContext(ctx, "Contacts mapping draft saved", "path", dstPath, "contact_count", len(contacts))
	return nil
}

// CheckMapping возвращает контакты, чье имя Telegram не найдено в списке
// контактов пользователя. Пустое имя пропускает проверку: так помечают
// контакты, которых в Telegram заведомо нет.
func (m *ContactsManager) CheckMapping(ctx context.Context, mappingPath string) ([]domain.ContactInfo, error) {
	tgNames, err := m.contactNamesSet(ctx)
	if err != nil {
		return nil, err
	}

	contacts, err := m.storage.LoadContacts(mappingPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load contacts mapping: %w", err)
	}

	var wrong []domain.ContactInfo
	for _, contact := range contacts {
		if contact.TgName == "" {
			continue
		}
		if _, found := tgNames[contact.TgName]; !found {
			wrong = append(wrong, contact)
		}
	}
	return wrong, nil
}

func (m *ContactsManager) contactNamesSet(ctx context.Context) (map[string]struct{}, error) {
	names, err := m.lister.ContactNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list telegram contacts: %w", err)
	}
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set, nil
}
