package storage

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"vk-tg-transfer/internal/domain"
)

// ContactsStorage хранит соответствие контактов VK и Telegram в YAML-файле.
// Файл правится вручную, поэтому формат простой: список записей с vk_id,
// vk_name и необязательным tg_name.
type ContactsStorage struct{}

// NewContactsStorage создает хранилище контактов.
func NewContactsStorage() *ContactsStorage {
	return &ContactsStorage{}
}

// SaveContacts пишет соответствие контактов. Существующий файл
// перезаписывается: заготовку уточняют в несколько заходов.
func (s *ContactsStorage) SaveContacts(contacts []domain.ContactInfo, path string) error {
	data, err := yaml.Marshal(contacts)
	if err != nil {
		return fmt.Errorf("failed to encode contacts: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write contacts file: %w", err)
	}
	return nil
}

// LoadContacts читает соответствие контактов.
func (s *ContactsStorage) LoadContacts(path string) ([]domain.ContactInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read contacts file: %w", err)
	}
	var contacts []domain.ContactInfo
	if err := yaml.Unmarshal(data, &contacts); err != nil {
		return nil, fmt.Errorf("failed to parse contacts file %s: %w", path, err)
	}
	for i, c := range contacts {
		if c.VkID == 0 {
			return nil, fmt.Errorf("contact %d has no vk_id", i)
		}
	}
	return contacts, nil
}
