package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vk-tg-transfer/internal/domain"
)

type fakeContactsLister struct {
	names    []string
	err      error
	selfName string
	selfErr  error
}

func (f *fakeContactsLister) ContactNames(context.Context) ([]string, error) {
	return f.names, f.err
}

func (f *fakeContactsLister) SelfName(context.Context) (string, error) {
	return f.selfName, f.selfErr
}

type fakeContactsStorage struct {
	saved     []domain.ContactInfo
	savedPath string
	loaded    []domain.ContactInfo
	loadErr   error
}

func (f *fakeContactsStorage) SaveContacts(contacts []domain.ContactInfo, path string) error {
	f.saved = contacts
	f.savedPath = path
	return nil
}

func (f *fakeContactsStorage) LoadContacts(string) ([]domain.ContactInfo, error) {
	return f.loaded, f.loadErr
}

func historyWithAuthors(ids ...int64) *domain.VkChatHistory {
	history := &domain.VkChatHistory{}
	for _, id := range ids {
		history.Messages = append(history.Messages, &domain.VkMessage{FromID: id})
	}
	return history
}

func TestContactsManager(t *testing.T) {
	ctx := context.Background()

	t.Run("PrepareMappingMatchesTgContactsByName", func(t *testing.T) {
		// fakeNameResolver разрешает id N в "Vk N".
		lister := &fakeContactsLister{names: []string{"Vk 3", "Somebody Else"}}
		storage := &fakeContactsStorage{}
		manager := NewContactsManager(&fakeNameResolver{}, lister, storage, discardLogger())

		err := manager.PrepareMapping(ctx, historyWithAuthors(2, 3, 2), "mapping.yaml")
		require.NoError(t, err)

		assert.Equal(t, "mapping.yaml", storage.savedPath)
		// Контакты без имени Telegram идут первыми, черновик начинают с них.
		require.Equal(t, []domain.ContactInfo{
			{VkID: 2, VkName: "Vk 2"},
			{VkID: 3, VkName: "Vk 3", TgName: "Vk 3"},
		}, storage.saved)
	})

	t.Run("PrepareMappingUsesOwnTelegramName", func(t *testing.T) {
		// fakeNameResolver возвращает ego id 1. Даже если "Vk 1" найдётся
		// среди контактов, владельцу подставляется имя его аккаунта.
		lister := &fakeContactsLister{names: []string{"Vk 1", "Vk 2"}, selfName: "Tg Name"}
		storage := &fakeContactsStorage{}
		manager := NewContactsManager(&fakeNameResolver{}, lister, storage, discardLogger())

		err := manager.PrepareMapping(ctx, historyWithAuthors(2, 1), "mapping.yaml")
		require.NoError(t, err)

		require.Equal(t, []domain.ContactInfo{
			{VkID: 1, VkName: "Vk 1", TgName: "Tg Name"},
			{VkID: 2, VkName: "Vk 2", TgName: "Vk 2"},
		}, storage.saved)
	})

	t.Run("PrepareMappingSelfNameFailureIsWrapped", func(t *testing.T) {
		lister := &fakeContactsLister{selfErr: errors.New("empty profile")}
		manager := NewContactsManager(&fakeNameResolver{}, lister, &fakeContactsStorage{}, discardLogger())

		err := manager.PrepareMapping(ctx, historyWithAuthors(1), "mapping.yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty profile")
	})

	t.Run("PrepareMappingDeduplicatesAuthors", func(t *testing.T) {
		storage := &fakeContactsStorage{}
		manager := NewContactsManager(&fakeNameResolver{}, &fakeContactsLister{}, storage, discardLogger())

		err := manager.PrepareMapping(ctx, historyWithAuthors(7, 7, 7), "mapping.yaml")
		require.NoError(t, err)
		require.Len(t, storage.saved, 1)
		assert.Equal(t, int64(7), storage.saved[0].VkID)
	})

	t.Run("CheckMappingReportsUnknownNames", func(t *testing.T) {
		lister := &fakeContactsLister{names: []string{"Known Name"}}
		storage := &fakeContactsStorage{loaded: []domain.ContactInfo{
			{VkID: 1, VkName: "Vk 1", TgName: "Known Name"},
			{VkID: 2, VkName: "Vk 2", TgName: "Missing Name"},
			{VkID: 3, VkName: "Vk 3"},
		}}
		manager := NewContactsManager(&fakeNameResolver{}, lister, storage, discardLogger())

		wrong, err := manager.CheckMapping(ctx, "mapping.yaml")
		require.NoError(t, err)
		require.Len(t, wrong, 1)
		assert.Equal(t, int64(2), wrong[0].VkID)
	})

	t.Run("CheckMappingSkipsEmptyNames", func(t *testing.T) {
		storage := &fakeContactsStorage{loaded: []domain.ContactInfo{
			{VkID: 1, VkName: "Vk 1"},
		}}
		manager := NewContactsManager(&fakeNameResolver{}, &fakeContactsLister{}, storage, discardLogger())

		wrong, err := manager.CheckMapping(ctx, "mapping.yaml")
		require.NoError(t, err)
		assert.Empty(t, wrong)
	})

	t.Run("ListerFailureIsWrapped", func(t *testing.T) {
		lister := &fakeContactsLister{err: errors.New("not authorized")}
		manager := NewContactsManager(&fakeNameResolver{}, lister, &fakeContactsStorage{}, discardLogger())

		err := manager.PrepareMapping(ctx, historyWithAuthors(1), "mapping.yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not authorized")
	})
}
