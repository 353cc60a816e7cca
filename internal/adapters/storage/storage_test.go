package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vk-tg-transfer/internal/domain"
)

func TestVkHistoryStorage(t *testing.T) {
	t.Run("LoadHistory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vk_messages.json")
		require.NoError(t, os.WriteFile(path, []byte(`{
			"raw_messages": [
				{
					"conversation_message_id": 1,
					"from_id": 100,
					"date": 1647302400,
					"text": "Hi!"
				},
				{
					"conversation_message_id": 2,
					"from_id": 101,
					"date": 1647302460,
					"text": "",
					"action": {"type": "chat_title_update", "text": "new title"}
				}
			],
			"title_opt": "Old friends",
			"photo_url_opt": "https://example.com/chat.jpg",
			"photo_size_opt": 200
		}`), 0o644))

		history, err := NewVkHistoryStorage().LoadHistory(path)
		require.NoError(t, err)

		assert.Equal(t, "Old friends", history.Title)
		require.NotNil(t, history.Photo)
		assert.Equal(t, "https://example.com/chat.jpg", history.Photo.URL)
		assert.Equal(t, 200, history.Photo.Width)

		require.Len(t, history.Messages, 2)
		assert.Equal(t, int64(100), history.Messages[0].FromID)
		assert.Equal(t, "Hi!", history.Messages[0].Text)
		assert.Equal(t, time.Unix(1647302400, 0).UTC(), history.Messages[0].Date)
		action, ok := history.Messages[1].Action.(domain.TitleUpdateAction)
		require.True(t, ok)
		assert.Equal(t, "new title", action.NewTitle)
	})

	t.Run("LoadHistoryWithoutOptionalFields", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vk_messages.json")
		require.NoError(t, os.WriteFile(path, []byte(`{
			"raw_messages": [],
			"title_opt": null,
			"photo_url_opt": null,
			"photo_size_opt": null
		}`), 0o644))

		history, err := NewVkHistoryStorage().LoadHistory(path)
		require.NoError(t, err)
		assert.Empty(t, history.Messages)
		assert.Empty(t, history.Title)
		assert.Nil(t, history.Photo)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := NewVkHistoryStorage().LoadHistory(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})

	t.Run("MalformedFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
		_, err := NewVkHistoryStorage().LoadHistory(path)
		assert.Error(t, err)
	})
}

func TestTgHistoryStorage(t *testing.T) {
	makeHistory := func(t *testing.T) *domain.TgChatHistory {
		t.Helper()
		ts := time.Date(2022, time.March, 15, 0, 0, 0, 0, time.UTC)
		text, err := domain.NewTgMessage(ts, "Tg 100", "Hi!", nil)
		require.NoError(t, err)
		withPhoto, err := domain.NewTgMessage(ts.Add(time.Minute), "Tg 101", "caption",
			domain.NewTgPhoto("export/FILE-0001.jpg"))
		require.NoError(t, err)
		voice, err := domain.NewTgVoice("export/FILE-0002.ogg", 7)
		require.NoError(t, err)
		withVoice, err := domain.NewTgMessage(ts.Add(2*time.Minute), "Tg 100", "", voice)
		require.NoError(t, err)
		return &domain.TgChatHistory{
			Messages: []domain.TgMessage{text, withPhoto, withVoice},
			Title:    "Old friends",
			Photo:    domain.NewTgPhoto("export/FILE-0003.jpg"),
		}
	}

	t.Run("SaveAndLoad", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tg_messages.json")
		saved := makeHistory(t)
		store := NewTgHistoryStorage()
		require.NoError(t, store.SaveHistory(saved, path))

		loaded, err := store.LoadHistory(path)
		require.NoError(t, err)
		assert.Equal(t, saved.Title, loaded.Title)
		require.NotNil(t, loaded.Photo)
		assert.Equal(t, saved.Photo.Path(), loaded.Photo.Path())

		require.Len(t, loaded.Messages, 3)
		assert.Equal(t, saved.Messages[0], loaded.Messages[0])
		photo, ok := loaded.Messages[1].Attachment.(*domain.TgPhoto)
		require.True(t, ok)
		assert.Equal(t, "export/FILE-0001.jpg", photo.Path())
		voice, ok := loaded.Messages[2].Attachment.(*domain.TgVoice)
		require.True(t, ok)
		assert.Equal(t, 7, voice.Duration)
	})

	t.Run("SaveRefusesToOverwrite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tg_messages.json")
		require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))
		err := NewTgHistoryStorage().SaveHistory(makeHistory(t), path)
		assert.Error(t, err)
		// Старое содержимое не тронуто.
		content, readErr := os.ReadFile(path)
		require.NoError(t, readErr)
		assert.Equal(t, "old", string(content))
	})
}

func TestContactsStorage(t *testing.T) {
	t.Run("SaveAndLoad", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "contacts_mapping.yaml")
		saved := []domain.ContactInfo{
			{VkID: 100, VkName: "Alice Vk", TgName: "Alice Tg"},
			{VkID: 200, VkName: "Bob Vk"},
		}
		store := NewContactsStorage()
		require.NoError(t, store.SaveContacts(saved, path))

		loaded, err := store.LoadContacts(path)
		require.NoError(t, err)
		assert.Equal(t, saved, loaded)
	})

	t.Run("HandEditedFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "contacts_mapping.yaml")
		require.NoError(t, os.WriteFile(path, []byte(
			"- vk_id: 100\n  vk_name: Alice Vk\n  tg_name: Alice Tg\n"+
				"- vk_id: 200\n  vk_name: Bob Vk\n"), 0o644))

		loaded, err := NewContactsStorage().LoadContacts(path)
		require.NoError(t, err)
		require.Len(t, loaded, 2)
		assert.Equal(t, "Alice Tg", loaded[0].TgName)
		assert.Empty(t, loaded[1].TgName)
	})

	t.Run("ContactWithoutIdIsRejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "contacts_mapping.yaml")
		require.NoError(t, os.WriteFile(path, []byte("- vk_name: Alice\n"), 0o644))
		_, err := NewContactsStorage().LoadContacts(path)
		assert.Error(t, err)
	})
}
