package exporter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vk-tg-transfer/internal/domain"
)

func makeTs(hour, minute int) time.Time {
	return time.Date(2022, time.March, 15, hour, minute, 0, 0, time.UTC)
}

func mustMessage(t *testing.T, ts time.Time, user, text string, attachment domain.Media) domain.TgMessage {
	t.Helper()
	msg, err := domain.NewTgMessage(ts, user, text, attachment)
	require.NoError(t, err)
	return msg
}

func TestWhatsAppAndroidEncoder(t *testing.T) {
	enc := NewWhatsAppAndroidEncoder(time.UTC)

	t.Run("GroupChat", func(t *testing.T) {
		history := &domain.TgChatHistory{
			Messages: []domain.TgMessage{
				mustMessage(t, makeTs(12, 0), "Alice", "Hello", nil),
				mustMessage(t, makeTs(12, 5), "Bob", "Hi there", nil),
				mustMessage(t, makeTs(12, 7), "Carol", "Morning", nil),
			},
			Title: "Friends",
		}

		out, err := enc.Encode(history)
		require.NoError(t, err)
		assert.Equal(t,
			"15.03.2022, 12:00 - You created group \"Friends\"\n"+
				"15.03.2022, 12:00 - Messages you send to this group are now secured with end-to-end encryption. Tap for more info.\n"+
				"15.03.2022, 12:00 - Alice: Dummy line. Otherwise Telegram ignores first message\n"+
				"15.03.2022, 12:00 - Alice: Hello\n"+
				"15.03.2022, 12:05 - Bob: Hi there\n"+
				"15.03.2022, 12:07 - Carol: Morning\n",
			out)
	})

	t.Run("PrivateChat", func(t *testing.T) {
		history := &domain.TgChatHistory{
			Messages: []domain.TgMessage{
				mustMessage(t, makeTs(9, 30), "Alice", "ping", nil),
				mustMessage(t, makeTs(9, 31), "Bob", "pong", nil),
			},
		}

		out, err := enc.Encode(history)
		require.NoError(t, err)
		assert.Equal(t,
			"15.03.2022, 09:30 - Messages you send to this chat and calls are now secured with end-to-end encryption. Tap for more info.\n"+
				"15.03.2022, 09:30 - Alice: Dummy line. Otherwise Telegram ignores first message\n"+
				"15.03.2022, 09:30 - Alice: ping\n"+
				"15.03.2022, 09:31 - Bob: pong\n",
			out)
	})

	t.Run("AttachmentWithCaption", func(t *testing.T) {
		history := &domain.TgChatHistory{
			Messages: []domain.TgMessage{
				mustMessage(t, makeTs(10, 0), "Alice", "look at this", domain.NewTgPhoto("/export/FILE-0001.jpg")),
				mustMessage(t, makeTs(10, 1), "Alice", "", domain.NewTgDocument("/export/FILE-0002.pdf", "report")),
			},
			Title: "Friends",
		}

		out, err := enc.Encode(history)
		require.NoError(t, err)
		assert.Contains(t, out, "15.03.2022, 10:00 - Alice: FILE-0001.jpg (file attached)\nlook at this\n")
		assert.Contains(t, out, "15.03.2022, 10:01 - Alice: FILE-0002.pdf (file attached)\n")
	})

	t.Run("Timezone", func(t *testing.T) {
		moscow := time.FixedZone("UTC+3", 3*60*60)
		enc := NewWhatsAppAndroidEncoder(moscow)
		history := &domain.TgChatHistory{
			Messages: []domain.TgMessage{
				mustMessage(t, makeTs(12, 0), "Alice", "Hello", nil),
			},
			Title: "Friends",
		}

		out, err := enc.Encode(history)
		require.NoError(t, err)
		assert.Contains(t, out, "15.03.2022, 15:00 - Alice: Hello\n")
	})

	t.Run("EmptyHistoryIsError", func(t *testing.T) {
		_, err := enc.Encode(&domain.TgChatHistory{Title: "Friends"})
		assert.Error(t, err)
	})

	t.Run("UnsortedMessagesAreError", func(t *testing.T) {
		history := &domain.TgChatHistory{
			Messages: []domain.TgMessage{
				mustMessage(t, makeTs(12, 5), "Alice", "second", nil),
				mustMessage(t, makeTs(12, 0), "Bob", "first", nil),
			},
			Title: "Friends",
		}

		_, err := enc.Encode(history)
		assert.Error(t, err)
	})

	t.Run("PrivateChatWithThreeUsersIsError", func(t *testing.T) {
		history := &domain.TgChatHistory{
			Messages: []domain.TgMessage{
				mustMessage(t, makeTs(12, 0), "Alice", "a", nil),
				mustMessage(t, makeTs(12, 1), "Bob", "b", nil),
				mustMessage(t, makeTs(12, 2), "Carol", "c", nil),
			},
		}

		_, err := enc.Encode(history)
		assert.Error(t, err)
	})

	t.Run("ThreeUsersAreFineInGroup", func(t *testing.T) {
		history := &domain.TgChatHistory{
			Messages: []domain.TgMessage{
				mustMessage(t, makeTs(12, 0), "Alice", "a", nil),
				mustMessage(t, makeTs(12, 1), "Bob", "b", nil),
				mustMessage(t, makeTs(12, 2), "Carol", "c", nil),
			},
			Title: "Friends",
		}

		_, err := enc.Encode(history)
		assert.NoError(t, err)
	})
}
