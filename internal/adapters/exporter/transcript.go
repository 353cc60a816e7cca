// Package exporter сериализует историю в текстовый транскрипт, который
// принимает импорт чатов Telegram.
package exporter

import (
	"fmt"
	"time"

	"vk-tg-transfer/internal/domain"
)

// transcriptDateLayout — формат даты в транскрипте: 24.02.2022, 05:00.
const transcriptDateLayout = "02.01.2006, 15:04"

// WhatsAppAndroidEncoder кодирует историю в формат экспорта WhatsApp для
// Android: именно его Telegram распознаёт при импорте из файла.
// Известное ограничение: текст сообщения, совпадающий по форме со строкой
// заголовка транскрипта, не экранируется и порвёт разбор на стороне Telegram.
type WhatsAppAndroidEncoder struct {
	location *time.Location
}

// NewWhatsAppAndroidEncoder создает кодировщик. Метки времени печатаются
// во времени location.
func NewWhatsAppAndroidEncoder(location *time.Location) *WhatsAppAndroidEncoder {
	return &WhatsAppAndroidEncoder{location: location}
}

// Encode сериализует историю. Сообщения обязаны идти по неубыванию времени,
// в личной переписке участников не больше двух.
func (e *WhatsAppAndroidEncoder) Encode(history *domain.TgChatHistory) (string, error) {
	if len(history.Messages) == 0 {
		return "", fmt.Errorf("no messages provided")
	}
	for i := 1; i < len(history.Messages); i++ {
		if history.Messages[i].Ts.Before(history.Messages[i-1].Ts) {
			return "", fmt.Errorf("messages must be sorted by timestamp")
		}
	}
	if !history.IsGroup() {
		users := make(map[string]struct{})
		for _, msg := range history.Messages {
			users[msg.User] = struct{}{}
		}
		if len(users) > 2 {
			return "", fmt.Errorf("private chat contains too many users: %d", len(users))
		}
	}

	chunks := e.initialChunks(history)
	for _, msg := range history.Messages {
		chunks = append(chunks, e.encodeMessage(msg))
	}
	// Завершающий перевод строки: без него Telegram может потерять
	// последнее сообщение.
	chunks = append(chunks, "")

	var out string
	for i, chunk := range chunks {
		if i > 0 {
			out += "\n"
		}
		out += chunk
	}
	return out, nil
}

func (e *WhatsAppAndroidEncoder) encodeTimestamp(ts time.Time) string {
	return ts.In(e.location).Format(transcriptDateLayout)
}

func (e *WhatsAppAndroidEncoder) encodeMessage(msg domain.TgMessage) string {
	header := fmt.Sprintf("%s - %s", e.encodeTimestamp(msg.Ts), msg.User)
	body := ""
	if msg.Attachment != nil {
		body = fmt.Sprintf("%s (file attached)", msg.Attachment.Name())
	}
	if msg.Text != "" {
		if body != "" {
			body += "\n"
		}
		body += msg.Text
	}
	return fmt.Sprintf("%s: %s", header, body)
}

// initialChunks строит преамбулу: Telegram не распознаёт транскрипт без
// служебных строк, а самое первое сообщение игнорирует, поэтому в начало
// добавляется строка-заглушка.
func (e *WhatsAppAndroidEncoder) initialChunks(history *domain.TgChatHistory) []string {
	first := history.Messages[0]
	tsStr := e.encodeTimestamp(first.Ts)

	var result []string
	if history.IsGroup() {
		result = []string{
			fmt.Sprintf("%s - You created group \"%s\"", tsStr, history.Title),
			tsStr + " - Messages you send to this group are now secured with end-to-end encryption. Tap for more info.",
		}
	} else {
		result = []string{
			tsStr + " - Messages you send to this chat and calls are now secured with end-to-end encryption. Tap for more info.",
		}
	}
	result = append(result, e.encodeMessage(domain.TgMessage{
		Ts:   first.Ts,
		User: first.User,
		Text: "Dummy line. Otherwise Telegram ignores first message",
	}))
	return result
}
