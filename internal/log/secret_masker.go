package log

import (
	"context"
	"log/slog"
	"regexp"
)

// SecretMaskerHandler - обертка для slog.Handler, которая маскирует секреты в логах
type SecretMaskerHandler struct {
	handler slog.Handler
}

// NewSecretMaskerHandler создает новый обработчик с маскировкой секретов
func NewSecretMaskerHandler(handler slog.Handler) *SecretMaskerHandler {
	return &SecretMaskerHandler{
		handler: handler,
	}
}

// Маскируем токены VK (vk1.a.<...>) и подписанные параметры ссылок на медиа:
// у CDN-ссылок VK авторизация зашита в query-параметрах.
var (
	vkTokenRegex   = regexp.MustCompile(`\bvk1\.a\.[A-Za-z0-9_-]{20,}`)
	signedURLRegex = regexp.MustCompile(`([?&](?:access_token|sig|key|extra)=)[^&\s"']+`)
)

// maskSecrets заменяет найденные секреты на маску
func maskSecrets(text string) string {
	text = vkTokenRegex.ReplaceAllString(text, "vk1.a.***masked-token***")
	return signedURLRegex.ReplaceAllString(text, "${1}***")
}

// Enabled реализует интерфейс slog.Handler
func (h *SecretMaskerHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle реализует интерфейс slog.Handler
func (h *SecretMaskerHandler) Handle(ctx context.Context, record slog.Record) error {
	// Собираем новую запись: атрибуты оригинала нельзя менять на месте,
	// slog может переиспользовать их между обработчиками.
	r := slog.NewRecord(record.Time, record.Level, maskSecrets(record.Message), record.PC)

	record.Attrs(func(a slog.Attr) bool {
		r.AddAttrs(slog.Attr{
			Key:   a.Key,
			Value: maskAttributeValue(a.Value),
		})
		return true
	})

	return h.handler.Handle(ctx, r)
}

// maskAttributeValue маскирует секреты в значении атрибута, рекурсивно
// обходя группы
func maskAttributeValue(v slog.Value) slog.Value {
	switch v.Kind() {
	case slog.KindString:
		return slog.StringValue(maskSecrets(v.String()))
	case slog.KindGroup:
		attrs := v.Group()
		masked := make([]slog.Attr, 0, len(attrs))
		for _, a := range attrs {
			masked = append(masked, slog.Attr{Key: a.Key, Value: maskAttributeValue(a.Value)})
		}
		return slog.GroupValue(masked...)
	default:
		return v
	}
}

// WithAttrs реализует интерфейс slog.Handler
func (h *SecretMaskerHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		masked = append(masked, slog.Attr{Key: a.Key, Value: maskAttributeValue(a.Value)})
	}
	return &SecretMaskerHandler{handler: h.handler.WithAttrs(masked)}
}

// WithGroup реализует интерфейс slog.Handler
func (h *SecretMaskerHandler) WithGroup(name string) slog.Handler {
	return &SecretMaskerHandler{handler: h.handler.WithGroup(name)}
}
