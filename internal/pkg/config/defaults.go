package config

// Значения по умолчанию для незаданных полей конфигурации.
const (
	DefaultConfigFile = "config.yml"

	DefaultVkAPIVersion = "5.131"

	// Воркеры, скачивающие медиафайлы.
	DefaultMaxNonVideoWorkers = 10
	DefaultMaxVideoWorkers    = 5

	DefaultMaxVideoDownloadRetries = 5
	DefaultMaxVideoSizeMb          = 50

	// Контейнер, в который перекодируются видео вне разрешённого списка.
	DefaultVideoConversionFormat = "mp4"

	DefaultSessionFile = "tg.session"

	DefaultServerHost             = "0.0.0.0"
	DefaultServerPort             = 8080
	DefaultShutdownTimeoutSeconds = 10

	DefaultTaskTTLHours = 24

	DefaultLogLevel = "info"

	// Имена файлов-артефактов конвейера.
	DefaultVkExportFile        = "vk_messages.json"
	DefaultTgExportFile        = "tg_messages.json"
	DefaultMediaExportDir      = "exported_media"
	DefaultContactsMappingFile = "contacts_mapping.yaml"
)

// DefaultVideoAllowedFormats возвращает контейнеры, которые не требуют
// перекодирования. Уверенности, что Telegram принимает их все, нет.
func DefaultVideoAllowedFormats() []string {
	return []string{"mp4", "flv", "ogg", "mkv", "avi"}
}
