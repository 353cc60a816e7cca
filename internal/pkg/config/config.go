// Package config предоставляет управление конфигурацией приложения
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Vk содержит конфигурацию клиента VK и загрузки медиа
type Vk struct {
	AccessToken string `json:"access_token" yaml:"access_token"`
	APIVersion  string `json:"api_version" yaml:"api_version"`
	// Timezone — имя зоны IANA, в которой показываются даты исходных
	// сообщений. Пустое значение — локальная зона процесса.
	Timezone string `json:"timezone" yaml:"timezone"`

	MaxNonVideoWorkers int `json:"max_non_video_workers" yaml:"max_non_video_workers"`
	MaxVideoWorkers    int `json:"max_video_workers" yaml:"max_video_workers"`

	MaxVideoDownloadRetries int `json:"max_video_download_retries" yaml:"max_video_download_retries"`
	MaxVideoSizeMb          int `json:"max_video_size_mb" yaml:"max_video_size_mb"`
}

// Telegram содержит конфигурацию клиента Telegram для импорта
type Telegram struct {
	APIID       int    `json:"api_id" yaml:"api_id"`
	APIHash     string `json:"api_hash" yaml:"api_hash"`
	PhoneNumber string `json:"phone_number" yaml:"phone_number"`
	SessionFile string `json:"session_file" yaml:"session_file"`
}

// Server содержит конфигурацию сервера
type Server struct {
	Host                   string `json:"host" yaml:"host"`
	Port                   int    `json:"port" yaml:"port"`
	ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds"`
}

// Processing содержит конфигурацию фоновых задач конвертации
type Processing struct {
	TaskTimeoutSeconds int `json:"task_timeout_seconds" yaml:"task_timeout_seconds"` // 0 - без ограничений
	TaskTTLHours       int `json:"task_ttl_hours" yaml:"task_ttl_hours"`
}

// Logging содержит конфигурацию логирования
type Logging struct {
	Level string `json:"level" yaml:"level"` // debug, info, warn, error
}

// Config содержит конфигурацию приложения
type Config struct {
	Vk         Vk         `json:"vk" yaml:"vk"`
	Telegram   Telegram   `json:"telegram" yaml:"telegram"`
	Server     Server     `json:"server" yaml:"server"`
	Processing Processing `json:"processing" yaml:"processing"`
	Logging    Logging    `json:"logging" yaml:"logging"`
}

// Location возвращает часовой пояс для отображения дат исходных сообщений.
func (c *Config) Location() (*time.Location, error) {
	if c.Vk.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Vk.Timezone)
	if err != nil {
		return nil, fmt.Errorf("недопустимый часовой пояс %q: %w", c.Vk.Timezone, err)
	}
	return loc, nil
}

// Address возвращает адрес, на котором слушает HTTP-сервер.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ShutdownTimeout возвращает таймаут корректного завершения сервера.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// TaskTTL возвращает время жизни записи о задаче конвертации.
func (c *Config) TaskTTL() time.Duration {
	hours := c.Processing.TaskTTLHours
	if hours <= 0 {
		hours = DefaultTaskTTLHours
	}
	return time.Duration(hours) * time.Hour
}

// LoadConfig загружает конфигурацию приложения из переменных окружения, .env файла или config.yml
func LoadConfig() (*Config, error) {
	// Загрузка переменных окружения из .env файла, если он существует
	if err := godotenv.Load(); err != nil {
		// Отсутствие .env не ошибка: полагаемся на окружение или config.yml
	}

	cfg, err := loadFromYAML(DefaultConfigFile)
	if err != nil {
		// Если загрузка YAML не удалась, используем переменные окружения
		cfg, err = loadFromEnv()
		if err != nil {
			return nil, fmt.Errorf("не удалось загрузить конфигурацию из env: %w", err)
		}
	}

	applyDefaults(cfg)
	return cfg, nil
}

// loadFromYAML загружает конфигурацию из YAML-файла
func loadFromYAML(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать файл конфигурации %s: %w", filename, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("не удалось разобрать YAML конфигурацию: %w", err)
	}

	return &cfg, nil
}

// loadFromEnv загружает конфигурацию из переменных окружения
func loadFromEnv() (*Config, error) {
	accessToken := getEnv("VK_ACCESS_TOKEN", "")
	if accessToken == "" {
		return nil, fmt.Errorf("VK_ACCESS_TOKEN должен быть установлен в переменных окружения")
	}

	tgAPIID, err := getEnvInt("TG_API_ID", 0)
	if err != nil {
		return nil, err
	}
	serverPort, err := getEnvInt("SERVER_PORT", DefaultServerPort)
	if err != nil {
		return nil, err
	}
	taskTimeout, err := getEnvInt("TASK_TIMEOUT_SECONDS", 0)
	if err != nil {
		return nil, err
	}

	return &Config{
		Vk: Vk{
			AccessToken: accessToken,
			Timezone:    getEnv("VK_TIMEZONE", ""),
		},
		Telegram: Telegram{
			APIID:       tgAPIID,
			APIHash:     getEnv("TG_API_HASH", ""),
			PhoneNumber: getEnv("TG_PHONE_NUMBER", ""),
			SessionFile: getEnv("TG_SESSION_FILE", DefaultSessionFile),
		},
		Server: Server{
			Host: getEnv("SERVER_HOST", DefaultServerHost),
			Port: serverPort,
		},
		Processing: Processing{
			TaskTimeoutSeconds: taskTimeout,
		},
		Logging: Logging{
			Level: getEnv("LOG_LEVEL", DefaultLogLevel),
		},
	}, nil
}

// applyDefaults заполняет незаданные поля значениями по умолчанию
func applyDefaults(cfg *Config) {
	if cfg.Vk.APIVersion == "" {
		cfg.Vk.APIVersion = DefaultVkAPIVersion
	}
	if cfg.Vk.MaxNonVideoWorkers <= 0 {
		cfg.Vk.MaxNonVideoWorkers = DefaultMaxNonVideoWorkers
	}
	if cfg.Vk.MaxVideoWorkers <= 0 {
		cfg.Vk.MaxVideoWorkers = DefaultMaxVideoWorkers
	}
	if cfg.Vk.MaxVideoDownloadRetries <= 0 {
		cfg.Vk.MaxVideoDownloadRetries = DefaultMaxVideoDownloadRetries
	}
	if cfg.Vk.MaxVideoSizeMb <= 0 {
		cfg.Vk.MaxVideoSizeMb = DefaultMaxVideoSizeMb
	}
	if cfg.Telegram.SessionFile == "" {
		cfg.Telegram.SessionFile = DefaultSessionFile
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultServerHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.ShutdownTimeoutSeconds <= 0 {
		cfg.Server.ShutdownTimeoutSeconds = DefaultShutdownTimeoutSeconds
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
}

// VideoQuality возвращает селектор формата для внешнего загрузчика видео.
// См. https://github.com/yt-dlp/yt-dlp#format-selection
func (v *Vk) VideoQuality() string {
	return fmt.Sprintf("(bestvideo+bestaudio/best)[filesize<=?%dM]", v.MaxVideoSizeMb)
}

// getEnv получает переменную окружения или значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

// getEnvInt получает целочисленную переменную окружения или значение по умолчанию
func getEnvInt(key string, defaultValue int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("недопустимый %s: %w", key, err)
	}
	return parsed, nil
}
