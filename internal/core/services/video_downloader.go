package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"vk-tg-transfer/internal/pkg/config"
)

// VideoConfig хранит конфигурацию для VideoDownloader.
type VideoConfig struct {
	// Binary — имя или путь исполняемого файла yt-dlp.
	Binary string
	// Retries — сколько раз yt-dlp повторяет оборванную загрузку.
	Retries int
	// MaxSizeMb — предел размера файла. Сервер без Content-Length может
	// его проигнорировать, поэтому предел мягкий.
	MaxSizeMb int
	// Quality — селектор формата yt-dlp, например "bestvideo+bestaudio/best".
	Quality string
	// AllowedFormats — контейнеры, которые отдаются как есть.
	AllowedFormats []string
	// ConversionFormat — контейнер, в который перекодируется всё остальное.
	ConversionFormat string
}

// VideoOption — функциональная опция для настройки VideoDownloader.
type VideoOption func(*VideoDownloader)

// WithVideoLogger устанавливает логгер для загрузчика видео.
func WithVideoLogger(l *slog.Logger) VideoOption {
	return func(d *VideoDownloader) {
		if l != nil {
			d.log = l
		}
	}
}

// withRunner подменяет запуск внешней команды. Только для тестов.
func withRunner(run func(ctx context.Context, name string, args ...string) (string, error)) VideoOption {
	return func(d *VideoDownloader) {
		d.run = run
	}
}

// VideoDownloader скачивает видео по URL плеера через внешний yt-dlp.
// Контейнеры вне разрешённого списка перекодируются средствами самого
// yt-dlp: Telegram не принимает, например, .webm как видео.
type VideoDownloader struct {
	cfg VideoConfig
	log *slog.Logger
	run func(ctx context.Context, name string, args ...string) (string, error)
}

// NewVideoDownloader создает загрузчик видео.
func NewVideoDownloader(cfg VideoConfig, opts ...VideoOption) *VideoDownloader {
	if cfg.Binary == "" {
		cfg.Binary = "yt-dlp"
	}
	if len(cfg.AllowedFormats) == 0 {
		cfg.AllowedFormats = config.DefaultVideoAllowedFormats()
	}
	if cfg.ConversionFormat == "" {
		cfg.ConversionFormat = config.DefaultVideoConversionFormat
	}
	d := &VideoDownloader{
		cfg: cfg,
		log: slog.Default(),
		run: runCommand,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// TryDownload скачивает видео в файл по шаблону yt-dlp и возвращает путь
// готового файла. Любая ошибка внешней команды превращается в ok=false.
func (d *VideoDownloader) TryDownload(ctx context.Context, playerURL, outputTemplate string) (string, bool) {
	args := []string{
		"--no-playlist",
		"--retries", fmt.Sprint(d.cfg.Retries),
		"--output", outputTemplate,
		// Путь печатается после всех пост-процессоров, то есть уже
		// с финальным расширением.
		"--print", "after_move:filepath",
		"--no-simulate",
		"--quiet",
	}
	if d.cfg.MaxSizeMb > 0 {
		args = append(args, "--max-filesize", fmt.Sprintf("%dM", d.cfg.MaxSizeMb))
	}
	if d.cfg.Quality != "" {
		args = append(args, "--format", d.cfg.Quality)
	}
	args = append(args, "--recode-video", d.recodeRule(), playerURL)

	out, err := d.run(ctx, d.cfg.Binary, args...)
	if err != nil {
		d.log.Error("External downloader failed", "url", playerURL, "error", err)
		return "", false
	}
	filePath := strings.TrimSpace(out)
	if filePath == "" {
		d.log.Error("External downloader printed no file path", "url", playerURL)
		return "", false
	}
	return filePath, true
}

// recodeRule строит правило --recode-video: разрешённые контейнеры
// отображаются сами в себя, а их yt-dlp не трогает, всё остальное
// перекодируется в целевой контейнер.
func (d *VideoDownloader) recodeRule() string {
	var rules []string
	for _, format := range d.cfg.AllowedFormats {
		if format == d.cfg.ConversionFormat {
			continue
		}
		rules = append(rules, format+">"+format)
	}
	rules = append(rules, d.cfg.ConversionFormat)
	return strings.Join(rules, "/")
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
