package services

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/chai2010/webp"
	"golang.org/x/sync/semaphore"

	"vk-tg-transfer/internal/domain"
	"vk-tg-transfer/internal/ports"
)

// MediaConfig хранит конфигурацию для MediaConverter.
type MediaConfig struct {
	// MaxNonVideoWorkers ограничивает одновременные HTTP-загрузки.
	MaxNonVideoWorkers int64
	// MaxVideoWorkers ограничивает одновременные вызовы внешнего
	// загрузчика видео.
	MaxVideoWorkers int64
}

// MediaOption — функциональная опция для настройки MediaConverter.
type MediaOption func(*MediaConverter)

// WithMediaLogger устанавливает логгер для конвертера медиа.
func WithMediaLogger(l *slog.Logger) MediaOption {
	return func(c *MediaConverter) {
		if l != nil {
			c.log = l
		}
	}
}

// WithHTTPClient подменяет HTTP-клиент загрузок.
func WithHTTPClient(client *http.Client) MediaOption {
	return func(c *MediaConverter) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// MediaConverter скачивает вложения VK и раскладывает их по файлам каталога
// экспорта. Каталог принадлежит конвертеру эксклюзивно на время запуска.
type MediaConverter struct {
	api       ports.VkAPI
	extractor ports.VideoExtractor
	log       *slog.Logger
	exportDir string

	httpClient *http.Client

	nonVideoSem *semaphore.Weighted
	videoSem    *semaphore.Weighted

	// nFilesDemanded нумерует выданные файлы: имена строго возрастают и
	// не пересекаются независимо от порядка завершения загрузок.
	nFilesDemanded atomic.Int64
}

// NewMediaConverter создает конвертер медиа. Каталог экспорта создаётся при
// необходимости и обязан быть пустым: это проверяется один раз на старте.
func NewMediaConverter(api ports.VkAPI, extractor ports.VideoExtractor,
	exportDir string, cfg MediaConfig, opts ...MediaOption) (*MediaConverter, error) {
	if err := os.MkdirAll(exportDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export dir: %w", err)
	}
	entries, err := os.ReadDir(exportDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read export dir: %w", err)
	}
	if len(entries) > 0 {
		return nil, fmt.Errorf("directory is not empty: %s", exportDir)
	}

	if cfg.MaxNonVideoWorkers <= 0 {
		cfg.MaxNonVideoWorkers = 1
	}
	if cfg.MaxVideoWorkers <= 0 {
		cfg.MaxVideoWorkers = 1
	}

	c := &MediaConverter{
		api:         api,
		extractor:   extractor,
		log:         slog.Default(),
		exportDir:   exportDir,
		httpClient:  http.DefaultClient,
		nonVideoSem: semaphore.NewWeighted(cfg.MaxNonVideoWorkers),
		videoSem:    semaphore.NewWeighted(cfg.MaxVideoWorkers),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TryConvert конвертирует вложения, сохраняя длину и порядок входа.
// Неудача одного вложения не трогает соседние: в его позиции остаётся nil.
func (c *MediaConverter) TryConvert(ctx context.Context, attachments []domain.Attachment) ([]domain.Media, error) {
	result := make([]domain.Media, len(attachments))

	var videoIdx, nonVideoIdx []int
	for i, attch := range attachments {
		if _, ok := attch.(domain.VkVideo); ok {
			videoIdx = append(videoIdx, i)
		} else if isNonVideoSupported(attch) {
			nonVideoIdx = append(nonVideoIdx, i)
		}
	}

	// Каждая горутина владеет только своей позицией результата, общий
	// лимит держат семафоры внутри загрузок.
	var wg sync.WaitGroup
	for _, i := range nonVideoIdx {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result[i] = c.tryConvertNonVideo(ctx, attachments[i])
		}(i)
	}
	wg.Wait()

	// Видео гоняем после остальных: параллельный запуск обоих классов
	// ничего не ускоряет, внешний загрузчик и так упирается в сеть.
	for _, i := range videoIdx {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result[i] = c.tryConvertVideo(ctx, attachments[i].(domain.VkVideo))
		}(i)
	}
	wg.Wait()

	return result, nil
}

// isNonVideoSupported сообщает, есть ли у вложения скачиваемая форма.
// Geo, Poll, Wall, Link и неизвестные типы всегда остаются текстом.
func isNonVideoSupported(attch domain.Attachment) bool {
	switch attch.(type) {
	case domain.VkPhoto, domain.VkSticker, domain.VkDocument, domain.VkAudio, domain.VkVoice:
		return true
	}
	return false
}

func (c *MediaConverter) tryConvertNonVideo(ctx context.Context, attch domain.Attachment) domain.Media {
	switch a := attch.(type) {
	case domain.VkPhoto:
		return c.tryConvertPhoto(ctx, a)
	case domain.VkSticker:
		return c.tryConvertSticker(ctx, a)
	case domain.VkDocument:
		return c.tryConvertDocument(ctx, a)
	case domain.VkAudio:
		return c.tryConvertAudio(ctx, a)
	case domain.VkVoice:
		return c.tryConvertVoice(ctx, a)
	}
	return nil
}

func (c *MediaConverter) tryConvertPhoto(ctx context.Context, photo domain.VkPhoto) domain.Media {
	file, ok := c.tryDownloadFile(ctx, photo.URL, "")
	if !ok {
		c.log.Error("Couldn't download photo, skipping", "url", photo.URL)
		return nil
	}
	return domain.NewTgPhoto(file)
}

func (c *MediaConverter) tryConvertSticker(ctx context.Context, sticker domain.VkSticker) domain.Media {
	file, ok := c.tryDownloadFile(ctx, sticker.ImageURL, "")
	if !ok {
		c.log.Error("Couldn't download sticker, skipping", "url", sticker.ImageURL)
		return nil
	}
	// VK раздаёт стикеры в .png, который Telegram не принимает. Зато
	// принимает .webp.
	if filepath.Ext(file) != ".webp" {
		converted, err := c.transcodeToWebp(file)
		if err != nil {
			c.log.Error("Couldn't transcode sticker to webp, skipping", "file", file, "error", err)
			c.removeQuietly(file)
			return nil
		}
		file = converted
	}
	media, err := domain.NewTgSticker(file)
	if err != nil {
		c.log.Error("Couldn't build sticker media, skipping", "file", file, "error", err)
		c.removeQuietly(file)
		return nil
	}
	return media
}

func (c *MediaConverter) tryConvertDocument(ctx context.Context, doc domain.VkDocument) domain.Media {
	file, ok := c.tryDownloadFile(ctx, doc.URL, "."+doc.Extension)
	if !ok {
		c.log.Error("Couldn't download document, skipping", "title", doc.Title)
		return nil
	}
	return domain.NewTgDocument(file, doc.Title)
}

func (c *MediaConverter) tryConvertAudio(ctx context.Context, audio domain.VkAudio) domain.Media {
	if audio.URL == "" {
		c.log.Error("Couldn't download audio, no url available, skipping",
			"artist", audio.Artist, "title", audio.Title)
		return nil
	}
	file, ok := c.tryDownloadFile(ctx, audio.URL, "")
	if !ok {
		c.log.Error("Couldn't download audio, skipping", "artist", audio.Artist, "title", audio.Title)
		return nil
	}
	return domain.NewTgAudio(file, audio.Artist, audio.Title, audio.Duration)
}

func (c *MediaConverter) tryConvertVoice(ctx context.Context, voice domain.VkVoice) domain.Media {
	file, ok := c.tryDownloadFile(ctx, voice.LinkOgg, "")
	if !ok {
		c.log.Error("Couldn't download voice message, skipping", "url", voice.LinkOgg)
		return nil
	}
	media, err := domain.NewTgVoice(file, voice.Duration)
	if err != nil {
		c.log.Error("Couldn't build voice media, skipping", "file", file, "error", err)
		c.removeQuietly(file)
		return nil
	}
	return media
}

func (c *MediaConverter) tryConvertVideo(ctx context.Context, video domain.VkVideo) domain.Media {
	if video.ContentRestricted {
		c.log.Error("Video is restricted, skipping", "title", video.Title)
		return nil
	}
	if err := c.videoSem.Acquire(ctx, 1); err != nil {
		return nil
	}
	defer c.videoSem.Release(1)

	// URL плеера живёт недолго, поэтому разрешаем его прямо перед
	// скачиванием, а не пачкой заранее.
	playerURL, err := c.api.VideoPlayerURL(ctx, video)
	if err != nil || playerURL == "" {
		c.log.Error("Couldn't get video url, skipping", "title", video.Title, "error", err)
		return nil
	}

	file, ok := c.extractor.TryDownload(ctx, playerURL, c.videoOutputTemplate())
	if !ok {
		c.log.Error("Couldn't download video, skipping", "title", video.Title)
		return nil
	}

	thumbPath := ""
	if video.ImageURL != "" {
		if thumb, ok := c.tryDownloadFile(ctx, video.ImageURL, ""); ok {
			thumbPath = thumb
		} else {
			c.log.Warn("Couldn't download thumbnail, skipping the thumbnail", "title", video.Title)
		}
	} else {
		c.log.Warn("Video has no thumbnail url", "title", video.Title)
	}

	media, err := domain.NewTgVideo(file, video.Title, video.Duration, video.Width, video.Height, thumbPath)
	if err != nil {
		c.log.Error("Couldn't build video media, skipping", "file", file, "error", err)
		c.removeQuietly(file)
		return nil
	}
	return media
}

// videoOutputTemplate собирает шаблон имени файла для внешнего загрузчика,
// например "export_dir/FILE-0003 (%(title)s).%(ext)s".
func (c *MediaConverter) videoOutputTemplate() string {
	base := c.makeNewPath("")
	escaped := strings.ReplaceAll(base, "%", "%%")
	return escaped + " (%(title)s).%(ext)s"
}

// tryDownloadFile скачивает url в новый файл каталога экспорта. Расширение
// берётся из пути URL, иначе из подсказки. После неудачи файла на диске
// не остаётся.
func (c *MediaConverter) tryDownloadFile(ctx context.Context, rawURL, extensionHint string) (string, bool) {
	if rawURL == "" {
		return "", false
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		c.log.Error("Unparsable download url", "url", rawURL, "error", err)
		return "", false
	}
	extension := path.Ext(parsed.Path)
	if extension == "" {
		extension = extensionHint
	}
	filePath := c.makeNewPath(extension)

	if err := c.nonVideoSem.Acquire(ctx, 1); err != nil {
		return "", false
	}
	defer c.nonVideoSem.Release(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("Download request failed", "url", rawURL, "error", err)
		return "", false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.log.Error("Download returned non-200 status", "url", rawURL, "status", resp.StatusCode)
		return "", false
	}

	dst, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		c.log.Error("Failed to create download file", "path", filePath, "error", err)
		return "", false
	}
	if _, err := io.Copy(dst, resp.Body); err != nil {
		dst.Close()
		c.removeQuietly(filePath)
		c.log.Error("Failed to write download file", "path", filePath, "error", err)
		return "", false
	}
	if err := dst.Close(); err != nil {
		c.removeQuietly(filePath)
		return "", false
	}
	return filePath, true
}

// transcodeToWebp перекодирует растровый файл в .webp и удаляет оригинал.
func (c *MediaConverter) transcodeToWebp(file string) (string, error) {
	src, err := os.Open(file)
	if err != nil {
		return "", err
	}
	img, _, err := image.Decode(src)
	src.Close()
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	newPath := strings.TrimSuffix(file, filepath.Ext(file)) + ".webp"
	dst, err := os.OpenFile(newPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}
	if err := webp.Encode(dst, img, &webp.Options{Lossless: true}); err != nil {
		dst.Close()
		c.removeQuietly(newPath)
		return "", fmt.Errorf("failed to encode webp: %w", err)
	}
	if err := dst.Close(); err != nil {
		c.removeQuietly(newPath)
		return "", err
	}
	c.removeQuietly(file)
	return newPath, nil
}

func (c *MediaConverter) removeQuietly(file string) {
	if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
		c.log.Warn("Failed to remove file", "path", file, "error", err)
	}
}

// makeNewPath выдает следующее имя файла вида FILE-0007 с расширением.
func (c *MediaConverter) makeNewPath(postfix string) string {
	n := c.nFilesDemanded.Add(1)
	return filepath.Join(c.exportDir, fmt.Sprintf("FILE-%04d%s", n, postfix))
}
