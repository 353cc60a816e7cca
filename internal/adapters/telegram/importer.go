package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gotd/td/telegram/uploader"
	"github.com/gotd/td/tg"
	"golang.org/x/sync/errgroup"

	"vk-tg-transfer/internal/domain"
	"vk-tg-transfer/internal/ports"
)

// chatFileName — имя файла транскрипта, которое ждет импортер Telegram.
const chatFileName = "_chat.txt"

// importHeadMaxLines — сколько первых строк транскрипта Telegram анализирует,
// чтобы распознать формат и тип чата.
const importHeadMaxLines = 50

const defaultMaxUploads = 4

// floodWaitRegex используется для парсинга длительности ожидания из сообщения об ошибке.
var floodWaitRegex = regexp.MustCompile(`FLOOD_WAIT \((\d+)\)`)

// importerAPI представляет необработанные методы API импорта истории.
// Это позволяет создавать моки в тестах.
type importerAPI interface {
	MessagesCheckHistoryImport(ctx context.Context, importhead string) (*tg.MessagesHistoryImportParsed, error)
	MessagesCheckHistoryImportPeer(ctx context.Context, peer tg.InputPeerClass) (*tg.MessagesCheckedHistoryImportPeer, error)
	MessagesInitHistoryImport(ctx context.Context, request *tg.MessagesInitHistoryImportRequest) (*tg.MessagesHistoryImport, error)
	MessagesUploadImportedMedia(ctx context.Context, request *tg.MessagesUploadImportedMediaRequest) (tg.MessageMediaClass, error)
	MessagesStartHistoryImport(ctx context.Context, request *tg.MessagesStartHistoryImportRequest) (bool, error)
}

// fileUploader загружает файлы на сервера Telegram.
type fileUploader interface {
	FromPath(ctx context.Context, path string) (tg.InputFileClass, error)
	FromBytes(ctx context.Context, name string, b []byte) (tg.InputFileClass, error)
}

// Importer заливает сконвертированную историю в существующий чат Telegram
// через механизм импорта: https://core.telegram.org/api/import
type Importer struct {
	api        importerAPI
	files      fileUploader
	encoder    ports.HistoryEncoder
	peer       tg.InputPeerClass
	maxUploads int
	sleep      func(ctx context.Context, d time.Duration) error
	log        *slog.Logger
}

// ImporterOption определяет функциональную опцию для конфигурации импортера.
type ImporterOption func(*Importer)

// WithImporterLogger устанавливает логгер для импортера.
func WithImporterLogger(l *slog.Logger) ImporterOption {
	return func(i *Importer) {
		if l != nil {
			i.log = l
		}
	}
}

// WithMaxUploads задает число одновременно загружаемых файлов.
func WithMaxUploads(n int) ImporterOption {
	return func(i *Importer) {
		if n > 0 {
			i.maxUploads = n
		}
	}
}

// NewImporter создает импортер, пишущий в peer. Импорт поддерживается
// только в личную переписку и супергруппы.
func NewImporter(api *tg.Client, encoder ports.HistoryEncoder, peer tg.InputPeerClass, opts ...ImporterOption) (*Importer, error) {
	switch peer.(type) {
	case *tg.InputPeerUser, *tg.InputPeerSelf, *tg.InputPeerChannel:
	default:
		return nil, fmt.Errorf("импорт в peer %T не поддерживается, нужен пользователь или супергруппа", peer)
	}

	i := &Importer{
		api:        api,
		files:      uploader.NewUploader(api),
		encoder:    encoder,
		peer:       peer,
		maxUploads: defaultMaxUploads,
		sleep:      sleepCtx,
		log:        slog.Default(),
	}

	for _, opt := range opts {
		opt(i)
	}

	return i, nil
}

// Import сериализует историю, проверяет ее на стороне Telegram, загружает
// транскрипт и все медиафайлы и запускает импорт.
func (i *Importer) Import(ctx context.Context, history *domain.TgChatHistory) error {
	importData, err := i.encoder.Encode(history)
	if err != nil {
		return fmt.Errorf("сериализация истории: %w", err)
	}

	parsed, err := i.api.MessagesCheckHistoryImport(ctx, importHead(importData))
	if err != nil {
		return fmt.Errorf("проверка транскрипта: %w", err)
	}
	if !parsed.Pm && !parsed.Group {
		return fmt.Errorf("telegram не распознал тип чата в транскрипте")
	}
	if history.IsGroup() != parsed.Group {
		// Иначе импорт упадет с 400 IMPORT_PEER_TYPE_INVALID.
		return fmt.Errorf("тип чата не совпадает: history group=%v, telegram group=%v", history.IsGroup(), parsed.Group)
	}

	if _, err := i.api.MessagesCheckHistoryImportPeer(ctx, i.peer); err != nil {
		return fmt.Errorf("проверка peer: %w", err)
	}

	var mediaFiles []domain.Media
	for _, msg := range history.Messages {
		if msg.Attachment != nil {
			mediaFiles = append(mediaFiles, msg.Attachment)
		}
	}

	transcript, err := i.files.FromBytes(ctx, chatFileName, []byte(importData))
	if err != nil {
		return fmt.Errorf("загрузка транскрипта: %w", err)
	}
	historyImport, err := i.api.MessagesInitHistoryImport(ctx, &tg.MessagesInitHistoryImportRequest{
		Peer:       i.peer,
		File:       transcript,
		MediaCount: len(mediaFiles),
	})
	if err != nil {
		return fmt.Errorf("инициализация импорта: %w", err)
	}
	importID := historyImport.ID
	i.log.InfoContext(ctx, "History import initialized", "import_id", importID, "media_count", len(mediaFiles))

	g, uploadCtx := errgroup.WithContext(ctx)
	g.SetLimit(i.maxUploads)
	for _, media := range mediaFiles {
		g.Go(func() error {
			return i.uploadMedia(uploadCtx, importID, media)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("загрузка медиа: %w", err)
	}

	ok, err := i.api.MessagesStartHistoryImport(ctx, &tg.MessagesStartHistoryImportRequest{
		Peer:     i.peer,
		ImportID: importID,
	})
	if err != nil {
		return fmt.Errorf("запуск импорта: %w", err)
	}
	if !ok {
		return fmt.Errorf("telegram отклонил запуск импорта")
	}

	i.log.InfoContext(ctx, "History import finished", "import_id", importID)
	return nil
}

// uploadMedia загружает один медиафайл и привязывает его к импорту.
// При FLOOD_WAIT ждет указанную Telegram паузу и повторяет запрос.
func (i *Importer) uploadMedia(ctx context.Context, importID int64, media domain.Media) error {
	prepared, err := i.prepareMedia(ctx, media)
	if err != nil {
		return fmt.Errorf("подготовка %q: %w", media.Name(), err)
	}

	for {
		_, err := i.api.MessagesUploadImportedMedia(ctx, &tg.MessagesUploadImportedMediaRequest{
			Peer:     i.peer,
			ImportID: importID,
			FileName: media.Name(),
			Media:    prepared,
		})
		if err == nil {
			i.log.DebugContext(ctx, "Uploaded imported media", "file", media.Name())
			return nil
		}
		wait, isFloodWait := parseFloodWait(err)
		if !isFloodWait {
			return fmt.Errorf("привязка %q к импорту: %w", media.Name(), err)
		}
		i.log.WarnContext(ctx, "Got FLOOD_WAIT while uploading media, sleeping", "file", media.Name(), "wait", wait)
		if sleepErr := i.sleep(ctx, wait); sleepErr != nil {
			return sleepErr
		}
	}
}

// prepareMedia загружает содержимое файла и строит InputMedia, с которым
// Telegram примет вложение: тип документа и его атрибуты определяют,
// как сообщение будет выглядеть в чате.
func (i *Importer) prepareMedia(ctx context.Context, media domain.Media) (tg.InputMediaClass, error) {
	file, err := i.files.FromPath(ctx, media.Path())
	if err != nil {
		return nil, fmt.Errorf("загрузка файла: %w", err)
	}

	switch m := media.(type) {
	case *domain.TgPhoto:
		return &tg.InputMediaUploadedPhoto{File: file}, nil

	case *domain.TgSticker:
		return &tg.InputMediaUploadedDocument{
			File:     file,
			MimeType: mimeType(m.Name(), "image/webp"),
			Attributes: []tg.DocumentAttributeClass{
				&tg.DocumentAttributeFilename{FileName: m.Name()},
			},
		}, nil

	case *domain.TgDocument:
		return &tg.InputMediaUploadedDocument{
			File:      file,
			ForceFile: true,
			MimeType:  mimeType(m.Name(), "application/zip"),
			Attributes: []tg.DocumentAttributeClass{
				&tg.DocumentAttributeFilename{FileName: m.Title},
			},
		}, nil

	case *domain.TgVideo:
		doc := &tg.InputMediaUploadedDocument{
			File:     file,
			MimeType: mimeType(m.Name(), "video/mp4"),
			Attributes: []tg.DocumentAttributeClass{
				&tg.DocumentAttributeVideo{Duration: float64(m.Duration), W: m.Width, H: m.Height},
				&tg.DocumentAttributeFilename{FileName: m.Title},
			},
		}
		if m.ThumbPath != "" {
			thumb, thumbErr := i.files.FromPath(ctx, m.ThumbPath)
			if thumbErr != nil {
				return nil, fmt.Errorf("загрузка превью: %w", thumbErr)
			}
			doc.SetThumb(thumb)
		}
		return doc, nil

	case *domain.TgGif:
		return &tg.InputMediaUploadedDocument{
			File:     file,
			MimeType: mimeType(m.Name(), "video/mp4"),
			Attributes: []tg.DocumentAttributeClass{
				&tg.DocumentAttributeVideo{
					Duration:          float64(m.Duration),
					W:                 m.Width,
					H:                 m.Height,
					SupportsStreaming: true,
				},
				&tg.DocumentAttributeFilename{FileName: m.Name()},
				&tg.DocumentAttributeAnimated{},
			},
		}, nil

	case *domain.TgAudio:
		audio := &tg.DocumentAttributeAudio{Duration: m.Duration}
		audio.SetPerformer(m.Performer)
		audio.SetTitle(m.Title)
		return &tg.InputMediaUploadedDocument{
			File:     file,
			MimeType: mimeType(m.Name(), "audio/mpeg"),
			Attributes: []tg.DocumentAttributeClass{
				audio,
				&tg.DocumentAttributeFilename{FileName: m.Title},
			},
		}, nil

	case *domain.TgVoice:
		voice := &tg.DocumentAttributeAudio{Duration: m.Duration}
		voice.SetVoice(true)
		return &tg.InputMediaUploadedDocument{
			File:       file,
			MimeType:   mimeType(m.Name(), "audio/ogg"),
			Attributes: []tg.DocumentAttributeClass{voice},
		}, nil

	default:
		return nil, fmt.Errorf("неизвестный тип вложения %T", media)
	}
}

// importHead возвращает начало транскрипта, по которому Telegram определяет формат.
func importHead(importData string) string {
	lines := strings.SplitN(importData, "\n", importHeadMaxLines+1)
	if len(lines) > importHeadMaxLines {
		lines = lines[:importHeadMaxLines]
	}
	return strings.Join(lines, "\n") + "\n"
}

// mimeType определяет MIME-тип по расширению файла.
func mimeType(name, fallback string) string {
	if mt := mime.TypeByExtension(filepath.Ext(name)); mt != "" {
		return mt
	}
	return fallback
}

// parseFloodWait извлекает длительность ожидания из ошибки.
func parseFloodWait(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}

	matches := floodWaitRegex.FindStringSubmatch(err.Error())
	if len(matches) < 2 {
		return 0, false
	}

	seconds, convErr := strconv.Atoi(matches[1])
	if convErr != nil {
		return 0, false
	}

	return time.Duration(seconds) * time.Second, true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
