package domain

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"
)

// TgMessage — одно сообщение целевой истории. Telegram при импорте допускает
// не больше одного вложения на сообщение.
type TgMessage struct {
	Ts   time.Time
	User string
	Text string

	// Attachment может быть nil.
	Attachment Media
}

// NewTgMessage собирает сообщение и проверяет, что подпись разрешена для
// данного типа вложения.
func NewTgMessage(ts time.Time, user, text string, attachment Media) (TgMessage, error) {
	if attachment != nil && text != "" && !attachment.CaptionAllowed() {
		return TgMessage{}, fmt.Errorf("caption is not allowed for %T: file=%q caption=%q",
			attachment, attachment.Name(), text)
	}
	return TgMessage{Ts: ts, User: user, Text: text, Attachment: attachment}, nil
}

// TgChatHistory — результат конвертации: плоская упорядоченная история.
type TgChatHistory struct {
	Messages []TgMessage
	// Title и Photo имеют смысл только для групповых чатов.
	Title string
	Photo *TgPhoto
}

// IsGroup сообщает, групповой ли это чат: у личной переписки нет названия.
func (h *TgChatHistory) IsGroup() bool {
	return h.Title != ""
}

// Media — закрытое множество вложений Telegram. CaptionAllowed сообщает,
// можно ли отправить текст тем же сообщением, что и вложение.
type Media interface {
	Path() string
	Name() string
	CaptionAllowed() bool
	isMedia()
}

// TgPhoto — фотография.
type TgPhoto struct {
	FilePath string `json:"path"`
}

func NewTgPhoto(path string) *TgPhoto { return &TgPhoto{FilePath: path} }

func (p *TgPhoto) Path() string         { return p.FilePath }
func (p *TgPhoto) Name() string         { return filepath.Base(p.FilePath) }
func (p *TgPhoto) CaptionAllowed() bool { return true }
func (p *TgPhoto) isMedia()             {}

// TgVideo — видеозапись с необязательным превью.
type TgVideo struct {
	FilePath  string `json:"path"`
	Title     string `json:"title"`
	Duration  int    `json:"duration"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	ThumbPath string `json:"thumb_path,omitempty"`
}

// NewTgVideo отклоняет контейнеры, которые Telegram не считает видео.
func NewTgVideo(path, title string, duration, width, height int, thumbPath string) (*TgVideo, error) {
	if filepath.Ext(path) == ".webm" {
		return nil, fmt.Errorf("telegram doesn't treat .webm as video, recode %q to .mp4", path)
	}
	return &TgVideo{FilePath: path, Title: title, Duration: duration,
		Width: width, Height: height, ThumbPath: thumbPath}, nil
}

func (v *TgVideo) Path() string         { return v.FilePath }
func (v *TgVideo) Name() string         { return filepath.Base(v.FilePath) }
func (v *TgVideo) CaptionAllowed() bool { return true }
func (v *TgVideo) isMedia()             {}

// TgSticker — статичный стикер.
type TgSticker struct {
	FilePath string `json:"path"`
}

// NewTgSticker отклоняет .png: Telegram принимает стикеры только в .webp.
func NewTgSticker(path string) (*TgSticker, error) {
	if filepath.Ext(path) == ".png" {
		return nil, fmt.Errorf("telegram doesn't support .png stickers, convert %q to .webp", path)
	}
	return &TgSticker{FilePath: path}, nil
}

func (s *TgSticker) Path() string { return s.FilePath }
func (s *TgSticker) Name() string { return filepath.Base(s.FilePath) }

// CaptionAllowed возвращает false: подпись у стикера на практике работает,
// но в импортированной истории выглядит неуместно.
func (s *TgSticker) CaptionAllowed() bool { return false }
func (s *TgSticker) isMedia()             {}

// TgDocument — файл, отправляемый как документ.
type TgDocument struct {
	FilePath string `json:"path"`
	Title    string `json:"title"`
}

func NewTgDocument(path, title string) *TgDocument {
	return &TgDocument{FilePath: path, Title: title}
}

func (d *TgDocument) Path() string         { return d.FilePath }
func (d *TgDocument) Name() string         { return filepath.Base(d.FilePath) }
func (d *TgDocument) CaptionAllowed() bool { return true }
func (d *TgDocument) isMedia()             {}

// TgAudio — аудиозапись.
type TgAudio struct {
	FilePath  string `json:"path"`
	Performer string `json:"performer"`
	Title     string `json:"title"`
	Duration  int    `json:"duration"`
}

func NewTgAudio(path, performer, title string, duration int) *TgAudio {
	return &TgAudio{FilePath: path, Performer: performer, Title: title, Duration: duration}
}

func (a *TgAudio) Path() string         { return a.FilePath }
func (a *TgAudio) Name() string         { return filepath.Base(a.FilePath) }
func (a *TgAudio) CaptionAllowed() bool { return true }
func (a *TgAudio) isMedia()             {}

// TgVoice — голосовое сообщение.
type TgVoice struct {
	FilePath string `json:"path"`
	Duration int    `json:"duration"`
}

// NewTgVoice отклоняет .opus: Telegram считает такие файлы аудио, не войсом.
func NewTgVoice(path string, duration int) (*TgVoice, error) {
	if filepath.Ext(path) == ".opus" {
		return nil, fmt.Errorf("telegram treats .opus as audio, convert %q to .ogg", path)
	}
	return &TgVoice{FilePath: path, Duration: duration}, nil
}

func (v *TgVoice) Path() string         { return v.FilePath }
func (v *TgVoice) Name() string         { return filepath.Base(v.FilePath) }
func (v *TgVoice) CaptionAllowed() bool { return false }
func (v *TgVoice) isMedia()             {}

// TgGif — анимация, отправляемая как видео-документ.
type TgGif struct {
	FilePath string `json:"path"`
	Duration int    `json:"duration"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// NewTgGif отклоняет настоящие .gif файлы: Telegram ждёт .mp4.
func NewTgGif(path string, duration, width, height int) (*TgGif, error) {
	if filepath.Ext(path) == ".gif" {
		return nil, fmt.Errorf("telegram doesn't support real .gif files, recode %q to .mp4", path)
	}
	return &TgGif{FilePath: path, Duration: duration, Width: width, Height: height}, nil
}

func (g *TgGif) Path() string         { return g.FilePath }
func (g *TgGif) Name() string         { return filepath.Base(g.FilePath) }
func (g *TgGif) CaptionAllowed() bool { return false }
func (g *TgGif) isMedia()             {}

// mediaEnvelope — тегированный конверт для сериализации Media в JSON.
type mediaEnvelope struct {
	Type     string      `json:"type"`
	Photo    *TgPhoto    `json:"photo,omitempty"`
	Video    *TgVideo    `json:"video,omitempty"`
	Sticker  *TgSticker  `json:"sticker,omitempty"`
	Document *TgDocument `json:"document,omitempty"`
	Audio    *TgAudio    `json:"audio,omitempty"`
	Voice    *TgVoice    `json:"voice,omitempty"`
	Gif      *TgGif      `json:"gif,omitempty"`
}

// MarshalMedia кодирует вложение в тегированный конверт.
func MarshalMedia(m Media) (json.RawMessage, error) {
	var env mediaEnvelope
	switch v := m.(type) {
	case *TgPhoto:
		env = mediaEnvelope{Type: "photo", Photo: v}
	case *TgVideo:
		env = mediaEnvelope{Type: "video", Video: v}
	case *TgSticker:
		env = mediaEnvelope{Type: "sticker", Sticker: v}
	case *TgDocument:
		env = mediaEnvelope{Type: "document", Document: v}
	case *TgAudio:
		env = mediaEnvelope{Type: "audio", Audio: v}
	case *TgVoice:
		env = mediaEnvelope{Type: "voice", Voice: v}
	case *TgGif:
		env = mediaEnvelope{Type: "gif", Gif: v}
	default:
		return nil, fmt.Errorf("unknown media type %T", m)
	}
	return json.Marshal(env)
}

// UnmarshalMedia декодирует вложение из тегированного конверта.
func UnmarshalMedia(data []byte) (Media, error) {
	var env mediaEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal media: %w", err)
	}
	switch env.Type {
	case "photo":
		return env.Photo, nil
	case "video":
		return env.Video, nil
	case "sticker":
		return env.Sticker, nil
	case "document":
		return env.Document, nil
	case "audio":
		return env.Audio, nil
	case "voice":
		return env.Voice, nil
	case "gif":
		return env.Gif, nil
	}
	return nil, fmt.Errorf("unknown media type %q", env.Type)
}
