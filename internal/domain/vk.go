package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// VkMessage представляет одно сообщение из экспорта VK.
// https://dev.vk.com/reference/objects/message
type VkMessage struct {
	ConversationMessageID int64
	FromID                int64
	Date                  time.Time
	Text                  string
	// IsExpired — true для "исчезающих" сообщений, у них нет содержимого.
	IsExpired   bool
	Attachments []Attachment
	// Reply и Forwards не бывают заполнены одновременно.
	Reply    *VkMessage
	Forwards []*VkMessage
	Action   Action // Например, добавление участника в чат.
}

// VkChatHistory представляет полную историю одного чата VK.
type VkChatHistory struct {
	Messages []*VkMessage
	// Title и Photo имеют смысл только для бесед (не личных переписок).
	Title string
	Photo *VkPhoto
}

// Attachment — закрытое множество вложений VK. Маркерный метод не даёт
// появиться вариантам вне этого пакета.
type Attachment interface {
	isAttachment()
}

// VkGeo представляет геометку, прикреплённую к сообщению.
type VkGeo struct {
	Latitude  float64
	Longitude float64
	Title     string
}

// VkPhoto представляет фотографию. URL указывает на лучший доступный размер.
// https://dev.vk.com/reference/objects/photo
type VkPhoto struct {
	URL    string
	Width  int
	Height int
}

// VkVideo представляет видеозапись.
// https://dev.vk.com/reference/objects/video
type VkVideo struct {
	Title   string
	ID      int64
	OwnerID int64
	Width   int
	Height  int
	// Duration в секундах. Для ограниченных видео поле отсутствует в API.
	Duration int
	// ContentRestricted — true, если видео недоступно для просмотра.
	ContentRestricted bool
	ImageURL          string // Превью; пустая строка для удалённых видео.
	AccessKey         string // Может отсутствовать, например у коротких видео.
}

// Key возвращает идентификатор видео в формате, который принимает video.get.
func (v VkVideo) Key() string {
	key := fmt.Sprintf("%d_%d", v.OwnerID, v.ID)
	if v.AccessKey != "" {
		key += "_" + v.AccessKey
	}
	return key
}

// VkAudio представляет аудиозапись.
// https://dev.vk.com/reference/objects/audio
type VkAudio struct {
	ID       int64
	OwnerID  int64
	Artist   string
	Title    string
	Duration int
	// ContentRestricted — true, если аудио недоступно; тогда URL пуст.
	ContentRestricted bool
	URL               string
}

// PublicURL возвращает ссылку на страницу аудиозаписи, если она доступна.
func (a VkAudio) PublicURL() (string, bool) {
	if a.ContentRestricted {
		return "", false
	}
	return fmt.Sprintf("https://m.vk.com/audio%d_%d", a.OwnerID, a.ID), true
}

// VkVoice представляет голосовое сообщение.
// https://dev.vk.com/reference/objects/audio-message
type VkVoice struct {
	LinkOgg    string // Доступен также link_mp3, но ogg достаточно.
	Duration   int
	Transcript string
}

// VkDocument представляет прикреплённый документ.
// https://dev.vk.com/reference/objects/doc
type VkDocument struct {
	URL   string
	Title string
	// Extension без точки: "png" или "docx".
	Extension string
}

// VkPoll представляет опрос.
// https://dev.vk.com/reference/objects/poll
type VkPoll struct {
	Question  string
	Answers   []VkPollAnswer
	Anonymous bool
	Multiple  bool
}

// VkPollAnswer — один вариант ответа опроса.
type VkPollAnswer struct {
	Text  string
	Votes int
	// Rate — процент проголосовавших, 0-100.
	Rate float64
}

// VkWall представляет репост записи со стены.
// https://dev.vk.com/reference/objects/post
type VkWall struct {
	ID      int64
	OwnerID int64
}

// PostURL возвращает постоянную ссылку на запись.
func (w VkWall) PostURL() string {
	return fmt.Sprintf("https://vk.com/wall%d_%d", w.OwnerID, w.ID)
}

// VkSticker представляет стикер.
// https://dev.vk.com/reference/objects/sticker
type VkSticker struct {
	ImageURL     string // Обычно .png файл.
	AnimationURL string
}

// VkLink представляет внешнюю ссылку.
// https://dev.vk.com/reference/objects/link
type VkLink struct {
	URL   string
	Title string
}

// VkUnsupportedAttachment — вложение с типом, который конвертер не знает.
type VkUnsupportedAttachment struct {
	TypeName string
}

func (VkGeo) isAttachment()                   {}
func (VkPhoto) isAttachment()                 {}
func (VkVideo) isAttachment()                 {}
func (VkAudio) isAttachment()                 {}
func (VkVoice) isAttachment()                 {}
func (VkDocument) isAttachment()              {}
func (VkPoll) isAttachment()                  {}
func (VkWall) isAttachment()                  {}
func (VkSticker) isAttachment()               {}
func (VkLink) isAttachment()                  {}
func (VkUnsupportedAttachment) isAttachment() {}

// Action — закрытое множество сервисных событий чата.
// https://dev.vk.com/reference/objects/message#action
type Action interface {
	isAction()
}

// ChatCreateAction — чат создан.
type ChatCreateAction struct{}

// TitleUpdateAction — изменено название чата.
type TitleUpdateAction struct {
	NewTitle string
}

// PhotoUpdateAction — установлена фотография чата.
type PhotoUpdateAction struct{}

// PhotoRemoveAction — фотография чата удалена.
type PhotoRemoveAction struct{}

// JoinByLinkAction — участник вошёл по ссылке-приглашению.
type JoinByLinkAction struct{}

// InviteUserAction — участник приглашён в чат.
type InviteUserAction struct {
	InvitedUserID int64
}

// KickUserAction — участник исключён из чата. Если KickedUserID совпадает
// с автором события, участник вышел сам.
type KickUserAction struct {
	KickedUserID int64
}

// PinMessageAction — сообщение закреплено. Message содержит текст закреплённого
// сообщения; иногда он отсутствует, но выручает, когда самого сообщения нет
// в выгруженной истории.
type PinMessageAction struct {
	ConversationMessageID int64
	Message               string
}

// UnpinMessageAction — закреп снят.
type UnpinMessageAction struct {
	ConversationMessageID int64
}

// ScreenshotAction — участник сделал скриншот чата.
type ScreenshotAction struct{}

// UnsupportedAction — событие с типом, который конвертер не знает.
type UnsupportedAction struct {
	ActionType string
}

func (ChatCreateAction) isAction()    {}
func (TitleUpdateAction) isAction()   {}
func (PhotoUpdateAction) isAction()   {}
func (PhotoRemoveAction) isAction()   {}
func (JoinByLinkAction) isAction()    {}
func (InviteUserAction) isAction()    {}
func (KickUserAction) isAction()      {}
func (PinMessageAction) isAction()    {}
func (UnpinMessageAction) isAction()  {}
func (ScreenshotAction) isAction()    {}
func (UnsupportedAction) isAction()   {}

// ParseVkMessage разбирает сырой объект сообщения из ответа VK API.
func ParseVkMessage(data []byte) (*VkMessage, error) {
	var raw rawVkMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vk message: %w", err)
	}
	return raw.toMessage()
}

type rawVkMessage struct {
	ConversationMessageID int64             `json:"conversation_message_id"`
	FromID                int64             `json:"from_id"`
	Date                  int64             `json:"date"`
	Text                  string            `json:"text"`
	IsExpired             bool              `json:"is_expired"`
	Geo                   json.RawMessage   `json:"geo"`
	Attachments           []json.RawMessage `json:"attachments"`
	ReplyMessage          json.RawMessage   `json:"reply_message"`
	FwdMessages           []json.RawMessage `json:"fwd_messages"`
	Action                json.RawMessage   `json:"action"`
}

func (raw *rawVkMessage) toMessage() (*VkMessage, error) {
	msg := &VkMessage{
		ConversationMessageID: raw.ConversationMessageID,
		FromID:                raw.FromID,
		Date:                  time.Unix(raw.Date, 0).UTC(),
		Text:                  raw.Text,
		IsExpired:             raw.IsExpired,
	}

	// Геометка приходит отдельным полем сообщения, а не в списке вложений.
	if len(raw.Geo) > 0 {
		geo, err := parseGeo(raw.Geo)
		if err != nil {
			return nil, err
		}
		msg.Attachments = append(msg.Attachments, geo)
	}
	for _, rawAttch := range raw.Attachments {
		attch, err := ParseAttachment(rawAttch)
		if err != nil {
			return nil, err
		}
		msg.Attachments = append(msg.Attachments, attch)
	}

	if len(raw.ReplyMessage) > 0 {
		reply, err := ParseVkMessage(raw.ReplyMessage)
		if err != nil {
			return nil, fmt.Errorf("failed to parse reply message: %w", err)
		}
		msg.Reply = reply
	}
	for _, rawFwd := range raw.FwdMessages {
		fwd, err := ParseVkMessage(rawFwd)
		if err != nil {
			return nil, fmt.Errorf("failed to parse forwarded message: %w", err)
		}
		msg.Forwards = append(msg.Forwards, fwd)
	}

	if len(raw.Action) > 0 {
		action, err := parseAction(raw.Action)
		if err != nil {
			return nil, err
		}
		msg.Action = action
	}
	return msg, nil
}

// ParseAttachment разбирает один элемент списка attachments: объект вида
// {"type": "photo", "photo": {...}}.
func ParseAttachment(data []byte) (Attachment, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attachment: %w", err)
	}
	var typeName string
	if err := json.Unmarshal(envelope["type"], &typeName); err != nil {
		return nil, fmt.Errorf("failed to read attachment type: %w", err)
	}
	payload, ok := envelope[typeName]
	if !ok {
		return nil, fmt.Errorf("attachment of type %q has no payload", typeName)
	}

	switch typeName {
	case "photo":
		return parsePhoto(payload)
	case "video":
		return parseVideo(payload)
	case "audio":
		return parseAudio(payload)
	case "audio_message":
		return parseVoice(payload)
	case "doc":
		return parseDocument(payload)
	case "poll":
		return parsePoll(payload)
	case "wall":
		return parseWall(payload)
	case "sticker":
		return parseSticker(payload)
	case "link":
		return parseLink(payload)
	}
	return VkUnsupportedAttachment{TypeName: typeName}, nil
}

func parseGeo(data []byte) (VkGeo, error) {
	var raw struct {
		Coordinates struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"coordinates"`
		Place struct {
			Title string `json:"title"`
		} `json:"place"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return VkGeo{}, fmt.Errorf("failed to unmarshal geo: %w", err)
	}
	return VkGeo{
		Latitude:  raw.Coordinates.Latitude,
		Longitude: raw.Coordinates.Longitude,
		Title:     raw.Place.Title,
	}, nil
}

type rawPhotoSize struct {
	Type   string `json:"type"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func parsePhoto(data []byte) (VkPhoto, error) {
	var raw struct {
		Sizes []rawPhotoSize `json:"sizes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return VkPhoto{}, fmt.Errorf("failed to unmarshal photo: %w", err)
	}
	if len(raw.Sizes) == 0 {
		return VkPhoto{}, fmt.Errorf("photo has no sizes")
	}
	best := pickBestPhotoSize(raw.Sizes)
	return VkPhoto{URL: best.URL, Width: best.Width, Height: best.Height}, nil
}

// pickBestPhotoSize выбирает размер с наибольшим приоритетом по типу.
// https://dev.vk.com/reference/objects/photo-sizes
func pickBestPhotoSize(sizes []rawPhotoSize) rawPhotoSize {
	const order = "wzyrqpoxms"
	priority := func(s rawPhotoSize) int {
		for i := 0; i < len(order); i++ {
			if s.Type == string(order[i]) {
				return i
			}
		}
		return len(order)
	}
	best := sizes[0]
	for _, s := range sizes[1:] {
		if priority(s) < priority(best) {
			best = s
		}
	}
	return best
}

func parseVideo(data []byte) (VkVideo, error) {
	var raw struct {
		Title       string          `json:"title"`
		ID          int64           `json:"id"`
		OwnerID     int64           `json:"owner_id"`
		Width       int             `json:"width"`
		Height      int             `json:"height"`
		Duration    int             `json:"duration"`
		Restriction json.RawMessage `json:"restriction"`
		AccessKey   string          `json:"access_key"`
		Image       []struct {
			URL         string `json:"url"`
			Width       int    `json:"width"`
			Height      int    `json:"height"`
			WithPadding int    `json:"with_padding"`
		} `json:"image"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return VkVideo{}, fmt.Errorf("failed to unmarshal video: %w", err)
	}

	// У удалённых видео превью отсутствует. Среди остальных предпочитаем
	// картинки без полей, затем самые крупные.
	imageURL := ""
	if len(raw.Image) > 0 {
		best := raw.Image[0]
		for _, img := range raw.Image[1:] {
			if img.WithPadding < best.WithPadding ||
				(img.WithPadding == best.WithPadding && img.Width*img.Height > best.Width*best.Height) {
				best = img
			}
		}
		imageURL = best.URL
	}

	return VkVideo{
		Title:             raw.Title,
		ID:                raw.ID,
		OwnerID:           raw.OwnerID,
		Width:             raw.Width,
		Height:            raw.Height,
		Duration:          raw.Duration,
		ContentRestricted: len(raw.Restriction) > 0,
		ImageURL:          imageURL,
		AccessKey:         raw.AccessKey,
	}, nil
}

func parseAudio(data []byte) (VkAudio, error) {
	var raw struct {
		ID                int64  `json:"id"`
		OwnerID           int64  `json:"owner_id"`
		Artist            string `json:"artist"`
		Title             string `json:"title"`
		Duration          int    `json:"duration"`
		ContentRestricted int    `json:"content_restricted"`
		URL               string `json:"url"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return VkAudio{}, fmt.Errorf("failed to unmarshal audio: %w", err)
	}
	return VkAudio{
		ID:                raw.ID,
		OwnerID:           raw.OwnerID,
		Artist:            raw.Artist,
		Title:             raw.Title,
		Duration:          raw.Duration,
		ContentRestricted: raw.ContentRestricted != 0,
		URL:               raw.URL,
	}, nil
}

func parseVoice(data []byte) (VkVoice, error) {
	var raw struct {
		LinkOgg    string `json:"link_ogg"`
		Duration   int    `json:"duration"`
		Transcript string `json:"transcript"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return VkVoice{}, fmt.Errorf("failed to unmarshal voice message: %w", err)
	}
	return VkVoice{LinkOgg: raw.LinkOgg, Duration: raw.Duration, Transcript: raw.Transcript}, nil
}

func parseDocument(data []byte) (VkDocument, error) {
	var raw struct {
		URL   string `json:"url"`
		Title string `json:"title"`
		Ext   string `json:"ext"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return VkDocument{}, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return VkDocument{URL: raw.URL, Title: raw.Title, Extension: raw.Ext}, nil
}

func parsePoll(data []byte) (VkPoll, error) {
	var raw struct {
		Question  string `json:"question"`
		Anonymous bool   `json:"anonymous"`
		Multiple  bool   `json:"multiple"`
		Answers   []struct {
			Text  string  `json:"text"`
			Votes int     `json:"votes"`
			Rate  float64 `json:"rate"`
		} `json:"answers"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return VkPoll{}, fmt.Errorf("failed to unmarshal poll: %w", err)
	}
	poll := VkPoll{Question: raw.Question, Anonymous: raw.Anonymous, Multiple: raw.Multiple}
	for _, a := range raw.Answers {
		poll.Answers = append(poll.Answers, VkPollAnswer{Text: a.Text, Votes: a.Votes, Rate: a.Rate})
	}
	return poll, nil
}

func parseWall(data []byte) (VkWall, error) {
	var raw struct {
		ID      int64 `json:"id"`
		OwnerID int64 `json:"owner_id"`
		ToID    int64 `json:"to_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return VkWall{}, fmt.Errorf("failed to unmarshal wall post: %w", err)
	}
	ownerID := raw.OwnerID
	if ownerID == 0 {
		// В старых записях поле называется to_id.
		ownerID = raw.ToID
	}
	return VkWall{ID: raw.ID, OwnerID: ownerID}, nil
}

func parseSticker(data []byte) (VkSticker, error) {
	var raw struct {
		AnimationURL string `json:"animation_url"`
		Images       []struct {
			URL    string `json:"url"`
			Width  int    `json:"width"`
			Height int    `json:"height"`
		} `json:"images"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return VkSticker{}, fmt.Errorf("failed to unmarshal sticker: %w", err)
	}
	if len(raw.Images) == 0 {
		return VkSticker{}, fmt.Errorf("sticker has no images")
	}
	best := raw.Images[0]
	for _, img := range raw.Images[1:] {
		if img.Width*img.Height > best.Width*best.Height {
			best = img
		}
	}
	return VkSticker{ImageURL: best.URL, AnimationURL: raw.AnimationURL}, nil
}

func parseLink(data []byte) (VkLink, error) {
	var raw struct {
		URL   string `json:"url"`
		Title string `json:"title"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return VkLink{}, fmt.Errorf("failed to unmarshal link: %w", err)
	}
	return VkLink{URL: raw.URL, Title: raw.Title}, nil
}

func parseAction(data []byte) (Action, error) {
	var raw struct {
		Type                  string `json:"type"`
		Text                  string `json:"text"`
		MemberID              int64  `json:"member_id"`
		ConversationMessageID int64  `json:"conversation_message_id"`
		Message               string `json:"message"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal action: %w", err)
	}
	switch raw.Type {
	case "chat_create":
		return ChatCreateAction{}, nil
	case "chat_title_update":
		return TitleUpdateAction{NewTitle: raw.Text}, nil
	case "chat_photo_update":
		return PhotoUpdateAction{}, nil
	case "chat_photo_remove":
		return PhotoRemoveAction{}, nil
	case "chat_invite_user_by_link":
		return JoinByLinkAction{}, nil
	case "chat_invite_user":
		return InviteUserAction{InvitedUserID: raw.MemberID}, nil
	case "chat_kick_user":
		return KickUserAction{KickedUserID: raw.MemberID}, nil
	case "chat_pin_message":
		return PinMessageAction{ConversationMessageID: raw.ConversationMessageID, Message: raw.Message}, nil
	case "chat_unpin_message":
		return UnpinMessageAction{ConversationMessageID: raw.ConversationMessageID}, nil
	case "chat_screenshot":
		return ScreenshotAction{}, nil
	}
	return UnsupportedAction{ActionType: raw.Type}, nil
}
