package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"vk-tg-transfer/internal/domain"
	"vk-tg-transfer/internal/ports"
)

const (
	expiredMessageText = "*the message has disappeared 💣*"
	emptyMessageText   = "*empty message*"

	// shiftPrefix отмечает строки цитируемого сообщения, уровень вложенности
	// добавляет по одному префиксу.
	shiftPrefix = "┊ "

	// headerDateLayout — формат даты в заголовках цитат: 17.07.14, 16:20.
	headerDateLayout = "02.01.06, 15:04"

	replyPreviewMaxLen   = 120
	replyPreviewMaxLines = 3
	replyPreviewMaxItems = 2
)

// Шаблон упоминания вида "[id123456789|Alice]", оставляем только имя.
var mentionPattern = regexp.MustCompile(`\[id\d+\|(.+?)\]`)

var urlSchemePattern = regexp.MustCompile(`https?://`)

// mediaSlotState описывает состояние слота конвертации вложения.
type mediaSlotState int

const (
	// mediaSlotUnset — конвертация ещё не запускалась. Сериализация
	// сообщения с таким слотом означает ошибку в коде, не во входных данных.
	mediaSlotUnset mediaSlotState = iota
	// mediaSlotFailed — конвертация не удалась, вложение уходит текстом.
	mediaSlotFailed
	// mediaSlotReady — медиа готово к отправке.
	mediaSlotReady
)

// preparedAttachment хранит вложение вместе с заранее построенным текстовым
// представлением на случай неудачной конвертации медиа.
type preparedAttachment struct {
	attachment              domain.Attachment
	needNewlineBeforeHeader bool
	header                  string
	headerExtraInfo         string
	body                    []string

	slotState mediaSlotState
	media     domain.Media
}

// preparedMessage — промежуточная форма сообщения между разбором дерева VK
// и сериализацией в плоский список сообщений Telegram.
type preparedMessage struct {
	vkName string
	tgName string // Пустая строка, если соответствие не задано.
	date   time.Time
	reply  *preparedMessage
	text   string

	forwards    []*preparedMessage
	attachments []*preparedAttachment
}

// TgMessageConverter конвертирует дерево сообщений VK в плоский список
// сообщений Telegram. Работа идёт в три фазы: рекурсивная подготовка,
// массовая конвертация медиа верхнего уровня и сериализация.
type TgMessageConverter struct {
	location *time.Location
	resolver ports.NameResolver
	media    ports.MediaConverter
}

// NewTgMessageConverter создает конвертер сообщений. Даты в заголовках цитат
// печатаются во времени location.
func NewTgMessageConverter(location *time.Location, resolver ports.NameResolver,
	media ports.MediaConverter) *TgMessageConverter {
	return &TgMessageConverter{
		location: location,
		resolver: resolver,
		media:    media,
	}
}

// Convert конвертирует сообщения, сохраняя порядок. Одно сообщение VK может
// развернуться в несколько сообщений Telegram: текст плюс по одному на
// каждое медиа сверх первого.
func (c *TgMessageConverter) Convert(ctx context.Context, messages []*domain.VkMessage) ([]domain.TgMessage, error) {
	prepared := make([]*preparedMessage, 0, len(messages))
	// preparedIndex позволяет событиям закрепления ссылаться на уже
	// подготовленные сообщения истории.
	preparedIndex := make(map[int64]*preparedMessage)
	for _, msg := range messages {
		p, err := c.prepareMessage(ctx, msg, preparedIndex)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, p)
		preparedIndex[msg.ConversationMessageID] = p
	}

	if err := c.convertMediaInMessages(ctx, prepared); err != nil {
		return nil, err
	}

	var result []domain.TgMessage
	for _, p := range prepared {
		converted, err := c.convertOneMessage(p)
		if err != nil {
			return nil, err
		}
		result = append(result, converted...)
	}
	return result, nil
}

func (c *TgMessageConverter) prepareMessage(ctx context.Context, msg *domain.VkMessage,
	preparedIndex map[int64]*preparedMessage) (*preparedMessage, error) {
	if msg.Action != nil {
		return c.prepareServiceMessage(ctx, msg, preparedIndex)
	}
	if msg.Reply != nil && len(msg.Forwards) > 0 {
		return nil, fmt.Errorf("message %d has both reply and forwards, vk should not produce that",
			msg.ConversationMessageID)
	}

	text := prepareText(msg)
	attachments := prepareAttachments(msg)
	forwards := make([]*preparedMessage, 0, len(msg.Forwards))
	for _, fwd := range msg.Forwards {
		p, err := c.prepareMessage(ctx, fwd, preparedIndex)
		if err != nil {
			return nil, err
		}
		forwards = append(forwards, p)
	}
	if text == "" && len(attachments) == 0 && len(forwards) == 0 {
		text = emptyMessageText
	}

	var reply *preparedMessage
	if msg.Reply != nil {
		p, err := c.prepareMessage(ctx, msg.Reply, preparedIndex)
		if err != nil {
			return nil, err
		}
		reply = p
	}

	vkName, err := c.resolver.FullName(ctx, msg.FromID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve name for id %d: %w", msg.FromID, err)
	}
	tgName, _ := c.resolver.TryGetTgName(msg.FromID)

	return &preparedMessage{
		vkName:      vkName,
		tgName:      tgName,
		date:        msg.Date,
		reply:       reply,
		text:        text,
		forwards:    forwards,
		attachments: attachments,
	}, nil
}

func (c *TgMessageConverter) prepareServiceMessage(ctx context.Context, msg *domain.VkMessage,
	preparedIndex map[int64]*preparedMessage) (*preparedMessage, error) {
	vkName, err := c.resolver.FullName(ctx, msg.FromID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve name for id %d: %w", msg.FromID, err)
	}
	tgName, _ := c.resolver.TryGetTgName(msg.FromID)

	var text string
	var reply *preparedMessage
	switch action := msg.Action.(type) {
	case domain.ChatCreateAction:
		text = fmt.Sprintf("*%s created chat*", vkName)
	case domain.TitleUpdateAction:
		text = fmt.Sprintf("*%s set new title: '%s'*", vkName, action.NewTitle)
	case domain.PhotoUpdateAction:
		text = fmt.Sprintf("*%s set new chat photo*", vkName)
	case domain.PhotoRemoveAction:
		text = fmt.Sprintf("*%s removed chat photo*", vkName)
	case domain.JoinByLinkAction:
		text = fmt.Sprintf("*%s joined chat by link*", vkName)
	case domain.InviteUserAction:
		invitedName, err := c.resolver.FullName(ctx, action.InvitedUserID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve name for id %d: %w", action.InvitedUserID, err)
		}
		text = fmt.Sprintf("*%s invited %s*", vkName, invitedName)
	case domain.KickUserAction:
		if action.KickedUserID == msg.FromID {
			text = fmt.Sprintf("*%s left chat*", vkName)
		} else {
			kickedName, err := c.resolver.FullName(ctx, action.KickedUserID)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve name for id %d: %w", action.KickedUserID, err)
			}
			text = fmt.Sprintf("*%s kicked %s*", vkName, kickedName)
		}
	case domain.PinMessageAction:
		text = fmt.Sprintf("*%s pinned message*", vkName)
		// Закреплённое сообщение показываем как цитату, если оно уже
		// встречалось в истории. Иначе выручает снимок текста из события.
		if ref, ok := preparedIndex[action.ConversationMessageID]; ok {
			reply = ref
		} else if action.Message != "" {
			text = fmt.Sprintf("*%s pinned message: '%s'*", vkName, action.Message)
		}
	case domain.UnpinMessageAction:
		text = fmt.Sprintf("*%s unpinned message*", vkName)
		if ref, ok := preparedIndex[action.ConversationMessageID]; ok {
			reply = ref
		}
	case domain.ScreenshotAction:
		text = fmt.Sprintf("*%s made a screenshot*", vkName)
	case domain.UnsupportedAction:
		text = fmt.Sprintf("*%s triggered action '%s'*", vkName, action.ActionType)
	default:
		return nil, fmt.Errorf("unexpected action type %T", msg.Action)
	}

	return &preparedMessage{
		vkName:      vkName,
		tgName:      tgName,
		date:        msg.Date,
		reply:       reply,
		text:        text,
		attachments: prepareAttachments(msg),
	}, nil
}

// convertMediaInMessages конвертирует медиа одним массовым вызовом.
// Вложения вложенных сообщений не конвертируются, они остаются текстом.
func (c *TgMessageConverter) convertMediaInMessages(ctx context.Context, messages []*preparedMessage) error {
	var all []*preparedAttachment
	for _, msg := range messages {
		all = append(all, msg.attachments...)
	}
	attachments := make([]domain.Attachment, len(all))
	for i, pa := range all {
		attachments[i] = pa.attachment
	}

	results, err := c.media.TryConvert(ctx, attachments)
	if err != nil {
		return fmt.Errorf("failed to convert media: %w", err)
	}
	if len(results) != len(all) {
		return fmt.Errorf("media converter returned %d results for %d attachments", len(results), len(all))
	}
	for i, media := range results {
		if media == nil {
			all[i].slotState = mediaSlotFailed
		} else {
			all[i].slotState = mediaSlotReady
			all[i].media = media
		}
	}
	return nil
}

func (c *TgMessageConverter) convertOneMessage(msg *preparedMessage) ([]domain.TgMessage, error) {
	var result []domain.TgMessage
	tgName := msg.tgName
	if tgName == "" {
		tgName = msg.vkName
	}

	var pendingMedia []domain.Media
	var mediaTextLines []string
	for _, attachment := range msg.attachments {
		switch attachment.slotState {
		case mediaSlotUnset:
			return nil, fmt.Errorf("attachment %T has unresolved media slot, media conversion was skipped",
				attachment.attachment)
		case mediaSlotFailed:
			if attachment.needNewlineBeforeHeader && (msg.text != "" || len(mediaTextLines) > 0) {
				mediaTextLines = append(mediaTextLines, "")
			}
			mediaTextLines = append(mediaTextLines, attachmentAsTextLines(attachment)...)
		case mediaSlotReady:
			pendingMedia = append(pendingMedia, attachment.media)
		}
	}

	var lines []string
	if msg.reply != nil {
		lines = c.replyAsTextLines(msg.reply)
		// Цитата и медиа с подписью не уживаются в одном сообщении:
		// цитата уходит отдельным сообщением.
		if len(pendingMedia) > 0 && (pendingMedia[0].CaptionAllowed() || msg.text == "") {
			lines = append(lines, shiftLines([]string{""})...)
			m, err := domain.NewTgMessage(msg.date, tgName, strings.Join(lines, "\n"), nil)
			if err != nil {
				return nil, err
			}
			result = append(result, m)
			lines = nil
		}
	}

	if len(lines) > 0 && (msg.text != "" || len(mediaTextLines) > 0) {
		lines = append(lines, "") // Пустая строка после блока цитаты.
	}
	lines = append(lines, splitLines(msg.text)...)
	lines = append(lines, mediaTextLines...)
	for _, forward := range msg.forwards {
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, c.innerMessageAsTextLines(forward, "Forward")...)
	}

	if text := strings.Join(lines, "\n"); text != "" {
		var attachment domain.Media
		if len(pendingMedia) > 0 && pendingMedia[0].CaptionAllowed() {
			attachment = pendingMedia[0]
			pendingMedia = pendingMedia[1:]
		}
		m, err := domain.NewTgMessage(msg.date, tgName, text, attachment)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	for _, media := range pendingMedia {
		m, err := domain.NewTgMessage(msg.date, tgName, "", media)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, nil
}

// replyAsTextLines строит короткую цитату: заголовок, усечённый текст и одна
// строка со сводкой пересылок и вложений. Вложенные цитаты не раскрываются.
func (c *TgMessageConverter) replyAsTextLines(msg *preparedMessage) []string {
	header := c.makeMessageHeader(msg, "Reply")
	body := cutText(msg.text, replyPreviewMaxLen, replyPreviewMaxLines)
	if summary := makeLineWithForwardsAndAttachments(msg, replyPreviewMaxItems); summary != "" {
		body = append(body, summary)
	}
	return append(header, shiftLines(body)...)
}

// innerMessageAsTextLines разворачивает пересланное сообщение целиком,
// рекурсивно и без ограничения глубины.
func (c *TgMessageConverter) innerMessageAsTextLines(msg *preparedMessage, msgType string) []string {
	header := c.makeMessageHeader(msg, msgType)
	var body []string
	if msg.reply != nil {
		body = append(body, "")
		body = append(body, c.innerMessageAsTextLines(msg.reply, "Reply")...)
		body = append(body, "")
	}
	body = append(body, splitLines(msg.text)...)
	for _, attachment := range msg.attachments {
		body = append(body, attachmentAsTextLines(attachment)...)
	}
	for _, forward := range msg.forwards {
		body = append(body, "")
		body = append(body, c.innerMessageAsTextLines(forward, "Forward")...)
	}
	return append(header, shiftLines(body)...)
}

func (c *TgMessageConverter) makeMessageHeader(msg *preparedMessage, msgType string) []string {
	dateStr := msg.date.In(c.location).Format(headerDateLayout)
	return []string{
		fmt.Sprintf("[%s] %s", msgType, dateStr),
		msg.vkName,
	}
}

func attachmentAsTextLines(attachment *preparedAttachment) []string {
	result := []string{attachment.header + attachment.headerExtraInfo}
	return append(result, shiftLines(attachment.body)...)
}

func prepareText(msg *domain.VkMessage) string {
	if msg.IsExpired {
		return expiredMessageText
	}
	return mentionPattern.ReplaceAllString(msg.Text, "$1")
}

func prepareAttachments(msg *domain.VkMessage) []*preparedAttachment {
	var result []*preparedAttachment
	for _, attch := range msg.Attachments {
		if shouldSkipAttachment(attch, msg.Text) {
			continue
		}
		needNewline, header, extraInfo, body := prepareAlternativeText(attch)
		result = append(result, &preparedAttachment{
			attachment:              attch,
			needNewlineBeforeHeader: needNewline,
			header:                  header,
			headerExtraInfo:         extraInfo,
			body:                    body,
		})
	}
	return result
}

// shouldSkipAttachment отсеивает ссылки, которые дублируют url из текста
// сообщения: VK прикладывает их к сообщению автоматически.
func shouldSkipAttachment(attch domain.Attachment, msgText string) bool {
	link, ok := attch.(domain.VkLink)
	if !ok {
		return false
	}
	urlWithScheme := strings.TrimRight(strings.ToLower(link.URL), "/")
	urlWithoutScheme := urlSchemePattern.ReplaceAllString(urlWithScheme, "")
	for _, word := range strings.Fields(msgText) {
		word = strings.TrimRight(strings.ToLower(word), "/")
		if word == urlWithScheme || word == urlWithoutScheme {
			return true
		}
	}
	return false
}

// prepareAlternativeText строит текстовое представление вложения: заголовок
// вида "[Photo]", дополнение к заголовку и строки тела.
func prepareAlternativeText(attch domain.Attachment) (needNewline bool, header, extraInfo string, body []string) {
	switch a := attch.(type) {
	case domain.VkGeo:
		header = "[Geo]"
		body = []string{
			a.Title,
			fmt.Sprintf("https://www.google.com/maps/search/?api=1&query=%v,%v", a.Latitude, a.Longitude),
		}
	case domain.VkPhoto:
		header = "[Photo]"
		body = []string{a.URL}
	case domain.VkVideo:
		header = "[Video]"
		body = []string{a.Title}
	case domain.VkAudio:
		header = "[Audio]"
		body = []string{fmt.Sprintf("%s - %s", a.Artist, a.Title)}
		if a.ContentRestricted {
			body = append(body, "restricted (audio is unavailable)")
		} else if link, ok := a.PublicURL(); ok {
			body = append(body, link)
		}
	case domain.VkVoice:
		header = "[Voice]"
		body = []string{a.LinkOgg}
	case domain.VkDocument:
		header = "[Document]"
		body = []string{a.Title, a.URL}
	case domain.VkPoll:
		needNewline = true
		header = "[Poll]"
		anonymity := "public"
		if a.Anonymous {
			anonymity = "anonymous"
		}
		choice := "single"
		if a.Multiple {
			choice = "multiple"
		}
		extraInfo = fmt.Sprintf(" %s, %s choice", anonymity, choice)
		body = []string{"", a.Question, ""}
		for _, answer := range a.Answers {
			body = append(body, fmt.Sprintf("◆ %.0f%% - %s (%d)", answer.Rate, answer.Text, answer.Votes))
		}
	case domain.VkWall:
		header = "[Wall]"
		body = []string{a.PostURL()}
	case domain.VkSticker:
		header = "[Sticker]"
	case domain.VkLink:
		header = "[Link]"
		body = []string{a.Title, a.URL}
	case domain.VkUnsupportedAttachment:
		header = fmt.Sprintf("[%s]", titleWords(strings.ReplaceAll(a.TypeName, "_", " ")))
	default:
		header = fmt.Sprintf("[%T]", attch)
	}
	return needNewline, header, extraInfo, body
}

// makeLineWithForwardsAndAttachments собирает сводку вида
// "[Forward], [Photo], …" не длиннее maxItems элементов.
func makeLineWithForwardsAndAttachments(msg *preparedMessage, maxItems int) string {
	var items []string
	for range msg.forwards {
		items = append(items, "[Forward]")
	}
	for _, attch := range msg.attachments {
		items = append(items, attch.header)
	}
	if len(items) > maxItems {
		items = items[:maxItems]
		items = append(items, "…")
	}
	return strings.Join(items, ", ")
}

// shiftLines добавляет к строкам один уровень цитирования. Хвостовые пробелы
// убираются, пустая строка превращается в одинокий префикс.
func shiftLines(lines []string) []string {
	shifted := make([]string, len(lines))
	for i, line := range lines {
		shifted[i] = strings.TrimRight(shiftPrefix+line, " \t")
	}
	return shifted
}

// cutText усекает текст до maxLen рун и maxLines строк, отмечая усечение
// многоточием в конце последней строки.
func cutText(text string, maxLen, maxLines int) []string {
	wasCut := false
	if runes := []rune(text); len(runes) > maxLen {
		text = strings.TrimRight(string(runes[:maxLen-1]), " \t")
		wasCut = true
	}
	lines := splitLines(text)
	if len(lines) > maxLines {
		lines = lines[:maxLines]
		for len(lines) > 0 && lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}
		wasCut = true
	}
	if wasCut && len(lines) > 0 {
		lines[len(lines)-1] += "…"
	}
	return lines
}

// splitLines повторяет поведение разбиения текста по строкам для пустой
// строки: пустой текст даёт ноль строк, не одну пустую.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func titleWords(s string) string {
	words := strings.Split(s, " ")
	for i, word := range words {
		if word == "" {
			continue
		}
		runes := []rune(strings.ToLower(word))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
