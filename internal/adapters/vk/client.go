// Package vk реализует клиент VK API поверх HTTP.
// https://dev.vk.com/api/api-requests
package vk

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"vk-tg-transfer/internal/domain"
	"vk-tg-transfer/internal/ports"
)

const defaultBaseURL = "https://api.vk.com/method"

// Option — функциональная опция для настройки клиента.
type Option func(*Client)

// WithLogger устанавливает логгер клиента.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithHTTPClient подменяет HTTP-клиент.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL подменяет адрес API. Используется в тестах.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// Client реализует интерфейс ports.VkAPI поверх REST-вызовов VK API.
type Client struct {
	httpClient  *http.Client
	log         *slog.Logger
	baseURL     string
	accessToken string
	version     string
}

// NewClient создает клиент VK API.
func NewClient(accessToken, version string, opts ...Option) *Client {
	c := &Client{
		httpClient:  http.DefaultClient,
		log:         slog.Default(),
		baseURL:     defaultBaseURL,
		accessToken: accessToken,
		version:     version,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiError — конверт ошибки VK API.
// https://dev.vk.com/reference/errors
type apiError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("vk api error %d: %s", e.Code, e.Message)
}

type apiEnvelope struct {
	Response json.RawMessage `json:"response"`
	Error    *apiError       `json:"error"`
}

// call выполняет один метод API и раскладывает ответ в dst.
func (c *Client) call(ctx context.Context, method string, params url.Values, dst any) error {
	form := url.Values{}
	for key, values := range params {
		form[key] = values
	}
	form.Set("access_token", c.accessToken)
	form.Set("v", c.version)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/"+method, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build request %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request %s returned status %d", method, resp.StatusCode)
	}

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("request %s failed: %w", method, envelope.Error)
	}
	if err := json.Unmarshal(envelope.Response, dst); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", method, err)
	}
	return nil
}

type userPayload struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// UsersGet разрешает пакет идентификаторов пользователей через users.get.
// Удалённые аккаунты могут отсутствовать в ответе.
func (c *Client) UsersGet(ctx context.Context, ids []int64) ([]ports.VkUser, error) {
	params := url.Values{}
	params.Set("user_ids", joinIDs(ids))

	var payload []userPayload
	if err := c.call(ctx, "users.get", params, &payload); err != nil {
		return nil, err
	}
	users := make([]ports.VkUser, len(payload))
	for i, u := range payload {
		users[i] = ports.VkUser{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName}
	}
	return users, nil
}

// Ego возвращает владельца токена: users.get без идентификаторов отвечает
// именно про него.
func (c *Client) Ego(ctx context.Context) (ports.VkUser, error) {
	var payload []userPayload
	if err := c.call(ctx, "users.get", url.Values{}, &payload); err != nil {
		return ports.VkUser{}, err
	}
	if len(payload) != 1 {
		return ports.VkUser{}, fmt.Errorf("users.get without ids returned %d users", len(payload))
	}
	u := payload[0]
	return ports.VkUser{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName}, nil
}

// GroupsGetByID разрешает пакет идентификаторов сообществ через
// groups.getById. Идентификаторы положительные.
func (c *Client) GroupsGetByID(ctx context.Context, ids []int64) ([]ports.VkGroup, error) {
	params := url.Values{}
	params.Set("group_ids", joinIDs(ids))

	var payload []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	if err := c.call(ctx, "groups.getById", params, &payload); err != nil {
		return nil, err
	}
	groups := make([]ports.VkGroup, len(payload))
	for i, g := range payload {
		groups[i] = ports.VkGroup{ID: g.ID, Name: g.Name}
	}
	return groups, nil
}

// VideoPlayerURL возвращает подписанный URL плеера через video.get.
// URL живёт недолго, запрашивать его стоит прямо перед скачиванием.
func (c *Client) VideoPlayerURL(ctx context.Context, video domain.VkVideo) (string, error) {
	if video.ContentRestricted {
		return "", nil
	}
	params := url.Values{}
	params.Set("videos", video.Key())

	var payload struct {
		Items []struct {
			// Player отсутствует у удалённых видео.
			Player string `json:"player"`
		} `json:"items"`
	}
	if err := c.call(ctx, "video.get", params, &payload); err != nil {
		return "", err
	}
	if len(payload.Items) == 0 {
		c.log.Warn("video.get returned no items, video is probably deleted", "video", video.Key())
		return "", nil
	}
	return payload.Items[0].Player, nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
