// Package telegram содержит клиент Telegram и импорт истории чата через MTProto.
package telegram

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"

	"vk-tg-transfer/internal/pkg/term"
)

// ClientConfig содержит учетные данные приложения Telegram.
type ClientConfig struct {
	APIID       int
	APIHash     string
	PhoneNumber string
	SessionPath string
}

// authFlow определяет интерфейс для процесса аутентификации.
type authFlow interface {
	Run(ctx context.Context, client auth.FlowClient) error
}

// Client является оберткой вокруг клиента gotd, которая инкапсулирует
// хранение сессии и интерактивную аутентификацию.
type Client struct {
	tgClient *telegram.Client
	authFlow authFlow
	log      *slog.Logger
}

// ClientOption определяет функциональную опцию для конфигурации клиента.
type ClientOption func(*Client)

// WithClientLogger устанавливает логгер для клиента.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient создает новый экземпляр Client. Сессия сохраняется в файл,
// поэтому интерактивный вход нужен только при первом запуске.
func NewClient(cfg ClientConfig, opts ...ClientOption) *Client {
	termAuth := term.NewTerminal(cfg.PhoneNumber)

	tgClient := telegram.NewClient(cfg.APIID, cfg.APIHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: cfg.SessionPath},
	})

	c := &Client{
		tgClient: tgClient,
		authFlow: auth.NewFlow(termAuth, auth.SendCodeOptions{}),
		log:      slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Run запускает клиент, при необходимости проходит аутентификацию
// и выполняет f с готовым к работе API.
func (c *Client) Run(ctx context.Context, f func(ctx context.Context, api *tg.Client) error) error {
	return c.tgClient.Run(ctx, func(runCtx context.Context) error {
		status, err := c.tgClient.Auth().Status(runCtx)
		if err != nil {
			return fmt.Errorf("проверка статуса аутентификации: %w", err)
		}
		if !status.Authorized {
			c.log.InfoContext(runCtx, "Session is not authorized, starting interactive auth")
			if authErr := c.authFlow.Run(runCtx, c.tgClient.Auth()); authErr != nil {
				return fmt.Errorf("интерактивная аутентификация: %w", authErr)
			}
			c.log.InfoContext(runCtx, "Interactive auth successful, session saved")
		}
		return f(runCtx, c.tgClient.API())
	})
}
