// Пакет mailer — HTTP-клиент транзакционного почтового API.
// Письмо отправляется одним запросом POST {TB_MAIL_API_URL} с JSON-телом
// {from, to, subject, html} и заголовком Authorization: Bearer {TB_MAIL_API_KEY}.
// Если TB_MAIL_API_URL не задан, используется LogMailer: письма только логируются.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// maxErrorBody — сколько байт тела ошибки попадает в текст ошибки.
const maxErrorBody = 512

// message — тело запроса к почтовому API.
type message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Client — HTTP-клиент почтового API.
type Client struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	from       string
	logger     *slog.Logger
}

// New создаёт клиент почтового API.
// Таймаут отправки задаётся контекстом вызывающего; httpClient.Timeout —
// верхняя граница на случай контекста без дедлайна.
func New(apiURL, apiKey, from string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiURL:     strings.TrimRight(apiURL, "/"),
		apiKey:     apiKey,
		from:       from,
		logger:     logger.With(slog.String("component", "mailer")),
	}
}

// Send отправляет письмо. Любой ответ кроме 2xx — ошибка.
func (c *Client) Send(ctx context.Context, to, subject, html string) error {
	body, err := json.Marshal(message{From: c.from, To: to, Subject: subject, HTML: html})
	if err != nil {
		return fmt.Errorf("кодирование письма: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("создание запроса к почтовому API: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("запрос к почтовому API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("почтовый API вернул статус %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	c.logger.Debug("Письмо принято почтовым API",
		slog.String("to", to),
		slog.Int("status", resp.StatusCode),
	)
	return nil
}

// LogMailer пишет письма в лог вместо отправки. Используется без TB_MAIL_API_URL.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer создаёт LogMailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger.With(slog.String("component", "mailer"))}
}

// Send логирует письмо.
func (m *LogMailer) Send(_ context.Context, to, subject, html string) error {
	m.logger.Info("Почтовый API не настроен, письмо не отправлено",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.Int("html_bytes", len(html)),
	)
	return nil
}
