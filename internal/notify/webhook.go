package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultTelegramAPIBase = "https://api.telegram.org"
	slackFooter            = "Mail Triage"
)

var slackColors = map[string]string{
	"urgent": "#ff0000",
	"high":   "#ff9900",
	"normal": "#36a64f",
	"low":    "#cccccc",
}

var telegramEmoji = map[string]string{
	"urgent": "🚨",
	"high":   "⚠️",
	"normal": "📧",
	"low":    "📬",
}

// SlackColor maps a priority to an attachment colour; unknown priorities
// use the normal colour.
func SlackColor(priority string) string {
	if c, ok := slackColors[priority]; ok {
		return c
	}
	return slackColors["normal"]
}

func TelegramEmoji(priority string) string {
	if e, ok := telegramEmoji[priority]; ok {
		return e
	}
	return telegramEmoji["normal"]
}

// postJSON posts payload and treats any non-2xx status as an error.
func postJSON(ctx context.Context, client *http.Client, url string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func defaultClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: defaultTimeout}
}

type SlackSink struct {
	webhookURL string
	client     *http.Client
	now        func() time.Time
}

func NewSlackSink(webhookURL string, client *http.Client) *SlackSink {
	return &SlackSink{webhookURL: webhookURL, client: defaultClient(client), now: time.Now}
}

func (s *SlackSink) Name() string { return "slack" }

type slackAttachment struct {
	Color  string `json:"color"`
	Title  string `json:"title"`
	Text   string `json:"text"`
	Footer string `json:"footer"`
	Ts     int64  `json:"ts"`
}

type slackPayload struct {
	Attachments []slackAttachment `json:"attachments"`
}

func (s *SlackSink) Send(ctx context.Context, msg Message) error {
	payload := slackPayload{Attachments: []slackAttachment{{
		Color:  SlackColor(msg.Priority),
		Title:  msg.Title,
		Text:   msg.Body,
		Footer: slackFooter,
		Ts:     s.now().Unix(),
	}}}
	if err := postJSON(ctx, s.client, s.webhookURL, payload); err != nil {
		return fmt.Errorf("slack: %w", err)
	}
	return nil
}

type TelegramSink struct {
	apiBase string
	token   string
	chatID  string
	client  *http.Client
}

// NewTelegramSink posts through the Bot API sendMessage method. An empty
// apiBase uses the public Telegram endpoint.
func NewTelegramSink(apiBase, token, chatID string, client *http.Client) *TelegramSink {
	if apiBase == "" {
		apiBase = DefaultTelegramAPIBase
	}
	return &TelegramSink{
		apiBase: strings.TrimRight(apiBase, "/"),
		token:   token,
		chatID:  chatID,
		client:  defaultClient(client),
	}
}

func (s *TelegramSink) Name() string { return "telegram" }

type telegramPayload struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// TelegramText renders msg as a Markdown message with a priority emoji.
func TelegramText(msg Message) string {
	return fmt.Sprintf("%s *%s*\n\n%s", TelegramEmoji(msg.Priority), msg.Title, msg.Body)
}

func (s *TelegramSink) Send(ctx context.Context, msg Message) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.token)
	payload := telegramPayload{
		ChatID:    s.chatID,
		Text:      TelegramText(msg),
		ParseMode: "Markdown",
	}
	// the url carries the bot token, keep it out of the error
	if err := postJSON(ctx, s.client, url, payload); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("telegram: %w", ctxErr)
		}
		return fmt.Errorf("telegram: %s", redact(err.Error(), s.token))
	}
	return nil
}

func redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "***")
}

type WhatsAppSink struct {
	webhookURL string
	client     *http.Client
	now        func() time.Time
}

func NewWhatsAppSink(webhookURL string, client *http.Client) *WhatsAppSink {
	return &WhatsAppSink{webhookURL: webhookURL, client: defaultClient(client), now: time.Now}
}

func (s *WhatsAppSink) Name() string { return "whatsapp" }

type whatsAppPayload struct {
	Title     string `json:"title"`
	Message   string `json:"message"`
	Priority  string `json:"priority"`
	Timestamp int64  `json:"timestamp"`
}

func (s *WhatsAppSink) Send(ctx context.Context, msg Message) error {
	payload := whatsAppPayload{
		Title:     msg.Title,
		Message:   msg.Body,
		Priority:  msg.Priority,
		Timestamp: s.now().Unix(),
	}
	if err := postJSON(ctx, s.client, s.webhookURL, payload); err != nil {
		return fmt.Errorf("whatsapp: %w", err)
	}
	return nil
}
