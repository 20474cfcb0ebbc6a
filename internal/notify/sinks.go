package notify

import (
	"net/http"
	"strings"

	"mailtriage/internal/model"
	"mailtriage/pkg/config"
)

// Settings merges the notification_config record over file configuration.
// Non-empty record fields win.
func Settings(cfg config.NotifyConfig, rec model.NotificationSettings) model.NotificationSettings {
	out := model.NotificationSettings{
		SlackWebhookURL:    cfg.SlackWebhookURL,
		TelegramBotToken:   cfg.TelegramBotToken,
		TelegramChatID:     cfg.TelegramChatID,
		WhatsAppWebhookURL: cfg.WhatsAppWebhookURL,
		Channels:           cfg.Channels,
		VoiceEnabled:       rec.VoiceEnabled,
	}
	if rec.SlackWebhookURL != "" {
		out.SlackWebhookURL = rec.SlackWebhookURL
	}
	if rec.TelegramBotToken != "" {
		out.TelegramBotToken = rec.TelegramBotToken
	}
	if rec.TelegramChatID != "" {
		out.TelegramChatID = rec.TelegramChatID
	}
	if rec.WhatsAppWebhookURL != "" {
		out.WhatsAppWebhookURL = rec.WhatsAppWebhookURL
	}
	if len(rec.Channels) > 0 {
		out.Channels = rec.Channels
	}
	return out
}

// BuildSinks returns a sink for every configured channel. When Channels is
// non-empty only the named channels are built. pub may be nil, in which
// case no event sink is added.
func BuildSinks(s model.NotificationSettings, telegramAPIBase string, pub Publisher, client *http.Client) []Sink {
	enabled := func(name string) bool {
		if len(s.Channels) == 0 {
			return true
		}
		for _, c := range s.Channels {
			if strings.EqualFold(strings.TrimSpace(c), name) {
				return true
			}
		}
		return false
	}

	var sinks []Sink
	if s.SlackWebhookURL != "" && enabled("slack") {
		sinks = append(sinks, NewSlackSink(s.SlackWebhookURL, client))
	}
	if s.TelegramBotToken != "" && s.TelegramChatID != "" && enabled("telegram") {
		sinks = append(sinks, NewTelegramSink(telegramAPIBase, s.TelegramBotToken, s.TelegramChatID, client))
	}
	if s.WhatsAppWebhookURL != "" && enabled("whatsapp") {
		sinks = append(sinks, NewWhatsAppSink(s.WhatsAppWebhookURL, client))
	}
	if pub != nil && enabled("events") {
		sinks = append(sinks, NewEventSink(pub))
	}
	return sinks
}
