package model

// Configuration record namespaces.
const (
	ConfigEmail        = "email_config"
	ConfigNotification = "notification_config"
)

// EmailSettings is the email_config record. Zero fields fall back to file
// configuration.
type EmailSettings struct {
	VipEmails             []string `json:"vip_emails"`
	DailySummaryTime      string   `json:"daily_summary_time"`
	ResponseReminderHours int      `json:"response_reminder_hours"`
	FetchLimit            int      `json:"fetch_limit"`
}

// NotificationSettings is the notification_config record.
type NotificationSettings struct {
	SlackWebhookURL    string   `json:"slack_webhook_url"`
	TelegramBotToken   string   `json:"telegram_bot_token"`
	TelegramChatID     string   `json:"telegram_chat_id"`
	WhatsAppWebhookURL string   `json:"whatsapp_webhook_url"`
	Channels           []string `json:"channels"`
	VoiceEnabled       *bool    `json:"voice_enabled,omitempty"`
}
