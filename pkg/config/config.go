package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full process configuration assembled by Load.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Store     StoreConfig     `yaml:"store"`
	DB        DBConfig        `yaml:"db"`
	Redis     RedisConfig     `yaml:"redis"`
	MQ        MQConfig        `yaml:"mq"`
	JWT       JWTConfig       `yaml:"jwt"`
	IMAP      IMAPConfig      `yaml:"imap"`
	AI        AIConfig        `yaml:"ai"`
	Notify    NotifyConfig    `yaml:"notify"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Voice     VoiceConfig     `yaml:"voice"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// StoreConfig selects the record store. Driver is "postgres" or "sqlite".
type StoreConfig struct {
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlite_path"`
	Timezone   string `yaml:"timezone"`
}

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

type MQConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
}

type IMAPConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Mailbox  string        `yaml:"mailbox"`
	TLS      bool          `yaml:"tls"`
	Timeout  time.Duration `yaml:"timeout"`
}

// AIConfig configures the generative advisor. An empty APIKey selects the
// local deterministic advisor.
type AIConfig struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	MaxTokens   int64         `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

type NotifyConfig struct {
	SlackWebhookURL    string        `yaml:"slack_webhook_url"`
	TelegramBotToken   string        `yaml:"telegram_bot_token"`
	TelegramChatID     string        `yaml:"telegram_chat_id"`
	TelegramAPIBase    string        `yaml:"telegram_api_base"`
	WhatsAppWebhookURL string        `yaml:"whatsapp_webhook_url"`
	Channels           []string      `yaml:"channels"`
	Events             bool          `yaml:"events"`
	Timeout            time.Duration `yaml:"timeout"`
}

type SchedulerConfig struct {
	DailySummaryTime      string        `yaml:"daily_summary_time"`
	CheckInterval         time.Duration `yaml:"check_interval"`
	ReminderInterval      time.Duration `yaml:"reminder_interval"`
	CycleTimeout          time.Duration `yaml:"cycle_timeout"`
	ResponseReminderHours int           `yaml:"response_reminder_hours"`
	FetchLimit            int           `yaml:"fetch_limit"`
}

type VoiceConfig struct {
	Enabled   bool   `yaml:"enabled"`
	OutputDir string `yaml:"output_dir"`
}

// DSN renders the postgres connection string.
func (c DBConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.Name + "?sslmode=disable"
}

// OverrideDBFromEnv overrides database settings from DB_* variables.
func OverrideDBFromEnv(cfg *DBConfig) {
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Name = name
	}
}

func OverrideStoreFromEnv(cfg *StoreConfig) {
	if driver := os.Getenv("STORE_DRIVER"); driver != "" {
		cfg.Driver = driver
	}
	if path := os.Getenv("SQLITE_PATH"); path != "" {
		cfg.SQLitePath = path
	}
}

func OverrideMQFromEnv(cfg *MQConfig) {
	if url := os.Getenv("MQ_URL"); url != "" {
		cfg.URL = url
	}
}

func OverrideRedisFromEnv(cfg *RedisConfig) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Password = password
	}
}

func OverrideJWTFromEnv(cfg *JWTConfig) {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Secret = secret
	}
}

func OverrideServerFromEnv(cfg *ServerConfig) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}
}

// OverrideIMAPFromEnv reads EMAIL_* variables for the mailbox credentials.
func OverrideIMAPFromEnv(cfg *IMAPConfig) {
	if host := os.Getenv("IMAP_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("IMAP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if user := os.Getenv("EMAIL_ADDRESS"); user != "" {
		cfg.Username = user
	}
	if password := os.Getenv("EMAIL_PASSWORD"); password != "" {
		cfg.Password = password
	}
}

func OverrideAIFromEnv(cfg *AIConfig) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.APIKey = key
	}
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
		cfg.BaseURL = base
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		cfg.Model = model
	}
}

func OverrideNotifyFromEnv(cfg *NotifyConfig) {
	if url := os.Getenv("SLACK_WEBHOOK_URL"); url != "" {
		cfg.SlackWebhookURL = url
	}
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		cfg.TelegramBotToken = token
	}
	if chat := os.Getenv("TELEGRAM_CHAT_ID"); chat != "" {
		cfg.TelegramChatID = chat
	}
	if url := os.Getenv("WHATSAPP_WEBHOOK_URL"); url != "" {
		cfg.WhatsAppWebhookURL = url
	}
	if channels := os.Getenv("NOTIFICATION_CHANNELS"); channels != "" {
		cfg.Channels = splitList(channels)
	}
}

func OverrideSchedulerFromEnv(cfg *SchedulerConfig) {
	if at := os.Getenv("DAILY_SUMMARY_TIME"); at != "" {
		cfg.DailySummaryTime = at
	}
	if timeout := os.Getenv("CYCLE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.CycleTimeout = d
		}
	}
	if hours := os.Getenv("RESPONSE_REMINDER_HOURS"); hours != "" {
		if h, err := strconv.Atoi(hours); err == nil {
			cfg.ResponseReminderHours = h
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
