package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadConfig merges base.yaml with <env>.yaml and substitutes ${VAR}
// placeholders from secrets.env and the process environment.
// configDir defaults to "config".
func LoadConfig(env string, configDir string) (map[string]interface{}, error) {
	if configDir == "" {
		configDir = "config"
	}

	baseConfig, err := loadYAMLFile(filepath.Join(configDir, "base.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to load base.yaml: %w", err)
	}

	envConfig := make(map[string]interface{})
	if env != "" && env != "base" {
		envFile := filepath.Join(configDir, fmt.Sprintf("%s.yaml", env))
		if _, err := os.Stat(envFile); err == nil {
			envConfig, err = loadYAMLFile(envFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load %s.yaml: %w", env, err)
			}
		}
	}

	merged := mergeMaps(baseConfig, envConfig)

	secrets := make(map[string]string)
	secretsFile := filepath.Join(configDir, "secrets.env")
	if _, err := os.Stat(secretsFile); err == nil {
		secrets, err = godotenv.Read(secretsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load secrets.env: %w", err)
		}
	}

	// process environment wins over secrets.env
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			secrets[k] = v
		}
	}

	return substituteEnvVars(merged, secrets), nil
}

// Load builds a typed Config from LoadConfig's merged map and applies the
// Override*FromEnv functions.
func Load(env, configDir string) (*Config, error) {
	cfgMap, err := LoadConfig(env, configDir)
	if err != nil {
		return nil, err
	}

	cfgData, err := yaml.Marshal(cfgMap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(cfgData, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	OverrideServerFromEnv(&cfg.Server)
	OverrideStoreFromEnv(&cfg.Store)
	OverrideDBFromEnv(&cfg.DB)
	OverrideRedisFromEnv(&cfg.Redis)
	OverrideMQFromEnv(&cfg.MQ)
	OverrideJWTFromEnv(&cfg.JWT)
	OverrideIMAPFromEnv(&cfg.IMAP)
	OverrideAIFromEnv(&cfg.AI)
	OverrideNotifyFromEnv(&cfg.Notify)
	OverrideSchedulerFromEnv(&cfg.Scheduler)
	applyDefaults(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "sqlite"
	}
	if cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = "mailtriage.db"
	}
	if cfg.MQ.Exchange == "" {
		cfg.MQ.Exchange = "triage"
	}
	if cfg.IMAP.Port == 0 {
		cfg.IMAP.Port = 993
	}
	if cfg.IMAP.Mailbox == "" {
		cfg.IMAP.Mailbox = "INBOX"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "gpt-3.5-turbo"
	}
	if cfg.Scheduler.DailySummaryTime == "" {
		cfg.Scheduler.DailySummaryTime = "09:00"
	}
	if cfg.Scheduler.ResponseReminderHours == 0 {
		cfg.Scheduler.ResponseReminderHours = 24
	}
	if cfg.Scheduler.FetchLimit == 0 {
		cfg.Scheduler.FetchLimit = 50
	}
	if cfg.Scheduler.CheckInterval == 0 {
		cfg.Scheduler.CheckInterval = 2 * time.Hour
	}
	if cfg.Scheduler.ReminderInterval == 0 {
		cfg.Scheduler.ReminderInterval = 6 * time.Hour
	}
	if cfg.Scheduler.CycleTimeout == 0 {
		cfg.Scheduler.CycleTimeout = time.Hour
	}
	if cfg.Notify.Timeout == 0 {
		cfg.Notify.Timeout = 10 * time.Second
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 30 * time.Second
	}
	if cfg.IMAP.Timeout == 0 {
		cfg.IMAP.Timeout = 30 * time.Second
	}
}

func loadYAMLFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config map[string]interface{}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, err
	}
	if config == nil {
		config = make(map[string]interface{})
	}

	return config, nil
}

// mergeMaps returns dst overlaid with src; nested maps merge recursively.
func mergeMaps(dst, src map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})

	for k, v := range dst {
		result[k] = v
	}

	for k, v := range src {
		if dstMap, ok := result[k].(map[string]interface{}); ok {
			if srcMap, ok := v.(map[string]interface{}); ok {
				result[k] = mergeMaps(dstMap, srcMap)
				continue
			}
		}
		result[k] = v
	}

	return result
}

func substituteEnvVars(config map[string]interface{}, env map[string]string) map[string]interface{} {
	result := make(map[string]interface{})
	for k, v := range config {
		result[k] = substituteValue(v, env)
	}
	return result
}

func substituteValue(v interface{}, env map[string]string) interface{} {
	switch val := v.(type) {
	case string:
		return substituteString(val, env)
	case map[string]interface{}:
		return substituteEnvVars(val, env)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = substituteValue(item, env)
		}
		return out
	default:
		return v
	}
}

var placeholderRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// substituteString expands ${VAR}; unknown variables become "".
func substituteString(s string, env map[string]string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		return env[placeholderRe.FindStringSubmatch(m)[1]]
	})
}

// GetEnv returns the value of key, or defaultValue when unset.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetConfigEnv returns CONFIG_ENV, default "local".
func GetConfigEnv() string {
	return GetEnv("CONFIG_ENV", "local")
}
