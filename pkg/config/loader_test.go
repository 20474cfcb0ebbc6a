package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadMergesLayers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
server:
  port: "8080"
store:
  driver: sqlite
imap:
  host: imap.example.com
  password: ${MAILTRIAGE_TEST_IMAP_PASSWORD}
ai:
  timeout: 20s
scheduler:
  daily_summary_time: "09:00"
notify:
  channels: [slack, telegram]
`)
	writeFile(t, dir, "staging.yaml", `
server:
  port: "9090"
scheduler:
  check_interval: 2h
`)
	writeFile(t, dir, "secrets.env", "MAILTRIAGE_TEST_IMAP_PASSWORD=s3cret\n")

	cfg, err := Load("staging", dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("port: got %q, want 9090", cfg.Server.Port)
	}
	if cfg.IMAP.Host != "imap.example.com" {
		t.Errorf("imap host: got %q", cfg.IMAP.Host)
	}
	if cfg.IMAP.Password != "s3cret" {
		t.Errorf("imap password: got %q, want s3cret", cfg.IMAP.Password)
	}
	if cfg.AI.Timeout != 20*time.Second {
		t.Errorf("ai timeout: got %v", cfg.AI.Timeout)
	}
	if cfg.Scheduler.CheckInterval != 2*time.Hour {
		t.Errorf("check interval: got %v", cfg.Scheduler.CheckInterval)
	}
	if len(cfg.Notify.Channels) != 2 || cfg.Notify.Channels[1] != "telegram" {
		t.Errorf("channels: got %v", cfg.Notify.Channels)
	}
	if cfg.Scheduler.CycleTimeout != time.Hour {
		t.Errorf("cycle timeout: got %v, want 1h", cfg.Scheduler.CycleTimeout)
	}
	if cfg.Scheduler.FetchLimit != 50 || cfg.MQ.Exchange != "triage" {
		t.Errorf("defaults not applied: fetch_limit=%d exchange=%q", cfg.Scheduler.FetchLimit, cfg.MQ.Exchange)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "server:\n  port: \"8080\"\n")
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("NOTIFICATION_CHANNELS", "slack, whatsapp")
	t.Setenv("CYCLE_TIMEOUT", "45m")

	cfg, err := Load("local", dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("port: got %q, want 7070", cfg.Server.Port)
	}
	if len(cfg.Notify.Channels) != 2 || cfg.Notify.Channels[1] != "whatsapp" {
		t.Errorf("channels: got %v", cfg.Notify.Channels)
	}
	if cfg.Scheduler.CycleTimeout != 45*time.Minute {
		t.Errorf("cycle timeout: got %v, want 45m", cfg.Scheduler.CycleTimeout)
	}
}

func TestLoadMissingBase(t *testing.T) {
	if _, err := LoadConfig("local", t.TempDir()); err == nil {
		t.Fatal("expected error for missing base.yaml")
	}
}

func TestSubstituteStringKeepsDollarSigns(t *testing.T) {
	got := substituteString("p$ss-${A}-${B}", map[string]string{"A": "x"})
	if got != "p$ss-x-" {
		t.Fatalf("got %q, want p$ss-x-", got)
	}
}
