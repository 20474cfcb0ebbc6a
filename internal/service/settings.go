package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"mailtriage/internal/model"
	"mailtriage/internal/notify"
	"mailtriage/internal/repository"
	"mailtriage/pkg/config"
)

// Settings is the effective runtime configuration of a cycle: file
// configuration overridden by the email_config and notification_config
// records.
type Settings struct {
	VipEmails             []string
	DailySummaryTime      string
	ResponseReminderHours int
	FetchLimit            int
	Notification          model.NotificationSettings
	VoiceEnabled          bool
}

// LoadSettings merges store records over cfg. Missing records are not an
// error.
func LoadSettings(ctx context.Context, store Store, cfg *config.Config) (Settings, error) {
	s := Settings{
		DailySummaryTime:      cfg.Scheduler.DailySummaryTime,
		ResponseReminderHours: cfg.Scheduler.ResponseReminderHours,
		FetchLimit:            cfg.Scheduler.FetchLimit,
		VoiceEnabled:          cfg.Voice.Enabled,
	}

	var email model.EmailSettings
	if err := loadRecord(ctx, store, model.ConfigEmail, &email); err != nil {
		return s, err
	}
	s.VipEmails = email.VipEmails
	if email.DailySummaryTime != "" {
		s.DailySummaryTime = email.DailySummaryTime
	}
	if email.ResponseReminderHours > 0 {
		s.ResponseReminderHours = email.ResponseReminderHours
	}
	if email.FetchLimit > 0 {
		s.FetchLimit = email.FetchLimit
	}

	var rec model.NotificationSettings
	if err := loadRecord(ctx, store, model.ConfigNotification, &rec); err != nil {
		return s, err
	}
	s.Notification = notify.Settings(cfg.Notify, rec)
	if rec.VoiceEnabled != nil {
		s.VoiceEnabled = *rec.VoiceEnabled
	}
	return s, nil
}

func loadRecord(ctx context.Context, store Store, namespace string, into any) error {
	raw, err := store.Config(ctx, namespace)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", namespace, err)
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("decode %s: %w", namespace, err)
	}
	return nil
}
