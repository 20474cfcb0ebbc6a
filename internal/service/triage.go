// Package service runs triage cycles: fetch, triage, store, aggregate and
// notify.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"mailtriage/internal/advisor"
	"mailtriage/internal/aggregate"
	"mailtriage/internal/model"
	"mailtriage/internal/notify"
	"mailtriage/internal/pipeline"
	"mailtriage/internal/repository"
	"mailtriage/internal/scorer"
	"mailtriage/internal/voice"
	"mailtriage/pkg/config"
	"mailtriage/pkg/logger"
)

const (
	dedupUrgentAlert      = "urgent_alert"
	dedupResponseReminder = "response_reminder"
)

type MailSource interface {
	Fetch(ctx context.Context, since time.Time, limit int) ([]model.RawEmail, error)
}

// Store is the subset of repository.Store used by cycles.
type Store interface {
	SaveEmailSummary(ctx context.Context, s model.EmailSummary) error
	EmailsByDate(ctx context.Context, date string) ([]model.EmailSummary, error)
	PendingResponses(ctx context.Context, olderThan time.Time) ([]model.EmailSummary, error)
	SaveDailySummary(ctx context.Context, d model.DailySummary) error
	DailySummary(ctx context.Context, date string) (model.DailySummary, error)
	VipContacts(ctx context.Context) ([]model.VipContact, error)
	Config(ctx context.Context, namespace string) (json.RawMessage, error)
}

type Notifier interface {
	Send(ctx context.Context, msg notify.Message) map[string]bool
}

// NotifierFunc builds a notifier for the current notification settings.
type NotifierFunc func(s model.NotificationSettings) Notifier

// Deduper is satisfied by *util.Deduper.
type Deduper interface {
	AcquireOnce(ctx context.Context, handler, id string) bool
	Release(ctx context.Context, handler, id string)
}

// Deps are the collaborators of a TriageService. Voice and Deduper are
// optional.
type Deps struct {
	Source   MailSource
	Store    Store
	Pipeline *pipeline.Pipeline
	Advisor  advisor.Advisor
	Notifier NotifierFunc
	Voice    voice.Sink
	Deduper  Deduper
}

// CycleResult reports one fetch-and-triage pass.
type CycleResult struct {
	Date      string               `json:"date"`
	Fetched   int                  `json:"fetched"`
	Processed []model.EmailSummary `json:"processed"`
	Skipped   []string             `json:"skipped"`
	Summary   *model.DailySummary  `json:"summary,omitempty"`
	Notified  map[string]bool      `json:"notified,omitempty"`
}

type TriageService struct {
	deps   Deps
	cfg    *config.Config
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

func NewTriageService(deps Deps, cfg *config.Config, loc *time.Location, l *zap.Logger) *TriageService {
	if loc == nil {
		loc = time.Local
	}
	if deps.Advisor == nil {
		deps.Advisor = advisor.NewLocal()
	}
	return &TriageService{
		deps:   deps,
		cfg:    cfg,
		loc:    loc,
		now:    time.Now,
		logger: logger.OrNop(l),
	}
}

func (s *TriageService) Settings(ctx context.Context) (Settings, error) {
	return LoadSettings(ctx, s.deps.Store, s.cfg)
}

// Today is the current date in the service timezone.
func (s *TriageService) Today() string {
	return s.now().In(s.loc).Format(model.DateLayout)
}

// vipSet unions the email_config VIP list with stored VIP contacts.
func (s *TriageService) vipSet(ctx context.Context, settings Settings) pipeline.VIPSet {
	emails := append([]string(nil), settings.VipEmails...)
	contacts, err := s.deps.Store.VipContacts(ctx)
	if err != nil {
		logger.WithTrace(ctx, s.logger).Warn("Failed to load VIP contacts", zap.Error(err))
	}
	for _, c := range contacts {
		emails = append(emails, c.Email)
	}
	return scorer.NewVIPSet(emails...)
}

func (s *TriageService) notifier(settings Settings) Notifier {
	if s.deps.Notifier == nil {
		return nil
	}
	return s.deps.Notifier(settings.Notification)
}

func (s *TriageService) send(ctx context.Context, settings Settings, msg notify.Message) map[string]bool {
	n := s.notifier(settings)
	if n == nil {
		return map[string]bool{}
	}
	return n.Send(ctx, msg)
}

func (s *TriageService) speak(ctx context.Context, settings Settings, kind voice.Kind, text string) {
	if !settings.VoiceEnabled || s.deps.Voice == nil {
		return
	}
	d := voice.NewDigest(kind, text, "en", s.now())
	if err := s.deps.Voice.Speak(ctx, d); err != nil {
		logger.WithTrace(ctx, s.logger).Warn("Voice digest failed", zap.String("kind", string(kind)), zap.Error(err))
	}
}

// triage fetches mail received since the start of date and runs it through
// the pipeline, storing every result.
func (s *TriageService) triage(ctx context.Context, date string, settings Settings) (CycleResult, error) {
	start, end, err := s.dayBounds(date)
	if err != nil {
		return CycleResult{}, err
	}
	l := logger.WithTrace(ctx, s.logger)

	raws, err := s.deps.Source.Fetch(ctx, start, settings.FetchLimit)
	if err != nil {
		return CycleResult{}, fmt.Errorf("fetch emails since %s: %w", date, err)
	}

	// undated mail belongs to the day being processed; the pipeline only
	// stamps it with the current time for today's runs
	past := date != s.Today()
	inDay := raws[:0]
	for _, r := range raws {
		if r.ReceivedAt.IsZero() {
			if past {
				r.ReceivedAt = start
			}
			inDay = append(inDay, r)
			continue
		}
		if !r.ReceivedAt.Before(start) && r.ReceivedAt.Before(end) {
			inDay = append(inDay, r)
		}
	}

	batch := s.deps.Pipeline.ProcessBatch(ctx, inDay, s.vipSet(ctx, settings), s.deps.Store.SaveEmailSummary)
	result := CycleResult{
		Date:      date,
		Fetched:   len(raws),
		Processed: batch.Summaries,
		Skipped:   make([]string, 0, len(batch.Skipped)),
	}
	for _, sk := range batch.Skipped {
		result.Skipped = append(result.Skipped, sk.ID)
	}

	l.Info("Triage pass finished",
		zap.String("date", date),
		zap.Int("fetched", len(raws)),
		zap.Int("processed", len(batch.Summaries)),
		zap.Int("skipped", len(batch.Skipped)),
	)
	return result, nil
}

// ProcessDay triages the given day, rebuilds and stores its daily summary,
// and sends the daily notification and voice digest when the day has mail.
func (s *TriageService) ProcessDay(ctx context.Context, date string) (CycleResult, error) {
	if date == "" {
		date = s.Today()
	}
	settings, err := s.Settings(ctx)
	if err != nil {
		return CycleResult{}, err
	}

	result, err := s.triage(ctx, date, settings)
	if err != nil {
		return result, err
	}

	summary, err := s.RebuildDailySummary(ctx, date)
	if err != nil {
		// fall back to what this pass produced
		logger.WithTrace(ctx, s.logger).Warn("Rebuilding daily summary from store failed", zap.Error(err))
		summary = aggregate.Aggregate(result.Processed, date)
		summary.Narrative = s.narrative(ctx, result.Processed)
		if err := s.deps.Store.SaveDailySummary(ctx, summary); err != nil {
			logger.WithTrace(ctx, s.logger).Error("Failed to store daily summary", zap.String("date", date), zap.Error(err))
		}
	}
	result.Summary = &summary

	if summary.TotalEmails > 0 {
		result.Notified = s.send(ctx, settings, notify.DailySummaryMessage(summary))
		s.speak(ctx, settings, voice.KindDaily, voice.DailyScript(summary))
	}
	return result, nil
}

// CheckNewEmails triages today's mail and alerts once per email about new
// high and urgent priority messages.
func (s *TriageService) CheckNewEmails(ctx context.Context) (CycleResult, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return CycleResult{}, err
	}
	result, err := s.triage(ctx, s.Today(), settings)
	if err != nil {
		return result, err
	}

	var urgent []model.EmailSummary
	for _, e := range result.Processed {
		if e.Priority != model.PriorityHigh && e.Priority != model.PriorityUrgent {
			continue
		}
		if s.deps.Deduper != nil && !s.deps.Deduper.AcquireOnce(ctx, dedupUrgentAlert, e.ID) {
			continue
		}
		urgent = append(urgent, e)
	}

	if len(urgent) > 0 {
		result.Notified = s.send(ctx, settings, notify.UrgentAlertMessage(urgent))
		if !delivered(result.Notified) {
			s.release(ctx, dedupUrgentAlert, urgent)
		}
		s.speak(ctx, settings, voice.KindUrgent, voice.UrgentScript(urgent))
	}
	return result, nil
}

// CheckResponseReminders notifies about action-required emails that have
// gone unanswered for the configured number of hours.
func (s *TriageService) CheckResponseReminders(ctx context.Context) ([]model.EmailSummary, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return nil, err
	}
	hours := settings.ResponseReminderHours
	if hours <= 0 {
		hours = 24
	}

	pending, err := s.ResponseReminders(ctx, hours)
	if err != nil {
		return nil, err
	}

	due := make([]model.EmailSummary, 0, len(pending))
	for _, e := range pending {
		if s.deps.Deduper != nil && !s.deps.Deduper.AcquireOnce(ctx, dedupResponseReminder, e.ID) {
			continue
		}
		due = append(due, e)
	}
	if len(due) > 0 {
		if !delivered(s.send(ctx, settings, notify.ResponseReminderMessage(due))) {
			s.release(ctx, dedupResponseReminder, due)
			due = due[:0]
		}
	}
	logger.WithTrace(ctx, s.logger).Info("Response reminders checked",
		zap.Int("pending", len(pending)),
		zap.Int("reminded", len(due)),
	)
	return due, nil
}

// delivered reports whether at least one channel accepted the message.
func delivered(results map[string]bool) bool {
	for _, ok := range results {
		if ok {
			return true
		}
	}
	return false
}

// release drops the dedupe keys of emails whose alert reached no channel so
// the next run retries them.
func (s *TriageService) release(ctx context.Context, handler string, emails []model.EmailSummary) {
	if s.deps.Deduper == nil {
		return
	}
	logger.WithTrace(ctx, s.logger).Warn("Alert reached no channel, will retry",
		zap.String("handler", handler),
		zap.Int("emails", len(emails)),
	)
	for _, e := range emails {
		s.deps.Deduper.Release(ctx, handler, e.ID)
	}
}

// ResponseReminders lists unreplied action-required emails received more
// than hours ago, oldest first.
func (s *TriageService) ResponseReminders(ctx context.Context, hours int) ([]model.EmailSummary, error) {
	cutoff := s.now().Add(-time.Duration(hours) * time.Hour)
	pending, err := s.deps.Store.PendingResponses(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("load pending responses: %w", err)
	}
	return pending, nil
}

// RebuildDailySummary aggregates the stored emails of date and stores the
// result.
func (s *TriageService) RebuildDailySummary(ctx context.Context, date string) (model.DailySummary, error) {
	if _, _, err := s.dayBounds(date); err != nil {
		return model.DailySummary{}, err
	}
	emails, err := s.deps.Store.EmailsByDate(ctx, date)
	if err != nil {
		return model.DailySummary{}, fmt.Errorf("load emails of %s: %w", date, err)
	}

	summary := aggregate.Aggregate(emails, date)
	summary.Narrative = s.narrative(ctx, emails)
	if err := s.deps.Store.SaveDailySummary(ctx, summary); err != nil {
		return summary, fmt.Errorf("store daily summary %s: %w", date, err)
	}
	return summary, nil
}

// DailySummary returns the stored summary of date, building it from stored
// emails when none exists yet.
func (s *TriageService) DailySummary(ctx context.Context, date string) (model.DailySummary, error) {
	summary, err := s.deps.Store.DailySummary(ctx, date)
	if err == nil {
		return summary, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.DailySummary{}, err
	}
	return s.RebuildDailySummary(ctx, date)
}

// Narrative is the natural-language summary of a day's stored emails.
func (s *TriageService) Narrative(ctx context.Context, date string) (string, error) {
	emails, err := s.deps.Store.EmailsByDate(ctx, date)
	if err != nil {
		return "", fmt.Errorf("load emails of %s: %w", date, err)
	}
	return s.narrative(ctx, emails), nil
}

func (s *TriageService) narrative(ctx context.Context, emails []model.EmailSummary) string {
	text, err := s.deps.Advisor.DailyNarrative(ctx, emails)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			logger.WithTrace(ctx, s.logger).Warn("Daily narrative failed, using fallback", zap.Error(err))
		}
		return advisor.FallbackNarrative(emails)
	}
	return text
}

// TestNotifications sends the test message to every configured channel.
func (s *TriageService) TestNotifications(ctx context.Context) (map[string]bool, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return nil, err
	}
	return s.send(ctx, settings, notify.TestNotificationMessage()), nil
}

// SpeakCustom hands arbitrary text to the voice sink.
func (s *TriageService) SpeakCustom(ctx context.Context, text string) error {
	if s.deps.Voice == nil {
		return errors.New("voice output is not configured")
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("empty voice text")
	}
	return s.deps.Voice.Speak(ctx, voice.NewDigest(voice.KindCustom, text, "en", s.now()))
}

func (s *TriageService) dayBounds(date string) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation(model.DateLayout, date, s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return day, day.AddDate(0, 0, 1), nil
}
