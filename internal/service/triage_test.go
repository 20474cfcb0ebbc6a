package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"mailtriage/internal/advisor"
	"mailtriage/internal/categorizer"
	"mailtriage/internal/model"
	"mailtriage/internal/notify"
	"mailtriage/internal/pipeline"
	"mailtriage/internal/repository"
	"mailtriage/internal/scorer"
	"mailtriage/internal/voice"
	"mailtriage/pkg/config"
)

type fakeSource struct {
	emails []model.RawEmail
	err    error
	since  time.Time
	limit  int
}

func (f *fakeSource) Fetch(_ context.Context, since time.Time, limit int) ([]model.RawEmail, error) {
	f.since, f.limit = since, limit
	if f.err != nil {
		return nil, f.err
	}
	return append([]model.RawEmail(nil), f.emails...), nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
	down bool
}

func (f *fakeNotifier) Send(_ context.Context, msg notify.Message) map[string]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return map[string]bool{"fake": !f.down}
}

type memDeduper struct {
	seen map[string]bool
}

func (d *memDeduper) AcquireOnce(_ context.Context, handler, id string) bool {
	key := handler + ":" + id
	if d.seen[key] {
		return false
	}
	d.seen[key] = true
	return true
}

func (d *memDeduper) Release(_ context.Context, handler, id string) {
	delete(d.seen, handler+":"+id)
}

type fakeVoice struct {
	digests []voice.Digest
}

func (f *fakeVoice) Speak(_ context.Context, d voice.Digest) error {
	f.digests = append(f.digests, d)
	return nil
}

type fixture struct {
	svc      *TriageService
	store    *repository.SQLite
	source   *fakeSource
	notifier *fakeNotifier
	voice    *fakeVoice
}

var day = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, emails ...model.RawEmail) *fixture {
	t.Helper()
	store, err := repository.OpenSQLite(":memory:", time.UTC)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := &config.Config{}
	cfg.Scheduler.FetchLimit = 50
	cfg.Scheduler.ResponseReminderHours = 24
	cfg.Voice.Enabled = true

	f := &fixture{
		store:    store,
		source:   &fakeSource{emails: emails},
		notifier: &fakeNotifier{},
		voice:    &fakeVoice{},
	}
	p := pipeline.New(categorizer.New(nil), scorer.New(nil), advisor.NewLocal(), nil)
	f.svc = NewTriageService(Deps{
		Source:   f.source,
		Store:    store,
		Pipeline: p,
		Advisor:  advisor.NewLocal(),
		Notifier: func(model.NotificationSettings) Notifier { return f.notifier },
		Voice:    f.voice,
		Deduper:  &memDeduper{seen: map[string]bool{}},
	}, cfg, time.UTC, nil)
	f.svc.now = func() time.Time { return day.Add(20 * time.Hour) }
	return f
}

func raw(id, subject, body, sender string, at time.Time) model.RawEmail {
	return model.RawEmail{ID: id, Subject: subject, Body: body, Sender: "Someone", SenderEmail: sender, ReceivedAt: at}
}

func TestProcessDayStoresAndNotifies(t *testing.T) {
	f := newFixture(t,
		raw("a", "URGENT: server down", "Please fix ASAP, deadline today", "ops@example.com", day.Add(9*time.Hour)),
		raw("b", "Weekly newsletter", "Big sale, unsubscribe here", "news@shop.com", day.Add(10*time.Hour)),
		raw("old", "Yesterday", "old mail", "x@example.com", day.Add(-2*time.Hour)),
	)
	ctx := context.Background()

	res, err := f.svc.ProcessDay(ctx, "2025-06-02")
	if err != nil {
		t.Fatalf("ProcessDay: %v", err)
	}
	if !f.source.since.Equal(day) || f.source.limit != 50 {
		t.Fatalf("fetch since %v limit %d", f.source.since, f.source.limit)
	}
	if len(res.Processed) != 2 || res.Fetched != 3 {
		t.Fatalf("processed %d fetched %d", len(res.Processed), res.Fetched)
	}
	if res.Summary == nil || res.Summary.TotalEmails != 2 {
		t.Fatalf("summary = %+v", res.Summary)
	}

	stored, err := f.store.DailySummary(ctx, "2025-06-02")
	if err != nil {
		t.Fatalf("stored summary: %v", err)
	}
	if stored.TotalEmails != 2 || stored.Narrative == "" {
		t.Fatalf("stored = %+v", stored)
	}

	if len(f.notifier.sent) != 1 || !strings.Contains(f.notifier.sent[0].Title, "Daily Email Summary") {
		t.Fatalf("sent = %+v", f.notifier.sent)
	}
	if len(f.voice.digests) != 1 || f.voice.digests[0].Kind != voice.KindDaily {
		t.Fatalf("digests = %+v", f.voice.digests)
	}
}

func TestProcessDayEmptyDoesNotNotify(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.ProcessDay(context.Background(), "2025-06-02")
	if err != nil {
		t.Fatalf("ProcessDay: %v", err)
	}
	if res.Summary.TotalEmails != 0 || len(f.notifier.sent) != 0 {
		t.Fatalf("res = %+v sent = %v", res, f.notifier.sent)
	}
}

func TestProcessDayFetchError(t *testing.T) {
	f := newFixture(t)
	f.source.err = errors.New("login failed")
	if _, err := f.svc.ProcessDay(context.Background(), "2025-06-02"); err == nil {
		t.Fatal("expected fetch error")
	}
}

func TestProcessDayRejectsBadDate(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.ProcessDay(context.Background(), "06/02/2025"); err == nil {
		t.Fatal("expected invalid date error")
	}
}

func TestCheckNewEmailsAlertsOnce(t *testing.T) {
	f := newFixture(t,
		raw("u", "URGENT: outage", "critical emergency, respond immediately asap", "ops@example.com", day.Add(9*time.Hour)),
		raw("n", "Lunch?", "want to grab lunch", "friend@example.com", day.Add(9*time.Hour)),
	)
	ctx := context.Background()

	if _, err := f.svc.CheckNewEmails(ctx); err != nil {
		t.Fatalf("CheckNewEmails: %v", err)
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0].Priority != "urgent" {
		t.Fatalf("sent = %+v", f.notifier.sent)
	}
	if !strings.Contains(f.notifier.sent[0].Body, "URGENT: outage") || strings.Contains(f.notifier.sent[0].Body, "Lunch?") {
		t.Fatalf("alert body = %q", f.notifier.sent[0].Body)
	}

	if _, err := f.svc.CheckNewEmails(ctx); err != nil {
		t.Fatalf("second CheckNewEmails: %v", err)
	}
	if len(f.notifier.sent) != 1 {
		t.Fatalf("urgent alert repeated: %d messages", len(f.notifier.sent))
	}
}

func TestCheckNewEmailsRetriesUndeliveredAlert(t *testing.T) {
	f := newFixture(t,
		raw("u", "URGENT: outage", "critical emergency, respond immediately asap", "ops@example.com", day.Add(9*time.Hour)),
	)
	f.notifier.down = true
	ctx := context.Background()

	if _, err := f.svc.CheckNewEmails(ctx); err != nil {
		t.Fatalf("CheckNewEmails: %v", err)
	}
	f.notifier.down = false
	if _, err := f.svc.CheckNewEmails(ctx); err != nil {
		t.Fatalf("second CheckNewEmails: %v", err)
	}
	if len(f.notifier.sent) != 2 {
		t.Fatalf("alert not retried after failed delivery: %d messages", len(f.notifier.sent))
	}

	if _, err := f.svc.CheckNewEmails(ctx); err != nil {
		t.Fatalf("third CheckNewEmails: %v", err)
	}
	if len(f.notifier.sent) != 2 {
		t.Fatalf("delivered alert repeated: %d messages", len(f.notifier.sent))
	}
}

func TestProcessPastDayKeepsUndatedMail(t *testing.T) {
	f := newFixture(t,
		raw("undated", "Quarterly report", "see the attached report", "boss@example.com", time.Time{}),
	)
	ctx := context.Background()

	res, err := f.svc.ProcessDay(ctx, "2025-06-01")
	if err != nil {
		t.Fatalf("ProcessDay: %v", err)
	}
	if res.Summary == nil || res.Summary.TotalEmails != 1 {
		t.Fatalf("summary = %+v", res.Summary)
	}
	stored, err := f.store.EmailsByDate(ctx, "2025-06-01")
	if err != nil {
		t.Fatalf("EmailsByDate: %v", err)
	}
	if len(stored) != 1 || stored[0].ID != "undated" {
		t.Fatalf("stored = %+v", stored)
	}
	today, err := f.store.EmailsByDate(ctx, "2025-06-02")
	if err != nil {
		t.Fatalf("EmailsByDate today: %v", err)
	}
	if len(today) != 0 {
		t.Fatalf("undated mail leaked into today: %+v", today)
	}
}

func TestCheckResponseReminders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old := model.EmailSummary{
		ID: "r1", Subject: "Please reply", Sender: "Boss", ReceivedAt: day.Add(-48 * time.Hour),
		Category: model.CategoryWork, Priority: model.PriorityMedium, ActionRequired: true,
		FollowUpSuggestions: []string{}, KeyInfo: model.KeyInfo{},
	}
	fresh := old
	fresh.ID, fresh.ReceivedAt = "r2", day.Add(19*time.Hour)
	for _, e := range []model.EmailSummary{old, fresh} {
		if err := f.store.SaveEmailSummary(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	due, err := f.svc.CheckResponseReminders(ctx)
	if err != nil {
		t.Fatalf("CheckResponseReminders: %v", err)
	}
	if len(due) != 1 || due[0].ID != "r1" {
		t.Fatalf("due = %+v", due)
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0].Priority != "high" {
		t.Fatalf("sent = %+v", f.notifier.sent)
	}

	f.notifier.down = true
	f.svc.deps.Deduper = &memDeduper{seen: map[string]bool{}}
	if due, err = f.svc.CheckResponseReminders(ctx); err != nil || len(due) != 0 {
		t.Fatalf("undelivered reminders: due=%+v err=%v", due, err)
	}
	f.notifier.down = false
	if due, err = f.svc.CheckResponseReminders(ctx); err != nil || len(due) != 1 {
		t.Fatalf("reminder not retried: due=%+v err=%v", due, err)
	}
}

func TestSettingsRecordsOverrideFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	email, _ := json.Marshal(model.EmailSettings{VipEmails: []string{"ceo@example.com"}, ResponseReminderHours: 6, FetchLimit: 10})
	if err := f.store.SaveConfig(ctx, model.ConfigEmail, email); err != nil {
		t.Fatal(err)
	}
	off := false
	n, _ := json.Marshal(model.NotificationSettings{SlackWebhookURL: "http://hook", VoiceEnabled: &off})
	if err := f.store.SaveConfig(ctx, model.ConfigNotification, n); err != nil {
		t.Fatal(err)
	}

	s, err := f.svc.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if s.FetchLimit != 10 || s.ResponseReminderHours != 6 || s.VoiceEnabled {
		t.Fatalf("settings = %+v", s)
	}
	if s.Notification.SlackWebhookURL != "http://hook" || len(s.VipEmails) != 1 {
		t.Fatalf("settings = %+v", s)
	}
}

func TestVIPContactRaisesPriority(t *testing.T) {
	f := newFixture(t, raw("v", "hello", "just checking in", "ceo@example.com", day.Add(9*time.Hour)))
	ctx := context.Background()
	if err := f.store.AddVipContact(ctx, model.VipContact{Email: "CEO@example.com", Name: "CEO"}); err != nil {
		t.Fatal(err)
	}

	res, err := f.svc.ProcessDay(ctx, "2025-06-02")
	if err != nil {
		t.Fatal(err)
	}
	if res.Processed[0].Priority != model.PriorityHigh {
		t.Fatalf("priority = %s, want high", res.Processed[0].Priority)
	}
}

func TestDailySummaryBuildsWhenMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := model.EmailSummary{ID: "s1", Subject: "x", ReceivedAt: day.Add(time.Hour), Category: model.CategoryOther,
		Priority: model.PriorityLow, FollowUpSuggestions: []string{}}
	if err := f.store.SaveEmailSummary(ctx, e); err != nil {
		t.Fatal(err)
	}

	got, err := f.svc.DailySummary(ctx, "2025-06-02")
	if err != nil {
		t.Fatalf("DailySummary: %v", err)
	}
	if got.TotalEmails != 1 {
		t.Fatalf("total = %d", got.TotalEmails)
	}
	if _, err := f.store.DailySummary(ctx, "2025-06-02"); err != nil {
		t.Fatalf("summary was not stored: %v", err)
	}
}
