// Package repository persists triage results, daily summaries, VIP contacts
// and configuration records. Postgres and SQLite implementations share the
// same schema and semantics.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"mailtriage/internal/model"
	"mailtriage/pkg/config"
	"mailtriage/pkg/db"
)

var ErrNotFound = errors.New("record not found")

// Store is implemented by *Postgres and *SQLite.
type Store interface {
	Migrate(ctx context.Context) error
	SaveEmailSummary(ctx context.Context, s model.EmailSummary) error
	EmailSummary(ctx context.Context, id string) (model.EmailSummary, error)
	EmailsByDate(ctx context.Context, date string) ([]model.EmailSummary, error)
	PendingResponses(ctx context.Context, olderThan time.Time) ([]model.EmailSummary, error)
	MarkRead(ctx context.Context, id string) error
	MarkReplied(ctx context.Context, id string) error
	SaveDailySummary(ctx context.Context, d model.DailySummary) error
	DailySummary(ctx context.Context, date string) (model.DailySummary, error)
	VipContacts(ctx context.Context) ([]model.VipContact, error)
	AddVipContact(ctx context.Context, c model.VipContact) error
	RemoveVipContact(ctx context.Context, email string) error
	Config(ctx context.Context, namespace string) (json.RawMessage, error)
	SaveConfig(ctx context.Context, namespace string, data json.RawMessage) error
	Close()
}

// Open connects to the configured driver and applies the schema.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, error) {
	loc, err := location(cfg.Store.Timezone)
	if err != nil {
		return nil, err
	}

	var store Store
	switch cfg.Store.Driver {
	case "postgres":
		pool, err := db.NewConnection(ctx, cfg.DB, logger)
		if err != nil {
			return nil, err
		}
		store = NewPostgres(pool, loc)
	case "sqlite", "":
		store, err = OpenSQLite(cfg.Store.SQLitePath, loc)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate %s store: %w", cfg.Store.Driver, err)
	}
	logger.Info("record store ready", zap.String("driver", cfg.Store.Driver))
	return store, nil
}

func location(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// dayBounds returns [start, end) of the calendar day date in loc.
func dayBounds(date string, loc *time.Location) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(model.DateLayout, date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return start, start.AddDate(0, 0, 1), nil
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

func encodeJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return b, nil
}

// summaryColumns is shared by both drivers' SELECT statements.
const summaryColumns = `id, subject, sender, sender_email, received_at, category, priority, summary,
        urgency_score, is_read, is_replied, action_required, follow_up_suggestions, sentiment, key_info`

// decodeSummaryJSON fills the JSON-encoded columns of s.
func decodeSummaryJSON(s *model.EmailSummary, followUps, keyInfo []byte) error {
	s.FollowUpSuggestions = []string{}
	if len(followUps) > 0 {
		if err := json.Unmarshal(followUps, &s.FollowUpSuggestions); err != nil {
			return fmt.Errorf("decode follow_up_suggestions of %s: %w", s.ID, err)
		}
	}
	if len(keyInfo) > 0 {
		if err := json.Unmarshal(keyInfo, &s.KeyInfo); err != nil {
			return fmt.Errorf("decode key_info of %s: %w", s.ID, err)
		}
	}
	fillKeyInfo(&s.KeyInfo)
	return nil
}

func fillKeyInfo(k *model.KeyInfo) {
	if k.Dates == nil {
		k.Dates = []string{}
	}
	if k.Times == nil {
		k.Times = []string{}
	}
	if k.URLs == nil {
		k.URLs = []string{}
	}
	if k.Amounts == nil {
		k.Amounts = []string{}
	}
}

func decodeDaily(date string, total int, payload []byte) (model.DailySummary, error) {
	var d model.DailySummary
	if err := json.Unmarshal(payload, &d); err != nil {
		return model.DailySummary{}, fmt.Errorf("decode daily summary %s: %w", date, err)
	}
	d.Date = date
	d.TotalEmails = total
	if d.Categories == nil {
		d.Categories = map[model.Category]int{}
	}
	if d.PriorityBreakdown == nil {
		d.PriorityBreakdown = map[model.Priority]int{}
	}
	if d.UrgentEmails == nil {
		d.UrgentEmails = []model.EmailSummary{}
	}
	if d.UnreadEmails == nil {
		d.UnreadEmails = []model.EmailSummary{}
	}
	if d.ResponseReminders == nil {
		d.ResponseReminders = []model.EmailSummary{}
	}
	return d, nil
}
