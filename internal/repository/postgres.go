package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mailtriage/internal/model"
)

type Postgres struct {
	db  *pgxpool.Pool
	loc *time.Location
}

func NewPostgres(db *pgxpool.Pool, loc *time.Location) *Postgres {
	if loc == nil {
		loc = time.Local
	}
	return &Postgres{db: db, loc: loc}
}

func (r *Postgres) Close() {
	r.db.Close()
}

func (r *Postgres) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS email_summaries (
            id TEXT PRIMARY KEY,
            subject TEXT NOT NULL,
            sender TEXT NOT NULL,
            sender_email TEXT NOT NULL,
            received_at TIMESTAMPTZ NOT NULL,
            category TEXT NOT NULL,
            priority TEXT NOT NULL,
            summary TEXT NOT NULL,
            urgency_score DOUBLE PRECISION NOT NULL DEFAULT 0,
            is_read BOOLEAN NOT NULL DEFAULT FALSE,
            is_replied BOOLEAN NOT NULL DEFAULT FALSE,
            action_required BOOLEAN NOT NULL DEFAULT FALSE,
            follow_up_suggestions JSONB NOT NULL DEFAULT '[]',
            sentiment TEXT NOT NULL DEFAULT 'neutral',
            key_info JSONB NOT NULL DEFAULT '{}',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_email_summaries_received_at ON email_summaries (received_at)`,
		`CREATE TABLE IF NOT EXISTS daily_summaries (
            date TEXT PRIMARY KEY,
            total_emails INTEGER NOT NULL,
            payload JSONB NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS configurations (
            namespace TEXT PRIMARY KEY,
            data JSONB NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS vip_contacts (
            email TEXT PRIMARY KEY,
            name TEXT NOT NULL DEFAULT '',
            priority_level TEXT NOT NULL DEFAULT 'high',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// SaveEmailSummary upserts by id. is_read and is_replied are only set on
// insert so user state survives re-processing.
func (r *Postgres) SaveEmailSummary(ctx context.Context, s model.EmailSummary) error {
	followUps, err := encodeJSON(s.FollowUpSuggestions)
	if err != nil {
		return err
	}
	keyInfo, err := encodeJSON(s.KeyInfo)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO email_summaries (id, subject, sender, sender_email, received_at, category, priority,
            summary, urgency_score, is_read, is_replied, action_required, follow_up_suggestions, sentiment, key_info)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
        ON CONFLICT (id) DO UPDATE SET
            subject = EXCLUDED.subject,
            sender = EXCLUDED.sender,
            sender_email = EXCLUDED.sender_email,
            received_at = EXCLUDED.received_at,
            category = EXCLUDED.category,
            priority = EXCLUDED.priority,
            summary = EXCLUDED.summary,
            urgency_score = EXCLUDED.urgency_score,
            action_required = EXCLUDED.action_required,
            follow_up_suggestions = EXCLUDED.follow_up_suggestions,
            sentiment = EXCLUDED.sentiment,
            key_info = EXCLUDED.key_info,
            updated_at = NOW()
    `
	_, err = r.db.Exec(ctx, query,
		s.ID, s.Subject, s.Sender, s.SenderEmail, s.ReceivedAt, string(s.Category), string(s.Priority),
		s.Summary, s.UrgencyScore, s.IsRead, s.IsReplied, s.ActionRequired, followUps, string(s.Sentiment), keyInfo,
	)
	if err != nil {
		return fmt.Errorf("save email summary %s: %w", s.ID, err)
	}
	return nil
}

func (r *Postgres) scanSummaries(rows pgx.Rows) ([]model.EmailSummary, error) {
	defer rows.Close()
	out := []model.EmailSummary{}
	for rows.Next() {
		s, err := r.scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Postgres) scanSummary(row pgx.Row) (model.EmailSummary, error) {
	var s model.EmailSummary
	var category, priority, sentiment string
	var followUps, keyInfo []byte
	err := row.Scan(
		&s.ID, &s.Subject, &s.Sender, &s.SenderEmail, &s.ReceivedAt, &category, &priority, &s.Summary,
		&s.UrgencyScore, &s.IsRead, &s.IsReplied, &s.ActionRequired, &followUps, &sentiment, &keyInfo,
	)
	if err != nil {
		return s, err
	}
	s.Category = model.Category(category)
	s.Priority = model.Priority(priority)
	s.Sentiment = model.Sentiment(sentiment)
	s.ReceivedAt = s.ReceivedAt.In(r.loc)
	return s, decodeSummaryJSON(&s, followUps, keyInfo)
}

func (r *Postgres) EmailSummary(ctx context.Context, id string) (model.EmailSummary, error) {
	query := `SELECT ` + summaryColumns + ` FROM email_summaries WHERE id = $1`
	s, err := r.scanSummary(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return s, fmt.Errorf("email %s: %w", id, ErrNotFound)
	}
	return s, err
}

// EmailsByDate returns the emails received on date, newest first.
func (r *Postgres) EmailsByDate(ctx context.Context, date string) ([]model.EmailSummary, error) {
	start, end, err := dayBounds(date, r.loc)
	if err != nil {
		return nil, err
	}
	query := `
        SELECT ` + summaryColumns + `
        FROM email_summaries
        WHERE received_at >= $1 AND received_at < $2
        ORDER BY received_at DESC, id
    `
	rows, err := r.db.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query emails by date: %w", err)
	}
	return r.scanSummaries(rows)
}

// PendingResponses returns unreplied action-required emails received
// before olderThan, oldest first.
func (r *Postgres) PendingResponses(ctx context.Context, olderThan time.Time) ([]model.EmailSummary, error) {
	query := `
        SELECT ` + summaryColumns + `
        FROM email_summaries
        WHERE action_required AND NOT is_replied AND received_at < $1
        ORDER BY received_at, id
    `
	rows, err := r.db.Query(ctx, query, olderThan)
	if err != nil {
		return nil, fmt.Errorf("query pending responses: %w", err)
	}
	return r.scanSummaries(rows)
}

func (r *Postgres) MarkRead(ctx context.Context, id string) error {
	return r.setFlag(ctx, `UPDATE email_summaries SET is_read = TRUE, updated_at = NOW() WHERE id = $1`, id)
}

func (r *Postgres) MarkReplied(ctx context.Context, id string) error {
	return r.setFlag(ctx, `UPDATE email_summaries SET is_replied = TRUE, updated_at = NOW() WHERE id = $1`, id)
}

func (r *Postgres) setFlag(ctx context.Context, query, id string) error {
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("update email %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("email %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *Postgres) SaveDailySummary(ctx context.Context, d model.DailySummary) error {
	payload, err := encodeJSON(d)
	if err != nil {
		return err
	}
	query := `
        INSERT INTO daily_summaries (date, total_emails, payload)
        VALUES ($1, $2, $3)
        ON CONFLICT (date) DO UPDATE SET
            total_emails = EXCLUDED.total_emails,
            payload = EXCLUDED.payload,
            updated_at = NOW()
    `
	if _, err := r.db.Exec(ctx, query, d.Date, d.TotalEmails, payload); err != nil {
		return fmt.Errorf("save daily summary %s: %w", d.Date, err)
	}
	return nil
}

func (r *Postgres) DailySummary(ctx context.Context, date string) (model.DailySummary, error) {
	var total int
	var payload []byte
	err := r.db.QueryRow(ctx, `SELECT total_emails, payload FROM daily_summaries WHERE date = $1`, date).Scan(&total, &payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.DailySummary{}, fmt.Errorf("daily summary %s: %w", date, ErrNotFound)
	}
	if err != nil {
		return model.DailySummary{}, fmt.Errorf("load daily summary %s: %w", date, err)
	}
	return decodeDaily(date, total, payload)
}

func (r *Postgres) VipContacts(ctx context.Context) ([]model.VipContact, error) {
	rows, err := r.db.Query(ctx, `SELECT email, name, priority_level, created_at FROM vip_contacts ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("query vip contacts: %w", err)
	}
	defer rows.Close()

	out := []model.VipContact{}
	for rows.Next() {
		var c model.VipContact
		if err := rows.Scan(&c.Email, &c.Name, &c.PriorityLevel, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Postgres) AddVipContact(ctx context.Context, c model.VipContact) error {
	if c.PriorityLevel == "" {
		c.PriorityLevel = "high"
	}
	query := `
        INSERT INTO vip_contacts (email, name, priority_level)
        VALUES ($1, $2, $3)
        ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name, priority_level = EXCLUDED.priority_level
    `
	if _, err := r.db.Exec(ctx, query, normalizeEmail(c.Email), c.Name, c.PriorityLevel); err != nil {
		return fmt.Errorf("add vip contact: %w", err)
	}
	return nil
}

func (r *Postgres) RemoveVipContact(ctx context.Context, email string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM vip_contacts WHERE email = $1`, normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("remove vip contact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("vip contact %s: %w", email, ErrNotFound)
	}
	return nil
}

func (r *Postgres) Config(ctx context.Context, namespace string) (json.RawMessage, error) {
	var data []byte
	err := r.db.QueryRow(ctx, `SELECT data FROM configurations WHERE namespace = $1`, namespace).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("config %s: %w", namespace, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", namespace, err)
	}
	return json.RawMessage(data), nil
}

func (r *Postgres) SaveConfig(ctx context.Context, namespace string, data json.RawMessage) error {
	if !json.Valid(data) {
		return fmt.Errorf("config %s: invalid json", namespace)
	}
	query := `
        INSERT INTO configurations (namespace, data)
        VALUES ($1, $2)
        ON CONFLICT (namespace) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()
    `
	if _, err := r.db.Exec(ctx, query, namespace, []byte(data)); err != nil {
		return fmt.Errorf("save config %s: %w", namespace, err)
	}
	return nil
}
