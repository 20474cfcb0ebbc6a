package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"mailtriage/internal/model"
)

// SQLite stores received_at as unix milliseconds so day-range queries
// compare integers.
type SQLite struct {
	db  *sql.DB
	loc *time.Location
}

// OpenSQLite opens path (":memory:" for an in-memory database) with a
// single connection.
func OpenSQLite(path string, loc *time.Location) (*SQLite, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_pragma=synchronous(NORMAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	return NewSQLite(db, loc), nil
}

func NewSQLite(db *sql.DB, loc *time.Location) *SQLite {
	if loc == nil {
		loc = time.Local
	}
	return &SQLite{db: db, loc: loc}
}

func (r *SQLite) Close() {
	_ = r.db.Close()
}

func (r *SQLite) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS email_summaries (
            id TEXT PRIMARY KEY,
            subject TEXT NOT NULL,
            sender TEXT NOT NULL,
            sender_email TEXT NOT NULL,
            received_at INTEGER NOT NULL,
            category TEXT NOT NULL,
            priority TEXT NOT NULL,
            summary TEXT NOT NULL,
            urgency_score REAL NOT NULL DEFAULT 0,
            is_read INTEGER NOT NULL DEFAULT 0,
            is_replied INTEGER NOT NULL DEFAULT 0,
            action_required INTEGER NOT NULL DEFAULT 0,
            follow_up_suggestions TEXT NOT NULL DEFAULT '[]',
            sentiment TEXT NOT NULL DEFAULT 'neutral',
            key_info TEXT NOT NULL DEFAULT '{}',
            created_at INTEGER NOT NULL DEFAULT (unixepoch()),
            updated_at INTEGER NOT NULL DEFAULT (unixepoch())
        )`,
		`CREATE INDEX IF NOT EXISTS idx_email_summaries_received_at ON email_summaries (received_at)`,
		`CREATE TABLE IF NOT EXISTS daily_summaries (
            date TEXT PRIMARY KEY,
            total_emails INTEGER NOT NULL,
            payload TEXT NOT NULL,
            updated_at INTEGER NOT NULL DEFAULT (unixepoch())
        )`,
		`CREATE TABLE IF NOT EXISTS configurations (
            namespace TEXT PRIMARY KEY,
            data TEXT NOT NULL,
            updated_at INTEGER NOT NULL DEFAULT (unixepoch())
        )`,
		`CREATE TABLE IF NOT EXISTS vip_contacts (
            email TEXT PRIMARY KEY,
            name TEXT NOT NULL DEFAULT '',
            priority_level TEXT NOT NULL DEFAULT 'high',
            created_at INTEGER NOT NULL DEFAULT (unixepoch())
        )`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// SaveEmailSummary upserts by id. is_read and is_replied are only set on
// insert so user state survives re-processing.
func (r *SQLite) SaveEmailSummary(ctx context.Context, s model.EmailSummary) error {
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
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (id) DO UPDATE SET
            subject = excluded.subject,
            sender = excluded.sender,
            sender_email = excluded.sender_email,
            received_at = excluded.received_at,
            category = excluded.category,
            priority = excluded.priority,
            summary = excluded.summary,
            urgency_score = excluded.urgency_score,
            action_required = excluded.action_required,
            follow_up_suggestions = excluded.follow_up_suggestions,
            sentiment = excluded.sentiment,
            key_info = excluded.key_info,
            updated_at = unixepoch()
    `
	_, err = r.db.ExecContext(ctx, query,
		s.ID, s.Subject, s.Sender, s.SenderEmail, s.ReceivedAt.UnixMilli(), string(s.Category), string(s.Priority),
		s.Summary, s.UrgencyScore, s.IsRead, s.IsReplied, s.ActionRequired, string(followUps), string(s.Sentiment), string(keyInfo),
	)
	if err != nil {
		return fmt.Errorf("save email summary %s: %w", s.ID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *SQLite) scanSummary(row scanner) (model.EmailSummary, error) {
	var s model.EmailSummary
	var receivedAt int64
	var category, priority, sentiment, followUps, keyInfo string
	err := row.Scan(
		&s.ID, &s.Subject, &s.Sender, &s.SenderEmail, &receivedAt, &category, &priority, &s.Summary,
		&s.UrgencyScore, &s.IsRead, &s.IsReplied, &s.ActionRequired, &followUps, &sentiment, &keyInfo,
	)
	if err != nil {
		return s, err
	}
	s.ReceivedAt = time.UnixMilli(receivedAt).In(r.loc)
	s.Category = model.Category(category)
	s.Priority = model.Priority(priority)
	s.Sentiment = model.Sentiment(sentiment)
	return s, decodeSummaryJSON(&s, []byte(followUps), []byte(keyInfo))
}

func (r *SQLite) querySummaries(ctx context.Context, query string, args ...any) ([]model.EmailSummary, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
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

func (r *SQLite) EmailSummary(ctx context.Context, id string) (model.EmailSummary, error) {
	query := `SELECT ` + summaryColumns + ` FROM email_summaries WHERE id = ?`
	s, err := r.scanSummary(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return s, fmt.Errorf("email %s: %w", id, ErrNotFound)
	}
	return s, err
}

// EmailsByDate returns the emails received on date, newest first.
func (r *SQLite) EmailsByDate(ctx context.Context, date string) ([]model.EmailSummary, error) {
	start, end, err := dayBounds(date, r.loc)
	if err != nil {
		return nil, err
	}
	query := `
        SELECT ` + summaryColumns + `
        FROM email_summaries
        WHERE received_at >= ? AND received_at < ?
        ORDER BY received_at DESC, id
    `
	out, err := r.querySummaries(ctx, query, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query emails by date: %w", err)
	}
	return out, nil
}

// PendingResponses returns unreplied action-required emails received
// before olderThan, oldest first.
func (r *SQLite) PendingResponses(ctx context.Context, olderThan time.Time) ([]model.EmailSummary, error) {
	query := `
        SELECT ` + summaryColumns + `
        FROM email_summaries
        WHERE action_required = 1 AND is_replied = 0 AND received_at < ?
        ORDER BY received_at, id
    `
	out, err := r.querySummaries(ctx, query, olderThan.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query pending responses: %w", err)
	}
	return out, nil
}

func (r *SQLite) MarkRead(ctx context.Context, id string) error {
	return r.setFlag(ctx, `UPDATE email_summaries SET is_read = 1, updated_at = unixepoch() WHERE id = ?`, id)
}

func (r *SQLite) MarkReplied(ctx context.Context, id string) error {
	return r.setFlag(ctx, `UPDATE email_summaries SET is_replied = 1, updated_at = unixepoch() WHERE id = ?`, id)
}

func (r *SQLite) setFlag(ctx context.Context, query, id string) error {
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("update email %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("email %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SQLite) SaveDailySummary(ctx context.Context, d model.DailySummary) error {
	payload, err := encodeJSON(d)
	if err != nil {
		return err
	}
	query := `
        INSERT INTO daily_summaries (date, total_emails, payload)
        VALUES (?, ?, ?)
        ON CONFLICT (date) DO UPDATE SET
            total_emails = excluded.total_emails,
            payload = excluded.payload,
            updated_at = unixepoch()
    `
	if _, err := r.db.ExecContext(ctx, query, d.Date, d.TotalEmails, string(payload)); err != nil {
		return fmt.Errorf("save daily summary %s: %w", d.Date, err)
	}
	return nil
}

func (r *SQLite) DailySummary(ctx context.Context, date string) (model.DailySummary, error) {
	var total int
	var payload string
	err := r.db.QueryRowContext(ctx, `SELECT total_emails, payload FROM daily_summaries WHERE date = ?`, date).Scan(&total, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DailySummary{}, fmt.Errorf("daily summary %s: %w", date, ErrNotFound)
	}
	if err != nil {
		return model.DailySummary{}, fmt.Errorf("load daily summary %s: %w", date, err)
	}
	return decodeDaily(date, total, []byte(payload))
}

func (r *SQLite) VipContacts(ctx context.Context) ([]model.VipContact, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT email, name, priority_level, created_at FROM vip_contacts ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("query vip contacts: %w", err)
	}
	defer rows.Close()

	out := []model.VipContact{}
	for rows.Next() {
		var c model.VipContact
		var created int64
		if err := rows.Scan(&c.Email, &c.Name, &c.PriorityLevel, &created); err != nil {
			return nil, err
		}
		c.CreatedAt = time.Unix(created, 0).In(r.loc)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLite) AddVipContact(ctx context.Context, c model.VipContact) error {
	if c.PriorityLevel == "" {
		c.PriorityLevel = "high"
	}
	query := `
        INSERT INTO vip_contacts (email, name, priority_level)
        VALUES (?, ?, ?)
        ON CONFLICT (email) DO UPDATE SET name = excluded.name, priority_level = excluded.priority_level
    `
	if _, err := r.db.ExecContext(ctx, query, normalizeEmail(c.Email), c.Name, c.PriorityLevel); err != nil {
		return fmt.Errorf("add vip contact: %w", err)
	}
	return nil
}

func (r *SQLite) RemoveVipContact(ctx context.Context, email string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM vip_contacts WHERE email = ?`, normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("remove vip contact: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("vip contact %s: %w", email, ErrNotFound)
	}
	return nil
}

func (r *SQLite) Config(ctx context.Context, namespace string) (json.RawMessage, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM configurations WHERE namespace = ?`, namespace).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("config %s: %w", namespace, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", namespace, err)
	}
	return json.RawMessage(data), nil
}

func (r *SQLite) SaveConfig(ctx context.Context, namespace string, data json.RawMessage) error {
	if !json.Valid(data) {
		return fmt.Errorf("config %s: invalid json", namespace)
	}
	query := `
        INSERT INTO configurations (namespace, data)
        VALUES (?, ?)
        ON CONFLICT (namespace) DO UPDATE SET data = excluded.data, updated_at = unixepoch()
    `
	if _, err := r.db.ExecContext(ctx, query, namespace, string(data)); err != nil {
		return fmt.Errorf("save config %s: %w", namespace, err)
	}
	return nil
}
