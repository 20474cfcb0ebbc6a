// Package voice renders spoken digest scripts and hands them to a speech
// sink.
package voice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mailtriage/internal/model"
)

const urgentSpoken = 3

type Kind string

const (
	KindDaily  Kind = "daily"
	KindUrgent Kind = "urgent"
	KindCustom Kind = "custom"
)

// Digest is a script ready to be spoken.
type Digest struct {
	Kind      Kind      `json:"kind"`
	Text      string    `json:"text"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"created_at"`
}

type Sink interface {
	Speak(ctx context.Context, d Digest) error
}

// DailyScript reads out a daily summary.
func DailyScript(ds model.DailySummary) string {
	date := ds.Date
	if date == "" {
		date = "today"
	}
	if ds.TotalEmails == 0 {
		return fmt.Sprintf("No emails found for %s.", date)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Email Summary for %s. ", date)
	fmt.Fprintf(&b, "You received %d emails. ", ds.TotalEmails)

	var parts []string
	for _, c := range model.AllCategories() {
		if n, ok := ds.Categories[c]; ok {
			parts = append(parts, fmt.Sprintf("%d %s", n, c))
		}
	}
	if len(parts) > 0 {
		b.WriteString("Emails are categorized as: ")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString(". ")
	}
	if n := len(ds.UrgentEmails); n > 0 {
		fmt.Fprintf(&b, "There are %d urgent emails that need your attention. ", n)
	}
	if n := len(ds.UnreadEmails); n > 0 {
		fmt.Fprintf(&b, "You have %d unread emails. ", n)
	}
	if n := len(ds.ResponseReminders); n > 0 {
		fmt.Fprintf(&b, "There are %d emails that need responses. ", n)
	}
	return strings.TrimSpace(b.String())
}

// UrgentScript names the first three urgent emails.
func UrgentScript(emails []model.EmailSummary) string {
	if len(emails) == 0 {
		return "No urgent emails found."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Urgent email alert. You have %d urgent emails. ", len(emails))
	for i, e := range emails {
		if i == urgentSpoken {
			break
		}
		subject := e.Subject
		if strings.TrimSpace(subject) == "" {
			subject = "No subject"
		}
		sender := e.Sender
		if strings.TrimSpace(sender) == "" {
			sender = "Unknown"
		}
		fmt.Fprintf(&b, "Email %d: %s from %s. ", i+1, subject, sender)
	}
	if n := len(emails) - urgentSpoken; n > 0 {
		fmt.Fprintf(&b, "And %d more urgent emails. ", n)
	}
	b.WriteString("Please review these emails immediately.")
	return b.String()
}

func NewDigest(kind Kind, text, language string, now time.Time) Digest {
	if language == "" {
		language = "en"
	}
	return Digest{Kind: kind, Text: text, Language: language, CreatedAt: now}
}
