package notify

import (
	"fmt"
	"strings"

	"mailtriage/internal/model"
)

const (
	dailyUrgentShown = 3
	alertShown       = 5
	testBody         = "🧪 This is a test notification from Mail Triage. If you receive this, your notifications are working correctly!"
)

// DailySummaryMessage renders the end-of-day digest.
func DailySummaryMessage(ds model.DailySummary) Message {
	date := ds.Date
	if date == "" {
		date = "Today"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 *Total emails:* %d\n", ds.TotalEmails)

	if len(ds.Categories) > 0 {
		b.WriteString("\n📂 *Categories:*\n")
		for _, c := range model.AllCategories() {
			if n, ok := ds.Categories[c]; ok {
				fmt.Fprintf(&b, "   • %s: %d\n", c, n)
			}
		}
	}

	if len(ds.UrgentEmails) > 0 {
		fmt.Fprintf(&b, "\n⚠️ *Urgent emails:* %d\n", len(ds.UrgentEmails))
		for _, e := range head(ds.UrgentEmails, dailyUrgentShown) {
			fmt.Fprintf(&b, "   • %s - %s\n", orDefault(e.Subject, "No subject"), orDefault(e.Sender, "Unknown"))
		}
	}
	if len(ds.UnreadEmails) > 0 {
		fmt.Fprintf(&b, "\n📬 *Unread emails:* %d\n", len(ds.UnreadEmails))
	}
	if len(ds.ResponseReminders) > 0 {
		fmt.Fprintf(&b, "\n🧾 *Response reminders:* %d\n", len(ds.ResponseReminders))
	}
	if ds.Narrative != "" {
		fmt.Fprintf(&b, "\n%s\n", ds.Narrative)
	}

	return Message{
		Title:    "📧 Daily Email Summary - " + date,
		Body:     b.String(),
		Priority: "normal",
	}
}

// UrgentAlertMessage lists the first five urgent emails.
func UrgentAlertMessage(emails []model.EmailSummary) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ You have %d urgent emails:\n\n", len(emails))
	for _, e := range head(emails, alertShown) {
		fmt.Fprintf(&b, "📧 *%s*\n", orDefault(e.Subject, "No subject"))
		fmt.Fprintf(&b, "   From: %s\n", orDefault(e.Sender, "Unknown"))
		fmt.Fprintf(&b, "   Priority: %s\n", orDefault(string(e.Priority), "Unknown"))
		fmt.Fprintf(&b, "   Summary: %s\n\n", orDefault(e.Summary, "No summary"))
	}
	if n := len(emails) - alertShown; n > 0 {
		fmt.Fprintf(&b, "... and %d more urgent emails", n)
	}
	return Message{Title: "🚨 Urgent Email Alert", Body: b.String(), Priority: "urgent"}
}

// ResponseReminderMessage lists the first five emails awaiting a reply.
func ResponseReminderMessage(emails []model.EmailSummary) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "📧 You have %d emails that need responses:\n\n", len(emails))
	for _, e := range head(emails, alertShown) {
		received := "Unknown"
		if !e.ReceivedAt.IsZero() {
			received = e.ReceivedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(&b, "📧 *%s*\n", orDefault(e.Subject, "No subject"))
		fmt.Fprintf(&b, "   From: %s\n", orDefault(e.Sender, "Unknown"))
		fmt.Fprintf(&b, "   Received: %s\n", received)
		b.WriteString("   Action: Response needed\n\n")
	}
	if n := len(emails) - alertShown; n > 0 {
		fmt.Fprintf(&b, "... and %d more emails need responses", n)
	}
	return Message{Title: "🧾 Response Reminders", Body: b.String(), Priority: "high"}
}

func TestNotificationMessage() Message {
	return Message{Title: "Test Notification", Body: testBody, Priority: "normal"}
}

func head(emails []model.EmailSummary, n int) []model.EmailSummary {
	if len(emails) > n {
		return emails[:n]
	}
	return emails
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
