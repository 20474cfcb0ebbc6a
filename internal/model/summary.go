package model

// DateLayout is the layout of DailySummary.Date.
const DateLayout = "2006-01-02"

// DailySummary aggregates one calendar day of EmailSummary records.
// TotalEmails equals the sum of Categories and of PriorityBreakdown.
type DailySummary struct {
	Date              string           `json:"date"`
	TotalEmails       int              `json:"total_emails"`
	Categories        map[Category]int `json:"categories"`
	PriorityBreakdown map[Priority]int `json:"priority_breakdown"`
	UrgentEmails      []EmailSummary   `json:"urgent_emails"`
	UnreadEmails      []EmailSummary   `json:"unread_emails"`
	ResponseReminders []EmailSummary   `json:"response_reminders"`
	Narrative         string           `json:"narrative,omitempty"`
}
