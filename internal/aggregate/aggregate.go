// Package aggregate folds a day's email summaries into a DailySummary.
package aggregate

import "mailtriage/internal/model"

// UrgentScore is the urgency score at or above which an email counts as
// urgent regardless of its priority.
const UrgentScore = 0.7

// IsUrgent reports whether s belongs in DailySummary.UrgentEmails.
func IsUrgent(s model.EmailSummary) bool {
	return s.Priority == model.PriorityHigh || s.Priority == model.PriorityUrgent || s.UrgencyScore >= UrgentScore
}

// NeedsResponse reports whether s belongs in DailySummary.ResponseReminders.
func NeedsResponse(s model.EmailSummary) bool {
	return !s.IsReplied && s.ActionRequired
}

// Aggregate is a pure single pass over summaries. Input order is kept in
// the email lists; maps hold only categories and priorities that occur.
func Aggregate(summaries []model.EmailSummary, date string) model.DailySummary {
	out := model.DailySummary{
		Date:              date,
		TotalEmails:       len(summaries),
		Categories:        make(map[model.Category]int),
		PriorityBreakdown: make(map[model.Priority]int),
		UrgentEmails:      []model.EmailSummary{},
		UnreadEmails:      []model.EmailSummary{},
		ResponseReminders: []model.EmailSummary{},
	}

	for _, s := range summaries {
		out.Categories[s.Category]++
		out.PriorityBreakdown[s.Priority]++
		if IsUrgent(s) {
			out.UrgentEmails = append(out.UrgentEmails, s)
		}
		if !s.IsRead {
			out.UnreadEmails = append(out.UnreadEmails, s)
		}
		if NeedsResponse(s) {
			out.ResponseReminders = append(out.ResponseReminders, s)
		}
	}
	return out
}
