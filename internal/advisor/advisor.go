// Package advisor produces the generative parts of a triage result:
// summaries, follow-up suggestions, sentiment, daily narratives and an
// optional urgency estimate.
package advisor

import (
	"context"
	"errors"

	"mailtriage/internal/model"
)

// ErrUnavailable is returned when an advisor cannot answer a request at
// all, for example the local advisor asked for an urgency estimate.
var ErrUnavailable = errors.New("advisor unavailable")

// Advisor is implemented by Local, OpenAI and Resilient.
type Advisor interface {
	Summarize(ctx context.Context, subject, body string) (string, error)
	SuggestFollowUps(ctx context.Context, subject, body string, category model.Category) ([]string, error)
	Sentiment(ctx context.Context, subject, body string) (model.Sentiment, error)
	DailyNarrative(ctx context.Context, summaries []model.EmailSummary) (string, error)
	EstimateUrgency(ctx context.Context, subject, body string) (float64, error)
}

const maxFollowUps = 5

// DefaultFollowUp is suggested when nothing more specific is known.
const DefaultFollowUp = "Review and respond as needed"

var followUpTemplates = map[model.Category][]string{
	model.CategoryWork: {
		"Schedule a follow-up meeting",
		"Send a detailed response with next steps",
		"Add to task list for tracking",
	},
	model.CategoryMeetings: {
		"Confirm meeting details",
		"Prepare agenda items",
		"Set calendar reminder",
	},
	model.CategoryDeadlines: {
		"Set deadline reminder",
		"Break down tasks",
		"Update project timeline",
	},
}

// FollowUpTemplates returns the fixed suggestions for category, or nil.
func FollowUpTemplates(category model.Category) []string {
	return append([]string(nil), followUpTemplates[category]...)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
