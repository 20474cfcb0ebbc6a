package advisor

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"mailtriage/internal/model"
)

// Local is the deterministic advisor. It never fails except for
// EstimateUrgency, which it cannot answer.
type Local struct{}

func NewLocal() *Local { return &Local{} }

// Summarize uses the first sentence longer than 10 characters of a body
// longer than 100 characters, otherwise "Email about: <subject>".
func (l *Local) Summarize(_ context.Context, subject, body string) (string, error) {
	return FallbackSummary(subject, body), nil
}

func FallbackSummary(subject, body string) string {
	if utf8.RuneCountInString(body) > 100 {
		for _, sentence := range strings.Split(body, ".") {
			sentence = strings.TrimSpace(sentence)
			if utf8.RuneCountInString(sentence) > 10 {
				return fmt.Sprintf("%s: %s...", subject, truncateRunes(sentence, 100))
			}
		}
	}
	return "Email about: " + subject
}

func (l *Local) SuggestFollowUps(_ context.Context, _, _ string, category model.Category) ([]string, error) {
	if t := FollowUpTemplates(category); len(t) > 0 {
		return t, nil
	}
	return []string{DefaultFollowUp}, nil
}

func (l *Local) Sentiment(context.Context, string, string) (model.Sentiment, error) {
	return model.SentimentNeutral, nil
}

func (l *Local) DailyNarrative(_ context.Context, summaries []model.EmailSummary) (string, error) {
	return FallbackNarrative(summaries), nil
}

// FallbackNarrative renders counts as plain sentences. Categories appear in
// order of first occurrence.
func FallbackNarrative(summaries []model.EmailSummary) string {
	if len(summaries) == 0 {
		return "No emails to summarize."
	}

	urgent, unread := 0, 0
	var order []model.Category
	counts := make(map[model.Category]int)
	for _, s := range summaries {
		if s.Priority == model.PriorityHigh || s.Priority == model.PriorityUrgent {
			urgent++
		}
		if !s.IsRead {
			unread++
		}
		if _, seen := counts[s.Category]; !seen {
			order = append(order, s.Category)
		}
		counts[s.Category]++
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You received %d emails today. ", len(summaries))
	if urgent > 0 {
		fmt.Fprintf(&b, "There are %d urgent emails that need your attention. ", urgent)
	}
	if unread > 0 {
		fmt.Fprintf(&b, "You have %d unread emails. ", unread)
	}
	parts := make([]string, 0, len(order))
	for _, c := range order {
		parts = append(parts, fmt.Sprintf("%d %s", counts[c], c))
	}
	b.WriteString("Emails are categorized as: ")
	b.WriteString(strings.Join(parts, ", "))
	b.WriteString(".")
	return b.String()
}

func (l *Local) EstimateUrgency(context.Context, string, string) (float64, error) {
	return 0, ErrUnavailable
}
