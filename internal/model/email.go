package model

import "time"

type Category string

const (
	CategoryWork       Category = "work"
	CategoryPersonal   Category = "personal"
	CategoryPromotions Category = "promotions"
	CategorySocial     Category = "social"
	CategoryUrgent     Category = "urgent"
	CategoryMeetings   Category = "meetings"
	CategoryDeadlines  Category = "deadlines"
	CategoryOther      Category = "other"
)

// AllCategories lists every category in a stable order.
func AllCategories() []Category {
	return []Category{
		CategoryWork, CategoryPersonal, CategoryPromotions, CategorySocial,
		CategoryUrgent, CategoryMeetings, CategoryDeadlines, CategoryOther,
	}
}

func ParseCategory(s string) (Category, bool) {
	for _, c := range AllCategories() {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// AllPriorities lists priorities from lowest to highest.
func AllPriorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}
}

func ParsePriority(s string) (Priority, bool) {
	for _, p := range AllPriorities() {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// Rank orders priorities; unknown values rank below low.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityUrgent:
		return 4
	default:
		return 0
	}
}

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
	SentimentUrgent   Sentiment = "urgent"
)

// RawEmail is a message as delivered by the mail source.
type RawEmail struct {
	ID          string    `json:"id"`
	Subject     string    `json:"subject"`
	Sender      string    `json:"sender"`
	SenderEmail string    `json:"sender_email"`
	ReceivedAt  time.Time `json:"received_at"`
	Body        string    `json:"body"`
}

// KeyInfo holds the structured fragments found in an email. Lists are never
// nil.
type KeyInfo struct {
	Dates   []string `json:"dates"`
	Times   []string `json:"times"`
	URLs    []string `json:"urls"`
	Amounts []string `json:"amounts"`
}

// EmailSummary is the triage result for one email.
type EmailSummary struct {
	ID                  string    `json:"id"`
	Subject             string    `json:"subject"`
	Sender              string    `json:"sender"`
	SenderEmail         string    `json:"sender_email"`
	ReceivedAt          time.Time `json:"received_at"`
	Category            Category  `json:"category"`
	Priority            Priority  `json:"priority"`
	Summary             string    `json:"summary"`
	UrgencyScore        float64   `json:"urgency_score"`
	IsRead              bool      `json:"is_read"`
	IsReplied           bool      `json:"is_replied"`
	ActionRequired      bool      `json:"action_required"`
	FollowUpSuggestions []string  `json:"follow_up_suggestions"`
	Sentiment           Sentiment `json:"sentiment"`
	KeyInfo             KeyInfo   `json:"key_info"`
}

type VipContact struct {
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	PriorityLevel string    `json:"priority_level"`
	CreatedAt     time.Time `json:"created_at"`
}
