package categorizer

import (
	"strings"

	"mailtriage/internal/model"
)

// Keywords is an immutable keyword table. Use DefaultKeywords and With to
// derive new tables; the zero value matches nothing.
type Keywords struct {
	byCategory map[model.Category][]string
}

var defaultKeywordTable = map[model.Category][]string{
	model.CategoryWork: {
		"project", "task", "deadline", "meeting", "report", "presentation",
		"client", "customer", "team", "collaboration", "workflow", "process",
		"development", "code", "bug", "feature", "release", "deployment",
		"review", "approval", "signature", "contract", "proposal", "quote",
		"invoice", "payment", "budget", "expense", "reimbursement",
	},
	model.CategoryPersonal: {
		"family", "friend", "personal", "home", "house",
		"birthday", "anniversary", "celebration", "party", "dinner",
		"weekend", "vacation", "travel", "trip", "holiday",
		"health", "medical", "doctor", "appointment", "insurance",
	},
	model.CategoryPromotions: {
		"sale", "discount", "offer", "deal", "promotion", "coupon",
		"limited time", "special offer", "exclusive", "membership",
		"subscription", "newsletter", "marketing", "advertisement",
		"sponsored", "promotional", "commercial", "retail", "store",
		"shop", "buy", "purchase", "order", "shipping", "delivery",
	},
	model.CategorySocial: {
		"social", "network", "facebook", "twitter", "instagram", "linkedin",
		"invitation", "connect", "friend request", "follow", "like",
		"share", "post", "update", "status", "profile", "social media",
		"community", "group", "forum", "discussion", "chat",
	},
	model.CategoryUrgent: {
		"urgent", "asap", "immediate", "emergency", "critical", "important",
		"action required", "response needed", "deadline", "due date",
		"overdue", "late", "missed", "failed", "error", "issue",
		"problem", "trouble", "help", "support", "assistance",
	},
	model.CategoryMeetings: {
		"meeting", "appointment", "call", "conference", "webinar",
		"schedule", "calendar", "agenda", "minutes", "attend",
		"participate", "join", "dial", "zoom", "teams", "skype",
		"video call", "phone call", "conference call", "standup",
		"daily", "weekly", "monthly", "quarterly", "annual",
	},
	model.CategoryDeadlines: {
		"deadline", "due date", "due", "submit", "deliver", "complete",
		"finish", "end date", "cutoff", "expiration", "expires",
		"last day", "final", "closing", "timeline",
		"schedule", "milestone", "deliverable", "target date",
	},
}

// DefaultKeywords returns the built-in keyword table.
func DefaultKeywords() Keywords {
	k := Keywords{byCategory: make(map[model.Category][]string, len(defaultKeywordTable))}
	for c, words := range defaultKeywordTable {
		k.byCategory[c] = append([]string(nil), words...)
	}
	return k
}

// For returns a copy of the keywords of category c.
func (k Keywords) For(c model.Category) []string {
	return append([]string(nil), k.byCategory[c]...)
}

// With returns a new table with extra appended to category c. Keywords are
// lower-cased and trimmed; blanks and duplicates are dropped. k is not
// modified.
func (k Keywords) With(c model.Category, extra ...string) Keywords {
	next := Keywords{byCategory: make(map[model.Category][]string, len(k.byCategory)+1)}
	for cat, words := range k.byCategory {
		next.byCategory[cat] = append([]string(nil), words...)
	}

	seen := make(map[string]bool, len(next.byCategory[c])+len(extra))
	for _, w := range next.byCategory[c] {
		seen[w] = true
	}
	for _, w := range extra {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		next.byCategory[c] = append(next.byCategory[c], w)
	}
	return next
}

func (k Keywords) matches(c model.Category, text string) bool {
	for _, w := range k.byCategory[c] {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func (k Keywords) hits(c model.Category, text string) int {
	n := 0
	for _, w := range k.byCategory[c] {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}

var (
	workDomains = map[string]bool{
		"gmail.com": true, "outlook.com": true, "hotmail.com": true, "yahoo.com": true,
		"company.com": true, "corp.com": true, "business.com": true, "enterprise.com": true,
	}
	socialDomains = map[string]bool{
		"facebook.com": true, "twitter.com": true, "instagram.com": true, "linkedin.com": true,
		"snapchat.com": true, "tiktok.com": true, "pinterest.com": true,
	}
	promoDomains = map[string]bool{
		"amazon.com": true, "ebay.com": true, "etsy.com": true, "shopify.com": true,
		"mailchimp.com": true, "constantcontact.com": true, "sendgrid.com": true,
		"salesforce.com": true, "hubspot.com": true, "marketing.com": true,
	}
)

// SenderCategory classifies an address by the domain after its last '@'.
// Unknown domains, and addresses without a domain, yield CategoryOther.
func SenderCategory(senderEmail string) model.Category {
	domain := strings.ToLower(strings.TrimSpace(senderEmail))
	if i := strings.LastIndex(domain, "@"); i >= 0 {
		domain = domain[i+1:]
	}
	domain = strings.TrimRight(domain, ">")

	switch {
	case workDomains[domain]:
		return model.CategoryWork
	case socialDomains[domain]:
		return model.CategorySocial
	case promoDomains[domain]:
		return model.CategoryPromotions
	default:
		return model.CategoryOther
	}
}
