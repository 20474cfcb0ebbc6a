// Package categorizer assigns exactly one category to an email using an
// ordered keyword precedence list with a sender-domain fallback.
package categorizer

import (
	"math"
	"strings"

	"go.uber.org/zap"

	"mailtriage/internal/model"
	"mailtriage/pkg/logger"
)

// precedence is the evaluation order of keyword rules. The first category
// whose keywords occur in the text wins, so urgent beats work even when
// both match.
var precedence = [...]model.Category{
	model.CategoryUrgent,
	model.CategoryMeetings,
	model.CategoryDeadlines,
	model.CategoryWork,
	model.CategoryPersonal,
	model.CategoryPromotions,
	model.CategorySocial,
}

// Precedence returns the keyword rule order.
func Precedence() []model.Category {
	return append([]model.Category(nil), precedence[:]...)
}

type rule struct {
	category model.Category
	match    func(text string) bool
}

// Categorizer is safe for concurrent use; it is never mutated after
// construction.
type Categorizer struct {
	keywords Keywords
	rules    []rule
	logger   *zap.Logger
}

func New(l *zap.Logger) *Categorizer {
	return NewWithKeywords(DefaultKeywords(), l)
}

func NewWithKeywords(k Keywords, l *zap.Logger) *Categorizer {
	c := &Categorizer{keywords: k, logger: logger.OrNop(l)}
	for _, cat := range precedence {
		cat := cat
		c.rules = append(c.rules, rule{
			category: cat,
			match:    func(text string) bool { return k.matches(cat, text) },
		})
	}
	return c
}

// WithKeywords returns a new Categorizer whose table has extra keywords for
// category. The receiver is unchanged.
func (c *Categorizer) WithKeywords(category model.Category, extra ...string) *Categorizer {
	return NewWithKeywords(c.keywords.With(category, extra...), c.logger)
}

func (c *Categorizer) Keywords() Keywords {
	return c.keywords
}

// Categorize always returns a category; internal failures yield other.
func (c *Categorizer) Categorize(subject, body, senderEmail string) (category model.Category) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("categorize panicked", zap.Any("panic", r), zap.String("sender_email", senderEmail))
			category = model.CategoryOther
		}
	}()

	text := strings.ToLower(subject + " " + body)
	for _, r := range c.rules {
		if r.match(text) {
			return r.category
		}
	}
	return SenderCategory(senderEmail)
}

// Confidence scores every keyword category by 0.1 per matched keyword,
// capped at 1.0. The sender-domain category then gains 0.3 on top of the
// cap, so its score can reach 1.3.
func (c *Categorizer) Confidence(subject, body, senderEmail string) (scores map[model.Category]float64) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("confidence panicked", zap.Any("panic", r))
			scores = map[model.Category]float64{model.CategoryOther: 1.0}
		}
	}()

	text := strings.ToLower(subject + " " + body)
	scores = make(map[model.Category]float64, len(precedence))
	for _, cat := range precedence {
		scores[cat] = math.Min(float64(c.keywords.hits(cat, text))*0.1, 1.0)
	}

	if sc := SenderCategory(senderEmail); sc != model.CategoryOther {
		scores[sc] += 0.3
	}
	return scores
}

// Stats counts summaries per category. Every category is present; unknown
// categories are not counted.
func Stats(summaries []model.EmailSummary) map[model.Category]int {
	stats := make(map[model.Category]int, len(model.AllCategories()))
	for _, c := range model.AllCategories() {
		stats[c] = 0
	}
	for _, s := range summaries {
		if _, ok := stats[s.Category]; ok {
			stats[s.Category]++
		}
	}
	return stats
}
