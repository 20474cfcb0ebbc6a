// Package scorer computes urgency scores, priorities and the
// action-required flag for an email.
package scorer

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"mailtriage/internal/model"
	"mailtriage/pkg/logger"
)

var (
	urgencyKeywords = []string{
		"urgent", "asap", "immediate", "emergency", "critical", "deadline",
		"action required", "response needed", "important", "priority",
	}
	actionKeywords = []string{
		"action required", "please respond", "reply needed", "urgent",
		"deadline", "meeting", "call", "schedule", "confirm", "approve",
		"review", "sign", "complete", "submit", "send", "provide",
	}
	timePressureKeywords = []string{"today", "tomorrow", "asap", "urgent", "deadline"}
)

const (
	keywordWeight   = 0.2
	keywordScoreCap = 0.8
	fallbackScore   = 0.5
)

var errInvalidEstimate = errors.New("estimate is not a number")

// Estimator supplies an external urgency estimate in [0,1].
type Estimator interface {
	EstimateUrgency(ctx context.Context, subject, body string) (float64, error)
}

type Scorer struct {
	estimator Estimator
	timeout   time.Duration
	logger    *zap.Logger
}

type Option func(*Scorer)

// WithEstimator blends keyword scores with e's estimate. Each estimate is
// bounded by timeout.
func WithEstimator(e Estimator, timeout time.Duration) Option {
	return func(s *Scorer) {
		s.estimator = e
		s.timeout = timeout
	}
}

func New(l *zap.Logger, opts ...Option) *Scorer {
	s := &Scorer{logger: logger.OrNop(l), timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// KeywordUrgency scores 0.2 per urgency keyword present, capped at 0.8.
func KeywordUrgency(subject, body string) float64 {
	text := strings.ToLower(subject + " " + body)
	n := 0
	for _, k := range urgencyKeywords {
		if strings.Contains(text, k) {
			n++
		}
	}
	return math.Min(float64(n)*keywordWeight, keywordScoreCap)
}

// Urgency returns a score in [0,1]. With an estimator the result is the
// mean of the keyword score and the estimate, capped at 1; any estimator
// failure leaves the keyword score.
func (s *Scorer) Urgency(ctx context.Context, subject, body string) (score float64) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithTrace(ctx, s.logger).Error("urgency scoring panicked", zap.Any("panic", r))
			score = fallbackScore
		}
	}()

	base := KeywordUrgency(subject, body)
	if s.estimator == nil {
		return base
	}

	est, err := s.estimate(ctx, subject, body)
	if err != nil {
		logger.WithTrace(ctx, s.logger).Debug("urgency estimate unavailable, using keyword score",
			zap.Float64("base_score", base),
			zap.Error(err),
		)
		return base
	}
	return math.Min((base+est)/2, 1.0)
}

func (s *Scorer) estimate(ctx context.Context, subject, body string) (float64, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	est, err := s.estimator.EstimateUrgency(ctx, subject, body)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(est) {
		return 0, errInvalidEstimate
	}
	return math.Max(0, math.Min(est, 1)), nil
}

// VIPSet holds normalized VIP addresses.
type VIPSet map[string]struct{}

func NewVIPSet(emails ...string) VIPSet {
	set := make(VIPSet, len(emails))
	for _, e := range emails {
		if e = normalizeAddress(e); e != "" {
			set[e] = struct{}{}
		}
	}
	return set
}

// Contains compares addresses case-insensitively.
func (v VIPSet) Contains(email string) bool {
	if len(v) == 0 {
		return false
	}
	_, ok := v[normalizeAddress(email)]
	return ok
}

func normalizeAddress(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// Priority maps a score to a priority. VIP senders are always high.
func Priority(score float64, senderEmail string, vips VIPSet) model.Priority {
	if vips.Contains(senderEmail) {
		return model.PriorityHigh
	}
	switch {
	case score >= 0.8:
		return model.PriorityUrgent
	case score >= 0.6:
		return model.PriorityHigh
	case score >= 0.4:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}

// ActionRequired reports whether the email asks for a reply or action.
func ActionRequired(subject, body string) bool {
	text := strings.ToLower(subject + " " + body)
	return containsAny(text, actionKeywords) ||
		strings.Contains(text, "?") ||
		containsAny(text, timePressureKeywords)
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
