// Package pipeline turns raw emails into triaged EmailSummary records.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailtriage/internal/advisor"
	"mailtriage/internal/categorizer"
	"mailtriage/internal/feature"
	"mailtriage/internal/model"
	"mailtriage/internal/scorer"
	"mailtriage/pkg/logger"
	"mailtriage/pkg/metrics"
)

// VIPSet is loaded once per cycle by the caller.
type VIPSet = scorer.VIPSet

// SaveFunc persists one summary. A nil SaveFunc skips persistence.
type SaveFunc func(ctx context.Context, s model.EmailSummary) error

type Skipped struct {
	ID  string
	Err error
}

type BatchResult struct {
	Summaries []model.EmailSummary
	Skipped   []Skipped
}

type Pipeline struct {
	categorizer *categorizer.Categorizer
	scorer      *scorer.Scorer
	advisor     advisor.Advisor
	logger      *zap.Logger
	now         func() time.Time
}

func New(c *categorizer.Categorizer, s *scorer.Scorer, a advisor.Advisor, l *zap.Logger) *Pipeline {
	if a == nil {
		a = advisor.NewLocal()
	}
	return &Pipeline{
		categorizer: c,
		scorer:      s,
		advisor:     a,
		logger:      logger.OrNop(l),
		now:         time.Now,
	}
}

// normalize fills safe defaults for malformed input.
func (p *Pipeline) normalize(raw model.RawEmail) model.RawEmail {
	if strings.TrimSpace(raw.Sender) == "" {
		raw.Sender = "Unknown"
	}
	if raw.ReceivedAt.IsZero() {
		raw.ReceivedAt = p.now()
	}
	if strings.TrimSpace(raw.ID) == "" {
		raw.ID = uuid.NewString()
	}
	raw.SenderEmail = strings.TrimSpace(raw.SenderEmail)
	return raw
}

// guard runs one stage and substitutes fallback if it panics.
func guard[T any](ctx context.Context, l *zap.Logger, stage, emailID string, fallback T, fn func() T) (out T) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithTrace(ctx, l).Error("triage stage panicked",
				zap.String("stage", stage),
				zap.String("email_id", emailID),
				zap.Any("panic", r),
			)
			out = fallback
		}
	}()
	return fn()
}

// Process triages one email. It only fails when ctx is done; every stage
// failure degrades to a safe default instead.
func (p *Pipeline) Process(ctx context.Context, raw model.RawEmail, vips VIPSet) (model.EmailSummary, error) {
	if err := ctx.Err(); err != nil {
		return model.EmailSummary{}, fmt.Errorf("process email %s: %w", raw.ID, err)
	}
	raw = p.normalize(raw)
	l := logger.WithTrace(ctx, p.logger).With(zap.String("email_id", raw.ID))

	keyInfo := guard(ctx, l, "extract", raw.ID, model.KeyInfo{
		Dates: []string{}, Times: []string{}, URLs: []string{}, Amounts: []string{},
	}, func() model.KeyInfo {
		return feature.Extract(raw.Subject, raw.Body)
	})

	category := guard(ctx, l, "categorize", raw.ID, model.CategoryOther, func() model.Category {
		return p.categorizer.Categorize(raw.Subject, raw.Body, raw.SenderEmail)
	})

	score := guard(ctx, l, "urgency", raw.ID, 0.5, func() float64 {
		return p.scorer.Urgency(ctx, raw.Subject, raw.Body)
	})

	priority := guard(ctx, l, "priority", raw.ID, model.PriorityMedium, func() model.Priority {
		return scorer.Priority(score, raw.SenderEmail, vips)
	})

	actionRequired := guard(ctx, l, "action", raw.ID, false, func() bool {
		return scorer.ActionRequired(raw.Subject, raw.Body)
	})

	summary := guard(ctx, l, "summary", raw.ID, "", func() string {
		s, err := p.advisor.Summarize(ctx, raw.Subject, raw.Body)
		if err != nil {
			l.Warn("summary failed", zap.Error(err))
		}
		return s
	})
	if strings.TrimSpace(summary) == "" {
		summary = advisor.FallbackSummary(raw.Subject, raw.Body)
	}

	followUps := guard(ctx, l, "follow_up", raw.ID, []string{advisor.DefaultFollowUp}, func() []string {
		f, err := p.advisor.SuggestFollowUps(ctx, raw.Subject, raw.Body, category)
		if err != nil {
			l.Warn("follow-up suggestions failed", zap.Error(err))
			return []string{advisor.DefaultFollowUp}
		}
		return f
	})
	if len(followUps) > 5 {
		followUps = followUps[:5]
	}
	if followUps == nil {
		followUps = []string{}
	}

	sentiment := guard(ctx, l, "sentiment", raw.ID, model.SentimentNeutral, func() model.Sentiment {
		s, err := p.advisor.Sentiment(ctx, raw.Subject, raw.Body)
		if err != nil || s == "" {
			return model.SentimentNeutral
		}
		return s
	})

	return model.EmailSummary{
		ID:                  raw.ID,
		Subject:             raw.Subject,
		Sender:              raw.Sender,
		SenderEmail:         raw.SenderEmail,
		ReceivedAt:          raw.ReceivedAt,
		Category:            category,
		Priority:            priority,
		Summary:             summary,
		UrgencyScore:        score,
		ActionRequired:      actionRequired,
		FollowUpSuggestions: followUps,
		Sentiment:           sentiment,
		KeyInfo:             keyInfo,
	}, nil
}

// ProcessBatch triages raws in order. Emails that fail to process or save
// are logged and reported in Skipped; they are not retried.
func (p *Pipeline) ProcessBatch(ctx context.Context, raws []model.RawEmail, vips VIPSet, save SaveFunc) BatchResult {
	result := BatchResult{
		Summaries: make([]model.EmailSummary, 0, len(raws)),
		Skipped:   []Skipped{},
	}
	l := logger.WithTrace(ctx, p.logger)

	for _, raw := range raws {
		summary, err := p.Process(ctx, raw, vips)
		if err != nil {
			l.Warn("skipping email", zap.String("email_id", raw.ID), zap.Error(err))
			metrics.IncrementEmailProcessed("skipped")
			result.Skipped = append(result.Skipped, Skipped{ID: raw.ID, Err: err})
			continue
		}

		if save != nil {
			if err := save(ctx, summary); err != nil {
				l.Error("failed to store email summary", zap.String("email_id", summary.ID), zap.Error(err))
				metrics.IncrementEmailProcessed("store_failed")
				result.Skipped = append(result.Skipped, Skipped{ID: summary.ID, Err: err})
				continue
			}
		}

		metrics.IncrementEmailProcessed("success")
		metrics.IncrementEmailCategory(string(summary.Category), string(summary.Priority))
		result.Summaries = append(result.Summaries, summary)
	}

	l.Info("batch triaged",
		zap.Int("received", len(raws)),
		zap.Int("processed", len(result.Summaries)),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result
}
