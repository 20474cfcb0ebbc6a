package advisor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mailtriage/internal/model"
	"mailtriage/pkg/circuitbreaker"
	"mailtriage/pkg/logger"
	"mailtriage/pkg/metrics"
	"mailtriage/pkg/util"
)

const generatedFollowUps = 2

// Resilient calls a primary advisor under a timeout and circuit breaker and
// answers from Local whenever the primary fails.
type Resilient struct {
	primary  Advisor
	fallback *Local
	breaker  *circuitbreaker.CircuitBreaker
	timeout  time.Duration
	logger   *zap.Logger
}

func NewResilient(primary Advisor, timeout time.Duration, breakerCfg circuitbreaker.Config, l *zap.Logger) *Resilient {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	l = logger.OrNop(l).With(zap.String("component", "advisor"))
	breakerCfg.OnStateChange = func(from, to circuitbreaker.State) {
		l.Warn("advisor circuit breaker state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	return &Resilient{
		primary:  primary,
		fallback: NewLocal(),
		breaker:  circuitbreaker.NewCircuitBreaker(breakerCfg),
		timeout:  timeout,
		logger:   l,
	}
}

func (r *Resilient) call(ctx context.Context, kind string, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := r.breaker.Execute(func() error {
		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		return fn(callCtx)
	})

	status := "success"
	if err != nil {
		status = util.ClassifyError(err)
		metrics.IncrementAdvisorFallback(kind, status)
		logger.WithTrace(ctx, r.logger).Warn("advisor call failed, using fallback",
			zap.String("kind", kind),
			zap.String("error_kind", status),
			zap.Error(err),
		)
	}
	metrics.RecordAdvisorCallLatency(kind, status, time.Since(start))
	return err
}

func (r *Resilient) Summarize(ctx context.Context, subject, body string) (string, error) {
	var out string
	err := r.call(ctx, "summary", func(ctx context.Context) error {
		var err error
		out, err = r.primary.Summarize(ctx, subject, body)
		return err
	})
	if err != nil || out == "" {
		return r.fallback.Summarize(ctx, subject, body)
	}
	return out, nil
}

// SuggestFollowUps returns the category templates followed by up to two
// generated suggestions, at most five in total.
func (r *Resilient) SuggestFollowUps(ctx context.Context, subject, body string, category model.Category) ([]string, error) {
	suggestions := FollowUpTemplates(category)

	var generated []string
	err := r.call(ctx, "follow_up", func(ctx context.Context) error {
		var err error
		generated, err = r.primary.SuggestFollowUps(ctx, subject, body, category)
		return err
	})
	if err == nil {
		if len(generated) > generatedFollowUps {
			generated = generated[:generatedFollowUps]
		}
		suggestions = append(suggestions, generated...)
	}

	if len(suggestions) == 0 {
		return []string{DefaultFollowUp}, nil
	}
	if len(suggestions) > maxFollowUps {
		suggestions = suggestions[:maxFollowUps]
	}
	return suggestions, nil
}

func (r *Resilient) Sentiment(ctx context.Context, subject, body string) (model.Sentiment, error) {
	var out model.Sentiment
	err := r.call(ctx, "sentiment", func(ctx context.Context) error {
		var err error
		out, err = r.primary.Sentiment(ctx, subject, body)
		return err
	})
	if err != nil {
		return r.fallback.Sentiment(ctx, subject, body)
	}
	return out, nil
}

func (r *Resilient) DailyNarrative(ctx context.Context, summaries []model.EmailSummary) (string, error) {
	if len(summaries) == 0 {
		return r.fallback.DailyNarrative(ctx, summaries)
	}
	var out string
	err := r.call(ctx, "narrative", func(ctx context.Context) error {
		var err error
		out, err = r.primary.DailyNarrative(ctx, summaries)
		return err
	})
	if err != nil || out == "" {
		return r.fallback.DailyNarrative(ctx, summaries)
	}
	return out, nil
}

// EstimateUrgency has no local answer, so failures are returned to the
// caller.
func (r *Resilient) EstimateUrgency(ctx context.Context, subject, body string) (float64, error) {
	var out float64
	err := r.call(ctx, "urgency", func(ctx context.Context) error {
		var err error
		out, err = r.primary.EstimateUrgency(ctx, subject, body)
		return err
	})
	if err != nil {
		return 0, err
	}
	return out, nil
}
