package advisor

import (
	"go.uber.org/zap"

	"mailtriage/pkg/circuitbreaker"
	"mailtriage/pkg/config"
)

// New returns a Resilient OpenAI advisor when an API key is configured and
// the Local advisor otherwise.
func New(cfg config.AIConfig, l *zap.Logger) Advisor {
	if cfg.APIKey == "" {
		if l != nil {
			l.Info("no AI API key configured, using local advisor")
		}
		return NewLocal()
	}
	if l != nil {
		l.Info("using OpenAI advisor", zap.String("model", cfg.Model))
	}
	return NewResilient(NewOpenAI(cfg), cfg.Timeout, circuitbreaker.DefaultConfig(), l)
}
