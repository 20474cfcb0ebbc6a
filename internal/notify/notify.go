// Package notify delivers triage messages to chat webhooks and the event bus.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"mailtriage/pkg/logger"
	"mailtriage/pkg/metrics"
	"mailtriage/pkg/util"
)

const defaultTimeout = 10 * time.Second

// Message is one notification. Priority is one of urgent, high, normal, low.
type Message struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Priority string `json:"priority"`
}

// Sink delivers a message to one channel.
type Sink interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Manager fans a message out to every sink.
type Manager struct {
	sinks   []Sink
	timeout time.Duration
	logger  *zap.Logger
}

func NewManager(sinks []Sink, timeout time.Duration, l *zap.Logger) *Manager {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Manager{sinks: sinks, timeout: timeout, logger: logger.OrNop(l)}
}

// Channels lists the sink names in send order.
func (m *Manager) Channels() []string {
	names := make([]string, 0, len(m.sinks))
	for _, s := range m.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Send delivers msg to all sinks concurrently, each bounded by the manager
// timeout, and reports per-channel success. A nil manager sends nothing.
func (m *Manager) Send(ctx context.Context, msg Message) map[string]bool {
	results := make(map[string]bool)
	if m == nil || len(m.sinks) == 0 {
		return results
	}
	if msg.Priority == "" {
		msg.Priority = "normal"
	}

	l := logger.WithTrace(ctx, m.logger)
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, s := range m.sinks {
		wg.Add(1)
		go func(s Sink) {
			defer wg.Done()

			sendCtx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()

			err := s.Send(sendCtx, msg)
			status := "success"
			if err != nil {
				status = util.ClassifyError(err)
				l.Warn("Failed to send notification",
					zap.String("channel", s.Name()),
					zap.String("title", msg.Title),
					zap.String("error_type", status),
					zap.Error(err),
				)
			} else {
				l.Info("Notification sent",
					zap.String("channel", s.Name()),
					zap.String("title", msg.Title),
				)
			}
			metrics.IncrementNotificationSend(s.Name(), status)

			mu.Lock()
			results[s.Name()] = err == nil
			mu.Unlock()
		}(s)
	}
	wg.Wait()
	return results
}
