package notify

import (
	"context"
	"fmt"
	"time"
)

// RoutingKeyNotification is the routing key of notification events.
const RoutingKeyNotification = "triage.notification"

// Publisher is satisfied by *mq.Publisher.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// NotificationEvent is the event bus payload of a sent message.
type NotificationEvent struct {
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	Priority string    `json:"priority"`
	SentAt   time.Time `json:"sent_at"`
}

// EventSink publishes every message to the event bus.
type EventSink struct {
	pub Publisher
	now func() time.Time
}

func NewEventSink(pub Publisher) *EventSink {
	return &EventSink{pub: pub, now: time.Now}
}

func (s *EventSink) Name() string { return "events" }

func (s *EventSink) Send(ctx context.Context, msg Message) error {
	ev := NotificationEvent{
		Title:    msg.Title,
		Body:     msg.Body,
		Priority: msg.Priority,
		SentAt:   s.now().UTC(),
	}
	if err := s.pub.Publish(ctx, RoutingKeyNotification, ev); err != nil {
		return fmt.Errorf("publish %s: %w", RoutingKeyNotification, err)
	}
	return nil
}
