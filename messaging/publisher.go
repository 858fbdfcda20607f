package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	typeProgressionChanged  = "progression.changed"
	typeAchievementUnlocked = "achievement.unlocked"
	typeStreakExpired       = "streak.expired"
)

// envelope wraps every event so consumers can dispatch on type.
type envelope struct {
	Type       string      `json:"type"`
	Payload    interface{} `json:"payload"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// rabbitMQEventSink implements EventSink over a single durable queue.
type rabbitMQEventSink struct {
	channel   *amqp.Channel
	queueName string
}

var _ EventSink = (*rabbitMQEventSink)(nil)

// NewRabbitMQEventSink opens a channel and declares the queue. The queue
// parameters must match any consumer declaring the same queue.
func NewRabbitMQEventSink(conn *amqp.Connection, queueName string) (EventSink, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("event sink: open channel: %w", err)
	}
	_, err = ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("event sink: declare queue %q: %w", queueName, err)
	}
	return &rabbitMQEventSink{channel: ch, queueName: queueName}, nil
}

func (s *rabbitMQEventSink) PublishProgressionChanged(ctx context.Context, ev ProgressionChangedEvent) error {
	return s.publish(ctx, typeProgressionChanged, ev)
}

func (s *rabbitMQEventSink) PublishAchievementUnlocked(ctx context.Context, ev AchievementUnlockedEvent) error {
	return s.publish(ctx, typeAchievementUnlocked, ev)
}

func (s *rabbitMQEventSink) PublishStreakExpired(ctx context.Context, ev StreakExpiredEvent) error {
	return s.publish(ctx, typeStreakExpired, ev)
}

func (s *rabbitMQEventSink) publish(ctx context.Context, eventType string, payload interface{}) error {
	body, err := json.Marshal(envelope{
		Type:       eventType,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("event sink: marshal %s: %w", eventType, err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = s.channel.PublishWithContext(pubCtx,
		"",          // default exchange
		s.queueName, // routing key = queue name
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Type:         eventType,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("event sink: publish %s: %w", eventType, err)
	}
	return nil
}
