package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/odyssey-erp/replenish/internal/replenishment"
)

const (
	eventOrderPlaced    = "replenishment.order_placed"
	eventReminderIssued = "replenishment.reminder_issued"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher implements replenishment.EventPublisher on a kafka-go writer.
type KafkaPublisher struct {
	writer        messageWriter
	orderTopic    string
	reminderTopic string
	timeout       time.Duration
}

// NewKafkaPublisher builds a publisher writing to the given topics.
func NewKafkaPublisher(brokers []string, orderTopic, reminderTopic string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Snappy,
	}
	return newKafkaPublisher(writer, orderTopic, reminderTopic)
}

func newKafkaPublisher(writer messageWriter, orderTopic, reminderTopic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer:        writer,
		orderTopic:    orderTopic,
		reminderTopic: reminderTopic,
		timeout:       5 * time.Second,
	}
}

// PublishOrderPlaced writes the event keyed by PO id.
func (p *KafkaPublisher) PublishOrderPlaced(ctx context.Context, evt replenishment.OrderPlacedEvent) error {
	return p.publish(ctx, p.orderTopic, eventOrderPlaced, evt.POID, evt.OrderDate, evt)
}

// PublishReminderIssued writes the event keyed by PO id so reminders for one
// order stay on one partition.
func (p *KafkaPublisher) PublishReminderIssued(ctx context.Context, evt replenishment.ReminderIssuedEvent) error {
	return p.publish(ctx, p.reminderTopic, eventReminderIssued, evt.POID, evt.SentAt, evt)
}

func (p *KafkaPublisher) publish(ctx context.Context, topic, eventType, key string, at time.Time, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("messaging: marshal %s: %w", eventType, err)
	}
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: body,
		Time:  at,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(eventType)},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("messaging: write %s to %s: %w", eventType, topic, err)
	}
	return nil
}

// Close flushes pending messages.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
