// Package notifier publishes raised inventory alerts to Kafka.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/segmentio/kafka-go"
)

const EventAlertRaised = "InventoryAlertRaised"

// Producer is satisfied by *kafka.Writer.
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type AlertEvent struct {
	EventID   string               `json:"event_id"`
	EventType string               `json:"event_type"`
	Payload   model.InventoryAlert `json:"payload"`
	Timestamp time.Time            `json:"timestamp"`
}

type KafkaNotifier struct {
	producer Producer
	now      func() time.Time
}

func NewKafkaNotifier(producer Producer) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, now: time.Now}
}

// NewKafkaWriter builds the alert topic writer.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

// NotifyAlert publishes alert keyed by its item, so one item's alerts stay
// ordered within a partition.
func (n *KafkaNotifier) NotifyAlert(ctx context.Context, alert model.InventoryAlert) error {
	value, err := json.Marshal(AlertEvent{
		EventID:   alert.ID,
		EventType: EventAlertRaised,
		Payload:   alert,
		Timestamp: n.now(),
	})
	if err != nil {
		return fmt.Errorf("marshal alert event: %w", err)
	}

	err = n.producer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(alert.InventoryItemID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventAlertRaised)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish alert %s: %w", alert.ID, err)
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.producer.Close()
}
