package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"offermarket/internal/models"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher bridges dispatched events onto a Kafka topic for external
// delivery mechanisms (websocket gateways, mail senders). Messages are keyed
// by offer id so all events of one offer keep their order within a partition.
type KafkaPublisher struct {
	w *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("notify.KafkaPublisher.Publish: %w", err)
	}

	err = p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OfferId),
		Value: data,
	})
	if err != nil {
		return fmt.Errorf("notify.KafkaPublisher.Publish: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
