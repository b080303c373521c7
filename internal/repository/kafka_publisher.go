package repository

import (
	"context"
	"fmt"
	"time"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/repository"

	"github.com/google/uuid"
)

// MessageWriter is the part of pkg/kafka.Producer the publishers need.
type MessageWriter interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaEventPublisher writes domain events keyed by item id.
type KafkaEventPublisher struct {
	w     MessageWriter
	topic string
}

func NewKafkaEventPublisher(w MessageWriter, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{w: w, topic: topic}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, evt *models.Event) error {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	if err := p.w.Publish(ctx, p.topic, []byte(evt.ItemID), evt); err != nil {
		return fmt.Errorf("publish %s: %w", evt.Type, err)
	}
	return nil
}

func (p *KafkaEventPublisher) Close() error { return p.w.Close() }

// NoopEventPublisher drops events when no broker is configured.
type NoopEventPublisher struct{}

func (NoopEventPublisher) Publish(context.Context, *models.Event) error { return nil }
func (NoopEventPublisher) Close() error                                 { return nil }

// KafkaTrainQueue hands training requests to the consumer group. Keying by
// item id keeps all requests for one item on one partition, in order.
type KafkaTrainQueue struct {
	w     MessageWriter
	topic string
}

func NewKafkaTrainQueue(w MessageWriter, topic string) *KafkaTrainQueue {
	return &KafkaTrainQueue{w: w, topic: topic}
}

func (q *KafkaTrainQueue) Topic() string { return q.topic }

func (q *KafkaTrainQueue) Enqueue(ctx context.Context, msg *models.TrainRequestMessage) error {
	if err := q.w.Publish(ctx, q.topic, []byte(msg.ItemID), msg); err != nil {
		return fmt.Errorf("enqueue training for %s: %w", msg.ItemID, err)
	}
	return nil
}

var (
	_ repository.EventPublisher = (*KafkaEventPublisher)(nil)
	_ repository.EventPublisher = NoopEventPublisher{}
	_ repository.TrainQueue     = (*KafkaTrainQueue)(nil)
)
