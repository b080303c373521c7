package repository

import (
	"context"
	"fmt"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/repository"
)

// JobTypeTrain is the queue message type for background training.
const JobTypeTrain = "train"

// JobEnqueuer is the part of pkg/queue.RedisQueue the train queue needs.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) error
}

// RedisTrainQueue hands training requests to the Redis job queue, for
// deployments that run without Kafka.
type RedisTrainQueue struct {
	q      JobEnqueuer
	prefix string
}

func NewRedisTrainQueue(q JobEnqueuer, prefix string) *RedisTrainQueue {
	return &RedisTrainQueue{q: q, prefix: prefix}
}

func (q *RedisTrainQueue) Topic() string { return "redis:" + q.prefix }

func (q *RedisTrainQueue) Enqueue(ctx context.Context, msg *models.TrainRequestMessage) error {
	if err := q.q.Enqueue(ctx, JobTypeTrain, msg); err != nil {
		return fmt.Errorf("enqueue training for %s: %w", msg.ItemID, err)
	}
	return nil
}

var _ repository.TrainQueue = (*RedisTrainQueue)(nil)
