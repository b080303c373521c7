package repository

import (
	"context"
	"time"

	"StockPulse/internal/domain/models"
)

// ArtifactStore persists one ModelArtifact per item id. Put publishes
// atomically: a concurrent Get sees either the previous artifact or the new
// one, never a mix. Get returns an errs.KindNotFound error for unknown ids.
type ArtifactStore interface {
	Put(ctx context.Context, itemID string, a *models.ModelArtifact) error
	Get(ctx context.Context, itemID string) (*models.ModelArtifact, error)
}

// SalesHistory supplies daily sales when a request carries none.
type SalesHistory interface {
	DailySales(ctx context.Context, itemID string, from, to time.Time) ([]models.Observation, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, evt *models.Event) error
	Close() error
}

// TrainQueue hands training requests to the background path.
type TrainQueue interface {
	Enqueue(ctx context.Context, msg *models.TrainRequestMessage) error
	Topic() string
}

type Metrics interface {
	RecordOperation(op, status string, seconds float64)
	RecordAnomalies(n int)
	RecordRecommendation(status string)
	RecordFallback(model string)
}
