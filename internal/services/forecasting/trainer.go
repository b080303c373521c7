package forecasting

import (
	"context"
	"fmt"
	"math"
	"time"

	"StockPulse/internal/domain/errs"
	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/repository"
	"StockPulse/internal/domain/service"
	"StockPulse/internal/services/features"
	"StockPulse/internal/services/ml"
	"StockPulse/pkg/config"
)

// ModelTrainer fits the scaler and forest for an item and persists them.
type ModelTrainer struct {
	store repository.ArtifactStore
	cfg   config.Forecast
	now   Clock
}

func NewModelTrainer(store repository.ArtifactStore, cfg config.Forecast) *ModelTrainer {
	return &ModelTrainer{store: store, cfg: cfg, now: time.Now}
}

// WithClock replaces the clock used to stamp artifacts.
func (t *ModelTrainer) WithClock(c Clock) *ModelTrainer {
	t.now = c
	return t
}

func (t *ModelTrainer) Train(ctx context.Context, itemID string, sales []models.Observation) (*models.TrainAck, error) {
	if itemID == "" {
		return nil, errs.Validation("item id is required")
	}
	if len(sales) == 0 {
		return nil, errs.Validation("No sales data provided for item %s", itemID)
	}
	for i, s := range sales {
		if s.Date.IsZero() {
			return nil, errs.Validation("record %d: date is required", i)
		}
		if s.Quantity < 0 || math.IsNaN(s.Quantity) || math.IsInf(s.Quantity, 0) {
			return nil, errs.Validation("record %d: invalid quantity %v", i, s.Quantity)
		}
	}

	x := features.Matrix(sales)
	y := features.Targets(sales)

	scaler, err := ml.FitScaler(x)
	if err != nil {
		return nil, errs.Fit(err, "Failed to fit scaler for item %s", itemID)
	}
	forest, err := ml.FitForest(scaler.Transform(x), y, ml.ForestParams{
		Trees: t.cfg.Forest.Trees,
		Seed:  t.cfg.Forest.Seed,
		Tree: ml.TreeParams{
			MinSamplesSplit: t.cfg.Forest.MinSamplesSplit,
			MinSamplesLeaf:  t.cfg.Forest.MinSamplesLeaf,
			MaxDepth:        t.cfg.Forest.MaxDepth,
		},
	})
	if err != nil {
		return nil, errs.Fit(err, "Failed to fit model for item %s", itemID)
	}

	art := &models.ModelArtifact{
		ItemID:    itemID,
		Regressor: forest.State(),
		Scaler:    scaler.State(),
		Samples:   len(sales),
		TrainedAt: t.now().UTC(),
	}
	if err := t.store.Put(ctx, itemID, art); err != nil {
		return nil, fmt.Errorf("store artifact: %w", err)
	}

	return &models.TrainAck{
		ItemID:  itemID,
		Samples: len(sales),
		Message: fmt.Sprintf("Model for item %s trained successfully", itemID),
	}, nil
}

var _ service.Trainer = (*ModelTrainer)(nil)
