package service

import (
	"context"

	"StockPulse/internal/domain/models"
)

// Trainer fits and persists the regression model for one item.
type Trainer interface {
	Train(ctx context.Context, itemID string, sales []models.Observation) (*models.TrainAck, error)
}

// DemandPredictor forecasts from a previously trained artifact.
type DemandPredictor interface {
	Predict(ctx context.Context, itemID string, days int) (*models.ForecastResult, error)
}

// TimeSeriesForecaster fits directly on the quantity sequence; it keeps no state.
type TimeSeriesForecaster interface {
	Forecast(ctx context.Context, itemID string, sales []models.Observation, days int) (*models.ForecastResult, error)
}

// ForecastCombiner merges the trained and time-series forecasts.
type ForecastCombiner interface {
	Combine(ctx context.Context, itemID string, sales []models.Observation, days int) (*models.ForecastResult, error)
}

type AnomalyDetector interface {
	Detect(records []models.Observation, threshold float64) (*models.AnomalyReport, error)
}

type InventoryOptimizer interface {
	Optimize(products []models.Product, forecasts []models.ForecastResult) (*models.InventoryReport, error)
}
