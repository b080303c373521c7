// Package forecasting implements the trained demand predictor, the
// time-series forecaster and the ensemble that combines them.
package forecasting

import (
	"context"
	"time"

	"StockPulse/internal/domain/errs"
	"StockPulse/internal/domain/models"
	"StockPulse/pkg/config"
	"StockPulse/pkg/util"
)

// Clock returns the invocation instant.
type Clock func() time.Time

type startKey struct{}

// WithStart pins the first forecast day for every forecaster called with ctx,
// so forecasts produced for one request share their dates.
func WithStart(ctx context.Context, day time.Time) context.Context {
	return context.WithValue(ctx, startKey{}, util.StartOfDay(day))
}

func startDay(ctx context.Context, now Clock) time.Time {
	if t, ok := ctx.Value(startKey{}).(time.Time); ok {
		return t
	}
	return util.StartOfDay(now())
}

func checkHorizon(days int, cfg config.Forecast) error {
	if days < 1 || days > cfg.MaxHorizonDays {
		return errs.Validation("days must be between 1 and %d, got %d", cfg.MaxHorizonDays, days)
	}
	return nil
}

// clampRound turns a raw model output into a daily demand.
func clampRound(v float64) int {
	d := util.RoundInt(v)
	if d < 0 {
		return 0
	}
	return d
}

// newResult lays out the daily series from start and fills the aggregates.
// Bounds are left to the caller.
func newResult(itemID string, start time.Time, demands []int, model string, cfg config.Forecast) *models.ForecastResult {
	n := len(demands)
	daily := make([]models.DailyDemand, n)
	total := 0
	for i, d := range demands {
		daily[i] = models.DailyDemand{Date: start.AddDate(0, 0, i).Format(models.DateLayout), Demand: d}
		total += d
	}
	return &models.ForecastResult{
		ItemID:             itemID,
		Period:             n,
		StartDate:          daily[0].Date,
		EndDate:            daily[n-1].Date,
		TotalDemand:        total,
		AverageDailyDemand: util.Round(float64(total)/float64(n), 2),
		ConfidenceLevel:    cfg.ConfidenceLevel,
		DailyForecast:      daily,
		Model:              model,
	}
}

// ratioBounds applies a fixed multiplicative band around the total.
func ratioBounds(r *models.ForecastResult, lower, upper float64) {
	r.LowerBound = util.RoundInt(lower * float64(r.TotalDemand))
	r.UpperBound = util.RoundInt(upper * float64(r.TotalDemand))
}
