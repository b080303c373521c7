package forecasting

import (
	"context"
	"time"

	"StockPulse/internal/domain/errs"
	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/service"
	"StockPulse/internal/services/features"
	"StockPulse/internal/services/ml"
	"StockPulse/pkg/config"
)

// ARIMAForecaster fits ARIMA(p,d,0) on the quantity series of each request.
type ARIMAForecaster struct {
	cfg config.Forecast
	now Clock
}

func NewARIMAForecaster(cfg config.Forecast) *ARIMAForecaster {
	return &ARIMAForecaster{cfg: cfg, now: time.Now}
}

func (f *ARIMAForecaster) WithClock(c Clock) *ARIMAForecaster {
	f.now = c
	return f
}

func (f *ARIMAForecaster) Forecast(ctx context.Context, itemID string, sales []models.Observation, days int) (*models.ForecastResult, error) {
	if err := checkHorizon(days, f.cfg); err != nil {
		return nil, err
	}
	y := features.Targets(features.SortByDate(sales))

	model, err := ml.FitARIMA(y, f.cfg.ARIMA.P, f.cfg.ARIMA.D)
	if err != nil {
		return nil, errs.Fit(err, "Failed to create ARIMA forecast")
	}
	raw, err := model.Forecast(days)
	if err != nil {
		return nil, errs.Fit(err, "Failed to create ARIMA forecast")
	}

	demands := make([]int, days)
	for i, v := range raw {
		demands[i] = clampRound(v)
	}
	res := newResult(itemID, startDay(ctx, f.now), demands, models.ModelARIMA, f.cfg)
	ratioBounds(res, f.cfg.ARIMA.LowerRatio, f.cfg.ARIMA.UpperRatio)
	return res, nil
}

var _ service.TimeSeriesForecaster = (*ARIMAForecaster)(nil)
