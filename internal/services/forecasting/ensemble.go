package forecasting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"StockPulse/internal/domain/errs"
	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/service"
	"StockPulse/pkg/config"
	"StockPulse/pkg/util"
)

// FallbackFunc is told which forecast was returned alone and why the other failed.
type FallbackFunc func(used string, cause error)

// Ensemble runs both forecasters and merges their daily series.
type Ensemble struct {
	rf         service.DemandPredictor
	ts         service.TimeSeriesForecaster
	cfg        config.Forecast
	now        Clock
	onFallback FallbackFunc
}

func NewEnsemble(rf service.DemandPredictor, ts service.TimeSeriesForecaster, cfg config.Forecast) *Ensemble {
	return &Ensemble{rf: rf, ts: ts, cfg: cfg, now: time.Now}
}

func (e *Ensemble) WithClock(c Clock) *Ensemble {
	e.now = c
	return e
}

func (e *Ensemble) OnFallback(fn FallbackFunc) *Ensemble {
	e.onFallback = fn
	return e
}

func (e *Ensemble) Combine(ctx context.Context, itemID string, sales []models.Observation, days int) (*models.ForecastResult, error) {
	if err := checkHorizon(days, e.cfg); err != nil {
		return nil, err
	}
	ctx = WithStart(ctx, startDay(ctx, e.now))

	var (
		wg           sync.WaitGroup
		rfRes, tsRes *models.ForecastResult
		rfErr, tsErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer recoverInto(&rfErr, "random forest forecast")
		rfRes, rfErr = e.rf.Predict(ctx, itemID, days)
	}()
	go func() {
		defer wg.Done()
		defer recoverInto(&tsErr, "time-series forecast")
		tsRes, tsErr = e.ts.Forecast(ctx, itemID, sales, days)
	}()
	wg.Wait()

	switch {
	case rfErr != nil && tsErr != nil:
		return nil, &errs.Error{
			Kind:    errs.KindValidation,
			Message: fmt.Sprintf("Both forecasters failed for item %s: %s; %s", itemID, errs.Message(rfErr), errs.Message(tsErr)),
			Err:     errors.Join(rfErr, tsErr),
		}
	case rfErr != nil:
		e.fallback(tsRes.Model, rfErr)
		return tsRes, nil
	case tsErr != nil:
		e.fallback(rfRes.Model, tsErr)
		return rfRes, nil
	}

	if len(rfRes.DailyForecast) != len(tsRes.DailyForecast) {
		return nil, errs.Internal(nil, "forecast lengths differ: %d and %d", len(rfRes.DailyForecast), len(tsRes.DailyForecast))
	}
	demands := make([]int, len(rfRes.DailyForecast))
	for i := range demands {
		a, b := rfRes.DailyForecast[i].Demand, tsRes.DailyForecast[i].Demand
		demands[i] = util.RoundInt(float64(a+b) / 2)
	}
	res := newResult(itemID, startDay(ctx, e.now), demands, models.ModelEnsemble, e.cfg)
	ratioBounds(res, e.cfg.Ensemble.LowerRatio, e.cfg.Ensemble.UpperRatio)
	return res, nil
}

func (e *Ensemble) fallback(used string, cause error) {
	if e.onFallback != nil {
		e.onFallback(used, cause)
	}
}

func recoverInto(dst *error, what string) {
	if r := recover(); r != nil {
		*dst = errs.Internal(fmt.Errorf("%v", r), "%s panicked", what)
	}
}

var _ service.ForecastCombiner = (*Ensemble)(nil)
