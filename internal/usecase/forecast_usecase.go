package usecase

import (
	"context"
	"fmt"
	"time"

	"StockPulse/internal/domain/errs"
	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	"StockPulse/internal/domain/service"
	"StockPulse/internal/services/features"
	"StockPulse/internal/services/forecasting"
	"StockPulse/pkg/cache"
	"StockPulse/pkg/logger"
	"StockPulse/pkg/util"

	"github.com/google/uuid"
)

// Engine groups the forecasting core the use case drives.
type Engine struct {
	Trainer    service.Trainer
	Predictor  service.DemandPredictor
	TimeSeries service.TimeSeriesForecaster
	Ensemble   service.ForecastCombiner
	Detector   service.AnomalyDetector
	Optimizer  service.InventoryOptimizer
}

// ForecastUseCase is the operation boundary: every call returns a tagged
// Outcome and never panics.
type ForecastUseCase struct {
	engine  Engine
	events  domrepo.EventPublisher
	metrics domrepo.Metrics
	log     *logger.Logger

	history      domrepo.SalesHistory
	lookbackDays int
	queue        domrepo.TrainQueue
	cache        cache.Service
	cacheTTL     time.Duration

	defaultThreshold float64
	now              func() time.Time
}

type Option func(*ForecastUseCase)

// WithHistory makes Train, ForecastARIMA and Ensemble load the last
// lookbackDays of daily sales when a request carries none.
func WithHistory(h domrepo.SalesHistory, lookbackDays int) Option {
	return func(uc *ForecastUseCase) {
		uc.history = h
		uc.lookbackDays = lookbackDays
	}
}

// WithTrainQueue enables TrainAsync.
func WithTrainQueue(q domrepo.TrainQueue) Option {
	return func(uc *ForecastUseCase) { uc.queue = q }
}

// WithForecastCache caches trained-model forecasts until the item is retrained.
func WithForecastCache(c cache.Service, ttl time.Duration) Option {
	return func(uc *ForecastUseCase) {
		uc.cache = c
		uc.cacheTTL = ttl
	}
}

func WithDefaultThreshold(t float64) Option {
	return func(uc *ForecastUseCase) { uc.defaultThreshold = t }
}

func WithClock(now func() time.Time) Option {
	return func(uc *ForecastUseCase) { uc.now = now }
}

func NewForecastUseCase(engine Engine, events domrepo.EventPublisher, metrics domrepo.Metrics, log *logger.Logger, opts ...Option) *ForecastUseCase {
	uc := &ForecastUseCase{
		engine:           engine,
		events:           events,
		metrics:          metrics,
		log:              log,
		defaultThreshold: 3,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *ForecastUseCase) Train(ctx context.Context, itemID string, sales []models.SalesRecord) models.Outcome[models.TrainAck] {
	return run(uc, "train", itemID, func() (models.TrainAck, string, error) {
		obs, err := features.ParseSales(sales)
		if err != nil {
			return models.TrainAck{}, "", err
		}
		return uc.train(ctx, itemID, obs)
	})
}

// TrainObservations trains from already parsed observations, such as an uploaded file.
func (uc *ForecastUseCase) TrainObservations(ctx context.Context, itemID string, obs []models.Observation) models.Outcome[models.TrainAck] {
	return run(uc, "train", itemID, func() (models.TrainAck, string, error) {
		return uc.train(ctx, itemID, obs)
	})
}

func (uc *ForecastUseCase) train(ctx context.Context, itemID string, obs []models.Observation) (models.TrainAck, string, error) {
	obs, err := uc.withHistory(ctx, itemID, obs)
	if err != nil {
		return models.TrainAck{}, "", err
	}
	ack, err := uc.engine.Trainer.Train(ctx, itemID, obs)
	if err != nil {
		return models.TrainAck{}, "", err
	}
	uc.invalidate(ctx, itemID)
	uc.publish(ctx, models.EventModelTrained, itemID, ack)
	return *ack, ack.Message, nil
}

// TrainAsync validates the request and hands it to the background trainer.
func (uc *ForecastUseCase) TrainAsync(ctx context.Context, itemID string, sales []models.SalesRecord) models.Outcome[models.TrainJob] {
	return run(uc, "train_async", itemID, func() (models.TrainJob, string, error) {
		if uc.queue == nil {
			return models.TrainJob{}, "", errs.Validation("background training is disabled")
		}
		if itemID == "" {
			return models.TrainJob{}, "", errs.Validation("item id is required")
		}
		if _, err := features.ParseSales(sales); err != nil {
			return models.TrainJob{}, "", err
		}
		if len(sales) == 0 && uc.history == nil {
			return models.TrainJob{}, "", errs.Validation("No sales data provided for item %s", itemID)
		}
		msg := &models.TrainRequestMessage{JobID: uuid.NewString(), ItemID: itemID, SalesData: sales}
		if err := uc.queue.Enqueue(ctx, msg); err != nil {
			return models.TrainJob{}, "", errs.Internal(err, "failed to queue training for item %s", itemID)
		}
		job := models.TrainJob{JobID: msg.JobID, ItemID: itemID, Topic: uc.queue.Topic()}
		return job, fmt.Sprintf("Training job %s queued for item %s", job.JobID, itemID), nil
	})
}

func (uc *ForecastUseCase) Predict(ctx context.Context, itemID string, days int) models.Outcome[models.ForecastResult] {
	return run(uc, "predict", itemID, func() (models.ForecastResult, string, error) {
		start := util.StartOfDay(uc.now())
		key := cache.Key(forecastPrefix(itemID), days, start.Format(models.DateLayout))
		if uc.cache != nil {
			var cached models.ForecastResult
			if err := uc.cache.Get(ctx, key, &cached); err == nil {
				return cached, "", nil
			}
		}

		res, err := uc.engine.Predictor.Predict(forecasting.WithStart(ctx, start), itemID, days)
		if err != nil {
			return models.ForecastResult{}, "", err
		}
		if uc.cache != nil {
			if err := uc.cache.Set(ctx, key, res, uc.cacheTTL); err != nil {
				uc.log.Warn("forecast cache write failed", logger.String("item_id", itemID), logger.Error(err))
			}
		}
		return *res, "", nil
	})
}

func (uc *ForecastUseCase) ForecastARIMA(ctx context.Context, itemID string, sales []models.SalesRecord, days int) models.Outcome[models.ForecastResult] {
	return run(uc, "forecast_arima", itemID, func() (models.ForecastResult, string, error) {
		obs, err := uc.salesFor(ctx, itemID, sales)
		if err != nil {
			return models.ForecastResult{}, "", err
		}
		res, err := uc.engine.TimeSeries.Forecast(uc.pinStart(ctx), itemID, obs, days)
		if err != nil {
			return models.ForecastResult{}, "", err
		}
		return *res, "", nil
	})
}

func (uc *ForecastUseCase) Ensemble(ctx context.Context, itemID string, sales []models.SalesRecord, days int) models.Outcome[models.ForecastResult] {
	return run(uc, "forecast_ensemble", itemID, func() (models.ForecastResult, string, error) {
		obs, err := uc.salesFor(ctx, itemID, sales)
		if err != nil {
			return models.ForecastResult{}, "", err
		}
		res, err := uc.engine.Ensemble.Combine(uc.pinStart(ctx), itemID, obs, days)
		if err != nil {
			return models.ForecastResult{}, "", err
		}
		return *res, "", nil
	})
}

// DetectAnomalies uses the configured default when threshold is 0.
func (uc *ForecastUseCase) DetectAnomalies(ctx context.Context, transactions []models.SalesRecord, threshold float64) models.Outcome[models.AnomalyReport] {
	return run(uc, "detect_anomalies", "", func() (models.AnomalyReport, string, error) {
		obs, err := features.ParseSales(transactions)
		if err != nil {
			return models.AnomalyReport{}, "", err
		}
		if threshold == 0 {
			threshold = uc.defaultThreshold
		}
		report, err := uc.engine.Detector.Detect(obs, threshold)
		if err != nil {
			return models.AnomalyReport{}, "", err
		}
		uc.metrics.RecordAnomalies(len(report.Anomalies))
		if len(report.Anomalies) > 0 {
			uc.publish(ctx, models.EventAnomaliesDetected, "", report)
		}
		return *report, report.Message, nil
	})
}

func (uc *ForecastUseCase) OptimizeInventory(ctx context.Context, products []models.Product, forecasts []models.ForecastResult) models.Outcome[models.InventoryReport] {
	return run(uc, "optimize_inventory", "", func() (models.InventoryReport, string, error) {
		report, err := uc.engine.Optimizer.Optimize(products, forecasts)
		if err != nil {
			return models.InventoryReport{}, "", err
		}
		for _, r := range report.Recommendations {
			uc.metrics.RecordRecommendation(r.Status)
			if r.Status != models.StatusOK {
				uc.publish(ctx, models.EventInventoryReorder, r.ItemID, r)
			}
		}
		return *report, fmt.Sprintf("Generated %d recommendations", len(report.Recommendations)), nil
	})
}

func (uc *ForecastUseCase) salesFor(ctx context.Context, itemID string, sales []models.SalesRecord) ([]models.Observation, error) {
	obs, err := features.ParseSales(sales)
	if err != nil {
		return nil, err
	}
	return uc.withHistory(ctx, itemID, obs)
}

func (uc *ForecastUseCase) withHistory(ctx context.Context, itemID string, obs []models.Observation) ([]models.Observation, error) {
	if len(obs) > 0 || uc.history == nil || itemID == "" {
		return obs, nil
	}
	to := util.StartOfDay(uc.now())
	from := to.AddDate(0, 0, -uc.lookbackDays)
	hist, err := uc.history.DailySales(ctx, itemID, from, to)
	if err != nil {
		return nil, errs.Internal(err, "failed to load sales history for item %s", itemID)
	}
	uc.log.Debug("loaded sales history", logger.String("item_id", itemID), logger.Int("records", len(hist)))
	return hist, nil
}

func (uc *ForecastUseCase) pinStart(ctx context.Context) context.Context {
	return forecasting.WithStart(ctx, uc.now())
}

func (uc *ForecastUseCase) invalidate(ctx context.Context, itemID string) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.DeleteByPattern(ctx, cache.PrefixPattern(forecastPrefix(itemID)+":")); err != nil {
		uc.log.Warn("forecast cache invalidation failed", logger.String("item_id", itemID), logger.Error(err))
	}
}

// publish is best effort: a failed event never fails the operation.
func (uc *ForecastUseCase) publish(ctx context.Context, typ, itemID string, payload interface{}) {
	evt := &models.Event{Type: typ, ItemID: itemID, OccurredAt: uc.now().UTC(), Payload: payload}
	if err := uc.events.Publish(ctx, evt); err != nil {
		uc.log.Warn("event publish failed", logger.String("type", typ), logger.String("item_id", itemID), logger.Error(err))
	}
}

func forecastPrefix(itemID string) string {
	return cache.Key("forecast", itemID)
}

// run converts the result of fn into an Outcome, recording the operation
// and containing panics.
func run[T any](uc *ForecastUseCase, op, itemID string, fn func() (T, string, error)) (out models.Outcome[T]) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out = models.Failure[T](errs.Internal(fmt.Errorf("%v", r), "internal error during %s", op))
			uc.log.Error("operation panicked", logger.String("op", op), logger.String("item_id", itemID), logger.Any("panic", r))
		}
		uc.metrics.RecordOperation(op, out.Status, time.Since(start).Seconds())
	}()

	data, msg, err := fn()
	if err != nil {
		fields := []logger.Field{logger.String("op", op), logger.String("item_id", itemID), logger.String("kind", string(errs.KindOf(err))), logger.Error(err)}
		switch errs.KindOf(err) {
		case errs.KindValidation, errs.KindNotFound:
			uc.log.Warn("operation rejected", fields...)
		default:
			uc.log.Error("operation failed", fields...)
		}
		return models.Failure[T](err)
	}
	uc.log.Debug("operation succeeded", logger.String("op", op), logger.String("item_id", itemID), logger.Duration("took", time.Since(start)))
	return models.Success(data, msg)
}
