package forecasting

import (
	"context"
	"errors"
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
	"StockPulse/pkg/util"

	"gonum.org/v1/gonum/stat"
)

// DemandPredictor projects demand from a stored artifact.
type DemandPredictor struct {
	store repository.ArtifactStore
	cfg   config.Forecast
	now   Clock
}

func NewDemandPredictor(store repository.ArtifactStore, cfg config.Forecast) *DemandPredictor {
	return &DemandPredictor{store: store, cfg: cfg, now: time.Now}
}

func (p *DemandPredictor) WithClock(c Clock) *DemandPredictor {
	p.now = c
	return p
}

func (p *DemandPredictor) Predict(ctx context.Context, itemID string, days int) (*models.ForecastResult, error) {
	if err := checkHorizon(days, p.cfg); err != nil {
		return nil, err
	}
	art, err := p.store.Get(ctx, itemID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.NotFound("No model found for item %s", itemID)
		}
		return nil, fmt.Errorf("load artifact %s: %w", itemID, err)
	}
	scaler, err := ml.NewScaler(art.Scaler)
	if err != nil {
		return nil, errs.Internal(err, "corrupt scaler for item %s", itemID)
	}
	forest, err := ml.NewForest(art.Regressor, scaler.Width())
	if err != nil {
		return nil, errs.Internal(err, "corrupt model for item %s", itemID)
	}

	start := startDay(ctx, p.now)
	raw := make([]float64, days)
	demands := make([]int, days)
	for i := range raw {
		row := features.Extract(start.AddDate(0, 0, i)).Values()
		raw[i] = forest.Predict(scaler.TransformRow(row))
		demands[i] = clampRound(raw[i])
	}

	res := newResult(itemID, start, demands, models.ModelRandomForest, p.cfg)
	// population variance of the unclamped predictions
	std := math.Sqrt(stat.PopVariance(raw, nil))
	total := float64(res.TotalDemand)
	res.LowerBound = max(0, util.RoundInt(total-p.cfg.ZValue*std))
	res.UpperBound = util.RoundInt(total + p.cfg.ZValue*std)
	return res, nil
}

var _ service.DemandPredictor = (*DemandPredictor)(nil)
