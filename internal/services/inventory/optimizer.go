// Package inventory turns stock levels and demand forecasts into reorder advice.
package inventory

import (
	"time"

	"StockPulse/internal/domain/errs"
	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/service"
	"StockPulse/pkg/config"
	"StockPulse/pkg/util"
)

// TimestampLayout formats InventoryReport.Timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

type Optimizer struct {
	cfg config.Inventory
	now func() time.Time
}

func NewOptimizer(cfg config.Inventory) *Optimizer {
	return &Optimizer{cfg: cfg, now: time.Now}
}

func (o *Optimizer) WithClock(now func() time.Time) *Optimizer {
	o.now = now
	return o
}

// Optimize emits one recommendation per product that has a forecast, in
// product order. Products without a forecast are skipped.
func (o *Optimizer) Optimize(products []models.Product, forecasts []models.ForecastResult) (*models.InventoryReport, error) {
	if len(products) == 0 || len(forecasts) == 0 {
		return nil, errs.Validation("No product or forecast data provided")
	}

	demand := make(map[string]float64, len(forecasts))
	for _, f := range forecasts {
		if _, seen := demand[f.ItemID]; !seen {
			demand[f.ItemID] = f.AverageDailyDemand
		}
	}

	recs := make([]models.InventoryRecommendation, 0, len(products))
	for _, p := range products {
		daily, ok := demand[p.ID]
		if !ok {
			continue
		}
		recs = append(recs, o.recommend(p, daily))
	}

	return &models.InventoryReport{
		Recommendations: recs,
		Timestamp:       o.now().Format(TimestampLayout),
	}, nil
}

func (o *Optimizer) recommend(p models.Product, daily float64) models.InventoryRecommendation {
	days := 0.0
	if daily > 0 {
		days = max(0, (p.CurrentStock-p.MinStockLevel)/daily)
	}

	status := models.StatusOK
	if days <= o.cfg.ReorderSoonDays {
		status = models.StatusReorderSoon
	}
	if p.CurrentStock <= p.MinStockLevel {
		status = models.StatusReorderNow
	}

	return models.InventoryRecommendation{
		ItemID:                 p.ID,
		Name:                   p.Name,
		CurrentStock:           p.CurrentStock,
		MinStockLevel:          p.MinStockLevel,
		ForecastDailyDemand:    daily,
		DaysUntilReorderPoint:  util.Round(days, 1),
		SuggestedReorderAmount: max(0, o.cfg.ReorderMultiplier*p.MinStockLevel-p.CurrentStock),
		Status:                 status,
	}
}

var _ service.InventoryOptimizer = (*Optimizer)(nil)
