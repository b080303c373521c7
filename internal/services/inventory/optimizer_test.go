package inventory

import (
	"errors"
	"testing"
	"time"

	"StockPulse/internal/domain/errs"
	"StockPulse/internal/domain/models"
	"StockPulse/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOptimizer() *Optimizer {
	return NewOptimizer(config.Default().Inventory).WithClock(func() time.Time {
		return time.Date(2024, 6, 3, 9, 5, 7, 0, time.UTC)
	})
}

func forecast(id string, avg float64) models.ForecastResult {
	return models.ForecastResult{ItemID: id, AverageDailyDemand: avg}
}

func TestOptimizeStatuses(t *testing.T) {
	cases := []struct {
		name       string
		stock, min float64
		avg        float64
		days       float64
		suggested  float64
		status     string
	}{
		{"below min overrides days", 5, 10, 2, 0, 15, models.StatusReorderNow},
		{"comfortable", 50, 10, 2, 20, 0, models.StatusOK},
		{"within a week", 20, 10, 2, 5, 0, models.StatusReorderSoon},
		{"exactly seven days", 24, 10, 2, 7, 0, models.StatusReorderSoon},
		{"at min", 10, 10, 2, 0, 10, models.StatusReorderNow},
		{"zero demand", 50, 10, 0, 0, 0, models.StatusReorderSoon},
		{"fractional days", 20, 10, 3, 3.3, 0, models.StatusReorderSoon},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			report, err := newOptimizer().Optimize(
				[]models.Product{{ID: "a", Name: "Widget", CurrentStock: tc.stock, MinStockLevel: tc.min}},
				[]models.ForecastResult{forecast("a", tc.avg)},
			)
			require.NoError(t, err)
			require.Len(t, report.Recommendations, 1)
			r := report.Recommendations[0]
			assert.Equal(t, tc.status, r.Status)
			assert.InDelta(t, tc.days, r.DaysUntilReorderPoint, 1e-9)
			assert.InDelta(t, tc.suggested, r.SuggestedReorderAmount, 1e-9)
			assert.Equal(t, tc.avg, r.ForecastDailyDemand)
			assert.Equal(t, "Widget", r.Name)
		})
	}
}

func TestOptimizeSkipsUnmatchedAndKeepsFirstForecast(t *testing.T) {
	report, err := newOptimizer().Optimize(
		[]models.Product{
			{ID: "a", CurrentStock: 50, MinStockLevel: 10},
			{ID: "missing", CurrentStock: 1, MinStockLevel: 10},
			{ID: "b", CurrentStock: 30, MinStockLevel: 10},
		},
		[]models.ForecastResult{forecast("b", 1), forecast("a", 2), forecast("a", 40)},
	)
	require.NoError(t, err)
	require.Len(t, report.Recommendations, 2)
	assert.Equal(t, "a", report.Recommendations[0].ItemID)
	assert.InDelta(t, 20.0, report.Recommendations[0].DaysUntilReorderPoint, 1e-9)
	assert.Equal(t, "b", report.Recommendations[1].ItemID)
	assert.Equal(t, "2024-06-03 09:05:07", report.Timestamp)
}

func TestOptimizeRequiresInput(t *testing.T) {
	o := newOptimizer()
	_, err := o.Optimize(nil, []models.ForecastResult{forecast("a", 1)})
	assert.True(t, errors.Is(err, errs.ErrValidation))
	_, err = o.Optimize([]models.Product{{ID: "a"}}, nil)
	assert.True(t, errors.Is(err, errs.ErrValidation))
	assert.Equal(t, "No product or forecast data provided", err.Error())
}

func TestOptimizeUsesConfiguredHeuristics(t *testing.T) {
	o := NewOptimizer(config.Inventory{ReorderSoonDays: 30, ReorderMultiplier: 3})
	report, err := o.Optimize(
		[]models.Product{{ID: "a", CurrentStock: 50, MinStockLevel: 20}},
		[]models.ForecastResult{forecast("a", 2)},
	)
	require.NoError(t, err)
	r := report.Recommendations[0]
	assert.Equal(t, models.StatusReorderSoon, r.Status)
	assert.InDelta(t, 10.0, r.SuggestedReorderAmount, 1e-9)
}
