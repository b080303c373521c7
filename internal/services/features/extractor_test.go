package features

import (
	"errors"
	"testing"
	"time"

	"StockPulse/internal/domain/errs"
	"StockPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	cases := []struct {
		date string
		want models.FeatureVector
	}{
		{"2024-01-01", models.FeatureVector{DayOfWeek: 0, Month: 1, Year: 2024, DayOfMonth: 1, Quarter: 1}},
		{"2024-03-31", models.FeatureVector{DayOfWeek: 6, Month: 3, Year: 2024, DayOfMonth: 31, Quarter: 1}},
		{"2024-04-01", models.FeatureVector{DayOfWeek: 0, Month: 4, Year: 2024, DayOfMonth: 1, Quarter: 2}},
		{"2023-12-29", models.FeatureVector{DayOfWeek: 4, Month: 12, Year: 2023, DayOfMonth: 29, Quarter: 4}},
	}
	for _, tc := range cases {
		d, err := time.Parse(models.DateLayout, tc.date)
		require.NoError(t, err)
		assert.Equal(t, tc.want, Extract(d), tc.date)
	}
}

func TestValuesOrder(t *testing.T) {
	v := models.FeatureVector{DayOfWeek: 2, Month: 7, Year: 2025, DayOfMonth: 9, Quarter: 3}.Values()
	assert.Equal(t, []float64{2, 7, 2025, 9, 3}, v)
	assert.Len(t, v, models.FeatureCount)
}

func qty(v float64) *float64 { return &v }

func TestParseSales(t *testing.T) {
	obs, err := ParseSales([]models.SalesRecord{
		{Date: "2024-05-02", Quantity: qty(3)},
		{Date: "2024-05-01T00:00:00Z", Quantity: qty(0)},
	})
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.Equal(t, 3.0, obs[0].Quantity)

	sorted := SortByDate(obs)
	assert.Equal(t, 0.0, sorted[0].Quantity)
	assert.Equal(t, 3.0, obs[0].Quantity, "input must stay untouched")
}

func TestParseSalesRejectsMalformed(t *testing.T) {
	bad := [][]models.SalesRecord{
		{{Date: "2024-05-01"}},
		{{Date: "yesterday", Quantity: qty(1)}},
		{{Date: "2024-05-01", Quantity: qty(-1)}},
	}
	for _, records := range bad {
		_, err := ParseSales(records)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrValidation))
	}
}
