package features

import (
	"sort"
	"time"

	"StockPulse/internal/domain/errs"
	"StockPulse/internal/domain/models"
	"StockPulse/pkg/util"
)

// Extract derives calendar features from a date. Weeks start on Monday (0).
func Extract(t time.Time) models.FeatureVector {
	month := int(t.Month())
	return models.FeatureVector{
		DayOfWeek:  (int(t.Weekday()) + 6) % 7,
		Month:      month,
		Year:       t.Year(),
		DayOfMonth: t.Day(),
		Quarter:    (month-1)/3 + 1,
	}
}

// Matrix extracts one feature row per observation.
func Matrix(obs []models.Observation) [][]float64 {
	rows := make([][]float64, len(obs))
	for i, o := range obs {
		rows[i] = Extract(o.Date).Values()
	}
	return rows
}

// Targets returns the quantity column.
func Targets(obs []models.Observation) []float64 {
	y := make([]float64, len(obs))
	for i, o := range obs {
		y[i] = o.Quantity
	}
	return y
}

// ParseSales converts wire records, rejecting any record missing a date or a
// quantity, or carrying a negative quantity.
func ParseSales(records []models.SalesRecord) ([]models.Observation, error) {
	out := make([]models.Observation, 0, len(records))
	for i, r := range records {
		if r.Quantity == nil {
			return nil, errs.Validation("record %d: quantity is required", i)
		}
		if *r.Quantity < 0 {
			return nil, errs.Validation("record %d: quantity must be non-negative", i)
		}
		t, ok := util.ParseTime(r.Date)
		if !ok {
			return nil, errs.Validation("record %d: invalid date %q", i, r.Date)
		}
		out = append(out, models.Observation{Date: t, Quantity: *r.Quantity})
	}
	return out, nil
}

// SortByDate orders a copy of obs ascending; ties keep input order.
func SortByDate(obs []models.Observation) []models.Observation {
	sorted := make([]models.Observation, len(obs))
	copy(sorted, obs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	return sorted
}
