package models

import "time"

// SalesRecord is the wire form of one dated quantity, used for both daily
// sales history and transaction-level data.
type SalesRecord struct {
	Date     string   `json:"date" validate:"required,salesdate"`
	Quantity *float64 `json:"quantity" validate:"required,gte=0"`
}

// Observation is a parsed SalesRecord.
type Observation struct {
	Date     time.Time
	Quantity float64
}

// Product is the current stock state of one catalog item.
type Product struct {
	ID            string  `json:"id" validate:"required"`
	Name          string  `json:"name"`
	CurrentStock  float64 `json:"current_stock" validate:"gte=0"`
	MinStockLevel float64 `json:"min_stock_level" validate:"gte=0"`
}

// FeatureVector holds calendar features. DayOfWeek is 0 for Monday.
type FeatureVector struct {
	DayOfWeek  int `json:"day_of_week"`
	Month      int `json:"month"`
	Year       int `json:"year"`
	DayOfMonth int `json:"day_of_month"`
	Quarter    int `json:"quarter"`
}

// Values returns the features in model column order.
func (f FeatureVector) Values() []float64 {
	return []float64{
		float64(f.DayOfWeek),
		float64(f.Month),
		float64(f.Year),
		float64(f.DayOfMonth),
		float64(f.Quarter),
	}
}

// FeatureCount is the width of FeatureVector.Values.
const FeatureCount = 5
