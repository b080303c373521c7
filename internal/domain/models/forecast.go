package models

const (
	ModelRandomForest = "random_forest"
	ModelARIMA        = "arima"
	ModelEnsemble     = "ensemble"
)

// DateLayout is the calendar date format used in every result.
const DateLayout = "2006-01-02"

type DailyDemand struct {
	Date   string `json:"date"`
	Demand int    `json:"demand"`
}

// ForecastResult is a per-item demand forecast over Period days.
type ForecastResult struct {
	ItemID             string        `json:"item_id"`
	Period             int           `json:"period"`
	StartDate          string        `json:"start_date"`
	EndDate            string        `json:"end_date"`
	TotalDemand        int           `json:"total_demand"`
	AverageDailyDemand float64       `json:"average_daily_demand"`
	ConfidenceLevel    int           `json:"confidence_level"`
	LowerBound         int           `json:"lower_bound"`
	UpperBound         int           `json:"upper_bound"`
	DailyForecast      []DailyDemand `json:"daily_forecast"`
	Model              string        `json:"model"`
}

type AnomalyRecord struct {
	Date     string  `json:"date"`
	Quantity float64 `json:"quantity"`
	Expected float64 `json:"expected"`
	ZScore   float64 `json:"z_score"`
}

type AnomalyReport struct {
	Anomalies []AnomalyRecord `json:"anomalies"`
	Message   string          `json:"message"`
}

const (
	StatusOK          = "OK"
	StatusReorderSoon = "REORDER_SOON"
	StatusReorderNow  = "REORDER_NOW"
)

type InventoryRecommendation struct {
	ItemID                 string  `json:"item_id"`
	Name                   string  `json:"name"`
	CurrentStock           float64 `json:"current_stock"`
	MinStockLevel          float64 `json:"min_stock_level"`
	ForecastDailyDemand    float64 `json:"forecast_daily_demand"`
	DaysUntilReorderPoint  float64 `json:"days_until_reorder_point"`
	SuggestedReorderAmount float64 `json:"suggested_reorder_amount"`
	Status                 string  `json:"status"`
}

type InventoryReport struct {
	Recommendations []InventoryRecommendation `json:"recommendations"`
	Timestamp       string                    `json:"timestamp"`
}

type TrainAck struct {
	ItemID  string `json:"item_id"`
	Samples int    `json:"samples"`
	Message string `json:"message"`
}

// TrainJob acknowledges a training request handed to the background path.
type TrainJob struct {
	JobID  string `json:"job_id"`
	ItemID string `json:"item_id"`
	Topic  string `json:"topic"`
}
