package models

// Requests for forecasting HTTP endpoints. Defined in domain for consistency and reuse.

type TrainRequest struct {
	ItemID    string        `json:"item_id" validate:"required,itemid"`
	SalesData []SalesRecord `json:"sales_data" validate:"dive"`
}

type PredictRequest struct {
	ItemID string `json:"item_id" validate:"required,itemid"`
	Days   int    `json:"days" default:"30" validate:"gte=1,lte=365"`
}

type ForecastRequest struct {
	ItemID    string        `json:"item_id" validate:"required,itemid"`
	SalesData []SalesRecord `json:"sales_data" validate:"dive"`
	Days      int           `json:"days" default:"30" validate:"gte=1,lte=365"`
}

type AnomalyRequest struct {
	TransactionData []SalesRecord `json:"transaction_data" validate:"dive"`
	Threshold       float64       `json:"threshold" default:"3" validate:"gt=0"`
}

type OptimizeRequest struct {
	ProductData  []Product        `json:"product_data" validate:"dive"`
	ForecastData []ForecastResult `json:"forecast_data"`
}
