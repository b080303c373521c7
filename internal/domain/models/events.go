package models

import "time"

const (
	EventModelTrained      = "model.trained"
	EventAnomaliesDetected = "anomalies.detected"
	EventInventoryReorder  = "inventory.reorder"
)

// Event is a domain notification published after a successful operation.
type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	ItemID     string      `json:"item_id,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload,omitempty"`
}

// TrainRequestMessage is the payload on the background training topic.
type TrainRequestMessage struct {
	JobID     string        `json:"job_id"`
	ItemID    string        `json:"item_id"`
	SalesData []SalesRecord `json:"sales_data"`
}
