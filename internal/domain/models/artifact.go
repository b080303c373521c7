package models

import "time"

// ModelArtifact is the persisted fitted state for one item. The regressor and
// scaler always travel together.
type ModelArtifact struct {
	ItemID    string      `json:"item_id"`
	Regressor ForestState `json:"regressor"`
	Scaler    ScalerState `json:"scaler"`
	Samples   int         `json:"samples"`
	TrainedAt time.Time   `json:"trained_at"`
}

type ScalerState struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

type ForestState struct {
	Trees []TreeState `json:"trees"`
}

// TreeState is a flattened regression tree; node 0 is the root.
type TreeState struct {
	Nodes []TreeNode `json:"nodes"`
}

// TreeNode is a leaf when Feature is -1.
type TreeNode struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v"`
}
