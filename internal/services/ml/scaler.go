// Package ml holds the fitted models behind the forecasters: a standard
// scaler, CART regression trees, a bagged forest and an ARIMA(p,d,0) fit.
package ml

import (
	"errors"
	"fmt"

	"StockPulse/internal/domain/models"

	"gonum.org/v1/gonum/stat"
)

var ErrEmptyInput = errors.New("ml: empty input")

// StandardScaler centers each column and scales it by its population
// standard deviation. Zero-variance columns keep a scale of 1.
type StandardScaler struct {
	mean  []float64
	scale []float64
}

func FitScaler(x [][]float64) (*StandardScaler, error) {
	if len(x) == 0 || len(x[0]) == 0 {
		return nil, ErrEmptyInput
	}
	width := len(x[0])
	s := &StandardScaler{mean: make([]float64, width), scale: make([]float64, width)}
	col := make([]float64, len(x))
	for j := 0; j < width; j++ {
		for i, row := range x {
			if len(row) != width {
				return nil, fmt.Errorf("ml: row %d has %d columns, want %d", i, len(row), width)
			}
			col[i] = row[j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 {
			std = 1
		}
		s.mean[j], s.scale[j] = mean, std
	}
	return s, nil
}

// NewScaler restores a scaler from persisted state.
func NewScaler(st models.ScalerState) (*StandardScaler, error) {
	if len(st.Mean) == 0 || len(st.Mean) != len(st.Scale) {
		return nil, fmt.Errorf("ml: scaler state has %d means and %d scales", len(st.Mean), len(st.Scale))
	}
	for j, sc := range st.Scale {
		if sc == 0 {
			return nil, fmt.Errorf("ml: scaler column %d has zero scale", j)
		}
	}
	return &StandardScaler{mean: append([]float64(nil), st.Mean...), scale: append([]float64(nil), st.Scale...)}, nil
}

func (s *StandardScaler) Width() int { return len(s.mean) }

func (s *StandardScaler) TransformRow(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.mean[j]) / s.scale[j]
	}
	return out
}

func (s *StandardScaler) Transform(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for i, row := range x {
		out[i] = s.TransformRow(row)
	}
	return out
}

func (s *StandardScaler) State() models.ScalerState {
	return models.ScalerState{
		Mean:  append([]float64(nil), s.mean...),
		Scale: append([]float64(nil), s.scale...),
	}
}
