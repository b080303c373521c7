package ml

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrTooShort      = errors.New("ml: series too short")
	ErrInvalidValue  = errors.New("ml: series contains invalid values")
	ErrSingular      = errors.New("ml: design matrix is singular")
	ErrNonStationary = errors.New("ml: autoregressive fit is not stationary")
)

// conditionLimit bounds the singular value ratio accepted for the AR design.
const conditionLimit = 1e-10

// ARIMA is an ARIMA(p,d,0) model without a constant, fitted by conditional
// least squares on the d-times differenced series.
type ARIMA struct {
	p, d  int
	coef  []float64
	tail  []float64 // last p values of the differenced series
	lasts []float64 // last value at each differencing level 0..d-1
}

// MinObservations is the shortest series FitARIMA accepts for the order.
func MinObservations(p, d int) int { return 2*p + d + 1 }

func FitARIMA(y []float64, p, d int) (*ARIMA, error) {
	if p < 1 || d < 0 {
		return nil, fmt.Errorf("ml: invalid order (%d,%d,0)", p, d)
	}
	if len(y) < MinObservations(p, d) {
		return nil, fmt.Errorf("%w: %d observations, need %d", ErrTooShort, len(y), MinObservations(p, d))
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return nil, fmt.Errorf("%w: index %d is %v", ErrInvalidValue, i, v)
		}
	}

	m := &ARIMA{p: p, d: d, lasts: make([]float64, d)}
	z := append([]float64(nil), y...)
	for k := 0; k < d; k++ {
		m.lasts[k] = z[len(z)-1]
		z = diff(z)
	}

	rows := len(z) - p
	design := mat.NewDense(rows, p, nil)
	target := mat.NewVecDense(rows, nil)
	for t := 0; t < rows; t++ {
		for k := 0; k < p; k++ {
			design.Set(t, k, z[t+p-1-k])
		}
		target.SetVec(t, z[t+p])
	}

	var svd mat.SVD
	if !svd.Factorize(design, mat.SVDNone) {
		return nil, ErrSingular
	}
	sv := svd.Values(nil)
	if sv[0] == 0 || sv[len(sv)-1]/sv[0] < conditionLimit {
		return nil, ErrSingular
	}

	var beta mat.VecDense
	if err := beta.SolveVec(design, target); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	m.coef = make([]float64, p)
	for k := range m.coef {
		m.coef[k] = beta.AtVec(k)
		if math.IsNaN(m.coef[k]) || math.IsInf(m.coef[k], 0) {
			return nil, ErrSingular
		}
	}

	if !stationary(m.coef) {
		return nil, ErrNonStationary
	}
	m.tail = append([]float64(nil), z[len(z)-p:]...)
	return m, nil
}

func (m *ARIMA) Coefficients() []float64 { return append([]float64(nil), m.coef...) }

// Forecast returns the next steps values on the original scale.
func (m *ARIMA) Forecast(steps int) ([]float64, error) {
	if steps < 1 {
		return nil, fmt.Errorf("ml: steps must be positive")
	}
	hist := append([]float64(nil), m.tail...)
	out := make([]float64, steps)
	for s := 0; s < steps; s++ {
		var v float64
		for k, c := range m.coef {
			v += c * hist[len(hist)-1-k]
		}
		hist = append(hist, v)
		out[s] = v
	}
	for k := m.d - 1; k >= 0; k-- {
		level := m.lasts[k]
		for s := range out {
			level += out[s]
			out[s] = level
		}
	}
	for s, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: forecast step %d is %v", ErrInvalidValue, s, v)
		}
	}
	return out, nil
}

func diff(x []float64) []float64 {
	out := make([]float64, len(x)-1)
	for i := 1; i < len(x); i++ {
		out[i-1] = x[i] - x[i-1]
	}
	return out
}

// stationary checks that every root of the AR polynomial lies outside the
// unit circle, i.e. every companion matrix eigenvalue lies inside it.
func stationary(coef []float64) bool {
	p := len(coef)
	companion := mat.NewDense(p, p, nil)
	for k, c := range coef {
		companion.Set(0, k, c)
	}
	for i := 1; i < p; i++ {
		companion.Set(i, i-1, 1)
	}
	var eig mat.Eigen
	if !eig.Factorize(companion, mat.EigenNone) {
		return false
	}
	for _, v := range eig.Values(nil) {
		if cmplx.Abs(v) >= 1 {
			return false
		}
	}
	return true
}
