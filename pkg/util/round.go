package util

import "github.com/shopspring/decimal"

// Round rounds half to even at the given number of decimals, matching how the
// forecast figures have always been reported.
func Round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).RoundBank(places).Float64()
	return f
}

// RoundInt rounds half to even to an integer.
func RoundInt(v float64) int {
	return int(decimal.NewFromFloat(v).RoundBank(0).IntPart())
}
