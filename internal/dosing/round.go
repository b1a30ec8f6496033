package dosing

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round1 rounds to one decimal place, half away from zero
func Round1(x float64) float64 {
	return roundPlaces(x, 1)
}

// RoundInt rounds to the nearest integer, half away from zero
func RoundInt(x float64) float64 {
	return roundPlaces(x, 0)
}

func roundPlaces(x float64, places int32) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	f, _ := decimal.NewFromFloat(x).Round(places).Float64()
	return f
}
