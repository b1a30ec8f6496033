// Package models contains data structures used throughout the application
package models

import "strings"

// Glucose units accepted on input
const (
	UnitMgDL  = "mg/dL"
	UnitMmolL = "mmol/L"
)

// mgdlPerMmol is the conversion factor between mmol/L and mg/dL
const mgdlPerMmol = 18.0182

// ToMmol converts a mg/dL value to mmol/L
func ToMmol(mgdl float64) float64 {
	return mgdl / mgdlPerMmol
}

// ToMgdl converts a mmol/L value to mg/dL
func ToMgdl(mmol float64) float64 {
	return mmol * mgdlPerMmol
}

// IsMmol reports whether unit names mmol/L (case-insensitive, "mmol" accepted)
func IsMmol(unit string) bool {
	u := strings.ToLower(strings.TrimSpace(unit))
	return u == "mmol/l" || u == "mmol"
}

// GlucoseToMgdl returns value in mg/dL. Values in mg/dL (or with an empty unit)
// are returned unchanged.
func GlucoseToMgdl(value float64, unit string) float64 {
	if IsMmol(unit) {
		return ToMgdl(value)
	}
	return value
}
