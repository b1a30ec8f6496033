package dosing

import (
	"math"
	"strconv"
	"strings"
)

// ParseNumber parses a free-text numeric input. Empty, non-numeric, NaN and
// infinite values are rejected.
func ParseNumber(field, raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, invalid(field, "value is required")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, invalid(field, "%q is not a number", raw)
	}
	if err := requireFinite(field, v); err != nil {
		return 0, err
	}
	return v, nil
}

// ParsePositive parses a value that must be greater than zero
func ParsePositive(field, raw string) (float64, error) {
	v, err := ParseNumber(field, raw)
	if err != nil {
		return 0, err
	}
	if err := requirePositive(field, v); err != nil {
		return 0, err
	}
	return v, nil
}

// ParseNonNegative parses a value that must be zero or greater
func ParseNonNegative(field, raw string) (float64, error) {
	v, err := ParseNumber(field, raw)
	if err != nil {
		return 0, err
	}
	if err := requireNonNegative(field, v); err != nil {
		return 0, err
	}
	return v, nil
}

func requireFinite(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return invalid(field, "must be a finite number")
	}
	return nil
}

func requirePositive(field string, v float64) error {
	if err := requireFinite(field, v); err != nil {
		return err
	}
	if v <= 0 {
		return invalid(field, "must be greater than zero, got %g", v)
	}
	return nil
}

func requireNonNegative(field string, v float64) error {
	if err := requireFinite(field, v); err != nil {
		return err
	}
	if v < 0 {
		return invalid(field, "must not be negative, got %g", v)
	}
	return nil
}
