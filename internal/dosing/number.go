package dosing

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

// Number is a numeric form field. It accepts a JSON number or a string and
// keeps the raw text so validation can report the offending field.
type Number struct {
	raw string
	set bool
}

// NumberOf wraps a float value
func NumberOf(v float64) Number {
	return Number{raw: strconv.FormatFloat(v, 'f', -1, 64), set: true}
}

// UnmarshalJSON accepts 12.5, "12.5", "" and null
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = Number{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Number{raw: s, set: len(bytes.TrimSpace([]byte(s))) > 0}
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return errors.New("expected a number or a numeric string")
	}
	*n = Number{raw: num.String(), set: true}
	return nil
}

// MarshalJSON writes the raw text as a JSON string, or null when unset
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.set {
		return []byte("null"), nil
	}
	return json.Marshal(n.raw)
}

// IsSet reports whether a non-empty value was supplied
func (n Number) IsSet() bool {
	return n.set
}

// Float parses the value as any finite number
func (n Number) Float(field string) (float64, error) {
	return ParseNumber(field, n.raw)
}

// Positive parses the value and requires it to be greater than zero
func (n Number) Positive(field string) (float64, error) {
	return ParsePositive(field, n.raw)
}

// NonNegative parses the value and requires it to be zero or greater
func (n Number) NonNegative(field string) (float64, error) {
	return ParseNonNegative(field, n.raw)
}
