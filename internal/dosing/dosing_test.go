package dosing

import (
	"errors"
	"math"
	"testing"
)

func TestRound1(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"already rounded", 3.0, 3.0},
		{"round down", 4.14, 4.1},
		{"round up", 4.1666, 4.2},
		{"half away from zero", 2.25, 2.3},
		{"negative half away from zero", -2.25, -2.3},
		{"small half", 0.05, 0.1},
		{"zero", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Round1(tt.in); got != tt.want {
				t.Errorf("Round1(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRoundInt(t *testing.T) {
	if got := RoundInt(34.5); got != 35 {
		t.Errorf("RoundInt(34.5) = %v, want 35", got)
	}
	if got := RoundInt(212.4); got != 212 {
		t.Errorf("RoundInt(212.4) = %v, want 212", got)
	}
	if got := RoundInt(math.NaN()); !math.IsNaN(got) {
		t.Errorf("RoundInt(NaN) = %v, want NaN", got)
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    float64
		wantErr bool
	}{
		{"integer", "40", 40, false},
		{"decimal with spaces", " 12.5 ", 12.5, false},
		{"negative", "-3", -3, false},
		{"empty", "", 0, true},
		{"blank", "   ", 0, true},
		{"text", "abc", 0, true},
		{"trailing text", "12g", 0, true},
		{"NaN", "NaN", 0, true},
		{"infinity", "Inf", 0, true},
		{"overflow", "1e400", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseNumber("tdi", tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseNumber(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if tt.wantErr {
				if !IsValidation(err) {
					t.Errorf("ParseNumber(%q) error = %T, want *ValidationError", tt.raw, err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("ParseNumber(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParsePositiveAndNonNegative(t *testing.T) {
	if _, err := ParsePositive("icr", "0"); err == nil {
		t.Error("ParsePositive(0) should fail")
	}
	if v, err := ParsePositive("icr", "15"); err != nil || v != 15 {
		t.Errorf("ParsePositive(15) = %v, %v", v, err)
	}
	if v, err := ParseNonNegative("carbs", "0"); err != nil || v != 0 {
		t.Errorf("ParseNonNegative(0) = %v, %v", v, err)
	}
	if _, err := ParseNonNegative("carbs", "-1"); err == nil {
		t.Error("ParseNonNegative(-1) should fail")
	}

	_, err := ParsePositive("weight", "-5")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if ve.Field != "weight" {
		t.Errorf("Field = %q, want weight", ve.Field)
	}
}

func TestComputeBolus(t *testing.T) {
	tests := []struct {
		name     string
		netCarbs float64
		icr      float64
		want     float64
		wantErr  bool
	}{
		{"even division", 45, 15, 3.0, false},
		{"rounded to one decimal", 50, 12, 4.2, false},
		{"no carbs", 0, 15, 0, false},
		{"fractional ratio", 50, 12.5, 4.0, false},
		{"zero ratio", 45, 0, 0, true},
		{"negative ratio", 45, -10, 0, true},
		{"negative carbs", -1, 15, 0, true},
		{"NaN carbs", math.NaN(), 15, 0, true},
		{"infinite ratio", 45, math.Inf(1), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeBolus(tt.netCarbs, tt.icr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ComputeBolus() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !IsValidation(err) {
				t.Errorf("ComputeBolus() error = %T, want *ValidationError", err)
			}
			if got != tt.want {
				t.Errorf("ComputeBolus(%v, %v) = %v, want %v", tt.netCarbs, tt.icr, got, tt.want)
			}
		})
	}
}

func TestNewDoseCalculation(t *testing.T) {
	calc, err := NewDoseCalculation(44.96, 15)
	if err != nil {
		t.Fatalf("NewDoseCalculation() error = %v", err)
	}
	if calc.TotalCarbsGrams != 45.0 {
		t.Errorf("TotalCarbsGrams = %v, want 45", calc.TotalCarbsGrams)
	}
	if calc.BolusUnits != 3.0 {
		t.Errorf("BolusUnits = %v, want 3", calc.BolusUnits)
	}
	if calc.InsulinCarbRatio != 15 {
		t.Errorf("InsulinCarbRatio = %v, want 15", calc.InsulinCarbRatio)
	}
}
