package dosing

import (
	"math"
	"strings"

	"github.com/mrcode/directdose/internal/models"
)

// Basal adjustment rule: a change in fasting BG beyond the threshold moves
// the dose by a fixed proportion.
const (
	BGChangeThreshold = 15.0 // mg/dL
	AdjustmentFactor  = 0.15
)

// Weight-based TDI fallback
const (
	UnitsPerKg = 0.5
	KgPerLb    = 0.453592
)

// BasalEstimate is the starting basal dose derived from TDI
type BasalEstimate struct {
	TotalDailyInsulin float64 `json:"totalDailyInsulin"`
	Fraction          float64 `json:"basalFraction"`
	Units             float64 `json:"estimatedBasal"`
	RangeLow          float64 `json:"rangeLow"`
	RangeHigh         float64 `json:"rangeHigh"`
}

// EstimateBasal returns fraction * tdi together with the [0.4, 0.5] range.
// A zero fraction selects DefaultBasalFraction.
func EstimateBasal(tdi, fraction float64) (BasalEstimate, error) {
	if err := requirePositive("totalDailyInsulin", tdi); err != nil {
		return BasalEstimate{}, err
	}
	if fraction == 0 {
		fraction = models.DefaultBasalFraction
	}
	if err := requireFinite("basalFraction", fraction); err != nil {
		return BasalEstimate{}, err
	}
	if fraction < models.MinBasalFraction || fraction > models.MaxBasalFraction {
		return BasalEstimate{}, invalid("basalFraction", "must be between %.1f and %.1f, got %g",
			models.MinBasalFraction, models.MaxBasalFraction, fraction)
	}

	return BasalEstimate{
		TotalDailyInsulin: tdi,
		Fraction:          fraction,
		Units:             Round1(tdi * fraction),
		RangeLow:          Round1(tdi * models.MinBasalFraction),
		RangeHigh:         Round1(tdi * models.MaxBasalFraction),
	}, nil
}

// BasalAdjustment is the outcome of a fasting basal test
type BasalAdjustment struct {
	BGChange                   float64 `json:"bgChange"`
	RecommendedAdjustmentUnits float64 `json:"recommendedAdjustment"`
	NewDose                    float64 `json:"newDose"`
	Direction                  int     `json:"direction"` // -1 decrease, 0 keep, +1 increase
}

// AdjustBasalDose compares the two fasting checkpoints. bgChange is
// morningBG - bedtimeBG; the recommendation is zero when |bgChange| <= 15 and
// round(currentDose * 0.15 * sign(bgChange), 1) otherwise. currentDose only
// has to be finite.
func AdjustBasalDose(bedtimeBG, morningBG, currentDose float64) (BasalAdjustment, error) {
	if err := requirePositive("bedtimeBG", bedtimeBG); err != nil {
		return BasalAdjustment{}, err
	}
	if err := requirePositive("morningBG", morningBG); err != nil {
		return BasalAdjustment{}, err
	}
	if err := requireFinite("currentBasalDose", currentDose); err != nil {
		return BasalAdjustment{}, err
	}

	change := morningBG - bedtimeBG
	adj := BasalAdjustment{
		BGChange: Round1(change),
		NewDose:  Round1(currentDose),
	}
	if math.Abs(change) <= BGChangeThreshold {
		return adj, nil
	}

	sign := 1.0
	if change < 0 {
		sign = -1.0
	}
	adj.Direction = int(sign)
	adj.RecommendedAdjustmentUnits = Round1(currentDose * AdjustmentFactor * sign)
	adj.NewDose = Round1(currentDose + adj.RecommendedAdjustmentUnits)
	return adj, nil
}

// EstimateTDIFromWeight estimates total daily insulin as 0.5 units/kg/day,
// rounded to a whole unit. unit is "kg" (default), "lb" or "lbs".
func EstimateTDIFromWeight(weight float64, unit string) (float64, error) {
	if err := requirePositive("weight", weight); err != nil {
		return 0, err
	}

	kg := weight
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "", "kg", "kgs":
	case "lb", "lbs":
		kg = weight * KgPerLb
	default:
		return 0, invalid("weightUnit", "unknown unit %q, want kg or lb", unit)
	}

	return RoundInt(kg * UnitsPerKg), nil
}
