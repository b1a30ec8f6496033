package dosing

import "github.com/mrcode/directdose/internal/models"

// ComputeBolus returns the mealtime insulin dose netCarbs / icr rounded to
// one decimal. icr must be positive and netCarbs non-negative.
func ComputeBolus(netCarbs, icr float64) (float64, error) {
	if err := requireNonNegative("netCarbs", netCarbs); err != nil {
		return 0, err
	}
	if err := requirePositive("insulinCarbRatio", icr); err != nil {
		return 0, err
	}
	return Round1(netCarbs / icr), nil
}

// NewDoseCalculation builds the dose record for a meal
func NewDoseCalculation(netCarbs, icr float64) (*models.DoseCalculation, error) {
	units, err := ComputeBolus(netCarbs, icr)
	if err != nil {
		return nil, err
	}
	return &models.DoseCalculation{
		TotalCarbsGrams:  Round1(netCarbs),
		InsulinCarbRatio: icr,
		BolusUnits:       units,
	}, nil
}
