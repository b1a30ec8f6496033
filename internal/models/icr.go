package models

import "time"

// MaxTestDays is the number of meal-test days the ICR estimator supports
const MaxTestDays = 5

// DefaultTargetBG is the post-meal target used when none is supplied (mg/dL)
const DefaultTargetBG = 140

// DayResult is one logged meal-test day
type DayResult struct {
	Day              int       `json:"day"`
	PremealBG        float64   `json:"premealBG"`
	CarbsGrams       float64   `json:"carbs"`
	PostmealBG       float64   `json:"postmealBG"`
	InsulinDoseUnits float64   `json:"insulinDose"`
	BasisICR         float64   `json:"basisICR"`
	AdjustedICR      float64   `json:"adjustedICR"`
	TestedAt         time.Time `json:"testedAt"`
}

// ICRProfile is the state of the ICR/ISF estimator for one user
type ICRProfile struct {
	UserID            string                   `json:"userId,omitempty"`
	TotalDailyInsulin float64                  `json:"totalDailyInsulin"`
	InitialICR        float64                  `json:"initialICR"`
	ISF               float64                  `json:"isf"`
	TargetBG          float64                  `json:"targetBG"`
	Days              [MaxTestDays]*DayResult  `json:"days"`
	FinalICR          *float64                 `json:"finalICR"`
	History           []AdjustmentHistoryEntry `json:"adjustmentHistory,omitempty"`
	CreatedAt         time.Time                `json:"createdAt"`
	UpdatedAt         time.Time                `json:"updatedAt"`
}

// IsInitialized returns true once the initial estimate has been computed
func (p *ICRProfile) IsInitialized() bool {
	return p != nil && p.InitialICR > 0
}

// IsCompleted returns true once a final ICR has been computed
func (p *ICRProfile) IsCompleted() bool {
	return p != nil && p.FinalICR != nil
}

// CompletedDays returns the number of leading days with a result
func (p *ICRProfile) CompletedDays() int {
	n := 0
	for _, d := range p.Days {
		if d == nil {
			break
		}
		n++
	}
	return n
}

// AdjustedICRs returns the adjusted ICR of every recorded day, in day order
func (p *ICRProfile) AdjustedICRs() []float64 {
	values := make([]float64, 0, MaxTestDays)
	for _, d := range p.Days {
		if d != nil {
			values = append(values, d.AdjustedICR)
		}
	}
	return values
}
