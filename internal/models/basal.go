package models

import "time"

// TestType is the kind of fasting basal test
type TestType string

const (
	// TestOvernight compares a bedtime reading with the next morning
	TestOvernight TestType = "overnight"
	// TestDaytime compares readings before and after a skipped meal
	TestDaytime TestType = "daytime"
)

// Valid returns true for a known test type
func (t TestType) Valid() bool {
	return t == TestOvernight || t == TestDaytime
}

// Symptoms is the eight-item checklist of the symptom-based basal heuristic.
// The first four suggest hypoglycemia, the last four hyperglycemia.
type Symptoms struct {
	Shaky     bool `json:"shaky"`
	Sweaty    bool `json:"sweaty"`
	Dizzy     bool `json:"dizzy"`
	Hungry    bool `json:"hungry"`
	Thirsty   bool `json:"thirsty"`
	Urinating bool `json:"urinating"`
	Sluggish  bool `json:"sluggish"`
	Fatigued  bool `json:"fatigued"`
}

// UrineGlucose is the urine glucose strip result
type UrineGlucose string

const (
	UrineGlucoseHigh   UrineGlucose = "high"
	UrineGlucoseNormal UrineGlucose = "normal"
	UrineGlucoseLow    UrineGlucose = "low"
)

// Valid reports whether g is empty (not tested) or a known strip result
func (g UrineGlucose) Valid() bool {
	switch g {
	case "", UrineGlucoseHigh, UrineGlucoseNormal, UrineGlucoseLow:
		return true
	}
	return false
}

// UrineKetones is the urine ketone strip result
type UrineKetones string

const (
	KetonesPresent UrineKetones = "present"
	KetonesAbsent  UrineKetones = "absent"
)

// Valid reports whether k is empty (not tested) or a known strip result
func (k UrineKetones) Valid() bool {
	switch k {
	case "", KetonesPresent, KetonesAbsent:
		return true
	}
	return false
}

// UrineTest holds optional urine strip results (empty means not tested)
type UrineTest struct {
	Glucose UrineGlucose `json:"urineGlucose,omitempty"`
	Ketones UrineKetones `json:"urineKetones,omitempty"`
}

// SymptomAnalysis is the outcome of the symptom heuristic
type SymptomAnalysis struct {
	HypoCount       int     `json:"hypoCount"`
	HyperCount      int     `json:"hyperCount"`
	Direction       int     `json:"direction"` // -1 decrease, 0 keep, +1 increase
	AdjustmentUnits float64 `json:"adjustmentUnits"`
	Reason          string  `json:"reason"`
}

// AdjustmentHistoryEntry is one append-only record of a recommended change
type AdjustmentHistoryEntry struct {
	Date            time.Time `json:"date"`
	AdjustmentUnits float64   `json:"adjustmentUnits"`
	Reason          string    `json:"reason"`
}

// BasalProfile is a basal test submission and its recommendation
type BasalProfile struct {
	UserID                     string                   `json:"userId,omitempty"`
	TestDate                   string                   `json:"testDate"` // YYYY-MM-DD
	TotalDailyInsulin          float64                  `json:"totalDailyInsulin"`
	BasalFraction              float64                  `json:"basalFraction"`
	EstimatedBasal             float64                  `json:"estimatedBasal"`
	CurrentBasalDose           float64                  `json:"currentBasalDose"`
	TestType                   TestType                 `json:"testType"`
	BedtimeBG                  float64                  `json:"bedtimeBG,omitempty"`
	MorningBG                  float64                  `json:"morningBG,omitempty"`
	BGChange                   float64                  `json:"bgChange"`
	RecommendedAdjustmentUnits float64                  `json:"recommendedAdjustment"`
	Symptoms                   *Symptoms                `json:"symptoms,omitempty"`
	Urine                      *UrineTest               `json:"urine,omitempty"`
	SymptomAdjustmentUnits     *float64                 `json:"symptomAdjustment,omitempty"`
	Notes                      string                   `json:"notes,omitempty"`
	History                    []AdjustmentHistoryEntry `json:"adjustmentHistory"`
	IsCompleted                bool                     `json:"isCompleted"`
	CreatedAt                  time.Time                `json:"createdAt"`
	UpdatedAt                  time.Time                `json:"updatedAt"`
}

// TestDateLayout is the layout of BasalProfile.TestDate
const TestDateLayout = "2006-01-02"

// AppendHistory appends an entry without touching earlier ones
func (b *BasalProfile) AppendHistory(entry AdjustmentHistoryEntry) {
	b.History = append(b.History, entry)
}
