package dosing

import (
	"fmt"
	"strings"
	"time"

	"github.com/mrcode/directdose/internal/models"
)

// strongSymptomCount is the symptom count at which the heuristic moves two units
const strongSymptomCount = 3

// ValidateUrine rejects strip results other than the known values. Empty
// fields mean the strip was not used.
func ValidateUrine(urine models.UrineTest) error {
	if !urine.Glucose.Valid() {
		return invalid("urineGlucose", "must be high, normal or low")
	}
	if !urine.Ketones.Valid() {
		return invalid("urineKetones", "must be present or absent")
	}
	return nil
}

// AnalyzeSymptoms is the symptom and urine strip heuristic. It is independent
// of the BG-delta rule in AdjustBasalDose and never consults it.
//
// Hyper score: thirsty, urinating, sluggish, fatigued, high urine glucose and
// present ketones. Hypo score: shaky, sweaty, dizzy, hungry and low urine
// glucose. The larger score wins; ketones or three or more symptoms on the
// winning side move the dose two units instead of one. A tie keeps the dose.
func AnalyzeSymptoms(s models.Symptoms, urine models.UrineTest) models.SymptomAnalysis {
	hypo := countTrue(s.Shaky, s.Sweaty, s.Dizzy, s.Hungry)
	hyper := countTrue(s.Thirsty, s.Urinating, s.Sluggish, s.Fatigued)

	hypoScore, hyperScore := hypo, hyper
	switch urine.Glucose {
	case models.UrineGlucoseHigh:
		hyperScore++
	case models.UrineGlucoseLow:
		hypoScore++
	}
	ketones := urine.Ketones == models.KetonesPresent
	if ketones {
		hyperScore++
	}

	a := models.SymptomAnalysis{HypoCount: hypo, HyperCount: hyper}
	switch {
	case hyperScore > hypoScore:
		a.Direction = 1
		a.AdjustmentUnits = 1
		if ketones || hyper >= strongSymptomCount {
			a.AdjustmentUnits = 2
		}
		a.Reason = symptomReason("high", hyper, urine)
	case hypoScore > hyperScore:
		a.Direction = -1
		a.AdjustmentUnits = -1
		if hypo >= strongSymptomCount {
			a.AdjustmentUnits = -2
		}
		a.Reason = symptomReason("low", hypo, urine)
	default:
		a.Reason = "symptoms do not point to high or low blood glucose; keep the current dose"
	}
	return a
}

func countTrue(flags ...bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}

func symptomReason(direction string, count int, urine models.UrineTest) string {
	parts := []string{fmt.Sprintf("%d symptom(s) of %s blood glucose", count, direction)}
	if urine.Glucose != "" {
		parts = append(parts, fmt.Sprintf("urine glucose %s", urine.Glucose))
	}
	if urine.Ketones == models.KetonesPresent {
		parts = append(parts, "ketones present")
	}
	return strings.Join(parts, ", ")
}

// AdjustmentReason builds the free-text justification stored with a history
// entry. analysis may be nil when only the BG-delta rule ran.
func AdjustmentReason(testType models.TestType, bgChange float64, analysis *models.SymptomAnalysis) string {
	label := "basal test"
	switch testType {
	case models.TestOvernight:
		label = "overnight basal test"
	case models.TestDaytime:
		label = "daytime basal test"
	}

	var reason string
	switch {
	case bgChange > BGChangeThreshold:
		reason = fmt.Sprintf("%s: BG rose %.0f mg/dL", label, bgChange)
	case bgChange < -BGChangeThreshold:
		reason = fmt.Sprintf("%s: BG fell %.0f mg/dL", label, -bgChange)
	default:
		reason = fmt.Sprintf("%s: BG stable (%+.0f mg/dL)", label, bgChange)
	}

	if analysis != nil && analysis.Reason != "" {
		reason += "; " + analysis.Reason
	}
	return reason
}

// NewHistoryEntry builds an adjustment history record
func NewHistoryEntry(date time.Time, units float64, reason string) models.AdjustmentHistoryEntry {
	return models.AdjustmentHistoryEntry{
		Date:            date.UTC(),
		AdjustmentUnits: units,
		Reason:          reason,
	}
}
