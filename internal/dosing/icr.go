package dosing

import (
	"fmt"
	"time"

	"github.com/mrcode/directdose/internal/models"
)

// Rule constants for the initial estimate ("500 rule" and "1800 rule")
const (
	ICRRuleConstant = 500.0
	ISFRuleConstant = 1800.0
)

// Typical ICR range; values outside produce an advisory
const (
	TypicalICRLow  = 8.0
	TypicalICRHigh = 20.0
)

// EstimatorState is the position of an ICR estimation in its workflow
type EstimatorState int

const (
	StateUninitialized EstimatorState = iota
	StateInitialEstimate
	StateDayTested
	StateFinalized
)

func (s EstimatorState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialEstimate:
		return "initial_estimate"
	case StateDayTested:
		return "day_tested"
	case StateFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// InitialEstimate returns initialICR = 500/tdi and isf = 1800/tdi, each
// rounded to one decimal.
func InitialEstimate(tdi float64) (icr, isf float64, err error) {
	if err := requirePositive("totalDailyInsulin", tdi); err != nil {
		return 0, 0, err
	}
	return Round1(ICRRuleConstant / tdi), Round1(ISFRuleConstant / tdi), nil
}

// CheckICRRange returns an advisory when icr lies outside [8, 20], nil otherwise
func CheckICRRange(kind AdvisoryKind, icr float64) *Advisory {
	if icr >= TypicalICRLow && icr <= TypicalICRHigh {
		return nil
	}
	return &Advisory{
		Kind:  kind,
		Value: icr,
		Low:   TypicalICRLow,
		High:  TypicalICRHigh,
		Message: fmt.Sprintf("ICR 1:%.1f is outside the typical range of 1:%.0f to 1:%.0f; confirm with your care team",
			icr, TypicalICRLow, TypicalICRHigh),
	}
}

// AdjustICR applies the post-meal deviation correction to currentICR.
// adjustment = 1 + (postmealBG - targetBG) / targetBG; the result is
// currentICR * adjustment when postmealBG > targetBG and
// currentICR * (2 - adjustment) otherwise.
func AdjustICR(currentICR, postmealBG, targetBG float64) float64 {
	adjustment := 1 + (postmealBG-targetBG)/targetBG
	if postmealBG > targetBG {
		return currentICR * adjustment
	}
	return currentICR * (2 - adjustment)
}

// DayInput holds the readings of one meal-test day (BG in mg/dL)
type DayInput struct {
	PremealBG  float64 `json:"premealBG"`
	CarbsGrams float64 `json:"carbs"`
	PostmealBG float64 `json:"postmealBG"`
}

func (in DayInput) validate() error {
	if err := requirePositive("premealBG", in.PremealBG); err != nil {
		return err
	}
	if err := requireNonNegative("carbs", in.CarbsGrams); err != nil {
		return err
	}
	return requirePositive("postmealBG", in.PostmealBG)
}

// ICREstimator drives an ICRProfile through its states. It is not safe for
// concurrent use; each submission works on its own copy of the profile.
type ICREstimator struct {
	profile *models.ICRProfile
	now     func() time.Time
}

// NewICREstimator wraps profile. A nil profile starts a new estimation.
func NewICREstimator(profile *models.ICRProfile) *ICREstimator {
	if profile == nil {
		profile = &models.ICRProfile{}
	}
	return &ICREstimator{profile: profile, now: time.Now}
}

// Profile returns the profile being estimated
func (e *ICREstimator) Profile() *models.ICRProfile {
	return e.profile
}

// State derives the current state from the stored profile
func (e *ICREstimator) State() EstimatorState {
	switch {
	case e.profile.IsCompleted():
		return StateFinalized
	case e.profile.CompletedDays() > 0:
		return StateDayTested
	case e.profile.IsInitialized():
		return StateInitialEstimate
	default:
		return StateUninitialized
	}
}

// Advisories reports the range advisories for the stored initial and final ICR
func (e *ICREstimator) Advisories() []Advisory {
	var advisories []Advisory
	if !e.profile.IsInitialized() {
		return advisories
	}
	if a := CheckICRRange(AdvisoryInitialICR, e.profile.InitialICR); a != nil {
		advisories = append(advisories, *a)
	}
	if e.profile.IsCompleted() {
		if a := CheckICRRange(AdvisoryFinalICR, *e.profile.FinalICR); a != nil {
			advisories = append(advisories, *a)
		}
	}
	return advisories
}

// Initialize computes the initial ICR and ISF. A zero targetBG selects the
// default target. Re-initializing starts a fresh set of test days; the
// adjustment history is kept.
func (e *ICREstimator) Initialize(tdi, targetBG float64) ([]Advisory, error) {
	icr, isf, err := InitialEstimate(tdi)
	if err != nil {
		return nil, err
	}
	if targetBG == 0 {
		targetBG = models.DefaultTargetBG
	}
	if err := requirePositive("targetBG", targetBG); err != nil {
		return nil, err
	}

	now := e.now().UTC()
	p := e.profile
	p.TotalDailyInsulin = tdi
	p.InitialICR = icr
	p.ISF = isf
	p.TargetBG = targetBG
	p.Days = [models.MaxTestDays]*models.DayResult{}
	p.FinalICR = nil
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	var advisories []Advisory
	if a := CheckICRRange(AdvisoryInitialICR, icr); a != nil {
		advisories = append(advisories, *a)
	}
	return advisories, nil
}

// RecordDay computes the result of test day (1-based). Day n needs days
// 1..n-1; a completed day may be recorded again. On error the profile is
// left unchanged.
func (e *ICREstimator) RecordDay(day int, in DayInput) (*models.DayResult, error) {
	if day < 1 || day > models.MaxTestDays {
		return nil, invalid("day", "must be between 1 and %d, got %d", models.MaxTestDays, day)
	}
	p := e.profile
	if !p.IsInitialized() {
		return nil, ErrNotInitialized
	}
	if completed := p.CompletedDays(); day > completed+1 {
		return nil, invalid("day", "day %d requires day %d to be completed first", day, completed+1)
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	basis := p.InitialICR
	if day > 1 {
		basis = p.Days[day-2].AdjustedICR
	}

	result := &models.DayResult{
		Day:              day,
		PremealBG:        in.PremealBG,
		CarbsGrams:       in.CarbsGrams,
		PostmealBG:       in.PostmealBG,
		InsulinDoseUnits: Round1(in.CarbsGrams / basis),
		BasisICR:         basis,
		AdjustedICR:      Round1(AdjustICR(basis, in.PostmealBG, p.TargetBG)),
		TestedAt:         e.now().UTC(),
	}

	p.Days[day-1] = result
	// New day data makes an earlier final ICR stale
	p.FinalICR = nil
	p.UpdatedAt = result.TestedAt

	return result, nil
}

// Finalize averages every recorded adjusted ICR. It recomputes from the
// stored days on each call, so repeated calls without new data agree.
func (e *ICREstimator) Finalize() (float64, []Advisory, error) {
	values := e.profile.AdjustedICRs()
	if len(values) == 0 {
		return 0, nil, ErrNoCompletedDays
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	final := Round1(sum / float64(len(values)))

	e.profile.FinalICR = &final
	e.profile.UpdatedAt = e.now().UTC()

	var advisories []Advisory
	if a := CheckICRRange(AdvisoryFinalICR, final); a != nil {
		advisories = append(advisories, *a)
	}
	return final, advisories, nil
}

// EstimateICR runs the whole estimation in one call: initial estimate, each
// day in order, then finalization when at least one day is given.
func EstimateICR(tdi, targetBG float64, days []DayInput) (*models.ICRProfile, []Advisory, error) {
	if len(days) > models.MaxTestDays {
		return nil, nil, invalid("days", "at most %d test days are supported, got %d", models.MaxTestDays, len(days))
	}

	est := NewICREstimator(nil)
	advisories, err := est.Initialize(tdi, targetBG)
	if err != nil {
		return nil, nil, err
	}

	for i, in := range days {
		if _, err := est.RecordDay(i+1, in); err != nil {
			return nil, nil, fmt.Errorf("day %d: %w", i+1, err)
		}
	}

	if len(days) > 0 {
		_, finalAdvisories, err := est.Finalize()
		if err != nil {
			return nil, nil, err
		}
		advisories = append(advisories, finalAdvisories...)
	}

	return est.Profile(), advisories, nil
}
