package dosing

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/mrcode/directdose/internal/models"
)

func newTestEstimator() *ICREstimator {
	e := NewICREstimator(nil)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return fixed }
	return e
}

func TestInitialEstimate(t *testing.T) {
	tests := []struct {
		name    string
		tdi     float64
		wantICR float64
		wantISF float64
		wantErr bool
	}{
		{"TDI 40", 40, 12.5, 45.0, false},
		{"TDI 30", 30, 16.7, 60.0, false},
		{"TDI 55", 55, 9.1, 32.7, false},
		{"zero TDI", 0, 0, 0, true},
		{"negative TDI", -10, 0, 0, true},
		{"NaN TDI", math.NaN(), 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			icr, isf, err := InitialEstimate(tt.tdi)
			if (err != nil) != tt.wantErr {
				t.Fatalf("InitialEstimate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if icr != tt.wantICR || isf != tt.wantISF {
				t.Errorf("InitialEstimate(%v) = (%v, %v), want (%v, %v)", tt.tdi, icr, isf, tt.wantICR, tt.wantISF)
			}
		})
	}
}

func TestAdjustICR(t *testing.T) {
	tests := []struct {
		name string
		icr  float64
		post float64
		want float64
	}{
		{"above target", 12.5, 180, 16.1},
		{"at target", 12.5, 140, 12.5},
		{"below target", 16.1, 120, 18.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Round1(AdjustICR(tt.icr, tt.post, 140)); got != tt.want {
				t.Errorf("AdjustICR(%v, %v, 140) = %v, want %v", tt.icr, tt.post, got, tt.want)
			}
		})
	}
}

func TestCheckICRRange(t *testing.T) {
	tests := []struct {
		value float64
		want  bool
	}{
		{7.9, true},
		{8, false},
		{12.5, false},
		{20, false},
		{20.1, true},
	}

	for _, tt := range tests {
		a := CheckICRRange(AdvisoryFinalICR, tt.value)
		if (a != nil) != tt.want {
			t.Errorf("CheckICRRange(%v) advisory = %v, want %v", tt.value, a != nil, tt.want)
		}
		if a != nil && (a.Kind != AdvisoryFinalICR || a.Value != tt.value) {
			t.Errorf("CheckICRRange(%v) = %+v", tt.value, a)
		}
	}
}

func TestICREstimator_Workflow(t *testing.T) {
	e := newTestEstimator()

	if e.State() != StateUninitialized {
		t.Fatalf("State() = %v, want uninitialized", e.State())
	}

	advisories, err := e.Initialize(40, 0)
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if len(advisories) != 0 {
		t.Errorf("Initialize() advisories = %v, want none", advisories)
	}
	p := e.Profile()
	if p.InitialICR != 12.5 || p.ISF != 45.0 {
		t.Errorf("initial = (%v, %v), want (12.5, 45)", p.InitialICR, p.ISF)
	}
	if p.TargetBG != models.DefaultTargetBG {
		t.Errorf("TargetBG = %v, want default %v", p.TargetBG, models.DefaultTargetBG)
	}
	if e.State() != StateInitialEstimate {
		t.Errorf("State() = %v, want initial_estimate", e.State())
	}

	day1, err := e.RecordDay(1, DayInput{PremealBG: 110, CarbsGrams: 50, PostmealBG: 180})
	if err != nil {
		t.Fatalf("RecordDay(1) error = %v", err)
	}
	if day1.InsulinDoseUnits != 4.0 {
		t.Errorf("day 1 dose = %v, want 4.0", day1.InsulinDoseUnits)
	}
	if day1.AdjustedICR != 16.1 {
		t.Errorf("day 1 adjusted ICR = %v, want 16.1", day1.AdjustedICR)
	}
	if e.State() != StateDayTested {
		t.Errorf("State() = %v, want day_tested", e.State())
	}

	final, advisories, err := e.Finalize()
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if final != 16.1 {
		t.Errorf("Finalize() = %v, want 16.1", final)
	}
	if len(advisories) != 0 {
		t.Errorf("Finalize() advisories = %v, want none", advisories)
	}
	if e.State() != StateFinalized {
		t.Errorf("State() = %v, want finalized", e.State())
	}

	again, _, err := e.Finalize()
	if err != nil || again != final {
		t.Errorf("second Finalize() = %v, %v, want %v", again, err, final)
	}
}

func TestICREstimator_NextDayUsesRoundedBasis(t *testing.T) {
	e := newTestEstimator()
	if _, err := e.Initialize(40, 140); err != nil {
		t.Fatal(err)
	}
	if _, err := e.RecordDay(1, DayInput{PremealBG: 110, CarbsGrams: 50, PostmealBG: 180}); err != nil {
		t.Fatal(err)
	}

	day2, err := e.RecordDay(2, DayInput{PremealBG: 105, CarbsGrams: 48.3, PostmealBG: 140})
	if err != nil {
		t.Fatalf("RecordDay(2) error = %v", err)
	}
	if day2.BasisICR != 16.1 {
		t.Errorf("day 2 basis = %v, want 16.1", day2.BasisICR)
	}
	if day2.AdjustedICR != 16.1 {
		t.Errorf("day 2 adjusted ICR = %v, want 16.1", day2.AdjustedICR)
	}
	if day2.InsulinDoseUnits != 3.0 {
		t.Errorf("day 2 dose = %v, want 3.0", day2.InsulinDoseUnits)
	}
}

func TestICREstimator_RecordDayErrors(t *testing.T) {
	e := newTestEstimator()

	if _, err := e.RecordDay(1, DayInput{PremealBG: 100, CarbsGrams: 40, PostmealBG: 150}); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("RecordDay before Initialize error = %v, want ErrNotInitialized", err)
	}

	if _, err := e.Initialize(40, 140); err != nil {
		t.Fatal(err)
	}
	day1, err := e.RecordDay(1, DayInput{PremealBG: 110, CarbsGrams: 50, PostmealBG: 180})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		day  int
		in   DayInput
	}{
		{"day zero", 0, DayInput{PremealBG: 100, CarbsGrams: 40, PostmealBG: 150}},
		{"day six", 6, DayInput{PremealBG: 100, CarbsGrams: 40, PostmealBG: 150}},
		{"skipped day", 3, DayInput{PremealBG: 100, CarbsGrams: 40, PostmealBG: 150}},
		{"NaN postmeal", 2, DayInput{PremealBG: 100, CarbsGrams: 40, PostmealBG: math.NaN()}},
		{"zero premeal", 2, DayInput{PremealBG: 0, CarbsGrams: 40, PostmealBG: 150}},
		{"negative carbs", 2, DayInput{PremealBG: 100, CarbsGrams: -1, PostmealBG: 150}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.RecordDay(tt.day, tt.in)
			if !IsValidation(err) {
				t.Fatalf("RecordDay(%d) error = %v, want *ValidationError", tt.day, err)
			}
			p := e.Profile()
			if p.CompletedDays() != 1 {
				t.Errorf("CompletedDays() = %d, want 1 after failed step", p.CompletedDays())
			}
			if p.Days[0] != day1 || p.Days[0].AdjustedICR != 16.1 {
				t.Errorf("day 1 changed after failed step: %+v", p.Days[0])
			}
		})
	}
}

func TestICREstimator_RerecordDay(t *testing.T) {
	e := newTestEstimator()
	if _, err := e.Initialize(40, 140); err != nil {
		t.Fatal(err)
	}
	if _, err := e.RecordDay(1, DayInput{PremealBG: 110, CarbsGrams: 50, PostmealBG: 180}); err != nil {
		t.Fatal(err)
	}
	day2, err := e.RecordDay(2, DayInput{PremealBG: 105, CarbsGrams: 48.3, PostmealBG: 140})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := e.Finalize(); err != nil {
		t.Fatal(err)
	}

	day1, err := e.RecordDay(1, DayInput{PremealBG: 110, CarbsGrams: 50, PostmealBG: 140})
	if err != nil {
		t.Fatalf("re-recording day 1 error = %v", err)
	}
	if day1.AdjustedICR != 12.5 {
		t.Errorf("day 1 adjusted ICR = %v, want 12.5", day1.AdjustedICR)
	}

	p := e.Profile()
	if p.Days[1] != day2 {
		t.Error("re-recording day 1 should leave day 2 untouched")
	}
	if p.FinalICR != nil {
		t.Error("new day data should clear the final ICR")
	}
	if e.State() != StateDayTested {
		t.Errorf("State() = %v, want day_tested", e.State())
	}
}

func TestICREstimator_FinalizeWithoutDays(t *testing.T) {
	e := newTestEstimator()
	if _, err := e.Initialize(40, 140); err != nil {
		t.Fatal(err)
	}
	if _, _, err := e.Finalize(); !errors.Is(err, ErrNoCompletedDays) {
		t.Errorf("Finalize() error = %v, want ErrNoCompletedDays", err)
	}
	if e.Profile().FinalICR != nil {
		t.Error("failed Finalize should not set a final ICR")
	}
}

func TestICREstimator_InitializeKeepsHistory(t *testing.T) {
	entry := models.AdjustmentHistoryEntry{AdjustmentUnits: 1, Reason: "earlier"}
	e := NewICREstimator(&models.ICRProfile{History: []models.AdjustmentHistoryEntry{entry}})
	if _, err := e.Initialize(40, 140); err != nil {
		t.Fatal(err)
	}
	if _, err := e.RecordDay(1, DayInput{PremealBG: 110, CarbsGrams: 50, PostmealBG: 180}); err != nil {
		t.Fatal(err)
	}

	if _, err := e.Initialize(50, 140); err != nil {
		t.Fatal(err)
	}
	p := e.Profile()
	if p.CompletedDays() != 0 {
		t.Errorf("CompletedDays() = %d, want 0 after re-initialize", p.CompletedDays())
	}
	if p.InitialICR != 10.0 {
		t.Errorf("InitialICR = %v, want 10", p.InitialICR)
	}
	if len(p.History) != 1 {
		t.Errorf("History length = %d, want 1", len(p.History))
	}
}

func TestICREstimator_Advisories(t *testing.T) {
	e := newTestEstimator()
	advisories, err := e.Initialize(20, 140)
	if err != nil {
		t.Fatal(err)
	}
	if len(advisories) != 1 || advisories[0].Kind != AdvisoryInitialICR || advisories[0].Value != 25 {
		t.Fatalf("Initialize(20) advisories = %+v, want one initial_icr advisory for 25", advisories)
	}

	if _, err := e.RecordDay(1, DayInput{PremealBG: 100, CarbsGrams: 50, PostmealBG: 140}); err != nil {
		t.Fatal(err)
	}
	final, advisories, err := e.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	if final != 25 {
		t.Errorf("Finalize() = %v, want 25", final)
	}
	if len(advisories) != 1 || advisories[0].Kind != AdvisoryFinalICR {
		t.Errorf("Finalize() advisories = %+v, want one final_icr advisory", advisories)
	}
	if got := e.Advisories(); len(got) != 2 {
		t.Errorf("Advisories() = %+v, want initial and final", got)
	}
}

func TestEstimateICR(t *testing.T) {
	days := []DayInput{
		{PremealBG: 110, CarbsGrams: 50, PostmealBG: 180},
		{PremealBG: 105, CarbsGrams: 48.3, PostmealBG: 140},
	}

	p, advisories, err := EstimateICR(40, 140, days)
	if err != nil {
		t.Fatalf("EstimateICR() error = %v", err)
	}
	if p.FinalICR == nil || *p.FinalICR != 16.1 {
		t.Errorf("FinalICR = %v, want 16.1", p.FinalICR)
	}
	if len(advisories) != 0 {
		t.Errorf("advisories = %v, want none", advisories)
	}

	p, _, err = EstimateICR(40, 140, nil)
	if err != nil {
		t.Fatalf("EstimateICR() without days error = %v", err)
	}
	if p.FinalICR != nil {
		t.Error("no days should leave the final ICR unset")
	}

	if _, _, err := EstimateICR(40, 140, make([]DayInput, 6)); !IsValidation(err) {
		t.Errorf("six days error = %v, want *ValidationError", err)
	}
	if _, _, err := EstimateICR(40, 140, []DayInput{{PremealBG: 100, CarbsGrams: 40}}); !IsValidation(err) {
		t.Errorf("missing postmeal error = %v, want *ValidationError", err)
	}
}
