package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mrcode/directdose/internal/dosing"
	"github.com/mrcode/directdose/internal/models"
	"github.com/mrcode/directdose/internal/store"
)

// BasalEstimateRequest asks for a starting basal dose. TotalDailyInsulin
// wins over Weight; BasalFraction defaults to the configured fraction.
type BasalEstimateRequest struct {
	TotalDailyInsulin dosing.Number `json:"totalDailyInsulin"`
	Weight            dosing.Number `json:"weight"`
	WeightUnit        string        `json:"weightUnit"`
	BasalFraction     dosing.Number `json:"basalFraction"`
}

// BasalEstimateResult is the basal estimate and where its TDI came from
type BasalEstimateResult struct {
	dosing.BasalEstimate
	TDIFromWeight bool `json:"tdiFromWeight"`
}

// BasalTestRequest submits a fasting basal test
type BasalTestRequest struct {
	TestDate          string            `json:"testDate"`
	TestType          models.TestType   `json:"testType"`
	TotalDailyInsulin dosing.Number     `json:"totalDailyInsulin"`
	BasalFraction     dosing.Number     `json:"basalFraction"`
	CurrentBasalDose  dosing.Number     `json:"currentBasalDose"`
	BedtimeBG         dosing.Number     `json:"bedtimeBG"`
	MorningBG         dosing.Number     `json:"morningBG"`
	Unit              string            `json:"unit"`
	Symptoms          *models.Symptoms  `json:"symptoms"`
	Urine             *models.UrineTest `json:"urine"`
	Notes             string            `json:"notes"`
}

// BasalTestResult is the recommendation of a basal test
type BasalTestResult struct {
	Adjustment      dosing.BasalAdjustment  `json:"adjustment"`
	Estimate        *dosing.BasalEstimate   `json:"estimate,omitempty"`
	SymptomAnalysis *models.SymptomAnalysis `json:"symptomAnalysis,omitempty"`
	Reason          string                  `json:"reason"`
	Profile         *models.BasalProfile    `json:"profile,omitempty"`
}

// SymptomRequest submits the symptom checklist for a test date
type SymptomRequest struct {
	TestDate string           `json:"testDate"`
	TestType models.TestType  `json:"testType"`
	Symptoms models.Symptoms  `json:"symptoms"`
	Urine    models.UrineTest `json:"urine"`
	Notes    string           `json:"notes"`
}

// SymptomResult is the outcome of the symptom heuristic
type SymptomResult struct {
	Analysis models.SymptomAnalysis `json:"analysis"`
	Profile  *models.BasalProfile   `json:"profile,omitempty"`
}

func (s *Service) basalFraction(n dosing.Number) (float64, error) {
	if !n.IsSet() {
		return s.settings.BasalFraction, nil
	}
	return n.Positive("basalFraction")
}

// EstimateBasal estimates the starting basal dose from TDI, or from body
// weight when no TDI is given
func (s *Service) EstimateBasal(_ context.Context, req BasalEstimateRequest) (*BasalEstimateResult, error) {
	fraction, err := s.basalFraction(req.BasalFraction)
	if err != nil {
		return nil, err
	}

	var tdi float64
	fromWeight := false
	switch {
	case req.TotalDailyInsulin.IsSet():
		tdi, err = req.TotalDailyInsulin.Positive("totalDailyInsulin")
	case req.Weight.IsSet():
		var weight float64
		weight, err = req.Weight.Positive("weight")
		if err == nil {
			tdi, err = dosing.EstimateTDIFromWeight(weight, req.WeightUnit)
		}
		fromWeight = true
	default:
		err = dosing.NewValidationError("totalDailyInsulin", "enter total daily insulin or body weight")
	}
	if err != nil {
		return nil, err
	}

	estimate, err := dosing.EstimateBasal(tdi, fraction)
	if err != nil {
		return nil, err
	}
	s.countCalculation("basal_estimate")
	return &BasalEstimateResult{BasalEstimate: estimate, TDIFromWeight: fromWeight}, nil
}

func (s *Service) testDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.now().Format(models.TestDateLayout), nil
	}
	if _, err := time.Parse(models.TestDateLayout, raw); err != nil {
		return "", dosing.NewValidationError("testDate", fmt.Sprintf("%q is not a YYYY-MM-DD date", raw))
	}
	return raw, nil
}

func testType(t models.TestType) (models.TestType, error) {
	if t == "" {
		return models.TestOvernight, nil
	}
	if !t.Valid() {
		return "", dosing.NewValidationError("testType", fmt.Sprintf("unknown test type %q, want overnight or daytime", t))
	}
	return t, nil
}

// loadBasal returns the stored profile for the test date or a new one
func (s *Service) loadBasal(ctx context.Context, userID, date string) (*models.BasalProfile, error) {
	p, err := s.store.GetBasalProfile(ctx, userID, date)
	if errors.Is(err, store.ErrNotFound) {
		now := s.now().UTC()
		return &models.BasalProfile{UserID: userID, TestDate: date, CreatedAt: now}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get basal profile: %w", err)
	}
	return p, nil
}

// AdjustBasal evaluates a fasting basal test. For a known user the test is
// stored by date and a history entry is appended when a change is
// recommended.
func (s *Service) AdjustBasal(ctx context.Context, userID string, req BasalTestRequest) (*BasalTestResult, error) {
	date, err := s.testDate(req.TestDate)
	if err != nil {
		return nil, err
	}
	tt, err := testType(req.TestType)
	if err != nil {
		return nil, err
	}
	bedtime, err := s.parseGlucose("bedtimeBG", req.BedtimeBG, req.Unit)
	if err != nil {
		return nil, err
	}
	morning, err := s.parseGlucose("morningBG", req.MorningBG, req.Unit)
	if err != nil {
		return nil, err
	}
	dose, err := req.CurrentBasalDose.Float("currentBasalDose")
	if err != nil {
		return nil, err
	}

	adj, err := dosing.AdjustBasalDose(bedtime, morning, dose)
	if err != nil {
		return nil, err
	}
	result := &BasalTestResult{Adjustment: adj}

	if req.TotalDailyInsulin.IsSet() {
		tdi, err := req.TotalDailyInsulin.Positive("totalDailyInsulin")
		if err != nil {
			return nil, err
		}
		fraction, err := s.basalFraction(req.BasalFraction)
		if err != nil {
			return nil, err
		}
		estimate, err := dosing.EstimateBasal(tdi, fraction)
		if err != nil {
			return nil, err
		}
		result.Estimate = &estimate
	}

	if req.Urine != nil {
		if err := dosing.ValidateUrine(*req.Urine); err != nil {
			return nil, err
		}
	}
	if req.Symptoms != nil {
		var urine models.UrineTest
		if req.Urine != nil {
			urine = *req.Urine
		}
		analysis := dosing.AnalyzeSymptoms(*req.Symptoms, urine)
		result.SymptomAnalysis = &analysis
	}
	result.Reason = dosing.AdjustmentReason(tt, adj.BGChange, result.SymptomAnalysis)
	s.countCalculation("basal_adjust")

	if userID == "" {
		return result, nil
	}

	unlock := s.lockUser(userID)
	defer unlock()

	p, err := s.loadBasal(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	p.TestType = tt
	p.CurrentBasalDose = dose
	p.BedtimeBG = bedtime
	p.MorningBG = morning
	p.BGChange = adj.BGChange
	p.RecommendedAdjustmentUnits = adj.RecommendedAdjustmentUnits
	if result.Estimate != nil {
		p.TotalDailyInsulin = result.Estimate.TotalDailyInsulin
		p.BasalFraction = result.Estimate.Fraction
		p.EstimatedBasal = result.Estimate.Units
	}
	if result.SymptomAnalysis != nil {
		p.Symptoms = req.Symptoms
		p.Urine = req.Urine
		units := result.SymptomAnalysis.AdjustmentUnits
		p.SymptomAdjustmentUnits = &units
	}
	if req.Notes != "" {
		p.Notes = req.Notes
	}
	p.IsCompleted = true
	p.UpdatedAt = s.now().UTC()
	if adj.RecommendedAdjustmentUnits != 0 {
		p.AppendHistory(dosing.NewHistoryEntry(p.UpdatedAt, adj.RecommendedAdjustmentUnits, result.Reason))
	}

	if err := s.store.UpsertBasalProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("save basal profile: %w", err)
	}
	result.Profile = p
	return result, nil
}

// AnalyzeSymptoms runs the symptom heuristic. It never consults BG readings.
// For a known user the checklist is stored with the test date.
func (s *Service) AnalyzeSymptoms(ctx context.Context, userID string, req SymptomRequest) (*SymptomResult, error) {
	date, err := s.testDate(req.TestDate)
	if err != nil {
		return nil, err
	}
	tt, err := testType(req.TestType)
	if err != nil {
		return nil, err
	}

	if err := dosing.ValidateUrine(req.Urine); err != nil {
		return nil, err
	}

	analysis := dosing.AnalyzeSymptoms(req.Symptoms, req.Urine)
	s.countCalculation("basal_symptoms")
	result := &SymptomResult{Analysis: analysis}

	if userID == "" {
		return result, nil
	}

	unlock := s.lockUser(userID)
	defer unlock()

	p, err := s.loadBasal(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	if p.TestType == "" {
		p.TestType = tt
	}
	symptoms, urine := req.Symptoms, req.Urine
	p.Symptoms = &symptoms
	p.Urine = &urine
	units := analysis.AdjustmentUnits
	p.SymptomAdjustmentUnits = &units
	if req.Notes != "" {
		p.Notes = req.Notes
	}
	p.UpdatedAt = s.now().UTC()
	if units != 0 {
		p.AppendHistory(dosing.NewHistoryEntry(p.UpdatedAt, units, "symptom check: "+analysis.Reason))
	}

	if err := s.store.UpsertBasalProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("save basal profile: %w", err)
	}
	result.Profile = p
	return result, nil
}

// BasalHistory lists the user's basal tests, newest first
func (s *Service) BasalHistory(ctx context.Context, userID string, limit int) ([]models.BasalProfile, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return s.store.ListBasalProfiles(ctx, userID, limit)
}
