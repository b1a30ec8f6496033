package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrcode/directdose/internal/dosing"
	"github.com/mrcode/directdose/internal/models"
	"github.com/mrcode/directdose/internal/store"
)

// ICRStartRequest starts (or restarts) an ICR estimation
type ICRStartRequest struct {
	TotalDailyInsulin dosing.Number `json:"totalDailyInsulin"`
	TargetBG          dosing.Number `json:"targetBG"`
	Unit              string        `json:"unit"`
}

// ICRDayRequest holds the readings of one test day
type ICRDayRequest struct {
	PremealBG  dosing.Number `json:"premealBG"`
	Carbs      dosing.Number `json:"carbs"`
	PostmealBG dosing.Number `json:"postmealBG"`
	Unit       string        `json:"unit"`
}

// ICREstimateRequest runs a whole estimation without persisting it
type ICREstimateRequest struct {
	TotalDailyInsulin dosing.Number   `json:"totalDailyInsulin"`
	TargetBG          dosing.Number   `json:"targetBG"`
	Unit              string          `json:"unit"`
	Days              []ICRDayRequest `json:"days"`
}

// ICRResult is the estimation state returned by every ICR operation
type ICRResult struct {
	Profile    *models.ICRProfile `json:"profile"`
	State      string             `json:"state"`
	Day        *models.DayResult  `json:"day,omitempty"`
	Advisories []dosing.Advisory  `json:"advisories,omitempty"`
}

func newICRResult(est *dosing.ICREstimator, advisories []dosing.Advisory) *ICRResult {
	return &ICRResult{
		Profile:    est.Profile(),
		State:      est.State().String(),
		Advisories: advisories,
	}
}

func (s *Service) parseTarget(n dosing.Number, unit string) (float64, error) {
	if !n.IsSet() {
		return s.settings.TargetBG, nil
	}
	return s.parseGlucose("targetBG", n, unit)
}

func (s *Service) parseDay(req ICRDayRequest) (dosing.DayInput, error) {
	premeal, err := s.parseGlucose("premealBG", req.PremealBG, req.Unit)
	if err != nil {
		return dosing.DayInput{}, err
	}
	carbs, err := req.Carbs.NonNegative("carbs")
	if err != nil {
		return dosing.DayInput{}, err
	}
	postmeal, err := s.parseGlucose("postmealBG", req.PostmealBG, req.Unit)
	if err != nil {
		return dosing.DayInput{}, err
	}
	return dosing.DayInput{PremealBG: premeal, CarbsGrams: carbs, PostmealBG: postmeal}, nil
}

func (s *Service) loadICR(ctx context.Context, userID string) (*models.ICRProfile, error) {
	p, err := s.store.GetICRProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get ICR profile: %w", err)
	}
	return p, nil
}

func (s *Service) saveICR(ctx context.Context, est *dosing.ICREstimator) error {
	if err := s.store.UpsertICRProfile(ctx, est.Profile()); err != nil {
		return fmt.Errorf("save ICR profile: %w", err)
	}
	return nil
}

// GetICR returns the user's estimation. store.ErrNotFound means none was started.
func (s *Service) GetICR(ctx context.Context, userID string) (*ICRResult, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	p, err := s.loadICR(ctx, userID)
	if err != nil {
		return nil, err
	}
	est := dosing.NewICREstimator(p)
	return newICRResult(est, est.Advisories()), nil
}

// StartICR computes the initial ICR and ISF. An earlier estimation of the
// user is reset; its adjustment history is kept.
func (s *Service) StartICR(ctx context.Context, userID string, req ICRStartRequest) (*ICRResult, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	tdi, err := req.TotalDailyInsulin.Positive("totalDailyInsulin")
	if err != nil {
		return nil, err
	}
	target, err := s.parseTarget(req.TargetBG, req.Unit)
	if err != nil {
		return nil, err
	}

	unlock := s.lockUser(userID)
	defer unlock()

	existing, err := s.loadICR(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	est := dosing.NewICREstimator(existing)
	advisories, err := est.Initialize(tdi, target)
	if err != nil {
		return nil, err
	}
	est.Profile().UserID = userID

	if err := s.saveICR(ctx, est); err != nil {
		return nil, err
	}
	s.countCalculation("icr_initial")
	s.notify(userID, advisories)
	return newICRResult(est, advisories), nil
}

// RecordICRDay records test day (1-based) and stores the adjusted ICR
func (s *Service) RecordICRDay(ctx context.Context, userID string, day int, req ICRDayRequest) (*ICRResult, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	in, err := s.parseDay(req)
	if err != nil {
		return nil, err
	}

	unlock := s.lockUser(userID)
	defer unlock()

	p, err := s.loadICR(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, dosing.ErrNotInitialized
	}
	if err != nil {
		return nil, err
	}

	est := dosing.NewICREstimator(p)
	result, err := est.RecordDay(day, in)
	if err != nil {
		return nil, err
	}
	if err := s.saveICR(ctx, est); err != nil {
		return nil, err
	}
	s.countCalculation("icr_day")

	res := newICRResult(est, nil)
	res.Day = result
	return res, nil
}

// FinalizeICR averages the recorded days and writes the final ICR into the
// user's profile. The profile is written first; if that fails the estimation
// stays unfinalized.
func (s *Service) FinalizeICR(ctx context.Context, userID string) (*ICRResult, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	unlock := s.lockUser(userID)
	defer unlock()

	p, err := s.loadICR(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, dosing.ErrNotInitialized
	}
	if err != nil {
		return nil, err
	}

	est := dosing.NewICREstimator(p)
	final, advisories, err := est.Finalize()
	if err != nil {
		return nil, err
	}

	profile, err := s.loadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile.InsulinCarbRatio = final
	profile.UpdatedAt = s.now().UTC()
	if err := s.store.UpsertProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("update profile ICR: %w", err)
	}

	if err := s.saveICR(ctx, est); err != nil {
		return nil, err
	}

	s.countCalculation("icr_final")
	s.notify(userID, advisories)
	return newICRResult(est, advisories), nil
}

// EstimateICR runs the initial estimate, every given day and the final
// average in one call. Nothing is stored.
func (s *Service) EstimateICR(_ context.Context, userID string, req ICREstimateRequest) (*ICRResult, error) {
	tdi, err := req.TotalDailyInsulin.Positive("totalDailyInsulin")
	if err != nil {
		return nil, err
	}
	target, err := s.parseTarget(req.TargetBG, req.Unit)
	if err != nil {
		return nil, err
	}

	days := make([]dosing.DayInput, 0, len(req.Days))
	for i, d := range req.Days {
		if d.Unit == "" {
			d.Unit = req.Unit
		}
		in, err := s.parseDay(d)
		if err != nil {
			return nil, fmt.Errorf("day %d: %w", i+1, err)
		}
		days = append(days, in)
	}

	profile, advisories, err := dosing.EstimateICR(tdi, target, days)
	if err != nil {
		return nil, err
	}
	s.countCalculation("icr_estimate")
	s.notify(userID, advisories)
	return newICRResult(dosing.NewICREstimator(profile), advisories), nil
}
