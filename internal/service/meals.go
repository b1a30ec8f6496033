package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mrcode/directdose/internal/dosing"
	"github.com/mrcode/directdose/internal/models"
	"github.com/mrcode/directdose/internal/nutrition"
	"github.com/mrcode/directdose/internal/store"
)

// MealRequest is a bolus calculation request. NetCarbs takes precedence over
// FoodInput; ICR falls back to the user's profile.
type MealRequest struct {
	FoodInput   string            `json:"foodInput"`
	NetCarbs    dosing.Number     `json:"netCarbs"`
	ICR         dosing.Number     `json:"insulinCarbRatio"`
	Save        bool              `json:"save"`
	Description string            `json:"description"`
	MealPeriod  models.MealPeriod `json:"mealPeriod"`
}

// MealResult is the calculated bolus with the nutrition it was based on
type MealResult struct {
	models.DoseCalculation
	Nutrition *models.NutritionSummary `json:"nutrition,omitempty"`
	Notice    string                   `json:"notice,omitempty"`
	Meal      *models.Meal             `json:"meal,omitempty"`
}

// CalculateMeal computes the bolus for a meal and optionally saves it
func (s *Service) CalculateMeal(ctx context.Context, userID string, req MealRequest) (*MealResult, error) {
	result := &MealResult{}

	var netCarbs float64
	switch {
	case req.NetCarbs.IsSet():
		v, err := req.NetCarbs.NonNegative("netCarbs")
		if err != nil {
			return nil, err
		}
		netCarbs = v
	case strings.TrimSpace(req.FoodInput) != "":
		summary, err := s.Nutrition(ctx, req.FoodInput)
		if err != nil {
			return nil, err
		}
		netCarbs = summary.NetCarbs
		result.Nutrition = summary
		if notice := nutrition.PartialNotice(summary); notice != nil {
			result.Notice = notice.Error()
		}
	default:
		return nil, dosing.NewValidationError("foodInput", "enter foods or net carbs")
	}

	icr, err := s.mealICR(ctx, userID, req.ICR)
	if err != nil {
		return nil, err
	}

	dose, err := dosing.NewDoseCalculation(netCarbs, icr)
	if err != nil {
		return nil, err
	}
	result.DoseCalculation = *dose
	s.countCalculation("bolus")

	if req.Save && userID != "" {
		meal := &models.Meal{
			Description:      req.Description,
			MealPeriod:       req.MealPeriod,
			Carbs:            dose.TotalCarbsGrams,
			Insulin:          dose.BolusUnits,
			InsulinCarbRatio: icr,
		}
		if result.Nutrition != nil {
			meal.Calories = result.Nutrition.Calories
			meal.Items = result.Nutrition.Breakdown
			if meal.Description == "" {
				meal.Description = result.Nutrition.FoodLabel
			}
		}
		saved, err := s.SaveMeal(ctx, userID, meal)
		if err != nil {
			return nil, err
		}
		result.Meal = saved
	}

	return result, nil
}

func (s *Service) mealICR(ctx context.Context, userID string, n dosing.Number) (float64, error) {
	if n.IsSet() {
		return n.Positive("insulinCarbRatio")
	}
	if userID == "" {
		return 0, dosing.NewValidationError("insulinCarbRatio", "value is required")
	}
	profile, err := s.loadProfile(ctx, userID)
	if err != nil {
		return 0, err
	}
	return profile.InsulinCarbRatio, nil
}

// SaveMeal stores a meal for userID, filling in ID, period and timestamp
func (s *Service) SaveMeal(ctx context.Context, userID string, meal *models.Meal) (*models.Meal, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if meal.Carbs < 0 || meal.Insulin < 0 || meal.Calories < 0 {
		return nil, dosing.NewValidationError("meal", "carbs, calories and insulin must not be negative")
	}

	now := s.now().UTC()
	m := *meal
	m.ID = uuid.NewString()
	m.UserID = userID
	m.CreatedAt = now
	if m.MealPeriod == "" {
		m.MealPeriod = models.GetMealPeriod(s.now())
	}

	if err := s.store.SaveMeal(ctx, &m); err != nil {
		return nil, fmt.Errorf("save meal: %w", err)
	}
	return &m, nil
}

// ListMeals returns the user's meals, newest first
func (s *Service) ListMeals(ctx context.Context, userID string, limit int) ([]models.Meal, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return s.store.ListMeals(ctx, userID, limit)
}

// DeleteMeal removes one of the user's meals
func (s *Service) DeleteMeal(ctx context.Context, userID, id string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	return s.store.DeleteMeal(ctx, userID, id)
}

// ProfileUpdate changes the user profile. Unset fields keep their value.
type ProfileUpdate struct {
	Username         *string       `json:"username"`
	Email            *string       `json:"email"`
	InsulinCarbRatio dosing.Number `json:"insulinCarbRatio"`
	BasalInsulin     dosing.Number `json:"basalInsulin"`
	Ethnicity        *string       `json:"ethnicity"`
	AgeRange         *string       `json:"ageRange"`
	Region           *string       `json:"region"`
}

// loadProfile returns the stored profile or a default one for new users
func (s *Service) loadProfile(ctx context.Context, userID string) (*models.Profile, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	p, err := s.store.GetProfile(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return models.NewProfile(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// GetProfile returns the user's profile. Without a basal dose of its own the
// profile shows the estimated basal of the newest basal test.
func (s *Service) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	p, err := s.loadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p.BasalInsulin != nil {
		return p, nil
	}

	tests, err := s.store.ListBasalProfiles(ctx, userID, 1)
	if err != nil {
		return nil, fmt.Errorf("latest basal test: %w", err)
	}
	if len(tests) > 0 && tests[0].EstimatedBasal > 0 {
		basal := tests[0].EstimatedBasal
		p.BasalInsulin = &basal
		p.BasalFromTest = true
	}
	return p, nil
}

func demographic(field string, value *string, allowed []string) (string, error) {
	v := strings.TrimSpace(*value)
	if !models.ValidDemographic(v, allowed) {
		return "", dosing.NewValidationError(field, fmt.Sprintf("unknown value %q", v))
	}
	return v, nil
}

// UpdateProfile applies upd and persists the profile
func (s *Service) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*models.Profile, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	unlock := s.lockUser(userID)
	defer unlock()

	p, err := s.loadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if upd.InsulinCarbRatio.IsSet() {
		icr, err := upd.InsulinCarbRatio.Positive("insulinCarbRatio")
		if err != nil {
			return nil, err
		}
		p.InsulinCarbRatio = icr
	}
	if upd.BasalInsulin.IsSet() {
		basal, err := upd.BasalInsulin.NonNegative("basalInsulin")
		if err != nil {
			return nil, err
		}
		p.BasalInsulin = &basal
	}
	if upd.Username != nil {
		p.Username = strings.TrimSpace(*upd.Username)
	}
	if upd.Email != nil {
		p.Email = strings.TrimSpace(*upd.Email)
	}
	if upd.Ethnicity != nil {
		if p.Ethnicity, err = demographic("ethnicity", upd.Ethnicity, models.Ethnicities); err != nil {
			return nil, err
		}
	}
	if upd.AgeRange != nil {
		if p.AgeRange, err = demographic("ageRange", upd.AgeRange, models.AgeRanges); err != nil {
			return nil, err
		}
	}
	if upd.Region != nil {
		if p.Region, err = demographic("region", upd.Region, models.Regions); err != nil {
			return nil, err
		}
	}
	p.UpdatedAt = s.now().UTC()

	if err := s.store.UpsertProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return p, nil
}
