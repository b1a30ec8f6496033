package models

import "time"

// DefaultInsulinCarbRatio is used for new profiles until the user sets a ratio
const DefaultInsulinCarbRatio = 15

// DoseCalculation is a prandial bolus recommendation
type DoseCalculation struct {
	TotalCarbsGrams  float64 `json:"totalCarbs"`
	InsulinCarbRatio float64 `json:"insulinCarbRatio"`
	BolusUnits       float64 `json:"insulinDose"`
}

// MealPeriod is the time-of-day label attached to a saved meal
type MealPeriod string

const (
	Breakfast MealPeriod = "breakfast"
	Lunch     MealPeriod = "lunch"
	Dinner    MealPeriod = "dinner"
	Snack     MealPeriod = "snack"
)

// GetMealPeriod returns the meal period for a given time
func GetMealPeriod(t time.Time) MealPeriod {
	hour := t.Hour()
	switch {
	case hour >= 5 && hour < 11:
		return Breakfast
	case hour >= 11 && hour < 16:
		return Lunch
	case hour >= 16 && hour < 22:
		return Dinner
	default:
		return Snack
	}
}

// Meal is a saved calculator result
type Meal struct {
	ID               string          `json:"id"`
	UserID           string          `json:"userId"`
	Description      string          `json:"description"`
	MealPeriod       MealPeriod      `json:"mealPeriod"`
	Carbs            float64         `json:"carbs"`
	Calories         float64         `json:"calories"`
	Insulin          float64         `json:"insulin"`
	InsulinCarbRatio float64         `json:"insulinCarbRatio"`
	Items            []NutritionItem `json:"items,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// Profile holds the per-user dosing settings and demographics
type Profile struct {
	UserID           string    `json:"userId"`
	Username         string    `json:"username,omitempty"`
	Email            string    `json:"email,omitempty"`
	InsulinCarbRatio float64   `json:"insulinCarbRatio"`
	BasalInsulin     *float64  `json:"basalInsulin,omitempty"`
	BasalFromTest    bool      `json:"basalFromTest,omitempty"` // BasalInsulin taken from the latest basal test
	Ethnicity        string    `json:"ethnicity,omitempty"`
	AgeRange         string    `json:"ageRange,omitempty"`
	Region           string    `json:"region,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// NewProfile creates a profile with default values
func NewProfile(userID string) *Profile {
	now := time.Now().UTC()
	return &Profile{
		UserID:           userID,
		InsulinCarbRatio: DefaultInsulinCarbRatio,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
