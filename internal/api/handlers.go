package api

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mrcode/directdose/internal/auth"
	"github.com/mrcode/directdose/internal/chart"
	"github.com/mrcode/directdose/internal/dosing"
	"github.com/mrcode/directdose/internal/models"
	"github.com/mrcode/directdose/internal/nutrition"
	"github.com/mrcode/directdose/internal/service"
)

// Handlers holds the HTTP handlers
type Handlers struct {
	svc *service.Service
}

// NewHandlers creates the handlers
func NewHandlers(svc *service.Service) *Handlers {
	return &Handlers{svc: svc}
}

func userID(r *http.Request) string {
	id, _ := auth.UserID(r.Context())
	return id
}

// queryLimit reads ?limit=, 0 when absent or malformed
func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return limit
}

// HealthCheck reports whether the data store is reachable
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.svc.Ping(ctx); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type nutritionRequest struct {
	FoodInput string `json:"foodInput"`
}

type nutritionResponse struct {
	*models.NutritionSummary
	Notice string `json:"notice,omitempty"`
}

// GetNutrition handles GET /nutrition?query=
func (h *Handlers) GetNutrition(w http.ResponseWriter, r *http.Request) {
	h.nutrition(w, r, r.URL.Query().Get("query"))
}

// PostNutrition handles POST /nutrition {"foodInput": ...}
func (h *Handlers) PostNutrition(w http.ResponseWriter, r *http.Request) {
	var req nutritionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.nutrition(w, r, req.FoodInput)
}

func (h *Handlers) nutrition(w http.ResponseWriter, r *http.Request, query string) {
	summary, err := h.svc.Nutrition(r.Context(), query)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	resp := nutritionResponse{NutritionSummary: summary}
	if notice := nutrition.PartialNotice(summary); notice != nil {
		resp.Notice = notice.Error()
	}
	respondJSON(w, http.StatusOK, resp)
}

// CalculateBolus handles POST /bolus
func (h *Handlers) CalculateBolus(w http.ResponseWriter, r *http.Request) {
	var req service.MealRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.CalculateMeal(r.Context(), userID(r), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func badgeFromQuery(r *http.Request) (units float64, direction int, err error) {
	units, err = dosing.ParseNumber("units", r.URL.Query().Get("units"))
	if err != nil {
		return 0, 0, err
	}
	if raw := r.URL.Query().Get("direction"); raw != "" {
		d, convErr := strconv.Atoi(raw)
		if convErr != nil || d < -1 || d > 1 {
			return 0, 0, dosing.NewValidationError("direction", "must be -1, 0 or 1")
		}
		direction = d
	}
	return units, direction, nil
}

// BolusBadge handles GET /bolus/badge.png?units=&direction=
func (h *Handlers) BolusBadge(w http.ResponseWriter, r *http.Request) {
	units, direction, err := badgeFromQuery(r)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	data, err := chart.EncodePNG(chart.DoseBadge(units, direction))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondImage(w, data, "image/png")
}

// BolusBadgeICO handles GET /bolus/badge.ico?units=&direction=
func (h *Handlers) BolusBadgeICO(w http.ResponseWriter, r *http.Request) {
	units, direction, err := badgeFromQuery(r)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	data, err := chart.EncodeICO(chart.DoseBadge(units, direction))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondImage(w, data, "image/x-icon")
}

// GetProfile handles GET /profile
func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProfile(r.Context(), userID(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// UpdateProfile handles PUT /profile
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req service.ProfileUpdate
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.UpdateProfile(r.Context(), userID(r), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

type saveMealRequest struct {
	Description      string                 `json:"description"`
	MealPeriod       models.MealPeriod      `json:"mealPeriod"`
	Carbs            dosing.Number          `json:"carbs"`
	Calories         dosing.Number          `json:"calories"`
	Insulin          dosing.Number          `json:"insulin"`
	InsulinCarbRatio dosing.Number          `json:"insulinCarbRatio"`
	Items            []models.NutritionItem `json:"items"`
}

func (req saveMealRequest) meal() (*models.Meal, error) {
	m := &models.Meal{
		Description: strings.TrimSpace(req.Description),
		MealPeriod:  req.MealPeriod,
		Items:       req.Items,
	}
	var err error
	if m.Carbs, err = req.Carbs.NonNegative("carbs"); err != nil {
		return nil, err
	}
	if m.Insulin, err = req.Insulin.NonNegative("insulin"); err != nil {
		return nil, err
	}
	if req.Calories.IsSet() {
		if m.Calories, err = req.Calories.NonNegative("calories"); err != nil {
			return nil, err
		}
	}
	if req.InsulinCarbRatio.IsSet() {
		if m.InsulinCarbRatio, err = req.InsulinCarbRatio.Positive("insulinCarbRatio"); err != nil {
			return nil, err
		}
	}
	switch m.MealPeriod {
	case "", models.Breakfast, models.Lunch, models.Dinner, models.Snack:
	default:
		return nil, dosing.NewValidationError("mealPeriod", "must be breakfast, lunch, dinner or snack")
	}
	return m, nil
}

// ListMeals handles GET /meals
func (h *Handlers) ListMeals(w http.ResponseWriter, r *http.Request) {
	meals, err := h.svc.ListMeals(r.Context(), userID(r), queryLimit(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if meals == nil {
		meals = []models.Meal{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"meals": meals})
}

// SaveMeal handles POST /meals
func (h *Handlers) SaveMeal(w http.ResponseWriter, r *http.Request) {
	var req saveMealRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	meal, err := req.meal()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	saved, err := h.svc.SaveMeal(r.Context(), userID(r), meal)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, saved)
}

// DeleteMeal handles DELETE /meals/{id}
func (h *Handlers) DeleteMeal(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteMeal(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EstimateICR handles POST /icr/estimate
func (h *Handlers) EstimateICR(w http.ResponseWriter, r *http.Request) {
	var req service.ICREstimateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.EstimateICR(r.Context(), userID(r), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// GetICR handles GET /icr
func (h *Handlers) GetICR(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.GetICR(r.Context(), userID(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// StartICR handles POST /icr/initial
func (h *Handlers) StartICR(w http.ResponseWriter, r *http.Request) {
	var req service.ICRStartRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.StartICR(r.Context(), userID(r), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// RecordICRDay handles POST /icr/days/{day}
func (h *Handlers) RecordICRDay(w http.ResponseWriter, r *http.Request) {
	day, err := strconv.Atoi(chi.URLParam(r, "day"))
	if err != nil {
		respondServiceError(w, dosing.NewValidationError("day", "must be a number between 1 and 5"))
		return
	}
	var req service.ICRDayRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.RecordICRDay(r.Context(), userID(r), day, req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// FinalizeICR handles POST /icr/finalize
func (h *Handlers) FinalizeICR(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.FinalizeICR(r.Context(), userID(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// ICRChart handles GET /icr/chart.png
func (h *Handlers) ICRChart(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.GetICR(r.Context(), userID(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	img, err := chart.RenderICRProgress(res.Profile)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	data, err := chart.EncodePNG(img)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondImage(w, data, "image/png")
}

// ICRChartText handles GET /icr/chart.txt, a braille sparkline for terminals
func (h *Handlers) ICRChartText(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.GetICR(r.Context(), userID(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	points := chart.ICRSeries(res.Profile)
	if len(points) == 0 {
		respondError(w, http.StatusNotFound, chart.ErrNoICRData.Error())
		return
	}
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, chart.Sparkline(values, 4)+"\n")
}

// EstimateBasal handles POST /basal/estimate
func (h *Handlers) EstimateBasal(w http.ResponseWriter, r *http.Request) {
	var req service.BasalEstimateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.EstimateBasal(r.Context(), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// AdjustBasal handles POST /basal/adjust
func (h *Handlers) AdjustBasal(w http.ResponseWriter, r *http.Request) {
	var req service.BasalTestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.AdjustBasal(r.Context(), userID(r), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// AnalyzeSymptoms handles POST /basal/symptoms
func (h *Handlers) AnalyzeSymptoms(w http.ResponseWriter, r *http.Request) {
	var req service.SymptomRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.AnalyzeSymptoms(r.Context(), userID(r), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// BasalHistory handles GET /basal/history
func (h *Handlers) BasalHistory(w http.ResponseWriter, r *http.Request) {
	tests, err := h.svc.BasalHistory(r.Context(), userID(r), queryLimit(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if tests == nil {
		tests = []models.BasalProfile{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"tests": tests})
}
