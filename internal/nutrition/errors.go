package nutrition

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mrcode/directdose/internal/models"
)

var (
	// ErrNoNutritionData is returned when no item of the query resolved
	ErrNoNutritionData = errors.New("no nutrition data found for any of the provided food items")
	// ErrNotConfigured is returned when lookup credentials are missing
	ErrNotConfigured = errors.New("nutrition lookup credentials not configured")
)

// PartialDataError is the notice attached to a summary when some items were
// skipped. The summary itself is still valid.
type PartialDataError struct {
	Skipped []models.SkippedItem
}

func (e *PartialDataError) Error() string {
	foods := make([]string, len(e.Skipped))
	for i, s := range e.Skipped {
		foods[i] = fmt.Sprintf("%q", s.Food)
	}
	return fmt.Sprintf("no nutrition data for %d item(s): %s", len(e.Skipped), strings.Join(foods, ", "))
}

// PartialNotice returns the partial-data notice for summary, or nil when
// every item resolved.
func PartialNotice(summary *models.NutritionSummary) *PartialDataError {
	if summary == nil || !summary.IsPartial() {
		return nil
	}
	return &PartialDataError{Skipped: summary.Skipped}
}
