package models

// Nutrient is a single quantity reported by the nutrition lookup service
type Nutrient struct {
	Label    string  `json:"label"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// NutritionFacts is the nutrition lookup response for one food item.
// Nutrient keys follow the Edamam codes (CHOCDF, FIBTG, PROCNT, FAT).
type NutritionFacts struct {
	Calories       float64             `json:"calories"`
	TotalWeight    float64             `json:"totalWeight"`
	TotalNutrients map[string]Nutrient `json:"totalNutrients"`
}

// Nutrient codes used by the aggregator
const (
	NutrientCarbs   = "CHOCDF"
	NutrientFiber   = "FIBTG"
	NutrientProtein = "PROCNT"
	NutrientFat     = "FAT"
)

// Quantity returns the quantity of a nutrient or 0 when missing
func (n *NutritionFacts) Quantity(code string) float64 {
	if n == nil || n.TotalNutrients == nil {
		return 0
	}
	return n.TotalNutrients[code].Quantity
}

// HasData reports whether the lookup returned usable data
func (n *NutritionFacts) HasData() bool {
	return n != nil && n.Calories > 0
}

// NutritionItem is the per-food breakdown of a nutrition query
type NutritionItem struct {
	Food         string  `json:"food"`
	CarbsGrams   float64 `json:"carbs"` // Net carbs
	Calories     float64 `json:"calories"`
	ProteinGrams float64 `json:"protein"`
	FatGrams     float64 `json:"fat"`
	FiberGrams   float64 `json:"fiber"`
	TotalCarbs   float64 `json:"totalCarbs"`
	FromCache    bool    `json:"fromCache,omitempty"`
}

// SkippedItem records a food item that could not be resolved
type SkippedItem struct {
	Food   string `json:"food"`
	Reason string `json:"reason"`
}

// NutritionSummary aggregates all successfully resolved items
type NutritionSummary struct {
	NetCarbs  float64         `json:"netCarbs"`
	Calories  float64         `json:"calories"`
	Protein   float64         `json:"protein"`
	Fat       float64         `json:"fat"`
	Fiber     float64         `json:"fiber"`
	FoodLabel string          `json:"foodLabel"`
	Breakdown []NutritionItem `json:"nutritionBreakdown"`
	Skipped   []SkippedItem   `json:"skipped,omitempty"`
}

// IsPartial returns true if at least one item was skipped
func (s *NutritionSummary) IsPartial() bool {
	return len(s.Skipped) > 0
}
