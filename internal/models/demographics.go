package models

// Demographic answers are optional; "" means the user has not answered.
var (
	Ethnicities = []string{
		"white", "black", "hispanic", "asian", "native", "pacific", "mixed", "other", "prefer_not_to_say",
	}
	AgeRanges = []string{
		"under_18", "18_24", "25_34", "35_44", "45_54", "55_64", "65_plus", "prefer_not_to_say",
	}
	Regions = []string{
		"us_northeast", "us_southeast", "us_midwest", "us_southwest", "us_west",
		"canada", "mexico", "europe", "asia", "africa", "australia", "south_america",
		"other", "prefer_not_to_say",
	}
)

// ValidDemographic reports whether value is empty or one of allowed
func ValidDemographic(value string, allowed []string) bool {
	if value == "" {
		return true
	}
	for _, a := range allowed {
		if a == value {
			return true
		}
	}
	return false
}
