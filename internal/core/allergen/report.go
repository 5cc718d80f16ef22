package allergen

import (
	"time"

	"allergen-engine/internal/pkg/common"
)

// Disclaimer closes every printed allergen report.
const Disclaimer = "This allergen information is provided as a guide. Always verify with fresh ingredients and consult with guests about specific dietary needs. Cross-contamination may occur during preparation."

const reportDateLayout = "January 02, 2006 at 03:04 PM"

// ReportEntry is one allergen as shown to guests.
type ReportEntry struct {
	Name               string   `json:"name"`
	Confidence         int      `json:"confidence"`
	Icon               string   `json:"icon"`
	Description        string   `json:"description"`
	Sources            []Source `json:"sources"`
	MatchedIngredients []string `json:"matched_ingredients"`
}

// GuestReport is the printable allergen summary for a recipe.
type GuestReport struct {
	RecipeName       string        `json:"recipe_name"`
	ReportDate       string        `json:"report_date"`
	TotalAllergens   int           `json:"total_allergens"`
	FDATop9Present   int           `json:"fda_top_9_present"`
	FDAAllergens     []ReportEntry `json:"fda_allergens"`
	OtherAllergens   []ReportEntry `json:"other_allergens"`
	AllIngredients   []string      `json:"all_ingredients"`
	DetectionMethods []Source      `json:"detection_methods"`
	Disclaimer       string        `json:"disclaimer"`
}

// GenerateReport splits the reconciled allergens into FDA top 9 and others, in rank order.
func GenerateReport(recipeName string, r *Report, ingredients []common.Ingredient) *GuestReport {
	return generateReport(recipeName, r, ingredients, time.Now())
}

func generateReport(recipeName string, r *Report, ingredients []common.Ingredient, now time.Time) *GuestReport {
	out := &GuestReport{
		RecipeName:       recipeName,
		ReportDate:       now.Format(reportDateLayout),
		FDAAllergens:     []ReportEntry{},
		OtherAllergens:   []ReportEntry{},
		AllIngredients:   make([]string, 0, len(ingredients)),
		DetectionMethods: []Source{},
		Disclaimer:       Disclaimer,
	}
	for _, ing := range ingredients {
		out.AllIngredients = append(out.AllIngredients, ing.DisplayName())
	}
	if r == nil {
		return out
	}

	out.TotalAllergens = r.TotalDetected
	out.DetectionMethods = r.DetectionMethods

	for _, rec := range r.Ranked() {
		entry := ReportEntry{
			Name:               rec.DisplayName,
			Confidence:         rec.Confidence,
			Icon:               rec.Metadata.Icon,
			Description:        rec.Metadata.Description,
			Sources:            rec.Sources,
			MatchedIngredients: make([]string, 0, len(rec.MatchedIngredients)),
		}
		if entry.Name == "" {
			entry.Name = rec.Allergen
		}
		if entry.Icon == "" {
			entry.Icon = DefaultIcon
		}
		for _, ev := range rec.MatchedIngredients {
			entry.MatchedIngredients = append(entry.MatchedIngredients, ev.Ingredient)
		}

		if rec.Metadata.FDATop9 {
			out.FDAAllergens = append(out.FDAAllergens, entry)
		} else {
			out.OtherAllergens = append(out.OtherAllergens, entry)
		}
	}
	out.FDATop9Present = len(out.FDAAllergens)
	return out
}
