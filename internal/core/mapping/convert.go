package mapping

import (
	"fmt"
	"strings"

	"allergen-engine/internal/core/matcher"
	"allergen-engine/internal/core/units"
	"allergen-engine/internal/pkg/common"
)

// DefaultAIThreshold is the fuzzy cutoff used when converting AI recipes.
const DefaultAIThreshold = 75

// NoMatch marks a mapping note whose ingredient found no product.
const NoMatch = "NO MATCH FOUND"

// AIIngredient is one ingredient of an AI-generated recipe, always in ounces.
type AIIngredient struct {
	IngredientName string           `json:"ingredient_name"`
	Oz             common.FlexFloat `json:"oz"`
}

// AIRecipe is the JSON shape the recipe prompt asks for.
type AIRecipe struct {
	RecipeName   string           `json:"recipe_name" validate:"required"`
	Description  string           `json:"description"`
	Servings     common.FlexFloat `json:"servings"`
	Category     string           `json:"category"`
	PrepTime     common.FlexFloat `json:"prep_time"`
	CookTime     common.FlexFloat `json:"cook_time"`
	Ingredients  []AIIngredient   `json:"ingredients" validate:"required"`
	Instructions common.TextBlock `json:"instructions" validate:"required"`
}

// MappingNote explains how one AI ingredient was resolved.
type MappingNote struct {
	AIName         string  `json:"ai_name"`
	MatchedProduct string  `json:"matched_product"`
	Score          int     `json:"score"`
	OriginalOz     float64 `json:"original_oz"`
	Converted      string  `json:"converted"`
}

// MappingSummary counts resolved notes.
type MappingSummary struct {
	Mapped    int     `json:"mapped"`
	Unmapped  int     `json:"unmapped"`
	MatchRate float64 `json:"match_rate"`
}

var aiMatcher = matcher.New(matcher.Config{})

// ConvertAIRecipe turns an AI recipe into a stored recipe whose ingredients are
// catalog products in their native units. Ingredients with no name or no positive
// ounce amount are skipped. Unmatched ingredients are left out of the recipe and
// reported in the notes.
func ConvertAIRecipe(ai AIRecipe, catalog []Product, threshold int) (common.Recipe, []MappingNote) {
	names := Names(catalog)
	ingredients := make([]common.Ingredient, 0, len(ai.Ingredients))
	notes := make([]MappingNote, 0, len(ai.Ingredients))

	for _, ing := range ai.Ingredients {
		name := strings.TrimSpace(ing.IngredientName)
		oz := ing.Oz.Float()
		if name == "" || oz <= 0 {
			continue
		}

		res := aiMatcher.Match(name, names, threshold)
		if !res.Matched() {
			notes = append(notes, MappingNote{AIName: name, MatchedProduct: NoMatch, OriginalOz: oz, Converted: "N/A"})
			continue
		}

		product := catalog[res.Index]
		unit := product.Unit
		if strings.TrimSpace(unit) == "" {
			unit = units.Oz
		}
		qty, finalUnit := units.OzToUnit(oz, unit)
		ingredients = append(ingredients, common.Ingredient{
			ProductName: product.Name,
			Quantity:    qty,
			Unit:        finalUnit,
		})
		notes = append(notes, MappingNote{
			AIName:         name,
			MatchedProduct: product.Name,
			Score:          res.Score,
			OriginalOz:     oz,
			Converted:      fmt.Sprintf("%s %s", common.FormatQuantity(qty), finalUnit),
		})
	}

	recipe := common.Recipe{
		Name:         orDefault(ai.RecipeName, "Untitled Recipe"),
		Description:  strings.TrimSpace(ai.Description),
		Servings:     int(ai.Servings),
		PrepTime:     int(ai.PrepTime),
		CookTime:     int(ai.CookTime),
		Category:     orDefault(ai.Category, "Main Course"),
		Instructions: strings.TrimSpace(string(ai.Instructions)),
		Ingredients:  ingredients,
	}
	if recipe.Servings <= 0 {
		recipe.Servings = 4
	}
	return recipe, notes
}

// SummarizeNotes counts notes with a positive score as mapped.
func SummarizeNotes(notes []MappingNote) MappingSummary {
	s := MappingSummary{}
	for _, n := range notes {
		if n.Score > 0 {
			s.Mapped++
		}
	}
	s.Unmapped = len(notes) - s.Mapped
	if len(notes) > 0 {
		s.MatchRate = common.Round(float64(s.Mapped)/float64(len(notes))*100, 2)
	}
	return s
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}
