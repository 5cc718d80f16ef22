package mapping

import (
	"allergen-engine/internal/core/matcher"
	"allergen-engine/internal/core/units"
	"allergen-engine/internal/pkg/common"
	"allergen-engine/internal/pkg/metrics"

	"go.uber.org/zap"
)

// Tier is the confidence bucket of a mapping score.
type Tier string

const (
	TierGreen  Tier = "green"
	TierYellow Tier = "yellow"
	TierRed    Tier = "red"
)

// Tier boundaries. They are fixed so a badge means the same thing everywhere.
const (
	GreenThreshold  = 90
	YellowThreshold = 65

	DefaultThreshold = 65
)

// TierFor buckets a score.
func TierFor(score int) Tier {
	switch {
	case score >= GreenThreshold:
		return TierGreen
	case score >= YellowThreshold:
		return TierYellow
	default:
		return TierRed
	}
}

// MappedIngredient is a normalized ingredient annotated with its catalog match.
type MappedIngredient struct {
	units.NormalizedIngredient
	MappedName     *string  `json:"mapped_name"`
	Confidence     float64  `json:"mapping_confidence"`
	Tier           Tier     `json:"confidence_badge"`
	MatchLayer     string   `json:"match_layer,omitempty"`
	Product        *Product `json:"product_info"`
	NativeQuantity float64  `json:"native_quantity,omitempty"`
	NativeUnit     string   `json:"native_unit,omitempty"`
	PricePerOz     float64  `json:"price_per_oz"`
	TotalCost      float64  `json:"total_cost"`
}

// Mapper maps ingredients onto a product catalog.
type Mapper struct {
	matcher *matcher.Matcher
}

// NewMapper creates a Mapper using the ingredient flavor of the matcher.
func NewMapper(rareWordLimit int) *Mapper {
	return &Mapper{matcher: matcher.NewIngredientMatcher(rareWordLimit)}
}

// MapIngredients matches each ingredient against the catalog names. threshold is the
// fuzzy cutoff; the tier always comes from TierFor. Red ingredients carry no product.
func (m *Mapper) MapIngredients(ingredients []units.NormalizedIngredient, catalog []Product, threshold int) []MappedIngredient {
	names := Names(catalog)
	out := make([]MappedIngredient, 0, len(ingredients))

	for _, ing := range ingredients {
		query := ing.IngredientName
		if query == "" {
			query = ing.RawName
		}

		res := m.matcher.Match(query, names, threshold)
		mapped := MappedIngredient{
			NormalizedIngredient: ing,
			Confidence:           float64(res.Score),
			Tier:                 TierFor(res.Score),
		}

		if res.Matched() && mapped.Tier != TierRed {
			product := catalog[res.Index]
			name := product.Name
			mapped.MappedName = &name
			mapped.Product = &product
			mapped.MatchLayer = string(res.Layer)
			mapped.NativeQuantity, mapped.NativeUnit = units.OzToUnit(ing.QuantityOz, product.Unit)
		}

		metrics.MappingTier(string(mapped.Tier))
		out = append(out, mapped)
	}

	common.LogDebug("ingredients mapped",
		zap.Int("ingredients", len(ingredients)),
		zap.Int("catalog_size", len(catalog)),
		zap.Int("threshold", threshold),
	)
	return out
}

// MapResult is a normalized, mapped and priced ingredient list.
type MapResult struct {
	Ingredients []MappedIngredient `json:"ingredients"`
	TotalCost   float64            `json:"total_cost"`
	Stats       Stats              `json:"stats"`
}

// MapRecipe normalizes raw ingredient lines, maps them onto the catalog and prices them.
func (m *Mapper) MapRecipe(ingredients []common.Ingredient, catalog []Product, threshold int) MapResult {
	mapped := m.MapIngredients(units.NormalizeIngredients(ingredients), catalog, threshold)
	priced, total := CalculateCosts(mapped)
	return MapResult{Ingredients: priced, TotalCost: total, Stats: Summarize(priced)}
}
