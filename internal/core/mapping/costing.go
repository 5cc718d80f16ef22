package mapping

import "allergen-engine/internal/pkg/common"

// CalculateCosts prices every mapped line and returns the lines with the recipe total.
// Unmapped lines cost 0.
func CalculateCosts(mapped []MappedIngredient) ([]MappedIngredient, float64) {
	out := make([]MappedIngredient, len(mapped))
	total := 0.0
	for i, ing := range mapped {
		if ing.Product != nil {
			perOz := ing.Product.CostPerOz()
			cost := perOz * ing.QuantityOz
			ing.PricePerOz = common.Round(perOz, 4)
			ing.TotalCost = common.Round(cost, 2)
			total += cost
		} else {
			ing.PricePerOz = 0
			ing.TotalCost = 0
		}
		out[i] = ing
	}
	return out, common.Round(total, 2)
}

// Stats summarizes how many ingredients landed in each tier.
type Stats struct {
	Total      int     `json:"total"`
	AutoMapped int     `json:"auto_mapped"`
	WarnMapped int     `json:"warn_mapped"`
	Unmapped   int     `json:"unmapped"`
	MatchRate  float64 `json:"match_rate"`
}

// Summarize counts tiers. MatchRate is the mapped percentage to one decimal.
func Summarize(mapped []MappedIngredient) Stats {
	s := Stats{Total: len(mapped)}
	for _, ing := range mapped {
		switch ing.Tier {
		case TierGreen:
			s.AutoMapped++
		case TierYellow:
			s.WarnMapped++
		default:
			s.Unmapped++
		}
	}
	if s.Total > 0 {
		s.MatchRate = common.Round(float64(s.AutoMapped+s.WarnMapped)/float64(s.Total)*100, 1)
	}
	return s
}
