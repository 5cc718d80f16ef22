package units

import (
	"math"
	"strings"
	"unicode"

	"allergen-engine/internal/pkg/common"
)

// NormalizedIngredient is an ingredient with a parsed quantity and its ounce equivalent.
type NormalizedIngredient struct {
	RawName        string  `json:"raw_name"`
	IngredientName string  `json:"ingredient_name"`
	Quantity       float64 `json:"quantity"`
	Unit           string  `json:"uom"`
	QuantityOz     float64 `json:"quantity_oz"`
	Estimate       bool    `json:"estimate"`
}

// NormalizeIngredient parses ing into canonical form.
// A missing quantity is read from the leading text of the name; if none can be
// found, or the quantity is not a finite non-negative number, the fallback
// (1 each, 8 oz, estimate) is returned.
func NormalizeIngredient(ing common.Ingredient) NormalizedIngredient {
	raw := strings.TrimSpace(ing.RawName)
	if raw == "" {
		raw = strings.TrimSpace(ing.ProductName)
	}

	qty := ing.Quantity
	unitText := ing.UnitOfMeasure()
	if math.IsNaN(qty) || math.IsInf(qty, 0) || qty < 0 {
		return fallbackIngredient(raw)
	}
	if qty == 0 {
		parsed := ParseQuantity(raw)
		if !parsed.Found || parsed.Value <= 0 {
			return fallbackIngredient(raw)
		}
		qty = parsed.Value
		if strings.TrimSpace(unitText) == "" {
			unitText = parsed.Unit
		}
	}

	unit := NormalizeUnit(unitText, Each)
	name := StripQuantityPrefix(raw)
	if name == "" {
		name = raw
	}

	return NormalizedIngredient{
		RawName:        raw,
		IngredientName: name,
		Quantity:       qty,
		Unit:           unit,
		QuantityOz:     common.Round(ConvertToOz(qty, unit), 3),
	}
}

// NormalizeIngredients normalizes each ingredient in order.
func NormalizeIngredients(ingredients []common.Ingredient) []NormalizedIngredient {
	out := make([]NormalizedIngredient, 0, len(ingredients))
	for _, ing := range ingredients {
		out = append(out, NormalizeIngredient(ing))
	}
	return out
}

func fallbackIngredient(raw string) NormalizedIngredient {
	if raw == "" {
		raw = "Unknown"
	}
	return NormalizedIngredient{
		RawName:        raw,
		IngredientName: raw,
		Quantity:       FallbackQuantity,
		Unit:           Each,
		QuantityOz:     FallbackQuantityOz,
		Estimate:       true,
	}
}

func isQuantityRune(r rune) bool {
	if unicode.IsDigit(r) || unicode.IsSpace(r) {
		return true
	}
	if _, ok := unicodeFractions[r]; ok {
		return true
	}
	return r == '.' || r == '/' || r == '-' || r == '–'
}

// StripQuantityPrefix removes a leading amount and unit word from an ingredient line:
// "2 cups flour" becomes "flour", "1 lb. ground beef" becomes "ground beef".
func StripQuantityPrefix(text string) string {
	rest := strings.TrimLeftFunc(text, isQuantityRune)
	if len(rest) == len(text) {
		return strings.TrimSpace(text)
	}
	// ranges such as "1 to 2 cups"
	if strings.HasPrefix(strings.ToLower(rest), "to ") {
		rest = strings.TrimLeftFunc(rest[3:], isQuantityRune)
	}
	fields := strings.Fields(rest)
	if len(fields) > 0 && IsKnownUnit(fields[0]) {
		fields = fields[1:]
		if len(fields) > 0 && strings.EqualFold(fields[0], "of") {
			fields = fields[1:]
		}
	}
	return strings.Join(fields, " ")
}
