package common

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Ingredient is one recipe line as received from callers or read from storage.
// Either ProductName or RawName identifies it; Unit and UOM are accepted interchangeably.
type Ingredient struct {
	ProductName string  `json:"product_name,omitempty"`
	RawName     string  `json:"raw_name,omitempty"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit,omitempty"`
	UOM         string  `json:"uom,omitempty"`
}

// DisplayName returns the product name, falling back to the raw name.
func (i Ingredient) DisplayName() string {
	if strings.TrimSpace(i.ProductName) != "" {
		return i.ProductName
	}
	return i.RawName
}

// UnitOfMeasure returns Unit, falling back to UOM.
func (i Ingredient) UnitOfMeasure() string {
	if strings.TrimSpace(i.Unit) != "" {
		return i.Unit
	}
	return i.UOM
}

// Recipe is a stored recipe.
type Recipe struct {
	RecipeID     string       `json:"recipe_id"`
	Name         string       `json:"name" validate:"required"`
	Description  string       `json:"description"`
	Servings     int          `json:"servings"`
	Category     string       `json:"category"`
	PrepTime     int          `json:"prep_time"`
	CookTime     int          `json:"cook_time"`
	Instructions string       `json:"instructions"`
	Ingredients  []Ingredient `json:"ingredients"`
}

// FormatQuantity renders a quantity without trailing zeros.
func FormatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

// FormatIngredients renders ingredients as "- name (qty unit)" lines, skipping unnamed ones.
func FormatIngredients(ingredients []Ingredient) []string {
	lines := make([]string, 0, len(ingredients))
	for _, ing := range ingredients {
		name := strings.TrimSpace(ing.DisplayName())
		if name == "" {
			continue
		}
		amount := strings.TrimSpace(FormatQuantity(ing.Quantity) + " " + ing.UnitOfMeasure())
		lines = append(lines, fmt.Sprintf("- %s (%s)", name, amount))
	}
	return lines
}

// FlexFloat decodes from a JSON number or a numeric string. Anything else
// decodes as 0 so one sloppy field does not reject a whole AI payload.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	v, _ := parseFlexFloat(data)
	*f = FlexFloat(v)
	return nil
}

// Float returns f as a float64.
func (f FlexFloat) Float() float64 {
	return float64(f)
}

// OptionalFloat decodes like FlexFloat but remembers whether a number was
// there. null, text such as "high" and a missing field all leave Valid false.
type OptionalFloat struct {
	Value float64
	Valid bool
}

func (o *OptionalFloat) UnmarshalJSON(data []byte) error {
	o.Value, o.Valid = parseFlexFloat(data)
	return nil
}

func parseFlexFloat(data []byte) (float64, bool) {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// TextBlock decodes from a JSON string or an array of strings, joining array items with newlines.
type TextBlock string

func (t *TextBlock) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = TextBlock(s)
		return nil
	}
	var lines []string
	if err := json.Unmarshal(data, &lines); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*t = TextBlock(strings.Join(lines, "\n"))
	return nil
}
