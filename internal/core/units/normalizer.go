// Package units parses free-form quantities and converts between the canonical
// units of measure used by the catalog and recipes.
package units

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"allergen-engine/internal/pkg/common"
)

// Canonical units.
const (
	Oz     = "oz"
	Lb     = "lb"
	Gallon = "gallon"
	Quart  = "quart"
	Liter  = "liter"
	Dozen  = "dozen"
	Bunch  = "bunch"
	Case   = "case"
	Each   = "each"
	Grams  = "grams"
	Cup    = "cup"
	Tsp    = "tsp"
	Tbsp   = "tbsp"
)

// Fallback values used when an ingredient quantity cannot be parsed.
const (
	FallbackQuantity   = 1.0
	FallbackQuantityOz = 8.0
)

// supplierAliases maps supplier unit codes to canonical units.
var supplierAliases = map[string]string{
	"cs": Case, "case": Case, "ca": Case, "bx": Case, "box": Case,

	"ea": Each, "each": Each, "pc": Each, "piece": Each, "unit": Each,

	"lb": Lb, "lbs": Lb, "pound": Lb, "pounds": Lb, "#": Lb,

	"oz": Oz, "ounce": Oz, "ounces": Oz,

	"gal": Gallon, "gallon": Gallon, "gallons": Gallon, "gl": Gallon,

	"qt": Quart, "quart": Quart, "quarts": Quart, "qts": Quart,

	"l": Liter, "liter": Liter, "litre": Liter, "lt": Liter, "ltr": Liter,

	// kg folds into grams; no scaling is applied
	"g": Grams, "gram": Grams, "grams": Grams, "gm": Grams,
	"kg": Grams, "kilo": Grams, "kilogram": Grams,

	// containers count as each
	"bt": Each, "btl": Each, "bottle": Each, "container": Each, "can": Each,
	"jar": Each, "bag": Each, "pk": Each, "pack": Each, "package": Each,
}

// recipeAliases extends the supplier table with spellings found in recipe text.
var recipeAliases = func() map[string]string {
	m := make(map[string]string, len(supplierAliases)+24)
	for k, v := range supplierAliases {
		m[k] = v
	}
	for k, v := range map[string]string{
		"lb.": Lb, "lbs.": Lb, "oz.": Oz,
		"dozen": Dozen, "doz": Dozen, "dz": Dozen,
		"bunch": Bunch, "bunches": Bunch,
		"cup": Cup, "cups": Cup, "c": Cup,
		"tsp": Tsp, "tsp.": Tsp, "teaspoon": Tsp, "teaspoons": Tsp,
		"tbsp": Tbsp, "tbsp.": Tbsp, "tbs": Tbsp, "tablespoon": Tbsp, "tablespoons": Tbsp,
		"pieces": Each, "cans": Each, "jars": Each, "bags": Each, "bottles": Each,
		"cases": Case, "boxes": Case, "liters": Liter, "litres": Liter,
	} {
		m[k] = v
	}
	return m
}()

var ozFactors = map[string]float64{
	Lb:     16,
	Gallon: 128,
	Quart:  32,
	Liter:  33.814,
	Dozen:  24, // about 2 oz per egg
}

// NormalizeUnit maps a recipe unit spelling to a canonical unit.
// Unknown or empty input returns fallback.
func NormalizeUnit(raw, fallback string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if u, ok := recipeAliases[key]; ok {
		return u
	}
	if u, ok := recipeAliases[strings.TrimSuffix(key, ".")]; ok {
		return u
	}
	return fallback
}

var canonicalUnits = map[string]bool{
	Oz: true, Lb: true, Gallon: true, Quart: true, Liter: true, Dozen: true,
	Bunch: true, Case: true, Each: true, Grams: true, Cup: true, Tsp: true, Tbsp: true,
}

// NormalizeSupplierUnit maps a supplier unit code to a canonical unit. A unit
// that is already canonical is kept; anything unrecognised becomes each.
func NormalizeSupplierUnit(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if canonicalUnits[key] {
		return key
	}
	if u, ok := supplierAliases[key]; ok {
		return u
	}
	return Each
}

// IsKnownUnit reports whether word is a recognised recipe unit spelling.
func IsKnownUnit(word string) bool {
	return NormalizeUnit(word, "") != ""
}

var unicodeFractions = map[rune]string{
	'½': "0.5",
	'¼': "0.25",
	'¾': "0.75",
	'⅓': "0.333",
	'⅔': "0.667",
	'⅛': "0.125",
	'⅜': "0.375",
	'⅝': "0.625",
	'⅞': "0.875",
}

var asciiFraction = regexp.MustCompile(`(\d+)/(\d+)`)

// ParseFractions rewrites unicode and a/b fractions as decimals in place.
// "1 ½ tsp" becomes "1 0.5 tsp"; a fraction glued to a digit ("1½") is separated by a space.
func ParseFractions(text string) string {
	var b strings.Builder
	var prev rune
	for _, r := range text {
		if dec, ok := unicodeFractions[r]; ok {
			if prev >= '0' && prev <= '9' {
				b.WriteByte(' ')
			}
			b.WriteString(dec)
		} else {
			b.WriteRune(r)
		}
		prev = r
	}

	return asciiFraction.ReplaceAllStringFunc(b.String(), func(m string) string {
		parts := asciiFraction.FindStringSubmatch(m)
		num, _ := strconv.ParseFloat(parts[1], 64)
		den, _ := strconv.ParseFloat(parts[2], 64)
		if den == 0 {
			return m
		}
		return strconv.FormatFloat(common.Round(num/den, 3), 'f', -1, 64)
	})
}

// Quantity is a parsed amount with its canonical unit.
type Quantity struct {
	Value float64 `json:"quantity"`
	Unit  string  `json:"unit"`
	Found bool    `json:"-"`
}

var gluedNumber = regexp.MustCompile(`^(\d*\.?\d+)([A-Za-z#].*)$`)

// ParseQuantity reads leading numeric tokens (summing mixed numbers) and the unit word after them.
// When no number is present the value is FallbackQuantity and Found is false.
func ParseQuantity(text string) Quantity {
	fields := strings.Fields(ParseFractions(text))

	q := Quantity{Value: 0, Unit: Each}
	i := 0
	for ; i < len(fields); i++ {
		tok := fields[i]
		if m := gluedNumber.FindStringSubmatch(tok); m != nil {
			v, _ := strconv.ParseFloat(m[1], 64)
			q.Value += v
			q.Found = true
			q.Unit = NormalizeUnit(m[2], Each)
			return q
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			break
		}
		q.Value += v
		q.Found = true
	}

	if !q.Found {
		q.Value = FallbackQuantity
	}
	if i < len(fields) {
		q.Unit = NormalizeUnit(fields[i], Each)
	}
	return q
}

// ConvertToOz converts quantity in unit to ounces. Units without a factor convert 1:1.
func ConvertToOz(quantity float64, unit string) float64 {
	if f, ok := ozFactors[strings.ToLower(strings.TrimSpace(unit))]; ok {
		return quantity * f
	}
	return quantity
}

// OzToUnit converts an ounce amount into target, returning the value and the unit actually used.
// Case has no known pack size and is reported in pounds; unknown targets stay in ounces.
func OzToUnit(oz float64, target string) (float64, string) {
	switch t := strings.ToLower(strings.TrimSpace(target)); t {
	case Lb, Gallon, Quart, Liter:
		return common.Round(oz/ozFactors[t], 3), t
	case Dozen, "doz":
		return common.Round(oz/ozFactors[Dozen], 2), Dozen
	case Bunch, Each:
		return common.Round(oz, 2), t
	case Case:
		return common.Round(oz/ozFactors[Lb], 3), Lb
	default:
		return common.Round(oz, 2), Oz
	}
}
