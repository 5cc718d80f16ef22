package allergen

import "time"

// Source is where an allergen claim came from.
type Source string

const (
	SourceDatabase Source = "database"
	SourceAI       Source = "ai"
	SourceManual   Source = "manual"
)

// Method tags how a single record was detected.
type Method string

const (
	MethodDatabaseExact Method = "database_exact"
	MethodDatabaseFuzzy Method = "database_fuzzy"
	MethodAI            Method = "ai"
	MethodManual        Method = "manual"
)

// Evidence names an ingredient that triggered a detection.
// Database evidence carries its match type and confidence; AI evidence is the name only.
type Evidence struct {
	Ingredient string `json:"ingredient"`
	MatchType  string `json:"match_type,omitempty"`
	Pattern    string `json:"pattern,omitempty"`
	Confidence *int   `json:"confidence,omitempty"`
}

// Record is one allergen as seen by a single source.
type Record struct {
	Allergen           string     `json:"allergen"`
	DisplayName        string     `json:"display_name"`
	Confidence         int        `json:"confidence"`
	Method             Method     `json:"detection_method"`
	Reason             string     `json:"reason,omitempty"`
	MatchedIngredients []Evidence `json:"matched_ingredients"`
	Metadata           Metadata   `json:"metadata"`
}

// Detection is the output of one detector. Each allergen appears at most once.
type Detection struct {
	DetectedAllergens []string           `json:"detected_allergens"`
	Details           map[string]*Record `json:"allergen_details"`
	Method            Source             `json:"detection_method"`
	Notes             string             `json:"notes,omitempty"`
	Timestamp         time.Time          `json:"timestamp"`
}

func newDetection(source Source) *Detection {
	return &Detection{
		DetectedAllergens: []string{},
		Details:           make(map[string]*Record),
		Method:            source,
		Timestamp:         time.Now(),
	}
}

func (d *Detection) add(r *Record) {
	if _, ok := d.Details[r.Allergen]; !ok {
		d.DetectedAllergens = append(d.DetectedAllergens, r.Allergen)
	}
	d.Details[r.Allergen] = r
}

// Outcome is either a detection or the reason none is available.
type Outcome struct {
	Detection *Detection
	Reason    string
}

// Ok wraps a successful detection.
func Ok(d *Detection) Outcome {
	if d == nil {
		return Unavailable("no detection")
	}
	return Outcome{Detection: d}
}

// Unavailable records why a source produced nothing.
func Unavailable(reason string) Outcome {
	return Outcome{Reason: reason}
}

// Available reports whether the outcome holds a detection.
func (o Outcome) Available() bool {
	return o.Detection != nil
}

func intPtr(v int) *int {
	return &v
}
