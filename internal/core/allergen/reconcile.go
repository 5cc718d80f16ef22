package allergen

import (
	"math"
	"sort"
	"strings"
	"time"
)

// CombinedRecord is an allergen merged across sources.
type CombinedRecord struct {
	Record
	Sources  []Source `json:"sources"`
	AIReason string   `json:"ai_reason,omitempty"`
}

func (r *CombinedRecord) addSource(s Source) {
	for _, existing := range r.Sources {
		if existing == s {
			return
		}
	}
	r.Sources = append(r.Sources, s)
}

// Report is the reconciled allergen picture for one recipe. Its JSON keys are
// read by report renderers and public pages.
type Report struct {
	Allergens        []string                   `json:"allergens"`
	AllergenDetails  map[string]*CombinedRecord `json:"allergen_details"`
	DetectionMethods []Source                   `json:"detection_methods"`
	Timestamp        time.Time                  `json:"timestamp"`
	TotalDetected    int                        `json:"total_detected"`
	FDATop9Count     int                        `json:"fda_top_9_count"`

	ref   *PatternDB
	order []string
}

// MergeConfidence blends two agreeing confidences: min(100, round((a+b)/1.5)).
// Agreement scores above either source alone before the cap.
func MergeConfidence(a, b int) int {
	return int(math.Min(100, math.Round(float64(a+b)/1.5)))
}

// Combine merges database, AI and manual detections. Unavailable outcomes contribute nothing.
func Combine(ref *PatternDB, db, ai Outcome, manual []string) *Report {
	r := &Report{
		AllergenDetails: make(map[string]*CombinedRecord),
		ref:             ref,
	}
	if db.Available() {
		r.addDatabase(db.Detection)
	}
	if ai.Available() {
		r.AddAI(ai.Detection)
	}
	// always runs finish, even with no manual tags
	r.AddManual(manual)
	return r
}

func (r *Report) insert(key string, rec *CombinedRecord) {
	r.AllergenDetails[key] = rec
	r.order = append(r.order, key)
}

func (r *Report) addDatabase(d *Detection) {
	for _, key := range d.DetectedAllergens {
		rec := d.Details[key]
		if rec == nil {
			continue
		}
		if existing, ok := r.AllergenDetails[key]; ok {
			existing.addSource(SourceDatabase)
			continue
		}
		r.insert(key, &CombinedRecord{Record: copyRecord(rec), Sources: []Source{SourceDatabase}})
	}
	r.finish()
}

// AddAI folds an AI detection into the report. An allergen already present has its
// confidence blended with MergeConfidence and gains the AI reason; a new one is added as AI-only.
func (r *Report) AddAI(d *Detection) {
	if d == nil {
		return
	}
	for _, key := range d.DetectedAllergens {
		rec := d.Details[key]
		if rec == nil {
			continue
		}
		if existing, ok := r.AllergenDetails[key]; ok {
			existing.Confidence = MergeConfidence(existing.Confidence, rec.Confidence)
			existing.addSource(SourceAI)
			if rec.Reason != "" {
				existing.AIReason = rec.Reason
			}
			continue
		}
		r.insert(key, &CombinedRecord{Record: copyRecord(rec), Sources: []Source{SourceAI}})
	}
	r.finish()
}

// AddManual marks allergens as tagged by a person. Confidence becomes exactly 100.
func (r *Report) AddManual(keys []string) {
	for _, raw := range keys {
		key := NormalizeKey(raw)
		if key == "" {
			continue
		}
		if existing, ok := r.AllergenDetails[key]; ok {
			existing.Confidence = 100
			existing.addSource(SourceManual)
			continue
		}
		r.insert(key, &CombinedRecord{
			Record: Record{
				Allergen:           key,
				DisplayName:        r.ref.DisplayName(key, strings.TrimSpace(raw)),
				Confidence:         100,
				Method:             MethodManual,
				MatchedIngredients: []Evidence{},
				Metadata:           r.ref.MetadataFor(key),
			},
			Sources: []Source{SourceManual},
		})
	}
	r.finish()
}

// finish ranks allergens (FDA top 9 first, then confidence, both descending;
// ties keep insertion order) and recomputes the aggregates.
func (r *Report) finish() {
	ranked := make([]string, len(r.order))
	copy(ranked, r.order)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := r.AllergenDetails[ranked[i]], r.AllergenDetails[ranked[j]]
		if a.Metadata.FDATop9 != b.Metadata.FDATop9 {
			return a.Metadata.FDATop9
		}
		return a.Confidence > b.Confidence
	})
	r.Allergens = ranked

	seen := make(map[Source]bool, 3)
	r.DetectionMethods = []Source{}
	for _, s := range []Source{SourceDatabase, SourceAI, SourceManual} {
		for _, key := range r.order {
			rec := r.AllergenDetails[key]
			if !seen[s] && containsSource(rec.Sources, s) {
				seen[s] = true
				r.DetectionMethods = append(r.DetectionMethods, s)
			}
		}
	}

	r.TotalDetected = len(r.AllergenDetails)
	r.FDATop9Count = 0
	for _, rec := range r.AllergenDetails {
		if rec.Metadata.FDATop9 {
			r.FDATop9Count++
		}
	}
	r.Timestamp = time.Now()
}

// Ranked returns the records in report order.
func (r *Report) Ranked() []*CombinedRecord {
	out := make([]*CombinedRecord, 0, len(r.Allergens))
	for _, key := range r.Allergens {
		out = append(out, r.AllergenDetails[key])
	}
	return out
}

func containsSource(sources []Source, s Source) bool {
	for _, x := range sources {
		if x == s {
			return true
		}
	}
	return false
}

func copyRecord(rec *Record) Record {
	c := *rec
	c.MatchedIngredients = append([]Evidence(nil), rec.MatchedIngredients...)
	if c.MatchedIngredients == nil {
		c.MatchedIngredients = []Evidence{}
	}
	return c
}
