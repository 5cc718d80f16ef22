package allergen

import (
	"strings"

	"allergen-engine/internal/core/matcher"
	"allergen-engine/internal/pkg/common"
	"allergen-engine/internal/pkg/metrics"

	"go.uber.org/zap"
)

// DefaultMinConfidence is the fuzzy cutoff for pattern matching.
const DefaultMinConfidence = 70

// DetectDatabase scans every ingredient against every allergen's patterns.
// A pattern contained in the lower-cased ingredient name is an exact hit (100);
// otherwise the best weighted-ratio pattern at or above minConfidence is a fuzzy hit.
// Each ingredient contributes at most one evidence entry per allergen. A record's
// confidence is its strongest evidence.
func DetectDatabase(ingredients []common.Ingredient, ref *PatternDB, minConfidence int) *Detection {
	det := newDetection(SourceDatabase)
	if ref == nil {
		return det
	}

	for _, ing := range ingredients {
		name := strings.TrimSpace(ing.DisplayName())
		if name == "" {
			continue
		}
		lower := strings.ToLower(name)

		for _, key := range ref.Keys() {
			patterns := ref.Patterns[key]

			if containsAny(lower, patterns) {
				record(det, ref, key, MethodDatabaseExact, 100, Evidence{
					Ingredient: name,
					MatchType:  "exact",
					Confidence: intPtr(100),
				})
				continue
			}

			idx, score, ok := matcher.ExtractOne(lower, patterns, minConfidence)
			if !ok {
				continue
			}
			record(det, ref, key, MethodDatabaseFuzzy, score, Evidence{
				Ingredient: name,
				MatchType:  "fuzzy",
				Pattern:    patterns[idx],
				Confidence: intPtr(score),
			})
		}
	}

	metrics.AllergenDetected(string(SourceDatabase), len(det.DetectedAllergens))
	common.LogDebug("database allergen scan finished",
		zap.Int("ingredients", len(ingredients)),
		zap.Strings("detected", det.DetectedAllergens),
	)
	return det
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func record(det *Detection, ref *PatternDB, key string, method Method, confidence int, ev Evidence) {
	r, ok := det.Details[key]
	if !ok {
		r = &Record{
			Allergen:           key,
			DisplayName:        ref.DisplayName(key, key),
			Confidence:         confidence,
			Method:             method,
			MatchedIngredients: []Evidence{},
			Metadata:           ref.MetadataFor(key),
		}
		det.add(r)
	} else if confidence > r.Confidence {
		r.Confidence = confidence
		r.Method = method
	}
	r.MatchedIngredients = append(r.MatchedIngredients, ev)
}
