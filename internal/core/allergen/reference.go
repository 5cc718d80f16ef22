// Package allergen detects allergens in recipe ingredients from a pattern
// database and an AI service, and reconciles the results into one report.
package allergen

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"allergen-engine/internal/pkg/common"
)

// FDATop9 lists the nine major allergen keys.
var FDATop9 = []string{
	"milk", "eggs", "fish", "shellfish", "tree_nuts",
	"peanuts", "wheat", "soybeans", "sesame",
}

// Additional lists the other allergen keys the engine tracks.
var Additional = []string{
	"gluten", "corn", "sulfites", "nightshades",
	"mustard", "celery", "lupin",
}

// DefaultIcon is shown for allergens without one.
const DefaultIcon = "⚠️"

//go:embed data/allergen_database.json
var defaultDatabase []byte

// Metadata describes one allergen.
type Metadata struct {
	DisplayName string `json:"display_name,omitempty"`
	FDATop9     bool   `json:"fda_top_9"`
	Icon        string `json:"icon,omitempty"`
	Description string `json:"description,omitempty"`
}

// PatternDB maps allergen keys to the substrings that reveal them.
// It is read-only once loaded.
type PatternDB struct {
	Patterns map[string][]string `json:"ingredient_patterns" validate:"required,min=1,dive,keys,required,endkeys,required,min=1,dive,required"`
	Metadata map[string]Metadata `json:"allergen_metadata"`

	keys []string
}

// NewPatternDB validates the tables and prepares them for matching.
// Patterns are lower-cased and allergen keys normalized.
func NewPatternDB(patterns map[string][]string, metadata map[string]Metadata) (*PatternDB, error) {
	db := &PatternDB{Patterns: patterns, Metadata: metadata}
	if err := common.ValidateStruct(db); err != nil {
		return nil, common.Wrap(common.ErrInvalidReferenceData, err)
	}

	norm := make(map[string][]string, len(patterns))
	for key, list := range patterns {
		k := NormalizeKey(key)
		if k == "" {
			return nil, common.Wrap(common.ErrInvalidReferenceData, fmt.Errorf("blank allergen key"))
		}
		for _, p := range list {
			p = strings.ToLower(strings.TrimSpace(p))
			if p == "" {
				return nil, common.Wrap(common.ErrInvalidReferenceData, fmt.Errorf("blank pattern for %q", key))
			}
			norm[k] = append(norm[k], p)
		}
	}
	meta := make(map[string]Metadata, len(metadata))
	for key, m := range metadata {
		meta[NormalizeKey(key)] = m
	}

	db.Patterns = norm
	db.Metadata = meta
	db.keys = make([]string, 0, len(norm))
	for k := range norm {
		db.keys = append(db.keys, k)
	}
	sort.Strings(db.keys)
	return db, nil
}

// ParsePatternDB decodes a JSON allergen database.
func ParsePatternDB(data []byte) (*PatternDB, error) {
	var raw struct {
		Patterns map[string][]string `json:"ingredient_patterns"`
		Metadata map[string]Metadata `json:"allergen_metadata"`
	}
	if err := common.ParseJSONBytes(data, &raw); err != nil {
		return nil, common.Wrap(common.ErrInvalidReferenceData, err)
	}
	return NewPatternDB(raw.Patterns, raw.Metadata)
}

// LoadPatternDB reads the database at path, or the built-in one when path is empty.
func LoadPatternDB(path string) (*PatternDB, error) {
	if path == "" {
		return ParsePatternDB(defaultDatabase)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.Wrap(common.ErrInvalidReferenceData, err)
	}
	return ParsePatternDB(data)
}

// Keys returns the allergen keys in sorted order.
func (db *PatternDB) Keys() []string {
	return db.keys
}

// MetadataFor returns the metadata for key, or an empty record.
func (db *PatternDB) MetadataFor(key string) Metadata {
	if db == nil {
		return Metadata{}
	}
	return db.Metadata[key]
}

// DisplayName returns the configured display name, falling back to fallback.
func (db *PatternDB) DisplayName(key, fallback string) string {
	if name := db.MetadataFor(key).DisplayName; name != "" {
		return name
	}
	return fallback
}

// PatternCount is the total number of patterns across all allergens.
func (db *PatternDB) PatternCount() int {
	n := 0
	for _, list := range db.Patterns {
		n += len(list)
	}
	return n
}

// NormalizeKey lower-cases an allergen key and joins its words with underscores,
// so "Tree Nuts" and "tree_nuts" name the same allergen.
func NormalizeKey(key string) string {
	return strings.Join(strings.Fields(strings.ToLower(key)), "_")
}
