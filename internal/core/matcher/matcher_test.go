package matcher

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWRatio(t *testing.T) {
	assert.Equal(t, 100.0, WRatio("Soy Sauce", "soy sauce"))
	assert.Equal(t, 100.0, WRatio("Jalapeño", "jalapeno"), "accents are folded")
	assert.Equal(t, 0.0, WRatio("butter", ""))
	assert.Equal(t, 0.0, WRatio("", ""))
	assert.InDelta(t, 95.0, WRatio("Sauce Soy", "Soy Sauce"), 1e-9)
	assert.Less(t, WRatio("butter", "shrimp"), 50.0)
}

func TestPartialRatio(t *testing.T) {
	assert.Equal(t, 100.0, PartialRatio("soy", "soy sauce"))
	assert.Equal(t, 100.0, PartialRatio("sauce", "soy sauce"))
	assert.Equal(t, 0.0, PartialRatio("", "abc"))
	assert.Equal(t, 100.0, PartialRatio("", ""))
}

func TestTokenRatios(t *testing.T) {
	assert.Equal(t, 100.0, TokenSortRatio("red bell pepper", "pepper bell red"))
	assert.Equal(t, 100.0, TokenSetRatio("parmesan cheese", "cheese parmesan grated"))
	assert.Equal(t, 100.0, PartialTokenRatio("kosher salt", "salt"))
}

func TestFold(t *testing.T) {
	assert.Equal(t, "creme fraiche", Fold("Crème-Fraîche"))
	assert.Equal(t, "chicken breast 6 oz", Fold("  Chicken Breast, (6 oz) "))
}

func TestMatchExactAlwaysScores100(t *testing.T) {
	m := New(Config{})
	candidates := []string{"Milk", "Butter", "Cheddar Cheese"}
	for cutoff := 0; cutoff <= 100; cutoff += 10 {
		r := m.Match("BUTTER", candidates, cutoff)
		require.True(t, r.Matched(), "cutoff %d", cutoff)
		assert.Equal(t, 100, r.Score)
		assert.Equal(t, LayerExact, r.Layer)
		assert.Equal(t, "Butter", r.Candidate)
		assert.Equal(t, 1, r.Index)
	}
}

func TestMatchLayers(t *testing.T) {
	plain := New(Config{})
	ingredient := NewIngredientMatcher(DefaultRareWordLimit)

	tests := []struct {
		name       string
		m          *Matcher
		query      string
		candidates []string
		cutoff     int
		want       string
		layer      Layer
		score      int
	}{
		{
			name:       "fuzzy word order",
			m:          plain,
			query:      "Sauce Soy",
			candidates: []string{"Soy Sauce"},
			cutoff:     65,
			want:       "Soy Sauce",
			layer:      LayerFuzzy,
			score:      95,
		},
		{
			name:       "query inside candidate",
			m:          plain,
			query:      "soy",
			candidates: []string{"Kikkoman Soy Sauce Gallon"},
			cutoff:     100,
			want:       "Kikkoman Soy Sauce Gallon",
			layer:      LayerQueryInCandidate,
			score:      75,
		},
		{
			name:       "candidate inside query",
			m:          plain,
			query:      "kosher salt flakes",
			candidates: []string{"Salt"},
			cutoff:     100,
			want:       "Salt",
			layer:      LayerCandidateInQuery,
			score:      80,
		},
		{
			name:       "two shared words",
			m:          ingredient,
			query:      "roasted red peppers",
			candidates: []string{"Peppers Red Roasted Jar", "Garlic"},
			cutoff:     100,
			want:       "Peppers Red Roasted Jar",
			layer:      LayerTokenOverlap,
			score:      83,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.m.Match(tt.query, tt.candidates, tt.cutoff)
			require.True(t, r.Matched())
			assert.Equal(t, tt.want, r.Candidate)
			assert.Equal(t, tt.layer, r.Layer)
			assert.Equal(t, tt.score, r.Score)
		})
	}
}

func TestMatchTokenOverlapNeedsIngredientMatcher(t *testing.T) {
	r := New(Config{}).Match("roasted red peppers", []string{"Peppers Red Roasted Jar"}, 100)
	assert.False(t, r.Matched())
	assert.Equal(t, 0, r.Score)
	assert.Equal(t, LayerNone, r.Layer)
}

func TestMatchRareWordGate(t *testing.T) {
	others := []string{"Tomato", "Bean", "Squash", "Pepper", "Radish", "Lettuce"}
	catalog := func(n int) []string {
		out := make([]string, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, "Heirloom "+others[i])
		}
		return out
	}

	r := NewIngredientMatcher(5).Match("heirloom carrots", catalog(5), 100)
	require.True(t, r.Matched())
	assert.Equal(t, 67, r.Score)
	assert.Equal(t, []string{"heirloom"}, r.SharedWords)

	r = NewIngredientMatcher(5).Match("heirloom carrots", catalog(6), 100)
	assert.False(t, r.Matched(), "word shared by too many candidates")

	r = NewIngredientMatcher(10).Match("heirloom carrots", catalog(6), 100)
	assert.True(t, r.Matched(), "limit is configurable")
}

func TestMatchStopWordsIgnored(t *testing.T) {
	r := NewIngredientMatcher(5).Match("fresh chopped parsley", []string{"Fresh Chopped Garlic"}, 100)
	assert.False(t, r.Matched())
}

func TestMatchCutoffMonotonic(t *testing.T) {
	m := NewIngredientMatcher(DefaultRareWordLimit)
	catalog := []string{"Soy Sauce", "Unsalted Butter", "Whole Milk", "Chicken Breast Boneless", "Kosher Salt"}
	queries := []string{"butter", "chiken brest", "milk whole", "sea salt", "saffron", "sauce soy", "parsley"}

	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			lastMatched := true
			for cutoff := 0; cutoff <= 100; cutoff += 5 {
				r := m.Match(q, catalog, cutoff)
				if !lastMatched {
					assert.False(t, r.Matched(), fmt.Sprintf("raising cutoff to %d produced a match", cutoff))
				}
				lastMatched = r.Matched()
			}
		})
	}
}

func TestMatchEmptyInput(t *testing.T) {
	m := New(Config{})
	assert.False(t, m.Match("", []string{"Milk"}, 0).Matched())
	assert.False(t, m.Match("  ", []string{"Milk"}, 0).Matched())
	assert.False(t, m.Match("milk", nil, 0).Matched())
}

func TestExtractOne(t *testing.T) {
	idx, score, ok := ExtractOne("parmesan", []string{"milk", "cheese", "parmesan", "butter"}, 70)
	require.True(t, ok)
	assert.Equal(t, 2, idx)
	assert.Equal(t, 100, score)

	_, _, ok = ExtractOne("shrimp", []string{"milk", "cheese"}, 70)
	assert.False(t, ok)
}
