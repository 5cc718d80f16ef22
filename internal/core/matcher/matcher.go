// Package matcher finds the catalog entry or pattern that best matches a free-text name.
package matcher

import (
	"sort"
	"strings"
	"unicode/utf8"

	"allergen-engine/internal/pkg/common"

	"go.uber.org/zap"
)

// DefaultRareWordLimit is how many candidates may contain a word before a
// single shared word stops counting as a token-overlap match.
const DefaultRareWordLimit = 5

// Layer names the strategy that produced a match.
type Layer string

const (
	LayerNone               Layer = "none"
	LayerExact              Layer = "exact"
	LayerFuzzy              Layer = "fuzzy"
	LayerQueryInCandidate   Layer = "substring_query_in_candidate"
	LayerCandidateInQuery   Layer = "substring_candidate_in_query"
	LayerTokenOverlap       Layer = "token_overlap"
	candidateInQueryScore         = 80
	singleWordScore               = 67
	queryInCandidateMinimum       = 75
	queryInCandidateMaximum       = 95
)

var stopWords = map[string]struct{}{
	"chopped": {}, "minced": {}, "diced": {}, "sliced": {}, "fresh": {}, "raw": {},
	"cooked": {}, "dried": {}, "whole": {}, "ground": {}, "cut": {},
}

// Config tunes a Matcher.
type Config struct {
	// TokenOverlap enables the word-overlap fallback used for ingredient mapping.
	TokenOverlap bool
	// RareWordLimit gates single-word overlap matches; values below 1 use DefaultRareWordLimit.
	RareWordLimit int
}

// Result is the outcome of one Match call. Index is -1 when nothing matched.
type Result struct {
	Candidate   string   `json:"candidate,omitempty"`
	Index       int      `json:"index"`
	Score       int      `json:"score"`
	Layer       Layer    `json:"layer"`
	SharedWords []string `json:"shared_words,omitempty"`
}

// Matched reports whether a candidate was found.
func (r Result) Matched() bool {
	return r.Index >= 0
}

var noMatch = Result{Index: -1, Layer: LayerNone}

// Matcher runs the layered exact, fuzzy, substring and token-overlap strategy.
type Matcher struct {
	cfg Config
}

// New creates a Matcher.
func New(cfg Config) *Matcher {
	if cfg.RareWordLimit < 1 {
		cfg.RareWordLimit = DefaultRareWordLimit
	}
	return &Matcher{cfg: cfg}
}

// NewIngredientMatcher returns a Matcher with token overlap enabled.
func NewIngredientMatcher(rareWordLimit int) *Matcher {
	return New(Config{TokenOverlap: true, RareWordLimit: rareWordLimit})
}

// Match returns the best candidate for query. The layers run in order and the first
// success wins; only the fuzzy layer is subject to cutoff.
func (m *Matcher) Match(query string, candidates []string, cutoff int) Result {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || len(candidates) == 0 {
		return noMatch
	}

	lowered := make([]string, len(candidates))
	for i, c := range candidates {
		lowered[i] = strings.ToLower(strings.TrimSpace(c))
	}

	for i, c := range lowered {
		if c == q {
			return m.found(query, Result{Candidate: candidates[i], Index: i, Score: 100, Layer: LayerExact})
		}
	}

	if idx, score, ok := ExtractOne(query, candidates, cutoff); ok {
		return m.found(query, Result{Candidate: candidates[idx], Index: idx, Score: score, Layer: LayerFuzzy})
	}

	qLen := utf8.RuneCountInString(q)
	for i, c := range lowered {
		if c == "" || !strings.Contains(c, q) {
			continue
		}
		score := 80 * qLen / utf8.RuneCountInString(c)
		score = max(queryInCandidateMinimum, min(score, queryInCandidateMaximum))
		return m.found(query, Result{Candidate: candidates[i], Index: i, Score: score, Layer: LayerQueryInCandidate})
	}

	for i, c := range lowered {
		if c != "" && strings.Contains(q, c) {
			return m.found(query, Result{Candidate: candidates[i], Index: i, Score: candidateInQueryScore, Layer: LayerCandidateInQuery})
		}
	}

	if m.cfg.TokenOverlap {
		if r, ok := m.tokenOverlap(q, candidates, lowered); ok {
			return m.found(query, r)
		}
	}

	common.LogDebug("no match found", zap.String("query", query), zap.Int("candidates", len(candidates)))
	return noMatch
}

func (m *Matcher) found(query string, r Result) Result {
	common.LogDebug("match found",
		zap.String("query", query),
		zap.String("candidate", r.Candidate),
		zap.Int("score", r.Score),
		zap.String("layer", string(r.Layer)),
	)
	return r
}

// significantWords splits s into words longer than two characters with
// surrounding punctuation and stop words removed.
func significantWords(s string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		w = strings.Trim(w, ",()")
		if utf8.RuneCountInString(w) <= 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		words[w] = struct{}{}
	}
	return words
}

func (m *Matcher) tokenOverlap(q string, candidates, lowered []string) (Result, bool) {
	queryWords := significantWords(q)
	if len(queryWords) == 0 {
		return Result{}, false
	}

	best := noMatch
	for i, c := range lowered {
		candidateWords := significantWords(c)
		var shared []string
		for w := range queryWords {
			if _, ok := candidateWords[w]; ok && utf8.RuneCountInString(w) >= 4 {
				shared = append(shared, w)
			}
		}
		sort.Strings(shared)

		score := 0
		switch {
		case len(shared) >= 2:
			coverage := float64(len(shared)) / float64(len(queryWords))
			score = min(int(70+coverage*20), 90)
		case len(shared) == 1 && utf8.RuneCountInString(shared[0]) >= 5:
			if countContaining(lowered, shared[0]) <= m.cfg.RareWordLimit {
				score = singleWordScore
			}
		}
		if score == 0 {
			continue
		}
		if score > best.Score || (score == best.Score && len(shared) > len(best.SharedWords)) {
			best = Result{Candidate: candidates[i], Index: i, Score: score, Layer: LayerTokenOverlap, SharedWords: shared}
		}
	}
	return best, best.Matched()
}

func countContaining(lowered []string, word string) int {
	n := 0
	for _, c := range lowered {
		if strings.Contains(c, word) {
			n++
		}
	}
	return n
}

// ExtractOne returns the index and truncated WRatio score of the best-scoring
// candidate, if that score reaches cutoff. Ties keep the earliest candidate.
func ExtractOne(query string, candidates []string, cutoff int) (int, int, bool) {
	bestIdx, bestScore := -1, -1.0
	for i, c := range candidates {
		s := WRatio(query, c)
		if s > bestScore {
			bestIdx, bestScore = i, s
		}
	}
	// absorb float noise such as 94.99999999999999 before truncating
	bestScore += 1e-9
	if bestIdx < 0 || bestScore < float64(cutoff) {
		return -1, 0, false
	}
	return bestIdx, int(bestScore), true
}
