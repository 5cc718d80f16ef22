package matcher

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	unbaseScale = 0.95
)

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases s, strips accents and collapses anything that is not a letter
// or digit into single spaces. It is applied to both sides before scoring.
func Fold(s string) string {
	folded, _, err := transform.String(stripAccents, strings.ToLower(s))
	if err != nil {
		folded = strings.ToLower(s)
	}
	return strings.Join(strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}

// Ratio is the normalized indel similarity of a and b in [0,100].
func Ratio(a, b string) float64 {
	return ratioRunes([]rune(a), []rune(b))
}

func ratioRunes(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 100
	}
	return 200 * float64(lcsLength(a, b)) / float64(total)
}

// lcsLength is the longest common subsequence length, which fixes the indel distance.
func lcsLength(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// PartialRatio scores the shorter string against its best-aligned window in the longer one.
// Windows that hang off either end of the longer string are included.
func PartialRatio(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		if len(long) == 0 {
			return 100
		}
		return 0
	}

	best := 0.0
	m := len(short)
	for start := -(m - 1); start < len(long); start++ {
		lo, hi := start, start+m
		if lo < 0 {
			lo = 0
		}
		if hi > len(long) {
			hi = len(long)
		}
		score := ratioRunes(short, long[lo:hi])
		if score > best {
			best = score
			if best == 100 {
				break
			}
		}
	}
	return best
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		set[w] = struct{}{}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func splitSets(a, b string) (inter, onlyA, onlyB []string) {
	setA, setB := tokenSet(a), tokenSet(b)
	for w := range setA {
		if _, ok := setB[w]; ok {
			inter = append(inter, w)
		} else {
			onlyA = append(onlyA, w)
		}
	}
	for w := range setB {
		if _, ok := setA[w]; !ok {
			onlyB = append(onlyB, w)
		}
	}
	sort.Strings(inter)
	sort.Strings(onlyA)
	sort.Strings(onlyB)
	return inter, onlyA, onlyB
}

// TokenSortRatio compares the strings after sorting their words.
func TokenSortRatio(a, b string) float64 {
	sa := strings.Fields(a)
	sb := strings.Fields(b)
	sort.Strings(sa)
	sort.Strings(sb)
	return Ratio(strings.Join(sa, " "), strings.Join(sb, " "))
}

// TokenSetRatio compares the shared words against each side's remainder.
func TokenSetRatio(a, b string) float64 {
	inter, onlyA, onlyB := splitSets(a, b)
	if len(inter) > 0 && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 100
	}
	if len(inter) == 0 && len(onlyA) == 0 && len(onlyB) == 0 {
		return 0
	}

	sect := strings.Join(inter, " ")
	combinedA := strings.TrimSpace(sect + " " + strings.Join(onlyA, " "))
	combinedB := strings.TrimSpace(sect + " " + strings.Join(onlyB, " "))

	result := Ratio(combinedA, combinedB)
	if sect != "" {
		result = math.Max(result, Ratio(sect, combinedA))
		result = math.Max(result, Ratio(sect, combinedB))
	}
	return result
}

// PartialTokenRatio is 100 when the strings share a word, otherwise the partial
// ratio of their sorted word lists.
func PartialTokenRatio(a, b string) float64 {
	inter, _, _ := splitSets(a, b)
	if len(inter) > 0 {
		return 100
	}
	return PartialRatio(
		strings.Join(sortedKeys(tokenSet(a)), " "),
		strings.Join(sortedKeys(tokenSet(b)), " "),
	)
}

// WRatio is a weighted similarity in [0,100] that picks between whole-string,
// partial and token based scores depending on how different the lengths are.
// Inputs are folded first.
func WRatio(a, b string) float64 {
	a, b = Fold(a), Fold(b)
	la, lb := len([]rune(a)), len([]rune(b))
	if la == 0 || lb == 0 {
		return 0
	}

	lenRatio := float64(max(la, lb)) / float64(min(la, lb))
	end := Ratio(a, b)

	if lenRatio < 1.5 {
		tokens := math.Max(TokenSortRatio(a, b), TokenSetRatio(a, b))
		return math.Max(end, tokens*unbaseScale)
	}

	partialScale := 0.9
	if lenRatio >= 8 {
		partialScale = 0.6
	}
	end = math.Max(end, PartialRatio(a, b)*partialScale)
	return math.Max(end, PartialTokenRatio(a, b)*unbaseScale*partialScale)
}
