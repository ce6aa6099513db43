// Package textdistance implements the string similarity measures used by the
// text-distance directive. Every measure returns a score in [0, 1] where 1
// means identical. Two empty strings are identical; an empty string is
// dissimilar to any non-empty one.
package textdistance

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

// Measure scores the similarity of two strings.
type Measure func(a, b string) float64

var measures = map[string]Measure{
	"cosine":                     guard(Cosine),
	"euclidean":                  guard(Euclidean),
	"block-distance":             guard(BlockDistance),
	"block":                      guard(BlockDistance),
	"identity":                   Identity,
	"dice":                       guard(Dice),
	"jaro":                       guard(Jaro),
	"longest-common-subsequence": guard(LongestCommonSubsequence),
	"longest-common-substring":   guard(LongestCommonSubstring),
	"overlap-cofficient":         guard(OverlapCoefficient),
	"damerau-levenshtein":        guard(DamerauLevenshtein),
	"simon-white":                guard(SimonWhite),
	"levenshtein":                guard(Levenshtein),
}

// Lookup returns the measure with the given name.
func Lookup(name string) (Measure, error) {
	m, ok := measures[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown distance method %q, expected one of %s", name, strings.Join(Names(), ", "))
	}
	return m, nil
}

// Names returns the supported measure names, sorted.
func Names() []string {
	names := make([]string, 0, len(measures))
	for name := range measures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// guard applies the empty-string rules shared by all measures.
func guard(m Measure) Measure {
	return func(a, b string) float64 {
		switch {
		case a == "" && b == "":
			return 1
		case a == "" || b == "":
			return 0
		default:
			return m(a, b)
		}
	}
}

// Identity is 1 for equal strings and 0 otherwise.
func Identity(a, b string) float64 {
	if a == b {
		return 1
	}
	return 0
}

// Cosine is the cosine of the angle between the term frequency vectors of
// the whitespace separated tokens of a and b.
func Cosine(a, b string) float64 {
	ta, tb := terms(a), terms(b)
	var dot, na, nb float64
	for t, ca := range ta {
		dot += float64(ca * tb[t])
		na += float64(ca * ca)
	}
	for _, cb := range tb {
		nb += float64(cb * cb)
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Euclidean is one minus the euclidean distance of the term frequency
// vectors, normalized by the largest possible distance.
func Euclidean(a, b string) float64 {
	ta, tb := terms(a), terms(b)
	var sum, na, nb float64
	for t := range union(ta, tb) {
		d := float64(ta[t] - tb[t])
		sum += d * d
	}
	for _, c := range ta {
		na += float64(c * c)
	}
	for _, c := range tb {
		nb += float64(c * c)
	}
	maxDist := math.Sqrt(na + nb)
	if maxDist == 0 {
		return 1
	}
	return 1 - math.Sqrt(sum)/maxDist
}

// BlockDistance is one minus the L1 (city block) distance of the term
// frequency vectors, normalized by the total number of terms.
func BlockDistance(a, b string) float64 {
	ta, tb := terms(a), terms(b)
	var dist, total int
	for t := range union(ta, tb) {
		d := ta[t] - tb[t]
		if d < 0 {
			d = -d
		}
		dist += d
		total += ta[t] + tb[t]
	}
	if total == 0 {
		return 1
	}
	return 1 - float64(dist)/float64(total)
}

// Dice is twice the shared distinct tokens over the sum of distinct tokens.
func Dice(a, b string) float64 {
	sa, sb := set(a), set(b)
	if len(sa)+len(sb) == 0 {
		return 1
	}
	return 2 * float64(intersect(sa, sb)) / float64(len(sa)+len(sb))
}

// OverlapCoefficient is the shared distinct tokens over the smaller set.
func OverlapCoefficient(a, b string) float64 {
	sa, sb := set(a), set(b)
	m := min(len(sa), len(sb))
	if m == 0 {
		return 0
	}
	return float64(intersect(sa, sb)) / float64(m)
}

// Jaro is the Jaro similarity of the rune sequences.
func Jaro(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	window := max(len(ra), len(rb))/2 - 1
	if window < 0 {
		window = 0
	}

	matchedA := make([]bool, len(ra))
	matchedB := make([]bool, len(rb))
	matches := 0
	for i := range ra {
		lo := max(0, i-window)
		hi := min(len(rb), i+window+1)
		for j := lo; j < hi; j++ {
			if matchedB[j] || ra[i] != rb[j] {
				continue
			}
			matchedA[i], matchedB[j] = true, true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	transpositions := 0
	j := 0
	for i := range ra {
		if !matchedA[i] {
			continue
		}
		for !matchedB[j] {
			j++
		}
		if ra[i] != rb[j] {
			transpositions++
		}
		j++
	}

	m := float64(matches)
	t := float64(transpositions) / 2
	return (m/float64(len(ra)) + m/float64(len(rb)) + (m-t)/m) / 3
}

// LongestCommonSubsequence is the length of the longest common subsequence
// over the length of the longer string.
func LongestCommonSubsequence(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				cur[j] = prev[j-1] + 1
			} else {
				cur[j] = max(prev[j], cur[j-1])
			}
		}
		prev, cur = cur, prev
	}
	return float64(prev[len(rb)]) / float64(max(len(ra), len(rb)))
}

// LongestCommonSubstring is the length of the longest common substring over
// the length of the longer string.
func LongestCommonSubstring(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	best := 0
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				cur[j] = prev[j-1] + 1
				best = max(best, cur[j])
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return float64(best) / float64(max(len(ra), len(rb)))
}

// DamerauLevenshtein is one minus the optimal string alignment distance over
// the length of the longer string.
func DamerauLevenshtein(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	n, m := len(ra), len(rb)

	d := make([][]int, n+1)
	for i := range d {
		d[i] = make([]int, m+1)
		d[i][0] = i
	}
	for j := 0; j <= m; j++ {
		d[0][j] = j
	}

	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			d[i][j] = min(d[i-1][j]+1, d[i][j-1]+1, d[i-1][j-1]+cost)
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				d[i][j] = min(d[i][j], d[i-2][j-2]+1)
			}
		}
	}
	return 1 - float64(d[n][m])/float64(max(n, m))
}

// SimonWhite compares the adjacent letter pairs of each word of a and b.
func SimonWhite(a, b string) float64 {
	pa, pb := letterPairs(a), letterPairs(b)
	total := len(pa) + len(pb)
	if total == 0 {
		return Identity(a, b)
	}

	remaining := make(map[string]int, len(pb))
	for _, p := range pb {
		remaining[p]++
	}
	shared := 0
	for _, p := range pa {
		if remaining[p] > 0 {
			remaining[p]--
			shared++
		}
	}
	return 2 * float64(shared) / float64(total)
}

// Levenshtein is one minus the edit distance over the length of the longer
// string.
func Levenshtein(a, b string) float64 {
	return levenshtein.Similarity(a, b, levenshtein.NewParams())
}

func letterPairs(s string) []string {
	var pairs []string
	for _, word := range strings.Fields(strings.ToUpper(s)) {
		r := []rune(word)
		for i := 0; i+1 < len(r); i++ {
			pairs = append(pairs, string(r[i:i+2]))
		}
	}
	return pairs
}

func terms(s string) map[string]int {
	counts := make(map[string]int)
	for _, t := range strings.Fields(s) {
		counts[t]++
	}
	return counts
}

func set(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range strings.Fields(s) {
		out[t] = struct{}{}
	}
	return out
}

func union(a, b map[string]int) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for t := range a {
		out[t] = struct{}{}
	}
	for t := range b {
		out[t] = struct{}{}
	}
	return out
}

func intersect(a, b map[string]struct{}) int {
	n := 0
	for t := range a {
		if _, ok := b[t]; ok {
			n++
		}
	}
	return n
}
