package cluster

import (
	"regexp"
	"strings"
)

// Case-name similarity is a blend: 30% unweighted Jaccard over word sets,
// 60% weighted Jaccard where short/stop words count half and long words
// double, plus up to a 0.1 bonus when both names share a distinctive word.

var stopWords = map[string]bool{
	"the": true, "of": true, "and": true, "in": true, "re": true,
	"v": true, "vs": true, "ex": true, "rel": true, "et": true, "al": true,
	"state": true, "city": true, "county": true, "united": true, "states": true,
	"inc": true, "llc": true, "corp": true, "co": true,
}

var signalWords = []string{
	"see also", "but see", "see", "accord", "cf.", "cf", "e.g.", "eg", "citing", "compare",
}

var namePunctRe = regexp.MustCompile(`[^\w\s]`)

// normalizeName lowercases, strips leading signal words and punctuation.
func normalizeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	for _, sig := range signalWords {
		if strings.HasPrefix(s, sig+" ") {
			s = strings.TrimPrefix(s, sig+" ")
			break
		}
	}
	return strings.TrimSpace(namePunctRe.ReplaceAllString(s, ""))
}

func wordWeight(w string) float64 {
	switch {
	case len(w) <= 3 || stopWords[w]:
		return 0.5
	case len(w) >= 8:
		return 2.0
	default:
		return 1.0
	}
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		set[w] = true
	}
	return set
}

// NameSimilarity scores two case names in [0,1].
func NameSimilarity(a, b string) float64 {
	na, nb := normalizeName(a), normalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	sa, sb := wordSet(na), wordSet(nb)

	plain := jaccard(sa, sb)
	weighted := weightedJaccard(sa, sb)

	score := 0.3*plain + 0.6*weighted

	// Distinctive-word bonus: both names share at least one long non-stopword.
	for w := range sa {
		if len(w) >= 6 && !stopWords[w] && sb[w] {
			score += 0.1
			break
		}
	}
	if score > 1 {
		score = 1
	}
	return score
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if b[w] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func weightedJaccard(a, b map[string]bool) float64 {
	var inter, union float64
	for w := range a {
		wt := wordWeight(w)
		union += wt
		if b[w] {
			inter += wt
		}
	}
	for w := range b {
		if !a[w] {
			union += wordWeight(w)
		}
	}
	if union == 0 {
		return 0
	}
	return inter / union
}

// ContextSimilarity scores the surrounding source text of two citations as
// unweighted Jaccard over lowercase word sets.
func ContextSimilarity(a, b string) float64 {
	sa := wordSet(strings.ToLower(a))
	sb := wordSet(strings.ToLower(b))
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	return jaccard(sa, sb)
}
