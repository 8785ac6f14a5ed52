// Package correction proposes fixes for citations that failed verification,
// from deterministic rules and similarity to a corpus of known-good
// citations.
package correction

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"go.uber.org/zap"

	"github.com/lexcite/citecheck/internal/corpus"
	"github.com/lexcite/citecheck/internal/metrics"
	"github.com/lexcite/citecheck/internal/normalize"
	"github.com/lexcite/citecheck/internal/reporter"
)

// Type classifies where a suggestion came from.
type Type string

const (
	TypeNormalization   Type = "normalization"
	TypeRuleBased       Type = "rule_based"
	TypeSimilarCitation Type = "similar_verified"
)

// Suggestion is one ranked correction.
type Suggestion struct {
	Corrected   string  `json:"corrected_citation"`
	Similarity  float64 `json:"similarity"`
	Explanation string  `json:"explanation"`
	Type        Type    `json:"correction_type"`
}

// MaxSuggestions caps how many suggestions one call returns.
const MaxSuggestions = 5

// DefaultSimilarityThreshold is the minimum corpus similarity to include.
const DefaultSimilarityThreshold = 0.7

// CorpusReader is the read side of the verified-citation corpus.
type CorpusReader interface {
	All(ctx context.Context) ([]corpus.Entry, error)
}

// Engine ranks correction suggestions. A nil or failing corpus degrades to
// rule-based suggestions with a logged warning, never an error.
type Engine struct {
	corpus    CorpusReader
	lib       *reporter.Library
	norm      *normalize.Normalizer
	threshold float64
	logger    *zap.Logger
}

// New creates an Engine. corpusReader may be nil.
func New(corpusReader CorpusReader, lib *reporter.Library, norm *normalize.Normalizer,
	threshold float64, logger *zap.Logger) *Engine {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	return &Engine{corpus: corpusReader, lib: lib, norm: norm, threshold: threshold, logger: logger}
}

// ruleFixes are known abbreviation typos repaired by the deterministic pass.
var ruleFixes = []struct {
	re          *regexp.Regexp
	replacement string
	explanation string
}{
	{regexp.MustCompile(`\bWn2d\b`), "Wn.2d", "insert missing period in Wn.2d"},
	{regexp.MustCompile(`\bWnApp\b`), "Wn. App.", "repair Wn. App. abbreviation"},
	{regexp.MustCompile(`\bF3d\b`), "F.3d", "insert missing period in F.3d"},
	{regexp.MustCompile(`\bF2d\b`), "F.2d", "insert missing period in F.2d"},
	{regexp.MustCompile(`\bP3d\b`), "P.3d", "insert missing period in P.3d"},
	{regexp.MustCompile(`\bP2d\b`), "P.2d", "insert missing period in P.2d"},
	{regexp.MustCompile(`\bSCt\b`), "S. Ct.", "repair S. Ct. abbreviation"},
	{regexp.MustCompile(`(\w) vs?\s`), "$1 v. ", "insert missing period after v"},
	{regexp.MustCompile(`(\d)\s*,\s*(\d)`), "$1, $2", "fix spacing around comma"},
}

// Suggest returns up to MaxSuggestions corrections for citationText, ranked
// by similarity descending.
func (e *Engine) Suggest(ctx context.Context, citationText string) []Suggestion {
	trimmed := strings.TrimSpace(citationText)
	if trimmed == "" {
		return nil
	}

	var suggestions []Suggestion
	seen := make(map[string]bool)
	add := func(s Suggestion) {
		if s.Corrected == "" || s.Corrected == trimmed || seen[s.Corrected] {
			return
		}
		seen[s.Corrected] = true
		suggestions = append(suggestions, s)
		metrics.RecordCorrection(string(s.Type))
	}

	normalized := e.norm.Normalize(trimmed)
	if normalized != trimmed {
		add(Suggestion{
			Corrected:   normalized,
			Similarity:  stringSimilarity(trimmed, normalized),
			Explanation: "canonical reporter format",
			Type:        TypeNormalization,
		})
	}

	if fixed, why := e.applyRules(normalized); fixed != normalized {
		add(Suggestion{
			Corrected:   e.norm.Normalize(fixed),
			Similarity:  stringSimilarity(trimmed, fixed),
			Explanation: why,
			Type:        TypeRuleBased,
		})
	}

	e.addCorpusMatches(ctx, trimmed, normalized, add)

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Similarity > suggestions[j].Similarity
	})
	if len(suggestions) > MaxSuggestions {
		suggestions = suggestions[:MaxSuggestions]
	}
	return suggestions
}

func (e *Engine) applyRules(text string) (string, string) {
	out := text
	var reasons []string
	for _, fix := range ruleFixes {
		if fix.re.MatchString(out) {
			out = fix.re.ReplaceAllString(out, fix.replacement)
			reasons = append(reasons, fix.explanation)
		}
	}
	return out, strings.Join(reasons, "; ")
}

func (e *Engine) addCorpusMatches(ctx context.Context, raw, normalized string, add func(Suggestion)) {
	if e.corpus == nil {
		return
	}
	entries, err := e.corpus.All(ctx)
	if err != nil {
		// Degraded mode: rule-based suggestions only. A warning, never an
		// error surfaced to the caller.
		e.logger.Warn("Correction corpus unavailable, rule-based suggestions only", zap.Error(err))
		return
	}

	inVol, inRep, inPage := e.components(normalized)
	for _, entry := range entries {
		entryNorm := e.norm.Normalize(entry.Citation)
		score := 0.7*stringSimilarity(normalized, entryNorm) +
			0.3*e.componentSimilarity(inVol, inRep, inPage, entry)
		if score >= e.threshold {
			add(Suggestion{
				Corrected:   entryNorm,
				Similarity:  score,
				Explanation: "matches previously verified citation",
				Type:        TypeSimilarCitation,
			})
		}
	}
}

var componentRe = regexp.MustCompile(`^(\d{1,4}) (.+) (\d{1,5})$`)

func (e *Engine) components(normalized string) (vol, rep, page string) {
	m := componentRe.FindStringSubmatch(normalized)
	if m == nil {
		return "", "", ""
	}
	return m[1], m[2], m[3]
}

// componentSimilarity is the fraction of volume/reporter/page that match.
func (e *Engine) componentSimilarity(vol, rep, page string, entry corpus.Entry) float64 {
	matches := 0
	if vol != "" && vol == entry.Volume {
		matches++
	}
	if rep != "" && e.sameReporter(rep, entry.Reporter) {
		matches++
	}
	if page != "" && page == entry.Page {
		matches++
	}
	return float64(matches) / 3.0
}

func (e *Engine) sameReporter(a, b string) bool {
	if strings.EqualFold(a, b) {
		return true
	}
	ra, okA := e.lib.ResolveName(a)
	rb, okB := e.lib.ResolveName(b)
	return okA && okB && ra.Key == rb.Key
}

// stringSimilarity is normalized edit-distance similarity in [0,1].
func stringSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := len([]rune(a)), len([]rune(b))
	max := la
	if lb > max {
		max = lb
	}
	if max == 0 {
		return 1
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(max)
}
