// Package extract scans document text for reporter citations. There is
// exactly one extractor; it has no network or I/O side effects.
package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/lexcite/citecheck/internal/normalize"
	"github.com/lexcite/citecheck/internal/reporter"
)

// ContextRadius is how many characters of surrounding text are attached to
// each match for later clustering.
const ContextRadius = 100

// RawMatch is one citation hit against the pattern library. Created per
// extraction pass and consumed by the complex-citation parser.
type RawMatch struct {
	MatchedText string
	ReporterKey string
	Volume      string
	Page        string
	Start       int
	End         int
	Context     string
}

// stateCourtRe is the jurisdiction-aware catch-all for state reporters not in
// the library: volume, one or more capitalized abbreviation tokens, an
// optional series indicator, page. The series indicator requires its letter
// suffix so bare "Wn.2" style noise never matches.
var stateCourtRe = regexp.MustCompile(`\b(\d{1,4})\s+((?:[A-Z][A-Za-z]{0,5}\.\s?)+(?:2d|3d|4th|5th)?)\s+(\d{1,5})\b`)

// statutoryRe screens obvious statutory forms out of the catch-all pattern.
var statutoryRe = regexp.MustCompile(`U\.?S\.?C\.?|C\.?F\.?R\.?|RCW|WAC`)

// Extractor applies every pattern in the reporter library plus the
// state-court catch-all, deduplicating by normalized text and offset.
type Extractor struct {
	lib    *reporter.Library
	norm   *normalize.Normalizer
	logger *zap.Logger
}

// New returns an Extractor over the given library.
func New(lib *reporter.Library, norm *normalize.Normalizer, logger *zap.Logger) *Extractor {
	return &Extractor{lib: lib, norm: norm, logger: logger}
}

// Extract returns every citation match in documentText, ordered by offset.
// Overlapping matches are resolved in favor of the longer (more specific)
// reporter; the complex-citation parser groups what remains.
func (e *Extractor) Extract(documentText string) []RawMatch {
	if strings.TrimSpace(documentText) == "" {
		return nil
	}

	var candidates []RawMatch
	for _, rep := range e.lib.All() {
		for _, idx := range rep.Citation().FindAllStringSubmatchIndex(documentText, -1) {
			candidates = append(candidates, RawMatch{
				MatchedText: documentText[idx[0]:idx[1]],
				ReporterKey: rep.Key,
				Volume:      documentText[idx[2]:idx[3]],
				Page:        documentText[idx[4]:idx[5]],
				Start:       idx[0],
				End:         idx[1],
			})
		}
	}

	for _, idx := range stateCourtRe.FindAllStringSubmatchIndex(documentText, -1) {
		name := strings.TrimSpace(documentText[idx[4]:idx[5]])
		if statutoryRe.MatchString(name) || e.isNoise(name) {
			continue
		}
		candidates = append(candidates, RawMatch{
			MatchedText: documentText[idx[0]:idx[1]],
			ReporterKey: "",
			Volume:      documentText[idx[2]:idx[3]],
			Page:        documentText[idx[6]:idx[7]],
			Start:       idx[0],
			End:         idx[1],
		})
	}

	matches := e.dedupe(candidates)
	for i := range matches {
		matches[i].Context = contextWindow(documentText, matches[i].Start, matches[i].End)
	}

	e.logger.Debug("Citation extraction pass complete",
		zap.Int("candidates", len(candidates)),
		zap.Int("matches", len(matches)))
	return matches
}

// isNoise rejects catch-all hits that are not plausible reporter names:
// a lone series digit without its letter, or a single letter with no period.
func (e *Extractor) isNoise(name string) bool {
	if name == "" {
		return true
	}
	// A trailing bare digit means the series letter was cut off ("Wn.2").
	last := name[len(name)-1]
	if last >= '0' && last <= '9' {
		return true
	}
	if !strings.Contains(name, ".") {
		return true
	}
	return false
}

// dedupe keeps one match per (normalized text, start offset) and resolves
// overlapping spans starting at the same volume in favor of the longer match.
func (e *Extractor) dedupe(candidates []RawMatch) []RawMatch {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Start != candidates[j].Start {
			return candidates[i].Start < candidates[j].Start
		}
		if candidates[i].End != candidates[j].End {
			return candidates[i].End > candidates[j].End
		}
		// Library matches beat the catch-all for the same span.
		return candidates[i].ReporterKey > candidates[j].ReporterKey
	})

	seen := make(map[string]bool, len(candidates))
	var out []RawMatch
	lastEnd := -1
	lastStart := -1
	for _, c := range candidates {
		if c.Start == lastStart && c.End <= lastEnd {
			continue // shorter variant of the match we already kept
		}
		key := e.norm.Normalize(c.MatchedText) + "@" + strconv.Itoa(c.Start)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
		lastStart, lastEnd = c.Start, c.End
	}
	return out
}

func contextWindow(text string, start, end int) string {
	lo := start - ContextRadius
	if lo < 0 {
		lo = 0
	}
	hi := end + ContextRadius
	if hi > len(text) {
		hi = len(text)
	}
	return text[lo:hi]
}
