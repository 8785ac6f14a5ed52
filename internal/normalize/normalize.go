// Package normalize canonicalizes raw citation text. There is exactly one
// normalizer in the codebase; every component that needs canonical text goes
// through Normalize.
package normalize

import (
	"regexp"
	"strings"

	"github.com/lexcite/citecheck/internal/reporter"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	multiDotRe   = regexp.MustCompile(`\.{2,}`)

	// Washington spacing: no space before a series indicator ("Wn. 2d" ->
	// "Wn.2d") but a space before App. ("Wn.App." -> "Wn. App.").
	wnSeriesRe = regexp.MustCompile(`\bWn\.\s+(2d|3d)\b`)
	wnAppRe    = regexp.MustCompile(`\bWn\.\s*App\.`)

	// Abbreviation unification, citation context only so statutes like
	// "28 U.S.C." are left alone.
	usRe     = regexp.MustCompile(`\b(\d{1,4})\s+U\.?\s?S\b\.?\s+(\d{1,5})\b`)
	washRe   = regexp.MustCompile(`\bWash\.`)
	usckeep  = regexp.MustCompile(`\bU\.S\.C\b`)
	cfrkeep  = regexp.MustCompile(`\bC\.F\.R\b`)
	wholeCit = regexp.MustCompile(`^(\d{1,4})\s+(.+?)\s+(\d{1,5})$`)
)

// Normalizer applies the canonicalization rules in a fixed order. Idempotent:
// Normalize(Normalize(x)) == Normalize(x). Never fails; on any internal
// trouble the trimmed input is returned unchanged.
type Normalizer struct {
	lib *reporter.Library
}

// New returns a Normalizer backed by the given reporter library.
func New(lib *reporter.Library) *Normalizer {
	return &Normalizer{lib: lib}
}

// Normalize canonicalizes citation text. Rules, in order: collapse
// whitespace, collapse repeated periods, jurisdiction spacing, abbreviation
// unification, canonical volume/reporter/page reconstruction.
func (n *Normalizer) Normalize(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return trimmed
	}

	out := whitespaceRe.ReplaceAllString(trimmed, " ")
	out = multiDotRe.ReplaceAllString(out, ".")

	out = n.applySpacing(out)
	out = n.unifyAbbreviations(out)
	// Unification can reintroduce a spacing variant ("Wash. 2d" -> "Wn. 2d"),
	// so spacing runs once more to stay idempotent.
	out = n.applySpacing(out)

	if rebuilt, ok := n.reconstruct(out); ok {
		return rebuilt
	}
	return out
}

func (n *Normalizer) applySpacing(s string) string {
	s = wnSeriesRe.ReplaceAllString(s, "Wn.$1")
	s = wnAppRe.ReplaceAllString(s, "Wn. App.")
	return s
}

func (n *Normalizer) unifyAbbreviations(s string) string {
	// "410 US 113" / "410 U. S. 113" -> "410 U.S. 113". Statutory forms keep
	// their own abbreviation; the citation-shaped pattern cannot match them,
	// the explicit guards are for safety on pathological input.
	if !usckeep.MatchString(s) && !cfrkeep.MatchString(s) {
		s = usRe.ReplaceAllString(s, "$1 U.S. $2")
	}
	s = washRe.ReplaceAllString(s, "Wn.")
	return s
}

// reconstruct rebuilds "{volume} {reporter} {page}" when the whole string is
// a single unambiguously parseable citation.
func (n *Normalizer) reconstruct(s string) (string, bool) {
	m := wholeCit.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	rep, ok := n.lib.ResolveName(m[2])
	if !ok {
		return "", false
	}
	return m[1] + " " + rep.Display + " " + m[3], true
}
