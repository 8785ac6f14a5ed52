// Package citeparse groups raw citation matches plus case-name, year, docket,
// history and publication-status markers into structured citation records.
package citeparse

import (
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/lexcite/citecheck/internal/extract"
	"github.com/lexcite/citecheck/internal/normalize"
)

// ComponentKind tags one piece of a parsed citation.
type ComponentKind string

const (
	KindPrimary  ComponentKind = "primary"
	KindParallel ComponentKind = "parallel"
	KindPinpoint ComponentKind = "pinpoint"
	KindDocket   ComponentKind = "docket"
	KindHistory  ComponentKind = "history"
	KindStatus   ComponentKind = "status"
)

// Component is a tagged span within a citation block.
type Component struct {
	Kind  ComponentKind
	Value string
	Start int
	End   int
}

// ParsedCitation is one structured citation record. Invariants: Primary, when
// set, also appears among Components as KindPrimary; Parallels never contains
// Primary.
type ParsedCitation struct {
	FullText          string
	CaseName          string
	Primary           string
	Parallels         []string
	PinpointPages     []string
	DocketNumbers     []string
	CaseHistory       []string
	PublicationStatus string
	Year              string
	Components        []Component
	// Context is the surrounding source text, used for cluster similarity.
	Context string
}

// IsComplex reports whether the record carries more than a bare citation.
func (pc *ParsedCitation) IsComplex() bool {
	return pc.CaseName != "" || len(pc.Parallels) > 0
}

// Members returns every citation text that denotes this opinion: the primary
// first, then parallels.
func (pc *ParsedCitation) Members() []string {
	if pc.Primary == "" {
		return nil
	}
	out := make([]string, 0, 1+len(pc.Parallels))
	out = append(out, pc.Primary)
	out = append(out, pc.Parallels...)
	return out
}

var (
	// caseNameRe matches an "X v. Y" style name at the end of the text that
	// precedes the first citation. Also covers In re / Matter of / Estate of.
	// Party names are runs of capitalized words with lowercase connectors
	// (of, the, and, ex rel.) allowed mid-name, so surrounding prose like
	// "the rule announced in" is never swallowed into the name.
	caseNameRe = regexp.MustCompile(`((?:In re |In the Matter of |Matter of |Estate of )[A-Z][A-Za-z0-9'.\- ]+|[A-Z][A-Za-z0-9'.\-&]*(?:\s+(?:of|the|and|ex|rel\.|[A-Z][A-Za-z0-9'.\-&]*))*\s+v\.?\s+[A-Z][A-Za-z0-9'.\-&]*(?:\s+(?:of|the|and|ex|rel\.|[A-Z][A-Za-z0-9'.\-&]*))*)[,.]?\s*$`)

	yearRe    = regexp.MustCompile(`\((\d{4})\)`)
	docketRe  = regexp.MustCompile(`No\.\s*([A-Za-z0-9][A-Za-z0-9\-\.]*)`)
	historyRe = regexp.MustCompile(`\(([A-Z][A-Za-z]*(?:\s+[A-Z][A-Za-z]*)*\s+(?:VIII|VII|VI|IV|IX|III|II|I|V|X))\)`)
	statusRe  = regexp.MustCompile(`(?i)\((unpublished|published|memorandum|per curiam)\)`)

	// pinpointRe matches ", 283" style bare integers after a citation.
	pinpointRe = regexp.MustCompile(`^\s*,\s*(\d{1,5})`)

	// shortFormRe flags id./supra short citations so they are kept and
	// flagged rather than silently dropped.
	shortFormRe = regexp.MustCompile(`\b(?:[Ii]d\.|[Ss]upra)\b`)

	sentenceBoundary = regexp.MustCompile(`[.;!?]\s`)
)

// blockGap is the maximum distance, in bytes, between two raw matches that
// still belong to the same citation block.
const blockGap = 48

// nameLookback is how far before a block's first citation the parser searches
// for a case name.
const nameLookback = 140

// tailWindow is how far past the last citation trailing year, docket, history
// and status markers are collected.
const tailWindow = 90

// Parser builds ParsedCitation records from raw text.
type Parser struct {
	extractor *extract.Extractor
	norm      *normalize.Normalizer
	logger    *zap.Logger
}

// New returns a Parser.
func New(extractor *extract.Extractor, norm *normalize.Normalizer, logger *zap.Logger) *Parser {
	return &Parser{extractor: extractor, norm: norm, logger: logger}
}

// ParseDocument extracts raw matches from the whole document, groups nearby
// matches into citation blocks, and parses each block. Per-candidate failures
// skip only the offending candidate, never the document.
func (p *Parser) ParseDocument(text string) []ParsedCitation {
	matches := p.extractor.Extract(text)
	if len(matches) == 0 {
		return nil
	}

	var cites []ParsedCitation
	for _, group := range groupBlocks(matches) {
		lo := group[0].Start - nameLookback
		if lo < 0 {
			lo = 0
		}
		// Do not reach back across a sentence boundary for the case name.
		if idx := lastBoundary(text[lo:group[0].Start]); idx >= 0 {
			lo += idx
		}
		hi := group[len(group)-1].End + tailWindow
		if hi > len(text) {
			hi = len(text)
		}

		pc := p.parseBlock(text[lo:hi], group, lo)
		pc.Context = contextAround(text, group[0].Start, group[len(group)-1].End)
		cites = append(cites, pc)
	}
	return cites
}

// Parse parses a standalone citation block. It never fails: when nothing in
// the text matches, a minimally populated record is returned.
func (p *Parser) Parse(text string) ParsedCitation {
	matches := p.extractor.Extract(text)
	if len(matches) == 0 {
		return ParsedCitation{FullText: strings.TrimSpace(text), Context: strings.TrimSpace(text)}
	}
	pc := p.parseBlock(text, matches, 0)
	pc.Context = strings.TrimSpace(text)
	return pc
}

// parseBlock assembles one ParsedCitation from a block of text and the raw
// matches inside it. offset is the block's position in the original document;
// match offsets are absolute, component spans are block-relative.
func (p *Parser) parseBlock(block string, matches []extract.RawMatch, offset int) ParsedCitation {
	pc := ParsedCitation{FullText: strings.TrimSpace(block)}

	var comps []Component
	for i, m := range matches {
		start, end := m.Start-offset, m.End-offset
		if start < 0 || end > len(block) {
			continue // defensive: match drifted outside the block
		}
		text := p.norm.Normalize(m.MatchedText)
		if i == 0 {
			pc.Primary = text
			comps = append(comps, Component{Kind: KindPrimary, Value: text, Start: start, End: end})
		} else if text != pc.Primary {
			pc.Parallels = append(pc.Parallels, text)
			comps = append(comps, Component{Kind: KindParallel, Value: text, Start: start, End: end})
		}

		// Pinpoint pages: bare comma-separated integers directly after the
		// citation that are not the volume of the next citation.
		tail := block[end:]
		consumed := 0
		for {
			sub := pinpointRe.FindStringSubmatchIndex(tail[consumed:])
			if sub == nil {
				break
			}
			numStart := end + consumed + sub[2]
			if i+1 < len(matches) && numStart+offset >= matches[i+1].Start {
				break // that integer is the next citation's volume
			}
			page := tail[consumed+sub[2] : consumed+sub[3]]
			pc.PinpointPages = append(pc.PinpointPages, page)
			comps = append(comps, Component{
				Kind:  KindPinpoint,
				Value: page,
				Start: numStart,
				End:   numStart + len(page),
			})
			consumed += sub[1]
		}
	}

	if pc.Primary != "" {
		firstStart := matches[0].Start - offset
		if firstStart > 0 {
			pc.CaseName = extractCaseName(block[:firstStart])
		}
	}

	lastEnd := matches[len(matches)-1].End - offset
	if lastEnd < 0 || lastEnd > len(block) {
		lastEnd = 0
	}
	tail := block[lastEnd:]

	if m := yearRe.FindStringSubmatch(tail); m != nil {
		if y, err := strconv.Atoi(m[1]); err == nil && y >= 1600 && y <= 2100 {
			pc.Year = m[1]
		}
	}
	for _, m := range docketRe.FindAllStringSubmatchIndex(block, -1) {
		v := block[m[2]:m[3]]
		pc.DocketNumbers = append(pc.DocketNumbers, v)
		comps = append(comps, Component{Kind: KindDocket, Value: v, Start: m[2], End: m[3]})
	}
	for _, m := range historyRe.FindAllStringSubmatchIndex(tail, -1) {
		v := tail[m[2]:m[3]]
		pc.CaseHistory = append(pc.CaseHistory, v)
		comps = append(comps, Component{Kind: KindHistory, Value: v, Start: lastEnd + m[2], End: lastEnd + m[3]})
	}
	if m := statusRe.FindStringSubmatchIndex(tail); m != nil {
		v := strings.ToLower(tail[m[2]:m[3]])
		pc.PublicationStatus = v
		comps = append(comps, Component{Kind: KindStatus, Value: v, Start: lastEnd + m[2], End: lastEnd + m[3]})
	}

	pc.Components = comps
	return pc
}

// extractCaseName pulls an "X v. Y" (or In re style) name from the text that
// immediately precedes a citation, bounded by the nearest sentence boundary.
func extractCaseName(prefix string) string {
	prefix = strings.TrimRight(prefix, " \t\n,")
	if shortFormRe.MatchString(prefix) && len(strings.Fields(prefix)) <= 2 {
		// id./supra short forms carry no usable name.
		return ""
	}
	m := caseNameRe.FindStringSubmatch(prefix)
	if m == nil {
		return ""
	}
	name := strings.TrimSpace(m[1])
	name = strings.TrimLeft(name, ",")
	// Strip leading signal words that leak into the capture.
	for _, sig := range []string{"See also ", "See ", "Accord ", "But see ", "Cf. ", "E.g. ", "Citing "} {
		if strings.HasPrefix(name, sig) {
			name = name[len(sig):]
		}
	}
	return strings.TrimSpace(name)
}

// groupBlocks splits raw matches into runs whose gaps are small enough to be
// one citation block.
func groupBlocks(matches []extract.RawMatch) [][]extract.RawMatch {
	var groups [][]extract.RawMatch
	current := []extract.RawMatch{matches[0]}
	for _, m := range matches[1:] {
		prev := current[len(current)-1]
		if m.Start-prev.End <= blockGap {
			current = append(current, m)
		} else {
			groups = append(groups, current)
			current = []extract.RawMatch{m}
		}
	}
	return append(groups, current)
}

func lastBoundary(s string) int {
	locs := sentenceBoundary.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		return -1
	}
	return locs[len(locs)-1][1]
}

func contextAround(text string, start, end int) string {
	lo := start - extract.ContextRadius
	if lo < 0 {
		lo = 0
	}
	hi := end + extract.ContextRadius
	if hi > len(text) {
		hi = len(text)
	}
	return text[lo:hi]
}
