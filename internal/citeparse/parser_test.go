package citeparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lexcite/citecheck/internal/extract"
	"github.com/lexcite/citecheck/internal/normalize"
	"github.com/lexcite/citecheck/internal/reporter"
)

func newParser(t *testing.T) *Parser {
	t.Helper()
	logger := zaptest.NewLogger(t)
	lib := reporter.Load(logger)
	norm := normalize.New(lib)
	return New(extract.New(lib, norm, logger), norm, logger)
}

func TestParseComplexCitation(t *testing.T) {
	p := newParser(t)

	pc := p.Parse("State v. Doe, 199 Wn. App. 280, 283, 399 P.3d 1195 (2017) (Doe I).")

	assert.Equal(t, "State v. Doe", pc.CaseName)
	assert.Equal(t, "199 Wn. App. 280", pc.Primary)
	assert.Equal(t, []string{"399 P.3d 1195"}, pc.Parallels)
	assert.Equal(t, []string{"283"}, pc.PinpointPages)
	assert.Equal(t, "2017", pc.Year)
	assert.Equal(t, []string{"Doe I"}, pc.CaseHistory)
	assert.True(t, pc.IsComplex())
	assert.Equal(t, []string{"199 Wn. App. 280", "399 P.3d 1195"}, pc.Members())

	kinds := make(map[ComponentKind]int)
	for _, c := range pc.Components {
		kinds[c.Kind]++
	}
	assert.Equal(t, 1, kinds[KindPrimary])
	assert.Equal(t, 1, kinds[KindParallel])
	assert.Equal(t, 1, kinds[KindPinpoint])
	assert.Equal(t, 1, kinds[KindHistory])
}

func TestParsePinpointVsNextVolume(t *testing.T) {
	p := newParser(t)

	// "9" is a pinpoint page; "43" is the next citation's volume and must not
	// be swallowed as a second pinpoint.
	pc := p.Parse("State v. Gunwall, 106 Wn.2d 54, 9, 43 P.3d 4 (1986)")

	assert.Equal(t, "106 Wn.2d 54", pc.Primary)
	assert.Equal(t, []string{"43 P.3d 4"}, pc.Parallels)
	assert.Equal(t, []string{"9"}, pc.PinpointPages)
	assert.Equal(t, "State v. Gunwall", pc.CaseName)
	assert.Equal(t, "1986", pc.Year)
}

func TestParseDocketAndStatus(t *testing.T) {
	p := newParser(t)

	pc := p.Parse("In re Pers. Restraint of Yates, 177 Wn.2d 1, 296 P.3d 872 (2013), No. 86896-1 (per curiam)")

	assert.Equal(t, "In re Pers. Restraint of Yates", pc.CaseName)
	assert.Equal(t, "177 Wn.2d 1", pc.Primary)
	assert.Equal(t, []string{"296 P.3d 872"}, pc.Parallels)
	assert.Equal(t, "2013", pc.Year)
	assert.Equal(t, []string{"86896-1"}, pc.DocketNumbers)
	assert.Equal(t, "per curiam", pc.PublicationStatus)
}

func TestParseSignalWordStripped(t *testing.T) {
	p := newParser(t)

	tests := []struct {
		text string
		name string
	}{
		{"See Roe v. Wade, 410 U.S. 113 (1973)", "Roe v. Wade"},
		{"See also Brown v. Board of Education, 347 U.S. 483 (1954)", "Brown v. Board of Education"},
		{"Accord Miranda v. Arizona, 384 U.S. 436 (1966)", "Miranda v. Arizona"},
	}
	for _, tt := range tests {
		pc := p.Parse(tt.text)
		assert.Equal(t, tt.name, pc.CaseName, "text %q", tt.text)
	}
}

func TestParseBareCitation(t *testing.T) {
	p := newParser(t)

	pc := p.Parse("410 U.S. 113")
	assert.Equal(t, "410 U.S. 113", pc.Primary)
	assert.Empty(t, pc.CaseName)
	assert.Empty(t, pc.Parallels)
	assert.False(t, pc.IsComplex())
}

func TestParseNeverFails(t *testing.T) {
	p := newParser(t)

	pc := p.Parse("no citations in this text at all")
	assert.Empty(t, pc.Primary)
	assert.Nil(t, pc.Members())
	assert.Equal(t, "no citations in this text at all", pc.FullText)
}

func TestParseDocumentGroupsBlocks(t *testing.T) {
	p := newParser(t)

	doc := "Miranda v. Arizona, 384 U.S. 436, 444, 86 S. Ct. 1602 (1966), governs custodial interrogation. " +
		"The state constitution can demand more. State v. Gunwall, 106 Wn.2d 54, 720 P.2d 808 (1986)."

	cites := p.ParseDocument(doc)
	require.Len(t, cites, 2)

	assert.Equal(t, "Miranda v. Arizona", cites[0].CaseName)
	assert.Equal(t, "384 U.S. 436", cites[0].Primary)
	assert.Equal(t, []string{"86 S. Ct. 1602"}, cites[0].Parallels)
	assert.Equal(t, []string{"444"}, cites[0].PinpointPages)
	assert.Equal(t, "1966", cites[0].Year)

	assert.Equal(t, "State v. Gunwall", cites[1].CaseName)
	assert.Equal(t, "106 Wn.2d 54", cites[1].Primary)
	assert.Equal(t, []string{"720 P.2d 808"}, cites[1].Parallels)
	assert.Equal(t, "1986", cites[1].Year)

	assert.NotEmpty(t, cites[0].Context)
	assert.NotEmpty(t, cites[1].Context)
}

func TestParseDuplicateMemberCollapses(t *testing.T) {
	p := newParser(t)

	// The same citation repeated inside one block never appears as its own
	// parallel.
	pc := p.Parse("410 U.S. 113, 410 US 113")
	assert.Equal(t, "410 U.S. 113", pc.Primary)
	assert.Empty(t, pc.Parallels)
}
