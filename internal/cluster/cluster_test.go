package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lexcite/citecheck/internal/citeparse"
)

func TestIsStatutory(t *testing.T) {
	statutes := []string{
		"28 U.S.C. § 1331",
		"42 U.S.C. 1983",
		"29 C.F.R. § 1604.11",
		"RCW 9A.52.030",
		"WAC 296-126-092",
	}
	for _, s := range statutes {
		assert.True(t, IsStatutory(s), s)
	}

	cases := []string{
		"410 U.S. 113",
		"146 Wn.2d 1",
		"State v. Gunwall, 106 Wn.2d 54",
	}
	for _, s := range cases {
		assert.False(t, IsStatutory(s), s)
	}
}

func TestClusterByURL(t *testing.T) {
	c := New(0, 0, zaptest.NewLogger(t))

	cites := []*citeparse.ParsedCitation{
		{FullText: "106 Wn.2d 54", Primary: "106 Wn.2d 54"},
		{FullText: "720 P.2d 808", Primary: "720 P.2d 808"},
		{FullText: "410 U.S. 113", Primary: "410 U.S. 113"},
	}
	urls := map[int]string{
		0: "/opinion/gunwall/",
		1: "/opinion/gunwall/",
		2: "/opinion/roe/",
	}

	clusters := c.Cluster(cites, urls)
	require.Len(t, clusters, 2)
	assert.Equal(t, []int{0, 1}, clusters[0].MemberIdx)
	assert.Equal(t, "/opinion/gunwall/", clusters[0].CanonicalURL)
	assert.Equal(t, []int{2}, clusters[1].MemberIdx)
}

func TestClusterByNameAndContext(t *testing.T) {
	c := New(0, 0, zaptest.NewLogger(t))

	ctx := "the right to counsel attaches at custodial interrogation per"
	cites := []*citeparse.ParsedCitation{
		{FullText: "384 U.S. 436", Primary: "384 U.S. 436", CaseName: "Miranda v. Arizona", Context: ctx},
		{FullText: "86 S. Ct. 1602", Primary: "86 S. Ct. 1602", CaseName: "Miranda v. Arizona", Context: ctx},
	}

	clusters := c.Cluster(cites, nil)
	require.Len(t, clusters, 1)
	assert.Equal(t, []int{0, 1}, clusters[0].MemberIdx)
}

func TestClusterDifferentContextsStaySeparate(t *testing.T) {
	c := New(0, 0, zaptest.NewLogger(t))

	// Same-looking names in unrelated discussions must not merge.
	cites := []*citeparse.ParsedCitation{
		{FullText: "1 Wn.2d 1", Primary: "1 Wn.2d 1", CaseName: "State v. Johnson",
			Context: "sentencing enhancement for firearm possession during the offense"},
		{FullText: "2 Wn.2d 2", Primary: "2 Wn.2d 2", CaseName: "State v. Johnson",
			Context: "admissibility of hearsay statements by unavailable witnesses"},
	}

	clusters := c.Cluster(cites, nil)
	assert.Len(t, clusters, 2)
}

func TestClusterDropsStatutoryAndEmpty(t *testing.T) {
	c := New(0, 0, zaptest.NewLogger(t))

	cites := []*citeparse.ParsedCitation{
		{FullText: "28 U.S.C. § 1331", Primary: "28 U.S.C. § 1331"},
		nil,
		{FullText: "no primary here"},
		{FullText: "410 U.S. 113", Primary: "410 U.S. 113"},
	}

	clusters := c.Cluster(cites, nil)
	require.Len(t, clusters, 1)
	assert.Equal(t, []int{3}, clusters[0].MemberIdx)
}

func TestNameSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, NameSimilarity("State v. Gunwall", "State v. Gunwall"))
	assert.Equal(t, 1.0, NameSimilarity("State v. Gunwall", "state v gunwall"))

	related := NameSimilarity("State v. Gunwall", "Gunwall")
	unrelated := NameSimilarity("Miranda v. Arizona", "Roe v. Wade")
	assert.Greater(t, related, unrelated)
	assert.Less(t, unrelated, 0.3)

	assert.Equal(t, 0.0, NameSimilarity("", "State v. Gunwall"))
	assert.Equal(t, 0.0, NameSimilarity("State v. Gunwall", ""))
}

func TestNameSimilaritySignalWords(t *testing.T) {
	// A leading signal word does not change the name.
	assert.Equal(t, 1.0, NameSimilarity("See Roe v. Wade", "Roe v. Wade"))
}

func TestContextSimilarity(t *testing.T) {
	a := "custodial interrogation requires Miranda warnings before questioning"
	assert.Equal(t, 1.0, ContextSimilarity(a, a))
	assert.Equal(t, 0.0, ContextSimilarity(a, ""))

	b := "property tax assessments are reviewed for abuse of discretion"
	assert.Less(t, ContextSimilarity(a, b), 0.2)
}

func TestBestCanonical(t *testing.T) {
	sparse := CanonicalMeta{Name: "Roe v. Wade"}
	full := CanonicalMeta{Name: "Roe v. Wade", Date: "1973-01-22", Court: "scotus",
		Docket: "70-18", URL: "/opinion/roe/"}

	assert.Equal(t, full, BestCanonical([]CanonicalMeta{sparse, full}))

	// Service-confirmed metadata wins a field-count tie.
	local := CanonicalMeta{Name: "Roe v. Wade", Date: "1973-01-22"}
	service := CanonicalMeta{Name: "Roe v. Wade", URL: "/opinion/roe/", FromService: true}
	assert.Equal(t, service, BestCanonical([]CanonicalMeta{local, service}))
}

func TestPropagateSetsFieldsOnce(t *testing.T) {
	cl := &Cluster{CanonicalURL: "/opinion/kept/"}
	cl.Propagate([]CanonicalMeta{{Name: "Roe v. Wade", URL: "/opinion/other/", Date: "1973-01-22"}})

	assert.Equal(t, "/opinion/kept/", cl.CanonicalURL, "an already-set canonical field is immutable")
	assert.Equal(t, "Roe v. Wade", cl.CanonicalName)
	assert.Equal(t, "1973-01-22", cl.CanonicalDate)
}
