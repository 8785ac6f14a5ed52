package verify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lexcite/citecheck/internal/citeparse"
	"github.com/lexcite/citecheck/internal/cluster"
)

// fakeVerifier resolves citations from a fixed table; anything absent is
// unverified/not-found.
type fakeVerifier struct {
	mu      sync.Mutex
	results map[string]Result
	delay   time.Duration
	calls   []string
}

func (f *fakeVerifier) Verify(ctx context.Context, citation string) Result {
	f.mu.Lock()
	f.calls = append(f.calls, citation)
	res, ok := f.results[citation]
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return Result{Citation: citation, Verdict: VerdictUnverified, ErrorKind: ErrKindTransport}
		case <-time.After(f.delay):
		}
	}
	if !ok {
		return Result{Citation: citation, Verdict: VerdictUnverified,
			Source: SourceLookupService, ErrorKind: ErrKindNotFound}
	}
	res.Citation = citation
	return res
}

func newTestOrchestrator(t *testing.T, f *fakeVerifier, cfg OrchestratorConfig) *Orchestrator {
	t.Helper()
	logger := zaptest.NewLogger(t)
	return NewOrchestrator(f, cluster.New(0, 0, logger), cfg, logger)
}

func verified(name, date, url string) Result {
	return Result{
		Verdict:       VerdictVerified,
		CanonicalName: name,
		CanonicalDate: date,
		URL:           url,
		Source:        SourceLookupService,
		Confidence:    1.0,
	}
}

func TestVerifyBatchPromotesParallel(t *testing.T) {
	f := &fakeVerifier{results: map[string]Result{
		"720 P.2d 808": verified("State v. Gunwall", "1986-06-12", "/opinion/gunwall/"),
	}}
	o := newTestOrchestrator(t, f, OrchestratorConfig{})

	pc := &citeparse.ParsedCitation{
		FullText:  "State v. Gunwall, 106 Wn.2d 54, 720 P.2d 808 (1986)",
		CaseName:  "State v. Gunwall",
		Primary:   "106 Wn.2d 54",
		Parallels: []string{"720 P.2d 808"},
	}

	out := o.VerifyBatch(context.Background(), []*citeparse.ParsedCitation{pc})
	require.Len(t, out, 1)

	primary := out[0].Primary
	assert.Equal(t, VerdictByParallel, primary.Verdict)
	assert.Equal(t, "State v. Gunwall", primary.CanonicalName)
	assert.Equal(t, "1986-06-12", primary.CanonicalDate)
	assert.Equal(t, "/opinion/gunwall/", primary.URL)
	assert.Equal(t, "720 P.2d 808", primary.VerifiedBy)
	assert.Equal(t, SourceParallel, primary.Source)
	assert.InDelta(t, 0.9, primary.Confidence, 1e-9)
	assert.Equal(t, ErrKindNone, primary.ErrorKind)
	assert.Empty(t, primary.Error)

	require.Len(t, out[0].Parallels, 1)
	assert.Equal(t, VerdictVerified, out[0].Parallels[0].Verdict)
}

func TestVerifyBatchEveryMemberVerifiedIndependently(t *testing.T) {
	f := &fakeVerifier{results: map[string]Result{
		"106 Wn.2d 54": verified("State v. Gunwall", "1986-06-12", "/opinion/gunwall/"),
		"720 P.2d 808": verified("State v. Gunwall", "1986-06-12", "/opinion/gunwall/"),
	}}
	o := newTestOrchestrator(t, f, OrchestratorConfig{})

	pc := &citeparse.ParsedCitation{
		FullText:  "106 Wn.2d 54, 720 P.2d 808",
		Primary:   "106 Wn.2d 54",
		Parallels: []string{"720 P.2d 808"},
	}
	o.VerifyBatch(context.Background(), []*citeparse.ParsedCitation{pc})

	// A verified primary never short-circuits the parallels.
	assert.ElementsMatch(t, []string{"106 Wn.2d 54", "720 P.2d 808"}, f.calls)
}

func TestVerifyBatchNoPromotionWithoutDonor(t *testing.T) {
	f := &fakeVerifier{results: map[string]Result{}}
	o := newTestOrchestrator(t, f, OrchestratorConfig{})

	pc := &citeparse.ParsedCitation{
		FullText: "999 Wn.2d 999", Primary: "999 Wn.2d 999",
	}
	out := o.VerifyBatch(context.Background(), []*citeparse.ParsedCitation{pc})

	assert.Equal(t, VerdictUnverified, out[0].Primary.Verdict)
	assert.Equal(t, ErrKindNotFound, out[0].Primary.ErrorKind,
		"clusters without a verified member keep their failure detail")
}

func TestVerifyBatchPromotesAcrossRecords(t *testing.T) {
	// Two separate references to the same case: one resolves, the other
	// inherits through the cluster.
	f := &fakeVerifier{results: map[string]Result{
		"106 Wn.2d 54": verified("State v. Gunwall", "1986-06-12", "/opinion/gunwall/"),
	}}
	o := newTestOrchestrator(t, f, OrchestratorConfig{})

	ctxText := "independent state constitutional grounds require briefing of the Gunwall factors"
	cites := []*citeparse.ParsedCitation{
		{FullText: "106 Wn.2d 54", Primary: "106 Wn.2d 54",
			CaseName: "State v. Gunwall", Context: ctxText},
		{FullText: "720 P.2d 808", Primary: "720 P.2d 808",
			CaseName: "State v. Gunwall", Context: ctxText},
	}

	out := o.VerifyBatch(context.Background(), cites)
	assert.Equal(t, VerdictVerified, out[0].Primary.Verdict)
	assert.Equal(t, VerdictByParallel, out[1].Primary.Verdict)
	assert.Equal(t, "106 Wn.2d 54", out[1].Primary.VerifiedBy)
}

func TestVerifyBatchPreservesInputOrder(t *testing.T) {
	texts := []string{"1 Wn.2d 1", "2 Wn.2d 2", "3 Wn.2d 3", "4 Wn.2d 4", "5 Wn.2d 5"}
	results := make(map[string]Result, len(texts))
	for _, txt := range texts {
		results[txt] = verified("Case "+txt, "2000-01-01", "/opinion/"+txt)
	}
	f := &fakeVerifier{results: results, delay: time.Millisecond}
	o := newTestOrchestrator(t, f, OrchestratorConfig{MaxWorkers: 3})

	var cites []*citeparse.ParsedCitation
	for i, txt := range texts {
		cites = append(cites, &citeparse.ParsedCitation{
			FullText: txt, Primary: txt,
			CaseName: "Case " + txt,
			Context:  "context " + texts[i],
		})
	}

	out := o.VerifyBatch(context.Background(), cites)
	require.Len(t, out, len(texts))
	for i, txt := range texts {
		assert.Equal(t, txt, out[i].Primary.Citation, "results follow input order")
		assert.Equal(t, VerdictVerified, out[i].Primary.Verdict)
	}
}

func TestVerifyBatchBudgetExhaustion(t *testing.T) {
	f := &fakeVerifier{results: map[string]Result{}, delay: 300 * time.Millisecond}
	o := newTestOrchestrator(t, f, OrchestratorConfig{BatchBudget: 25 * time.Millisecond})

	cites := []*citeparse.ParsedCitation{
		{FullText: "1 Wn.2d 1", Primary: "1 Wn.2d 1"},
		{FullText: "2 Wn.2d 2", Primary: "2 Wn.2d 2"},
	}
	out := o.VerifyBatch(context.Background(), cites)

	for i := range out {
		assert.Equal(t, VerdictUnverified, out[i].Primary.Verdict)
		assert.Equal(t, ErrKindTimeout, out[i].Primary.ErrorKind)
	}
}

func TestVerifyBatchSkipsEmptyRecords(t *testing.T) {
	f := &fakeVerifier{results: map[string]Result{}}
	o := newTestOrchestrator(t, f, OrchestratorConfig{})

	out := o.VerifyBatch(context.Background(), []*citeparse.ParsedCitation{
		nil,
		{FullText: "prose without a citation"},
	})
	require.Len(t, out, 2)
	assert.Empty(t, f.calls)
	assert.Nil(t, out[0].AllResults())
	assert.Nil(t, out[1].AllResults())
}

func TestOrchestratorWorkerCap(t *testing.T) {
	o := newTestOrchestrator(t, &fakeVerifier{}, OrchestratorConfig{MaxWorkers: 50})
	assert.Equal(t, MaxWorkersCap, o.cfg.MaxWorkers)
}
