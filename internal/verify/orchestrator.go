package verify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lexcite/citecheck/internal/citeparse"
	"github.com/lexcite/citecheck/internal/cluster"
	"github.com/lexcite/citecheck/internal/metrics"
)

// MaxWorkersCap bounds the verification worker pool regardless of batch size.
const MaxWorkersCap = 10

// Verifier verifies a single citation text. Satisfied by *Client.
type Verifier interface {
	Verify(ctx context.Context, citation string) Result
}

// CitationOutcome pairs one parsed citation with the verification results of
// all its members. Primary mirrors the parsed record's primary citation;
// Parallels are index-aligned with the record's parallel list.
type CitationOutcome struct {
	Citation  *citeparse.ParsedCitation
	Primary   Result
	Parallels []Result
}

// AllResults returns pointers to every member result, primary first.
func (o *CitationOutcome) AllResults() []*Result {
	if o.Citation == nil || o.Citation.Primary == "" {
		return nil
	}
	out := make([]*Result, 0, 1+len(o.Parallels))
	out = append(out, &o.Primary)
	for i := range o.Parallels {
		out = append(out, &o.Parallels[i])
	}
	return out
}

// OrchestratorConfig bounds batch verification.
type OrchestratorConfig struct {
	// MaxWorkers caps the worker pool; effective workers = min(MaxWorkers, jobs).
	MaxWorkers int
	// BatchBudget is the wall-clock budget for a whole batch. Zero disables
	// the budget. Citations unfinished at the deadline report
	// verified=false with a timeout error.
	BatchBudget time.Duration
}

// Orchestrator verifies batches of parsed citations with bounded concurrency
// and applies parallel-citation fallback within clusters.
type Orchestrator struct {
	verifier  Verifier
	clusterer *cluster.Clusterer
	cfg       OrchestratorConfig
	logger    *zap.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(verifier Verifier, clusterer *cluster.Clusterer, cfg OrchestratorConfig, logger *zap.Logger) *Orchestrator {
	if cfg.MaxWorkers <= 0 || cfg.MaxWorkers > MaxWorkersCap {
		cfg.MaxWorkers = MaxWorkersCap
	}
	return &Orchestrator{verifier: verifier, clusterer: clusterer, cfg: cfg, logger: logger}
}

// job is one member citation to verify, addressed by outcome slot.
type job struct {
	citeIdx  int
	parallel int // -1 for the primary
	text     string
}

// VerifyBatch verifies every member citation (primary and parallels)
// independently and concurrently; no member is skipped because another
// succeeded. Results are re-associated with input order behind a barrier
// before parallel-citation promotion runs, so callers never observe worker
// interleaving.
func (o *Orchestrator) VerifyBatch(ctx context.Context, cites []*citeparse.ParsedCitation) []CitationOutcome {
	outcomes := make([]CitationOutcome, len(cites))
	var jobs []job
	for i, pc := range cites {
		outcomes[i].Citation = pc
		if pc == nil || pc.Primary == "" {
			continue
		}
		outcomes[i].Parallels = make([]Result, len(pc.Parallels))
		jobs = append(jobs, job{citeIdx: i, parallel: -1, text: pc.Primary})
		for p, par := range pc.Parallels {
			jobs = append(jobs, job{citeIdx: i, parallel: p, text: par})
		}
	}
	if len(jobs) == 0 {
		return outcomes
	}

	if o.cfg.BatchBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.BatchBudget)
		defer cancel()
	}

	workers := o.cfg.MaxWorkers
	if len(jobs) < workers {
		workers = len(jobs)
	}

	jobCh := make(chan job)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobCh {
				var res Result
				if ctx.Err() != nil {
					res = timeoutResult(j.text)
				} else {
					res = o.verifier.Verify(ctx, j.text)
					if ctx.Err() != nil && res.Verdict != VerdictVerified {
						res = timeoutResult(j.text)
					}
				}
				// Each job writes only its own slot; no lock needed.
				if j.parallel < 0 {
					outcomes[j.citeIdx].Primary = res
				} else {
					outcomes[j.citeIdx].Parallels[j.parallel] = res
				}
			}
		}()
	}
	for _, j := range jobs {
		jobCh <- j
	}
	close(jobCh)
	wg.Wait() // barrier: promotion only runs over the complete result set

	o.promoteParallels(cites, outcomes)

	for i := range outcomes {
		for _, r := range outcomes[i].AllResults() {
			metrics.RecordVerification(string(r.Verdict))
		}
	}
	return outcomes
}

// promoteParallels applies cluster-level fallback: any unverified member of a
// cluster containing a verified member is promoted to verified_by_parallel
// and inherits the donor's canonical fields. Clusters with zero verified
// members are left untouched.
func (o *Orchestrator) promoteParallels(cites []*citeparse.ParsedCitation, outcomes []CitationOutcome) {
	urls := make(map[int]string, len(cites))
	for i := range outcomes {
		for _, r := range outcomes[i].AllResults() {
			if r.Verified() && r.URL != "" {
				urls[i] = r.URL
				break
			}
		}
	}

	for _, cl := range o.clusterer.Cluster(cites, urls) {
		var members []*Result
		var metas []cluster.CanonicalMeta
		for _, idx := range cl.MemberIdx {
			for _, r := range outcomes[idx].AllResults() {
				members = append(members, r)
				if r.Verified() {
					metas = append(metas, cluster.CanonicalMeta{
						Name:        r.CanonicalName,
						Date:        r.CanonicalDate,
						Court:       r.Court,
						Docket:      r.DocketNumber,
						URL:         r.URL,
						FromService: r.Source == SourceLookupService,
					})
				}
			}
		}
		if len(metas) == 0 {
			continue
		}
		cl.Propagate(metas)

		donor := o.pickDonor(members)
		if donor == nil {
			continue
		}
		for _, r := range members {
			if r.Verdict != VerdictUnverified {
				continue
			}
			r.Verdict = VerdictByParallel
			r.CanonicalName = donor.CanonicalName
			r.CanonicalDate = donor.CanonicalDate
			r.URL = donor.URL
			r.Court = donor.Court
			r.DocketNumber = donor.DocketNumber
			r.Source = SourceParallel
			r.VerifiedBy = donor.Citation
			r.Confidence = donor.Confidence * 0.9
			r.ErrorKind = ErrKindNone
			r.Error = ""
			o.logger.Debug("Citation verified by parallel",
				zap.String("citation", r.Citation),
				zap.String("parallel", donor.Citation))
		}
	}
}

// pickDonor chooses the verified member that supplies the proof, preferring
// lookup-service confirmations over local fallbacks.
func (o *Orchestrator) pickDonor(members []*Result) *Result {
	var donor *Result
	for _, r := range members {
		if !r.Verified() {
			continue
		}
		if donor == nil {
			donor = r
			continue
		}
		if donor.Source != SourceLookupService && r.Source == SourceLookupService {
			donor = r
		}
	}
	return donor
}

func timeoutResult(text string) Result {
	return Result{
		Citation:  text,
		Verdict:   VerdictUnverified,
		ErrorKind: ErrKindTimeout,
		Error:     "batch verification budget exhausted",
	}
}
