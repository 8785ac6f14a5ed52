// Package service is the core's exposed surface: the full document pipeline
// (extract, parse, cluster, verify, correct) behind two calls. The web layer
// that routes requests to it lives outside this module.
package service

import (
	"context"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lexcite/citecheck/internal/cache"
	"github.com/lexcite/citecheck/internal/circuitbreaker"
	"github.com/lexcite/citecheck/internal/citeparse"
	"github.com/lexcite/citecheck/internal/cluster"
	"github.com/lexcite/citecheck/internal/config"
	"github.com/lexcite/citecheck/internal/correction"
	"github.com/lexcite/citecheck/internal/corpus"
	"github.com/lexcite/citecheck/internal/extract"
	"github.com/lexcite/citecheck/internal/metrics"
	"github.com/lexcite/citecheck/internal/normalize"
	"github.com/lexcite/citecheck/internal/reporter"
	"github.com/lexcite/citecheck/internal/verify"
)

// Stats summarizes one document-processing pass.
type Stats struct {
	Total              int `json:"total"`
	Verified           int `json:"verified"`
	VerifiedByParallel int `json:"verified_by_parallel"`
	ComplexCount       int `json:"complex_count"`
}

// CitationReport is one citation record with its verification results:
// the primary result with parallels attached.
type CitationReport struct {
	CaseName  string          `json:"case_name,omitempty"`
	FullText  string          `json:"full_text"`
	Year      string          `json:"year,omitempty"`
	Primary   verify.Result   `json:"primary"`
	Parallels []verify.Result `json:"parallels,omitempty"`
}

// DocumentReport is the result of processing one document.
type DocumentReport struct {
	Citations []CitationReport `json:"citations"`
	Stats     Stats            `json:"stats"`
}

// Service wires the pipeline components together.
type Service struct {
	parser       *citeparse.Parser
	orchestrator *verify.Orchestrator
	engine       *correction.Engine
	store        *corpus.Store
	norm         *normalize.Normalizer
	logger       *zap.Logger
}

// New builds a Service from configuration. The corpus store is optional:
// when it cannot be opened the service still runs, with corrections degraded
// to rule-based suggestions.
func New(cfg *config.Config, logger *zap.Logger) (*Service, error) {
	lib := reporter.Load(logger)
	norm := normalize.New(lib)
	extractor := extract.New(lib, norm, logger)
	parser := citeparse.New(extractor, norm, logger)
	clusterer := cluster.New(cfg.Cluster.NameThreshold, cfg.Cluster.ContextThreshold, logger)

	breakers := circuitbreaker.NewRegistry(circuitbreaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		MinRequests:      cfg.Breaker.MinRequests,
		FailureRate:      cfg.Breaker.FailureRate,
		BaseResetTimeout: cfg.BaseReset(),
		MaxResetTimeout:  cfg.MaxReset(),
	}, logger)

	verifyCache := cache.New(cfg.Cache.RedisAddr, cfg.CacheTTL(), logger)

	client := verify.NewClient(verify.ClientConfig{
		BaseURL:        cfg.Lookup.URL,
		Token:          cfg.Lookup.Token,
		MaxAttempts:    cfg.Lookup.MaxAttempts,
		InitialTimeout: cfg.InitialTimeout(),
		MaxTimeout:     cfg.MaxTimeout(),
		BackoffFactor:  cfg.Lookup.BackoffFactor,
		RatePerSecond:  cfg.Lookup.RatePerSecond,
	}, breakers, verifyCache, lib, norm, logger)

	orchestrator := verify.NewOrchestrator(client, clusterer, verify.OrchestratorConfig{
		MaxWorkers:  cfg.Verify.MaxWorkers,
		BatchBudget: cfg.BatchBudget(),
	}, logger)

	var store *corpus.Store
	var corpusReader correction.CorpusReader
	if cfg.Correction.CorpusDSN != "" {
		s, err := corpus.Open(cfg.Correction.CorpusDSN, logger)
		if err != nil {
			logger.Warn("Correction corpus unavailable, corrections degraded", zap.Error(err))
		} else {
			store = s
			corpusReader = s
		}
	}

	engine := correction.New(corpusReader, lib, norm, cfg.Correction.SimilarityThreshold, logger)

	return &Service{
		parser:       parser,
		orchestrator: orchestrator,
		engine:       engine,
		store:        store,
		norm:         norm,
		logger:       logger,
	}, nil
}

// ProcessDocument runs the full pipeline over already-extracted plain text.
func (s *Service) ProcessDocument(ctx context.Context, text string) (*DocumentReport, error) {
	requestID := uuid.NewString()
	log := s.logger.With(zap.String("request_id", requestID))
	start := time.Now()

	parsed := s.parser.ParseDocument(text)

	// Statutory citations are never verified or clustered with case law.
	cites := make([]*citeparse.ParsedCitation, 0, len(parsed))
	for i := range parsed {
		if parsed[i].Primary == "" || cluster.IsStatutory(parsed[i].Primary) {
			log.Debug("Dropping statutory or empty citation", zap.String("text", parsed[i].FullText))
			continue
		}
		cites = append(cites, &parsed[i])
	}
	metrics.RecordDocument()
	metrics.RecordExtracted(len(cites))

	outcomes := s.orchestrator.VerifyBatch(ctx, cites)

	report := &DocumentReport{}
	for i := range outcomes {
		o := &outcomes[i]
		if o.Citation == nil || o.Citation.Primary == "" {
			continue
		}
		report.Citations = append(report.Citations, CitationReport{
			CaseName:  o.Citation.CaseName,
			FullText:  o.Citation.FullText,
			Year:      o.Citation.Year,
			Primary:   o.Primary,
			Parallels: o.Parallels,
		})
		report.Stats.Total++
		if o.Citation.IsComplex() {
			report.Stats.ComplexCount++
		}
		switch o.Primary.Verdict {
		case verify.VerdictVerified:
			report.Stats.Verified++
		case verify.VerdictByParallel:
			report.Stats.VerifiedByParallel++
		}
		s.remember(ctx, o)
	}

	log.Info("Document processed",
		zap.Int("citations", report.Stats.Total),
		zap.Int("verified", report.Stats.Verified),
		zap.Int("verified_by_parallel", report.Stats.VerifiedByParallel),
		zap.Int("complex", report.Stats.ComplexCount),
		zap.Duration("elapsed", time.Since(start)))
	return report, nil
}

// SuggestCorrections proposes fixes for a single citation string.
func (s *Service) SuggestCorrections(ctx context.Context, citationText string) []correction.Suggestion {
	return s.engine.Suggest(ctx, citationText)
}

// Close releases held resources.
func (s *Service) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

var memberRe = regexp.MustCompile(`^(\d{1,4}) (.+) (\d{1,5})$`)

// remember appends service-confirmed citations to the correction corpus.
// Best effort: failures are logged, never surfaced.
func (s *Service) remember(ctx context.Context, o *verify.CitationOutcome) {
	if s.store == nil {
		return
	}
	for _, r := range o.AllResults() {
		if !r.Verified() || r.Source != verify.SourceLookupService {
			continue
		}
		normalized := s.norm.Normalize(r.Citation)
		entry := corpus.Entry{
			Citation: normalized,
			CaseName: r.CanonicalName,
			URL:      r.URL,
		}
		if m := memberRe.FindStringSubmatch(normalized); m != nil {
			entry.Volume, entry.Reporter, entry.Page = m[1], m[2], m[3]
		}
		if err := s.store.Add(ctx, entry); err != nil {
			s.logger.Warn("Failed to record verified citation", zap.Error(err))
		}
	}
}
