// Package verify calls the external citation lookup service with retry,
// backoff and a per-endpoint circuit breaker, and orchestrates batch
// verification with bounded concurrency.
package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lexcite/citecheck/internal/cache"
	"github.com/lexcite/citecheck/internal/circuitbreaker"
	"github.com/lexcite/citecheck/internal/metrics"
	"github.com/lexcite/citecheck/internal/normalize"
	"github.com/lexcite/citecheck/internal/reporter"
)

// ClientConfig holds the lookup service endpoint and retry policy.
type ClientConfig struct {
	BaseURL string
	Token   string
	// MaxAttempts is the retry budget per citation variant.
	MaxAttempts int
	// InitialTimeout seeds the per-attempt timeout; each attempt multiplies
	// it by BackoffFactor, plus jitter, capped at MaxTimeout.
	InitialTimeout time.Duration
	MaxTimeout     time.Duration
	BackoffFactor  float64
	// RetryAfterCap bounds how long a 429 Retry-After is honored.
	RetryAfterCap time.Duration
	// RatePerSecond throttles outbound lookups; the service is rate-limited.
	RatePerSecond float64
	RateBurst     int
}

func (c *ClientConfig) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialTimeout <= 0 {
		c.InitialTimeout = 2 * time.Second
	}
	if c.MaxTimeout <= 0 {
		c.MaxTimeout = 10 * time.Second
	}
	if c.BackoffFactor <= 1 {
		c.BackoffFactor = 2.0
	}
	if c.RetryAfterCap <= 0 {
		c.RetryAfterCap = 10 * time.Second
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = 5
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 5
	}
}

// Client verifies single citations against the lookup service. One Client
// instance owns the breaker registry shared by all callers.
type Client struct {
	httpClient *http.Client
	cfg        ClientConfig
	breakers   *circuitbreaker.Registry
	limiter    *rate.Limiter
	cache      *cache.Cache
	lib        *reporter.Library
	norm       *normalize.Normalizer
	logger     *zap.Logger

	// sleep is a seam so tests do not wait on 429 backoff.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a verification client. cacheClient may be nil.
func NewClient(cfg ClientConfig, breakers *circuitbreaker.Registry, cacheClient *cache.Cache,
	lib *reporter.Library, norm *normalize.Normalizer, logger *zap.Logger) *Client {
	cfg.applyDefaults()
	return &Client{
		httpClient: &http.Client{},
		cfg:        cfg,
		breakers:   breakers,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
		cache:      cacheClient,
		lib:        lib,
		norm:       norm,
		logger:     logger,
		sleep:      sleepCtx,
	}
}

type attemptOutcome int

const (
	outcomeFound attemptOutcome = iota
	outcomeNotFound
	outcomeAuthFatal
	outcomeFailed
)

var collapseRe = regexp.MustCompile(`\s+`)

// Verify checks one citation. It builds an ordered list of text variants
// (raw, whitespace-normalized, canonical) and tries each sequentially,
// stopping at the first success. Verify never returns an error; failures are
// carried in the Result.
func (c *Client) Verify(ctx context.Context, citation string) Result {
	trimmed := strings.TrimSpace(citation)
	if len(trimmed) < 5 {
		return Result{
			Citation:  trimmed,
			Verdict:   VerdictUnverified,
			ErrorKind: ErrKindNormalization,
			Error:     "citation text too short after normalization",
		}
	}

	normalized := c.norm.Normalize(trimmed)

	if data, ok := c.cache.Get(ctx, normalized); ok {
		var cached Result
		if err := json.Unmarshal(data, &cached); err == nil {
			cached.Citation = trimmed
			cached.Source = SourceCache
			return cached
		}
	}

	if !c.breakers.Allow(c.cfg.BaseURL) {
		c.logger.Debug("Circuit open, using local fallback", zap.String("citation", trimmed))
		return c.localFallback(trimmed, normalized, ErrKindCircuitOpen)
	}

	variants := orderedVariants(trimmed, collapseRe.ReplaceAllString(trimmed, " "), normalized)

	serviceAnswered := false
	for _, variant := range variants {
		result, outcome := c.tryVariant(ctx, trimmed, variant)
		switch outcome {
		case outcomeFound:
			c.breakers.RecordSuccess(c.cfg.BaseURL)
			if data, err := json.Marshal(result); err == nil {
				c.cache.Put(ctx, normalized, data)
			}
			return result
		case outcomeNotFound:
			serviceAnswered = true
		case outcomeAuthFatal:
			c.breakers.RecordFailure(c.cfg.BaseURL)
			return result
		case outcomeFailed:
			// try the next variant
		}
	}

	if serviceAnswered {
		c.breakers.RecordSuccess(c.cfg.BaseURL)
		return Result{
			Citation:  trimmed,
			Verdict:   VerdictUnverified,
			Source:    SourceLookupService,
			ErrorKind: ErrKindNotFound,
			Error:     "citation not found in lookup service",
		}
	}

	c.breakers.RecordFailure(c.cfg.BaseURL)
	return c.localFallback(trimmed, normalized, ErrKindTransport)
}

// tryVariant runs the retry loop for one citation text variant.
func (c *Client) tryVariant(ctx context.Context, original, variant string) (Result, attemptOutcome) {
	rateLimitWaits := 0
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		timeout := c.attemptTimeout(attempt)

		if err := c.limiter.Wait(ctx); err != nil {
			return Result{}, outcomeFailed
		}

		status, entries, err := c.post(ctx, variant, timeout)
		if err != nil {
			c.logger.Debug("Lookup request failed",
				zap.String("variant", variant),
				zap.Int("attempt", attempt),
				zap.Error(err))
			metrics.RecordLookup("transport_error", 0)
			continue
		}

		switch {
		case status == http.StatusOK:
			if cl := firstCluster(entries); cl != nil {
				return c.resultFromCluster(original, cl), outcomeFound
			}
			return Result{}, outcomeNotFound

		case status == http.StatusTooManyRequests:
			wait := c.retryAfter(entries)
			if rateLimitWaits >= 3 {
				return Result{}, outcomeFailed
			}
			rateLimitWaits++
			attempt-- // 429 retries the same variant without consuming the budget
			if err := c.sleep(ctx, wait); err != nil {
				return Result{}, outcomeFailed
			}

		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return Result{
				Citation:  original,
				Verdict:   VerdictUnverified,
				Source:    SourceLookupService,
				ErrorKind: ErrKindAuth,
				Error:     fmt.Sprintf("lookup service auth failure (HTTP %d)", status),
			}, outcomeAuthFatal

		default:
			// other 4xx/5xx: transient, next attempt
		}
	}
	return Result{}, outcomeFailed
}

// postMeta carries response headers the retry loop cares about.
type postMeta struct {
	retryAfter time.Duration
}

// post sends one lookup request. The returned entries are only meaningful on
// HTTP 200.
func (c *Client) post(ctx context.Context, text string, timeout time.Duration) (int, *postResponse, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return 0, nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Token "+c.cfg.Token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	metrics.RecordLookup(strconv.Itoa(resp.StatusCode), time.Since(start))

	out := &postResponse{}
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			out.meta.retryAfter = time.Duration(secs) * time.Second
		}
	}
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&out.entries); err != nil {
			return resp.StatusCode, nil, fmt.Errorf("decode lookup response: %w", err)
		}
	}
	return resp.StatusCode, out, nil
}

type postResponse struct {
	entries []lookupEntry
	meta    postMeta
}

func (c *Client) retryAfter(resp *postResponse) time.Duration {
	wait := c.cfg.RetryAfterCap
	if resp != nil && resp.meta.retryAfter > 0 && resp.meta.retryAfter < wait {
		wait = resp.meta.retryAfter
	}
	return wait
}

// attemptTimeout computes min(initial * factor^attempt + jitter, max).
func (c *Client) attemptTimeout(attempt int) time.Duration {
	base := float64(c.cfg.InitialTimeout) * math.Pow(c.cfg.BackoffFactor, float64(attempt))
	jitter := rand.Float64() * 0.1 * float64(c.cfg.InitialTimeout)
	timeout := time.Duration(base + jitter)
	if timeout > c.cfg.MaxTimeout {
		timeout = c.cfg.MaxTimeout
	}
	return timeout
}

func (c *Client) resultFromCluster(citation string, cl *lookupCluster) Result {
	return Result{
		Citation:      citation,
		Verdict:       VerdictVerified,
		CanonicalName: cl.CaseName,
		CanonicalDate: cl.DateFiled,
		URL:           cl.AbsoluteURL,
		Court:         cl.Court,
		DocketNumber:  cl.docket(),
		Source:        SourceLookupService,
		Confidence:    1.0,
	}
}

func firstCluster(resp *postResponse) *lookupCluster {
	if resp == nil {
		return nil
	}
	for _, entry := range resp.entries {
		if len(entry.Clusters) > 0 {
			return &entry.Clusters[0]
		}
	}
	return nil
}

// orderedVariants deduplicates while preserving order.
func orderedVariants(variants ...string) []string {
	seen := make(map[string]bool, len(variants))
	var out []string
	for _, v := range variants {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func anyToString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatInt(int64(x), 10)
	case json.Number:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}
