// Package circuitbreaker guards calls to the external citation lookup
// service. Breaker state is keyed per endpoint and owned by one Registry
// instance; all mutation happens under the registry mutex.
package circuitbreaker

import (
	"errors"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State represents the circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when the breaker rejects a call. Callers skip
// the network and use local fallback.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config holds the trip rule and reset timings.
type Config struct {
	// FailureThreshold is the minimum consecutive failures before a trip.
	FailureThreshold int
	// MinRequests is the minimum observed requests before a trip.
	MinRequests int
	// FailureRate is the consecutiveFailures/requests ratio that must be
	// exceeded for a trip.
	FailureRate float64
	// BaseResetTimeout seeds the exponential reset backoff.
	BaseResetTimeout time.Duration
	// MaxResetTimeout caps the reset backoff.
	MaxResetTimeout time.Duration
}

// DefaultConfig returns the production trip rule: open after >=3 consecutive
// failures out of >=5 requests with a failure rate above 50%, reset after
// min(300s, 60s * 2^(failures-3)).
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		MinRequests:      5,
		FailureRate:      0.5,
		BaseResetTimeout: 60 * time.Second,
		MaxResetTimeout:  300 * time.Second,
	}
}

// breaker is the per-endpoint state. Mutated only under the registry mutex.
type breaker struct {
	state               State
	consecutiveFailures int
	requests            int
	lastFailure         time.Time
	trippedAt           time.Time
	resetTimeout        time.Duration
	// trial marks the single probe call allowed after resetTimeout elapses.
	trial bool
}

// Snapshot is a read-only view of one endpoint's breaker.
type Snapshot struct {
	Endpoint            string
	State               State
	ConsecutiveFailures int
	Requests            int
	LastFailure         time.Time
	TrippedAt           time.Time
	ResetTimeout        time.Duration
}

// Registry owns the breaker state for every endpoint.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*breaker
	config   Config
	logger   *zap.Logger
	// now is a clock seam for tests.
	now func() time.Time
}

// NewRegistry creates a Registry with the given config.
func NewRegistry(config Config, logger *zap.Logger) *Registry {
	if config.FailureThreshold <= 0 {
		config = DefaultConfig()
	}
	return &Registry{
		breakers: make(map[string]*breaker),
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// Allow reports whether a call to endpoint may proceed. When the breaker is
// open and the reset timeout has elapsed, exactly one trial call is let
// through; its outcome decides whether the breaker closes or re-trips.
func (r *Registry) Allow(endpoint string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.get(endpoint)
	if b.state == StateClosed {
		return true
	}
	if r.now().Sub(b.trippedAt) >= b.resetTimeout && !b.trial {
		b.trial = true
		r.logger.Info("Circuit breaker allowing trial call",
			zap.String("endpoint", endpoint),
			zap.Duration("reset_timeout", b.resetTimeout))
		return true
	}
	return false
}

// RecordSuccess records a successful call. A successful trial closes the
// breaker and resets the failure counters.
func (r *Registry) RecordSuccess(endpoint string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.get(endpoint)
	b.requests++
	b.consecutiveFailures = 0
	recordRequest(endpoint, b.state, true)
	if b.state == StateOpen {
		r.transition(endpoint, b, StateClosed)
		b.requests = 0
		b.trial = false
	}
}

// RecordFailure records a failed call, tripping or re-tripping the breaker
// per the failure-rate rule.
func (r *Registry) RecordFailure(endpoint string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.get(endpoint)
	b.requests++
	b.consecutiveFailures++
	b.lastFailure = r.now()
	recordRequest(endpoint, b.state, false)

	if b.state == StateOpen {
		// Failed trial: re-open with the same trip logic.
		b.trial = false
		r.trip(endpoint, b)
		return
	}

	if b.consecutiveFailures >= r.config.FailureThreshold &&
		b.requests >= r.config.MinRequests &&
		float64(b.consecutiveFailures)/float64(b.requests) > r.config.FailureRate {
		r.transition(endpoint, b, StateOpen)
		r.trip(endpoint, b)
	}
}

// Snapshot returns the current state for endpoint.
func (r *Registry) Snapshot(endpoint string) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.get(endpoint)
	return Snapshot{
		Endpoint:            endpoint,
		State:               b.state,
		ConsecutiveFailures: b.consecutiveFailures,
		Requests:            b.requests,
		LastFailure:         b.lastFailure,
		TrippedAt:           b.trippedAt,
		ResetTimeout:        b.resetTimeout,
	}
}

// SetClock overrides the registry clock. Test hook.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

func (r *Registry) get(endpoint string) *breaker {
	b, ok := r.breakers[endpoint]
	if !ok {
		b = &breaker{state: StateClosed}
		r.breakers[endpoint] = b
	}
	return b
}

// trip stamps the open breaker with its exponential reset timeout:
// min(MaxResetTimeout, BaseResetTimeout * 2^(consecutiveFailures-threshold)).
func (r *Registry) trip(endpoint string, b *breaker) {
	exp := b.consecutiveFailures - r.config.FailureThreshold
	if exp < 0 {
		exp = 0
	}
	timeout := time.Duration(float64(r.config.BaseResetTimeout) * math.Pow(2, float64(exp)))
	if timeout > r.config.MaxResetTimeout {
		timeout = r.config.MaxResetTimeout
	}
	b.trippedAt = r.now()
	b.resetTimeout = timeout
	recordTrip(endpoint)
	r.logger.Warn("Circuit breaker tripped",
		zap.String("endpoint", endpoint),
		zap.Int("consecutive_failures", b.consecutiveFailures),
		zap.Int("requests", b.requests),
		zap.Duration("reset_timeout", timeout))
}

func (r *Registry) transition(endpoint string, b *breaker, to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	recordStateChange(endpoint, from, to)
	r.logger.Info("Circuit breaker state changed",
		zap.String("endpoint", endpoint),
		zap.String("from", from.String()),
		zap.String("to", to.String()))
}
