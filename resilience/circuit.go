package resilience

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is blocking all requests.
	StateOpen
	// StateHalfOpen means the circuit is testing if the service recovered.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive counted failures before
	// opening the circuit.
	// Default: 5
	MaxFailures int

	// ResetTimeout is the base duration to wait before attempting recovery.
	// Default: 30 seconds
	ResetTimeout time.Duration

	// MaxResetTimeout caps the effective recovery timeout once adaptive
	// backoff has grown it across repeated re-openings.
	// Default: 10 * ResetTimeout
	MaxResetTimeout time.Duration

	// HalfOpenMaxRequests is the maximum number of concurrent trial calls
	// admitted while the circuit is half-open.
	// Default: 1
	HalfOpenMaxRequests int

	// OnStateChange is called when the circuit state changes.
	OnStateChange func(from, to State)

	// IsFailure determines if an error should count as a failure.
	// Default: all non-nil errors are failures.
	IsFailure func(err error) bool
}

// CircuitBreaker implements the circuit breaker pattern, extended with
// exponential backoff on repeated re-openings and a concurrent (not
// cumulative) half-open admission count: a breaker whose trial calls
// keep failing backs off further instead of retrying once a second
// forever.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu               sync.Mutex
	state            State
	failures         int
	lastFailure      time.Time
	halfOpenInFlight int
	consecutiveOpens int
	stateEnteredAt   time.Time

	stats Stats
	rng   *rand.Rand
}

// Stats holds cumulative circuit breaker statistics.
type Stats struct {
	TotalCalls       int64
	TotalSuccesses   int64
	TotalFailures    int64
	TotalRejections  int64
	Transitions      int64
	TimeInState      map[State]time.Duration
	ConsecutiveOpens int
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	// Apply defaults
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.MaxResetTimeout <= 0 {
		config.MaxResetTimeout = 10 * config.ResetTimeout
	}
	if config.HalfOpenMaxRequests <= 0 {
		config.HalfOpenMaxRequests = 1
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}

	return &CircuitBreaker{
		config:         config,
		state:          StateClosed,
		stateEnteredAt: time.Now(),
		stats:          Stats{TimeInState: make(map[State]time.Duration)},
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Execute runs the operation through the circuit breaker.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	wasHalfOpen, err := cb.beforeRequest()
	if err != nil {
		return err
	}

	err = op(ctx)
	cb.afterRequest(err, wasHalfOpen)
	return err
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentStateLocked()
}

// Reset resets the circuit breaker to closed state. transitionLocked
// already fires OnStateChange when the state actually changes, so
// Reset does not fire it again.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.transitionLocked(StateClosed)
	cb.failures = 0
	cb.halfOpenInFlight = 0
	cb.consecutiveOpens = 0
}

// ForceOpen manually opens the circuit, rejecting every call until a
// recovery timeout elapses or ForceClose is called, matching §4.2's
// force_open() operation (used by operators to take a misbehaving tool
// out of rotation without waiting for organic failures).
func (cb *CircuitBreaker) ForceOpen() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailure = time.Now()
	cb.openLocked()
}

// ForceClose manually closes the circuit and clears its failure and
// backoff bookkeeping, matching §4.2's force_close() operation.
func (cb *CircuitBreaker) ForceClose() {
	cb.Reset()
}

// beforeRequest admits or rejects a call. The returned bool reports
// whether the call was admitted as a half-open trial, so afterRequest
// knows to release the in-flight slot regardless of outcome.
func (cb *CircuitBreaker) beforeRequest() (bool, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state := cb.currentStateLocked()
	cb.stats.TotalCalls++

	switch state {
	case StateOpen:
		cb.stats.TotalRejections++
		return false, ErrCircuitOpen
	case StateHalfOpen:
		if cb.halfOpenInFlight >= cb.config.HalfOpenMaxRequests {
			cb.stats.TotalRejections++
			return false, ErrCircuitOpen
		}
		cb.halfOpenInFlight++
		return true, nil
	}

	return false, nil
}

func (cb *CircuitBreaker) afterRequest(err error, wasHalfOpen bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	isFailure := cb.config.IsFailure(err)
	if isFailure {
		cb.stats.TotalFailures++
	} else {
		cb.stats.TotalSuccesses++
	}

	switch cb.state {
	case StateClosed:
		if isFailure {
			cb.failures++
			cb.lastFailure = time.Now()
			if cb.failures >= cb.config.MaxFailures {
				// A trip from CLOSED does not bump consecutiveOpens; only a
				// failed HALF_OPEN trial grows the recovery backoff.
				cb.transitionLocked(StateOpen)
			}
		} else {
			cb.failures = 0
		}

	case StateHalfOpen:
		if wasHalfOpen {
			cb.halfOpenInFlight--
			if cb.halfOpenInFlight < 0 {
				cb.halfOpenInFlight = 0
			}
		}
		if isFailure {
			cb.lastFailure = time.Now()
			cb.openLocked()
		} else {
			cb.transitionLocked(StateClosed)
			cb.failures = 0
			cb.consecutiveOpens = 0
			cb.halfOpenInFlight = 0
		}
	}
}

// openLocked transitions to OPEN and bumps the adaptive backoff counter.
// Caller must hold cb.mu.
func (cb *CircuitBreaker) openLocked() {
	cb.consecutiveOpens++
	cb.transitionLocked(StateOpen)
}

// effectiveRecoveryTimeoutLocked computes recovery_timeout * 2^min(n,6)
// with +/-20% jitter, capped at MaxResetTimeout. Caller must hold cb.mu.
func (cb *CircuitBreaker) effectiveRecoveryTimeoutLocked() time.Duration {
	n := cb.consecutiveOpens
	if n > 6 {
		n = 6
	}
	base := cb.config.ResetTimeout * time.Duration(int64(1)<<uint(n))
	if base > cb.config.MaxResetTimeout {
		base = cb.config.MaxResetTimeout
	}
	jitter := 1.0 + (cb.rng.Float64()*0.4 - 0.2) // +/-20%
	effective := time.Duration(float64(base) * jitter)
	if effective > cb.config.MaxResetTimeout {
		effective = cb.config.MaxResetTimeout
	}
	return effective
}

// currentStateLocked advances OPEN -> HALF_OPEN once the effective
// recovery window has elapsed. Caller must hold cb.mu.
func (cb *CircuitBreaker) currentStateLocked() State {
	if cb.state == StateOpen && time.Since(cb.lastFailure) >= cb.effectiveRecoveryTimeoutLocked() {
		cb.transitionLocked(StateHalfOpen)
		cb.halfOpenInFlight = 0
	}
	return cb.state
}

// transitionLocked moves to a new state, updating time-in-state and
// transition statistics, and firing OnStateChange. Caller must hold cb.mu.
func (cb *CircuitBreaker) transitionLocked(to State) {
	if to == cb.state {
		return
	}
	now := time.Now()
	cb.stats.TimeInState[cb.state] += now.Sub(cb.stateEnteredAt)
	cb.stats.Transitions++
	from := cb.state
	cb.state = to
	cb.stateEnteredAt = now
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(from, to)
	}
}

// Metrics returns current circuit breaker metrics. See Stats for the
// full statistics set.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerMetrics{
		State:       cb.currentStateLocked(),
		Failures:    cb.failures,
		Successes:   int(cb.stats.TotalSuccesses),
		LastFailure: cb.lastFailure,
	}
}

// Stats returns a snapshot of cumulative circuit breaker statistics.
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	snap := cb.stats
	snap.ConsecutiveOpens = cb.consecutiveOpens
	snap.TimeInState = make(map[State]time.Duration, len(cb.stats.TimeInState))
	for k, v := range cb.stats.TimeInState {
		snap.TimeInState[k] = v
	}
	snap.TimeInState[cb.state] += time.Since(cb.stateEnteredAt)
	return snap
}

// CircuitBreakerMetrics contains circuit breaker statistics.
type CircuitBreakerMetrics struct {
	State       State
	Failures    int
	Successes   int
	LastFailure time.Time
}
