// Package resilience provides the resilience patterns toolbase composes
// around every subprocess spawn.
//
// It implements the reliability patterns a tool call passes through before
// a scanner, enumerator, or credential tester binary is ever exec'd.
// Patterns are composed together using the Executor to build the pipeline
// toolbase.Base.Execute drives.
//
// # Ecosystem Position
//
// resilience sits between tool invocation and the subprocess it spawns:
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│                      Tool Execution Flow                        │
//	├─────────────────────────────────────────────────────────────────┤
//	│                                                                 │
//	│   toolbase           resilience              subprocess         │
//	│   ┌──────┐         ┌───────────┐           ┌─────────┐         │
//	│   │ Tool │────────▶│ Executor  │──────────▶│ exec.Cmd│         │
//	│   │ Call │         │           │           │ (process│         │
//	│   └──────┘         │ ┌───────┐ │           │  group, │         │
//	│                    │ │RateLim│ │           │  own    │         │
//	│                    │ ├───────┤ │           │  watch- │         │
//	│                    │ │Bulkhd │ │           │  dog)   │         │
//	│                    │ ├───────┤ │           └─────────┘         │
//	│                    │ │Circuit│ │                                │
//	│                    │ └───────┘ │                                │
//	│                    └───────────┘                                │
//	│                                                                 │
//	└─────────────────────────────────────────────────────────────────┘
//
// # Resilience Patterns
//
// The package provides three core patterns, composed by [Executor]:
//
//   - [CircuitBreaker]: Prevents cascading failures by stopping requests to
//     a tool whose binary keeps failing against a target, after a threshold
//     is reached. Transitions through Closed → Open → HalfOpen states.
//
//   - [RateLimiter]: Token bucket rate limiting so a burst of calls to one
//     tool cannot spawn subprocesses faster than its descriptor allows.
//     Supports burst allowance and wait-on-limit.
//
//   - [Bulkhead]: Semaphore-based concurrency limiting — a tool's
//     descriptor-configured Concurrency bound, enforced as the gate a
//     caller waits on before a subprocess is spawned.
//
// A subprocess's own execution deadline is deliberately not a fourth
// pattern here: toolbase/exec.go's watchdog must actually signal and
// reap the child's process group on expiry, which a context-racing
// wrapper around an arbitrary op func cannot do safely.
//
// # Quick Start
//
//	// Individual pattern usage
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    MaxFailures:  5,
//	    ResetTimeout: time.Minute,
//	})
//
//	err := cb.Execute(ctx, func(ctx context.Context) error {
//	    return spawnSubprocess(ctx)
//	})
//
//	// Composed patterns with Executor, as toolbase.Base builds per tool
//	executor := resilience.NewExecutor(
//	    resilience.WithRateLimiter(resilience.NewRateLimiter(resilience.RateLimiterConfig{
//	        Rate:  100,
//	        Burst: 10,
//	    })),
//	    resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{
//	        MaxConcurrent: 2,
//	    })),
//	    resilience.WithCircuitBreaker(cb),
//	)
//
//	err = executor.Execute(ctx, func(ctx context.Context) error {
//	    return spawnSubprocess(ctx)
//	})
//
// # Execution Order
//
// When using the Executor, patterns are applied in this order (outermost first):
//
//  1. Rate Limiter - limits request rate
//  2. Bulkhead - limits concurrency
//  3. Circuit Breaker - prevents cascading failures
//
// Tool executions are deliberately never retried here: a scanning
// subprocess that failed is reported as failed, not silently re-run.
//
// # Thread Safety
//
// All exported types are safe for concurrent use after construction:
//
//   - [CircuitBreaker]: Execute() and State() are mutex-protected; Reset() is safe
//   - [RateLimiter]: Allow(), AllowN(), Wait(), Execute() are mutex-protected
//   - [Bulkhead]: Acquire(), Release(), Execute() use channel-based semaphore
//   - [Executor]: Execute() is safe; all wrapped patterns maintain their guarantees
//
// # Error Handling
//
// Each pattern returns specific sentinel errors (use errors.Is for checking):
//
//   - [ErrCircuitOpen]: Circuit breaker is in open state, rejecting requests
//   - [ErrRateLimitExceeded]: Rate limit exceeded, with no wait configured or
//     still exceeded after the capped wait
//   - [ErrBulkheadFull]: Bulkhead at maximum concurrency
//
// Example error handling:
//
//	err := executor.Execute(ctx, operation)
//	if errors.Is(err, resilience.ErrCircuitOpen) {
//	    // Tool's circuit is open; toolbase maps this to CIRCUIT_BREAKER_OPEN
//	    // without spawning a subprocess.
//	}
//	if errors.Is(err, resilience.ErrRateLimitExceeded) {
//	    // Caller is hammering the tool faster than its descriptor allows;
//	    // toolbase maps this to RESOURCE_EXHAUSTED.
//	}
//
// # Callbacks and Observability
//
// Patterns support callbacks for observability integration:
//
//   - CircuitBreakerConfig.OnStateChange: Called on state transitions
//   - CircuitBreakerConfig.IsFailure: Custom failure classification
//
// # Integration
//
// resilience integrates with other packages in this module:
//
//   - toolbase: builds one Executor per tool (rate limiter + bulkhead +
//     circuit breaker) and runs the subprocess spawn through it
//   - observe: connects callbacks to observability middleware
//   - health: uses CircuitBreaker.State() for health checks
package resilience
