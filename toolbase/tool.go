// Package toolbase implements the execution core shared by every tool:
// input validation, argument sanitization, the concurrency gate,
// bounded subprocess execution, output truncation, and the error
// taxonomy. Concrete tools (package tools) plug in a Descriptor and
// three extension points; everything else lives here.
package toolbase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/toolops-mcp-server/cache"
	"github.com/jonwraymond/toolops-mcp-server/config"
	"github.com/jonwraymond/toolops-mcp-server/observe"
	"github.com/jonwraymond/toolops-mcp-server/resilience"
	"github.com/jonwraymond/toolops-mcp-server/secret"
)

// errClientCancelledCtx reports whether err is a raw context cancellation
// surfaced by resilience.Bulkhead.Acquire or resilience.RateLimiter.Wait
// (both return ctx.Err() directly rather than a package sentinel), so
// Execute can fold it into the same client-cancelled path as
// errClientCancelled.
func errClientCancelledCtx(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Tool is implemented by every concrete tool package. Run is the sole
// public entry point; everything upstream of it (validation, breaker,
// concurrency, spawn, truncation) is Base's job.
type Tool interface {
	Descriptor() *Descriptor
	Run(ctx context.Context, input ToolInput) *ToolOutput
}

// errClientCancelled wraps context.Canceled so the circuit breaker's
// IsFailure predicate can recognize and exclude it from failure
// counting, per §5's "circuit breaker is NOT notified of client
// cancellation."
var errClientCancelled = errors.New("toolbase: caller cancelled before or during execution")

// errTimedOut marks a spawn that hit the watchdog timeout, so the
// breaker's default IsFailure (any non-nil error) counts it without
// needing the formatted exit-status message of a real failure.
var errTimedOut = errors.New("toolbase: tool timed out")

// IsClientCancelled reports whether err (or anything it wraps) is the
// sentinel this package uses to mark a caller-initiated cancellation,
// so a registry can configure its circuit breakers to exclude it from
// failure counting without this package exporting the sentinel value
// itself.
func IsClientCancelled(err error) bool {
	return errors.Is(err, errClientCancelled)
}

// Base is the shared execution engine every Tool embeds. It owns the
// per-tool circuit breaker, the lazily-built resilience.Executor (rate
// limiter + bulkhead + breaker), and the config/metrics/logging/cache/
// secret collaborators threaded in by the registry at construction time.
type Base struct {
	desc      *Descriptor
	breaker   *resilience.CircuitBreaker
	metrics   observe.Metrics
	logger    observe.Logger
	pathCache cache.Cache
	resolver  *secret.Resolver
	cfgStore  *config.Store

	execOnce sync.Once
	executor *resilience.Executor

	resultCache *cache.CacheMiddleware
}

// NewBase wires a Descriptor to its process-wide collaborators. The
// circuit breaker is constructed by the registry (it owns all
// breakers so tools never mutate each other's state — see spec.md §9)
// and passed in rather than built here.
//
// When desc.Cacheable is set and pathCache is non-nil, NewBase also
// builds a cache.CacheMiddleware over the same backing cache.Cache
// used for PATH lookups, so a repeat call against the same target and
// arguments within desc.CacheTTL is served without spawning a second
// subprocess.
func NewBase(desc *Descriptor, breaker *resilience.CircuitBreaker, metrics observe.Metrics, logger observe.Logger, pathCache cache.Cache, resolver *secret.Resolver, cfgStore *config.Store) *Base {
	b := &Base{
		desc:      desc,
		breaker:   breaker,
		metrics:   metrics,
		logger:    logger,
		pathCache: pathCache,
		resolver:  resolver,
		cfgStore:  cfgStore,
	}
	if desc.Cacheable && pathCache != nil {
		ttl := desc.CacheTTL
		if ttl <= 0 {
			ttl = cache.DefaultPolicy().DefaultTTL
		}
		policy := cache.Policy{DefaultTTL: ttl, MaxTTL: ttl}
		b.resultCache = cache.NewCacheMiddleware(pathCache, cache.NewDefaultKeyer(), policy, cache.DefaultSkipRule)
	}
	return b
}

func (b *Base) Descriptor() *Descriptor { return b.desc }

// Breaker exposes the tool's circuit breaker for introspection
// (GET /tools, health checks) without giving callers a way to run
// protected calls through it directly.
func (b *Base) Breaker() *resilience.CircuitBreaker { return b.breaker }

// executorFor lazily builds the per-tool resilience pipeline on first
// use, per §4.3.3's "created lazily on first use in the scheduler
// context that will await it" — in Go terms, the first goroutine to
// call Execute owns the sync.Once that builds it, and every
// subsequent caller shares the same Bulkhead/RateLimiter pair. The
// circuit breaker is owned by the registry and threaded in at
// construction rather than built here, so breaker state survives a
// config reload that swaps this Base out (see registry.Registry).
func (b *Base) executorFor() *resilience.Executor {
	b.execOnce.Do(func() {
		concurrency := b.desc.Concurrency
		if concurrency <= 0 {
			concurrency = 1
		}
		bulkhead := resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: concurrency,
			MaxWait:       b.desc.MaxTimeout,
		})

		rate := b.desc.MaxCallsPerSecond
		burst := b.desc.MaxCallsBurst
		if rate <= 0 {
			rate = 5
		}
		if burst <= 0 {
			burst = 5
		}
		rateLimiter := resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Rate:        rate,
			Burst:       burst,
			WaitOnLimit: true,
			MaxWait:     2 * time.Second,
		})

		b.executor = resilience.NewExecutor(
			resilience.WithRateLimiter(rateLimiter),
			resilience.WithBulkhead(bulkhead),
			resilience.WithCircuitBreaker(b.breaker),
		)
	})
	return b.executor
}

// Execute is the Tool.Run entry point. When the descriptor marks the
// tool cacheable, a cache hit returns the prior ToolOutput without
// running the pipeline at all; otherwise it runs executeUncached and,
// on a clean success, stores the result for the next identical call.
func (b *Base) Execute(ctx context.Context, input ToolInput) *ToolOutput {
	if b.resultCache == nil {
		return b.executeUncached(ctx, input)
	}

	// CorrelationID is per-call (often a fresh uuid) and must not
	// perturb the key; two calls with the same target/args are the
	// same request for caching purposes regardless of correlation ID.
	keyInput := struct {
		Target    string `json:"target"`
		ExtraArgs string `json:"extra_args"`
	}{input.Target, input.ExtraArgs}

	var fresh *ToolOutput
	data, err := b.resultCache.Execute(ctx, b.desc.Name, keyInput, b.desc.CacheTags,
		func(ctx context.Context, _ string, _ any) ([]byte, error) {
			fresh = b.executeUncached(ctx, input)
			if fresh.Error != "" {
				return nil, fmt.Errorf("%s: not caching a failed result", b.desc.Name)
			}
			return json.Marshal(fresh)
		})
	if fresh != nil {
		// Either a miss (fresh just ran) or a failure the middleware
		// declined to cache — fresh already holds the right answer.
		return fresh
	}
	if err != nil {
		// Key generation failed before the executor ran; fall back.
		return b.executeUncached(ctx, input)
	}

	var cached ToolOutput
	if jsonErr := json.Unmarshal(data, &cached); jsonErr != nil {
		return b.executeUncached(ctx, input)
	}
	cached.Metadata["cache_hit"] = true
	return &cached
}

// executeUncached runs the shared pipeline: validate → rate-limit →
// bulkhead-acquire → breaker-admit → spawn → drain+wait → release →
// record → return. It never returns an error; every failure path is
// reported as a structured ToolOutput, per spec.md §4.3.7 and §7's
// "recovered locally... never by throwing."
func (b *Base) executeUncached(ctx context.Context, input ToolInput) *ToolOutput {
	start := time.Now()
	cfg := b.cfgStore.Load()

	correlationID := input.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	meta := observe.ToolMeta{Name: b.desc.Name}
	logger := b.logger.WithTool(meta)
	allowIntrusive := cfg.Security.AllowIntrusive

	targetInfo, err := b.desc.ValidateTarget(input.Target, allowIntrusive)
	if err != nil {
		return b.reject(ctx, meta, logger, correlationID, input, start, ErrorValidation, 1, err)
	}

	tokens, err := ValidateArgsShape(input.ExtraArgs, cfg.Tool.MaxArgsLen, b.desc.AllowedFlags, b.desc.FlagsRequiringValue, b.desc.ExtraAllowedTokens)
	if err != nil {
		return b.reject(ctx, meta, logger, correlationID, input, start, ErrorValidation, 1, err)
	}

	if b.desc.ValidateSemantics != nil {
		if err := b.desc.ValidateSemantics(tokens, targetInfo, allowIntrusive, cfg.Security.MaxScanRate); err != nil {
			return b.reject(ctx, meta, logger, correlationID, input, start, ErrorValidation, 1, fmt.Errorf("%w: %v", ErrSemanticValidation, err))
		}
	}

	shaped := tokens
	if b.desc.Shape != nil {
		shaped = b.desc.Shape(tokens, targetInfo, allowIntrusive)
	}

	if b.resolver != nil {
		resolvedTokens, rerr := b.resolver.ResolveSlice(ctx, shaped)
		if rerr != nil {
			return b.reject(ctx, meta, logger, correlationID, input, start, ErrorValidation, 1, fmt.Errorf("resolving secret references: %w", rerr))
		}
		shaped = resolvedTokens
	}

	timeout := b.desc.DefaultTimeout
	if input.TimeoutSec > 0 {
		timeout = time.Duration(input.TimeoutSec * float64(time.Second))
	}
	if timeout > b.desc.MaxTimeout {
		timeout = b.desc.MaxTimeout
	}

	resolved, err := b.resolveCommand(ctx)
	if err != nil {
		return b.reject(ctx, meta, logger, correlationID, input, start, ErrorNotFound, 127, err)
	}

	argv := make([]string, 0, len(shaped)+1)
	argv = append(argv, shaped...)
	argv = append(argv, input.Target)

	limits := ResourceLimits{
		CPUSeconds:   uint64(timeout.Seconds()) + 1,
		AddressSpace: 512 << 20,
		MaxOpenFiles: 256,
	}

	var result spawnResult
	admitted := false

	executor := b.executorFor()
	breakerErr := executor.Execute(ctx, func(ctx context.Context) error {
		admitted = true
		result = spawn(ctx, resolved, argv, timeout, limits)

		switch {
		case result.spawnErr != nil:
			return result.spawnErr
		case result.clientCancel:
			return errClientCancelled
		case result.timedOut:
			return errTimedOut
		case result.returnCode != 0:
			return fmt.Errorf("tool exited with status %d", result.returnCode)
		default:
			return nil
		}
	})

	duration := time.Since(start)

	if errors.Is(breakerErr, resilience.ErrCircuitOpen) && !admitted {
		out := b.output(nil, false, false, ErrorCircuitOpen, 1, false, correlationID, duration)
		out.Error = "circuit breaker is open for this tool"
		b.record(ctx, meta, duration, newExecError(ErrorCircuitOpen, out.Error, nil))
		b.logFailure(ctx, logger, input, correlationID, out)
		return out
	}

	if !admitted && (errors.Is(breakerErr, resilience.ErrBulkheadFull) || errors.Is(breakerErr, resilience.ErrRateLimitExceeded)) {
		out := b.output(nil, false, false, ErrorResourceExhaust, 1, false, correlationID, duration)
		out.Error = "no concurrency slot became available before the call timeout"
		if errors.Is(breakerErr, resilience.ErrRateLimitExceeded) {
			out.Error = "call rate for this tool exceeded its configured limit"
		}
		b.record(ctx, meta, duration, newExecError(ErrorResourceExhaust, out.Error, nil))
		b.logFailure(ctx, logger, input, correlationID, out)
		return out
	}

	if !admitted && errClientCancelledCtx(breakerErr) {
		out := b.output(nil, false, false, ErrorExecution, 1, false, correlationID, duration)
		out.Error = "caller cancelled the request"
		out.Metadata["client_cancelled"] = true
		b.record(ctx, meta, duration, nil) // not a service failure; not counted as an error metric either
		b.logFailure(ctx, logger, input, correlationID, out)
		return out
	}

	if errors.Is(breakerErr, errClientCancelled) {
		out := b.output(result.stdout, false, false, ErrorExecution, 1, false, correlationID, duration)
		out.Error = "caller cancelled the request"
		out.Metadata["client_cancelled"] = true
		b.record(ctx, meta, duration, nil) // not a service failure; not counted as an error metric either
		b.logFailure(ctx, logger, input, correlationID, out)
		return out
	}

	if result.spawnErr != nil {
		out := b.output(nil, false, false, ErrorUnknown, 1, false, correlationID, duration)
		out.Error = result.spawnErr.Error()
		b.record(ctx, meta, duration, newExecError(ErrorUnknown, out.Error, result.spawnErr))
		b.logFailure(ctx, logger, input, correlationID, out)
		return out
	}

	stdout, stdoutTrunc := truncate(result.stdout, b.desc.MaxStdoutBytes)
	stderr, stderrTrunc := truncate(result.stderr, b.desc.MaxStderrBytes)

	out := &ToolOutput{
		Stdout:          string(stdout),
		Stderr:          string(stderr),
		ReturnCode:      result.returnCode,
		TruncatedStdout: stdoutTrunc,
		TruncatedStderr: stderrTrunc,
		TimedOut:        result.timedOut,
		ExecutionTime:   result.execDuration.Seconds(),
		CorrelationID:   correlationID,
		Metadata:        map[string]any{},
	}

	var recordErr error
	switch {
	case result.timedOut:
		out.ErrorType = ErrorTimeout
		out.Error = fmt.Sprintf("%s timed out after %s", b.desc.Name, timeout)
		recordErr = newExecError(ErrorTimeout, out.Error, nil)
	case result.returnCode != 0:
		out.ErrorType = ErrorExecution
		out.Error = fmt.Sprintf("%s exited with status %d", b.desc.Name, result.returnCode)
		recordErr = newExecError(ErrorExecution, out.Error, nil)
	}

	b.record(ctx, meta, duration, recordErr)

	if out.Error != "" {
		b.logFailure(ctx, logger, input, correlationID, out)
	} else {
		logger.Info(ctx, "tool execution completed", observe.Field{Key: "correlation_id", Value: correlationID}, observe.Field{Key: "target", Value: input.Target})
	}

	return out
}

// reject handles every pre-spawn failure path: no subprocess is ever
// launched, and the executor's breaker/bulkhead/rate limiter are never
// touched, matching §8 properties 3 and 4.
func (b *Base) reject(ctx context.Context, meta observe.ToolMeta, logger observe.Logger, correlationID string, input ToolInput, start time.Time, errType ErrorType, returnCode int, cause error) *ToolOutput {
	out := b.output(nil, false, false, errType, returnCode, false, correlationID, time.Since(start))
	out.Error = cause.Error()
	b.record(ctx, meta, time.Since(start), newExecError(errType, out.Error, cause))
	b.logFailure(ctx, logger, input, correlationID, out)
	return out
}

func (b *Base) output(stdout []byte, truncStdout, truncStderr bool, errType ErrorType, returnCode int, timedOut bool, correlationID string, duration time.Duration) *ToolOutput {
	return &ToolOutput{
		Stdout:          string(stdout),
		ReturnCode:      returnCode,
		TruncatedStdout: truncStdout,
		TruncatedStderr: truncStderr,
		TimedOut:        timedOut,
		ErrorType:       errType,
		ExecutionTime:   duration.Seconds(),
		CorrelationID:   correlationID,
		Metadata:        map[string]any{},
	}
}

// record is a thin, panic-safe wrapper over Metrics.RecordExecution;
// §4.4's "recording an execution is best-effort" means a metrics
// backend failure must never surface to the caller, so any panic from
// a misbehaving exporter is recovered and logged rather than
// propagated.
func (b *Base) record(ctx context.Context, meta observe.ToolMeta, duration time.Duration, err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn(ctx, "metrics recording panicked", observe.Field{Key: "recover", Value: r})
		}
	}()
	b.metrics.RecordExecution(ctx, meta, duration, err)
}

func (b *Base) logFailure(ctx context.Context, logger observe.Logger, input ToolInput, correlationID string, out *ToolOutput) {
	logger.Error(ctx, "tool execution failed",
		observe.Field{Key: "correlation_id", Value: correlationID},
		observe.Field{Key: "target", Value: input.Target},
		observe.Field{Key: "error_type", Value: string(out.ErrorType)},
		observe.Field{Key: "error", Value: out.Error},
	)
}

// resolveCommand resolves the descriptor's command name against PATH,
// caching the result (C.3) so a burst of calls to the same tool does
// not hammer the filesystem with repeated stat(2) calls.
func (b *Base) resolveCommand(ctx context.Context) (string, error) {
	key := "path:" + b.desc.CommandName
	if b.pathCache != nil {
		if cached, ok := b.pathCache.Get(ctx, key); ok {
			if len(cached) == 0 {
				return "", fmt.Errorf("%w: %s", ErrCommandNotFound, b.desc.CommandName)
			}
			return string(cached), nil
		}
	}

	resolved, err := exec.LookPath(b.desc.CommandName)
	if err != nil {
		if b.pathCache != nil {
			_ = b.pathCache.Set(ctx, key, nil, 30*time.Second)
		}
		return "", fmt.Errorf("%w: %s", ErrCommandNotFound, b.desc.CommandName)
	}
	if b.pathCache != nil {
		_ = b.pathCache.Set(ctx, key, []byte(resolved), 5*time.Minute)
	}
	return resolved, nil
}

// GetToolInfo returns the introspection view of this tool's
// descriptor and live breaker, per §4.3.8.
func (b *Base) GetToolInfo(enabled bool) ToolInfo {
	return ToolInfo{
		Name:              b.desc.Name,
		Enabled:           enabled,
		Command:           b.desc.CommandName,
		Description:       b.desc.Description,
		Concurrency:       b.desc.Concurrency,
		Timeout:           b.desc.DefaultTimeout.Seconds(),
		HasMetrics:        b.metrics != nil,
		HasCircuitBreaker: b.breaker != nil,
	}
}
