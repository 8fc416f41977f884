// Package registry is the process-wide owner of tools, their circuit
// breakers, and their metrics wrappers (spec.md §4.6, §9's "registry
// owns all three"). It is built once at startup from a compile-time
// list of tool constructors, filtered by configuration, and is
// immutable thereafter except for the per-tool enable/disable bit.
package registry

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/jonwraymond/toolops-mcp-server/cache"
	"github.com/jonwraymond/toolops-mcp-server/config"
	"github.com/jonwraymond/toolops-mcp-server/health"
	"github.com/jonwraymond/toolops-mcp-server/observe"
	"github.com/jonwraymond/toolops-mcp-server/resilience"
	"github.com/jonwraymond/toolops-mcp-server/secret"
	"github.com/jonwraymond/toolops-mcp-server/toolbase"
	"github.com/jonwraymond/toolops-mcp-server/tools"
)

// ErrUnknownTool is returned when a tool name does not match any
// registered entry.
var ErrUnknownTool = fmt.Errorf("registry: unknown tool")

// ErrToolDisabled is returned by dispatch helpers when a known tool's
// enabled bit is off.
var ErrToolDisabled = fmt.Errorf("registry: tool is disabled")

type entry struct {
	base    *toolbase.Base
	enabled atomic.Bool
}

// Registry holds every constructed tool entry, keyed by name.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string

	cfgStore  *config.Store
	metrics   observe.Metrics
	logger    observe.Logger
	pathCache cache.Cache
	resolver  *secret.Resolver
}

// New creates an empty registry bound to its process-wide
// collaborators; call Register (or Default, for the built-in tool
// set) to populate it.
func New(cfgStore *config.Store, metrics observe.Metrics, logger observe.Logger, pathCache cache.Cache, resolver *secret.Resolver) *Registry {
	return &Registry{
		entries:   make(map[string]*entry),
		cfgStore:  cfgStore,
		metrics:   metrics,
		logger:    logger,
		pathCache: pathCache,
		resolver:  resolver,
	}
}

// Default builds a Registry populated with every tool in package
// tools, filtered by the current config snapshot's include/exclude
// lists, matching §4.6's "discovers tool implementations... filters
// by an include/exclude list."
func Default(cfgStore *config.Store, metrics observe.Metrics, logger observe.Logger, pathCache cache.Cache, resolver *secret.Resolver) *Registry {
	r := New(cfgStore, metrics, logger, pathCache, resolver)
	for _, desc := range []*toolbase.Descriptor{
		tools.NewPortSweep(),
		tools.NewServiceScan(),
		tools.NewWebEnum(),
		tools.NewCredTester(),
		tools.NewInjector(),
	} {
		r.Register(desc)
	}
	return r
}

// Register constructs a tool's breaker and Base wrapper from desc and
// adds it to the registry, unless desc.Name is excluded by the
// current config snapshot's include/exclude lists. Re-registering an
// existing name replaces its entry.
func (r *Registry) Register(desc *toolbase.Descriptor) {
	cfg := r.cfgStore.Load()
	if !toolIncluded(desc.Name, cfg.Tool.Include, cfg.Tool.Exclude) {
		return
	}

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		MaxFailures:         desc.CircuitBreakerFailureThreshold,
		ResetTimeout:        desc.CircuitBreakerRecoveryTimeout,
		MaxResetTimeout:     desc.CircuitBreakerMaxResetTimeout,
		HalfOpenMaxRequests: desc.CircuitBreakerHalfOpenMaxRequests,
		IsFailure:           isServiceFailure,
	})

	base := toolbase.NewBase(desc, breaker, r.metrics, r.logger, r.pathCache, r.resolver, r.cfgStore)

	e := &entry{base: base}
	e.enabled.Store(true)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[desc.Name]; !exists {
		r.order = append(r.order, desc.Name)
	}
	r.entries[desc.Name] = e
}

// isServiceFailure is the registry-wide IsFailure predicate: every
// breaker counts subprocess and timeout failures, but never counts a
// client-initiated cancellation, per spec.md §5's "circuit breaker is
// NOT notified of client cancellation."
func isServiceFailure(err error) bool {
	return err != nil && !toolbase.IsClientCancelled(err)
}

func toolIncluded(name string, include, exclude []string) bool {
	for _, ex := range exclude {
		if ex == name {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, in := range include {
		if in == name {
			return true
		}
	}
	return false
}

// Get returns the named tool's Base and whether it exists at all
// (irrespective of its enabled bit).
func (r *Registry) Get(name string) (*toolbase.Base, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.base, true
}

// Enabled reports whether name exists and its enabled bit is set.
func (r *Registry) Enabled(name string) (enabled bool, exists bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return false, false
	}
	return e.enabled.Load(), true
}

// SetEnabled flips name's enabled bit. It returns ErrUnknownTool if
// name is not registered.
func (r *Registry) SetEnabled(name string, enabled bool) error {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return ErrUnknownTool
	}
	e.enabled.Store(enabled)
	return nil
}

// Execute dispatches to the named tool's Base.Execute, honoring the
// enabled bit per §4.6's "the router checks before dispatch."
func (r *Registry) Execute(ctx context.Context, name string, input toolbase.ToolInput) (*toolbase.ToolOutput, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownTool
	}
	if !e.enabled.Load() {
		return nil, ErrToolDisabled
	}
	return e.base.Execute(ctx, input), nil
}

// List returns the ToolInfo introspection view for every registered
// tool, sorted by name, per §6's GET /tools.
func (r *Registry) List() []toolbase.ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)

	infos := make([]toolbase.ToolInfo, 0, len(names))
	for _, name := range names {
		e := r.entries[name]
		infos = append(infos, e.base.GetToolInfo(e.enabled.Load()))
	}
	return infos
}

// HealthChecker builds an aggregator of one Informational-priority
// check per tool: PATH resolvability and circuit-breaker state, per
// §4.5's "per-tool availability... per-tool circuit-breaker state
// (HALF_OPEN ⇒ DEGRADED; OPEN ⇒ UNHEALTHY)."
func (r *Registry) HealthChecker() health.Checker {
	agg := health.NewAggregator()

	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, e := range r.entries {
		name, e := name, e
		agg.RegisterWithPriority(name, health.NewCheckerFunc(name, func(ctx context.Context) health.Result {
			return toolHealth(e.base)
		}), health.PriorityInformational)
	}
	return agg.Checker()
}

func toolHealth(base *toolbase.Base) health.Result {
	desc := base.Descriptor()
	if _, err := exec.LookPath(desc.CommandName); err != nil {
		return health.Unhealthy(fmt.Sprintf("%s: %s not found on PATH", desc.Name, desc.CommandName), err)
	}

	switch base.Breaker().State() {
	case resilience.StateOpen:
		return health.Unhealthy(fmt.Sprintf("%s: circuit breaker open", desc.Name), resilience.ErrCircuitOpen)
	case resilience.StateHalfOpen:
		return health.Degraded(fmt.Sprintf("%s: circuit breaker half-open", desc.Name))
	default:
		return health.Healthy(fmt.Sprintf("%s: available", desc.Name))
	}
}
