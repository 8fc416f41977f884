package toolbase

import "time"

// TargetValidator authorizes input.Target against a tool's accepted
// shapes (RFC1918/CIDR, .lab.internal hostname, HTTP URL, or a
// service-qualified host). It returns metadata describing the target
// (e.g. resolved address count) for semantic validators that need it.
type TargetValidator func(target string, allowIntrusive bool) (TargetInfo, error)

// TargetInfo carries facts the target validator discovered, for
// consumption by the semantic validator and shaper stages.
type TargetInfo struct {
	AddressCount uint64
	Host         string
	Service      string
}

// SemanticValidator runs a tool's per-tool checks from §4.3.1(5) —
// port ranges, script categories, thread counts, rates, modes — over
// the already flag-whitelisted token vector.
type SemanticValidator func(tokens []string, info TargetInfo, allowIntrusive bool, maxScanRate int) error

// Shaper is the optimizer extension point from §4.3.2: it may prepend
// safe default tokens not already present in tokens. Every token it
// adds must already be a member of the descriptor's
// ExtraAllowedTokens, so re-validation is a no-op (§8 property 8).
type Shaper func(tokens []string, info TargetInfo, allowIntrusive bool) []string

// Descriptor is a tool's immutable, compile-time policy (§3). It is
// built once by a package-level constructor and never mutated; a
// configuration reload produces a new Base wrapping a fresh
// Descriptor rather than mutating this one in place.
type Descriptor struct {
	Name        string
	CommandName string
	Description string

	AllowedFlags         []string
	FlagsRequiringValue  []string
	ExtraAllowedTokens   []string

	DefaultTimeout time.Duration
	MaxTimeout     time.Duration
	Concurrency    int

	// MaxCallsPerSecond and MaxCallsBurst bound how fast callers may
	// dispatch new subprocess spawns for this tool, independent of how
	// many may run at once (Concurrency). This protects the underlying
	// binary's target from a caller that issues short-lived calls back
	// to back faster than the tool's own safety posture intends.
	MaxCallsPerSecond float64
	MaxCallsBurst     int

	CircuitBreakerFailureThreshold    int
	CircuitBreakerRecoveryTimeout     time.Duration
	CircuitBreakerMaxResetTimeout     time.Duration
	CircuitBreakerHalfOpenMaxRequests int

	ValidateTarget    TargetValidator
	ValidateSemantics SemanticValidator
	Shape             Shaper

	MaxStdoutBytes int
	MaxStderrBytes int

	// Cacheable enables result caching (C.3) for this tool: an identical
	// target/args call within CacheTTL returns the prior ToolOutput
	// without re-spawning the subprocess. Left false for tools whose
	// CacheTags mark them unsafe to memoize (credential testing,
	// injection), matching cache.DefaultSkipRule's unsafe-tag list.
	Cacheable bool
	CacheTTL  time.Duration
	CacheTags []string
}

// Option configures a Descriptor during construction.
type Option func(*Descriptor)

// NewDescriptor builds a Descriptor from name/command plus options,
// applying package-wide defaults for any field an option did not set.
func NewDescriptor(name, commandName string, opts ...Option) *Descriptor {
	d := &Descriptor{
		Name:                              name,
		CommandName:                       commandName,
		DefaultTimeout:                    30 * time.Second,
		MaxTimeout:                        10 * time.Minute,
		Concurrency:                       2,
		CircuitBreakerFailureThreshold:    5,
		CircuitBreakerRecoveryTimeout:     30 * time.Second,
		CircuitBreakerMaxResetTimeout:     10 * time.Minute,
		CircuitBreakerHalfOpenMaxRequests: 1,
		MaxStdoutBytes:                    1 << 20,
		MaxStderrBytes:                    256 << 10,
		MaxCallsPerSecond:                 5,
		MaxCallsBurst:                     5,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func WithDescription(s string) Option { return func(d *Descriptor) { d.Description = s } }

func WithFlags(allowed, requiringValue, extraTokens []string) Option {
	return func(d *Descriptor) {
		d.AllowedFlags = allowed
		d.FlagsRequiringValue = requiringValue
		d.ExtraAllowedTokens = extraTokens
	}
}

func WithTimeout(def, max time.Duration) Option {
	return func(d *Descriptor) { d.DefaultTimeout = def; d.MaxTimeout = max }
}

func WithConcurrency(n int) Option { return func(d *Descriptor) { d.Concurrency = n } }

// WithRateLimit overrides the default dispatch-rate cap described on
// Descriptor.MaxCallsPerSecond/MaxCallsBurst.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(d *Descriptor) { d.MaxCallsPerSecond = perSecond; d.MaxCallsBurst = burst }
}

func WithCircuitBreaker(failureThreshold int, recoveryTimeout, maxResetTimeout time.Duration, halfOpenMaxRequests int) Option {
	return func(d *Descriptor) {
		d.CircuitBreakerFailureThreshold = failureThreshold
		d.CircuitBreakerRecoveryTimeout = recoveryTimeout
		d.CircuitBreakerMaxResetTimeout = maxResetTimeout
		d.CircuitBreakerHalfOpenMaxRequests = halfOpenMaxRequests
	}
}

func WithValidators(target TargetValidator, semantics SemanticValidator, shape Shaper) Option {
	return func(d *Descriptor) {
		d.ValidateTarget = target
		d.ValidateSemantics = semantics
		d.Shape = shape
	}
}

func WithOutputLimits(maxStdout, maxStderr int) Option {
	return func(d *Descriptor) { d.MaxStdoutBytes = maxStdout; d.MaxStderrBytes = maxStderr }
}

// WithCache marks a tool's successful results as cacheable for ttl,
// tagged with tags for cache.DefaultSkipRule. Tools with side effects
// against live infrastructure (credential testing, injection) should
// leave this unset.
func WithCache(ttl time.Duration, tags ...string) Option {
	return func(d *Descriptor) { d.Cacheable = true; d.CacheTTL = ttl; d.CacheTags = tags }
}

// ToolInfo is the introspection view of a descriptor exposed by §6's
// GET /tools and §4.3.8's get_tool_info().
type ToolInfo struct {
	Name              string  `json:"name"`
	Enabled           bool    `json:"enabled"`
	Command           string  `json:"command"`
	Description       string  `json:"description"`
	Concurrency       int     `json:"concurrency"`
	Timeout           float64 `json:"timeout"`
	HasMetrics        bool    `json:"has_metrics"`
	HasCircuitBreaker bool    `json:"has_circuit_breaker"`
}
