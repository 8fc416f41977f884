// Package cache provides deterministic caching for tool executions.
//
// It provides a Cache interface with memory implementation, SHA-256-based
// key derivation, and TTL policies with unsafe tag handling.
//
// # Ecosystem Position
//
// cache sits between a tool call and the subprocess it would spawn,
// intercepting repeat calls against the same target:
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│                      Tool Execution Flow                        │
//	├─────────────────────────────────────────────────────────────────┤
//	│                                                                 │
//	│   toolbase            cache              toolbase               │
//	│   ┌──────┐         ┌─────────┐          ┌─────────┐            │
//	│   │ Tool │────────▶│Middleware│─────────▶│executeUn│            │
//	│   │ Call │         │         │          │cached   │            │
//	│   └──────┘         │ ┌─────┐ │   miss   └─────────┘            │
//	│       ▲            │ │Keyer│ │              │                   │
//	│       │            │ ├─────┤ │              │                   │
//	│       │            │ │Cache│◀──────────────┘                   │
//	│       │            │ ├─────┤ │   store                         │
//	│       │    hit     │ │Policy│ │                                 │
//	│       └────────────│ └─────┘ │                                 │
//	│                    └─────────┘                                 │
//	│                                                                 │
//	└─────────────────────────────────────────────────────────────────┘
//
// # Core Components
//
//   - [Cache]: Interface for caching tool execution results (Get/Set/Delete)
//   - [MemoryCache]: Thread-safe in-memory cache with TTL support
//   - [Keyer]: Interface for deterministic cache key generation
//   - [DefaultKeyer]: SHA-256 based keyer with canonical JSON serialization
//   - [Policy]: Configures TTL defaults, maximums, and unsafe tag handling
//   - [CacheMiddleware]: Transparent caching wrapper for tool execution
//
// # Quick Start
//
//	// One MemoryCache backs both toolbase's PATH resolution and the
//	// per-tool result cache (see registry.Default).
//	memCache := cache.NewMemoryCache(cache.DefaultPolicy())
//	keyer := cache.NewDefaultKeyer()
//
//	// Built automatically by toolbase.NewBase for a cacheable
//	// descriptor (toolbase.WithCache(ttl, tags...)):
//	mw := cache.NewCacheMiddleware(memCache, keyer, policy, cache.DefaultSkipRule)
//
//	result, err := mw.Execute(ctx, "PortSweep", keyInput, descriptor.CacheTags,
//	    func(ctx context.Context, toolID string, input any) ([]byte, error) {
//	        out := base.executeUncached(ctx, toolInput)
//	        return json.Marshal(out)
//	    })
//
// # Key Generation
//
// The [DefaultKeyer] generates deterministic cache keys using:
//
//	cache:<toolID>:<hash>
//
// Where hash is the first 16 hex characters of SHA-256(canonical JSON(input)).
// Canonical JSON ensures map keys are sorted for deterministic serialization.
// toolbase keys on target and extra-args only, stripping the per-call
// correlation ID before handing the struct to the keyer.
//
// # TTL Policies
//
// The [Policy] type controls caching behavior:
//
//   - DefaultTTL: Applied when no specific TTL is provided
//   - MaxTTL: Upper bound for any TTL (prevents excessive caching)
//   - AllowUnsafe: Whether to cache tools with unsafe tags
//
// Preset policies:
//
//   - [DefaultPolicy]: 5 minute default, 1 hour max, unsafe=false
//   - [NoCachePolicy]: Disabled (0 TTL)
//
// Each cacheable tool descriptor carries its own TTL (PortSweep 2
// minutes, ServiceScan 5 minutes, WebEnum 3 minutes) rather than
// sharing one module-wide policy, since a target's open ports go
// stale on a different timescale than its enumerated subdomains.
//
// # Unsafe Tag Handling
//
// Tools with certain tags should not be cached because they have side effects:
//
//   - write, danger, unsafe, mutation, delete
//
// The [DefaultSkipRule] checks for these tags (case-insensitive) and skips
// caching. CredTester and Injector never set Descriptor.Cacheable at all —
// a credential test or an injection attempt is never safe to replay from
// a cache entry instead of against the live target.
//
// # Thread Safety
//
// All exported types are safe for concurrent use:
//
//   - [MemoryCache]: sync.RWMutex protects all operations
//   - [DefaultKeyer]: Stateless, concurrent-safe
//   - [CacheMiddleware]: Delegates to thread-safe Cache/Keyer
//   - [Policy]: Immutable struct, concurrent-safe
//
// # Error Handling
//
// Sentinel errors (use errors.Is for checking):
//
//   - [ErrNilCache]: Cache is nil
//   - [ErrInvalidKey]: Key is empty, whitespace-only, or contains newlines
//   - [ErrKeyTooLong]: Key exceeds MaxKeyLength (512 characters)
//
// Note: Cache.Get never returns errors - it returns (nil, false) on miss.
// Key validation is performed via [ValidateKey] function.
//
// # Integration
//
// cache integrates with other packages in this module:
//
//   - toolbase: resolveCommand's PATH cache and Base.Execute's result
//     cache share a single Cache instance that cmd/toolctl builds and
//     passes to registry.Default
//   - observe: records cache_hit in a ToolOutput's Metadata for the
//     operator-facing logs and metrics to see
package cache
