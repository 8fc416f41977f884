// Package config produces typed, validated, immutable configuration
// snapshots from defaults, an optional TOML file, and the process
// environment, and publishes reloads via copy-on-write.
package config

import "time"

// Transport identifies which transport the server exposes.
type Transport string

const (
	TransportStdio Transport = "stdio"
	TransportHTTP  Transport = "http"
)

// Config is an immutable configuration snapshot. Once built by Load or
// a Watcher reload, a Config value is never mutated in place; a new value replaces
// it wholesale in the Store.
type Config struct {
	Server         ServerConfig         `toml:"server"`
	Tool           ToolConfig           `toml:"tool"`
	Security       SecurityConfig       `toml:"security"`
	CircuitBreaker CircuitBreakerConfig `toml:"circuit_breaker"`
	Health         HealthConfig         `toml:"health"`
	Metrics        MetricsConfig        `toml:"metrics"`
	Logging        LoggingConfig        `toml:"logging"`
	Auth           AuthConfig           `toml:"auth"`
}

// ServerConfig controls transport selection and listener settings.
type ServerConfig struct {
	Transport           Transport     `toml:"transport"`
	Host                string        `toml:"host"`
	Port                int           `toml:"port"`
	ShutdownGracePeriod time.Duration `toml:"shutdown_grace_period"`
}

// AuthConfig gates the HTTP transport's supplemental authentication and
// RBAC layer (SPEC_FULL.md §C.1). It is off by default: the stdio
// transport never consults it, and the HTTP transport skips both
// authentication and authorization entirely while Enabled is false.
type AuthConfig struct {
	Enabled bool `toml:"enabled"`

	// APIKeys maps a caller-supplied key to the role it authenticates
	// as ("operator" or "caller"). Keys are hashed with SHA-256 before
	// being held in memory or compared against an incoming request.
	APIKeys []APIKeyRoleConfig `toml:"api_keys"`

	// JWTSecret, when non-empty, additionally enables HS256 bearer-token
	// authentication alongside API keys; its claims must carry a "role".
	// Ignored when JWTJWKSURL is set.
	JWTSecret string `toml:"jwt_secret"`

	// JWTJWKSURL, when non-empty, switches JWT verification from the
	// static JWTSecret to keys fetched from this JWKS endpoint (RS256),
	// refreshed on JWTJWKSCacheTTL and cached with graceful degradation
	// to the last successful fetch if the endpoint is unreachable.
	JWTJWKSURL string `toml:"jwt_jwks_url"`

	// JWTJWKSCacheTTL overrides the JWKS key cache lifetime. Default: 1h.
	JWTJWKSCacheTTL time.Duration `toml:"jwt_jwks_cache_ttl"`
}

// APIKeyRoleConfig binds one configured API key to the role it grants.
type APIKeyRoleConfig struct {
	Key  string `toml:"key"`
	Role string `toml:"role"`
}

// ToolConfig holds the registry-wide defaults each tool descriptor falls
// back to when it does not set its own value.
type ToolConfig struct {
	DefaultTimeout     time.Duration `toml:"default_timeout"`
	DefaultConcurrency int           `toml:"default_concurrency"`
	MaxArgsLen         int           `toml:"max_args_len"`
	MaxStdoutBytes     int           `toml:"max_stdout_bytes"`
	MaxStderrBytes     int           `toml:"max_stderr_bytes"`
	Include            []string      `toml:"include"`
	Exclude            []string      `toml:"exclude"`
}

// SecurityConfig gates intrusive behavior and scan aggressiveness.
type SecurityConfig struct {
	AllowIntrusive bool `toml:"allow_intrusive"`
	MaxScanRate    int  `toml:"max_scan_rate"`
}

// CircuitBreakerConfig seeds every per-tool breaker's starting parameters.
type CircuitBreakerConfig struct {
	FailureThreshold      int           `toml:"failure_threshold"`
	RecoveryTimeout       time.Duration `toml:"recovery_timeout"`
	MaxResetTimeout       time.Duration `toml:"max_reset_timeout"`
	HalfOpenSuccessThresh int           `toml:"half_open_success_threshold"`
	HalfOpenMaxRequests   int           `toml:"half_open_max_requests"`
}

// HealthConfig controls the fixed-interval health evaluation loop.
type HealthConfig struct {
	Interval        time.Duration `toml:"interval"`
	Timeout         time.Duration `toml:"timeout"`
	CPUThreshold    float64       `toml:"cpu_threshold"`
	MemoryThreshold float64       `toml:"memory_threshold"`
	DiskThreshold   float64       `toml:"disk_threshold"`
}

// MetricsConfig controls the in-memory stats and Prometheus export.
type MetricsConfig struct {
	Enabled            bool          `toml:"enabled"`
	PrometheusEnabled  bool          `toml:"prometheus_enabled"`
	CollectionInterval time.Duration `toml:"collection_interval"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "text"
}

// Defaults returns the built-in configuration snapshot, the lowest-precedence
// layer of the three-source merge (defaults -> file -> env).
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Transport:           TransportStdio,
			Host:                "127.0.0.1",
			Port:                8080,
			ShutdownGracePeriod: 10 * time.Second,
		},
		Tool: ToolConfig{
			DefaultTimeout:     30 * time.Second,
			DefaultConcurrency: 2,
			MaxArgsLen:         2048,
			MaxStdoutBytes:     1 << 20,
			MaxStderrBytes:     256 << 10,
		},
		Security: SecurityConfig{
			AllowIntrusive: false,
			MaxScanRate:    1000,
		},
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold:      5,
			RecoveryTimeout:       30 * time.Second,
			MaxResetTimeout:       10 * time.Minute,
			HalfOpenSuccessThresh: 1,
			HalfOpenMaxRequests:   1,
		},
		Health: HealthConfig{
			Interval:        15 * time.Second,
			Timeout:         5 * time.Second,
			CPUThreshold:    0.90,
			MemoryThreshold: 0.90,
			DiskThreshold:   0.90,
		},
		Metrics: MetricsConfig{
			Enabled:            true,
			PrometheusEnabled:  true,
			CollectionInterval: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// clampRange describes the valid bounds for one numeric field, plus the
// warning to log when a loaded value falls outside it.
type clampRange struct {
	field string
	min   float64
	max   float64
}

// clamp clamps every documented numeric field to its safe range, returning
// the list of fields that were out of range (for the caller to log a
// warning line per field, per §4.1's "out-of-range values log a warning").
func (c *Config) clamp() []string {
	var warned []string

	clampInt := func(name string, v *int, lo, hi int) {
		if *v < lo {
			*v = lo
			warned = append(warned, name)
		} else if *v > hi {
			*v = hi
			warned = append(warned, name)
		}
	}
	clampFloat := func(name string, v *float64, lo, hi float64) {
		if *v < lo {
			*v = lo
			warned = append(warned, name)
		} else if *v > hi {
			*v = hi
			warned = append(warned, name)
		}
	}
	clampDuration := func(name string, v *time.Duration, lo, hi time.Duration) {
		if *v < lo {
			*v = lo
			warned = append(warned, name)
		} else if *v > hi {
			*v = hi
			warned = append(warned, name)
		}
	}

	clampInt("server.port", &c.Server.Port, 1, 65535)
	clampDuration("server.shutdown_grace_period", &c.Server.ShutdownGracePeriod, time.Second, 5*time.Minute)

	clampDuration("tool.default_timeout", &c.Tool.DefaultTimeout, time.Second, 10*time.Minute)
	clampInt("tool.default_concurrency", &c.Tool.DefaultConcurrency, 1, 64)
	clampInt("tool.max_args_len", &c.Tool.MaxArgsLen, 1, 1<<16)
	clampInt("tool.max_stdout_bytes", &c.Tool.MaxStdoutBytes, 1<<10, 64<<20)
	clampInt("tool.max_stderr_bytes", &c.Tool.MaxStderrBytes, 1<<10, 64<<20)

	clampInt("security.max_scan_rate", &c.Security.MaxScanRate, 100, 100000)

	clampInt("circuit_breaker.failure_threshold", &c.CircuitBreaker.FailureThreshold, 1, 1000)
	clampDuration("circuit_breaker.recovery_timeout", &c.CircuitBreaker.RecoveryTimeout, time.Second, time.Hour)
	clampDuration("circuit_breaker.max_reset_timeout", &c.CircuitBreaker.MaxResetTimeout, c.CircuitBreaker.RecoveryTimeout, 24*time.Hour)
	clampInt("circuit_breaker.half_open_success_threshold", &c.CircuitBreaker.HalfOpenSuccessThresh, 1, 100)
	clampInt("circuit_breaker.half_open_max_requests", &c.CircuitBreaker.HalfOpenMaxRequests, 1, 100)

	clampDuration("health.interval", &c.Health.Interval, time.Second, time.Hour)
	clampDuration("health.timeout", &c.Health.Timeout, 100*time.Millisecond, time.Minute)
	clampFloat("health.cpu_threshold", &c.Health.CPUThreshold, 0, 1)
	clampFloat("health.memory_threshold", &c.Health.MemoryThreshold, 0, 1)
	clampFloat("health.disk_threshold", &c.Health.DiskThreshold, 0, 1)

	clampDuration("metrics.collection_interval", &c.Metrics.CollectionInterval, time.Second, time.Hour)

	return warned
}

func (t Transport) valid() bool {
	return t == TransportStdio || t == TransportHTTP
}
