package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnv overlays recognized environment variables onto cfg, the
// highest-precedence layer of the three-source merge. Unrecognized
// variables are ignored; malformed values for a recognized variable are
// skipped (the field keeps its defaults/file value) and reported back to
// the caller so it can log a warning.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) []string {
	var malformed []string

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			malformed = append(malformed, key)
			return
		}
		*dst = b
	}
	integer := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			malformed = append(malformed, key)
			return
		}
		*dst = n
	}
	duration := func(key string, dst *time.Duration) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		d, err := parseDuration(v)
		if err != nil {
			malformed = append(malformed, key)
			return
		}
		*dst = d
	}
	csv := func(key string, dst *[]string) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		*dst = out
	}

	if v, ok := lookup("MCP_SERVER_TRANSPORT"); ok && v != "" {
		t := Transport(strings.ToLower(v))
		if t.valid() {
			cfg.Server.Transport = t
		} else {
			malformed = append(malformed, "MCP_SERVER_TRANSPORT")
		}
	}
	str("MCP_SERVER_HOST", &cfg.Server.Host)
	integer("MCP_SERVER_PORT", &cfg.Server.Port)
	duration("MCP_SERVER_SHUTDOWN_GRACE_PERIOD", &cfg.Server.ShutdownGracePeriod)

	csv("TOOLS_INCLUDE", &cfg.Tool.Include)
	csv("TOOLS_EXCLUDE", &cfg.Tool.Exclude)
	integer("MCP_MAX_ARGS_LEN", &cfg.Tool.MaxArgsLen)
	integer("MCP_MAX_STDOUT_BYTES", &cfg.Tool.MaxStdoutBytes)
	integer("MCP_MAX_STDERR_BYTES", &cfg.Tool.MaxStderrBytes)
	duration("MCP_DEFAULT_TIMEOUT_SEC", &cfg.Tool.DefaultTimeout)
	integer("MCP_DEFAULT_CONCURRENCY", &cfg.Tool.DefaultConcurrency)

	integer("MCP_CIRCUIT_BREAKER_FAILURE_THRESHOLD", &cfg.CircuitBreaker.FailureThreshold)
	duration("MCP_CIRCUIT_BREAKER_RECOVERY_TIMEOUT", &cfg.CircuitBreaker.RecoveryTimeout)

	duration("MCP_HEALTH_INTERVAL", &cfg.Health.Interval)
	duration("MCP_HEALTH_TIMEOUT", &cfg.Health.Timeout)
	floatEnv(lookup, "MCP_HEALTH_CPU_THRESHOLD", &cfg.Health.CPUThreshold, &malformed)
	floatEnv(lookup, "MCP_HEALTH_MEMORY_THRESHOLD", &cfg.Health.MemoryThreshold, &malformed)
	floatEnv(lookup, "MCP_HEALTH_DISK_THRESHOLD", &cfg.Health.DiskThreshold, &malformed)

	boolean("MCP_METRICS_ENABLED", &cfg.Metrics.Enabled)

	boolean("MCP_SECURITY_ALLOW_INTRUSIVE", &cfg.Security.AllowIntrusive)
	integer("MCP_SECURITY_MAX_SCAN_RATE", &cfg.Security.MaxScanRate)

	str("LOG_LEVEL", &cfg.Logging.Level)

	return malformed
}

func floatEnv(lookup func(string) (string, bool), key string, dst *float64, malformed *[]string) {
	v, ok := lookup(key)
	if !ok || v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*malformed = append(*malformed, key)
		return
	}
	*dst = f
}

// parseDuration accepts both Go duration syntax ("30s") and a bare integer
// number of seconds ("30"), since several of the documented env vars
// (e.g. MCP_DEFAULT_TIMEOUT_SEC) are named as raw seconds.
func parseDuration(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// osLookup adapts os.LookupEnv to the lookup signature applyEnv expects.
func osLookup(key string) (string, bool) {
	return os.LookupEnv(key)
}
