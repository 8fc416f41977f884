package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Typed is implemented by errors that carry a taxonomy tag (the tool
// execution core's error_type). Metrics uses it, when present, to
// label the error counter; errors that don't implement it are
// recorded under the "UNKNOWN" tag.
type Typed interface {
	ErrorType() string
}

// ToolStats holds in-memory execution statistics for one tool,
// independent of whatever the configured metrics exporter is doing.
// This is what backs introspection endpoints that want numbers without
// a round trip through a Prometheus scrape or OTLP collector.
type ToolStats struct {
	Count        int64
	Successes    int64
	Failures     int64
	Timeouts     int64
	MinDuration  time.Duration
	MaxDuration  time.Duration
	SumDuration  time.Duration
	LastExecuted time.Time
}

// MeanDuration returns the mean execution duration, or zero if no
// executions have been recorded.
func (s ToolStats) MeanDuration() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.SumDuration / time.Duration(s.Count)
}

// Metrics records execution metrics for tools.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordExecution records a tool execution with duration and error
	// status. If err implements Typed, its ErrorType() is used as the
	// error_type label; otherwise errors are labeled "UNKNOWN".
	RecordExecution(ctx context.Context, meta ToolMeta, duration time.Duration, err error)

	// ActiveExecutions adjusts the in-flight execution gauge for a tool
	// by delta (+1 on spawn, -1 on completion).
	ActiveExecutions(ctx context.Context, meta ToolMeta, delta int)

	// ToolStats returns a snapshot of in-memory statistics for the
	// named tool. The zero value is returned for a tool with no
	// recorded executions.
	ToolStats(toolID string) ToolStats
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter        metric.Meter
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
	activeGauge  metric.Int64UpDownCounter

	mu    sync.Mutex
	stats map[string]*ToolStats
}

// NewMetrics creates a new Metrics instance bound to meter. Exported so
// callers that only need metric recording (not the full tracer+logger
// bundle MiddlewareFromObserver builds) can still construct one, e.g. a
// registry wiring per-tool metric wrappers directly from an Observer.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	return newMetrics(meter)
}

// newMetrics creates a new Metrics instance with the given meter.
func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	totalCount, err := meter.Int64Counter(
		"tool.exec.total",
		metric.WithDescription("Total number of tool executions"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"tool.exec.errors",
		metric.WithDescription("Total number of tool execution errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"tool.exec.duration_ms",
		metric.WithDescription("Tool execution duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	activeGauge, err := meter.Int64UpDownCounter(
		"tool.exec.active",
		metric.WithDescription("Number of tool executions currently in flight"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:        meter,
		totalCount:   totalCount,
		errorCount:   errorCount,
		durationHist: durationHist,
		activeGauge:  activeGauge,
		stats:        make(map[string]*ToolStats),
	}, nil
}

// RecordExecution records metrics for a tool execution.
func (m *metricsImpl) RecordExecution(ctx context.Context, meta ToolMeta, duration time.Duration, err error) {
	status := "success"
	errorType := ""
	if err != nil {
		status = "error"
		errorType = "UNKNOWN"
		if te, ok := err.(Typed); ok {
			if t := te.ErrorType(); t != "" {
				errorType = t
			}
		}
	}

	attrs := []attribute.KeyValue{
		attribute.String("tool.id", meta.ToolID()),
		attribute.String("tool.name", meta.Name),
		attribute.String("status", status),
	}
	if meta.Namespace != "" {
		attrs = append(attrs, attribute.String("tool.namespace", meta.Namespace))
	}
	if errorType != "" {
		attrs = append(attrs, attribute.String("error_type", errorType))
	}

	opt := metric.WithAttributes(attrs...)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		errAttrs := []attribute.KeyValue{
			attribute.String("tool.id", meta.ToolID()),
			attribute.String("tool.name", meta.Name),
			attribute.String("error_type", errorType),
		}
		m.errorCount.Add(ctx, 1, metric.WithAttributes(errAttrs...))
	}

	durationMs := float64(duration.Milliseconds())
	m.durationHist.Record(ctx, durationMs, opt)

	m.recordLocal(meta.ToolID(), duration, err, errorType)
}

func (m *metricsImpl) recordLocal(toolID string, duration time.Duration, err error, errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stats[toolID]
	if !ok {
		s = &ToolStats{MinDuration: duration}
		m.stats[toolID] = s
	}

	s.Count++
	s.SumDuration += duration
	s.LastExecuted = time.Now()
	if s.Count == 1 || duration < s.MinDuration {
		s.MinDuration = duration
	}
	if duration > s.MaxDuration {
		s.MaxDuration = duration
	}

	if err != nil {
		s.Failures++
		if errorType == "TIMEOUT" {
			s.Timeouts++
		}
	} else {
		s.Successes++
	}
}

// ActiveExecutions adjusts the in-flight execution gauge for a tool.
func (m *metricsImpl) ActiveExecutions(ctx context.Context, meta ToolMeta, delta int) {
	attrs := []attribute.KeyValue{
		attribute.String("tool.id", meta.ToolID()),
		attribute.String("tool.name", meta.Name),
	}
	m.activeGauge.Add(ctx, int64(delta), metric.WithAttributes(attrs...))
}

// ToolStats returns a snapshot of in-memory statistics for toolID.
func (m *metricsImpl) ToolStats(toolID string) ToolStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stats[toolID]
	if !ok {
		return ToolStats{}
	}
	return *s
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (m *noopMetrics) RecordExecution(ctx context.Context, meta ToolMeta, duration time.Duration, err error) {
}

func (m *noopMetrics) ActiveExecutions(ctx context.Context, meta ToolMeta, delta int) {}

func (m *noopMetrics) ToolStats(toolID string) ToolStats { return ToolStats{} }
