// Package server implements the registry-facing half of §6's external
// interfaces: a transport-agnostic Server that wraps a registry and a
// health aggregator, plus two concrete transports (http.go, jsonrpc.go)
// that speak the wire formats §6 specifies over it.
package server

import (
	"context"
	"time"

	"github.com/jonwraymond/toolops-mcp-server/config"
	"github.com/jonwraymond/toolops-mcp-server/health"
	"github.com/jonwraymond/toolops-mcp-server/observe"
	"github.com/jonwraymond/toolops-mcp-server/registry"
	"github.com/jonwraymond/toolops-mcp-server/toolbase"
)

// Server is the shared glue both transports dispatch through. It owns
// no process-wide state itself — the registry, health aggregator, and
// config store are all constructed by cmd/toolctl/main.go and handed
// in, matching §9's "registry owns all three" redesign note one level
// up: Server owns none of them, it only routes to them.
type Server struct {
	Registry  *registry.Registry
	Health    *health.Aggregator
	CfgStore  *config.Store
	Logger    observe.Logger
	StartedAt time.Time
}

// New builds a Server from its already-constructed collaborators.
func New(reg *registry.Registry, agg *health.Aggregator, cfgStore *config.Store, logger observe.Logger) *Server {
	return &Server{
		Registry:  reg,
		Health:    agg,
		CfgStore:  cfgStore,
		Logger:    logger,
		StartedAt: time.Now(),
	}
}

// ToolsView is the shared GET /tools body for both transports' list
// operation (§6: "the same array as GET /tools").
type ToolsView struct {
	Tools []toolbase.ToolInfo `json:"tools"`
}

// ListTools returns the introspection view of every registered tool.
func (s *Server) ListTools() ToolsView {
	return ToolsView{Tools: s.Registry.List()}
}

// HealthSnapshot is the shared body both the HTTP /health route and the
// SSE /events stream serialize, per §6's documented JSON shape.
type HealthSnapshot struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Transport string                 `json:"transport"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult is one named entry in a HealthSnapshot.
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// CheckHealth runs every registered health check and rolls it up into
// a HealthSnapshot tagged with the transport that requested it.
func (s *Server) CheckHealth(ctx context.Context, transport string) HealthSnapshot {
	results := s.Health.CheckAll(ctx)
	status := s.Health.OverallStatus(results)

	checks := make(map[string]CheckResult, len(results))
	for name, r := range results {
		checks[name] = CheckResult{Status: r.Status.String(), Message: r.Message}
	}

	return HealthSnapshot{
		Status:    status.String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Transport: transport,
		Checks:    checks,
	}
}

// StatusHTTPCode maps an aggregate health status to the HTTP status
// §6's GET /health names: 200 healthy, 207 degraded, 503 unhealthy.
func StatusHTTPCode(status string) int {
	switch status {
	case "healthy":
		return 200
	case "degraded":
		return 207
	default:
		return 503
	}
}

// classifyExecErrorType mirrors toolbase's ErrorType constants without
// importing them into every call site that only needs the string.
func classifyExecErrorType(out *toolbase.ToolOutput) toolbase.ErrorType {
	if out == nil {
		return toolbase.ErrorUnknown
	}
	return out.ErrorType
}
