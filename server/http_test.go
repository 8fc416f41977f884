package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jonwraymond/toolops-mcp-server/config"
)

func TestHTTP_HealthRoute(t *testing.T) {
	srv := newTestServer(t, config.Defaults())
	transport := NewHTTPTransport(srv)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	transport.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health status = %d, want 200", rec.Code)
	}

	var snapshot HealthSnapshot
	if err := json.NewDecoder(rec.Body).Decode(&snapshot); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if snapshot.Transport != "http" {
		t.Errorf("Transport = %q, want http", snapshot.Transport)
	}
}

func TestHTTP_ListTools(t *testing.T) {
	srv := newTestServer(t, config.Defaults())
	transport := NewHTTPTransport(srv)

	req := httptest.NewRequest(http.MethodGet, "/tools", nil)
	rec := httptest.NewRecorder()
	transport.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /tools status = %d, want 200", rec.Code)
	}

	var view ToolsView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(view.Tools) != 5 {
		t.Errorf("got %d tools, want 5", len(view.Tools))
	}
}

func TestHTTP_ExecuteTool_ValidationFailure(t *testing.T) {
	srv := newTestServer(t, config.Defaults())
	transport := NewHTTPTransport(srv)

	body := strings.NewReader(`{"target":"8.8.8.8"}`)
	req := httptest.NewRequest(http.MethodPost, "/tools/PortSweep/execute", body)
	rec := httptest.NewRecorder()
	transport.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("execute status = %d, want 400 (validation rejected)", rec.Code)
	}
}

func TestHTTP_ExecuteTool_UnknownTool(t *testing.T) {
	srv := newTestServer(t, config.Defaults())
	transport := NewHTTPTransport(srv)

	body := strings.NewReader(`{"target":"10.0.0.1"}`)
	req := httptest.NewRequest(http.MethodPost, "/tools/NoSuchTool/execute", body)
	rec := httptest.NewRecorder()
	transport.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("execute status = %d, want 404", rec.Code)
	}
}

func TestHTTP_ExecuteTool_MalformedBody(t *testing.T) {
	srv := newTestServer(t, config.Defaults())
	transport := NewHTTPTransport(srv)

	req := httptest.NewRequest(http.MethodPost, "/tools/PortSweep/execute", strings.NewReader(`not json`))
	rec := httptest.NewRecorder()
	transport.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("execute status = %d, want 400 (malformed body)", rec.Code)
	}
}

func TestHTTP_EnableDisable(t *testing.T) {
	srv := newTestServer(t, config.Defaults())
	transport := NewHTTPTransport(srv)

	req := httptest.NewRequest(http.MethodPost, "/tools/PortSweep/disable", nil)
	rec := httptest.NewRecorder()
	transport.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("disable status = %d, want 200", rec.Code)
	}

	enabled, ok := srv.Registry.Enabled("PortSweep")
	if !ok || enabled {
		t.Errorf("enabled=%v ok=%v, want false/true after disable", enabled, ok)
	}

	req = httptest.NewRequest(http.MethodPost, "/tools/PortSweep/enable", nil)
	rec = httptest.NewRecorder()
	transport.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("enable status = %d, want 200", rec.Code)
	}

	enabled, ok = srv.Registry.Enabled("PortSweep")
	if !ok || !enabled {
		t.Errorf("enabled=%v ok=%v, want true/true after re-enable", enabled, ok)
	}
}

func TestHTTP_EnableDisable_UnknownTool(t *testing.T) {
	srv := newTestServer(t, config.Defaults())
	transport := NewHTTPTransport(srv)

	req := httptest.NewRequest(http.MethodPost, "/tools/NoSuchTool/enable", nil)
	rec := httptest.NewRecorder()
	transport.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("enable(unknown) status = %d, want 404", rec.Code)
	}
}

func TestHTTP_Metrics_DisabledByDefaultConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Metrics.Enabled = false
	cfg.Metrics.PrometheusEnabled = false
	srv := newTestServer(t, cfg)
	transport := NewHTTPTransport(srv)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	transport.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("GET /metrics status = %d, want 404 when metrics disabled", rec.Code)
	}
}

func TestHTTP_Metrics_EnabledServesPrometheusExposition(t *testing.T) {
	cfg := config.Defaults()
	cfg.Metrics.Enabled = true
	cfg.Metrics.PrometheusEnabled = true
	srv := newTestServer(t, cfg)
	transport := NewHTTPTransport(srv)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	transport.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want 200 when metrics enabled", rec.Code)
	}
}

func TestHTTP_Auth_RejectsMissingKey(t *testing.T) {
	cfg := config.Defaults()
	cfg.Auth.Enabled = true
	cfg.Auth.APIKeys = []config.APIKeyRoleConfig{{Key: "secret-key", Role: "caller"}}
	srv := newTestServer(t, cfg)
	transport := NewHTTPTransport(srv)

	req := httptest.NewRequest(http.MethodGet, "/tools", nil)
	rec := httptest.NewRecorder()
	transport.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("GET /tools with no key status = %d, want 401", rec.Code)
	}
}

func TestHTTP_Auth_AcceptsValidCallerKey(t *testing.T) {
	cfg := config.Defaults()
	cfg.Auth.Enabled = true
	cfg.Auth.APIKeys = []config.APIKeyRoleConfig{{Key: "secret-key", Role: "caller"}}
	srv := newTestServer(t, cfg)
	transport := NewHTTPTransport(srv)

	req := httptest.NewRequest(http.MethodGet, "/tools", nil)
	req.Header.Set("X-API-Key", "secret-key")
	rec := httptest.NewRecorder()
	transport.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /tools with valid caller key status = %d, want 200", rec.Code)
	}
}

func TestHTTP_Auth_CallerCannotDisableTools(t *testing.T) {
	cfg := config.Defaults()
	cfg.Auth.Enabled = true
	cfg.Auth.APIKeys = []config.APIKeyRoleConfig{{Key: "caller-key", Role: "caller"}}
	srv := newTestServer(t, cfg)
	transport := NewHTTPTransport(srv)

	req := httptest.NewRequest(http.MethodPost, "/tools/PortSweep/disable", bytes.NewReader(nil))
	req.Header.Set("X-API-Key", "caller-key")
	rec := httptest.NewRecorder()
	transport.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("caller disabling a tool status = %d, want 403", rec.Code)
	}
}

func TestHTTP_Auth_OperatorCanDisableTools(t *testing.T) {
	cfg := config.Defaults()
	cfg.Auth.Enabled = true
	cfg.Auth.APIKeys = []config.APIKeyRoleConfig{{Key: "operator-key", Role: "operator"}}
	srv := newTestServer(t, cfg)
	transport := NewHTTPTransport(srv)

	req := httptest.NewRequest(http.MethodPost, "/tools/PortSweep/disable", bytes.NewReader(nil))
	req.Header.Set("X-API-Key", "operator-key")
	rec := httptest.NewRecorder()
	transport.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("operator disabling a tool status = %d, want 200", rec.Code)
	}
}
