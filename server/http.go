package server

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/toolops-mcp-server/auth"
	"github.com/jonwraymond/toolops-mcp-server/config"
	"github.com/jonwraymond/toolops-mcp-server/registry"
	"github.com/jonwraymond/toolops-mcp-server/toolbase"
)

// HTTPTransport is the §6 HTTP/JSON surface: a thin net/http.ServeMux
// wrapping Server, with an optional authentication+RBAC layer gated by
// config.AuthConfig.Enabled (SPEC_FULL.md §C.1).
type HTTPTransport struct {
	srv  *Server
	mux  *http.ServeMux
	auth *httpAuth
}

// httpAuth bundles the composed authenticator and authorizer built
// once at transport-construction time from the initial config
// snapshot's Auth section. A config reload does not re-wire auth —
// the key/role set is a startup-time decision, the same way the
// registry's tool set is.
type httpAuth struct {
	authenticator auth.Authenticator
	authorizer    auth.Authorizer
}

// NewHTTPTransport builds the HTTP transport and registers every §6
// route on a fresh ServeMux.
func NewHTTPTransport(srv *Server) *HTTPTransport {
	t := &HTTPTransport{srv: srv, mux: http.NewServeMux()}

	cfg := srv.CfgStore.Load()
	if cfg.Auth.Enabled {
		t.auth = buildHTTPAuth(cfg.Auth)
	}

	t.registerRoutes()
	return t
}

// ServeHTTP implements http.Handler so main can pass *HTTPTransport
// directly to http.Server.Handler. Every request's headers are lifted
// into the context via auth.WithAuthHeaders before routing, so guard's
// authenticators read them through auth.HeadersFromContext rather than
// reaching back into the *http.Request directly.
func (t *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	auth.WithAuthHeaders(t.mux).ServeHTTP(w, r)
}

func (t *HTTPTransport) registerRoutes() {
	t.mux.HandleFunc("GET /health", t.handleHealth)
	t.mux.HandleFunc("GET /tools", t.guard("caller", t.handleListTools))
	t.mux.HandleFunc("POST /tools/{name}/execute", t.guard("caller", t.handleExecute))
	t.mux.HandleFunc("POST /tools/{name}/enable", t.guard("operator", t.handleSetEnabled(true)))
	t.mux.HandleFunc("POST /tools/{name}/disable", t.guard("operator", t.handleSetEnabled(false)))
	t.mux.HandleFunc("GET /metrics", t.handleMetrics)
	t.mux.HandleFunc("GET /events", t.handleEvents)
}

// guard wraps a handler with the optional auth layer. action is the
// RBAC action name ("caller" covers list/execute/health; "operator"
// additionally covers enable/disable), matching §C.1's two roles.
func (t *HTTPTransport) guard(action string, next http.HandlerFunc) http.HandlerFunc {
	if t.auth == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := t.authenticate(r)
		if err != nil {
			writeJSONStatus(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
			return
		}

		azReq := &auth.AuthzRequest{
			Subject:      identity,
			Resource:     "tool:" + r.PathValue("name"),
			Action:       action,
			ResourceType: "tool",
		}
		if err := t.auth.authorizer.Authorize(r.Context(), azReq); err != nil {
			writeJSONStatus(w, http.StatusForbidden, map[string]string{"error": "not authorized"})
			return
		}

		next(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
	}
}

func (t *HTTPTransport) authenticate(r *http.Request) (*auth.Identity, error) {
	headers := auth.HeadersFromContext(r.Context())
	if headers == nil {
		headers = r.Header
	}
	req := &auth.AuthRequest{Headers: headers, Resource: r.URL.Path}
	result, err := t.auth.authenticator.Authenticate(r.Context(), req)
	if err != nil {
		return nil, err
	}
	if result == nil || !result.Authenticated {
		return nil, fmt.Errorf("authentication failed")
	}
	return result.Identity, nil
}

func (t *HTTPTransport) handleHealth(w http.ResponseWriter, r *http.Request) {
	snapshot := t.srv.CheckHealth(r.Context(), "http")
	writeJSONStatus(w, StatusHTTPCode(snapshot.Status), snapshot)
}

func (t *HTTPTransport) handleListTools(w http.ResponseWriter, r *http.Request) {
	writeJSONStatus(w, http.StatusOK, t.srv.ListTools())
}

// executeRequestBody is the §6 POST /tools/{name}/execute request body.
type executeRequestBody struct {
	Target        string  `json:"target"`
	ExtraArgs     string  `json:"extra_args,omitempty"`
	TimeoutSec    float64 `json:"timeout_sec,omitempty"`
	CorrelationID string  `json:"correlation_id,omitempty"`
}

func (t *HTTPTransport) handleExecute(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var body executeRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONStatus(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}

	input := toolbase.ToolInput{
		Target:        body.Target,
		ExtraArgs:     body.ExtraArgs,
		TimeoutSec:    body.TimeoutSec,
		CorrelationID: body.CorrelationID,
	}

	out, err := t.srv.Registry.Execute(r.Context(), name, input)
	switch {
	case errors.Is(err, registry.ErrUnknownTool):
		writeJSONStatus(w, http.StatusNotFound, map[string]string{"error": "unknown tool"})
		return
	case errors.Is(err, registry.ErrToolDisabled):
		writeJSONStatus(w, http.StatusForbidden, map[string]string{"error": "tool is disabled"})
		return
	case err != nil:
		writeJSONStatus(w, http.StatusInternalServerError, map[string]string{"error": "unexpected error"})
		return
	}

	status := http.StatusOK
	switch classifyExecErrorType(out) {
	case toolbase.ErrorValidation:
		status = http.StatusBadRequest
	case toolbase.ErrorCircuitOpen:
		status = http.StatusServiceUnavailable
	}

	writeJSONStatus(w, status, out)
}

func (t *HTTPTransport) handleSetEnabled(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		if err := t.srv.Registry.SetEnabled(name, enabled); err != nil {
			writeJSONStatus(w, http.StatusNotFound, map[string]string{"error": "unknown tool"})
			return
		}
		writeJSONStatus(w, http.StatusOK, map[string]bool{"enabled": enabled})
	}
}

func (t *HTTPTransport) handleMetrics(w http.ResponseWriter, r *http.Request) {
	cfg := t.srv.CfgStore.Load()
	if !cfg.Metrics.Enabled || !cfg.Metrics.PrometheusEnabled {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	promhttp.Handler().ServeHTTP(w, r)
}

// handleEvents is the §6 GET /events SSE stream: a periodic health
// snapshot plus immediate pushes on tool enable/disable would ideally
// share one broker, but the core's registry has no internal pub/sub
// of its own — so this stream only emits the periodic snapshot, at
// least every 5s as required, re-evaluated fresh on every tick.
func (t *HTTPTransport) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	ctx := r.Context()
	writeSnapshot := func() bool {
		snapshot := t.srv.CheckHealth(ctx, "http")
		payload, err := json.Marshal(snapshot)
		if err != nil {
			return true
		}
		if _, err := fmt.Fprintf(w, "event: health\ndata: %s\n\n", payload); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !writeSnapshot() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !writeSnapshot() {
				return
			}
		}
	}
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// buildHTTPAuth composes an API-key authenticator (always present when
// auth is enabled) and an optional JWT authenticator, behind a
// CompositeAuthenticator, and a SimpleRBACAuthorizer with exactly the
// two roles §C.1 names: "operator" (every action) and "caller" (every
// action except enable/disable, which this transport always guards
// with the "operator" action name).
func buildHTTPAuth(cfg config.AuthConfig) *httpAuth {
	store := auth.NewMemoryAPIKeyStore()
	for _, k := range cfg.APIKeys {
		_ = store.Add(&auth.APIKeyInfo{
			KeyHash: hashKeyHex(k.Key),
			Roles:   []string{k.Role},
		})
	}
	apiKeyAuth := auth.NewAPIKeyAuthenticator(auth.APIKeyConfig{}, store)

	authenticators := []auth.Authenticator{apiKeyAuth}
	switch {
	case cfg.JWTJWKSURL != "":
		keys := auth.NewJWKSKeyProvider(auth.JWKSConfig{
			URL:      cfg.JWTJWKSURL,
			CacheTTL: cfg.JWTJWKSCacheTTL,
		})
		authenticators = append(authenticators, auth.NewJWTAuthenticator(auth.JWTConfig{}, keys))
	case cfg.JWTSecret != "":
		jwtAuth := auth.NewJWTAuthenticator(auth.JWTConfig{}, auth.NewStaticKeyProvider([]byte(cfg.JWTSecret)))
		authenticators = append(authenticators, jwtAuth)
	}

	authorizer := auth.NewSimpleRBACAuthorizer(auth.RBACConfig{
		Roles: map[string]auth.RoleConfig{
			"operator": {Permissions: []string{"*"}},
			"caller":   {Permissions: []string{"caller"}},
		},
	})

	return &httpAuth{
		authenticator: auth.NewCompositeAuthenticator(authenticators...),
		authorizer:    authorizer,
	}
}

func hashKeyHex(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
