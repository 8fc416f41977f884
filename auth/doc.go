// Package auth provides authentication and authorization primitives for
// the HTTP transport (SPEC_FULL.md §C.1). It is protocol-agnostic and
// unused by the stdio transport, where the caller is the local process
// owner by construction.
//
// # Ecosystem Position
//
//	┌────────────────────────────────────────────────────────────────┐
//	│                    HTTPTransport.guard                         │
//	├────────────────────────────────────────────────────────────────┤
//	│  request ──▶ WithAuthHeaders ──▶ CompositeAuthenticator         │
//	│                                   ├─ APIKeyAuthenticator        │
//	│                                   └─ JWTAuthenticator           │
//	│                                        ├─ StaticKeyProvider     │
//	│                                        └─ JWKSKeyProvider       │
//	│                        │                                       │
//	│                        ▼                                       │
//	│                  SimpleRBACAuthorizer ──▶ handler               │
//	└────────────────────────────────────────────────────────────────┘
//
// # Authentication
//
//   - [APIKeyAuthenticator]: SHA-256-hashed keys looked up in an
//     [APIKeyStore] ([MemoryAPIKeyStore] in this module), each bound to
//     a role.
//   - [JWTAuthenticator]: bearer-token verification via a [KeyProvider],
//     either a [StaticKeyProvider] (HS256, config.AuthConfig.JWTSecret)
//     or a [JWKSKeyProvider] (RS256, fetched from
//     config.AuthConfig.JWTJWKSURL and cached with graceful degradation
//     to the last successful fetch).
//   - [CompositeAuthenticator]: tries each configured authenticator in
//     order, stopping at the first that both supports and accepts the
//     request.
//
// # Authorization
//
//   - [SimpleRBACAuthorizer]: two roles, matching §C.1 — "operator"
//     (every action) and "caller" (every action except enable/disable).
//
// # Thread Safety
//
// [MemoryAPIKeyStore] and [JWKSKeyProvider] protect their state with a
// mutex; all other types here are immutable after construction.
package auth
