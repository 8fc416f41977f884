// Package secret provides a small, dependency-light secret resolution layer.
//
// It supports:
//   - Strict environment expansion (see ExpandEnvStrict)
//   - Pluggable secret providers (see Provider + Registry)
//   - Resolving secret references in configuration values (see Resolver)
//
// References use the prefix "secretref:":
//   - Full value:  secretref:env:HYDRA_WORDLIST_KEY
//   - Inline use:  -p secretref:env:HYDRA_WORDLIST_KEY
//
// toolbase.Base threads a *Resolver through every tool's ExtraArgs
// after shaping (C.2): CredTester's -p/-P flags and any other tool
// argument may carry a secretref instead of an inline credential, so
// a caller's stored password list never appears in a request body,
// a log line, or a cached ToolOutput. Only [EnvProvider] ships;
// cmd/toolctl builds its Resolver with it directly. [DefaultRegistry]
// holds provider factories and is not consulted by cmd/toolctl.
package secret
