package secret

import "context"

// Provider resolves secrets by reference string. [EnvProvider] is the
// only one this module ships; cmd/toolctl passes it to [NewResolver]
// and hands that one Resolver to registry.Default. Another Provider
// can be added with [Resolver.Register] or passed to [NewResolver].
//
// Implementations must be safe for concurrent use and must not log secret values.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
	Close() error
}
