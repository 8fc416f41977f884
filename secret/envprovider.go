package secret

import (
	"context"
	"fmt"
	"os"
)

// EnvProvider resolves secretref:env:<NAME> references against the
// process environment. It is the natural default provider for the
// scheme: every value it returns is something the process could
// already read directly, so registering it costs nothing in new
// attack surface while letting callers (e.g. the credential tester's
// -p/-P flags, per C.2) write a reference instead of an inline secret.
type EnvProvider struct{}

// NewEnvProvider creates an EnvProvider.
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{}
}

// Name returns "env".
func (p *EnvProvider) Name() string {
	return "env"
}

// Resolve looks up ref as an environment variable name.
func (p *EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := os.LookupEnv(ref)
	if !ok {
		return "", fmt.Errorf("secret: environment variable %q is not set", ref)
	}
	return v, nil
}

// Close is a no-op; EnvProvider holds no resources.
func (p *EnvProvider) Close() error {
	return nil
}

var _ Provider = (*EnvProvider)(nil)
