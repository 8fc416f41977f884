package tools

import (
	"fmt"
	"time"

	"github.com/jonwraymond/toolops-mcp-server/toolbase"
)

var credTesterAllowedServices = map[string]bool{
	"ssh": true, "ftp": true, "http": true, "https": true,
	"mysql": true, "rdp": true, "smtp": true, "telnet": true,
}

const maxPasswordListLines = 10_000

// NewCredTester builds the credential-tester descriptor: a
// service-qualified host target, a requirement for at least one
// authentication flag, and thread/wait/password-list ceilings.
func NewCredTester() *toolbase.Descriptor {
	return toolbase.NewDescriptor("CredTester", "hydra",
		toolbase.WithDescription("online credential tester restricted to an enumerated service allowlist"),
		toolbase.WithFlags(
			[]string{"-l", "-L", "-p", "-P", "-t", "-w", "-s"},
			[]string{"-l", "-L", "-p", "-P", "-t", "-w", "-s"},
			nil,
		),
		toolbase.WithTimeout(30*time.Second, 5*time.Minute),
		toolbase.WithConcurrency(1),
		toolbase.WithOutputLimits(1<<20, 256<<10),
		toolbase.WithValidators(validateCredTesterTarget, validateCredTesterSemantics, nil),
	)
}

func validateCredTesterTarget(target string, allowIntrusive bool) (toolbase.TargetInfo, error) {
	host, service, err := toolbase.ValidateHostPortServiceTarget(target, credTesterAllowedServices)
	if err != nil {
		return toolbase.TargetInfo{}, err
	}
	return toolbase.TargetInfo{Host: host, Service: service}, nil
}

func validateCredTesterSemantics(tokens []string, info toolbase.TargetInfo, allowIntrusive bool, maxScanRate int) error {
	hasAuthFlag := toolbase.ContainsFlag(tokens, "-l") || toolbase.ContainsFlag(tokens, "-L") ||
		toolbase.ContainsFlag(tokens, "-p") || toolbase.ContainsFlag(tokens, "-P")
	if !hasAuthFlag {
		return fmt.Errorf("at least one of -l/-L/-p/-P is required")
	}

	if raw, ok := flagValue(tokens, "-t"); ok {
		n := atoiOr(raw, -1)
		if n < 1 || n > 16 {
			return fmt.Errorf("-t %s exceeds the maximum thread count of 16", raw)
		}
	}

	if raw, ok := flagValue(tokens, "-w"); ok {
		n := atoiOr(raw, -1)
		if n < 1 || n > 5 {
			return fmt.Errorf("-w %s exceeds the maximum wait of 5 seconds", raw)
		}
	}

	if path, ok := flagValue(tokens, "-P"); ok {
		if err := validateWordlistPath(path, maxWordlistBytes, maxPasswordListLines); err != nil {
			return err
		}
	}

	return nil
}
