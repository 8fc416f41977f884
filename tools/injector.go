package tools

import (
	"fmt"
	"time"

	"github.com/jonwraymond/toolops-mcp-server/toolbase"
)

// NewInjector builds the injection-tester descriptor: an http(s) URL
// target restricted to RFC1918/.lab.internal, a mandatory --batch
// flag, and clamped risk/level/thread parameters.
func NewInjector() *toolbase.Descriptor {
	return toolbase.NewDescriptor("Injector", "sqlmap",
		toolbase.WithDescription("HTTP injection tester restricted to non-interactive batch mode"),
		toolbase.WithFlags(
			[]string{"--batch", "--risk", "--level", "--threads", "-u"},
			[]string{"--risk", "--level", "--threads", "-u"},
			nil,
		),
		toolbase.WithTimeout(60*time.Second, 15*time.Minute),
		toolbase.WithConcurrency(1),
		toolbase.WithCircuitBreaker(3, time.Minute, 15*time.Minute, 1),
		toolbase.WithOutputLimits(2<<20, 512<<10),
		toolbase.WithValidators(validateInjectorTarget, validateInjectorSemantics, shapeInjector),
	)
}

func validateInjectorTarget(target string, allowIntrusive bool) (toolbase.TargetInfo, error) {
	if err := toolbase.ValidateHTTPTarget(target); err != nil {
		return toolbase.TargetInfo{}, err
	}
	return toolbase.TargetInfo{Host: target}, nil
}

func validateInjectorSemantics(tokens []string, info toolbase.TargetInfo, allowIntrusive bool, maxScanRate int) error {
	if raw, ok := flagValue(tokens, "--risk"); ok {
		n := atoiOr(raw, -1)
		if n < 1 || n > 2 {
			return fmt.Errorf("--risk %s is outside the allowed range [1,2]", raw)
		}
	}
	if raw, ok := flagValue(tokens, "--level"); ok {
		n := atoiOr(raw, -1)
		if n < 1 || n > 3 {
			return fmt.Errorf("--level %s is outside the allowed range [1,3]", raw)
		}
	}
	if raw, ok := flagValue(tokens, "--threads"); ok {
		n := atoiOr(raw, -1)
		if n < 1 || n > 5 {
			return fmt.Errorf("--threads %s exceeds the maximum of 5", raw)
		}
	}
	return nil
}

// shapeInjector enforces §4.3.8's "Must include --batch" by adding it
// whenever the caller omitted it, so the tool never runs in its
// interactive (and therefore hanging) mode. It only ever adds this
// one constant flag, so idempotence (§8 property 8) holds trivially.
func shapeInjector(tokens []string, info toolbase.TargetInfo, allowIntrusive bool) []string {
	if toolbase.ContainsFlag(tokens, "--batch") {
		return tokens
	}
	return append(append([]string{}, tokens...), "--batch")
}
