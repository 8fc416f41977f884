package tools

import (
	"fmt"
	"strings"
	"time"

	"github.com/jonwraymond/toolops-mcp-server/toolbase"
)

// defaultPorts is used when the caller does not supply -p; a larger
// list is offered under intrusive mode.
const (
	defaultPortsConservative = "21,22,23,25,80,110,443,3389,8080"
	defaultPortsIntrusive    = "1-1024,1433,1521,3306,3389,5432,5900,6379,8080,8443,27017"
)

// largeNetworkCeiling is the default /16 address ceiling; intrusive
// mode raises it 4x per §4.3.8.
const (
	defaultAddressCeiling   = 1 << 16 // /16
	intrusiveAddressCeiling = 4 * defaultAddressCeiling
)

// NewPortSweep builds the fast-port-sweep descriptor: an RFC1918/CIDR
// target (up to /16, 4x under intrusive mode), a clamped packet rate,
// and a rejection of literal port zero.
func NewPortSweep() *toolbase.Descriptor {
	return toolbase.NewDescriptor("PortSweep", "masscan",
		toolbase.WithDescription("fast, rate-limited TCP port sweep over a private network range"),
		toolbase.WithFlags(
			[]string{"--rate", "-p", "--wait", "--retries", "-oG", "--open-only"},
			[]string{"--rate", "-p", "--wait", "--retries", "-oG"},
			nil,
		),
		toolbase.WithTimeout(30*time.Second, 5*time.Minute),
		toolbase.WithConcurrency(2),
		toolbase.WithOutputLimits(1<<20, 256<<10),
		toolbase.WithValidators(validatePortSweepTarget, validatePortSweepSemantics, shapePortSweep),
		toolbase.WithCache(2*time.Minute, "recon"),
	)
}

func validatePortSweepTarget(target string, allowIntrusive bool) (toolbase.TargetInfo, error) {
	count, err := toolbase.ValidateHostOrCIDR(target)
	if err != nil {
		return toolbase.TargetInfo{}, err
	}
	ceiling := uint64(defaultAddressCeiling)
	if allowIntrusive {
		ceiling = uint64(intrusiveAddressCeiling)
	}
	if count > ceiling {
		return toolbase.TargetInfo{}, fmt.Errorf("%w: network denotes %d addresses, exceeds ceiling %d", toolbase.ErrTargetPolicy, count, ceiling)
	}
	return toolbase.TargetInfo{AddressCount: count, Host: target}, nil
}

func validatePortSweepSemantics(tokens []string, info toolbase.TargetInfo, allowIntrusive bool, maxScanRate int) error {
	if rate, ok := flagValue(tokens, "--rate"); ok {
		n := atoiOr(rate, -1)
		hi := 100000
		if maxScanRate > 0 && maxScanRate < hi {
			hi = maxScanRate
		}
		if n < 100 || n > hi {
			return fmt.Errorf("--rate %s is outside the allowed range [100, %d]", rate, hi)
		}
	}
	if ports, ok := flagValue(tokens, "-p"); ok {
		if portSpecContainsZero(ports) {
			return fmt.Errorf("port 0 is not a scannable port")
		}
	}
	if !allowIntrusive {
		if ports, ok := flagValue(tokens, "-p"); ok && strings.Contains(ports, "1-1024") {
			return fmt.Errorf("full 1-1024 port range requires security.allow_intrusive")
		}
	}
	return nil
}

// shapePortSweep injects the rate, wait, retries, and port defaults
// the caller did not already supply; every token it adds is a literal
// constant already accepted by safeTokenPattern, so re-validation is a
// no-op per §8 property 8.
func shapePortSweep(tokens []string, info toolbase.TargetInfo, allowIntrusive bool) []string {
	out := append([]string{}, tokens...)
	if !toolbase.ContainsFlag(out, "--rate") {
		out = append(out, "--rate", "1000")
	}
	if !toolbase.ContainsFlag(out, "--wait") {
		out = append(out, "--wait", "1")
	}
	if !toolbase.ContainsFlag(out, "--retries") {
		out = append(out, "--retries", "1")
	}
	if !toolbase.ContainsFlag(out, "-p") {
		ports := defaultPortsConservative
		if allowIntrusive {
			ports = defaultPortsIntrusive
		}
		out = append(out, "-p", ports)
	}
	return out
}
