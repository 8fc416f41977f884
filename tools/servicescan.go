package tools

import (
	"fmt"
	"time"

	"github.com/jonwraymond/toolops-mcp-server/toolbase"
)

// allowedScriptCategories is the exact category allowlist from
// §4.3.8; "intrusive" scripts are rejected outright here, not merely
// gated by allowIntrusive, because the category itself is never in
// this set.
var allowedScriptCategories = map[string]bool{
	"safe":      true,
	"default":   true,
	"discovery": true,
	"version":   true,
}

// allowedScripts enumerates the specific --script values permitted;
// intrusive ones are only admitted under security.allow_intrusive.
var allowedScripts = map[string]bool{
	"banner":       false, // false = conservative only
	"http-title":   false,
	"ssl-cert":     false,
	"vuln":         true,
	"http-vuln-*":  true,
}

const serviceScanAddressCeiling = 1024

// NewServiceScan builds the service-detection descriptor: a bounded
// RFC1918/CIDR or .lab.internal target, restricted script categories,
// and an optimizer that adds conservative timing and a top-ports
// default.
func NewServiceScan() *toolbase.Descriptor {
	return toolbase.NewDescriptor("ServiceScan", "nmap",
		toolbase.WithDescription("service and version detection scan restricted to safe script categories"),
		toolbase.WithFlags(
			[]string{"-sV", "--script", "--script-args", "-T", "--top-ports", "-p"},
			[]string{"--script", "--script-args", "-T", "--top-ports", "-p"},
			[]string{"safe", "default", "discovery", "version"},
		),
		toolbase.WithTimeout(60*time.Second, 10*time.Minute),
		toolbase.WithConcurrency(2),
		toolbase.WithCircuitBreaker(5, 30*time.Second, 10*time.Minute, 1),
		toolbase.WithOutputLimits(1<<20, 256<<10),
		toolbase.WithValidators(validateServiceScanTarget, validateServiceScanSemantics, shapeServiceScan),
		toolbase.WithCache(5*time.Minute, "recon"),
	)
}

func validateServiceScanTarget(target string, allowIntrusive bool) (toolbase.TargetInfo, error) {
	if toolbase.IsLabHostname(target) {
		return toolbase.TargetInfo{Host: target, AddressCount: 1}, nil
	}
	count, err := toolbase.ValidateHostOrCIDR(target)
	if err != nil {
		return toolbase.TargetInfo{}, err
	}
	if count > serviceScanAddressCeiling {
		return toolbase.TargetInfo{}, fmt.Errorf("%w: network denotes %d addresses, exceeds ceiling %d", toolbase.ErrTargetPolicy, count, serviceScanAddressCeiling)
	}
	return toolbase.TargetInfo{AddressCount: count, Host: target}, nil
}

func validateServiceScanSemantics(tokens []string, info toolbase.TargetInfo, allowIntrusive bool, maxScanRate int) error {
	if cat, ok := flagValue(tokens, "--script"); ok {
		if allowedScriptCategories[cat] {
			if !allowIntrusive && (cat == "discovery") {
				// discovery category is conservative enough to always allow;
				// kept as an explicit branch for clarity, not a restriction.
				return nil
			}
			return nil
		}
		if intrusive, known := allowedScripts[cat]; known {
			if intrusive && !allowIntrusive {
				return fmt.Errorf("script %q requires security.allow_intrusive", cat)
			}
			return nil
		}
		return fmt.Errorf("script %q is not in the allowed category or script list", cat)
	}
	return nil
}

// shapeServiceScan adds conservative timing (-T3) and a top-ports
// default when the caller did not specify either.
func shapeServiceScan(tokens []string, info toolbase.TargetInfo, allowIntrusive bool) []string {
	out := append([]string{}, tokens...)
	if !toolbase.ContainsFlag(out, "-T") {
		out = append(out, "-T3")
	}
	if !toolbase.ContainsFlag(out, "--top-ports") && !toolbase.ContainsFlag(out, "-p") {
		out = append(out, "--top-ports", "100")
	}
	return out
}
