package tools

import (
	"fmt"
	"time"

	"github.com/jonwraymond/toolops-mcp-server/toolbase"
)

// webEnumMode is inferred from the shape of target, not from an
// explicit flag: an http(s) URL selects the web/vhost family, a bare
// ".lab.internal" name selects DNS mode. info.Service carries the
// inferred mode to the semantic validator and shaper.
const (
	modeWeb   = "web"
	modeVhost = "vhost"
	modeDNS   = "dns"
)

var webExtensionAllowlist = map[string]bool{
	"php": true, "html": true, "txt": true, "js": true, "bak": true,
}

var webExtensionIntrusive = map[string]bool{
	"asp": true, "aspx": true, "jsp": true, "cgi": true, "sh": true,
}

const maxWordlistBytes = 50 << 20
const maxWordlistLines = 1_000_000

// NewWebEnum builds the web/DNS enumerator descriptor covering the
// three modes from §4.3.8: directory brute force, vhost brute force,
// and DNS subdomain brute force.
func NewWebEnum() *toolbase.Descriptor {
	return toolbase.NewDescriptor("WebEnum", "gobuster",
		toolbase.WithDescription("web directory, vhost, and DNS subdomain enumerator"),
		toolbase.WithFlags(
			[]string{"-w", "-t", "-x", "--vhost", "-u"},
			[]string{"-w", "-t", "-x", "-u"},
			nil,
		),
		toolbase.WithTimeout(60*time.Second, 10*time.Minute),
		toolbase.WithConcurrency(3),
		toolbase.WithOutputLimits(1<<20, 256<<10),
		toolbase.WithValidators(validateWebEnumTarget, validateWebEnumSemantics, nil),
		toolbase.WithCache(3*time.Minute, "recon"),
	)
}

func validateWebEnumTarget(target string, allowIntrusive bool) (toolbase.TargetInfo, error) {
	if err := toolbase.ValidateHTTPTarget(target); err == nil {
		return toolbase.TargetInfo{Host: target, Service: modeWeb}, nil
	}
	if err := toolbase.ValidateLabDNSName(target); err == nil {
		return toolbase.TargetInfo{Host: target, Service: modeDNS}, nil
	}
	return toolbase.TargetInfo{}, fmt.Errorf("%w: %q is neither an http(s) URL nor a .lab.internal DNS name", toolbase.ErrTargetPolicy, target)
}

func validateWebEnumSemantics(tokens []string, info toolbase.TargetInfo, allowIntrusive bool, maxScanRate int) error {
	mode := info.Service
	if toolbase.ContainsFlag(tokens, "--vhost") {
		mode = modeVhost
	}

	threadCeiling := map[string]int{modeWeb: 30, modeVhost: 20, modeDNS: 50}[mode]
	if raw, ok := flagValue(tokens, "-t"); ok {
		n := atoiOr(raw, -1)
		if n < 1 || n > threadCeiling {
			return fmt.Errorf("-t %s exceeds the %s-mode ceiling of %d", raw, mode, threadCeiling)
		}
	}

	if path, ok := flagValue(tokens, "-w"); ok {
		if err := validateWordlistPath(path, maxWordlistBytes, maxWordlistLines); err != nil {
			return err
		}
	}

	if mode == modeDNS && toolbase.ContainsFlag(tokens, "-x") {
		return fmt.Errorf("extension filtering (-x) does not apply to DNS mode")
	}

	if ext, ok := flagValue(tokens, "-x"); ok {
		for _, e := range splitCSV(ext) {
			if webExtensionAllowlist[e] {
				continue
			}
			if webExtensionIntrusive[e] && allowIntrusive {
				continue
			}
			return fmt.Errorf("extension %q is not allowed", e)
		}
	}

	return nil
}

func splitCSV(s string) []string {
	var out []string
	cur := ""
	for _, r := range s {
		if r == ',' {
			out = append(out, cur)
			cur = ""
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}
