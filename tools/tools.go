// Package tools holds the concrete tool policies: one Descriptor
// constructor per illustrative tool from spec.md §4.3.8, each wiring
// toolbase's shared primitives (target policy, argument validation)
// into a specific command's shape.
package tools

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jonwraymond/toolops-mcp-server/toolbase"
)

// clampInt bounds v to [lo, hi], matching config.Config's own
// clamp() style (value in, value + no error out).
func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// flagValue returns the token immediately following flag in tokens,
// or "" if flag is absent or has no following token.
func flagValue(tokens []string, flag string) (string, bool) {
	for i, t := range tokens {
		if t == flag && i+1 < len(tokens) {
			return tokens[i+1], true
		}
	}
	return "", false
}

// parsePortSpec rejects "0" appearing as a literal port in a
// comma-separated port spec like "80,443" or "0-1024".
func portSpecContainsZero(spec string) bool {
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "0" {
			return true
		}
		if strings.HasPrefix(part, "0-") {
			return true
		}
	}
	return false
}

// validateWordlistPath enforces §4.3.8's wordlist constraints: no
// path traversal, a size ceiling, and a line-count ceiling. It reads
// the file to count lines, so a missing or oversized file is reported
// as a validation failure rather than deferred to the subprocess.
func validateWordlistPath(path string, maxBytes int64, maxLines int) error {
	if strings.Contains(path, "..") {
		return fmt.Errorf("wordlist path %q must not contain '..'", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("wordlist %q is not accessible: %w", path, err)
	}
	if info.Size() > maxBytes {
		return fmt.Errorf("wordlist %q is %d bytes, exceeds maximum %d", path, info.Size(), maxBytes)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("wordlist %q is not accessible: %w", path, err)
	}
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		lines++
		if lines > maxLines {
			return fmt.Errorf("wordlist %q exceeds maximum line count %d", path, maxLines)
		}
	}
	return nil
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

var _ = toolbase.ErrSemanticValidation // referenced by every tool file in this package
