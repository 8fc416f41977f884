//go:build !unix

package toolbase

import (
	"os"
	"syscall"
)

// ResourceLimits are the best-effort per-platform caps from §4.3.4.
// Non-unix platforms have no rlimit equivalent wired here; the CPU
// timeout is still enforced by the timeout watchdog in exec.go.
type ResourceLimits struct {
	CPUSeconds   uint64
	AddressSpace uint64
	MaxOpenFiles uint64
}

const ReexecSentinel = "__toolops_apply_rlimit__"

func ReexecArgs(self string, limits ResourceLimits, resolvedCommand string, argv []string) []string {
	out := make([]string, 0, len(argv)+1)
	out = append(out, resolvedCommand)
	return append(out, argv...)
}

// ReexecIfSentinel is a no-op on non-unix platforms: there is no
// process-group kill or setrlimit equivalent wired here, so the
// spawn path never constructs a reexec command line for them.
func ReexecIfSentinel() {}

func KillProcessGroup(pid int, sig syscall.Signal) error {
	return os.ErrInvalid
}
