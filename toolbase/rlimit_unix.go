//go:build unix

package toolbase

import (
	"fmt"
	"os"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"
)

// ReexecSentinel is the hidden first argument that marks a process as
// the rlimit-applying child of a subprocess spawn rather than a normal
// invocation of the server binary. See ApplyAndExec.
const ReexecSentinel = "__toolops_apply_rlimit__"

// ResourceLimits are the best-effort per-platform caps from §4.3.4:
// a CPU-time soft limit equal to the call's timeout, an address-space
// ceiling, and a file-descriptor ceiling.
type ResourceLimits struct {
	CPUSeconds   uint64
	AddressSpace uint64
	MaxOpenFiles uint64
}

// ReexecArgs builds the argument vector for a self-reexec that applies
// limits before replacing itself with the real tool binary. Go's
// os/exec has no hook between fork and exec to set rlimits in the
// child, so the spawn path launches this same binary with a hidden
// sentinel argument; ReexecIfSentinel (called at the top of main)
// recognizes it, applies the limits, and execs the real command,
// never returning to the Go runtime it was forked from.
func ReexecArgs(self string, limits ResourceLimits, resolvedCommand string, argv []string) []string {
	out := make([]string, 0, len(argv)+5)
	out = append(out,
		ReexecSentinel,
		strconv.FormatUint(limits.CPUSeconds, 10),
		strconv.FormatUint(limits.AddressSpace, 10),
		strconv.FormatUint(limits.MaxOpenFiles, 10),
		resolvedCommand,
	)
	return append(out, argv...)
}

// ReexecIfSentinel must be called at the very top of main(), before
// flag parsing or any other setup. If the process was launched as an
// rlimit-applying reexec, it applies the encoded limits and execs the
// real tool binary in place; it never returns in that case. Otherwise
// it returns immediately and normal startup proceeds.
func ReexecIfSentinel() {
	if len(os.Args) < 6 || os.Args[1] != ReexecSentinel {
		return
	}

	cpuSec, _ := strconv.ParseUint(os.Args[2], 10, 64)
	addrSpace, _ := strconv.ParseUint(os.Args[3], 10, 64)
	maxFiles, _ := strconv.ParseUint(os.Args[4], 10, 64)
	command := os.Args[5]
	argv := os.Args[5:]

	if cpuSec > 0 {
		_ = unix.Setrlimit(unix.RLIMIT_CPU, &unix.Rlimit{Cur: cpuSec, Max: cpuSec})
	}
	if addrSpace > 0 {
		_ = unix.Setrlimit(unix.RLIMIT_AS, &unix.Rlimit{Cur: addrSpace, Max: addrSpace})
	}
	if maxFiles > 0 {
		_ = unix.Setrlimit(unix.RLIMIT_NOFILE, &unix.Rlimit{Cur: maxFiles, Max: maxFiles})
	}

	env := []string{"PATH=" + os.Getenv("PATH"), "LANG=C.UTF-8", "LC_ALL=C.UTF-8"}
	if err := unix.Exec(command, argv, env); err != nil {
		fmt.Fprintf(os.Stderr, "toolops: rlimit exec of %s failed: %v\n", command, err)
		os.Exit(127)
	}
}

// KillProcessGroup sends sig to the process group led by pid. Spawn
// always starts the child in a new group (Setpgid) so this reaches
// every descendant the tool itself forked.
func KillProcessGroup(pid int, sig syscall.Signal) error {
	return unix.Kill(-pid, unix.Signal(sig))
}
