package health

import (
	"context"
	"fmt"
	"runtime"
	"syscall"
)

// ResourceCheckerConfig configures the CPU/disk resource checker. It
// mirrors MemoryCheckerConfig's warning/critical threshold shape.
type ResourceCheckerConfig struct {
	// CPUWarningThreshold and CPUCriticalThreshold bound goroutine
	// pressure relative to GOMAXPROCS, used as a cheap proxy for CPU
	// saturation without pulling in a platform-specific CPU sampler.
	CPUWarningThreshold  float64
	CPUCriticalThreshold float64

	// DiskWarningThreshold and DiskCriticalThreshold bound used space
	// on the filesystem backing DiskPath.
	DiskWarningThreshold  float64
	DiskCriticalThreshold float64

	// DiskPath is the filesystem path statfs is run against. Defaults
	// to "/" when empty.
	DiskPath string
}

// ResourceChecker reports on CPU and disk pressure, the Important-tier
// counterpart to MemoryChecker's memory pressure check.
type ResourceChecker struct {
	config ResourceCheckerConfig
}

// NewResourceChecker creates a new CPU/disk resource checker.
func NewResourceChecker(config ResourceCheckerConfig) *ResourceChecker {
	if config.CPUWarningThreshold <= 0 || config.CPUWarningThreshold >= 1 {
		config.CPUWarningThreshold = 0.8
	}
	if config.CPUCriticalThreshold <= 0 || config.CPUCriticalThreshold >= 1 {
		config.CPUCriticalThreshold = 0.95
	}
	if config.DiskWarningThreshold <= 0 || config.DiskWarningThreshold >= 1 {
		config.DiskWarningThreshold = 0.8
	}
	if config.DiskCriticalThreshold <= 0 || config.DiskCriticalThreshold >= 1 {
		config.DiskCriticalThreshold = 0.95
	}
	if config.DiskPath == "" {
		config.DiskPath = "/"
	}
	return &ResourceChecker{config: config}
}

// Name returns the name of this checker.
func (r *ResourceChecker) Name() string {
	return "resources"
}

// Check performs the CPU and disk pressure checks and reports the
// worse of the two statuses.
func (r *ResourceChecker) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	cpuRatio := cpuPressure()
	diskRatio, diskErr := diskUsage(r.config.DiskPath)

	details := map[string]any{
		"goroutines":   runtime.NumGoroutine(),
		"gomaxprocs":   runtime.GOMAXPROCS(0),
		"cpu_pressure": cpuRatio,
		"disk_path":    r.config.DiskPath,
	}
	if diskErr != nil {
		details["disk_error"] = diskErr.Error()
	} else {
		details["disk_usage_percent"] = diskRatio * 100
	}

	status := StatusHealthy
	messages := make([]string, 0, 2)

	switch {
	case cpuRatio >= r.config.CPUCriticalThreshold:
		status = StatusUnhealthy
		messages = append(messages, fmt.Sprintf("cpu pressure critical: %.1f%%", cpuRatio*100))
	case cpuRatio >= r.config.CPUWarningThreshold:
		status = StatusDegraded
		messages = append(messages, fmt.Sprintf("cpu pressure high: %.1f%%", cpuRatio*100))
	}

	if diskErr == nil {
		switch {
		case diskRatio >= r.config.DiskCriticalThreshold:
			status = StatusUnhealthy
			messages = append(messages, fmt.Sprintf("disk usage critical: %.1f%%", diskRatio*100))
		case diskRatio >= r.config.DiskWarningThreshold && status != StatusUnhealthy:
			status = StatusDegraded
			messages = append(messages, fmt.Sprintf("disk usage high: %.1f%%", diskRatio*100))
		}
	}

	if len(messages) == 0 {
		messages = append(messages, "cpu and disk usage normal")
	}

	msg := messages[0]
	for _, m := range messages[1:] {
		msg += "; " + m
	}

	switch status {
	case StatusUnhealthy:
		return Unhealthy(msg, ErrCheckFailed).WithDetails(details)
	case StatusDegraded:
		return Degraded(msg).WithDetails(details)
	default:
		return Healthy(msg).WithDetails(details)
	}
}

// cpuPressure approximates CPU saturation as live goroutines per
// logical CPU, normalized against a generous per-core budget. It is
// deliberately platform-independent rather than reading /proc/stat,
// since the server may run in a container with a throttled cgroup
// quota that /proc/stat's host-wide view would misrepresent anyway.
func cpuPressure() float64 {
	procs := runtime.GOMAXPROCS(0)
	if procs <= 0 {
		procs = 1
	}
	const budgetPerCore = 500.0
	ratio := float64(runtime.NumGoroutine()) / (budgetPerCore * float64(procs))
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}

// diskUsage reports the fraction of used space on the filesystem
// backing path.
func diskUsage(path string) (float64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, err
	}
	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bfree * uint64(stat.Bsize)
	if total == 0 {
		return 0, fmt.Errorf("statfs reported zero total blocks for %s", path)
	}
	used := total - free
	return float64(used) / float64(total), nil
}
