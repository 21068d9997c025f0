// Package sysinfo runs preflight resource checks before a decode job
// starts: available disk space at the sink destination and CPU count,
// surfaced through logging only. Findings are
// advisory only — they never block a decode.
package sysinfo

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
)

// Report summarises the host's resource state at preflight time.
type Report struct {
	CPUCount       int     `json:"cpu_count"`
	DiskTotalBytes uint64  `json:"disk_total_bytes"`
	DiskFreeBytes  uint64  `json:"disk_free_bytes"`
	DiskUsedPct    float64 `json:"disk_used_percent"`
}

// Collect gathers a Report for the filesystem containing path.
func Collect(ctx context.Context, path string) (Report, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return Report{}, fmt.Errorf("reading disk usage for %s: %w", path, err)
	}

	counts, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		counts = runtime.NumCPU()
	}

	return Report{
		CPUCount:       counts,
		DiskTotalBytes: usage.Total,
		DiskFreeBytes:  usage.Free,
		DiskUsedPct:    usage.UsedPercent,
	}, nil
}

// WarnIfTight reports whether free disk space is implausibly small relative
// to an expected output size (heuristically, less than 1.5x the source
// file's size), so a caller can log a warning without aborting the job.
func (r Report) WarnIfTight(expectedOutputBytes uint64) bool {
	return r.DiskFreeBytes < expectedOutputBytes+expectedOutputBytes/2
}
