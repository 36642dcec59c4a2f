package stats

import (
	"os"

	"github.com/shirou/gopsutil/v3/process"
)

// HostSnapshot is the supplemental RSS/CPU pair appended to NODE STATUS
// (SPEC_FULL.md §12), gathered the way n-backup watches its own resource
// usage during long-running jobs via gopsutil.
type HostSnapshot struct {
	RSSBytes uint64
	CPUPct   float64
}

func ReadHostSnapshot() HostSnapshot {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return HostSnapshot{}
	}
	var snap HostSnapshot
	if mi, err := proc.MemoryInfo(); err == nil && mi != nil {
		snap.RSSBytes = mi.RSS
	}
	if pct, err := proc.CPUPercent(); err == nil {
		snap.CPUPct = pct
	}
	return snap
}
