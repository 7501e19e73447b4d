package monitor

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostStats is a point-in-time view of host load.
type HostStats struct {
	CPUPercent float64
	RAMPercent float64
	// IsBusy flags a host that is likely too loaded to transcode in real time.
	IsBusy bool
}

// SystemMonitor samples host CPU and memory usage.
type SystemMonitor struct {
	cpuBusy float64
	ramBusy float64
}

func NewSystemMonitor() *SystemMonitor {
	return &SystemMonitor{cpuBusy: 80.0, ramBusy: 90.0}
}

// Sample gathers CPU and RAM usage without blocking: CPU usage is measured
// since the previous call, so the first sample after start may read zero.
func (m *SystemMonitor) Sample(ctx context.Context) (HostStats, error) {
	stats := HostStats{}

	// 1. Get Memory Stats
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to get mem stats: %w", err)
	}
	stats.RAMPercent = v.UsedPercent

	// 2. Get CPU Percent since the last call
	cpuPct, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return stats, fmt.Errorf("failed to get cpu stats: %w", err)
	}
	if len(cpuPct) > 0 {
		stats.CPUPercent = cpuPct[0]
	}

	// 3. Busy Logic
	stats.IsBusy = stats.CPUPercent > m.cpuBusy || stats.RAMPercent > m.ramBusy

	return stats, nil
}
