package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

/* SystemMetrics represents current host metrics */
type SystemMetrics struct {
	Timestamp time.Time      `json:"timestamp"`
	CPU       CPUMetrics     `json:"cpu"`
	Memory    MemoryMetrics  `json:"memory"`
	Process   ProcessMetrics `json:"process"`
}

/* CPUMetrics contains CPU usage information */
type CPUMetrics struct {
	UsagePercent float64 `json:"usage_percent"`
	Count        int     `json:"count"`
}

/* MemoryMetrics contains memory usage information */
type MemoryMetrics struct {
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	Available   uint64  `json:"available"`
	UsedPercent float64 `json:"used_percent"`
}

/* ProcessMetrics contains process information */
type ProcessMetrics struct {
	GoRoutines int    `json:"go_routines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	HeapSys    uint64 `json:"heap_sys"`
}

/* CollectSystemMetrics gathers a snapshot of host and process metrics */
func CollectSystemMetrics(ctx context.Context) (*SystemMetrics, error) {
	m := &SystemMetrics{Timestamp: time.Now().UTC()}

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		m.CPU.UsagePercent = percents[0]
	}
	if count, err := cpu.CountsWithContext(ctx, true); err == nil {
		m.CPU.Count = count
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		m.Memory = MemoryMetrics{
			Total:       vm.Total,
			Used:        vm.Used,
			Available:   vm.Available,
			UsedPercent: vm.UsedPercent,
		}
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.Process = ProcessMetrics{
		GoRoutines: runtime.NumGoroutine(),
		HeapAlloc:  ms.HeapAlloc,
		HeapSys:    ms.HeapSys,
	}

	return m, nil
}
