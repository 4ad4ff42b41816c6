package api

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

const mb = 1 << 20

// processInfo — состояние процесса для /api/stats и /api/server
type processInfo struct {
	Uptime     string  `json:"uptime"`
	StartedAt  int64   `json:"started_at"`
	CPUPercent float64 `json:"cpu_percent"`
	HeapMB     float64 `json:"heap_mb"`
	SysMB      float64 `json:"sys_mb"`
	NumGC      uint32  `json:"num_gc"`
	Goroutines int     `json:"goroutines"`
}

// hostInfo заполняется только если gopsutil смог прочитать хост
type hostInfo struct {
	Cores         int     `json:"cpu_cores"`
	MemoryTotalMB uint64  `json:"memory_total_mb"`
	MemoryUsedPct float64 `json:"memory_used_pct"`
}

func readProcess(started time.Time) processInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	info := processInfo{
		Uptime:     uptime(time.Since(started)),
		StartedAt:  started.Unix(),
		HeapMB:     float64(m.HeapAlloc) / mb,
		SysMB:      float64(m.Sys) / mb,
		NumGC:      m.NumGC,
		Goroutines: runtime.NumGoroutine(),
	}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		info.CPUPercent, _ = p.CPUPercent()
	}
	return info
}

func readHost() (*hostInfo, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return nil, err
	}
	cores, err := cpu.Counts(true)
	if err != nil {
		return nil, err
	}
	return &hostInfo{
		Cores:         cores,
		MemoryTotalMB: vm.Total / mb,
		MemoryUsedPct: vm.UsedPercent,
	}, nil
}

// uptime форматирует длительность как "2д 3ч 4м 5с", опуская старшие нули
func uptime(d time.Duration) string {
	s := int64(d / time.Second)
	days, s := s/86400, s%86400
	hours, s := s/3600, s%3600
	mins, s := s/60, s%60

	switch {
	case days > 0:
		return fmt.Sprintf("%dд %dч %dм %dс", days, hours, mins, s)
	case hours > 0:
		return fmt.Sprintf("%dч %dм %dс", hours, mins, s)
	case mins > 0:
		return fmt.Sprintf("%dм %dс", mins, s)
	}
	return fmt.Sprintf("%dс", s)
}
