package server

import (
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
)

// SystemMetrics holds process-level health figures for the probes.
type SystemMetrics struct {
	UptimeSeconds  int64
	GoVersion      string
	Platform       string
	Arch           string
	MemoryUsed     string
	MemoryTotal    string
	CPULoadPercent float64
}

func (s *Server) systemMetrics() SystemMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	cpuLoad := 0.0
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		cpuLoad = percents[0]
	}

	return SystemMetrics{
		UptimeSeconds:  int64(time.Since(s.startTime).Seconds()),
		GoVersion:      runtime.Version(),
		Platform:       runtime.GOOS,
		Arch:           runtime.GOARCH,
		MemoryUsed:     fmt.Sprintf("%d MB", m.Alloc/(1024*1024)),
		MemoryTotal:    fmt.Sprintf("%d MB", m.Sys/(1024*1024)),
		CPULoadPercent: cpuLoad,
	}
}
