package server

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

type stats struct {
	Version     string    `json:"version"`
	Runtime     string    `json:"runtime"`
	Uptime      time.Time `json:"uptime"`
	Descriptors int       `json:"descriptors"`
	DBSize      int64     `json:"dbSize"`
	CPU         float64   `json:"cpu"`
	DiskUsed    int64     `json:"diskUsed"`
	DiskTotal   int64     `json:"diskTotal"`
	MemoryUsed  int64     `json:"memoryUsed"`
	MemoryTotal int64     `json:"memoryTotal"`
	GoMemory    int64     `json:"goMemory"`
	GoRoutines  int       `json:"goRoutines"`
}

func (s *Server) loadStats() *stats {
	st := &stats{
		Version:     s.version,
		Runtime:     strings.TrimPrefix(runtime.Version(), "go"),
		Uptime:      s.started,
		Descriptors: s.store.Count(),
	}
	dbPath := s.store.Path()
	if fi, err := os.Stat(dbPath); err == nil {
		st.DBSize = fi.Size()
	}
	if cpu, err := cpu.Percent(0, false); err == nil && len(cpu) > 0 {
		st.CPU = cpu[0]
	}
	//count disk usage of the volume holding the database
	if stat, err := disk.Usage(filepath.Dir(dbPath)); err == nil {
		st.DiskUsed = int64(stat.Used)
		st.DiskTotal = int64(stat.Total)
	}
	//count memory usage
	if stat, err := mem.VirtualMemory(); err == nil {
		st.MemoryUsed = int64(stat.Used)
		st.MemoryTotal = int64(stat.Total)
	}
	//count total bytes allocated by the go runtime
	memStats := runtime.MemStats{}
	runtime.ReadMemStats(&memStats)
	st.GoMemory = int64(memStats.Alloc)
	st.GoRoutines = runtime.NumGoroutine()
	return st
}
