package engine

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/time/rate"
)

const (
	DefaultPortStart = 6881
	DefaultPortEnd   = 6981
)

// AllocationMode decides how destination files are laid out before transfer.
type AllocationMode uint8

const (
	// AllocateSparse lets files grow as pieces arrive.
	AllocateSparse AllocationMode = iota
	// AllocateFull writes every file to its full length first.
	AllocateFull
)

func (m AllocationMode) String() string {
	if m == AllocateFull {
		return "allocate"
	}
	return "sparse"
}

func ParseAllocationMode(s string) (AllocationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sparse":
		return AllocateSparse, nil
	case "allocate", "full":
		return AllocateFull, nil
	}
	return AllocateSparse, fmt.Errorf("unknown allocation mode %q", s)
}

type Config struct {
	DownloadDirectory string `yaml:"DownloadDirectory"`
	PortStart         int    `yaml:"PortStart"`
	PortEnd           int    `yaml:"PortEnd"`
	AllocateStorage   bool   `yaml:"AllocateStorage"`
	EngineDebug       bool   `yaml:"EngineDebug"`
	MuteEngineLog     bool   `yaml:"MuteEngineLog"`
	EnableUpload      bool   `yaml:"EnableUpload"`
	EnableSeeding     bool   `yaml:"EnableSeeding"`
	DisableTrackers   bool   `yaml:"DisableTrackers"`
	DisableIPv6       bool   `yaml:"DisableIPv6"`
	NoDHT             bool   `yaml:"NoDHT"`
	UploadRate        string `yaml:"UploadRate"`
	DownloadRate      string `yaml:"DownloadRate"`
}

func (c *Config) Allocation() AllocationMode {
	if c.AllocateStorage {
		return AllocateFull
	}
	return AllocateSparse
}

// Ports lists the listen ports to try in order.
func (c *Config) Ports() ([]int, error) {
	start, end := c.PortStart, c.PortEnd
	if start == 0 && end == 0 {
		start, end = DefaultPortStart, DefaultPortEnd
	}
	if end == 0 {
		end = start
	}
	if start <= 0 || end > 65535 || start > end {
		return nil, fmt.Errorf("invalid port range %d-%d", start, end)
	}
	ports := make([]int, 0, end-start+1)
	for p := start; p <= end; p++ {
		ports = append(ports, p)
	}
	return ports, nil
}

func (c *Config) NormlizeConfigDir() (bool, error) {
	if c.DownloadDirectory == "" {
		return false, nil
	}
	dldir, err := filepath.Abs(c.DownloadDirectory)
	if err != nil {
		return false, fmt.Errorf("ERROR: Invalid path %s, %w", c.DownloadDirectory, err)
	}
	if c.DownloadDirectory == dldir {
		return false, nil
	}
	c.DownloadDirectory = dldir
	return true, nil
}

func (c *Config) UploadLimiter(log Logger) *rate.Limiter {
	l, err := rateLimiter(c.UploadRate)
	if err != nil {
		log.Printf("RateLimit [%s] unreconized, set as unlimited", c.UploadRate)
		c.UploadRate = ""
		return rate.NewLimiter(rate.Inf, 0)
	}
	return l
}

func (c *Config) DownloadLimiter(log Logger) *rate.Limiter {
	l, err := rateLimiter(c.DownloadRate)
	if err != nil {
		log.Printf("RateLimit [%s] unreconized, set as unlimited", c.DownloadRate)
		c.DownloadRate = ""
		return rate.NewLimiter(rate.Inf, 0)
	}
	return l
}
