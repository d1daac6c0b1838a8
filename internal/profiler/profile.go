package profiler

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/mem"

	"github.com/wonny/optenrich/pkg/database"
)

const (
	gib = 1 << 30

	// maxLargeRowThreshold caps the row count above which a file is "large"
	maxLargeRowThreshold = 50_000
)

// Profile is the host resource budget used to size each file session
type Profile struct {
	CPUCount          int
	TotalMemory       uint64 // bytes
	MemoryPercent     int
	Threads           int
	MemoryLimitGB     int
	LargeRowThreshold int
}

// Detect inspects the host and derives a profile for memoryPercent
func Detect(ctx context.Context, memoryPercent int) (*Profile, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read host memory: %w", err)
	}
	return New(runtime.NumCPU(), vm.Total, memoryPercent), nil
}

// New derives a profile from explicit host figures.
// The memory limit never drops below 1 GB and the large-row threshold is
// one thousand rows per GB of RAM, capped at 50,000.
func New(cpus int, totalMemory uint64, memoryPercent int) *Profile {
	if cpus < 1 {
		cpus = 1
	}

	totalGB := float64(totalMemory) / gib

	limit := int(totalGB * float64(memoryPercent) / 100)
	if limit < 1 {
		limit = 1
	}

	threshold := int(totalGB * 1000)
	if threshold > maxLargeRowThreshold {
		threshold = maxLargeRowThreshold
	}
	if threshold < 1 {
		threshold = 1
	}

	return &Profile{
		CPUCount:          cpus,
		TotalMemory:       totalMemory,
		MemoryPercent:     memoryPercent,
		Threads:           cpus,
		MemoryLimitGB:     limit,
		LargeRowThreshold: threshold,
	}
}

// TotalMemoryGB returns total host memory in GB
func (p *Profile) TotalMemoryGB() float64 {
	return float64(p.TotalMemory) / gib
}

// Settings returns the engine settings for one file session
func (p *Profile) Settings() database.Settings {
	return database.Settings{
		Threads:       p.Threads,
		MemoryLimitGB: p.MemoryLimitGB,
	}
}

// IsLarge reports whether rows exceeds the large-row threshold
func (p *Profile) IsLarge(rows int64) bool {
	return rows > int64(p.LargeRowThreshold)
}
