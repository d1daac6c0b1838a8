package profiler

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/wonny/optenrich/internal/contracts"
)

// Timer measures wall time and resident memory across one stage
type Timer struct {
	stage    contracts.Stage
	start    time.Time
	memStart uint64
}

// StartTimer collects garbage, samples RSS and starts the clock.
//
//	t := profiler.StartTimer(contracts.StageEnrich)
//	counts, err := stage.Run(ctx, fc)
//	report := t.Stop()
func StartTimer(stage contracts.Stage) *Timer {
	runtime.GC()
	return &Timer{
		stage:    stage,
		start:    time.Now(),
		memStart: RSS(),
	}
}

// Stop returns the stage metrics. Counts are filled in by the caller.
func (t *Timer) Stop() contracts.StageReport {
	return contracts.StageReport{
		Stage:    t.stage,
		Duration: time.Since(t.start),
		MemStart: t.memStart,
		MemEnd:   RSS(),
	}
}

// RSS returns the resident set size of the current process in bytes.
// Falls back to the Go runtime's view when the OS figure is unavailable.
func RSS() uint64 {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err == nil {
		if info, err := p.MemoryInfo(); err == nil {
			return info.RSS
		}
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.Sys
}
