// Package performance samples resource usage of the running process.
package performance

import (
	"context"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/ajitpratap0/structenc/pkg/encerrors"
	"github.com/ajitpratap0/structenc/pkg/metrics"
)

// ResourceUsage contains resource usage information
type ResourceUsage struct {
	CPUPercent            float64
	MemoryRSS             uint64
	MemoryVMS             uint64
	SystemMemoryPercent   float64
	SystemMemoryAvailable uint64
	GoroutineCount        int
	ThreadCount           int32
}

// ResourceMonitor monitors the current process.
type ResourceMonitor struct {
	process      *process.Process
	startCPUTime float64
	startTime    time.Time

	mu   sync.Mutex
	peak uint64
}

// NewResourceMonitor creates a monitor of the current process. CPU usage is
// averaged from the moment it is created.
func NewResourceMonitor() (*ResourceMonitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, encerrors.Wrap(err, encerrors.ErrorTypeInternal, "cannot inspect process")
	}
	rm := &ResourceMonitor{process: proc, startTime: time.Now()}
	if t, err := proc.Times(); err == nil {
		rm.startCPUTime = t.Total()
	}
	return rm, nil
}

// Usage returns current resource usage. Values the platform cannot report
// are left zero.
func (rm *ResourceMonitor) Usage() ResourceUsage {
	usage := ResourceUsage{GoroutineCount: runtime.NumGoroutine()}

	if t, err := rm.process.Times(); err == nil {
		if elapsed := time.Since(rm.startTime).Seconds(); elapsed > 0 {
			usage.CPUPercent = (t.Total() - rm.startCPUTime) / elapsed * 100
		}
	}
	if mi, err := rm.process.MemoryInfo(); err == nil {
		usage.MemoryRSS = mi.RSS
		usage.MemoryVMS = mi.VMS
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		usage.SystemMemoryPercent = vm.UsedPercent
		usage.SystemMemoryAvailable = vm.Available
	}
	usage.ThreadCount, _ = rm.process.NumThreads()

	rm.mu.Lock()
	if usage.MemoryRSS > rm.peak {
		rm.peak = usage.MemoryRSS
	}
	rm.mu.Unlock()
	return usage
}

// PeakRSS returns the highest resident set size seen by Usage.
func (rm *ResourceMonitor) PeakRSS() uint64 {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.peak
}

// Sample takes one reading and publishes it as gauges.
func (rm *ResourceMonitor) Sample() ResourceUsage {
	u := rm.Usage()
	metrics.ProcessResources.WithLabelValues("cpu_percent").Set(u.CPUPercent)
	metrics.ProcessResources.WithLabelValues("rss_bytes").Set(float64(u.MemoryRSS))
	metrics.ProcessResources.WithLabelValues("goroutines").Set(float64(u.GoroutineCount))
	metrics.ProcessResources.WithLabelValues("threads").Set(float64(u.ThreadCount))
	return u
}

// Run samples every interval until ctx is done, then logs the final reading.
func (rm *ResourceMonitor) Run(ctx context.Context, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rm.Sample()
		case <-ctx.Done():
			u := rm.Sample()
			logger.Debug("resource usage",
				zap.Float64("cpu_percent", u.CPUPercent),
				zap.Uint64("rss_bytes", u.MemoryRSS),
				zap.Uint64("peak_rss_bytes", rm.PeakRSS()),
				zap.Int("goroutines", u.GoroutineCount),
			)
			return
		}
	}
}
