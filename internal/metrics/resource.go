package metrics

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/AlexZinkM/linera-client/internal/model"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

var (
	selfOnce sync.Once
	self     *process.Process
	selfErr  error
)

func current() (*process.Process, error) {
	selfOnce.Do(func() {
		self, selfErr = process.NewProcess(int32(os.Getpid()))
	})
	return self, selfErr
}

// CollectMetrics samples CPU and memory usage of the running process. CPU is
// measured against the previous call; the first call reports the average since
// start.
func CollectMetrics() (model.ResourceSample, error) {
	p, err := current()
	if err != nil {
		return model.ResourceSample{}, fmt.Errorf("failed to open process: %w", err)
	}

	cpu, err := p.Percent(0)
	if err != nil {
		return model.ResourceSample{}, fmt.Errorf("failed to read cpu usage: %w", err)
	}
	mem, err := p.MemoryInfo()
	if err != nil {
		return model.ResourceSample{}, fmt.Errorf("failed to read memory usage: %w", err)
	}
	// best-effort: 0 when the platform cannot report threads
	threads, err := p.NumThreads()
	if err != nil {
		threads = 0
	}

	sample := model.ResourceSample{
		CPUPercent: cpu,
		MemoryMB:   float64(mem.RSS) / 1024.0 / 1024.0,
		Threads:    threads,
		Goroutines: runtime.NumGoroutine(),
		SampledAt:  time.Now().UTC(),
	}
	processCPU.Set(sample.CPUPercent)
	processRSS.Set(sample.MemoryMB)
	return sample, nil
}

// RunLogger logs a resource sample every interval until ctx ends.
func RunLogger(ctx context.Context, interval time.Duration, log *zap.Logger) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		sample, err := CollectMetrics()
		if err != nil {
			log.Warn("resource sample failed", zap.Error(err))
		} else {
			log.Info("resources",
				zap.String("cpu", fmt.Sprintf("%.2f%%", sample.CPUPercent)),
				zap.String("memory", fmt.Sprintf("%.2f MB", sample.MemoryMB)),
				zap.Int32("threads", sample.Threads),
				zap.Int("goroutines", sample.Goroutines),
			)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
