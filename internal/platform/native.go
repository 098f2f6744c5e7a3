package platform

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/emiliano1616/torto-pc-monitor-divoom/internal/execx"
)

// nativePollInterval is the sampling cadence for the in-process backend.
// One enumeration pass is cheap, so sub-second-to-second polling is fine.
const nativePollInterval = 1 * time.Second

// nvidiaSMIArgs queries temperature and utilization of every adapter in
// one call; the first CSV line is the first adapter in enumeration order.
var nvidiaSMIArgs = []string{
	"--query-gpu=temperature.gpu,utilization.gpu",
	"--format=csv,noheader,nounits",
}

// nativeSampler is the in-process enumeration backend, used on Linux and
// Windows. Metrics come from gopsutil's sensor tree and OS queries; GPU
// metrics come from nvidia-smi with a sensor-tree fallback for
// temperature, so AMD and NVIDIA adapters are treated alike.
//
// The sensor tree is re-enumerated on every pass rather than cached:
// gopsutil holds no handle worth keeping and a fresh query avoids stale
// trees after device hotplug or suspend.
type nativeSampler struct {
	log    *slog.Logger
	runner execx.Runner

	diskIndex  int
	chooseDisk func([]string) (int, error)
	diskKey    string // sensor key of the selected storage device, "" if none

	// Sampling sources, overridable in tests.
	temperatures func(ctx context.Context) ([]tempStat, error)
	virtualMem   func(ctx context.Context) (total, available uint64, err error)
	cpuPercent   func(ctx context.Context) (float64, error)
	gpuQuery     func(ctx context.Context) (string, error)
}

func newNativeSampler(opts Options) *nativeSampler {
	s := &nativeSampler{
		log:        opts.logger(),
		runner:     opts.runner(),
		diskIndex:  opts.DiskIndex,
		chooseDisk: opts.chooseDisk,
	}

	s.temperatures = func(ctx context.Context) ([]tempStat, error) {
		stats, err := host.SensorsTemperaturesWithContext(ctx)
		if err != nil && len(stats) == 0 {
			return nil, err
		}
		// gopsutil reports partial results with a non-nil error when
		// some sensors are unreadable; partial success is the normal case.
		out := make([]tempStat, 0, len(stats))
		for _, st := range stats {
			out = append(out, tempStat{Key: st.SensorKey, Value: st.Temperature})
		}
		return out, nil
	}
	s.virtualMem = func(ctx context.Context) (uint64, uint64, error) {
		vm, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			return 0, 0, err
		}
		return vm.Total, vm.Available, nil
	}
	s.cpuPercent = func(ctx context.Context) (float64, error) {
		// percpu=false yields the canonical total; per-core sensors are
		// deliberately ignored. Interval 0 measures since the last call.
		pcts, err := cpu.PercentWithContext(ctx, 0, false)
		if err != nil {
			return 0, err
		}
		if len(pcts) == 0 {
			return 0, fmt.Errorf("no aggregate CPU usage reported")
		}
		return pcts[0], nil
	}
	s.gpuQuery = func(ctx context.Context) (string, error) {
		return s.runner.Run(ctx, "nvidia-smi", nvidiaSMIArgs...)
	}

	return s
}

func (s *nativeSampler) Name() string {
	return "native"
}

func (s *nativeSampler) PollInterval() time.Duration {
	return nativePollInterval
}

// Initialize enumerates the sensor tree once to resolve storage device
// ambiguity. Enumeration failure is a warning, not a fatal error: the
// loop still runs and the affected fields stay at Sentinel.
func (s *nativeSampler) Initialize(ctx context.Context) error {
	stats, err := s.temperatures(ctx)
	if err != nil {
		s.log.Warn("sensor enumeration unavailable, temperature fields will be degraded", "error", err)
		return nil
	}

	var storage []string
	for _, st := range stats {
		if isStorageSensor(st.Key) {
			storage = append(storage, st.Key)
		}
	}

	switch len(storage) {
	case 0:
		s.log.Debug("no storage temperature sensors found")
	case 1:
		s.diskKey = storage[0]
	default:
		idx, err := s.chooseDisk(storage)
		if err != nil {
			return fmt.Errorf("choosing storage device: %w", err)
		}
		if idx < 0 || idx >= len(storage) {
			return fmt.Errorf("storage device index %d out of range (found %d)", idx, len(storage))
		}
		s.diskKey = storage[idx]
	}
	if s.diskKey != "" {
		s.log.Debug("selected storage sensor", "key", s.diskKey)
	}

	// Prime the CPU usage baseline so the first real pass has a delta.
	if _, err := s.cpuPercent(ctx); err != nil {
		s.log.Debug("priming CPU usage failed", "error", err)
	}

	if _, err := s.runner.LookPath("nvidia-smi"); err != nil {
		s.log.Debug("nvidia-smi not found, GPU metrics fall back to sensor tree", "error", err)
	}

	return nil
}

// Sample performs one enumeration pass. Every metric degrades
// independently; a panic anywhere in the pass is recovered here and the
// fields populated so far are returned as-is.
func (s *nativeSampler) Sample(ctx context.Context) (r Reading) {
	r = NewReading()
	defer func() {
		if p := recover(); p != nil {
			s.log.Warn("sampling pass panicked, returning partial reading", "panic", p)
		}
	}()

	stats, err := s.temperatures(ctx)
	if err != nil {
		s.log.Debug("temperature enumeration failed", "error", err)
		stats = nil
	}

	s.timed("cpu_temp", func() {
		if v, ok := selectCPUTemperature(stats); ok {
			r.CPUTemp = FormatCelsius(v)
		}
	})

	s.timed("cpu_load", func() {
		if v, err := s.cpuPercent(ctx); err == nil {
			r.CPULoad = FormatPercent(v)
		} else {
			s.log.Debug("CPU usage query failed", "error", err)
		}
	})

	s.timed("gpu", func() {
		s.sampleGPU(ctx, stats, &r)
	})

	s.timed("memory", func() {
		total, available, err := s.virtualMem(ctx)
		if err != nil {
			s.log.Debug("memory status query failed", "error", err)
			return
		}
		pct, err := memoryUsagePercent(total, available)
		if err != nil {
			s.log.Debug("memory usage calculation failed", "error", err)
			return
		}
		r.MemUsage = fmt.Sprintf("%d%%", pct)
	})

	s.timed("disk_temp", func() {
		if s.diskKey == "" {
			return
		}
		for _, st := range stats {
			if st.Key == s.diskKey {
				r.DiskTemp = FormatCelsius(st.Value)
				return
			}
		}
	})

	return r
}

// sampleGPU queries nvidia-smi first; if that fails, temperature falls
// back to the first GPU-looking sensor in the tree and load stays at
// Sentinel.
func (s *nativeSampler) sampleGPU(ctx context.Context, stats []tempStat, r *Reading) {
	out, err := s.gpuQuery(ctx)
	if err == nil {
		temp, util, perr := parseNvidiaSMI(out)
		if perr == nil {
			r.GPUTemp = FormatCelsius(temp)
			r.GPULoad = FormatPercent(util)
			return
		}
		err = perr
	}
	s.log.Debug("nvidia-smi query failed", "error", err)

	if v, ok := selectGPUSensorTemperature(stats); ok {
		r.GPUTemp = FormatCelsius(v)
	}
}

func (s *nativeSampler) Close() error {
	return nil
}

// timed runs fn and narrates its latency at Debug level.
func (s *nativeSampler) timed(metric string, fn func()) {
	start := time.Now()
	fn()
	s.log.Debug("sampled metric", "metric", metric, "elapsed", time.Since(start))
}
