package platform

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/emiliano1616/torto-pc-monitor-divoom/internal/execx"
)

// Every metric on darwin is obtained by shelling out; the per-sample
// latency is the sum of all utility run times, which bounds the
// practical cadence to several seconds.
const shellPollInterval = 5 * time.Second

const (
	cpuTempBin = "smctemp" // prints a bare numeric Celsius value
	smcBin     = "smc"     // raw SMC key reads

	smcKeyGPUTemp  = "TG0D" // GPU die temperature
	smcKeyDiskTemp = "TH0P" // primary drive bay temperature

	// powermetricsSampleMS is the single powermetrics sampling window
	// used for the GPU busy percentage.
	powermetricsSampleMS = "1000"
)

// shellSampler is the external-process backend used on darwin. Each
// metric is a separate utility invocation parsed by a pure function;
// any single invocation failing degrades only its own field.
type shellSampler struct {
	log     *slog.Logger
	runner  execx.Runner
	consent func(prompt string) bool

	// gpuGranted is decided once at Initialize. Without the grant, GPU
	// usage stays Sentinel for the lifetime of the sampler.
	gpuGranted bool
}

func newShellSampler(opts Options) *shellSampler {
	return &shellSampler{
		log:     opts.logger(),
		runner:  opts.runner(),
		consent: opts.consentElevated,
	}
}

func (s *shellSampler) Name() string {
	return "darwin-shell"
}

func (s *shellSampler) PollInterval() time.Duration {
	return shellPollInterval
}

// Initialize probes for required utilities and negotiates the sudo grant
// for powermetrics. smctemp is mandatory; smc and powermetrics are
// optional and their metrics degrade to Sentinel when absent.
func (s *shellSampler) Initialize(ctx context.Context) error {
	if _, err := s.runner.LookPath(cpuTempBin); err != nil {
		return fmt.Errorf("required utility %q not found (install it to read the CPU temperature): %w", cpuTempBin, err)
	}
	if _, err := s.runner.LookPath(smcBin); err != nil {
		s.log.Warn("smc utility not found, GPU and disk temperatures unavailable", "error", err)
	}

	s.gpuGranted = s.negotiateGPUAccess(ctx)
	if !s.gpuGranted {
		s.log.Info("GPU usage sampling disabled (no elevated privileges)")
	}

	return nil
}

// negotiateGPUAccess checks for cached sudo credentials and, failing
// that, asks the user once. powermetrics refuses to run unprivileged.
func (s *shellSampler) negotiateGPUAccess(ctx context.Context) bool {
	if _, err := s.runner.LookPath("powermetrics"); err != nil {
		s.log.Debug("powermetrics not found", "error", err)
		return false
	}

	if _, err := s.runner.Run(ctx, "sudo", "-n", "true"); err == nil {
		return true
	}

	if !s.consent("GPU usage requires running powermetrics with sudo. Grant access?") {
		return false
	}
	// Refresh the sudo timestamp so later -n invocations succeed.
	if _, err := s.runner.Run(ctx, "sudo", "-v"); err != nil {
		s.log.Warn("sudo grant failed, GPU usage unavailable", "error", err)
		return false
	}
	return true
}

// Sample invokes each utility in sequence. A panic anywhere in the pass
// is recovered and the fields populated so far are returned.
func (s *shellSampler) Sample(ctx context.Context) (r Reading) {
	r = NewReading()
	defer func() {
		if p := recover(); p != nil {
			s.log.Warn("sampling pass panicked, returning partial reading", "panic", p)
		}
	}()

	s.timed("cpu_temp", func() {
		out, err := s.runner.Run(ctx, cpuTempBin, "-c")
		if err != nil {
			s.log.Debug("cpu temperature read failed", "error", err)
			return
		}
		if v, err := parseBareTemperature(out); err == nil {
			r.CPUTemp = FormatCelsius(v)
		} else {
			s.log.Debug("cpu temperature parse failed", "error", err)
		}
	})

	s.timed("cpu_load", func() {
		out, err := s.runner.Run(ctx, "top", "-l", "1", "-n", "0")
		if err != nil {
			s.log.Debug("top snapshot failed", "error", err)
			return
		}
		if v, err := parseTopCPUUsage(out); err == nil {
			r.CPULoad = FormatPercent(v)
		} else {
			s.log.Debug("top parse failed", "error", err)
		}
	})

	s.timed("memory", func() {
		s.sampleMemory(ctx, &r)
	})

	s.timed("gpu_temp", func() {
		if v, ok := s.readSMCKey(ctx, smcKeyGPUTemp); ok {
			r.GPUTemp = FormatCelsius(v)
		}
	})

	s.timed("gpu_load", func() {
		if !s.gpuGranted {
			return
		}
		out, err := s.runner.Run(ctx, "sudo", "-n", "powermetrics",
			"--samplers", "gpu_power", "-i", powermetricsSampleMS, "-n", "1")
		if err != nil {
			s.log.Debug("powermetrics run failed", "error", err)
			return
		}
		if v, err := parseGPUResidency(out); err == nil {
			r.GPULoad = FormatPercent(v)
		} else {
			s.log.Debug("powermetrics parse failed", "error", err)
		}
	})

	s.timed("disk_temp", func() {
		if v, ok := s.readSMCKey(ctx, smcKeyDiskTemp); ok {
			r.DiskTemp = FormatCelsius(v)
		}
	})

	return r
}

// sampleMemory derives used memory from vm_stat page counts: used =
// (active + wired + compressed) pages times the page size, over the
// total physical memory reported by sysctl.
func (s *shellSampler) sampleMemory(ctx context.Context, r *Reading) {
	out, err := s.runner.Run(ctx, "vm_stat")
	if err != nil {
		s.log.Debug("vm_stat failed", "error", err)
		return
	}
	counters, err := parseVMStat(out)
	if err != nil {
		s.log.Debug("vm_stat parse failed", "error", err)
		return
	}

	memsize, err := s.runner.Run(ctx, "sysctl", "-n", "hw.memsize")
	if err != nil {
		s.log.Debug("sysctl hw.memsize failed", "error", err)
		return
	}
	total, err := strconv.ParseUint(firstNonEmptyLine(memsize), 10, 64)
	if err != nil {
		s.log.Debug("hw.memsize parse failed", "error", err)
		return
	}

	pct, err := usedMemoryPercent(counters.UsedBytes(), total)
	if err != nil {
		s.log.Debug("memory usage calculation failed", "error", err)
		return
	}
	r.MemUsage = fmt.Sprintf("%d%%", pct)
}

// readSMCKey reads one SMC sensor key. The SMC keys are optional:
// missing utility, non-zero exit, or unparsable output all yield a
// quiet miss rather than an error.
func (s *shellSampler) readSMCKey(ctx context.Context, key string) (float64, bool) {
	out, err := s.runner.Run(ctx, smcBin, "-k", key, "-r")
	if err != nil {
		s.log.Debug("smc read failed", "key", key, "error", err)
		return 0, false
	}
	v, err := parseSMCValue(out)
	if err != nil {
		s.log.Debug("smc parse failed", "key", key, "error", err)
		return 0, false
	}
	return v, true
}

func (s *shellSampler) Close() error {
	return nil
}

func (s *shellSampler) timed(metric string, fn func()) {
	start := time.Now()
	fn()
	s.log.Debug("sampled metric", "metric", metric, "elapsed", time.Since(start))
}
