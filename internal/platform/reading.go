package platform

import (
	"fmt"
	"math"
)

// Sentinel is the display value for a metric that could not be measured
// during a sampling pass.
const Sentinel = "--"

// Reading holds one formatted sample of every monitored metric.
// Each field is either a formatted value ("42C", "17%") or Sentinel.
// A Reading is built fresh on every sampling pass and never mutated
// after it leaves the sampler.
type Reading struct {
	CPUTemp  string
	CPULoad  string
	GPUTemp  string
	GPULoad  string
	MemUsage string
	DiskTemp string
}

// NewReading returns a Reading with every field preset to Sentinel.
// Samplers populate only the metrics they could measure, so a Reading
// is always fully formed even when a pass fails halfway.
func NewReading() Reading {
	return Reading{
		CPUTemp:  Sentinel,
		CPULoad:  Sentinel,
		GPUTemp:  Sentinel,
		GPULoad:  Sentinel,
		MemUsage: Sentinel,
		DiskTemp: Sentinel,
	}
}

// Fields returns the metrics in the order the Divoom PC-monitor dial
// expects its DispData entries: CPU temp, CPU load, GPU temp, GPU load,
// memory usage, disk temp.
func (r Reading) Fields() []string {
	return []string{r.CPUTemp, r.CPULoad, r.GPUTemp, r.GPULoad, r.MemUsage, r.DiskTemp}
}

// FormatCelsius formats a temperature as an integer with a "C" suffix.
func FormatCelsius(v float64) string {
	return fmt.Sprintf("%dC", int(math.Round(v)))
}

// FormatPercent formats a percentage as an integer with a "%" suffix,
// clamped to [0, 100].
func FormatPercent(v float64) string {
	p := int(math.Round(v))
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return fmt.Sprintf("%d%%", p)
}
