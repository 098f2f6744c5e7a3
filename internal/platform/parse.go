package platform

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// tempStat is one temperature sensor reading from an enumeration pass.
// It mirrors the shape of gopsutil's TemperatureStat without tying the
// selection logic (or its tests) to that package.
type tempStat struct {
	Key   string
	Value float64
}

// cpuTempPreferences is the ordered label preference for the CPU
// temperature sensor. First match wins; candidates are never averaged.
var cpuTempPreferences = []string{"package", "core average", "core max"}

// selectCPUTemperature picks the CPU temperature from an enumerated
// sensor list. Matching is a case-insensitive substring test against the
// normalized sensor key, tried preference by preference in enumeration
// order.
func selectCPUTemperature(stats []tempStat) (float64, bool) {
	for _, pref := range cpuTempPreferences {
		for _, s := range stats {
			if strings.Contains(normalizeSensorKey(s.Key), pref) {
				return s.Value, true
			}
		}
	}
	return 0, false
}

// normalizeSensorKey lowercases a sensor key and treats underscores as
// spaces, so "coretemp_core_average" matches the "core average" label.
func normalizeSensorKey(key string) string {
	return strings.ReplaceAll(strings.ToLower(key), "_", " ")
}

// storageSensorPrefixes identify temperature sensors that belong to
// storage devices in the enumerated tree.
var storageSensorPrefixes = []string{"nvme", "drivetemp", "sd"}

// isStorageSensor reports whether a sensor key belongs to a storage device.
func isStorageSensor(key string) bool {
	k := normalizeSensorKey(key)
	for _, p := range storageSensorPrefixes {
		if strings.HasPrefix(k, p) {
			return true
		}
	}
	return false
}

// gpuSensorSubstrings identify GPU temperature sensors in the enumerated
// tree, used as a vendor-agnostic fallback when nvidia-smi is absent.
var gpuSensorSubstrings = []string{"amdgpu", "gpu"}

// selectGPUSensorTemperature picks the first GPU-looking temperature
// sensor in enumeration order.
func selectGPUSensorTemperature(stats []tempStat) (float64, bool) {
	for _, sub := range gpuSensorSubstrings {
		for _, s := range stats {
			if strings.Contains(normalizeSensorKey(s.Key), sub) {
				return s.Value, true
			}
		}
	}
	return 0, false
}

// memoryUsagePercent computes used-memory percent from an OS memory
// status query: (total - available) * 100 / total, truncated to an
// integer percent.
func memoryUsagePercent(total, available uint64) (uint64, error) {
	if total == 0 {
		return 0, fmt.Errorf("total physical memory is zero")
	}
	if available > total {
		available = total
	}
	return (total - available) * 100 / total, nil
}

// usedMemoryPercent computes the percent of total occupied by used,
// truncated to an integer. The shell-out backend derives used bytes
// from vm_stat page counts.
func usedMemoryPercent(used, total uint64) (uint64, error) {
	if total == 0 {
		return 0, fmt.Errorf("total physical memory is zero")
	}
	p := used * 100 / total
	if p > 100 {
		p = 100
	}
	return p, nil
}

// parseNvidiaSMI parses the first line of
// `nvidia-smi --query-gpu=temperature.gpu,utilization.gpu --format=csv,noheader,nounits`
// output, e.g. "56, 34". The first line is the first adapter in
// enumeration order.
func parseNvidiaSMI(output string) (temp, util float64, err error) {
	line := firstNonEmptyLine(output)
	if line == "" {
		return 0, 0, fmt.Errorf("empty nvidia-smi output")
	}
	parts := strings.Split(line, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("unexpected nvidia-smi line: %q", line)
	}
	temp, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing GPU temperature: %w", err)
	}
	util, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing GPU utilization: %w", err)
	}
	return temp, util, nil
}

// parseBareTemperature parses utilities that print a single numeric
// temperature, tolerating a trailing unit (e.g. "61.8" or "61.8°C").
func parseBareTemperature(output string) (float64, error) {
	s := strings.TrimSpace(output)
	s = strings.TrimSuffix(s, "°C")
	s = strings.TrimSuffix(s, "C")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty temperature output")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing temperature %q: %w", output, err)
	}
	return v, nil
}

// parseTopCPUUsage locates the "CPU usage:" line in a `top -l 1`
// snapshot and returns user% + sys%, capped at 100.
// Example line: "CPU usage: 12.5% user, 3.2% sys, 84.3% idle".
func parseTopCPUUsage(output string) (float64, error) {
	const marker = "CPU usage:"
	var line string
	for _, l := range strings.Split(output, "\n") {
		if strings.Contains(l, marker) {
			line = l
			break
		}
	}
	if line == "" {
		return 0, fmt.Errorf("no %q line in top output", marker)
	}

	rest := line[strings.Index(line, marker)+len(marker):]
	var total float64
	var found bool
	for _, part := range strings.Split(rest, ",") {
		part = strings.TrimSpace(part)
		if !strings.HasSuffix(part, "user") && !strings.HasSuffix(part, "sys") {
			continue
		}
		fields := strings.Fields(part)
		if len(fields) < 2 {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSuffix(fields[0], "%"), 64)
		if err != nil {
			return 0, fmt.Errorf("parsing %q: %w", part, err)
		}
		total += v
		found = true
	}
	if !found {
		return 0, fmt.Errorf("no user/sys percentages in %q", line)
	}
	if total > 100 {
		total = 100
	}
	return total, nil
}

var vmStatPageSizeRegex = regexp.MustCompile(`page size of (\d+) bytes`)

// vmStatCounters holds the page counts the memory calculation needs,
// parsed from `vm_stat` output.
type vmStatCounters struct {
	PageSize   uint64
	Free       uint64
	Active     uint64
	Inactive   uint64
	Wired      uint64
	Compressed uint64
}

// UsedBytes is the memory considered in use: active + wired + compressed
// pages times the page size.
func (v vmStatCounters) UsedBytes() uint64 {
	return (v.Active + v.Wired + v.Compressed) * v.PageSize
}

// parseVMStat parses `vm_stat` output. The header carries the page size:
//
//	Mach Virtual Memory Statistics: (page size of 16384 bytes)
//	Pages free:                              12345.
//	Pages active:                           234567.
//	...
func parseVMStat(output string) (vmStatCounters, error) {
	var c vmStatCounters

	m := vmStatPageSizeRegex.FindStringSubmatch(output)
	if m == nil {
		return c, fmt.Errorf("no page size in vm_stat output")
	}
	pageSize, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return c, fmt.Errorf("parsing page size: %w", err)
	}
	c.PageSize = pageSize

	targets := map[string]*uint64{
		"Pages free":                   &c.Free,
		"Pages active":                 &c.Active,
		"Pages inactive":               &c.Inactive,
		"Pages wired down":             &c.Wired,
		"Pages occupied by compressor": &c.Compressed,
	}

	for _, line := range strings.Split(output, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		dst, want := targets[strings.TrimSpace(key)]
		if !want {
			continue
		}
		value = strings.TrimSuffix(strings.TrimSpace(value), ".")
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return c, fmt.Errorf("parsing %q: %w", line, err)
		}
		*dst = n
	}

	return c, nil
}

// parseSMCValue parses `smc -k <key> -r` output and returns the trailing
// numeric value, e.g. "  TG0D  [flt ]  57.5" -> 57.5.
func parseSMCValue(output string) (float64, error) {
	line := firstNonEmptyLine(output)
	if line == "" {
		return 0, fmt.Errorf("empty smc output")
	}
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, fmt.Errorf("unexpected smc line: %q", line)
	}
	v, err := strconv.ParseFloat(fields[len(fields)-1], 64)
	if err != nil {
		return 0, fmt.Errorf("parsing smc value from %q: %w", line, err)
	}
	return v, nil
}

var gpuResidencyRegex = regexp.MustCompile(`GPU HW active residency:\s+([\d.]+)%`)

// parseGPUResidency scans powermetrics output for the GPU busy line and
// returns the percentage, e.g. "GPU HW active residency:  12.34%".
func parseGPUResidency(output string) (float64, error) {
	m := gpuResidencyRegex.FindStringSubmatch(output)
	if m == nil {
		return 0, fmt.Errorf("no GPU HW active residency line in powermetrics output")
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("parsing GPU residency: %w", err)
	}
	return v, nil
}

func firstNonEmptyLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}
