package platform

import (
	"strings"
	"testing"
)

func TestSelectCPUTemperaturePreference(t *testing.T) {
	// Label preference wins over enumeration order: the package sensor
	// is picked even when listed after the per-core aggregates.
	stats := []tempStat{
		{Key: "coretemp_core_average", Value: 55},
		{Key: "coretemp_core_max", Value: 58},
		{Key: "coretemp_package_id_0", Value: 60},
		{Key: "acpitz", Value: 40},
	}
	v, ok := selectCPUTemperature(stats)
	if !ok {
		t.Fatal("expected a CPU temperature match")
	}
	if v != 60 {
		t.Errorf("selected %v, want 60 (package sensor)", v)
	}
}

func TestSelectCPUTemperatureFallbackOrder(t *testing.T) {
	tests := []struct {
		name  string
		stats []tempStat
		want  float64
		ok    bool
	}{
		{
			name: "core average when no package",
			stats: []tempStat{
				{Key: "coretemp_core_max", Value: 58},
				{Key: "coretemp_core_average", Value: 55},
			},
			want: 55,
			ok:   true,
		},
		{
			name: "core max when nothing better",
			stats: []tempStat{
				{Key: "acpitz", Value: 40},
				{Key: "coretemp_core_max", Value: 58},
			},
			want: 58,
			ok:   true,
		},
		{
			name:  "no candidate",
			stats: []tempStat{{Key: "acpitz", Value: 40}},
			ok:    false,
		},
		{
			name:  "empty tree",
			stats: nil,
			ok:    false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := selectCPUTemperature(tt.stats)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && v != tt.want {
				t.Errorf("selected %v, want %v", v, tt.want)
			}
		})
	}
}

func TestSelectCPUTemperatureDeterministic(t *testing.T) {
	stats := []tempStat{
		{Key: "coretemp_core_average", Value: 55},
		{Key: "coretemp_package_id_0", Value: 60},
	}
	first, _ := selectCPUTemperature(stats)
	for i := 0; i < 10; i++ {
		v, _ := selectCPUTemperature(stats)
		if v != first {
			t.Fatalf("pass %d selected %v, first pass selected %v", i, v, first)
		}
	}
}

func TestIsStorageSensor(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"nvme_composite", true},
		{"drivetemp_sda", true},
		{"sdb", true},
		{"coretemp_package_id_0", false},
		{"amdgpu_edge", false},
	}
	for _, tt := range tests {
		if got := isStorageSensor(tt.key); got != tt.want {
			t.Errorf("isStorageSensor(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestSelectGPUSensorTemperature(t *testing.T) {
	stats := []tempStat{
		{Key: "coretemp_package_id_0", Value: 60},
		{Key: "amdgpu_edge", Value: 51},
		{Key: "amdgpu_junction", Value: 62},
	}
	v, ok := selectGPUSensorTemperature(stats)
	if !ok || v != 51 {
		t.Errorf("selected (%v, %v), want (51, true)", v, ok)
	}

	if _, ok := selectGPUSensorTemperature([]tempStat{{Key: "acpitz", Value: 40}}); ok {
		t.Error("matched a non-GPU sensor")
	}
}

func TestMemoryUsagePercent(t *testing.T) {
	tests := []struct {
		total, available uint64
		want             uint64
	}{
		{16_000_000_000, 4_000_000_000, 75},
		{8, 8, 0},
		{3, 1, 66}, // truncation, not rounding
		{100, 150, 0},
	}
	for _, tt := range tests {
		got, err := memoryUsagePercent(tt.total, tt.available)
		if err != nil {
			t.Fatalf("memoryUsagePercent(%d, %d): %v", tt.total, tt.available, err)
		}
		if got != tt.want {
			t.Errorf("memoryUsagePercent(%d, %d) = %d, want %d", tt.total, tt.available, got, tt.want)
		}
	}

	if _, err := memoryUsagePercent(0, 0); err == nil {
		t.Error("expected error for zero total")
	}
}

func TestParseNvidiaSMI(t *testing.T) {
	temp, util, err := parseNvidiaSMI("56, 34\n")
	if err != nil {
		t.Fatal(err)
	}
	if temp != 56 || util != 34 {
		t.Errorf("got (%v, %v), want (56, 34)", temp, util)
	}

	// Multiple adapters: first line wins.
	temp, _, err = parseNvidiaSMI("56, 34\n61, 80\n")
	if err != nil {
		t.Fatal(err)
	}
	if temp != 56 {
		t.Errorf("got %v, want first adapter's 56", temp)
	}

	for _, bad := range []string{"", "garbage", "56, 34, 12", "x, y"} {
		if _, _, err := parseNvidiaSMI(bad); err == nil {
			t.Errorf("parseNvidiaSMI(%q): expected error", bad)
		}
	}
}

func TestParseBareTemperature(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"61.8\n", 61.8},
		{"61.8°C", 61.8},
		{"61.8 C", 61.8},
		{"45", 45},
	}
	for _, tt := range tests {
		v, err := parseBareTemperature(tt.in)
		if err != nil {
			t.Fatalf("parseBareTemperature(%q): %v", tt.in, err)
		}
		if v != tt.want {
			t.Errorf("parseBareTemperature(%q) = %v, want %v", tt.in, v, tt.want)
		}
	}

	for _, bad := range []string{"", "   ", "hot"} {
		if _, err := parseBareTemperature(bad); err == nil {
			t.Errorf("parseBareTemperature(%q): expected error", bad)
		}
	}
}

func TestParseTopCPUUsage(t *testing.T) {
	const snapshot = `Processes: 512 total, 2 running, 510 sleeping
Load Avg: 2.10, 2.35, 2.41
CPU usage: 12.5% user, 3.2% sys, 84.3% idle
SharedLibs: 240M resident`

	v, err := parseTopCPUUsage(snapshot)
	if err != nil {
		t.Fatal(err)
	}
	if v != 15.7 {
		t.Errorf("got %v, want 15.7 (user + sys)", v)
	}
	if got := FormatPercent(v); got != "16%" {
		t.Errorf("formatted %q, want %q", got, "16%")
	}
}

func TestParseTopCPUUsageCapped(t *testing.T) {
	v, err := parseTopCPUUsage("CPU usage: 80.0% user, 30.0% sys, 0.0% idle")
	if err != nil {
		t.Fatal(err)
	}
	if v != 100 {
		t.Errorf("got %v, want 100 (capped)", v)
	}
}

func TestParseTopCPUUsageErrors(t *testing.T) {
	for _, bad := range []string{
		"",
		"Load Avg: 2.10, 2.35, 2.41",
		"CPU usage: nothing useful here",
	} {
		if _, err := parseTopCPUUsage(bad); err == nil {
			t.Errorf("parseTopCPUUsage(%q): expected error", bad)
		}
	}
}

func TestParseVMStat(t *testing.T) {
	const out = `Mach Virtual Memory Statistics: (page size of 16384 bytes)
Pages free:                              100000.
Pages active:                            300000.
Pages inactive:                          150000.
Pages speculative:                        20000.
Pages wired down:                        120000.
Pages occupied by compressor:             80000.
Pageouts:                                  1234.`

	c, err := parseVMStat(out)
	if err != nil {
		t.Fatal(err)
	}
	if c.PageSize != 16384 {
		t.Errorf("PageSize = %d, want 16384", c.PageSize)
	}
	if c.Active != 300000 || c.Wired != 120000 || c.Compressed != 80000 {
		t.Errorf("counters = %+v", c)
	}
	want := uint64(300000+120000+80000) * 16384
	if got := c.UsedBytes(); got != want {
		t.Errorf("UsedBytes() = %d, want %d", got, want)
	}
}

func TestParseVMStatNoPageSize(t *testing.T) {
	if _, err := parseVMStat("Pages free: 100.\n"); err == nil {
		t.Error("expected error without page size header")
	}
}

func TestParseSMCValue(t *testing.T) {
	v, err := parseSMCValue("  TG0D  [flt ]  57.5\n")
	if err != nil {
		t.Fatal(err)
	}
	if v != 57.5 {
		t.Errorf("got %v, want 57.5", v)
	}

	for _, bad := range []string{"", "TG0D", "TG0D [flt ] hot"} {
		if _, err := parseSMCValue(bad); err == nil {
			t.Errorf("parseSMCValue(%q): expected error", bad)
		}
	}
}

func TestParseGPUResidency(t *testing.T) {
	out := strings.Join([]string{
		"**** GPU usage ****",
		"",
		"GPU HW active frequency: 444 MHz",
		"GPU HW active residency:  12.34% (444 MHz: 12% 612 MHz: .34%)",
		"GPU idle residency:  87.66%",
	}, "\n")

	v, err := parseGPUResidency(out)
	if err != nil {
		t.Fatal(err)
	}
	if v != 12.34 {
		t.Errorf("got %v, want 12.34", v)
	}

	if _, err := parseGPUResidency("GPU idle residency: 99%"); err == nil {
		t.Error("expected error without active residency line")
	}
}
