package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/x-stp/coreburn/internal/workload"
)

func TestDefaultExcludesFaultInjection(t *testing.T) {
	t.Parallel()

	cfg := Default()
	for _, id := range cfg.Workloads {
		if id == workload.FaultInjectID {
			t.Fatalf("fault injection must be opt-in, found in defaults")
		}
	}
	if len(cfg.Workloads) == 0 {
		t.Fatalf("defaults select no workloads")
	}
	if cfg.Policy != "sequential" {
		t.Fatalf("unexpected default policy %q", cfg.Policy)
	}
	if cfg.MonitorIntervalMS != 1000 {
		t.Fatalf("unexpected default interval %d", cfg.MonitorIntervalMS)
	}
}

func TestParseOverlaysFileOnDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"cores": [0, 2],
		"workloads": [1, 4],
		"cycles": [100, 50],
		"policy": "round-robin",
		"monitor_interval_ms": 250,
		"max_cycles_per_second": 500.0
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cfg.Cores) != 2 || cfg.Cores[1] != 2 {
		t.Fatalf("cores not read: %v", cfg.Cores)
	}
	if cfg.Policy != "round-robin" {
		t.Fatalf("policy not read: %q", cfg.Policy)
	}
	if cfg.MonitorIntervalMS != 250 {
		t.Fatalf("interval not read: %d", cfg.MonitorIntervalMS)
	}
	if cfg.MaxCyclesPerSecond != 500.0 {
		t.Fatalf("throttle not read: %v", cfg.MaxCyclesPerSecond)
	}
	// Fields absent from the file keep their defaults.
	if cfg.ReportPath == "" {
		t.Fatalf("default report path lost in overlay")
	}
}

func TestParseRejectsMissingOrInvalidFile(t *testing.T) {
	t.Parallel()

	if _, err := Parse(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatalf("missing file accepted")
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Parse(path); err == nil {
		t.Fatalf("malformed JSON accepted")
	}
}

func TestValidateFillsAllCoresWhenUnset(t *testing.T) {
	t.Parallel()

	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(cfg.Cores) != runtime.NumCPU() {
		t.Fatalf("expected %d cores, got %d", runtime.NumCPU(), len(cfg.Cores))
	}
}

func TestValidateRejectsBadInput(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"negative core", func(c *Config) { c.Cores = []int{0, -1} }},
		{"duplicate core", func(c *Config) { c.Cores = []int{1, 1} }},
		{"no workloads", func(c *Config) { c.Workloads = nil }},
		{"unknown workload", func(c *Config) { c.Workloads = []int{99} }},
		{"cycle length mismatch", func(c *Config) { c.Cycles = []int{1} }},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("invalid config accepted")
			}
		})
	}
}

func TestValidateNormalizesInterval(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.MonitorIntervalMS = -5
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.MonitorIntervalMS != 1000 {
		t.Fatalf("interval not normalized, got %d", cfg.MonitorIntervalMS)
	}
}
