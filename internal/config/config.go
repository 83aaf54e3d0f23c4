/*
coreburn — CPU burn-in and stability validation tool in Go
Copyright (C) 2025  Pepijn van der Stap <coreburn@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package config holds the run configuration for a burn-in: which cores,
// which workloads with how many cycles, the scheduling policy, and the
// reporting/observability settings. A config can come from a JSON file,
// from CLI flags, or both (flags win).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/x-stp/coreburn/internal/workload"
)

// Config stores the full run configuration.
type Config struct {
	// Cores lists the logical processors to drive, one engine thread
	// each. Empty means every available core.
	Cores []int `json:"cores"`

	// Workloads lists catalog ids; Cycles is parallel to it. An empty
	// Cycles gets the default count per workload.
	Workloads []int `json:"workloads"`
	Cycles    []int `json:"cycles"`

	// Policy is one of sequential, round-robin, random.
	Policy string `json:"policy"`

	// MonitorIntervalMS is the reporting cadence in milliseconds.
	MonitorIntervalMS int `json:"monitor_interval_ms"`

	// MonitorCore optionally pins the monitor thread; -1 leaves it
	// floating.
	MonitorCore int `json:"monitor_core"`

	// ReportPath is where the per-tick JSON records are appended. Empty
	// disables the file sink.
	ReportPath string `json:"report_path"`

	// MaxCyclesPerSecond throttles each core; 0 runs unthrottled.
	MaxCyclesPerSecond float64 `json:"max_cycles_per_second"`

	// MetricsAddr is the Prometheus listen address; empty disables the
	// metrics server.
	MetricsAddr string `json:"metrics_addr"`

	// MaxErrors is reserved: the error budget before a run-wide stop is
	// accepted in configs for forward compatibility but is not consulted
	// by the engine, which halts a core on its first failure.
	MaxErrors int `json:"max_errors"`
}

// Default returns the configuration used when nothing is specified: every
// core, the full real-workload catalog, sequential order, 1 s reporting.
func Default() *Config {
	var ids []int
	for _, id := range workload.IDs() {
		if id == workload.FaultInjectID {
			continue // reserved self-test workload is opt-in
		}
		ids = append(ids, id)
	}
	return &Config{
		Workloads:         ids,
		Policy:            "sequential",
		MonitorIntervalMS: 1000,
		MonitorCore:       -1,
		ReportPath:        "coreburn-report.jsonl",
	}
}

// Parse reads a JSON config file over the defaults.
func Parse(path string) (*Config, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	cfg := Default()
	if err := json.Unmarshal(bytes, cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	return cfg, nil
}

// Validate normalizes and checks the configuration, filling derived
// defaults (all cores, default cycle counts) in place.
func (c *Config) Validate() error {
	if len(c.Cores) == 0 {
		for i := 0; i < runtime.NumCPU(); i++ {
			c.Cores = append(c.Cores, i)
		}
	}
	seen := make(map[int]bool, len(c.Cores))
	for _, core := range c.Cores {
		if core < 0 {
			return fmt.Errorf("invalid core index %d", core)
		}
		if seen[core] {
			return fmt.Errorf("core %d listed twice", core)
		}
		seen[core] = true
	}

	if len(c.Workloads) == 0 {
		return fmt.Errorf("no workloads selected")
	}
	for _, id := range c.Workloads {
		if _, err := workload.NameOf(id); err != nil {
			return err
		}
	}

	switch {
	case len(c.Cycles) == 0:
		// Per-workload counts are owned by the caller from here on.
	case len(c.Cycles) != len(c.Workloads):
		return fmt.Errorf("%d cycle counts for %d workloads", len(c.Cycles), len(c.Workloads))
	}

	if c.MonitorIntervalMS <= 0 {
		c.MonitorIntervalMS = 1000
	}
	return nil
}
