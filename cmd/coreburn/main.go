/*
Package main is the entry point for the coreburn command-line application.

coreburn drives synthetic compute workloads across selected logical
processors to validate hardware stability. Its primary functionalities
include:
  - Running a burn-in: one engine thread pinned per selected core, driving
    a workload set under a sequential, round-robin or random policy.
  - Observing the run from an independent monitor thread that samples
    progress, failures and hardware telemetry once per second and appends
    a structured JSON record per tick.
  - Listing the available workload catalog.

The application uses the Cobra library for command-line structure and
flag parsing. It leverages several internal packages:
  - `internal/burnin`: the concurrent scheduling, progress-tracking and
    error-aggregation engine.
  - `internal/workload`: the pluggable stress-computation catalog.
  - `internal/telemetry`: per-core load and sensor sampling.
  - `internal/report`: the structured per-tick report sink.
  - `internal/metrics`: Prometheus metrics for monitoring run behavior.

Graceful shutdown is handled via context cancellation triggered by OS
signals (SIGINT, SIGTERM); in-flight cycles run to completion.
*/
package main

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

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/x-stp/coreburn/internal/burnin"
	"github.com/x-stp/coreburn/internal/config"
	"github.com/x-stp/coreburn/internal/metrics"
	"github.com/x-stp/coreburn/internal/report"
	"github.com/x-stp/coreburn/internal/telemetry"
	"github.com/x-stp/coreburn/internal/workload"
)

// Flags for the run command
var (
	configPath   string
	coresSpec    string
	workloadSpec string
	cyclesSpec   string
	policyName   string
	intervalMS   int
	reportPath   string
	duration     time.Duration
	throttle     float64
	monitorCore  int
	enableMetric bool
	metricsPort  int
)

var rootCmd = &cobra.Command{
	Use:   "coreburn",
	Short: "coreburn - A per-core CPU burn-in and stability validation tool",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a burn-in across the selected cores",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBurnIn()
	},
}

var listCmd = &cobra.Command{
	Use:   "list-workloads",
	Short: "List the workload catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listWorkloads()
	},
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "JSON config file (flags override file values)")
	runCmd.Flags().StringVar(&coresSpec, "cores", "", "Cores to drive, e.g. 0-3,6 (default: all)")
	runCmd.Flags().StringVarP(&workloadSpec, "workloads", "w", "", "Workload ids, e.g. 1,3,5 or 'all' (default: full catalog)")
	runCmd.Flags().StringVar(&cyclesSpec, "cycles", "", "Cycles per workload, e.g. 500,500,100; a single value applies to all")
	runCmd.Flags().StringVarP(&policyName, "policy", "p", "", "Scheduling policy: sequential|round-robin|random")
	runCmd.Flags().IntVar(&intervalMS, "interval", 0, "Monitor interval in milliseconds")
	runCmd.Flags().StringVarP(&reportPath, "report", "o", "", "Report file for per-tick JSON records ('none' disables)")
	runCmd.Flags().DurationVarP(&duration, "duration", "d", 0, "Stop the run after this duration (0 = run to completion)")
	runCmd.Flags().Float64Var(&throttle, "throttle", 0, "Max cycles per second per core (0 = unthrottled)")
	runCmd.Flags().IntVar(&monitorCore, "monitor-core", -1, "Pin the monitor thread to this core (-1 = floating)")
	runCmd.Flags().BoolVar(&enableMetric, "metrics", false, "Expose Prometheus metrics")
	runCmd.Flags().IntVar(&metricsPort, "metrics-port", 9090, "Prometheus metrics port")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func listWorkloads() error {
	for _, id := range workload.IDs() {
		name, err := workload.NameOf(id)
		if err != nil {
			return err
		}
		note := ""
		if id == workload.FaultInjectID {
			note = " (reserved: intentionally eventually fails, for harness self-testing)"
		}
		fmt.Printf("  [%d] %s%s\n", id, name, note)
	}
	fmt.Printf("Found %d workloads\n", len(workload.IDs()))
	return nil
}

// runBurnIn is the handler for the 'run' command.
func runBurnIn() error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	if enableMetric {
		cfg.MetricsAddr = fmt.Sprintf(":%d", metricsPort)
	}
	if cfg.MetricsAddr != "" {
		metrics.EnableMetrics()
		if err := metrics.StartMetricsServer(cfg.MetricsAddr); err != nil {
			log.Printf("Failed to start metrics server: %v", err)
		}
	}

	policy, err := burnin.ParsePolicy(cfg.Policy)
	if err != nil {
		return err
	}

	cycles := cfg.Cycles
	if len(cycles) == 0 {
		cycles = make([]int, len(cfg.Workloads))
		for i := range cycles {
			cycles[i] = burnin.DefaultCyclesPerWorkload
		}
	}

	var sink report.Sink
	if cfg.ReportPath != "" && cfg.ReportPath != "none" {
		fileSink, err := report.NewFileSink(cfg.ReportPath)
		if err != nil {
			return fmt.Errorf("opening report sink: %w", err)
		}
		sink = fileSink
	}

	// Setup context and signal handling for graceful shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v, initiating shutdown...", sig)
		cancel()
	}()

	log.Printf("Starting burn-in: cores=%v workloads=%v policy=%s interval=%dms",
		cfg.Cores, cfg.Workloads, policy, cfg.MonitorIntervalMS)

	res, runErr := burnin.Run(ctx, burnin.RunConfig{
		Cores:              cfg.Cores,
		WorkloadIDs:        cfg.Workloads,
		CyclesPerWorkload:  cycles,
		Policy:             policy,
		MonitorInterval:    time.Duration(cfg.MonitorIntervalMS) * time.Millisecond,
		MonitorCore:        cfg.MonitorCore,
		MaxCyclesPerSecond: cfg.MaxCyclesPerSecond,
		Sink:               sink,
		Telemetry:          telemetry.NewSystemSource(),
	})

	displayFinalStats(res)

	if cfg.MetricsAddr != "" {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer shutdownCancel()
		_ = metrics.ShutdownMetricsServer(shutdownCtx)
	}

	return runErr
}

// buildConfig merges the optional config file with the command flags.
func buildConfig() (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		parsed, err := config.Parse(configPath)
		if err != nil {
			return nil, err
		}
		cfg = parsed
	}

	if coresSpec != "" {
		cores, err := parseCoreSpec(coresSpec)
		if err != nil {
			return nil, err
		}
		cfg.Cores = cores
	}
	if workloadSpec != "" && !strings.EqualFold(workloadSpec, "all") {
		ids, err := parseIntList(workloadSpec)
		if err != nil {
			return nil, fmt.Errorf("invalid --workloads: %w", err)
		}
		cfg.Workloads = ids
	} else if strings.EqualFold(workloadSpec, "all") {
		cfg.Workloads = workload.IDs()
	}
	if cyclesSpec != "" {
		counts, err := parseIntList(cyclesSpec)
		if err != nil {
			return nil, fmt.Errorf("invalid --cycles: %w", err)
		}
		if len(counts) == 1 {
			broadcast := make([]int, len(cfg.Workloads))
			for i := range broadcast {
				broadcast[i] = counts[0]
			}
			counts = broadcast
		}
		cfg.Cycles = counts
	}
	if policyName != "" {
		cfg.Policy = policyName
	}
	if intervalMS > 0 {
		cfg.MonitorIntervalMS = intervalMS
	}
	if reportPath != "" {
		cfg.ReportPath = reportPath
	}
	if throttle > 0 {
		cfg.MaxCyclesPerSecond = throttle
	}
	if monitorCore >= 0 {
		cfg.MonitorCore = monitorCore
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseCoreSpec parses "0-3,6,8" into a core list.
func parseCoreSpec(spec string) ([]int, error) {
	var cores []int
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err := strconv.Atoi(strings.TrimSpace(lo))
			if err != nil {
				return nil, fmt.Errorf("invalid core range %q", part)
			}
			end, err := strconv.Atoi(strings.TrimSpace(hi))
			if err != nil || end < start {
				return nil, fmt.Errorf("invalid core range %q", part)
			}
			for c := start; c <= end; c++ {
				cores = append(cores, c)
			}
			continue
		}
		c, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid core index %q", part)
		}
		cores = append(cores, c)
	}
	if len(cores) == 0 {
		return nil, fmt.Errorf("no cores in %q", spec)
	}
	return cores, nil
}

func parseIntList(spec string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", part)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty list %q", spec)
	}
	return out, nil
}

// displayFinalStats shows the summary statistics at the end.
func displayFinalStats(res *burnin.Result) {
	if res == nil {
		return
	}
	var completed, total int64
	for _, cp := range res.Final.Progress {
		for _, w := range cp.Workloads {
			completed += w.Completed
			total += w.Total
		}
	}
	rate := 0.0
	if res.Elapsed.Seconds() > 0 {
		rate = float64(completed) / res.Elapsed.Seconds()
	}

	// Ensure the final stats appear on a new line after the progress line.
	fmt.Println()
	fmt.Printf("\n--- Final Burn-In Statistics ---\n")
	fmt.Printf("  Device: %s\n", res.Final.Device)
	fmt.Printf(" Elapsed: %v\n", res.Elapsed.Round(time.Millisecond))
	fmt.Printf("   Cores: %d\n", len(res.Final.Progress))
	fmt.Printf("  Cycles: %d / %d\n", completed, total)
	fmt.Printf("    Rate: %.0f cycles/sec\n", rate)
	fmt.Printf("  Errors: %d\n", res.TotalErrors)
	for _, off := range res.Offenders {
		fmt.Printf("    core %d %s: consecutive=%d total=%d last=%q\n",
			off.Key.Core, off.Key.Workload, off.Consecutive, off.Total, off.LastMessage)
	}
	fmt.Printf("--------------------------------\n")
}
