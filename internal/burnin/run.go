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

package burnin

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/x-stp/coreburn/internal/report"
	"github.com/x-stp/coreburn/internal/telemetry"
	"github.com/x-stp/coreburn/internal/workload"
)

// RunConfig is the validated configuration the orchestrator consumes.
// Collection and validation of user input happens in the CLI layer and in
// the config package; by the time a RunConfig reaches Run it is assumed
// coherent.
type RunConfig struct {
	Cores             []int
	WorkloadIDs       []int
	CyclesPerWorkload []int // parallel to WorkloadIDs
	Policy            Policy

	MonitorInterval time.Duration
	MonitorCore     int // -1 to leave the monitor thread floating

	// MaxCyclesPerSecond throttles each core's cycle rate; <= 0 runs flat
	// out.
	MaxCyclesPerSecond float64

	Sink      report.Sink
	Telemetry telemetry.Source
}

// Result summarizes a finished run.
type Result struct {
	Started     time.Time
	Elapsed     time.Duration
	TotalErrors int64
	Offenders   []FailureCounters
	Final       report.Record
}

// Run executes one full burn-in: one engine goroutine per selected core,
// each bound to its OS thread, plus the monitor goroutine, all joined
// before returning. Cancelling ctx requests a cooperative stop; the run
// also stops on its own once every core exhausts its scheduled cycles.
//
// The returned error is non-nil iff any workload failure was recorded.
func Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	state := NewRunState()
	agg := NewErrorAggregator()
	engine := NewEngine(state, agg, cfg.MaxCyclesPerSecond)

	// Build every core's workload set up front, before any goroutine
	// starts, so a bad id fails the run without leaving workers behind.
	// Each core gets fresh workload instances; instances are not shared
	// across cores.
	sets := make([][]workload.Workload, len(cfg.Cores))
	for c, coreID := range cfg.Cores {
		workloads := make([]workload.Workload, len(cfg.WorkloadIDs))
		for i, id := range cfg.WorkloadIDs {
			w, err := workload.New(id)
			if err != nil {
				return nil, fmt.Errorf("building workload set for core %d: %w", coreID, err)
			}
			workloads[i] = w
		}
		sets[c] = workloads
	}

	started := time.Now()

	monitor := NewMonitor(state, agg, cfg.Telemetry, cfg.Sink, cfg.MonitorInterval, cfg.MonitorCore)
	var observers errgroup.Group
	observers.Go(func() error {
		monitor.Run()
		return nil
	})

	// Propagate external cancellation onto the shared flag. The watcher
	// exits through done once the run is over.
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			log.Println("Cancellation requested, stopping after in-flight cycles...")
			state.RequestStop()
		case <-done:
		}
	}()

	var engines errgroup.Group
	for c, core := range cfg.Cores {
		coreID := core
		workloads := sets[c]
		cycles := make([]int, len(cfg.CyclesPerWorkload))
		copy(cycles, cfg.CyclesPerWorkload)

		engines.Go(func() error {
			engine.RunOnCore(coreID, workloads, cycles, cfg.Policy)
			return nil
		})
	}

	_ = engines.Wait()
	state.RequestStop() // all scheduled work is done; release the monitor
	_ = observers.Wait()
	close(done)

	res := &Result{
		Started:     started,
		Elapsed:     time.Since(started),
		TotalErrors: agg.TotalErrors(),
		Offenders:   agg.TopOffenders(DefaultTopOffenders),
		Final:       BuildRecord(state, agg, cfg.Telemetry, DefaultTopOffenders),
	}

	if agg.AnyErrorSeen() {
		return res, fmt.Errorf("burn-in recorded %d workload failures", res.TotalErrors)
	}
	return res, nil
}
