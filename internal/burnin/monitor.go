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

	"golang.org/x/time/rate"

	"github.com/x-stp/coreburn/internal/affinity"
	"github.com/x-stp/coreburn/internal/metrics"
	"github.com/x-stp/coreburn/internal/report"
	"github.com/x-stp/coreburn/internal/telemetry"
)

// Monitor is the independent observer thread: it polls shared state at a
// fixed cadence, persists one report record per tick, and drains the
// shared error queue. It observes worker state strictly through copies
// and can fail without affecting worker correctness.
type Monitor struct {
	state    *RunState
	agg      *ErrorAggregator
	source   telemetry.Source
	sink     report.Sink
	interval time.Duration

	// pinCore pins the monitor thread to a core when >= 0, keeping its
	// sampling off the cores under test.
	pinCore int

	// console limits how fast drained errors are echoed to the operator.
	// The sink receives every record regardless.
	console *rate.Limiter
}

// NewMonitor wires a monitor to the shared run structures. A nil sink is
// allowed; records are then only surfaced through metrics and console.
func NewMonitor(state *RunState, agg *ErrorAggregator, source telemetry.Source, sink report.Sink, interval time.Duration, pinCore int) *Monitor {
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	return &Monitor{
		state:    state,
		agg:      agg,
		source:   source,
		sink:     sink,
		interval: interval,
		pinCore:  pinCore,
		console:  rate.NewLimiter(rate.Limit(ConsoleErrorRate), ConsoleErrorBurst),
	}
}

// Run executes the monitor loop until cancellation is observed. The
// readiness latch is guaranteed to be set before Run returns, whatever
// happens during setup or inside the loop, so workers are never blocked
// indefinitely on the observer.
func (m *Monitor) Run() {
	defer m.state.SignalMonitorReady()
	defer func() {
		if r := recover(); r != nil {
			m.state.PushError(ErrorRecord{
				Core:    -1,
				Origin:  "monitor",
				Message: fmt.Sprintf("monitor panic: %v", r),
			})
		}
	}()
	defer func() {
		if m.sink != nil {
			_ = m.sink.Close() // close errors are best-effort
		}
	}()

	if m.pinCore >= 0 {
		if err := affinity.Pin(m.pinCore); err != nil {
			log.Printf("Warning: failed to pin monitor to core %d: %v", m.pinCore, err)
		}
	}

	// One-time telemetry warm-up. A failure here is reported but does not
	// keep the monitor from running or the workers from starting.
	if err := m.source.Refresh(context.Background()); err != nil {
		m.state.PushError(ErrorRecord{Core: -1, Origin: "monitor", Message: fmt.Sprintf("telemetry warm-up: %v", err)})
	}

	m.state.SignalMonitorReady()
	log.Printf("Monitor ready, sampling %s every %v", m.source.DeviceName(), m.interval)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		if m.state.Stopping() {
			// Final tick so the last snapshot reflects end-of-run state,
			// including any core that halted visibly incomplete.
			m.tick()
			return
		}
		<-ticker.C
		m.tick()
	}
}

// tick takes one snapshot, drains the error queue exactly once, persists
// the record and publishes gauges.
func (m *Monitor) tick() {
	start := time.Now()

	if err := m.source.Refresh(context.Background()); err != nil {
		m.state.PushError(ErrorRecord{Core: -1, Origin: "monitor", Message: fmt.Sprintf("telemetry refresh: %v", err)})
	}

	rec := BuildRecord(m.state, m.agg, m.source, DefaultTopOffenders)

	for _, e := range m.state.DrainErrors() {
		rec.QueuedErrors = append(rec.QueuedErrors, report.QueuedError{
			Time:    e.Time,
			Core:    e.Core,
			Origin:  e.Origin,
			Message: e.Message,
		})
		if m.console.Allow() {
			log.Printf("Error [core %d, %s]: %s", e.Core, e.Origin, e.Message)
		}
	}
	metrics.CountDrained(len(rec.QueuedErrors))

	if m.sink != nil {
		if err := m.sink.Write(rec); err != nil {
			log.Printf("Warning: report sink write failed: %v", err)
		}
	}

	m.publish(rec)
	m.printStatus(rec)
	metrics.ObserveTick(time.Since(start))
}

// publish pushes the snapshot into the Prometheus gauges.
func (m *Monitor) publish(rec report.Record) {
	for _, cp := range rec.Progress {
		var completed, total int64
		for _, w := range cp.Workloads {
			completed += w.Completed
			total += w.Total
			metrics.SetWorkloadActive(cp.Core, w.Name, w.Active)
		}
		ratio := 1.0
		if total > 0 {
			ratio = float64(completed) / float64(total)
		}
		metrics.SetCoreProgress(cp.Core, ratio)
		metrics.SetCoreLoad(cp.Core, cp.Load)
	}
	for name, v := range rec.Sensors {
		metrics.SetSensor(name, v)
	}
}

// printStatus writes the compact in-place progress line.
func (m *Monitor) printStatus(rec report.Record) {
	var completed, total int64
	for _, cp := range rec.Progress {
		for _, w := range cp.Workloads {
			completed += w.Completed
			total += w.Total
		}
	}
	percent := 0.0
	if total > 0 {
		percent = float64(completed) / float64(total) * 100
	}
	fmt.Printf("\rCores: %d | Cycles: %d / %d (%.1f%%) | Errors: %d",
		len(rec.Progress), completed, total, percent, rec.Errors.TotalErrors)
}
