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
	"encoding/binary"
	"fmt"
	"log"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/zeebo/xxh3"
	"golang.org/x/time/rate"

	"github.com/x-stp/coreburn/internal/affinity"
	"github.com/x-stp/coreburn/internal/metrics"
	"github.com/x-stp/coreburn/internal/workload"
)

// engineSeq is a process-wide monotonic counter folded into each core's
// RNG seed, so cores started in the same nanosecond still draw distinct
// random cycle orders.
var engineSeq atomic.Uint64

// Engine drives one core's workload set through its requested cycle
// counts under a scheduling policy, publishing progress into RunState and
// failure statistics into the aggregator. One Engine is shared by all
// per-core goroutines; all per-core state lives on the stack of RunOnCore.
type Engine struct {
	state *RunState
	agg   *ErrorAggregator

	// maxCyclesPerSec, when positive, caps the cycle rate of each core
	// independently. Every RunOnCore call builds its own limiter, so N
	// cores each get the full configured rate. Consulted at cycle
	// boundaries only, like the cancellation flag.
	maxCyclesPerSec float64

	// readyTimeout bounds the wait on the monitor readiness latch.
	readyTimeout time.Duration
}

// NewEngine wires an engine to the shared run structures. maxCyclesPerSec
// <= 0 disables throttling.
func NewEngine(state *RunState, agg *ErrorAggregator, maxCyclesPerSec float64) *Engine {
	return &Engine{
		state:           state,
		agg:             agg,
		maxCyclesPerSec: maxCyclesPerSec,
		readyTimeout:    MonitorReadyTimeout,
	}
}

// RunOnCore is one core's entire execution: bind, wait for the monitor,
// register progress, then loop cycles under the policy until the work is
// exhausted, the run is cancelled, or the first failure halts this core.
// It returns nothing; its effects are progress mutation, error reporting,
// and possibly early termination of the calling goroutine's work.
//
// Other cores are unaffected by anything that happens here.
func (e *Engine) RunOnCore(coreID int, workloads []workload.Workload, cyclesPerWorkload []int, policy Policy) {
	// Failures outside the run/verify contract halt only this core and
	// surface through the shared queue, never as a panic across the
	// goroutine boundary.
	defer func() {
		if r := recover(); r != nil {
			e.state.PushError(ErrorRecord{
				Core:    coreID,
				Origin:  "engine",
				Message: fmt.Sprintf("engine panic on core %d: %v", coreID, r),
			})
		}
	}()

	if len(workloads) != len(cyclesPerWorkload) {
		e.state.PushError(ErrorRecord{
			Core:    coreID,
			Origin:  "engine",
			Message: fmt.Sprintf("core %d: %d workloads but %d cycle counts", coreID, len(workloads), len(cyclesPerWorkload)),
		})
		return
	}

	if err := affinity.Pin(coreID); err != nil {
		// Non-fatal: the thread floats, the burn-in still runs.
		log.Printf("Warning: failed to pin core %d: %v", coreID, err)
	}

	if !e.state.WaitMonitorReady(e.readyTimeout) {
		log.Printf("Warning: core %d proceeding without monitor readiness after %v", coreID, e.readyTimeout)
	}

	// Progress rows exist exactly once, before the first cycle, and are
	// mutated only by this goroutine afterwards.
	rows := make([]*WorkloadProgress, len(workloads))
	for i, w := range workloads {
		total := cyclesPerWorkload[i]
		if total < 0 {
			total = 0 // negative counts are clamped, not rejected
		}
		rows[i] = NewWorkloadProgress(w.Name(), coreID, int64(total))
	}
	if err := e.state.RegisterCore(coreID, rows); err != nil {
		e.state.PushError(ErrorRecord{Core: coreID, Origin: "engine", Message: err.Error()})
		return
	}

	// The throttle belongs to this call, not the shared Engine, so every
	// core is limited to maxCyclesPerSec on its own.
	var throttle *rate.Limiter
	if e.maxCyclesPerSec > 0 {
		throttle = rate.NewLimiter(rate.Limit(e.maxCyclesPerSec), 1)
	}

	switch policy {
	case PolicySequential:
		e.runSequential(coreID, workloads, rows, throttle)
	case PolicyRoundRobin:
		e.runRoundRobin(coreID, workloads, rows, throttle)
	case PolicyRandom:
		e.runRandom(coreID, workloads, rows, throttle)
	default:
		e.state.PushError(ErrorRecord{
			Core:    coreID,
			Origin:  "engine",
			Message: fmt.Sprintf("core %d: unknown policy %v", coreID, policy),
		})
	}

	for _, row := range rows {
		row.setActive(false)
	}
}

// runSequential executes workload i's full cycle count before moving to
// i+1. Zero-cycle workloads are skipped entirely.
func (e *Engine) runSequential(coreID int, workloads []workload.Workload, rows []*WorkloadProgress, throttle *rate.Limiter) {
	for i, w := range workloads {
		for rows[i].Remaining() > 0 {
			if !e.cycle(coreID, w, rows, i, throttle) {
				return
			}
		}
	}
}

// runRoundRobin executes one cycle per round for every workload that
// still has remaining cycles, in list order, until all are exhausted.
func (e *Engine) runRoundRobin(coreID int, workloads []workload.Workload, rows []*WorkloadProgress, throttle *rate.Limiter) {
	for {
		ranAny := false
		for i, w := range workloads {
			if rows[i].Remaining() <= 0 {
				continue
			}
			ranAny = true
			if !e.cycle(coreID, w, rows, i, throttle) {
				return
			}
		}
		if !ranAny {
			return
		}
	}
}

// runRandom picks uniformly among workloads with remaining cycles. The
// source is seeded per core from a monotonic counter and the core id, so
// cores started simultaneously do not replay identical sequences.
func (e *Engine) runRandom(coreID int, workloads []workload.Workload, rows []*WorkloadProgress, throttle *rate.Limiter) {
	rng := rand.New(rand.NewSource(coreSeed(coreID)))
	for {
		live := make([]int, 0, len(rows))
		for i := range rows {
			if rows[i].Remaining() > 0 {
				live = append(live, i)
			}
		}
		if len(live) == 0 {
			return
		}
		i := live[rng.Intn(len(live))]
		if !e.cycle(coreID, workloads[i], rows, i, throttle) {
			return
		}
	}
}

// cycle runs exactly one unit of work for rows[i] and interprets the
// outcome. It returns false when this core's loop must stop, whether
// through cancellation or through its first failure. Cancellation is
// observed here, at the cycle boundary, and never mid-cycle.
func (e *Engine) cycle(coreID int, w workload.Workload, rows []*WorkloadProgress, i int, throttle *rate.Limiter) bool {
	if e.state.Stopping() {
		return false // clean exit, not a failure
	}
	if throttle != nil {
		if d := throttle.Reserve().Delay(); d > 0 {
			// A stop during the reserved delay ends the wait; the next
			// cycle never starts.
			timer := time.NewTimer(d)
			select {
			case <-timer.C:
			case <-e.state.Done():
				timer.Stop()
				return false
			}
		}
	}

	markActive(rows, i)

	start := time.Now()
	out := runCycle(w)
	metrics.ObserveCycle(coreID, w.Name(), time.Since(start))

	switch out.Kind {
	case OutcomeOK:
		rows[i].markCompleted()
		e.agg.ResetOK(coreID, w.Name())
		return true
	case OutcomeValidationFailure:
		e.agg.Report(coreID, w.Name(), out.Err)
		metrics.CountFailure(coreID, w.Name(), "validation")
		return false
	default:
		// Outside the run/verify validation contract: surfaced once via
		// the queue rather than aggregated per key.
		e.state.PushError(ErrorRecord{Core: coreID, Origin: w.Name(), Message: out.Err.Error()})
		metrics.CountFailure(coreID, w.Name(), "unexpected")
		return false
	}
}

// markActive makes rows[i] the single active workload for its core,
// clearing the flag on all siblings first.
func markActive(rows []*WorkloadProgress, i int) {
	for j := range rows {
		if j != i {
			rows[j].setActive(false)
		}
	}
	rows[i].setActive(true)
}

// coreSeed derives the per-core RNG seed from a monotonic sequence number
// and the core id, hashed so nearby inputs do not yield nearby streams.
func coreSeed(coreID int) int64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], engineSeq.Add(1))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(coreID)^uint64(time.Now().UnixNano()))
	return int64(xxh3.Hash(buf[:]))
}
