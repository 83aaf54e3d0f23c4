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
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// ErrorRecord is a transient error payload pushed by any worker or by the
// monitor itself, and consumed exactly once by the monitor's drain.
type ErrorRecord struct {
	Time    time.Time
	Core    int    // -1 when the origin has no core (monitor)
	Origin  string // "engine", "monitor", or a workload name
	Message string
}

// WorkloadProgress tracks one (core, workload) pair's advance through its
// requested cycle count. The owning engine thread is the single writer;
// all other readers go through the atomic accessors and take copies.
type WorkloadProgress struct {
	name  string
	core  int
	total int64

	completed atomic.Int64
	active    atomic.Bool
}

// NewWorkloadProgress creates a progress row. Total is fixed for the run.
func NewWorkloadProgress(name string, core int, total int64) *WorkloadProgress {
	return &WorkloadProgress{name: name, core: core, total: total}
}

func (p *WorkloadProgress) Name() string     { return p.name }
func (p *WorkloadProgress) Core() int        { return p.core }
func (p *WorkloadProgress) Total() int64     { return p.total }
func (p *WorkloadProgress) Completed() int64 { return p.completed.Load() }
func (p *WorkloadProgress) Active() bool     { return p.active.Load() }

// Remaining returns how many cycles this row still owes.
func (p *WorkloadProgress) Remaining() int64 { return p.total - p.completed.Load() }

// markCompleted and setActive are reserved for the owning engine thread.
func (p *WorkloadProgress) markCompleted()    { p.completed.Add(1) }
func (p *WorkloadProgress) setActive(on bool) { p.active.Store(on) }

// RunState is the process-wide run-control state shared by every engine
// thread and the monitor. Each field is internally synchronized; there is
// deliberately no outer lock and no cross-field atomicity.
type RunState struct {
	stop     atomic.Bool
	stopOnce sync.Once
	stopped  chan struct{}

	readyOnce sync.Once
	ready     chan struct{}

	queueMu sync.Mutex
	queue   []ErrorRecord

	progressMu sync.RWMutex
	progress   map[int][]*WorkloadProgress
}

// NewRunState constructs the shared state for one run. It is created once
// at run start and lives for the run's duration.
func NewRunState() *RunState {
	return &RunState{
		stopped:  make(chan struct{}),
		ready:    make(chan struct{}),
		progress: make(map[int][]*WorkloadProgress),
	}
}

// RequestStop sets the cooperative cancellation flag. It never interrupts
// an in-flight cycle; engines and the monitor observe it at their next
// cycle/tick boundary.
func (s *RunState) RequestStop() {
	s.stopOnce.Do(func() {
		s.stop.Store(true)
		close(s.stopped)
	})
}

// Stopping reports whether cancellation has been requested.
func (s *RunState) Stopping() bool { return s.stop.Load() }

// Done returns a channel closed once cancellation has been requested, for
// selects that must not outlive the run (throttle delays, external waits).
func (s *RunState) Done() <-chan struct{} { return s.stopped }

// SignalMonitorReady flips the one-shot readiness latch. Extra calls are
// no-ops, so the monitor can both defer it for crash safety and call it
// explicitly after warm-up.
func (s *RunState) SignalMonitorReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// WaitMonitorReady blocks until the monitor readiness latch is set or the
// timeout elapses, reporting which happened. Callers treat a timeout as a
// warning, never as a reason to abort.
func (s *RunState) WaitMonitorReady(timeout time.Duration) bool {
	select {
	case <-s.ready:
		return true
	case <-time.After(timeout):
		return false
	}
}

// PushError enqueues a transient error record. Safe from any thread; the
// queue is unbounded so producers never block.
func (s *RunState) PushError(rec ErrorRecord) {
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}
	s.queueMu.Lock()
	s.queue = append(s.queue, rec)
	s.queueMu.Unlock()
}

// DrainErrors removes and returns every queued record. Each record is
// surfaced exactly once; an empty queue yields a nil slice.
func (s *RunState) DrainErrors() []ErrorRecord {
	s.queueMu.Lock()
	drained := s.queue
	s.queue = nil
	s.queueMu.Unlock()
	return drained
}

// QueuedErrors reports the current queue depth without consuming it.
func (s *RunState) QueuedErrors() int {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	return len(s.queue)
}

// RegisterCore installs the ordered progress rows for a core. It must be
// called exactly once per core, by that core's engine thread, before the
// first cycle executes; a second registration is a programming error.
func (s *RunState) RegisterCore(core int, rows []*WorkloadProgress) error {
	s.progressMu.Lock()
	defer s.progressMu.Unlock()
	if _, dup := s.progress[core]; dup {
		return fmt.Errorf("core %d already registered", core)
	}
	s.progress[core] = rows
	return nil
}

// Cores returns the registered core ids in ascending order.
func (s *RunState) Cores() []int {
	s.progressMu.RLock()
	defer s.progressMu.RUnlock()
	cores := make([]int, 0, len(s.progress))
	for c := range s.progress {
		cores = append(cores, c)
	}
	sort.Ints(cores)
	return cores
}

// CoreProgress returns the progress rows registered for a core. The slice
// itself is a copy; the rows are shared but only readable through their
// atomic accessors.
func (s *RunState) CoreProgress(core int) []*WorkloadProgress {
	s.progressMu.RLock()
	defer s.progressMu.RUnlock()
	rows := s.progress[core]
	out := make([]*WorkloadProgress, len(rows))
	copy(out, rows)
	return out
}
