package burnin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/x-stp/coreburn/internal/report"
)

type fakeSource struct {
	mu         sync.Mutex
	refreshErr error
	panicOnce  bool
	loads      []float64
	sensors    map[string]float64
}

func (f *fakeSource) DeviceName() string { return "testbox" }

func (f *fakeSource) Refresh(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOnce {
		f.panicOnce = false
		panic("sensor read fault")
	}
	return f.refreshErr
}

func (f *fakeSource) PerCoreLoad() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]float64, len(f.loads))
	copy(out, f.loads)
	return out
}

func (f *fakeSource) Sensors() map[string]float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]float64, len(f.sensors))
	for k, v := range f.sensors {
		out[k] = v
	}
	return out
}

type memSink struct {
	mu      sync.Mutex
	records []report.Record
	closed  bool
}

func (s *memSink) Write(rec report.Record) error {
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
	return nil
}

func (s *memSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *memSink) all() []report.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]report.Record, len(s.records))
	copy(out, s.records)
	return out
}

func startMonitor(t *testing.T, state *RunState, agg *ErrorAggregator, src *fakeSource, sink *memSink) chan struct{} {
	t.Helper()
	m := NewMonitor(state, agg, src, sink, 5*time.Millisecond, -1)
	done := make(chan struct{})
	go func() {
		m.Run()
		close(done)
	}()
	return done
}

func waitDone(t *testing.T, done chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("monitor did not stop")
	}
}

func TestMonitorSignalsReadinessLatch(t *testing.T) {
	t.Parallel()

	state := NewRunState()
	agg := NewErrorAggregator()
	sink := &memSink{}
	done := startMonitor(t, state, agg, &fakeSource{}, sink)

	if !state.WaitMonitorReady(2 * time.Second) {
		t.Fatalf("latch not set by running monitor")
	}

	state.RequestStop()
	waitDone(t, done)

	if !sink.closed {
		t.Fatalf("sink should be closed when the monitor returns")
	}
	if len(sink.all()) == 0 {
		t.Fatalf("expected at least the final-tick record")
	}
}

func TestMonitorLatchSetEvenWhenTelemetryFails(t *testing.T) {
	t.Parallel()

	state := NewRunState()
	agg := NewErrorAggregator()
	src := &fakeSource{refreshErr: errors.New("msr read denied")}
	done := startMonitor(t, state, agg, src, &memSink{})

	if !state.WaitMonitorReady(2 * time.Second) {
		t.Fatalf("telemetry failure must not block worker startup")
	}

	state.RequestStop()
	waitDone(t, done)

	// The warm-up failure and per-tick failures go through the queue; after
	// the final tick the monitor has drained them into its records, so the
	// queue itself ends empty.
	if state.QueuedErrors() != 0 {
		t.Fatalf("queue should be drained on exit, %d left", state.QueuedErrors())
	}
}

func TestMonitorLatchSetEvenOnPanic(t *testing.T) {
	t.Parallel()

	state := NewRunState()
	agg := NewErrorAggregator()
	src := &fakeSource{panicOnce: true} // warm-up Refresh panics
	done := startMonitor(t, state, agg, src, &memSink{})

	waitDone(t, done)

	if !state.WaitMonitorReady(10 * time.Millisecond) {
		t.Fatalf("latch must be set even when the monitor dies during setup")
	}
	drained := state.DrainErrors()
	if len(drained) != 1 {
		t.Fatalf("expected the panic queued as one record, got %d", len(drained))
	}
	if drained[0].Core != -1 || drained[0].Origin != "monitor" {
		t.Fatalf("unexpected record %+v", drained[0])
	}
}

func TestMonitorDrainsEachErrorExactlyOnce(t *testing.T) {
	t.Parallel()

	state := NewRunState()
	agg := NewErrorAggregator()
	sink := &memSink{}

	const total = 20
	for i := 0; i < 10; i++ {
		state.PushError(ErrorRecord{Core: 0, Origin: "engine", Message: fmt.Sprintf("e%d", i)})
	}

	done := startMonitor(t, state, agg, &fakeSource{}, sink)
	state.WaitMonitorReady(2 * time.Second)

	for i := 10; i < total; i++ {
		state.PushError(ErrorRecord{Core: 1, Origin: "engine", Message: fmt.Sprintf("e%d", i)})
		time.Sleep(time.Millisecond)
	}

	time.Sleep(20 * time.Millisecond)
	state.RequestStop()
	waitDone(t, done)

	seen := make(map[string]int)
	for _, rec := range sink.all() {
		for _, qe := range rec.QueuedErrors {
			seen[qe.Message]++
		}
	}
	if len(seen) != total {
		t.Fatalf("expected %d distinct messages across records, got %d", total, len(seen))
	}
	for msg, n := range seen {
		if n != 1 {
			t.Fatalf("message %q surfaced %d times", msg, n)
		}
	}
	if state.QueuedErrors() != 0 {
		t.Fatalf("queue should be empty after the final drain")
	}
}

func TestMonitorTakesFinalTickWhenStoppedBeforeStart(t *testing.T) {
	t.Parallel()

	state := NewRunState()
	state.RequestStop()
	agg := NewErrorAggregator()
	sink := &memSink{}

	done := startMonitor(t, state, agg, &fakeSource{}, sink)
	waitDone(t, done)

	if got := len(sink.all()); got != 1 {
		t.Fatalf("expected exactly one final-tick record, got %d", got)
	}
}

func TestBuildRecordFinishedRequiresCleanStreak(t *testing.T) {
	t.Parallel()

	state := NewRunState()
	agg := NewErrorAggregator()

	clean := NewWorkloadProgress("clean", 0, 2)
	dirty := NewWorkloadProgress("dirty", 0, 2)
	if err := state.RegisterCore(0, []*WorkloadProgress{clean, dirty}); err != nil {
		t.Fatalf("RegisterCore: %v", err)
	}
	clean.markCompleted()
	clean.markCompleted()
	dirty.markCompleted()
	dirty.markCompleted()
	agg.Report(0, "dirty", errors.New("checksum mismatch"))

	src := &fakeSource{loads: []float64{42.5}, sensors: map[string]float64{"coretemp": 61}}
	rec := BuildRecord(state, agg, src, DefaultTopOffenders)

	if len(rec.Progress) != 1 || len(rec.Progress[0].Workloads) != 2 {
		t.Fatalf("unexpected snapshot shape %+v", rec.Progress)
	}
	if rec.Progress[0].Load != 42.5 {
		t.Fatalf("load not indexed by core, got %v", rec.Progress[0].Load)
	}
	ws := rec.Progress[0].Workloads
	if !ws[0].Finished {
		t.Fatalf("fully completed row with no streak should be finished")
	}
	if ws[1].Finished {
		t.Fatalf("row with an outstanding streak must not be finished")
	}
	if !rec.Errors.AnyErrorSeen || rec.Errors.TotalErrors != 1 {
		t.Fatalf("unexpected error summary %+v", rec.Errors)
	}
	if len(rec.Errors.TopOffenders) != 1 || rec.Errors.TopOffenders[0].Workload != "dirty" {
		t.Fatalf("unexpected offenders %+v", rec.Errors.TopOffenders)
	}
}
