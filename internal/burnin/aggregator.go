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
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Key identifies one (core, workload) failure-accounting bucket.
type Key struct {
	Core     int
	Workload string
}

// FailureCounters holds the per-key failure statistics. Entries are
// created lazily on first failure. Total never decreases; Consecutive is
// reset by a success and therefore never exceeds Total.
type FailureCounters struct {
	Key            Key
	Consecutive    int64
	Total          int64
	FirstFailureAt time.Time
	LastFailureAt  time.Time
	LastMessage    string
}

// ErrorAggregator is the thread-safe failure map plus global totals.
// Updates are linearizable per key: a Report followed by a ResetOK on the
// same key from the same thread is read-after-write consistent. No
// ordering is guaranteed across keys or cores.
type ErrorAggregator struct {
	mu      sync.Mutex
	entries map[Key]*FailureCounters

	anySeen     atomic.Bool
	totalErrors atomic.Int64

	now func() time.Time // test seam for timestamp stamping
}

// NewErrorAggregator constructs an empty aggregator. Created once at run
// start; lives for the run's duration.
func NewErrorAggregator() *ErrorAggregator {
	return &ErrorAggregator{
		entries: make(map[Key]*FailureCounters),
		now:     time.Now,
	}
}

// Report records one failure for (core, workload): it creates or updates
// the entry, bumps both counters, stamps the failure times, stores the
// message, and updates the global totals. Safe under concurrent calls
// from arbitrary threads on arbitrary keys.
func (a *ErrorAggregator) Report(core int, workloadName string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}

	a.mu.Lock()
	key := Key{Core: core, Workload: workloadName}
	e, ok := a.entries[key]
	now := a.now()
	if !ok {
		e = &FailureCounters{Key: key, FirstFailureAt: now}
		a.entries[key] = e
	}
	if e.FirstFailureAt.IsZero() {
		// Streak restarted after a ResetOK cleared the first-failure stamp.
		e.FirstFailureAt = now
	}
	e.Consecutive++
	e.Total++
	e.LastFailureAt = now
	e.LastMessage = msg
	a.mu.Unlock()

	a.totalErrors.Add(1)
	a.anySeen.Store(true)
}

// ResetOK clears the consecutive-failure streak for (core, workload) after
// a successful cycle. Total and LastFailureAt are left untouched so the
// historical record survives recovery. A key that never failed has no
// entry, and none is created.
func (a *ErrorAggregator) ResetOK(core int, workloadName string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.entries[Key{Core: core, Workload: workloadName}]
	if !ok {
		return
	}
	e.Consecutive = 0
	e.FirstFailureAt = time.Time{}
}

// Counters returns a copy of the entry for key, if one exists.
func (a *ErrorAggregator) Counters(key Key) (FailureCounters, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.entries[key]
	if !ok {
		return FailureCounters{}, false
	}
	return *e, true
}

// Outstanding reports whether key currently carries an unbroken failure
// streak. The monitor uses this to refuse the "finished" label for rows
// whose last cycles failed.
func (a *ErrorAggregator) Outstanding(key Key) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.entries[key]
	return ok && e.Consecutive > 0
}

// TopOffenders returns up to n entry copies ordered by Consecutive
// descending, ties broken by LastFailureAt descending. The ordering
// favors currently-struggling keys over historically-bad-but-recovered
// ones. Remaining ties fall back to key order so the result is stable.
func (a *ErrorAggregator) TopOffenders(n int) []FailureCounters {
	if n <= 0 {
		return nil
	}

	a.mu.Lock()
	all := make([]FailureCounters, 0, len(a.entries))
	for _, e := range a.entries {
		all = append(all, *e)
	}
	a.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].Consecutive != all[j].Consecutive {
			return all[i].Consecutive > all[j].Consecutive
		}
		if !all[i].LastFailureAt.Equal(all[j].LastFailureAt) {
			return all[i].LastFailureAt.After(all[j].LastFailureAt)
		}
		if all[i].Key.Core != all[j].Key.Core {
			return all[i].Key.Core < all[j].Key.Core
		}
		return all[i].Key.Workload < all[j].Key.Workload
	})

	if len(all) > n {
		all = all[:n]
	}
	return all
}

// AnyErrorSeen reports whether any failure was ever recorded. Monotonic
// false to true.
func (a *ErrorAggregator) AnyErrorSeen() bool { return a.anySeen.Load() }

// TotalErrors returns the global failure count across all keys.
func (a *ErrorAggregator) TotalErrors() int64 { return a.totalErrors.Load() }
