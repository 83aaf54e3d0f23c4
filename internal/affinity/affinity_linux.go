//go:build linux
// +build linux

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

// Package affinity binds the calling OS thread to a logical processor.
// On Linux this uses sched_setaffinity(2) via x/sys/unix; on other
// platforms Pin is a no-op so the engine degrades to floating threads.
package affinity

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Pin locks the calling goroutine to its OS thread and restricts that
// thread to the given logical CPU. The goroutine stays locked for its
// lifetime; callers are expected to be long-lived per-core loops, so no
// matching Unpin exists.
//
// A failure leaves the thread runnable on any CPU and is reported to the
// caller, who treats it as a warning rather than a fatal condition.
func Pin(cpu int) error {
	if cpu < 0 {
		return fmt.Errorf("invalid cpu index %d", cpu)
	}

	// runtime.LockOSThread ensures the goroutine doesn't migrate OS threads
	// between this call and the SchedSetaffinity syscall.
	runtime.LockOSThread()

	var cpuSet unix.CPUSet
	cpuSet.Zero()
	cpuSet.Set(cpu)

	tid := unix.Gettid()
	if err := unix.SchedSetaffinity(tid, &cpuSet); err != nil {
		return fmt.Errorf("sched_setaffinity cpu %d (tid %d): %w", cpu, tid, err)
	}
	return nil
}

// Supported reports whether thread-to-core binding is implemented on this
// platform.
func Supported() bool { return true }
