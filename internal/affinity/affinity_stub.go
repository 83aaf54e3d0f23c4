//go:build !linux
// +build !linux

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

// This file provides a stub implementation for platforms where CPU
// affinity setting is not available or not implemented via x/sys/unix.

package affinity

import "runtime"

// Pin locks the goroutine to its OS thread but cannot restrict the thread
// to a CPU on this platform. Always succeeds.
func Pin(cpu int) error {
	runtime.LockOSThread()
	return nil
}

// Supported reports whether thread-to-core binding is implemented on this
// platform.
func Supported() bool { return false }
