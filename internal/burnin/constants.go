/*
Package burnin constants that are shared across the engine, monitor and
aggregation components rather than belonging to a single one. They provide
sensible defaults and can be tuned for different validation profiles.
*/
package burnin

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

import "time"

const (
	// DefaultMonitorInterval is the cadence at which the monitor samples
	// shared state and emits one report record.
	DefaultMonitorInterval = 1 * time.Second

	// MonitorReadyTimeout bounds how long an engine waits for the monitor
	// readiness latch before proceeding with a warning. Workers are never
	// blocked indefinitely on the observer.
	MonitorReadyTimeout = 10 * time.Second

	// DefaultTopOffenders is how many ranked failure entries the monitor
	// includes in each report record.
	DefaultTopOffenders = 5

	// ConsoleErrorRate and ConsoleErrorBurst throttle how fast drained
	// error records are echoed to the console. The report sink always
	// receives the full stream; only operator output is limited.
	ConsoleErrorRate  = 4.0
	ConsoleErrorBurst = 8

	// DefaultCyclesPerWorkload is used when a run configuration does not
	// specify per-workload cycle counts.
	DefaultCyclesPerWorkload = 1000
)
