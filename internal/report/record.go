/*
Package report defines the structured reporting snapshot written by the
monitor, and the sink it is persisted through. The Record schema is the
logical contract: it round-trips through JSON, so snapshots can be
re-read by downstream tooling.
*/
package report

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

// Offender is one ranked failure-counter entry.
type Offender struct {
	Core        int       `json:"core"`
	Workload    string    `json:"workload"`
	Consecutive int64     `json:"consecutive"`
	Total       int64     `json:"total"`
	FirstAt     time.Time `json:"first_at,omitempty"`
	LastAt      time.Time `json:"last_at"`
	LastMessage string    `json:"last_message,omitempty"`
}

// ErrorSummary is the aggregated error view at snapshot time.
type ErrorSummary struct {
	AnyErrorSeen bool       `json:"any_error_seen"`
	TotalErrors  int64      `json:"total_errors"`
	TopOffenders []Offender `json:"top_offenders,omitempty"`
}

// WorkloadStatus is a copied, point-in-time view of one progress row.
// Finished means the row completed every requested cycle and carried no
// outstanding failure streak when the snapshot was taken.
type WorkloadStatus struct {
	Name      string `json:"name"`
	Completed int64  `json:"completed"`
	Total     int64  `json:"total"`
	Active    bool   `json:"active"`
	Finished  bool   `json:"finished"`
}

// CoreProgress groups one core's workload statuses in schedule order.
type CoreProgress struct {
	Core      int              `json:"core"`
	Load      float64          `json:"load_percent"`
	Workloads []WorkloadStatus `json:"workloads"`
}

// QueuedError is one drained ad hoc error record; each appears in exactly
// one Record.
type QueuedError struct {
	Time    time.Time `json:"time"`
	Core    int       `json:"core"`
	Origin  string    `json:"origin"`
	Message string    `json:"message"`
}

// Record is one monitor tick's full reporting snapshot.
type Record struct {
	Timestamp    time.Time          `json:"timestamp"`
	Device       string             `json:"device"`
	Errors       ErrorSummary       `json:"errors"`
	Progress     []CoreProgress     `json:"progress"`
	Sensors      map[string]float64 `json:"sensors,omitempty"`
	QueuedErrors []QueuedError      `json:"queued_errors,omitempty"`
}
