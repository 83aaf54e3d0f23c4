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
	"time"

	"github.com/x-stp/coreburn/internal/report"
	"github.com/x-stp/coreburn/internal/telemetry"
)

// BuildRecord assembles a point-in-time reporting snapshot: aggregated
// error stats, ranked offenders, a deep copy of every core's progress
// rows, and the telemetry sample. Nothing in the returned record aliases
// mutable run state.
//
// Progress and error tables are sampled independently; a row finishing
// between the two reads shows transient disagreement for one tick, which
// is acceptable by design.
func BuildRecord(state *RunState, agg *ErrorAggregator, src telemetry.Source, topN int) report.Record {
	rec := report.Record{
		Timestamp: time.Now(),
		Device:    src.DeviceName(),
		Sensors:   src.Sensors(),
		Errors: report.ErrorSummary{
			AnyErrorSeen: agg.AnyErrorSeen(),
			TotalErrors:  agg.TotalErrors(),
		},
	}

	for _, fc := range agg.TopOffenders(topN) {
		rec.Errors.TopOffenders = append(rec.Errors.TopOffenders, report.Offender{
			Core:        fc.Key.Core,
			Workload:    fc.Key.Workload,
			Consecutive: fc.Consecutive,
			Total:       fc.Total,
			FirstAt:     fc.FirstFailureAt,
			LastAt:      fc.LastFailureAt,
			LastMessage: fc.LastMessage,
		})
	}

	load := src.PerCoreLoad()
	for _, core := range state.Cores() {
		cp := report.CoreProgress{Core: core}
		if core >= 0 && core < len(load) {
			cp.Load = load[core]
		}
		for _, row := range state.CoreProgress(core) {
			completed := row.Completed()
			finished := completed == row.Total() &&
				!agg.Outstanding(Key{Core: core, Workload: row.Name()})
			cp.Workloads = append(cp.Workloads, report.WorkloadStatus{
				Name:      row.Name(),
				Completed: completed,
				Total:     row.Total(),
				Active:    row.Active(),
				Finished:  finished,
			})
		}
		rec.Progress = append(rec.Progress, cp)
	}

	return rec
}
