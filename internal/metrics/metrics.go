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

// Package metrics exposes Prometheus metrics for the burn-in run: cycle
// throughput and latency per (core, workload), failure counts, progress
// ratios, monitor tick timing and telemetry readings.
package metrics

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry           = prometheus.NewRegistry()
	defaultRegisterer  = promauto.With(registry)
	metricsInitialized sync.Once
	metricsEnabled     bool
	metricsServer      *http.Server
)

// Metrics contains all the Prometheus metrics for the application.
type Metrics struct {
	// Cycle metrics
	CycleDuration *prometheus.HistogramVec
	CyclesTotal   *prometheus.CounterVec
	FailuresTotal *prometheus.CounterVec

	// Progress metrics
	CoreProgressRatio *prometheus.GaugeVec
	WorkloadActive    *prometheus.GaugeVec

	// Monitor metrics
	MonitorTickDuration prometheus.Histogram
	ErrorsDrainedTotal  prometheus.Counter

	// Telemetry metrics
	CoreLoad      *prometheus.GaugeVec
	SensorReading *prometheus.GaugeVec
}

var globalMetrics *Metrics
var metricsOnce sync.Once

// GetMetrics returns the global metrics instance.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = newMetrics()
	})
	return globalMetrics
}

// EnableMetrics enables metrics collection.
func EnableMetrics() {
	metricsEnabled = true
}

// IsMetricsEnabled returns whether metrics collection is enabled.
func IsMetricsEnabled() bool {
	return metricsEnabled
}

func newMetrics() *Metrics {
	buckets := []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1}

	return &Metrics{
		CycleDuration: defaultRegisterer.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coreburn_cycle_duration_seconds",
				Help:    "Time spent in one run+verify cycle",
				Buckets: buckets,
			},
			[]string{"core", "workload"},
		),
		CyclesTotal: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coreburn_cycles_total",
				Help: "Total number of executed cycles",
			},
			[]string{"core", "workload"},
		),
		FailuresTotal: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coreburn_failures_total",
				Help: "Total number of failed cycles by failure kind",
			},
			[]string{"core", "workload", "kind"},
		),
		CoreProgressRatio: defaultRegisterer.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coreburn_core_progress_ratio",
				Help: "Completed cycles over requested cycles per core (0-1)",
			},
			[]string{"core"},
		),
		WorkloadActive: defaultRegisterer.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coreburn_workload_active",
				Help: "Whether a workload is the active one on its core (1) or not (0)",
			},
			[]string{"core", "workload"},
		),
		MonitorTickDuration: defaultRegisterer.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "coreburn_monitor_tick_duration_seconds",
				Help:    "Time spent building and persisting one monitor snapshot",
				Buckets: buckets,
			},
		),
		ErrorsDrainedTotal: defaultRegisterer.NewCounter(
			prometheus.CounterOpts{
				Name: "coreburn_errors_drained_total",
				Help: "Total number of queued error records drained by the monitor",
			},
		),
		CoreLoad: defaultRegisterer.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coreburn_core_load_percent",
				Help: "Per-core load as sampled by the monitor",
			},
			[]string{"core"},
		),
		SensorReading: defaultRegisterer.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coreburn_sensor_reading",
				Help: "Telemetry sensor readings by sensor name",
			},
			[]string{"sensor"},
		),
	}
}

// ObserveCycle records one executed cycle and its duration.
func ObserveCycle(core int, workloadName string, d time.Duration) {
	if !metricsEnabled {
		return
	}
	m := GetMetrics()
	c := strconv.Itoa(core)
	m.CyclesTotal.WithLabelValues(c, workloadName).Inc()
	m.CycleDuration.WithLabelValues(c, workloadName).Observe(d.Seconds())
}

// CountFailure records one failed cycle of the given kind
// ("validation" or "unexpected").
func CountFailure(core int, workloadName, kind string) {
	if !metricsEnabled {
		return
	}
	GetMetrics().FailuresTotal.WithLabelValues(strconv.Itoa(core), workloadName, kind).Inc()
}

// ObserveTick records how long one monitor tick took.
func ObserveTick(d time.Duration) {
	if !metricsEnabled {
		return
	}
	GetMetrics().MonitorTickDuration.Observe(d.Seconds())
}

// CountDrained adds to the drained error record counter.
func CountDrained(n int) {
	if !metricsEnabled || n == 0 {
		return
	}
	GetMetrics().ErrorsDrainedTotal.Add(float64(n))
}

// SetCoreProgress publishes a core's completion ratio.
func SetCoreProgress(core int, ratio float64) {
	if !metricsEnabled {
		return
	}
	GetMetrics().CoreProgressRatio.WithLabelValues(strconv.Itoa(core)).Set(ratio)
}

// SetWorkloadActive publishes whether a workload is active on its core.
func SetWorkloadActive(core int, workloadName string, active bool) {
	if !metricsEnabled {
		return
	}
	v := 0.0
	if active {
		v = 1.0
	}
	GetMetrics().WorkloadActive.WithLabelValues(strconv.Itoa(core), workloadName).Set(v)
}

// SetCoreLoad publishes a sampled per-core load percentage.
func SetCoreLoad(core int, percent float64) {
	if !metricsEnabled {
		return
	}
	GetMetrics().CoreLoad.WithLabelValues(strconv.Itoa(core)).Set(percent)
}

// SetSensor publishes one telemetry sensor reading.
func SetSensor(name string, value float64) {
	if !metricsEnabled {
		return
	}
	GetMetrics().SensorReading.WithLabelValues(name).Set(value)
}

// StartMetricsServer starts an HTTP server to expose Prometheus metrics.
func StartMetricsServer(addr string) error {
	if !metricsEnabled {
		return nil
	}

	// Only start once
	var startErr error
	metricsInitialized.Do(func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

		metricsServer = &http.Server{
			Addr:    addr,
			Handler: mux,
		}

		go func() {
			log.Printf("Starting metrics server on %s", addr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("Metrics server error: %v", err)
			}
		}()
	})

	return startErr
}

// ShutdownMetricsServer gracefully shuts down the metrics server.
func ShutdownMetricsServer(ctx context.Context) error {
	if metricsServer != nil {
		log.Println("Shutting down metrics server...")
		return metricsServer.Shutdown(ctx)
	}
	return nil
}
