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

// Package telemetry supplies the hardware telemetry the monitor folds
// into each report record: a device display name, per-core load, and
// whatever temperature sensors the host exposes. Everything is sampled
// through gopsutil; hosts without sensor support simply report none.
package telemetry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/sensors"
)

// Source is the telemetry capability consumed by the monitor. Refresh
// re-samples; the accessors return the last sample. Implementations are
// safe for use from the single monitor goroutine only.
type Source interface {
	DeviceName() string
	Refresh(ctx context.Context) error
	PerCoreLoad() []float64
	Sensors() map[string]float64
}

// SystemSource samples the local machine via gopsutil.
type SystemSource struct {
	name string

	mu      sync.Mutex
	load    []float64
	sensors map[string]float64
}

// NewSystemSource probes the host once for its display name. The first
// cpu.Percent call also primes the kernel counters so the next Refresh
// returns a meaningful interval sample.
func NewSystemSource() *SystemSource {
	s := &SystemSource{name: probeDeviceName()}
	// Prime the per-cpu counters; the sampled values are discarded.
	_, _ = cpu.Percent(0, true)
	return s
}

func probeDeviceName() string {
	var parts []string
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 && infos[0].ModelName != "" {
		parts = append(parts, strings.TrimSpace(infos[0].ModelName))
	}
	if hi, err := host.Info(); err == nil && hi.Hostname != "" {
		parts = append(parts, hi.Hostname)
	}
	if len(parts) == 0 {
		return "unknown-device"
	}
	return strings.Join(parts, " @ ")
}

// DeviceName returns the display name probed at construction.
func (s *SystemSource) DeviceName() string { return s.name }

// Refresh re-samples per-core load and temperature sensors. Sensor
// acquisition failures are tolerated (many hosts expose nothing); a load
// sampling failure is returned because the monitor wants to know.
func (s *SystemSource) Refresh(ctx context.Context) error {
	load, err := cpu.PercentWithContext(ctx, 0, true)
	if err != nil {
		return fmt.Errorf("sampling per-core load: %w", err)
	}

	readings := make(map[string]float64)
	if temps, err := sensors.SensorsTemperatures(); err == nil {
		for _, t := range temps {
			if t.SensorKey == "" {
				continue
			}
			readings[t.SensorKey] = t.Temperature
		}
	}

	s.mu.Lock()
	s.load = load
	s.sensors = readings
	s.mu.Unlock()
	return nil
}

// PerCoreLoad returns a copy of the last load sample, indexed by logical
// processor.
func (s *SystemSource) PerCoreLoad() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.load))
	copy(out, s.load)
	return out
}

// Sensors returns a copy of the last sensor sample.
func (s *SystemSource) Sensors() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]float64, len(s.sensors))
	for k, v := range s.sensors {
		out[k] = v
	}
	return out
}
