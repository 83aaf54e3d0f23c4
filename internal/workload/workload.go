/*
Package workload defines the pluggable stress-computation capability used
by the burn-in engine, plus the id-indexed registry through which run
configurations select workloads.

A workload exposes two steps: Run performs one repeatable unit of work on
the same instance, and Verify checks the outcome of the last Run. Verify
signals a computation/validation mismatch distinctly (wrapping
ErrValidation) so the engine can tell hardware-instability signals apart
from unrelated errors.
*/
package workload

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

import (
	"errors"
	"fmt"
	"sort"
)

// ErrValidation marks a verify-step mismatch: the computation produced a
// result that disagrees with its reference pass. Callers use
// errors.Is(err, ErrValidation) to distinguish instability signals from
// plumbing errors.
var ErrValidation = errors.New("result validation failed")

// Workload is one pluggable stress-computation unit. Instances are not
// safe for concurrent use; the engine creates one instance per (core,
// workload) pair.
type Workload interface {
	// Name returns the stable short name used in progress tables,
	// failure counters and reports.
	Name() string

	// Run performs one unit of work. It must be repeatable on the same
	// instance. An error from Run is an unexpected error, never a
	// validation failure.
	Run() error

	// Verify checks the outcome of the last Run. A mismatch is reported
	// wrapped with ErrValidation.
	Verify() error
}

// Constructor builds a fresh workload instance.
type Constructor func() Workload

type registration struct {
	name string
	ctor Constructor
}

var registry = map[int]registration{}

// Register adds a workload constructor under the given catalog id.
// It panics on a duplicate id; registration happens from init functions
// where a duplicate is a programming error.
func Register(id int, name string, ctor Constructor) {
	if _, dup := registry[id]; dup {
		panic(fmt.Sprintf("workload: duplicate id %d (%s)", id, name))
	}
	registry[id] = registration{name: name, ctor: ctor}
}

// New returns a fresh instance of the workload registered under id.
func New(id int) (Workload, error) {
	reg, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("workload: unknown id %d", id)
	}
	return reg.ctor(), nil
}

// NameOf returns the registered name for id without constructing an
// instance.
func NameOf(id int) (string, error) {
	reg, ok := registry[id]
	if !ok {
		return "", fmt.Errorf("workload: unknown id %d", id)
	}
	return reg.name, nil
}

// IDs returns all registered catalog ids in ascending order.
func IDs() []int {
	ids := make([]int, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
