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

import "fmt"

// Policy selects the cycle ordering across one core's workload set.
type Policy int

const (
	// PolicySequential runs each workload's full cycle count before
	// moving to the next, in list order.
	PolicySequential Policy = iota
	// PolicyRoundRobin runs one cycle per round for every workload with
	// remaining cycles, in list order, until all are exhausted.
	PolicyRoundRobin
	// PolicyRandom picks uniformly among workloads with remaining cycles
	// until none remain, with a per-core seeded source.
	PolicyRandom
)

func (p Policy) String() string {
	switch p {
	case PolicySequential:
		return "sequential"
	case PolicyRoundRobin:
		return "round-robin"
	case PolicyRandom:
		return "random"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy maps a configuration string onto a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "sequential", "seq":
		return PolicySequential, nil
	case "round-robin", "roundrobin", "rr":
		return PolicyRoundRobin, nil
	case "random", "rand":
		return PolicyRandom, nil
	default:
		return 0, fmt.Errorf("unknown scheduling policy %q", s)
	}
}
