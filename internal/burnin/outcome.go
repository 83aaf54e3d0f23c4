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
	"errors"
	"fmt"

	"github.com/x-stp/coreburn/internal/workload"
)

// OutcomeKind classifies the result of one cycle (run-step + verify-step).
// The engine interprets the kind; control flow never relies on panicking
// through the scheduling loop.
type OutcomeKind int

const (
	// OutcomeOK means both steps succeeded.
	OutcomeOK OutcomeKind = iota
	// OutcomeValidationFailure means the verify-step detected a result
	// mismatch. This is the hardware-instability signal.
	OutcomeValidationFailure
	// OutcomeUnexpectedError covers everything outside the run/verify
	// validation contract: run-step errors, non-validation verify errors,
	// and recovered panics.
	OutcomeUnexpectedError
)

// CycleOutcome is the explicit result value for one cycle.
type CycleOutcome struct {
	Kind OutcomeKind
	Err  error
}

// runCycle executes one unit of work and its verification, converting any
// panic into an unexpected-error outcome so a misbehaving workload cannot
// take down its engine thread.
func runCycle(w workload.Workload) (out CycleOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = CycleOutcome{
				Kind: OutcomeUnexpectedError,
				Err:  fmt.Errorf("panic in workload %s: %v", w.Name(), r),
			}
		}
	}()

	if err := w.Run(); err != nil {
		return CycleOutcome{Kind: OutcomeUnexpectedError, Err: fmt.Errorf("run step: %w", err)}
	}
	if err := w.Verify(); err != nil {
		if errors.Is(err, workload.ErrValidation) {
			return CycleOutcome{Kind: OutcomeValidationFailure, Err: err}
		}
		return CycleOutcome{Kind: OutcomeUnexpectedError, Err: fmt.Errorf("verify step: %w", err)}
	}
	return CycleOutcome{Kind: OutcomeOK}
}
