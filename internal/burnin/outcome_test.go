package burnin

import (
	"errors"
	"fmt"
	"testing"

	"github.com/x-stp/coreburn/internal/workload"
)

type stubWorkload struct {
	runErr    error
	verifyErr error
	panicRun  bool
}

func (s *stubWorkload) Name() string { return "stub" }

func (s *stubWorkload) Run() error {
	if s.panicRun {
		panic("slice bounds out of range")
	}
	return s.runErr
}

func (s *stubWorkload) Verify() error { return s.verifyErr }

func TestRunCycleClassifiesOutcomes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		w    *stubWorkload
		want OutcomeKind
	}{
		{"clean", &stubWorkload{}, OutcomeOK},
		{"run error", &stubWorkload{runErr: errors.New("mmap failed")}, OutcomeUnexpectedError},
		{"validation mismatch", &stubWorkload{verifyErr: fmt.Errorf("%w: digest differs", workload.ErrValidation)}, OutcomeValidationFailure},
		{"plain verify error", &stubWorkload{verifyErr: errors.New("reference unavailable")}, OutcomeUnexpectedError},
		{"panic", &stubWorkload{panicRun: true}, OutcomeUnexpectedError},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			out := runCycle(tc.w)
			if out.Kind != tc.want {
				t.Fatalf("kind = %v, want %v (err %v)", out.Kind, tc.want, out.Err)
			}
			if tc.want == OutcomeOK && out.Err != nil {
				t.Fatalf("clean outcome carries error %v", out.Err)
			}
			if tc.want != OutcomeOK && out.Err == nil {
				t.Fatalf("failure outcome carries no error")
			}
		})
	}
}

func TestRunCycleValidationKeepsSentinel(t *testing.T) {
	t.Parallel()

	w := &stubWorkload{verifyErr: fmt.Errorf("%w: bit 17 flipped", workload.ErrValidation)}
	out := runCycle(w)
	if !errors.Is(out.Err, workload.ErrValidation) {
		t.Fatalf("validation sentinel lost: %v", out.Err)
	}
}
