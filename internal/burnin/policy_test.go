package burnin

import "testing"

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want Policy
	}{
		{"sequential", PolicySequential},
		{"seq", PolicySequential},
		{"round-robin", PolicyRoundRobin},
		{"roundrobin", PolicyRoundRobin},
		{"rr", PolicyRoundRobin},
		{"random", PolicyRandom},
		{"rand", PolicyRandom},
	}
	for _, tc := range cases {
		got, err := ParsePolicy(tc.in)
		if err != nil {
			t.Fatalf("ParsePolicy(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParsePolicy(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	if _, err := ParsePolicy("shuffled"); err == nil {
		t.Fatalf("unknown policy accepted")
	}
}

func TestPolicyStringRoundTrips(t *testing.T) {
	t.Parallel()

	for _, p := range []Policy{PolicySequential, PolicyRoundRobin, PolicyRandom} {
		back, err := ParsePolicy(p.String())
		if err != nil || back != p {
			t.Fatalf("policy %v does not round-trip (%v, %v)", p, back, err)
		}
	}
}
