package main

import "testing"

func TestParseCoreSpec(t *testing.T) {
	cases := []struct {
		in   string
		want []int
	}{
		{"0", []int{0}},
		{"0,2,4", []int{0, 2, 4}},
		{"0-3", []int{0, 1, 2, 3}},
		{"0-2,6, 8", []int{0, 1, 2, 6, 8}},
	}
	for _, tc := range cases {
		got, err := parseCoreSpec(tc.in)
		if err != nil {
			t.Fatalf("parseCoreSpec(%q): %v", tc.in, err)
		}
		if len(got) != len(tc.want) {
			t.Fatalf("parseCoreSpec(%q) = %v, want %v", tc.in, got, tc.want)
		}
		for i := range tc.want {
			if got[i] != tc.want[i] {
				t.Fatalf("parseCoreSpec(%q) = %v, want %v", tc.in, got, tc.want)
			}
		}
	}

	for _, bad := range []string{"", "x", "3-1", "1-", ","} {
		if _, err := parseCoreSpec(bad); err == nil {
			t.Fatalf("parseCoreSpec(%q) accepted", bad)
		}
	}
}

func TestParseIntList(t *testing.T) {
	got, err := parseIntList("500, 100,7")
	if err != nil {
		t.Fatalf("parseIntList: %v", err)
	}
	want := []int{500, 100, 7}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("parseIntList = %v, want %v", got, want)
		}
	}

	for _, bad := range []string{"", "a,b", ","} {
		if _, err := parseIntList(bad); err == nil {
			t.Fatalf("parseIntList(%q) accepted", bad)
		}
	}
}
