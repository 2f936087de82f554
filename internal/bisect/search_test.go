// Copyright 2024 The OSS Rebuild Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package bisect

import (
	"testing"
)

func TestSearch(t *testing.T) {
	testCases := []struct {
		test     string
		sequence []Satisfies
		expected int
	}{
		{
			test:     "no regression near start",
			sequence: []Satisfies{No, No, No, Yes, Yes},
			expected: 3,
		},
		{
			test:     "with unknowns bracketing the hit", // Scenario B
			sequence: []Satisfies{No, Unknown, Unknown, No, Yes},
			expected: 4,
		},
		{
			test:     "with a gap before the hit", // Scenario C
			sequence: []Satisfies{No, Unknown, Yes, Unknown, Yes},
			expected: 2,
		},
		{
			test:     "hit at the very end",
			sequence: []Satisfies{No, No, No, No, Yes},
			expected: 4,
		},
		{
			test:     "two points",
			sequence: []Satisfies{No, Yes},
			expected: 1,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.test, func(t *testing.T) {
			result, err := Search(len(tc.sequence), func(i int) (Satisfies, error) {
				return tc.sequence[i], nil
			})
			if err != nil {
				t.Fatalf("Search() returned error: %v", err)
			}
			if result.Found != tc.expected {
				t.Errorf("Search() = %d, want %d", result.Found, tc.expected)
			}
		})
	}
}

func TestSearch_NeverRevisitsAnIndex(t *testing.T) {
	sequence := []Satisfies{No, No, No, No, No, No, No, No, Yes}
	calls := make(map[int]int)
	_, err := Search(len(sequence), func(i int) (Satisfies, error) {
		calls[i]++
		return sequence[i], nil
	})
	if err != nil {
		t.Fatalf("Search() returned error: %v", err)
	}
	for i, n := range calls {
		if n > 1 {
			t.Errorf("index %d evaluated %d times, want at most 1", i, n)
		}
	}
}

func TestSearch_Logarithmic(t *testing.T) {
	n := 1024
	sequence := make([]Satisfies, n)
	for i := range sequence {
		if i >= n/2 {
			sequence[i] = Yes
		}
	}
	calls := 0
	_, err := Search(n, func(i int) (Satisfies, error) {
		calls++
		return sequence[i], nil
	})
	if err != nil {
		t.Fatalf("Search() returned error: %v", err)
	}
	// O(log n); generous bound to avoid coupling the test to the exact
	// constant while still catching a linear-scan regression.
	if max := 30; calls > max {
		t.Errorf("Search() made %d predicate calls, want <= %d", calls, max)
	}
}

func TestSearch_UnverifiedUnknownEndpoint(t *testing.T) {
	sequence := []Satisfies{Unknown, No, Yes}
	_, err := Search(len(sequence), func(i int) (Satisfies, error) {
		return sequence[i], nil
	})
	if err != ErrIndeterminate {
		t.Errorf("Search() error = %v, want ErrIndeterminate", err)
	}
}

func TestSearch_TooFewPoints(t *testing.T) {
	if _, err := Search(1, func(int) (Satisfies, error) { return No, nil }); err == nil {
		t.Error("Search() with a single point, want error")
	}
	if _, err := Search(0, func(int) (Satisfies, error) { return No, nil }); err == nil {
		t.Error("Search() with zero points, want error")
	}
}

func TestStabilizedMidpoint(t *testing.T) {
	testCases := []struct {
		lo, hi, expected int
	}{
		// Scenario E.
		{lo: 8, hi: 16, expected: 12},
		{lo: 25, hi: 29, expected: 28},
		{lo: 33, hi: 65, expected: 64},
	}
	for _, tc := range testCases {
		if got := stabilizedMidpoint(tc.lo, tc.hi); got != tc.expected {
			t.Errorf("stabilizedMidpoint(%d, %d) = %d, want %d", tc.lo, tc.hi, got, tc.expected)
		}
	}
}

func TestStabilizedMidpoint_StrictlyBetween(t *testing.T) {
	for hi := 2; hi < 200; hi++ {
		for lo := 0; lo < hi-1; lo++ {
			probe := stabilizedMidpoint(lo, hi)
			if probe <= lo || probe >= hi {
				t.Fatalf("stabilizedMidpoint(%d, %d) = %d, want strictly between", lo, hi, probe)
			}
		}
	}
}

func TestStabilizedMidpoint_Stable(t *testing.T) {
	// The same (lo, hi) pair must always choose the same probe so that
	// overlapping bisections share cache hits.
	for i := 0; i < 10; i++ {
		if got, want := stabilizedMidpoint(10, 50), stabilizedMidpoint(10, 50); got != want {
			t.Fatalf("stabilizedMidpoint not stable across calls: %d != %d", got, want)
		}
	}
}
