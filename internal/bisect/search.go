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

// Package bisect implements a ternary-valued binary search over an ordered
// sequence of points, tolerating points whose predicate cannot be
// evaluated (Unknown).
package bisect

import (
	"github.com/pkg/errors"
)

// Satisfies is the ternary verdict of a predicate at one point.
type Satisfies int

const (
	// No means the regression is absent at this point.
	No Satisfies = iota
	// Yes means the regression is present at this point.
	Yes
	// Unknown means the point could not be evaluated (install failure,
	// build refusal, or other transient error).
	Unknown
)

func (s Satisfies) String() string {
	switch s {
	case No:
		return "No"
	case Yes:
		return "Yes"
	case Unknown:
		return "Unknown"
	default:
		return "Invalid"
	}
}

// ErrIndeterminate is returned when an unknown range spans the entire
// remaining search window with no verified non-Unknown endpoint to anchor
// the result to. The source relies on endpoint verification (spec.md
// §4.6) to make this unreachable; without it the loop's termination would
// otherwise be brittle (Open Question (a)).
var ErrIndeterminate = errors.New("bisection range is entirely unknown")

// Predicate evaluates the point at index i of the sequence passed to
// Search. Implementations should never be retried by Search for the same
// index; a transient failure should be reported as Unknown rather than
// causing Predicate to be called again.
type Predicate func(i int) (Satisfies, error)

// Result describes the outcome of a completed search.
type Result struct {
	// Found is the smallest index k such that the predicate resolves to
	// Yes at k, treating Unknown as absent from the sequence.
	Found int
	// UnknownRanges lists the contiguous runs of Unknown verdicts
	// encountered, each as an inclusive [lo, hi] pair of indices.
	UnknownRanges [][2]int
}

// Search performs the ternary binary search described in spec.md §4.1 over
// indices [0, n). The caller must guarantee (and verify out of band) that
// predicate(0) == No and predicate(n-1) == Yes; Search evaluates both
// endpoints and returns ErrIndeterminate if either is Unknown, but does not
// check that they are No and Yes. Results are memoized internally so no
// index is evaluated twice.
func Search(n int, predicate Predicate) (Result, error) {
	if n < 2 {
		return Result{}, errors.New("search requires at least two points")
	}
	memo := make(map[int]Satisfies, n)
	eval := func(i int) (Satisfies, error) {
		if v, ok := memo[i]; ok {
			return v, nil
		}
		v, err := predicate(i)
		if err != nil {
			return Unknown, err
		}
		memo[i] = v
		return v, nil
	}

	// Guard Open Question (a): without out-of-band endpoint verification
	// (the orchestrator's job, skippable with --no-verify-*), a boundary
	// that is itself Unknown leaves lo/hi without the No/Yes anchor the
	// rest of the algorithm assumes. Fail explicitly rather than let the
	// walk silently treat an unverified boundary as known-good.
	switch v, err := eval(0); {
	case err != nil:
		return Result{}, err
	case v == Unknown:
		return Result{}, ErrIndeterminate
	}
	switch v, err := eval(n - 1); {
	case err != nil:
		return Result{}, err
	case v == Unknown:
		return Result{}, ErrIndeterminate
	}

	lo, hi := 0, n-1
	var unknownRanges [][2]int

	for hi-lo > 1 {
		probe := stabilizedMidpoint(lo, hi)
		v, err := eval(probe)
		if err != nil {
			return Result{}, err
		}
		switch v {
		case Yes:
			hi = probe
		case No:
			lo = probe
		case Unknown:
			l, r, err := walkOutward(lo, hi, probe, eval)
			if err != nil {
				return Result{}, err
			}
			if l+1 <= r-1 {
				unknownRanges = append(unknownRanges, [2]int{l + 1, r - 1})
			}
			lv, _ := eval(l) // memoized by walkOutward or the endpoint checks
			rv, _ := eval(r)
			switch {
			case lv == Yes:
				hi = l
			case rv == No:
				lo = r
			default:
				// l is No and r is Yes with only Unknowns between them
				// (this includes the run spanning the whole window), so
				// r is the answer.
				return Result{Found: r, UnknownRanges: unknownRanges}, nil
			}
		}
	}
	return Result{Found: hi, UnknownRanges: unknownRanges}, nil
}

// walkOutward expands outward from an Unknown probe until it finds
// non-Unknown neighbors l and r (lo <= l <= probe <= r <= hi), evaluating
// any newly-visited points along the way. l and r are themselves the
// non-Unknown points bracketing the unknown run, not its edges.
func walkOutward(lo, hi, probe int, eval func(int) (Satisfies, error)) (l, r int, err error) {
	l, r = probe, probe
	for l > lo {
		l--
		v, verr := eval(l)
		if verr != nil {
			return 0, 0, verr
		}
		if v != Unknown {
			break
		}
	}
	for r < hi {
		r++
		v, verr := eval(r)
		if verr != nil {
			return 0, 0, verr
		}
		if v != Unknown {
			break
		}
	}
	return l, r, nil
}

// stabilizedMidpoint returns the probe described in spec.md §4.1: among
// the indices strictly between lo and hi, the one of least depth in the
// left-heavy binary tree implied by the full [0, n) range. Because the
// choice depends only on lo and hi, repeated bisections over overlapping
// ranges revisit the same probes, which is what makes memoization useful
// across invocations.
//
// Construction: let d be the isolated most-significant bit of
// lo XOR (hi-1); then probe = (lo &^ (d-1)) | d.
func stabilizedMidpoint(lo, hi int) int {
	d := isolateMSB(lo ^ (hi - 1))
	return (lo &^ (d - 1)) | d
}

// isolateMSB returns a power of two equal to the highest set bit of x, or
// 0 if x is 0.
func isolateMSB(x int) int {
	if x == 0 {
		return 0
	}
	// Smear all bits below the MSB, then extract just the top bit.
	x |= x >> 1
	x |= x >> 2
	x |= x >> 4
	x |= x >> 8
	x |= x >> 16
	x |= x >> 32
	return x - (x >> 1)
}
