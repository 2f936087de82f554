// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"time"

	"github.com/oss-bisect/bisector/internal/bisect"
	"github.com/pkg/errors"
)

// epochDate is the oldest date for which nightly manifests exist
// (spec.md §4.6 step 1, "~2015-10-20").
var epochDate = time.Date(2015, time.October, 20, 0, 0, 0, 0, time.UTC)

// maxManifestSlip bounds the one-day-back retry for a missing nightly
// manifest (spec.md §7).
const maxManifestSlip = 5

// walkStride returns the backward step, in days, used at distance days
// from the end date (spec.md §4.6 step 1 / Testable Scenario A): 2 days
// for the first week, 7 days out to 49 days, 14 days thereafter.
func walkStride(distance int) int {
	switch {
	case distance < 7:
		return 2
	case distance < 49:
		return 7
	default:
		return 14
	}
}

// walkOffsets returns the sequence of backward-from-end day offsets the
// geometric walk visits, stopping once it would reach or pass stopAt.
// This is Scenario A's observable sequence, factored out of the walk
// itself so it can be driven without a network.
func walkOffsets(stopAt int) []int {
	var offsets []int
	distance := 0
	for {
		distance += walkStride(distance)
		if distance > stopAt {
			break
		}
		offsets = append(offsets, distance)
	}
	return offsets
}

// NightlyProbe evaluates a single nightly date, returning bisect.Unknown
// for an install failure the search should route around.
type NightlyProbe func(ctx context.Context, date time.Time) (bisect.Satisfies, error)

// NightlyWalkResult is the outcome of the initial backward walk.
type NightlyWalkResult struct {
	FirstSuccess time.Time // the oldest date visited that evaluated No
	LastFailure  time.Time // the end date (or the date it slipped back to)
}

// WalkNightlies performs spec.md §4.6 step 1: walking backward from end
// with a geometric-then-arithmetic stride until the first No or the
// epoch, whichever comes first. If explicitStart is non-nil its verdict
// is checked first; a Yes there aborts the search (the user-supplied
// "good" boundary is not good).
func WalkNightlies(ctx context.Context, end time.Time, explicitStart *time.Time, probe NightlyProbe) (NightlyWalkResult, error) {
	lastFailure, err := resolveEvaluableDate(ctx, end, probe)
	if err != nil {
		return NightlyWalkResult{}, err
	}

	if explicitStart != nil {
		v, err := probe(ctx, *explicitStart)
		if err != nil {
			return NightlyWalkResult{}, errors.Wrap(err, "evaluating explicit start")
		}
		if v == bisect.Yes {
			return NightlyWalkResult{}, errors.Errorf("explicit start %s regresses; it is not a valid good boundary", explicitStart.Format("2006-01-02"))
		}
		return NightlyWalkResult{FirstSuccess: *explicitStart, LastFailure: lastFailure}, nil
	}

	maxDistance := int(lastFailure.Sub(epochDate).Hours() / 24)
	distance := 0
	for {
		distance += walkStride(distance)
		if distance > maxDistance {
			return NightlyWalkResult{FirstSuccess: epochDate, LastFailure: lastFailure}, nil
		}
		candidate := lastFailure.AddDate(0, 0, -distance)
		v, err := evaluateWithSlip(ctx, candidate, probe)
		if err != nil {
			return NightlyWalkResult{}, err
		}
		if v == bisect.No {
			return NightlyWalkResult{FirstSuccess: candidate, LastFailure: lastFailure}, nil
		}
	}
}

// resolveEvaluableDate slips end back up to maxManifestSlip days to find
// a date with a published manifest, then returns that date as-is (its
// verdict is established separately by the caller via verification).
func resolveEvaluableDate(ctx context.Context, end time.Time, probe NightlyProbe) (time.Time, error) {
	for i := 0; i <= maxManifestSlip; i++ {
		d := end.AddDate(0, 0, -i)
		if _, err := probe(ctx, d); err == nil || !errors.Is(err, errNoManifest) {
			return d, nil
		}
	}
	return time.Time{}, errors.Wrapf(errNoManifest, "no nightly within %d days of %s", maxManifestSlip, end.Format("2006-01-02"))
}

// evaluateWithSlip evaluates candidate, slipping back a calendar day at
// a time on a missing-manifest NotFound (spec.md §4.6 step 1: "the end
// boundary may slip on missing nightlies as well" — the same recovery
// applies to every date visited by the walk).
func evaluateWithSlip(ctx context.Context, candidate time.Time, probe NightlyProbe) (bisect.Satisfies, error) {
	for i := 0; i <= maxManifestSlip; i++ {
		d := candidate.AddDate(0, 0, -i)
		v, err := probe(ctx, d)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, errNoManifest) {
			return bisect.Unknown, err
		}
	}
	return bisect.Unknown, errors.Wrapf(errNoManifest, "no nightly within %d days of %s", maxManifestSlip, candidate.Format("2006-01-02"))
}
