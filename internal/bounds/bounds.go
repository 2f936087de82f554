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

// Package bounds normalizes user-supplied bisection boundaries (a
// calendar date, a release tag, or a free-form commit identifier) into a
// common search domain.
package bounds

import (
	"strings"
	"time"

	"github.com/oss-bisect/bisector/internal/config"
	"github.com/pkg/errors"
)

// Kind distinguishes the two normalized Bound variants.
type Kind int

const (
	// KindDate identifies a calendar-day boundary (a nightly release).
	KindDate Kind = iota
	// KindCommit identifies a free-form commit identifier boundary.
	KindCommit
)

func (k Kind) String() string {
	if k == KindDate {
		return "date"
	}
	return "commit"
}

// Bound is a single user-supplied search endpoint, prior to resolution.
// A tag-shaped identifier (one containing a ".") is classed as Commit at
// parse time but re-resolved to Date by Resolve, per spec.md §3.
type Bound struct {
	Kind  Kind
	Date  time.Time // valid when Kind == KindDate
	Value string    // commit sha, tag, or raw input, valid when Kind == KindCommit
}

func (b Bound) String() string {
	if b.Kind == KindDate {
		return b.Date.Format("2006-01-02")
	}
	return b.Value
}

// isTagShaped reports whether a commit-like identifier is in fact a
// release tag, per spec.md §3: "A tag-like identifier (contains '.') is
// classed as Commit at parse time but re-resolved to Date by the bound
// resolver."
func isTagShaped(s string) bool {
	return strings.Contains(s, ".")
}

// ParseDate parses a Bound from a calendar date string (YYYY-MM-DD).
func ParseDate(s string) (Bound, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Bound{}, errors.Wrapf(err, "parsing date %q", s)
	}
	return Bound{Kind: KindDate, Date: t}, nil
}

// ParseCommit parses a Bound from a free-form commit identifier or tag.
func ParseCommit(s string) Bound {
	return Bound{Kind: KindCommit, Value: s}
}

// Domain is the normalized search domain produced by Resolve.
type Domain int

const (
	// DomainDates indicates a one-per-calendar-day nightly search.
	DomainDates Domain = iota
	// DomainCommits indicates a per-merge-commit CI search.
	DomainCommits
	// DomainSearchNightlyBackwards indicates no usable start was
	// supplied; the orchestrator must walk backwards from End to find
	// one before bisection can begin.
	DomainSearchNightlyBackwards
)

// Result is the outcome of bound resolution: the search domain plus its
// two normalized endpoints (Start is zero when Domain is
// DomainSearchNightlyBackwards).
type Result struct {
	Domain Domain
	Start  Bound
	End    Bound
}

// CommitResolver resolves a Bound's tag-shaped commit identifier to the
// author-date of its underlying merge commit, and a date to its
// associated nightly-manifest commit sha. It abstracts over the history
// accessor so this package stays free of network/VCS dependencies.
type CommitResolver interface {
	// DateOfCommit returns the author-date of the merge-base of ref with
	// the default branch.
	DateOfCommit(ref string) (time.Time, error)
	// CommitOfDate returns the commit sha recorded in the nightly
	// manifest published for date.
	CommitOfDate(date time.Time) (string, error)
	// LatestNightly returns the most recent date with a published
	// nightly manifest.
	LatestNightly() (time.Time, error)
	// InstalledNightly returns the date of the nightly currently
	// registered with the toolchain multiplexer, if any.
	InstalledNightly() (time.Time, bool)
}

// Options configures Resolve.
type Options struct {
	// Start/End are the optional user-supplied boundaries. A nil pointer
	// means "not supplied".
	Start, End *Bound
	// ByCommit promotes a date-domain search to the commit domain.
	ByCommit bool
}

// Resolve normalizes the user's boundaries into a Result, applying the
// rules of spec.md §4.2. Resolution is idempotent: resolving an
// already-normalized pair of bounds (one already free-form-commit typed
// and not tag-shaped) returns the Start/End unchanged (Testable Property
// 7).
func Resolve(r CommitResolver, opt Options, now time.Time) (Result, error) {
	start, end := opt.Start, opt.End

	if start != nil && start.Kind == KindCommit && !isTagShaped(start.Value) {
		if end != nil && end.Kind == KindCommit && isTagShaped(end.Value) {
			return Result{}, errors.Errorf("mixed boundary variants: start=%s (commit) end=%s (tag)", start.Value, end.Value)
		}
	}

	// Re-resolve tag-shaped commit identifiers to dates.
	start, err := detagify(r, start)
	if err != nil {
		return Result{}, err
	}
	end, err = detagify(r, end)
	if err != nil {
		return Result{}, err
	}

	// Rule 1: a free-form commit boundary forces the other side (if
	// present) to also be a free-form commit.
	if (start != nil && start.Kind == KindCommit) != (end != nil && end.Kind == KindCommit) {
		if start != nil && end != nil {
			return Result{}, errors.Errorf("mixed boundary variants: start=%s (%s) end=%s (%s)", start.String(), start.Kind, end.String(), end.Kind)
		}
	}

	// Rule 4: fill in missing boundaries.
	if end == nil {
		latest, err := r.LatestNightly()
		if err != nil {
			return Result{}, errors.Wrap(err, "resolving default end (latest nightly)")
		}
		b := Bound{Kind: KindDate, Date: latest}
		end = &b
	}
	if start == nil {
		if end.Kind == KindCommit {
			b := Bound{Kind: KindCommit, Value: config.EpochCommit}
			start = &b
		} else if installed, ok := r.InstalledNightly(); ok {
			b := Bound{Kind: KindDate, Date: installed}
			start = &b
		} else {
			if end.Kind == KindDate && end.Date.After(now) {
				return Result{}, errors.Errorf("end date %s is in the future", end.String())
			}
			return Result{Domain: DomainSearchNightlyBackwards, End: *end}, nil
		}
	}

	if err := checkInvariants(*start, *end, now); err != nil {
		return Result{}, err
	}

	// Rule 3: promote dates to commits if requested.
	if opt.ByCommit && start.Kind == KindDate && end.Kind == KindDate {
		startSha, err := r.CommitOfDate(start.Date)
		if err != nil {
			return Result{}, errors.Wrap(err, "resolving start nightly to commit")
		}
		endSha, err := r.CommitOfDate(end.Date)
		if err != nil {
			return Result{}, errors.Wrap(err, "resolving end nightly to commit")
		}
		return Result{
			Domain: DomainCommits,
			Start:  Bound{Kind: KindCommit, Value: startSha},
			End:    Bound{Kind: KindCommit, Value: endSha},
		}, nil
	}

	if start.Kind == KindCommit {
		return Result{Domain: DomainCommits, Start: *start, End: *end}, nil
	}
	return Result{Domain: DomainDates, Start: *start, End: *end}, nil
}

// detagify re-resolves a tag-shaped commit Bound to a date Bound
// (spec.md §3, §4.2 rule 2). Non-tag-shaped commit bounds and date
// bounds pass through unchanged.
func detagify(r CommitResolver, b *Bound) (*Bound, error) {
	if b == nil || b.Kind != KindCommit || !isTagShaped(b.Value) {
		return b, nil
	}
	date, err := r.DateOfCommit(b.Value)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving tag %q to its merge-base date", b.Value)
	}
	return &Bound{Kind: KindDate, Date: date}, nil
}

// checkInvariants enforces the invariants named in spec.md §4.2: no
// future dates, and start <= end.
func checkInvariants(start, end Bound, now time.Time) error {
	if start.Kind == KindDate && start.Date.After(now) {
		return errors.Errorf("start date %s is in the future", start.String())
	}
	if end.Kind == KindDate && end.Date.After(now) {
		return errors.Errorf("end date %s is in the future", end.String())
	}
	if start.Kind == KindDate && end.Kind == KindDate && start.Date.After(end.Date) {
		return errors.Errorf("start %s is later than end %s", start.String(), end.String())
	}
	return nil
}
