// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"time"

	"github.com/oss-bisect/bisector/internal/bisect"
	"github.com/oss-bisect/bisector/internal/config"
	"github.com/oss-bisect/bisector/internal/history"
	"github.com/pkg/errors"
)

// CommitProbe evaluates a single commit sha.
type CommitProbe func(ctx context.Context, sha string) (bisect.Satisfies, error)

// CommitPhaseResult is the outcome of bisecting the commit sequence.
type CommitPhaseResult struct {
	Commits []history.Commit
	Search  bisect.Result
}

// RunCommitPhase performs spec.md §4.6's commit phase: fetch the
// bot-authored merge-commit sequence between from and to, retain only
// commits within the CI retention window, verify the endpoints unless
// skipVerify, and bisect.
func RunCommitPhase(ctx context.Context, h history.Accessor, from, to string, now time.Time, skipVerify bool, probe CommitProbe) (CommitPhaseResult, error) {
	commits, err := h.Commits(from, to)
	if err != nil {
		return CommitPhaseResult{}, errors.Wrap(err, "fetching commit range")
	}
	commits = filterRetention(commits, now)
	if len(commits) == 0 {
		return CommitPhaseResult{}, errors.Wrap(history.ErrEmptyRange, "after applying the CI retention window")
	}
	assertNonDecreasing(commits)

	if !skipVerify {
		if v, err := probe(ctx, commits[0].SHA); err != nil {
			return CommitPhaseResult{}, errors.Wrap(err, "verifying commit start endpoint")
		} else if v != bisect.No {
			return CommitPhaseResult{}, errors.Errorf("commit start endpoint %s did not verify as %s", commits[0].SHA, bisect.No)
		}
		last := commits[len(commits)-1]
		if v, err := probe(ctx, last.SHA); err != nil {
			return CommitPhaseResult{}, errors.Wrap(err, "verifying commit end endpoint")
		} else if v != bisect.Yes {
			return CommitPhaseResult{}, errors.Errorf("commit end endpoint %s did not verify as %s", last.SHA, bisect.Yes)
		}
	}

	result, err := bisect.Search(len(commits), func(i int) (bisect.Satisfies, error) {
		return probe(ctx, commits[i].SHA)
	})
	if err != nil {
		return CommitPhaseResult{}, err
	}
	return CommitPhaseResult{Commits: commits, Search: result}, nil
}

// filterRetention drops commits older than config.RetentionWindow
// relative to now, since their CI artifacts have been reaped.
func filterRetention(commits []history.Commit, now time.Time) []history.Commit {
	cutoff := now.Add(-config.RetentionWindow)
	var kept []history.Commit
	for _, c := range commits {
		if c.AuthorDate.After(cutoff) {
			kept = append(kept, c)
		}
	}
	return kept
}

// assertNonDecreasing panics if commits are not in non-decreasing
// author-date order, enforcing spec.md §5's ordering guarantee: this is
// a programming-error backstop, not a user-facing validation (the
// history accessor is solely responsible for producing chronological
// order).
func assertNonDecreasing(commits []history.Commit) {
	for i := 1; i < len(commits); i++ {
		if commits[i].AuthorDate.Before(commits[i-1].AuthorDate) {
			panic("commit sequence is not non-decreasing in author-date")
		}
	}
}
