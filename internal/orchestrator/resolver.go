// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"time"

	"github.com/oss-bisect/bisector/internal/history"
	"github.com/oss-bisect/bisector/internal/httpx"
	"github.com/pkg/errors"
)

// Resolver implements bounds.CommitResolver over a history accessor and
// the nightly manifest server, so internal/bounds stays free of network
// dependencies (per its own doc comment).
type Resolver struct {
	Ctx           context.Context
	History       history.Accessor
	Client        httpx.BasicClient
	NightlyServer string
	// Installed reports the date of the currently multiplexer-registered
	// nightly, if any.
	Installed func() (time.Time, bool)
	Now       func() time.Time
}

// DateOfCommit returns the author-date of the merge-base of ref with the
// default branch.
func (r *Resolver) DateOfCommit(ref string) (time.Time, error) {
	c, err := r.History.Commit(ref)
	if err != nil {
		return time.Time{}, err
	}
	return c.AuthorDate, nil
}

// CommitOfDate returns the commit sha recorded in the nightly manifest
// published for date.
func (r *Resolver) CommitOfDate(date time.Time) (string, error) {
	sha, _, err := manifestShaWithSlip(r.Ctx, r.Client, r.NightlyServer, date, maxManifestSlip)
	return sha, err
}

// LatestNightly returns the most recent date with a published nightly
// manifest, slipping back from today until one is found.
func (r *Resolver) LatestNightly() (time.Time, error) {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	_, d, err := manifestShaWithSlip(r.Ctx, r.Client, r.NightlyServer, now(), maxManifestSlip)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "resolving latest nightly")
	}
	return d, nil
}

// InstalledNightly returns the date of the nightly currently registered
// with the toolchain multiplexer, if any.
func (r *Resolver) InstalledNightly() (time.Time, bool) {
	if r.Installed == nil {
		return time.Time{}, false
	}
	return r.Installed()
}
