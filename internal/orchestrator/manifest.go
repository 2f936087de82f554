// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package orchestrator composes the bound resolver, history accessor,
// toolchain store, and test runner into the user-visible bisection
// described in spec.md §4.6. Grounded on the teacher's multi-phase,
// single-operation pipeline style (`tools/ctl/command/runone`): one
// exported entrypoint per phase, each returning a typed intermediate
// result rather than threading loose values through globals.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oss-bisect/bisector/internal/httpx"
	"github.com/pkg/errors"
)

// manifestSha fetches the commit sha published alongside the nightly for
// date, via the one-line manifest spec.md §6 names:
// "<nightly-server>/<YYYY-MM-DD>/channel-rust-nightly-git-commit-hash.txt".
func manifestSha(ctx context.Context, client httpx.BasicClient, nightlyServer string, date time.Time) (string, error) {
	url := fmt.Sprintf("%s/%s/channel-rust-nightly-git-commit-hash.txt", nightlyServer, date.Format("2006-01-02"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "fetching nightly manifest")
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return "", errNoManifest
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("unexpected status %s fetching %s", resp.Status, url)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "reading nightly manifest")
	}
	return strings.TrimSpace(string(body)), nil
}

// errNoManifest marks a missing nightly manifest, the trigger for the
// one-day slip-back retry used by both the nightly walk and the commit
// phase's endpoint resolution (spec.md §7 "Recovery is local only for...
// missing nightly manifests").
var errNoManifest = errors.New("no nightly manifest published for this date")

// manifestShaWithSlip retries manifestSha at progressively earlier dates
// (up to maxSlip calendar days) when a manifest is missing.
func manifestShaWithSlip(ctx context.Context, client httpx.BasicClient, nightlyServer string, date time.Time, maxSlip int) (string, time.Time, error) {
	for i := 0; i <= maxSlip; i++ {
		d := date.AddDate(0, 0, -i)
		sha, err := manifestSha(ctx, client, nightlyServer, d)
		if err == nil {
			return sha, d, nil
		}
		if !errors.Is(err, errNoManifest) {
			return "", time.Time{}, err
		}
	}
	return "", time.Time{}, errors.Wrapf(errNoManifest, "after slipping back %d days from %s", maxSlip, date.Format("2006-01-02"))
}
