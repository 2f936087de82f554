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

package bounds

import (
	"testing"
	"time"
)

type fakeResolver struct {
	tagDates     map[string]time.Time
	manifests    map[string]string // date (YYYY-MM-DD) -> commit sha
	latest       time.Time
	installed    time.Time
	hasInstalled bool
}

func (f fakeResolver) DateOfCommit(ref string) (time.Time, error) {
	return f.tagDates[ref], nil
}

func (f fakeResolver) CommitOfDate(date time.Time) (string, error) {
	return f.manifests[date.Format("2006-01-02")], nil
}

func (f fakeResolver) LatestNightly() (time.Time, error) { return f.latest, nil }

func (f fakeResolver) InstalledNightly() (time.Time, bool) { return f.installed, f.hasInstalled }

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatal(err)
	}
	return tm
}

func TestResolve_TagStartDateEnd(t *testing.T) {
	r := fakeResolver{
		tagDates: map[string]time.Time{"1.50.0": mustDate(t, "2021-01-01")},
		latest:   mustDate(t, "2021-02-01"),
	}
	start := ParseCommit("1.50.0")
	end, _ := ParseDate("2021-02-01")
	result, err := Resolve(r, Options{Start: &start, End: &end}, mustDate(t, "2021-03-01"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if result.Domain != DomainDates {
		t.Fatalf("Domain = %v, want DomainDates", result.Domain)
	}
	if !result.Start.Date.Equal(mustDate(t, "2021-01-01")) {
		t.Errorf("Start = %v, want 2021-01-01 (tag resolved to merge-base date)", result.Start.Date)
	}
}

func TestResolve_CommitStartTagEndRejected(t *testing.T) {
	r := fakeResolver{tagDates: map[string]time.Time{"1.50.0": mustDate(t, "2021-01-01")}}
	start := ParseCommit("abc123")
	end := ParseCommit("1.50.0")
	_, err := Resolve(r, Options{Start: &start, End: &end}, mustDate(t, "2021-03-01"))
	if err == nil {
		t.Fatal("Resolve() with commit start + tag end, want error (variant mismatch)")
	}
}

func TestResolve_FutureEndRejected(t *testing.T) {
	r := fakeResolver{}
	end, _ := ParseDate("2099-01-01")
	_, err := Resolve(r, Options{End: &end}, mustDate(t, "2026-01-01"))
	if err == nil {
		t.Fatal("Resolve() with a future end date, want error")
	}
}

func TestResolve_StartAfterEndRejected(t *testing.T) {
	r := fakeResolver{}
	start, _ := ParseDate("2021-06-01")
	end, _ := ParseDate("2021-01-01")
	_, err := Resolve(r, Options{Start: &start, End: &end}, mustDate(t, "2022-01-01"))
	if err == nil {
		t.Fatal("Resolve() with start after end, want error naming both")
	}
}

func TestResolve_ByCommitPromotesDatesToCommits(t *testing.T) {
	r := fakeResolver{
		manifests: map[string]string{
			"2021-01-01": "startsha",
			"2021-02-01": "endsha",
		},
	}
	start, _ := ParseDate("2021-01-01")
	end, _ := ParseDate("2021-02-01")
	result, err := Resolve(r, Options{Start: &start, End: &end, ByCommit: true}, mustDate(t, "2021-03-01"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if result.Domain != DomainCommits {
		t.Fatalf("Domain = %v, want DomainCommits", result.Domain)
	}
	if result.Start.Value != "startsha" || result.End.Value != "endsha" {
		t.Errorf("Start/End = %s/%s, want startsha/endsha", result.Start.Value, result.End.Value)
	}
}

func TestResolve_MissingStartNoInstalledDefersToBackwardsWalk(t *testing.T) {
	r := fakeResolver{latest: mustDate(t, "2021-02-01")}
	result, err := Resolve(r, Options{}, mustDate(t, "2021-03-01"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if result.Domain != DomainSearchNightlyBackwards {
		t.Fatalf("Domain = %v, want DomainSearchNightlyBackwards", result.Domain)
	}
}

func TestResolve_MissingStartWithInstalledNightly(t *testing.T) {
	r := fakeResolver{
		latest:       mustDate(t, "2021-02-01"),
		installed:    mustDate(t, "2021-01-15"),
		hasInstalled: true,
	}
	result, err := Resolve(r, Options{}, mustDate(t, "2021-03-01"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if result.Domain != DomainDates {
		t.Fatalf("Domain = %v, want DomainDates", result.Domain)
	}
	if !result.Start.Date.Equal(mustDate(t, "2021-01-15")) {
		t.Errorf("Start = %v, want installed nightly 2021-01-15", result.Start.Date)
	}
}

func TestResolve_MissingStartWithCommitEndDefaultsToEpoch(t *testing.T) {
	r := fakeResolver{}
	end := ParseCommit("deadbeef")
	result, err := Resolve(r, Options{End: &end}, mustDate(t, "2021-03-01"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if result.Domain != DomainCommits {
		t.Fatalf("Domain = %v, want DomainCommits", result.Domain)
	}
	if result.Start.Value == "" {
		t.Error("Start.Value is empty, want the epoch commit default")
	}
}

func TestResolve_Idempotent(t *testing.T) {
	r := fakeResolver{}
	start := ParseCommit("abc123")
	end := ParseCommit("def456")
	first, err := Resolve(r, Options{Start: &start, End: &end}, mustDate(t, "2021-03-01"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	second, err := Resolve(r, Options{Start: &first.Start, End: &first.End}, mustDate(t, "2021-03-01"))
	if err != nil {
		t.Fatalf("Resolve() on already-resolved bounds error = %v", err)
	}
	if second != first {
		t.Errorf("Resolve() not idempotent: first=%+v second=%+v", first, second)
	}
}
