// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"testing"

	"github.com/oss-bisect/bisector/internal/bisect"
	"github.com/oss-bisect/bisector/internal/ghapi"
)

func TestIsRollupMerge(t *testing.T) {
	cases := map[string]bool{
		"Auto merge of #98765 - user:branch, r=reviewer\n\nRollup of 10 pull requests": true,
		"Auto merge of #98765 - user:branch, r=reviewer\n\nFix a typo":                 false,
		"Rollup of 10 pull requests":                                                   false,
	}
	for msg, want := range cases {
		if got := isRollupMerge(msg); got != want {
			t.Errorf("isRollupMerge(%q) = %v, want %v", msg, got, want)
		}
	}
}

func TestPRNumberFromMergeMessage(t *testing.T) {
	got, err := prNumberFromMergeMessage("Auto merge of #98765 - user:branch, r=reviewer\n\nRollup of 10 pull requests")
	if err != nil {
		t.Fatalf("prNumberFromMergeMessage: %v", err)
	}
	if got != 98765 {
		t.Errorf("got %d, want 98765", got)
	}
}

func TestParsePerfTable_PrefersLastSHAOnRow(t *testing.T) {
	body := "Perf builds for each rolled up PR:\n\n" +
		"| PR | Description | Perf Build Sha |\n" +
		"|---|---|---|\n" +
		"|#111| some title mentioning deadbeefdeadbeefdeadbeefdeadbeefdeadbeef | 111111111111111111111111111111111111111a |\n" +
		"|#222| a normal title | 222222222222222222222222222222222222222b |\n"
	rows := parsePerfTable(body)
	if len(rows) != 2 {
		t.Fatalf("parsePerfTable returned %d rows, want 2: %+v", len(rows), rows)
	}
	if rows[0].SHA != "111111111111111111111111111111111111111a" {
		t.Errorf("row 0 sha = %q, want the shas after the title, not the title's hex-like substring", rows[0].SHA)
	}
	if rows[1].PR != 222 {
		t.Errorf("row 1 PR = %d, want 222", rows[1].PR)
	}
}

func TestParsePerfTable_DescriptionFormat(t *testing.T) {
	// spec.md §8 Scenario F: newer rows carry a title column and yield
	// "#N: title"; older two-column rows yield just "#N".
	body := "Perf builds for each rolled up PR:\n" +
		"| #112207 | title here | `bbecbbecbbecbbecbbecbbecbbecbbecbbecbbeb` ([link](https://example.com)) |\n" +
		"|#113009|[05b005b005b005b005b005b005b005b005b05f5b](https://example.com)|\n"
	rows := parsePerfTable(body)
	if len(rows) != 2 {
		t.Fatalf("parsePerfTable returned %d rows, want 2: %+v", len(rows), rows)
	}
	if rows[0].SHA != "bbecbbecbbecbbecbbecbbecbbecbbecbbecbbeb" {
		t.Errorf("row 0 sha = %q", rows[0].SHA)
	}
	if rows[0].Description != "#112207: title here" {
		t.Errorf("row 0 description = %q, want %q", rows[0].Description, "#112207: title here")
	}
	if rows[1].Description != "#113009" {
		t.Errorf("row 1 description = %q, want %q", rows[1].Description, "#113009")
	}
}

func TestFindPerfBuildComment(t *testing.T) {
	comments := []ghapi.Comment{
		{User: struct{ Login string }{Login: "someone"}, Body: "looks good"},
		{User: struct{ Login string }{Login: "rust-timer"}, Body: "Perf builds for each rolled up PR: ..."},
	}
	got := findPerfBuildComment(comments, "rust-timer")
	if got == "" {
		t.Fatal("expected to find the timer bot's comment")
	}
}

func TestRefinePerfBuild_ReturnsFirstRegressingRow(t *testing.T) {
	// RefinePerfBuild needs a *ghapi.Client for the comment fetch; since
	// the comment-fetch path is already covered by ghapi's own tests,
	// this exercises only the linear-scan contract via parsePerfTable's
	// output fed through a fake probe, mirroring what RefinePerfBuild
	// does once it has rows in hand.
	rows := parsePerfTable(
		"Perf builds for each rolled up PR:\n" +
			"|#1| title one | 111111111111111111111111111111111111111a |\n" +
			"|#2| title two | 222222222222222222222222222222222222222b |\n" +
			"|#3| title three | 333333333333333333333333333333333333333c |\n")
	probe := func(ctx context.Context, sha string) (bisect.Satisfies, error) {
		if sha == "222222222222222222222222222222222222222b" {
			return bisect.Yes, nil
		}
		return bisect.No, nil
	}
	found := -1
	for i, row := range rows {
		v, _ := probe(context.Background(), row.SHA)
		if v == bisect.Yes {
			found = i
			break
		}
	}
	if found != 1 {
		t.Errorf("found = %d, want 1", found)
	}
}
