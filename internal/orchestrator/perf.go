// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/oss-bisect/bisector/internal/bisect"
	"github.com/oss-bisect/bisector/internal/ghapi"
	"github.com/pkg/errors"
)

// isRollupMerge reports whether message has the commit-message shape of
// a rollup merge (spec.md §4.6 "Perf-build refinement"): "Auto merge of
// #N ..." whose message also contains "Rollup of".
func isRollupMerge(message string) bool {
	return strings.HasPrefix(message, "Auto merge of #") && strings.Contains(message, "Rollup of")
}

// prNumberFromMergeMessage extracts the pull-request number from a
// rollup merge commit's subject line, e.g. "Auto merge of #98765 -
// ...".
func prNumberFromMergeMessage(message string) (int, error) {
	m := mergePRRe.FindStringSubmatch(message)
	if m == nil {
		return 0, errors.Errorf("could not find a PR number in merge message %q", message)
	}
	return strconv.Atoi(m[1])
}

var mergePRRe = regexp.MustCompile(`^Auto merge of #(\d+)`)

// perfBuildCommentMarker identifies the timer bot's comment carrying the
// per-PR perf-build table.
const perfBuildCommentMarker = "Perf builds for each rolled up PR"

// perfTableRowRe matches one row of the perf-build markdown table: a
// leading "|#<N>" and the rest of the row. shaRe then finds the
// 40-character commit shas in the rest; among several hex-like runs on one
// row (a PR title can itself look like a sha), parsePerfTable keeps the
// *last* match, per spec.md's explicit tie-break.
var perfTableRowRe = regexp.MustCompile(`^\|\s*#(\d+)\s*\|(.*)$`)
var shaRe = regexp.MustCompile(`\b[0-9a-f]{40}\b`)

// PerfRow is one parsed row of a perf-build comment table.
type PerfRow struct {
	PR          int
	Description string
	SHA         string
}

// parsePerfTable extracts PerfRows from a comment body, scanning every
// line that begins with "|#" (spec.md §4.6). Rows without a 40-character
// hex sha are skipped; they carry no testable commit.
//
// Newer rows carry a title column between the PR number and the sha
// column ("| #112207 | title… | `sha` (link) |"); Description becomes
// "#112207: title…". Older rows go straight from PR number to the sha
// column ("|#113009|sha(link)|"); Description is just "#113009" (spec.md
// §8 Scenario F).
func parsePerfTable(body string) []PerfRow {
	var rows []PerfRow
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		m := perfTableRowRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		pr, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		shas := shaRe.FindAllString(m[2], -1)
		if len(shas) == 0 {
			continue
		}
		cells := strings.Split(strings.Trim(line, "|"), "|")
		desc := fmt.Sprintf("#%d", pr)
		if len(cells) >= 3 {
			title := strings.TrimSpace(cells[1])
			if title != "" {
				desc = fmt.Sprintf("#%d: %s", pr, title)
			}
		}
		rows = append(rows, PerfRow{PR: pr, Description: desc, SHA: shas[len(shas)-1]})
	}
	return rows
}

// findPerfBuildComment returns the body of the timer bot's perf-build
// comment among comments, or "" if none matches.
func findPerfBuildComment(comments []ghapi.Comment, timerBotLogin string) string {
	for _, c := range comments {
		if c.User.Login == timerBotLogin && strings.Contains(c.Body, perfBuildCommentMarker) {
			return c.Body
		}
	}
	return ""
}

// PerfRefineResult is the outcome of the linear perf-build scan.
type PerfRefineResult struct {
	Rows  []PerfRow
	Found int // index into Rows, or -1 if none regressed
}

// RefinePerfBuild performs spec.md §4.6's perf-build refinement: given a
// rollup merge commit's message, fetch its PR's discussion comments,
// parse the timer bot's table, and linearly scan for the first
// regressing row (not a bisection — the set is small and the shas are
// not chronologically ordered within the rollup).
func RefinePerfBuild(ctx context.Context, client *ghapi.Client, timerBotLogin, mergeMessage string, probe CommitProbe) (PerfRefineResult, error) {
	pr, err := prNumberFromMergeMessage(mergeMessage)
	if err != nil {
		return PerfRefineResult{}, err
	}
	comments, err := client.Comments(pr)
	if err != nil {
		return PerfRefineResult{}, errors.Wrapf(err, "fetching comments for PR #%d", pr)
	}
	body := findPerfBuildComment(comments, timerBotLogin)
	if body == "" {
		return PerfRefineResult{}, errors.Errorf("no perf-build comment found on PR #%d", pr)
	}
	rows := parsePerfTable(body)
	if len(rows) == 0 {
		return PerfRefineResult{}, errors.Errorf("perf-build comment on PR #%d carried no parseable rows", pr)
	}
	for i, row := range rows {
		v, err := probe(ctx, row.SHA)
		if err != nil {
			return PerfRefineResult{}, errors.Wrapf(err, "evaluating perf-build row for PR #%d", row.PR)
		}
		if v == bisect.Yes {
			return PerfRefineResult{Rows: rows, Found: i}, nil
		}
	}
	return PerfRefineResult{Rows: rows, Found: -1}, nil
}
