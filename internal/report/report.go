// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package report renders the structured, user-visible output of a
// completed or failed bisection (spec.md §4.6 "Reporting", §7
// "User-visible failure behavior"). Grounded on the teacher's small
// single-purpose rendering packages (internal/textwrap) and on
// github.com/fatih/color, a teacher dependency otherwise unwired by
// this tool, for the colored ERROR: prefix.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/oss-bisect/bisector/internal/textwrap"
)

// Bisection is the successful outcome of a full run, covering whichever
// phases actually ran.
type Bisection struct {
	TermOld, TermNew string // spec.md §6 --term-old/--term-new, default "old"/"new"

	SearchedNightlyStart, SearchedNightlyEnd string
	RegressedNightly                        string

	SearchedCommitRange string // rendered as a compare-URL
	RegressedCommit     string

	// PerfBuildDescription, when set, names the rolled-up PR/commit the
	// perf-build refinement isolated, for when the raw sha has since
	// been garbage-collected.
	PerfBuildDescription string

	Invocation string // the command line, echoed in the reproduction stanza
}

func (b Bisection) termOld() string {
	if b.TermOld != "" {
		return b.TermOld
	}
	return "old"
}

func (b Bisection) termNew() string {
	if b.TermNew != "" {
		return b.TermNew
	}
	return "new"
}

// WriteSuccess renders a completed bisection to w.
func WriteSuccess(w io.Writer, b Bisection) {
	fmt.Fprintf(w, "searched nightlies %s through %s\n", b.SearchedNightlyStart, b.SearchedNightlyEnd)
	if b.RegressedNightly != "" {
		fmt.Fprintf(w, "regression in nightly: %s\n", b.RegressedNightly)
	}
	if b.SearchedCommitRange != "" {
		fmt.Fprintf(w, "searched commits: %s\n", b.SearchedCommitRange)
	}
	if b.RegressedCommit != "" {
		fmt.Fprintf(w, "regression introduced by commit: %s\n", b.RegressedCommit)
	}
	if b.PerfBuildDescription != "" {
		fmt.Fprintf(w, "isolated within rollup to: %s\n", b.PerfBuildDescription)
	}
	fmt.Fprintf(w, "regression is %s, was %s\n", b.termNew(), b.termOld())
	writeReproduction(w, b.Invocation)
}

// writeReproduction emits a collapsible (HTML <details>) reproduction
// stanza so the report stays compact in terminals that render it raw
// and expandable where the viewer understands HTML.
func writeReproduction(w io.Writer, invocation string) {
	if invocation == "" {
		return
	}
	fmt.Fprintln(w, "<details><summary>reproduce this search</summary>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, textwrap.Dedent(fmt.Sprintf("    %s\n", invocation)))
	fmt.Fprintln(w, "</details>")
}

// errorColor renders the ERROR: prefix in bold red, matching the
// teacher's use of fatih/color for CLI diagnostics.
var errorColor = color.New(color.FgRed, color.Bold)

// WriteError renders a causal chain of errors as the user-visible
// failure report (spec.md §7): a colored "ERROR:" prefix followed by
// each cause on its own indented line.
func WriteError(w io.Writer, err error) {
	errorColor.Fprint(w, "ERROR: ")
	fmt.Fprintln(w, err.Error())
	for _, cause := range causeChain(err) {
		fmt.Fprintf(w, "  caused by: %s\n", cause)
	}
}

// causeChain unwraps err one level at a time, returning each
// intermediate message (not including err's own top-level message).
func causeChain(err error) []string {
	type unwrapper interface{ Unwrap() error }
	var chain []string
	prev := strings.TrimSpace(err.Error())
	for {
		u, ok := err.(unwrapper)
		if !ok {
			break
		}
		next := u.Unwrap()
		if next == nil {
			break
		}
		// Wrappers that only add a stack trace repeat their inner
		// message; keep one entry per distinct message.
		msg := strings.TrimSpace(next.Error())
		if msg != prev {
			chain = append(chain, msg)
		}
		prev = msg
		err = next
	}
	return chain
}
