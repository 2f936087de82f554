// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/oss-bisect/bisector/internal/bisect"
	"github.com/oss-bisect/bisector/internal/bounds"
	"github.com/oss-bisect/bisector/internal/config"
	"github.com/oss-bisect/bisector/internal/ghapi"
	"github.com/oss-bisect/bisector/internal/history"
	"github.com/oss-bisect/bisector/internal/httpx"
	"github.com/oss-bisect/bisector/internal/report"
	"github.com/oss-bisect/bisector/internal/runner"
	"github.com/oss-bisect/bisector/internal/toolchain"
	"github.com/pkg/errors"
)

// Options gathers the user-facing flags that shape one bisection
// (spec.md §6), independent of wiring (store, history, client).
type Options struct {
	Start, End *bounds.Bound
	ByCommit   bool

	HostTriple string
	StdTargets []string
	Alt        bool

	Policy         runner.Policy
	Script         string
	Args           []string
	TestDir        string
	Prompt         bool
	Timeout        time.Duration
	PreserveTarget bool

	Preserve bool

	NoVerifyNightly bool
	NoVerifyCI      bool

	TermOld, TermNew string
	Invocation       string

	// CheckpointPath, if set, records the nightly phase's resolved
	// commit range so a later invocation can jump straight to the
	// commit phase instead of re-walking nightlies.
	CheckpointPath string
}

// Orchestrator composes the bound resolver, history accessor, toolchain
// store, and test runner into the user-visible bisection of spec.md
// §4.6. Grounded on the teacher's `tools/ctl/command/runone` style: a
// single entrypoint (Bisect) delegating to one function per phase.
type Orchestrator struct {
	Config  config.Config
	Store   *toolchain.Store
	History history.Accessor
	GH      *ghapi.Client
	Client  httpx.BasicClient
	Now     func() time.Time
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// specFor builds the ToolchainSpec this Options set would install for
// either a nightly date or a CI commit.
func specFor(opts Options, date time.Time, commit string) toolchain.Spec {
	if commit != "" {
		return toolchain.Spec{Kind: toolchain.KindCI, Commit: commit, Alt: opts.Alt}
	}
	return toolchain.Spec{Kind: toolchain.KindNightly, Date: date, Alt: opts.Alt}
}

// installAndTest installs spec, runs the configured test, and tears the
// toolchain back down (unless Preserve), returning the raw install or
// test error unmapped so callers can distinguish a missing-artifact
// NotFound from every other failure.
func (o *Orchestrator) installAndTest(ctx context.Context, opts Options, spec toolchain.Spec) (bisect.Satisfies, error) {
	tc := toolchain.NewToolchain(spec, opts.HostTriple, opts.StdTargets)

	if err := o.Store.Install(ctx, tc); err != nil {
		return bisect.Unknown, err
	}
	if !opts.Preserve {
		defer o.Store.Remove(tc) // removal failures are logged, never fatal (spec.md §7)
	}

	outcome, err := runner.Run(ctx, tc, runner.Config{
		Script:         opts.Script,
		Args:           opts.Args,
		BuildRoot:      opts.TestDir,
		PreserveTarget: opts.PreserveTarget,
		Timeout:        opts.Timeout,
		Policy:         opts.Policy,
		Prompt:         opts.Prompt,
	})
	if err != nil {
		return bisect.Unknown, err
	}
	if outcome == runner.Regressed {
		return bisect.Yes, nil
	}
	return bisect.No, nil
}

// evaluate is the predicate closure handed to bisect.Search: it
// translates install errors into bisect.Unknown per spec.md §4.4/§4.6
// "install errors map to Unknown" — except that only NotFound does
// (spec.md §7); any other install error is fatal to the phase.
func (o *Orchestrator) evaluate(ctx context.Context, opts Options, spec toolchain.Spec) (bisect.Satisfies, error) {
	v, err := o.installAndTest(ctx, opts, spec)
	if err == nil {
		return v, nil
	}
	var nf *toolchain.NotFoundError
	if errors.As(err, &nf) {
		return bisect.Unknown, nil
	}
	return bisect.Unknown, err
}

// evaluateForWalk is evaluate's counterpart for the nightly walk (spec.md
// §4.6 step 1): it surfaces a NotFound install error as errNoManifest
// instead of swallowing it, so WalkNightlies' slip-back-a-day retry can
// detect a missing manifest and actually fire.
func (o *Orchestrator) evaluateForWalk(ctx context.Context, opts Options, spec toolchain.Spec) (bisect.Satisfies, error) {
	v, err := o.installAndTest(ctx, opts, spec)
	if err == nil {
		return v, nil
	}
	var nf *toolchain.NotFoundError
	if errors.As(err, &nf) {
		return bisect.Unknown, errNoManifest
	}
	return bisect.Unknown, err
}

// Bisect performs the full bisection described by opts and returns the
// report to present to the user.
func (o *Orchestrator) Bisect(ctx context.Context, resolver *Resolver, opts Options) (report.Bisection, error) {
	res, err := bounds.Resolve(resolver, bounds.Options{Start: opts.Start, End: opts.End, ByCommit: opts.ByCommit}, o.now())
	if err != nil {
		return report.Bisection{}, errors.Wrap(err, "resolving boundaries")
	}

	rep := report.Bisection{TermOld: opts.TermOld, TermNew: opts.TermNew, Invocation: opts.Invocation}

	switch res.Domain {
	case bounds.DomainCommits:
		return o.bisectCommits(ctx, opts, rep, res.Start.Value, res.End.Value)

	case bounds.DomainDates:
		return o.bisectNightlyRange(ctx, opts, rep, res.Start.Date, res.End.Date)

	case bounds.DomainSearchNightlyBackwards:
		if opts.CheckpointPath != "" {
			if cp, ok, err := LoadCheckpoint(opts.CheckpointPath); err == nil && ok {
				log.Printf("resuming from checkpoint %s: commits %s..%s", opts.CheckpointPath, cp.FromSha, cp.ToSha)
				return o.bisectCommits(ctx, opts, rep, cp.FromSha, cp.ToSha)
			}
		}
		probe := func(ctx context.Context, d time.Time) (bisect.Satisfies, error) {
			return o.evaluateForWalk(ctx, opts, specFor(opts, d, ""))
		}
		walk, err := WalkNightlies(ctx, res.End.Date, nil, probe)
		if err != nil {
			return report.Bisection{}, errors.Wrap(err, "walking backward for a good nightly")
		}
		return o.bisectNightlyRange(ctx, opts, rep, walk.FirstSuccess, walk.LastFailure)

	default:
		return report.Bisection{}, errors.Errorf("unhandled bound domain %v", res.Domain)
	}
}

// bisectNightlyRange materializes the daily sequence between start and
// end (inclusive) and bisects it, then hands the regressing nightly off
// to the commit phase.
func (o *Orchestrator) bisectNightlyRange(ctx context.Context, opts Options, rep report.Bisection, start, end time.Time) (report.Bisection, error) {
	rep.SearchedNightlyStart = start.Format("2006-01-02")
	rep.SearchedNightlyEnd = end.Format("2006-01-02")

	if !opts.NoVerifyNightly {
		if v, err := o.evaluate(ctx, opts, specFor(opts, end, "")); err != nil {
			return report.Bisection{}, errors.Wrap(err, "verifying nightly end endpoint")
		} else if v != bisect.Yes {
			return report.Bisection{}, errors.Errorf("nightly end endpoint %s did not verify as regressed", rep.SearchedNightlyEnd)
		}
	}

	n := int(end.Sub(start).Hours()/24) + 1
	if n < 2 {
		return report.Bisection{}, errors.New("nightly range collapsed to a single day; nothing to bisect")
	}
	dateAt := func(i int) time.Time { return start.AddDate(0, 0, i) }

	result, err := bisect.Search(n, func(i int) (bisect.Satisfies, error) {
		return o.evaluate(ctx, opts, specFor(opts, dateAt(i), ""))
	})
	if err != nil {
		return report.Bisection{}, errors.Wrap(err, "bisecting nightlies")
	}
	regressedDate := dateAt(result.Found)
	rep.RegressedNightly = regressedDate.Format("2006-01-02")

	dayBefore := regressedDate.AddDate(0, 0, -1)
	fromSha, _, err := manifestShaWithSlip(ctx, o.Client, o.Config.NightlyServer, dayBefore, maxManifestSlip)
	if err != nil {
		return rep, errors.Wrap(err, "resolving commit before the regressing nightly")
	}
	toSha, _, err := manifestShaWithSlip(ctx, o.Client, o.Config.NightlyServer, regressedDate, maxManifestSlip)
	if err != nil {
		return rep, errors.Wrap(err, "resolving the regressing nightly's commit")
	}

	if opts.CheckpointPath != "" {
		if err := SaveCheckpoint(opts.CheckpointPath, Checkpoint{
			FirstSuccess: start,
			LastFailure:  end,
			FromSha:      fromSha,
			ToSha:        toSha,
		}); err != nil {
			log.Printf("warning: could not save checkpoint %s: %v", opts.CheckpointPath, err)
		}
	}

	return o.bisectCommits(ctx, opts, rep, fromSha, toSha)
}

// bisectCommits runs the commit phase between from and to, then the
// perf-build refinement if the regressing commit is a rollup.
func (o *Orchestrator) bisectCommits(ctx context.Context, opts Options, rep report.Bisection, from, to string) (report.Bisection, error) {
	probe := func(ctx context.Context, sha string) (bisect.Satisfies, error) {
		return o.evaluate(ctx, opts, specFor(opts, time.Time{}, sha))
	}
	result, err := RunCommitPhase(ctx, o.History, from, to, o.now(), opts.NoVerifyCI, probe)
	if err != nil {
		return rep, errors.Wrap(err, "bisecting commits")
	}
	rep.SearchedCommitRange = fmt.Sprintf("%s/%s/%s/compare/%s...%s", o.Config.WebBase, o.Config.RepoOwner, o.Config.RepoName, from, to)
	regressed := result.Commits[result.Search.Found]
	rep.RegressedCommit = regressed.SHA

	if o.GH != nil && isRollupMerge(regressed.Summary) {
		refine, err := RefinePerfBuild(ctx, o.GH, o.Config.TimerBotLogin, regressed.Summary, probe)
		if err == nil && refine.Found >= 0 {
			row := refine.Rows[refine.Found]
			rep.PerfBuildDescription = row.Description
			rep.RegressedCommit = row.SHA
		}
	}
	return rep, nil
}
