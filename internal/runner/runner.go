// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package runner executes the user's build against one installed
// toolchain and classifies the outcome under a configurable regression
// policy (spec.md §4.5). Grounded on the teacher's subprocess-execution
// style in its command layer: construct the command, capture only the
// stream the policy requires, and translate a timeout into a sentinel
// exit status rather than leaving the caller to inspect a context error.
package runner

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/oss-bisect/bisector/internal/toolchain"
	"github.com/pkg/errors"
)

// Policy selects how a raw execution result maps to TestOutcome.
type Policy string

const (
	// PolicyError is the default: any nonzero exit is a regression.
	PolicyError Policy = "error"
	// PolicySuccess inverts the default: exit success is the regression.
	PolicySuccess Policy = "success"
	// PolicyICE regresses only when an ICE diagnostic marker is seen.
	PolicyICE Policy = "ice"
	// PolicyNonICE regresses whenever no ICE diagnostic marker is seen.
	PolicyNonICE Policy = "non-ice"
	// PolicyNonError regresses on exit success or an ICE marker.
	PolicyNonError Policy = "non-error"
)

// needsStderrCapture reports whether p requires standard error to be
// captured for inspection rather than passed through directly, per
// spec.md §4.5: "Only policies in {non-error, ice, non-ice} require
// standard-error capture; the other two let standard error pass through
// directly to preserve interactive behavior."
func (p Policy) needsStderrCapture() bool {
	return p == PolicyNonError || p == PolicyICE || p == PolicyNonICE
}

// iceMarkers are the diagnostic substrings that mark an internal
// compiler error (spec.md §4.5).
var iceMarkers = []string{
	"internal compiler error",
	"overflowed its stack",
	"compiler unexpectedly panicked",
}

// sawICE reports whether stderr contains any ICE marker.
func sawICE(stderr []byte) bool {
	s := string(stderr)
	for _, m := range iceMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// Outcome is the test runner's verdict for one toolchain.
type Outcome int

const (
	// Baseline means the build behaved as expected (not regressed).
	Baseline Outcome = iota
	// Regressed means the build matched the configured regression policy.
	Regressed
)

func (o Outcome) String() string {
	if o == Regressed {
		return "Regressed"
	}
	return "Baseline"
}

// timeoutExitCode is the sentinel exit status a timed-out command is
// treated as having produced (spec.md §4.5), matching the coreutils
// `timeout` convention the original tool shelled out to.
const timeoutExitCode = 124

// Config configures one Run invocation.
type Config struct {
	// Script, if non-empty, is executed directly (with RUSTUP_TOOLCHAIN
	// set in its environment) instead of the default `<name> +<toolchain>`
	// builder invocation.
	Script string
	// Args are passed to Script (or, when Script is empty, appended after
	// the default builder invocation's own arguments).
	Args []string
	// BuildRoot is the parent of each toolchain's per-toolchain
	// build-output directory.
	BuildRoot string
	// PreserveTarget skips removing the per-toolchain build directory
	// before the run.
	PreserveTarget bool
	// Timeout aborts the command after the given duration, if nonzero.
	Timeout time.Duration
	Policy  Policy

	// Prompt enables interactive mark/retry mode, reading choices from
	// In and writing prompts to Out.
	Prompt bool
	In     io.Reader
	Out    io.Writer

	Stdout io.Writer
	Stderr io.Writer
}

// Run executes the build against tc and returns its classified outcome.
// The context governs the entire run, including any interactive
// retry loop.
func Run(ctx context.Context, tc toolchain.Toolchain, cfg Config) (Outcome, error) {
	buildDir := filepath.Join(cfg.BuildRoot, tc.RegistrationName())
	if !cfg.PreserveTarget {
		if err := os.RemoveAll(buildDir); err != nil {
			return Baseline, errors.Wrap(err, "clearing build directory")
		}
	}
	if err := os.MkdirAll(buildDir, 0755); err != nil {
		return Baseline, errors.Wrap(err, "creating build directory")
	}

	for {
		exitCode, stderr, err := execute(ctx, tc, buildDir, cfg)
		if err != nil {
			return Baseline, err
		}
		outcome := classify(cfg.Policy, exitCode, stderr)
		if !cfg.Prompt {
			return outcome, nil
		}
		choice, err := promptChoice(cfg, exitCode, outcome)
		if err != nil {
			return Baseline, err
		}
		switch choice {
		case choiceRegressed:
			return Regressed, nil
		case choiceBaseline:
			return Baseline, nil
		case choiceRetry:
			continue
		default: // choiceDefault: scanner hit EOF before a choice was made
			return outcome, nil
		}
	}
}

// execute runs the configured command once and returns its exit code
// and (when captured) standard error.
func execute(ctx context.Context, tc toolchain.Toolchain, buildDir string, cfg Config) (exitCode int, stderr []byte, err error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if cfg.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	var cmd *exec.Cmd
	if cfg.Script != "" {
		cmd = exec.CommandContext(runCtx, cfg.Script, cfg.Args...)
		cmd.Env = append(os.Environ(), "RUSTUP_TOOLCHAIN="+tc.RegistrationName())
	} else {
		args := append([]string{"+" + tc.RegistrationName(), "build"}, cfg.Args...)
		cmd = exec.CommandContext(runCtx, "cargo", args...)
		cmd.Env = os.Environ()
	}
	cmd.Env = append(cmd.Env, "CARGO_TARGET_DIR="+buildDir)
	cmd.Dir = cfg.BuildRoot

	var stderrBuf bytes.Buffer
	if cfg.Policy.needsStderrCapture() {
		cmd.Stderr = &stderrBuf
	} else if cfg.Stderr != nil {
		cmd.Stderr = cfg.Stderr
	} else {
		cmd.Stderr = os.Stderr
	}
	if cfg.Stdout != nil {
		cmd.Stdout = cfg.Stdout
	} else {
		cmd.Stdout = os.Stdout
	}

	runErr := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return timeoutExitCode, stderrBuf.Bytes(), nil
	}
	if runErr == nil {
		return 0, stderrBuf.Bytes(), nil
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return exitErr.ExitCode(), stderrBuf.Bytes(), nil
	}
	return 0, nil, errors.Wrap(runErr, "invoking build command")
}

// classify maps a raw execution result to an Outcome under policy
// (spec.md §4.5's table).
func classify(policy Policy, exitCode int, stderr []byte) Outcome {
	exitSuccess := exitCode == 0
	ice := sawICE(stderr)
	var regressed bool
	switch policy {
	case PolicySuccess:
		regressed = exitSuccess
	case PolicyICE:
		regressed = ice
	case PolicyNonICE:
		regressed = !ice
	case PolicyNonError:
		regressed = exitSuccess || ice
	default: // PolicyError
		regressed = !exitSuccess
	}
	if regressed {
		return Regressed
	}
	return Baseline
}

type choice int

const (
	choiceDefault choice = iota
	choiceRegressed
	choiceBaseline
	choiceRetry
)

// promptChoice implements spec.md §4.5's interactive mode: print the
// exit code, offer a three-way choice, default to the automatic
// classification on a bare Enter.
func promptChoice(cfg Config, exitCode int, automatic Outcome) (choice, error) {
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	in := cfg.In
	if in == nil {
		in = os.Stdin
	}
	fmt.Fprintf(out, "exit code: %d (automatic classification: %s)\n", exitCode, automatic)
	fmt.Fprint(out, "mark as (r)egressed, (b)aseline, or (Enter) for automatic, (t)o retry: ")
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return choiceDefault, scanner.Err()
	}
	switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
	case "r", "regressed":
		return choiceRegressed, nil
	case "b", "baseline":
		return choiceBaseline, nil
	case "t", "retry":
		return choiceRetry, nil
	default:
		if automatic == Regressed {
			return choiceRegressed, nil
		}
		return choiceBaseline, nil
	}
}
