// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/oss-bisect/bisector/internal/toolchain"
)

func testToolchain() toolchain.Toolchain {
	return toolchain.NewToolchain(toolchain.Spec{Kind: toolchain.KindCI, Commit: "abc123"}, "x86_64-unknown-linux-gnu", nil)
}

func TestRun_PolicyErrorRegressesOnExitFailure(t *testing.T) {
	var stdout, stderr bytes.Buffer
	cfg := Config{
		Script: "false",
		BuildRoot: t.TempDir(),
		Policy:  PolicyError,
		Stdout:  &stdout,
		Stderr:  &stderr,
	}
	outcome, err := Run(context.Background(), testToolchain(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome != Regressed {
		t.Errorf("outcome = %v, want Regressed", outcome)
	}
}

func TestRun_PolicySuccessRegressesOnExitSuccess(t *testing.T) {
	cfg := Config{
		Script:    "true",
		BuildRoot: t.TempDir(),
		Policy:    PolicySuccess,
	}
	outcome, err := Run(context.Background(), testToolchain(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome != Regressed {
		t.Errorf("outcome = %v, want Regressed", outcome)
	}
}

func TestClassify_AllPolicies(t *testing.T) {
	iceStderr := []byte("thread 'rustc' panicked: internal compiler error: foo")
	cleanStderr := []byte("warning: unused variable")

	cases := []struct {
		policy    Policy
		exitCode  int
		stderr    []byte
		wantRegr  bool
	}{
		{PolicyError, 1, cleanStderr, true},
		{PolicyError, 0, cleanStderr, false},
		{PolicySuccess, 0, cleanStderr, true},
		{PolicySuccess, 1, cleanStderr, false},
		{PolicyICE, 0, iceStderr, true},
		{PolicyICE, 0, cleanStderr, false},
		{PolicyNonICE, 0, cleanStderr, true},
		{PolicyNonICE, 0, iceStderr, false},
		{PolicyNonError, 0, cleanStderr, true},
		{PolicyNonError, 1, iceStderr, true},
		{PolicyNonError, 1, cleanStderr, false},
	}
	for _, c := range cases {
		got := classify(c.policy, c.exitCode, c.stderr)
		want := Baseline
		if c.wantRegr {
			want = Regressed
		}
		if got != want {
			t.Errorf("classify(%s, %d, %q) = %v, want %v", c.policy, c.exitCode, c.stderr, got, want)
		}
	}
}

func TestRun_BuildsInBuildRootNotThePerToolchainDir(t *testing.T) {
	// spec.md §4.5: the build must run in the project directory
	// (BuildRoot), not the per-toolchain build-output directory that
	// was just wiped and contains no project files.
	buildRoot := t.TempDir()
	script := filepath.Join(t.TempDir(), "pwd.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\npwd\n"), 0755); err != nil {
		t.Fatal(err)
	}
	var stdout bytes.Buffer
	cfg := Config{
		Script:    script,
		BuildRoot: buildRoot,
		Policy:    PolicyError,
		Stdout:    &stdout,
	}
	if _, err := Run(context.Background(), testToolchain(), cfg); err != nil {
		t.Fatalf("Run: %v", err)
	}
	wantDir, err := filepath.EvalSymlinks(buildRoot)
	if err != nil {
		t.Fatal(err)
	}
	gotDir, err := filepath.EvalSymlinks(strings.TrimSpace(stdout.String()))
	if err != nil {
		t.Fatalf("resolving reported cwd %q: %v", stdout.String(), err)
	}
	if gotDir != wantDir {
		t.Errorf("build ran in %q, want BuildRoot %q", gotDir, wantDir)
	}
}

func TestRun_TimeoutClassifiesAsRegressedUnderErrorPolicy(t *testing.T) {
	cfg := Config{
		Script:    "sleep",
		Args:      []string{"5"},
		BuildRoot: t.TempDir(),
		Policy:    PolicyError,
		Timeout:   10 * time.Millisecond,
	}
	tc := testToolchain()
	outcome, err := Run(context.Background(), tc, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome != Regressed {
		t.Errorf("outcome = %v, want Regressed (timeout)", outcome)
	}
}

func TestPromptChoice_DefaultsToAutomaticOnEnter(t *testing.T) {
	var out bytes.Buffer
	cfg := Config{In: strings.NewReader("\n"), Out: &out}
	got, err := promptChoice(cfg, 1, Regressed)
	if err != nil {
		t.Fatalf("promptChoice: %v", err)
	}
	if got != choiceRegressed {
		t.Errorf("promptChoice = %v, want choiceRegressed (automatic default)", got)
	}
}

func TestPromptChoice_ExplicitOverride(t *testing.T) {
	var out bytes.Buffer
	cfg := Config{In: strings.NewReader("b\n"), Out: &out}
	got, err := promptChoice(cfg, 0, Regressed)
	if err != nil {
		t.Fatalf("promptChoice: %v", err)
	}
	if got != choiceBaseline {
		t.Errorf("promptChoice = %v, want choiceBaseline (explicit override)", got)
	}
}
