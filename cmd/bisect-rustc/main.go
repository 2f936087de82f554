// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Command bisect-rustc bisects a compiler toolchain regression between
// two nightly or commit boundaries, driving the user's own build as the
// test oracle (spec.md §6). Grounded on the teacher's `tools/ctl/ctl.go`
// root-command style: a single cobra.Command with flags bound directly
// to a Config struct, RunE returning an error cobra prints itself.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oss-bisect/bisector/internal/bounds"
	"github.com/oss-bisect/bisector/internal/config"
	"github.com/oss-bisect/bisector/internal/ghapi"
	"github.com/oss-bisect/bisector/internal/history"
	"github.com/oss-bisect/bisector/internal/httpx"
	"github.com/oss-bisect/bisector/internal/orchestrator"
	"github.com/oss-bisect/bisector/internal/report"
	"github.com/oss-bisect/bisector/internal/runner"
	"github.com/oss-bisect/bisector/internal/toolchain"
	"github.com/oss-bisect/bisector/internal/uri"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
)

// exitCoder lets an internal error request a specific process exit
// status, for test-harness integration (spec.md §6 "Exit codes").
type exitCoder interface {
	error
	ExitCode() int
}

type exitError struct {
	cause error
	code  int
}

func (e *exitError) Error() string { return e.cause.Error() }
func (e *exitError) Unwrap() error { return e.cause }
func (e *exitError) ExitCode() int { return e.code }

// withExitCode wraps err so main reports the given process exit status
// instead of the default domain-error status of 1.
func withExitCode(err error, code int) error {
	if err == nil {
		return nil
	}
	return &exitError{cause: err, code: code}
}

// flags mirrors spec.md §6's recognized flag set.
type flags struct {
	start, end string
	byCommit   bool
	regress    string
	alt        bool
	host       string
	target     string
	preserve   bool
	preserveTarget bool
	withSrc    bool
	withDev    bool
	components []string
	testDir    string
	prompt     bool
	timeout    int
	script     string
	withoutCargo bool
	access     string
	install    string
	forceInstall bool
	noVerifyNightly bool
	noVerifyCI bool
	termOld, termNew string
	verbosity  int
	checkpoint string
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		report.WriteError(os.Stderr, err)
		code := 1
		var ec exitCoder
		if errors.As(err, &ec) {
			code = ec.ExitCode()
		}
		os.Exit(code)
	}
}

func run(args []string) error {
	f := &flags{}
	cmd := newRootCommand(f)
	cmd.SetArgs(args)
	return cmd.Execute()
}

func newRootCommand(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "bisect-rustc",
		Short:         "Bisect a compiler toolchain regression against your own build",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeBisection(cmd.Context(), f, os.Args, args)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.start, "start", "", "left (good) boundary; absent means infer")
	fl.StringVar(&f.end, "end", "", "right (bad) boundary; absent means newest nightly")
	fl.BoolVar(&f.byCommit, "by-commit", false, "promote date bounds to commit bounds before bisecting")
	fl.StringVar(&f.regress, "regress", "error", "regression policy: error, success, ice, non-ice, non-error")
	fl.BoolVar(&f.alt, "alt", false, "select the alternate CI build profile")
	fl.StringVar(&f.host, "host", toolchain.DefaultHostTriple(), "host target triple")
	fl.StringVar(&f.target, "target", "", "additional std target triple")
	fl.BoolVar(&f.preserve, "preserve", false, "do not uninstall toolchains after test")
	fl.BoolVar(&f.preserveTarget, "preserve-target", false, "do not wipe the per-toolchain build-output directory")
	fl.BoolVar(&f.withSrc, "with-src", false, "install the rust-src component")
	fl.BoolVar(&f.withDev, "with-dev", false, "install the rustc-dev and llvm-tools components")
	fl.StringArrayVar(&f.components, "component", nil, "additional component to install (repeatable)")
	fl.StringVar(&f.testDir, "test-dir", ".", "project directory to build")
	fl.BoolVar(&f.prompt, "prompt", false, "interactive mark/retry mode")
	fl.IntVar(&f.timeout, "timeout", 0, "seconds to allow the test to run before treating it as regressed")
	fl.StringVar(&f.script, "script", "", "replace the default build command with a script")
	fl.BoolVar(&f.withoutCargo, "without-cargo", false, "do not download the build-driver component")
	fl.StringVar(&f.access, "access", "checkout", "history backend: checkout or github")
	fl.StringVar(&f.install, "install", "", "install this toolchain and exit, without bisecting")
	fl.BoolVar(&f.forceInstall, "force-install", false, "remove any existing installation first")
	fl.BoolVar(&f.noVerifyNightly, "no-verify-nightly", false, "skip nightly endpoint verification")
	fl.BoolVar(&f.noVerifyCI, "no-verify-ci", false, "skip commit endpoint verification")
	fl.StringVar(&f.termOld, "term-old", "", "custom label for the old/good state")
	fl.StringVar(&f.termNew, "term-new", "", "custom label for the new/bad state")
	fl.CountVarP(&f.verbosity, "verbose", "v", "increase verbosity (repeatable)")
	fl.StringVar(&f.checkpoint, "checkpoint", "", "save/resume the nightly phase's result at this path")
	return cmd
}

// multiplexerHome resolves the toolchain multiplexer's home directory,
// from the RUSTUP_HOME environment variable or the platform default
// (spec.md §6 "the multiplexer's home directory variable").
func multiplexerHome() string {
	if v := os.Getenv("RUSTUP_HOME"); v != "" {
		return v
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".rustup")
}

func buildHTTPClient(cfg config.Config) httpx.BasicClient {
	var base httpx.BasicClient = http.DefaultClient
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		base = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	return &httpx.WithUserAgent{BasicClient: base, UserAgent: cfg.UserAgent}
}

func executeBisection(ctx context.Context, f *flags, argv []string, testArgs []string) error {
	cfg := config.Default()
	client := buildHTTPClient(cfg)
	home := multiplexerHome()

	store := toolchain.NewStore(toolchain.Params{
		NightlyPrefix: cfg.NightlyServer,
		CIPrefix:      cfg.CIServer,
		CIPrefixAlt:   cfg.CIServerAlt,
		InstallDir:    filepath.Join(home, "toolchains"),
		ScratchDir:    filepath.Join(home, "tmp"),
		Components:    extraComponents(f),
		Force:         f.forceInstall,
	}, client)

	if f.install != "" {
		return runInstallOnly(ctx, f, store)
	}

	policy := runner.Policy(f.regress)

	gh := ghapi.NewClient(cfg.APIBase, cfg.RepoOwner, cfg.RepoName, os.Getenv("GITHUB_TOKEN"), cfg.UserAgent)
	historyAccessor, err := buildHistoryAccessor(ctx, f, cfg, gh)
	if err != nil {
		return errors.Wrap(err, "setting up history access")
	}

	resolver := &orchestrator.Resolver{
		Ctx:           ctx,
		History:       historyAccessor,
		Client:        client,
		NightlyServer: cfg.NightlyServer,
	}

	o := &orchestrator.Orchestrator{
		Config:  cfg,
		Store:   store,
		History: historyAccessor,
		GH:      gh,
		Client:  client,
	}

	opts := orchestrator.Options{
		ByCommit:        f.byCommit,
		HostTriple:      hostTriple(f),
		StdTargets:      targetList(f),
		Alt:             f.alt,
		Policy:          policy,
		Script:          f.script,
		Args:            testArgs,
		TestDir:         f.testDir,
		Prompt:          f.prompt,
		Timeout:         time.Duration(f.timeout) * time.Second,
		PreserveTarget:  f.preserveTarget,
		Preserve:        f.preserve,
		NoVerifyNightly: f.noVerifyNightly,
		NoVerifyCI:      f.noVerifyCI,
		TermOld:         f.termOld,
		TermNew:         f.termNew,
		Invocation:      strings.Join(append([]string{"bisect-rustc"}, argv...), " "),
		CheckpointPath:  f.checkpoint,
	}
	if b, err := parseOptionalBound(f.start); err != nil {
		return withExitCode(err, 1)
	} else {
		opts.Start = b
	}
	if b, err := parseOptionalBound(f.end); err != nil {
		return withExitCode(err, 1)
	} else {
		opts.End = b
	}

	rep, err := o.Bisect(ctx, resolver, opts)
	if err != nil {
		return withExitCode(err, 1)
	}
	report.WriteSuccess(os.Stdout, rep)
	return nil
}

func runInstallOnly(ctx context.Context, f *flags, store *toolchain.Store) error {
	b, err := parseOptionalBound(f.install)
	if err != nil || b == nil {
		return errors.New("--install requires a date or commit boundary")
	}
	var spec toolchain.Spec
	if b.Kind == bounds.KindDate {
		spec = toolchain.Spec{Kind: toolchain.KindNightly, Date: b.Date, Alt: f.alt}
	} else {
		spec = toolchain.Spec{Kind: toolchain.KindCI, Commit: b.Value, Alt: f.alt}
	}
	tc := toolchain.NewToolchain(spec, hostTriple(f), targetList(f))
	if err := store.Install(ctx, tc); err != nil {
		return withExitCode(err, 1)
	}
	fmt.Printf("installed %s\n", tc.RegistrationName())
	return nil
}

func buildHistoryAccessor(ctx context.Context, f *flags, cfg config.Config, gh *ghapi.Client) (history.Accessor, error) {
	if f.access == "github" {
		return history.NewRemoteAccessor(gh, cfg.BotCommitter, "master"), nil
	}
	clonePath := os.Getenv("BISECT_RUSTC_SOURCE")
	if clonePath == "" {
		clonePath = "./rust.git"
	}
	repoURL := fmt.Sprintf("github.com/%s/%s", cfg.RepoOwner, cfg.RepoName)
	canonical, err := uri.CanonicalizeRepoURI(repoURL)
	if err != nil {
		return nil, errors.Wrapf(err, "canonicalizing repo %q", repoURL)
	}
	return history.OpenLocalAccessor(ctx, canonical+".git", clonePath, cfg.BotCommitter, "master")
}

func hostTriple(f *flags) string {
	if f.host != "" {
		return f.host
	}
	return toolchain.DefaultHostTriple()
}

func targetList(f *flags) []string {
	if f.target == "" {
		return nil
	}
	return []string{f.target}
}

func extraComponents(f *flags) []string {
	var c []string
	if !f.withoutCargo {
		c = append(c, "cargo")
	}
	if f.withSrc {
		c = append(c, "rust-src")
	}
	if f.withDev {
		c = append(c, "rustc-dev", "llvm-tools")
	}
	return append(c, f.components...)
}

// parseOptionalBound parses s as a bounds.Bound, trying a calendar date
// first and falling back to a free-form commit/tag identifier. Returns
// nil, nil when s is empty (the boundary is unset).
func parseOptionalBound(s string) (*bounds.Bound, error) {
	if s == "" {
		return nil, nil
	}
	if b, err := bounds.ParseDate(s); err == nil {
		return &b, nil
	}
	b := bounds.ParseCommit(s)
	return &b, nil
}
