// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/oss-bisect/bisector/internal/bisect"
	"github.com/oss-bisect/bisector/internal/config"
	"github.com/oss-bisect/bisector/internal/history"
	"github.com/oss-bisect/bisector/internal/report"
	"github.com/oss-bisect/bisector/internal/runner"
	"github.com/oss-bisect/bisector/internal/toolchain"
	"github.com/pkg/errors"
)

// fakeHistory is a minimal history.Accessor backed by an in-memory
// commit list, for tests that don't need a real git clone or REST call.
type fakeHistory struct {
	commits map[string]history.Commit
	order   []string // sha order, oldest first
}

func (f *fakeHistory) Commit(ref string) (history.Commit, error) {
	if c, ok := f.commits[ref]; ok {
		return c, nil
	}
	return history.Commit{}, history.ErrEmptyRange
}

func (f *fakeHistory) Commits(a, b string) ([]history.Commit, error) {
	var out []history.Commit
	inRange := false
	for _, sha := range f.order {
		if sha == a {
			inRange = true
		}
		if inRange {
			out = append(out, f.commits[sha])
		}
		if sha == b {
			break
		}
	}
	return out, nil
}

var _ history.Accessor = &fakeHistory{}

func tinyTarGz(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	name := "rustc-nightly-x86_64-unknown-linux-gnu/rustc/bin/rustc"
	content := "#!/bin/sh\nexit 0\n"
	if err := tw.WriteHeader(&tar.Header{Name: name, Size: int64(len(content)), Mode: 0755}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	tw.Close()
	gz.Close()
	return buf.Bytes()
}

func TestOrchestrator_BisectCommits_FindsRegressingCommit(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	shas := []string{"c0", "c1", "c2", "c3", "c4"}
	h := &fakeHistory{commits: map[string]history.Commit{}, order: shas}
	for i, sha := range shas {
		h.commits[sha] = history.Commit{SHA: sha, AuthorDate: base.AddDate(0, 0, i), Summary: "some commit " + sha}
	}

	body := tinyTarGz(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ".tar.xz") {
			http.NotFound(w, r)
			return
		}
		w.Write(body)
	}))
	defer srv.Close()

	store := toolchain.NewStore(toolchain.Params{CIPrefix: srv.URL, InstallDir: t.TempDir(), ScratchDir: t.TempDir()}, srv.Client())

	o := &Orchestrator{
		Config:  config.Default(),
		Store:   store,
		History: h,
		Client:  srv.Client(),
		Now:     func() time.Time { return base.AddDate(0, 0, 10) },
	}

	// Regression policy: "c2" and later are regressed. The test script
	// reads RUSTUP_TOOLCHAIN (which embeds the commit sha) and exits
	// nonzero for shas at or after "c2".
	opts := Options{
		HostTriple: "x86_64-unknown-linux-gnu",
		Policy:     runner.PolicyError,
		Script:     "sh",
		Args:       []string{"-c", `case "$RUSTUP_TOOLCHAIN" in *-ci-c2-*|*-ci-c3-*|*-ci-c4-*) exit 1;; *) exit 0;; esac`},
		TestDir:    t.TempDir(),
		Preserve:   true, // skip removal so the test doesn't depend on it
	}

	rep, err := o.bisectCommits(context.Background(), opts, report.Bisection{}, "c0", "c4")
	if err != nil {
		t.Fatalf("bisectCommits: %v", err)
	}
	if rep.RegressedCommit != "c2" {
		t.Errorf("RegressedCommit = %q, want c2", rep.RegressedCommit)
	}
}

func TestOrchestrator_EvaluateForWalk_SurfacesErrNoManifestOnNotFound(t *testing.T) {
	// Every tarball request 404s, so Install fails with a *toolchain.NotFoundError.
	// evaluate (used by bisect.Search) swallows that to (Unknown, nil); evaluateForWalk
	// (used by the nightly walk's slip-back-a-day retry, spec.md §4.6 step 1) must
	// instead surface errNoManifest so the retry can actually fire.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	store := toolchain.NewStore(toolchain.Params{NightlyPrefix: srv.URL, InstallDir: t.TempDir(), ScratchDir: t.TempDir()}, srv.Client())
	o := &Orchestrator{Config: config.Default(), Store: store, Client: srv.Client()}
	opts := Options{HostTriple: "x86_64-unknown-linux-gnu", Policy: runner.PolicyError, Script: "true", TestDir: t.TempDir()}
	spec := toolchain.Spec{Kind: toolchain.KindNightly, Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

	v, err := o.evaluate(context.Background(), opts, spec)
	if err != nil {
		t.Errorf("evaluate returned %v, want nil error (NotFound maps to Unknown)", err)
	}
	if v != bisect.Unknown {
		t.Errorf("evaluate = %v, want Unknown", v)
	}

	v, err = o.evaluateForWalk(context.Background(), opts, spec)
	if !errors.Is(err, errNoManifest) {
		t.Errorf("evaluateForWalk error = %v, want errNoManifest", err)
	}
	if v != bisect.Unknown {
		t.Errorf("evaluateForWalk = %v, want Unknown", v)
	}
}
