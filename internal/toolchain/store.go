// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

package toolchain

import (
	"context"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/google/uuid"
	"github.com/oss-bisect/bisector/internal/httpx"
	"github.com/pkg/errors"
)

// Params is the per-phase download configuration (spec.md §3
// "DownloadParams"): immutable for the duration of a phase.
type Params struct {
	// NightlyPrefix is the nightly server base URL, used for
	// Spec.Kind == KindNightly.
	NightlyPrefix string
	// CIPrefix is the CI object-store base URL, used for
	// Spec.Kind == KindCI with Spec.Alt == false.
	CIPrefix string
	// CIPrefixAlt is the alternate-profile counterpart of CIPrefix,
	// used for Spec.Kind == KindCI with Spec.Alt == true (spec.md §6
	// "Artifact URLs").
	CIPrefixAlt string
	// InstallDir is the multiplexer's toolchains directory.
	InstallDir string
	// ScratchDir is the multiplexer's temp root — not the OS temp root,
	// so the final rename is a same-filesystem move.
	ScratchDir string
	// Components are requested in addition to "rustc" for every install.
	Components []string
	// Force re-installs over an existing directory.
	Force bool
}

// prefixFor selects the download base URL for spec's kind and profile
// (spec.md §6 "Artifact URLs": a fixed nightly server for nightlies, a
// fixed CI object-store URL — optionally with "-alt" — for CI builds).
func (p Params) prefixFor(spec Spec) string {
	if spec.Kind == KindCI {
		if spec.Alt {
			return p.CIPrefixAlt
		}
		return p.CIPrefix
	}
	return p.NightlyPrefix
}

// ActiveNightly reports the date of the nightly the multiplexer
// currently has registered as active, if any. Installing that exact
// nightly is satisfied by an alias rather than a download (spec.md §4.4
// step 4).
type ActiveNightly func() (date string, sysroot string, ok bool)

// Store is the toolchain lifecycle manager (spec.md §4.4).
type Store struct {
	Params Params
	Client httpx.BasicClient
	Active ActiveNightly
	// Progress enables a per-component download progress bar.
	Progress bool
}

// NewStore returns a Store configured for one phase.
func NewStore(params Params, client httpx.BasicClient) *Store {
	return &Store{Params: params, Client: client}
}

// Install realizes tc on disk, idempotently (spec.md §4.4 Install
// protocol).
func (s *Store) Install(ctx context.Context, tc Toolchain) error {
	name := tc.RegistrationName()
	target := filepath.Join(s.Params.InstallDir, name)

	if s.Params.Force {
		os.RemoveAll(target) // tolerate failure
	}
	if _, err := os.Stat(target); err == nil {
		return nil // idempotent: already installed
	}

	if s.Active != nil && tc.Spec.Kind == KindNightly {
		if date, sysroot, ok := s.Active(); ok && date == tc.Spec.Date.Format("2006-01-02") {
			return s.registerAlias(target, sysroot)
		}
	}

	scratch := filepath.Join(s.Params.ScratchDir, uuid.New().String())
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return &ScratchError{Cause: err}
	}
	defer os.RemoveAll(scratch)
	scratchFS := osfs.New(scratch)

	components := append([]string{"rustc"}, s.Params.Components...)
	for _, component := range components {
		for _, stdTarget := range append([]string{tc.HostTriple}, tc.StdTargets...) {
			body, err := fetchComponent(ctx, s.Client, s.Params.prefixFor(tc.Spec), tc.Spec.location(), component, stdTarget, tc.HostTriple, tc.Spec, s.Progress)
			if err != nil {
				return err
			}
			extractErr := extractComponent(body, scratchFS, component, stdTarget)
			body.Close()
			if extractErr != nil {
				return extractErr
			}
		}
	}

	if err := os.Rename(scratch, target); err != nil {
		return &MoveError{Cause: err}
	}
	return nil
}

// registerAlias points target at the multiplexer's already-installed
// sysroot rather than downloading a duplicate (spec.md §4.4 step 4).
func (s *Store) registerAlias(target, sysroot string) error {
	if err := os.Symlink(sysroot, target); err != nil {
		return &SubcommandError{Cmd: "symlink", Cause: err}
	}
	return nil
}

// Remove tears down an installation (spec.md §4.4 Removal protocol).
// It refuses to touch any directory whose registration name does not
// begin with RegistrationPrefix (Testable Property 5 depends on every
// name this package produces satisfying that; Remove additionally
// enforces it as a safety net against caller error).
func (s *Store) Remove(tc Toolchain) error {
	name := tc.RegistrationName()
	if !IsBisectorOwned(name) {
		return errors.Errorf("refusing to remove directory not owned by this tool: %s", name)
	}
	target := filepath.Join(s.Params.InstallDir, name)
	info, err := os.Lstat(target)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "stating installation")
	}
	if info.Mode()&os.ModeSymlink != 0 {
		// A link into the user's own toolchain: remove the link, not its target.
		return os.Remove(target)
	}
	return os.RemoveAll(target)
}
