// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package toolchain downloads, unpacks, registers, and removes compiler
// toolchains: the lifecycle manager of spec.md §4.4.
package toolchain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Kind distinguishes the two ToolchainSpec variants.
type Kind int

const (
	// KindNightly identifies a dated release in the nightly channel.
	KindNightly Kind = iota
	// KindCI identifies a CI-produced artifact keyed by commit sha.
	KindCI
)

// Spec is a tagged variant identifying a release to install (spec.md
// §3 "ToolchainSpec").
type Spec struct {
	Kind Kind
	// Date is valid when Kind == KindNightly.
	Date time.Time
	// Commit is valid when Kind == KindCI.
	Commit string
	// Alt selects the alternate CI build profile when Kind == KindCI.
	Alt bool
}

// location is the URL path component identifying this spec's artifacts:
// the formatted date for nightlies, the commit sha for CI builds.
func (s Spec) location() string {
	if s.Kind == KindNightly {
		return s.Date.Format("2006-01-02")
	}
	return s.Commit
}

// Toolchain is a ToolchainSpec plus the platform it targets (spec.md §3).
type Toolchain struct {
	Spec       Spec
	HostTriple string
	StdTargets []string
}

// NewToolchain returns a Toolchain with StdTargets deduplicated and
// sorted, so that equal Toolchains always produce identical
// registration names (spec.md §3).
func NewToolchain(spec Spec, host string, stdTargets []string) Toolchain {
	targets := slices.Clone(stdTargets)
	slices.Sort(targets)
	targets = slices.Compact(targets)
	return Toolchain{Spec: spec, HostTriple: host, StdTargets: targets}
}

// RegistrationName returns the deterministic string by which the
// external toolchain multiplexer addresses this installation. The
// "bisector-" prefix is load-bearing: Remove refuses to delete any
// directory whose name does not begin with it.
func (t Toolchain) RegistrationName() string {
	if t.Spec.Kind == KindNightly {
		return fmt.Sprintf("bisector-nightly-%s-%s", t.Spec.Date.Format("2006-01-02"), t.HostTriple)
	}
	suffix := ""
	if t.Spec.Alt {
		suffix = "-alt"
	}
	return fmt.Sprintf("bisector-ci-%s%s-%s", t.Spec.Commit, suffix, t.HostTriple)
}

// RegistrationPrefix is the invariant prefix every registration name
// carries (spec.md §3, Testable Property 5).
const RegistrationPrefix = "bisector-"

// IsBisectorOwned reports whether name begins with RegistrationPrefix.
func IsBisectorOwned(name string) bool {
	return strings.HasPrefix(name, RegistrationPrefix)
}
