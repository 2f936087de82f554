// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

package toolchain

import (
	"runtime"
	"strings"
)

// hostTriples maps GOOS/GOARCH to the compiler's target-triple naming,
// carried from the original implementation's `rustc -vV`-derived
// detection (`_examples/original_source`): when --host is omitted, the
// running platform's triple substitutes for a local compiler probe,
// since no toolchain is assumed installed yet.
var hostTriples = map[string]map[string]string{
	"linux": {
		"amd64": "x86_64-unknown-linux-gnu",
		"arm64": "aarch64-unknown-linux-gnu",
	},
	"darwin": {
		"amd64": "x86_64-apple-darwin",
		"arm64": "aarch64-apple-darwin",
	},
	"windows": {
		"amd64": "x86_64-pc-windows-msvc",
		"arm64": "aarch64-pc-windows-msvc",
	},
}

// DefaultHostTriple returns the compiler target triple for the running
// platform, or "" if the platform isn't in the known table.
func DefaultHostTriple() string {
	return hostTriples[runtime.GOOS][runtime.GOARCH]
}

// tarFormats lists, in attempt order, the archive extensions this host
// should request: `.xz` first, falling back to `.gz` on HTTP 404 (spec.md
// §4.4 step 6, §6). MSVC hosts skip the `.xz` attempt entirely, carried
// from the original implementation's Windows special-case (no system `xz`
// historically available to unpack it outside of the Rust-provided one).
func tarFormats(host string) []string {
	if strings.Contains(host, "windows-msvc") {
		return []string{"gz"}
	}
	return []string{"xz", "gz"}
}
