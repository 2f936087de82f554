// Copyright 2024 The OSS Rebuild Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config collects the immutable, process-wide values the rest of
// the bisector depends on: server prefixes, the CI retention window, and
// the epoch commit. Server prefixes and identifiers live in a Config that
// callers build and pass down explicitly; the retention window, epoch
// date and epoch commit are package-level values that nothing modifies.
package config

import "time"

// RetentionWindow is how long CI build artifacts remain fetchable from the
// object store before they are reaped. Hard-coded to match current CI
// policy; re-tune here if that policy changes.
const RetentionWindow = 167 * 24 * time.Hour

// EpochDate is the first date for which nightly manifests exist.
var EpochDate = time.Date(2015, time.October, 20, 0, 0, 0, 0, time.UTC)

// EpochCommit is the oldest commit for which CI artifacts were ever
// published. Used as the default start when the user requests a
// commit-domain search with no usable start boundary.
const EpochCommit = "927c55d86b0be44337f37cf5b8b22b6dc7e8f775"

// Config aggregates the URLs and identifiers the toolchain store, history
// accessor, and orchestrator need. It is built once by the CLI entrypoint
// and threaded through explicitly.
type Config struct {
	// NightlyServer is the base URL hosting dated nightly manifests and
	// tarballs, e.g. "https://static.rust-lang.org/dist".
	NightlyServer string
	// CIServer is the base URL hosting per-commit CI tarballs, e.g.
	// "https://rust-lang-ci2-artifacts.s3.amazonaws.com/rustc-builds".
	CIServer string
	// CIServerAlt is the alternate-profile counterpart of CIServer, used
	// when ToolchainSpec.Alt is set.
	CIServerAlt string
	// RepoOwner/RepoName identify the project on the code forge.
	RepoOwner string
	RepoName  string
	// APIBase is the code forge's REST API base URL.
	APIBase string
	// WebBase is the code forge's human-facing web base URL, used for
	// links shown in reports (e.g. commit compare views).
	WebBase string
	// UserAgent is sent with every outbound HTTP request.
	UserAgent string
	// BotCommitter is the committer name that marks a commit as an
	// admissible, CI-built merge commit.
	BotCommitter string
	// TimerBotLogin is the user whose PR comments carry perf-build tables.
	TimerBotLogin string
}

// Default returns the Config used when the user supplies no overrides.
func Default() Config {
	return Config{
		NightlyServer: "https://static.rust-lang.org/dist",
		CIServer:      "https://rust-lang-ci2-artifacts.s3.amazonaws.com/rustc-builds",
		CIServerAlt:   "https://rust-lang-ci2-artifacts.s3.amazonaws.com/rustc-builds-alt",
		RepoOwner:     "rust-lang",
		RepoName:      "rust",
		APIBase:       "https://api.github.com",
		WebBase:       "https://github.com",
		UserAgent:     "bisect-rustc/0.1",
		BotCommitter:  "bors",
		TimerBotLogin: "rust-timer",
	}
}
