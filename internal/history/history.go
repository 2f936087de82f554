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

// Package history enumerates the merge commits on the project's main
// branch between two boundaries, abstracted over a local clone and a
// remote code-forge REST backend. Per spec.md's Design Notes, this is a
// single package with one capability interface and two concrete
// implementations in two files, rather than file-per-backend modules
// that happen to share names.
package history

import (
	"time"

	"github.com/pkg/errors"
)

// Signature identifies the author or committer of a Commit.
type Signature struct {
	Name  string
	Email string
	Date  time.Time
}

// Commit is an immutable record of one commit in the project's history.
type Commit struct {
	SHA        string
	AuthorDate time.Time
	Summary    string
	Committer  Signature
}

// ErrNonBotBoundary is returned by Commits when a requested boundary
// commit is not itself bot-authored; the bisection algorithm relies on
// first-parent traversal always landing on bot merges, so this is fatal
// rather than something Commits can route around.
var ErrNonBotBoundary = errors.New("boundary commit is not authored by the merge bot")

// ErrEmptyRange is returned by Commits when no admissible commit lies
// between the requested boundaries.
var ErrEmptyRange = errors.New("no merge commits in range")

// Accessor is the capability set spec.md §4.3 requires of a history
// backend.
type Accessor interface {
	// Commit resolves ref (a sha, branch, or tag) to the merge-base of
	// the referenced commit with the default branch, so tag references
	// land in-sequence with the rest of history.
	Commit(ref string) (Commit, error)
	// Commits returns the inclusive, chronologically ordered sequence of
	// bot-authored merge commits between a and b (each a sha).
	Commits(a, b string) ([]Commit, error)
}

// isBotAuthored reports whether c was committed by the configured bot
// user; this is the sole admission check for search-sequence membership
// (spec.md §3).
func isBotAuthored(c Commit, botCommitter string) bool {
	return c.Committer.Name == botCommitter
}
