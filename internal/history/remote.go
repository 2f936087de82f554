// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"time"

	"github.com/oss-bisect/bisector/internal/ghapi"
	"github.com/pkg/errors"
)

// RemoteAccessor implements Accessor against the code-forge REST API,
// paginating forward in time (spec.md §4.3 "remote REST backend").
// Grounded on internal/ghapi, which itself layers on internal/httpx's
// BasicClient chain.
type RemoteAccessor struct {
	client       *ghapi.Client
	botCommitter string
	defaultRef   string
}

// NewRemoteAccessor returns an Accessor backed by client.
func NewRemoteAccessor(client *ghapi.Client, botCommitter, defaultRef string) *RemoteAccessor {
	return &RemoteAccessor{client: client, botCommitter: botCommitter, defaultRef: defaultRef}
}

var _ Accessor = &RemoteAccessor{}

// Commit resolves ref to the merge-base of the referenced commit with the
// default branch.
func (a *RemoteAccessor) Commit(ref string) (Commit, error) {
	c, err := a.client.MergeBase(a.defaultRef, ref)
	if err != nil {
		return Commit{}, errors.Wrapf(err, "resolving merge base of %q", ref)
	}
	return fromAPI(c), nil
}

// Commits returns the inclusive, chronologically ordered sequence of
// bot-authored merge commits between from and to.
func (a *RemoteAccessor) Commits(from, to string) ([]Commit, error) {
	fromCommit, err := a.client.Commit(from)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %q", from)
	}
	toCommit, err := a.client.Commit(to)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %q", to)
	}
	apiCommits, err := a.client.ListCommits(a.defaultRef, fromCommit.Commit.Author.Date, toCommit.Commit.Author.Date.Add(time.Second))
	if err != nil {
		return nil, errors.Wrap(err, "listing commits")
	}
	// The REST API returns most-recent-first; the search sequence must be
	// chronological (spec.md §5 ordering guarantee).
	out := make([]Commit, len(apiCommits))
	for i, c := range apiCommits {
		out[len(apiCommits)-1-i] = fromAPI(c)
	}
	if len(out) == 0 {
		return nil, ErrEmptyRange
	}
	if !isBotAuthored(out[0], a.botCommitter) {
		return nil, errors.Wrapf(ErrNonBotBoundary, "commit %s", out[0].SHA)
	}
	if !isBotAuthored(out[len(out)-1], a.botCommitter) {
		return nil, errors.Wrapf(ErrNonBotBoundary, "commit %s", out[len(out)-1].SHA)
	}
	var admissible []Commit
	for _, c := range out {
		if isBotAuthored(c, a.botCommitter) {
			admissible = append(admissible, c)
		}
	}
	return admissible, nil
}

func fromAPI(c ghapi.Commit) Commit {
	return Commit{
		SHA:        c.SHA,
		AuthorDate: c.Commit.Author.Date,
		Summary:    firstLine(c.Commit.Message),
		Committer: Signature{
			Name:  c.Commit.Committer.Name,
			Email: c.Commit.Committer.Email,
			Date:  c.Commit.Committer.Date,
		},
	}
}
