// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package ghapi is a minimal client for the parts of the code-forge JSON
// REST API the bisector needs: commit lookup (for the remote history
// backend) and pull-request comment listing (for the perf-build
// refinement). It layers on internal/httpx's BasicClient chain rather
// than rolling its own transport.
package ghapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/oss-bisect/bisector/internal/httpx"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// Client talks to one repository's REST API surface.
type Client struct {
	base   string
	owner  string
	repo   string
	client httpx.BasicClient
}

// NewClient builds a Client for owner/repo against apiBase (e.g.
// "https://api.github.com"). If token is non-empty it is attached as a
// bearer credential to every request; userAgent is sent verbatim.
func NewClient(apiBase, owner, repo, token, userAgent string) *Client {
	var base httpx.BasicClient = http.DefaultClient
	if token != "" {
		base = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	return &Client{
		base:   apiBase,
		owner:  owner,
		repo:   repo,
		client: &httpx.WithUserAgent{BasicClient: base, UserAgent: userAgent},
	}
}

// Signature is a commit author/committer identity as reported by the API.
type Signature struct {
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Date  time.Time `json:"date"`
}

// Commit is the subset of the REST commit resource the bisector needs.
type Commit struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message   string    `json:"message"`
		Author    Signature `json:"author"`
		Committer Signature `json:"committer"`
	} `json:"commit"`
	Parents []struct {
		SHA string `json:"sha"`
	} `json:"parents"`
}

func (c *Client) get(path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "sending request")
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("unexpected status %s for %s", resp.Status, path)
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "decoding response")
}

// ErrNotFound is returned when the requested resource does not exist.
var ErrNotFound = errors.New("resource not found")

// Commit fetches a single commit by sha, branch, or tag.
func (c *Client) Commit(ref string) (Commit, error) {
	var out Commit
	err := c.get(fmt.Sprintf("/repos/%s/%s/commits/%s", c.owner, c.repo, ref), &out)
	return out, err
}

// MergeBase returns the merge-base commit of ref with the default branch,
// via the compare API ("base...head" with base as the default branch).
func (c *Client) MergeBase(defaultBranch, ref string) (Commit, error) {
	var out struct {
		MergeBaseCommit Commit `json:"merge_base_commit"`
	}
	err := c.get(fmt.Sprintf("/repos/%s/%s/compare/%s...%s", c.owner, c.repo, defaultBranch, ref), &out)
	return out.MergeBaseCommit, err
}

// ListCommits returns the commits on branch between since and until
// (inclusive), most-recent-first, as returned by the API directly —
// callers that need chronological order should reverse the result.
func (c *Client) ListCommits(branch string, since, until time.Time) ([]Commit, error) {
	var all []Commit
	page := 1
	for {
		var out []Commit
		path := fmt.Sprintf("/repos/%s/%s/commits?sha=%s&since=%s&until=%s&per_page=100&page=%d",
			c.owner, c.repo, branch, since.Format(time.RFC3339), until.Format(time.RFC3339), page)
		if err := c.get(path, &out); err != nil {
			return nil, err
		}
		if len(out) == 0 {
			break
		}
		all = append(all, out...)
		if len(out) < 100 {
			break
		}
		page++
	}
	return all, nil
}

// Comment is a single issue/PR discussion comment.
type Comment struct {
	User struct {
		Login string `json:"login"`
	} `json:"user"`
	Body string `json:"body"`
}

// Comments fetches every comment on the numbered pull request (PRs share
// the issue comment endpoint on the code forge).
func (c *Client) Comments(pr int) ([]Comment, error) {
	var all []Comment
	page := 1
	for {
		var out []Comment
		path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments?per_page=100&page=%d", c.owner, c.repo, pr, page)
		if err := c.get(path, &out); err != nil {
			return nil, err
		}
		if len(out) == 0 {
			break
		}
		all = append(all, out...)
		if len(out) < 100 {
			break
		}
		page++
	}
	return all, nil
}
