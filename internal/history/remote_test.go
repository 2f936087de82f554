// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/oss-bisect/bisector/internal/ghapi"
)

func apiCommit(sha, committer string, date time.Time, message string) ghapi.Commit {
	var c ghapi.Commit
	c.SHA = sha
	c.Commit.Message = message
	c.Commit.Author.Date = date
	c.Commit.Committer.Name = committer
	c.Commit.Committer.Date = date
	return c
}

func TestRemoteAccessor_Commits_ReversesToChronological(t *testing.T) {
	d0 := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	d1 := time.Date(2021, 1, 2, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2021, 1, 3, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/repos/rust-lang/rust/commits/a":
			json.NewEncoder(w).Encode(apiCommit("a", "bors", d0, "Auto merge of #1"))
		case r.URL.Path == "/repos/rust-lang/rust/commits/c":
			json.NewEncoder(w).Encode(apiCommit("c", "bors", d2, "Auto merge of #3"))
		default:
			// most-recent-first, as the real API returns
			json.NewEncoder(w).Encode([]ghapi.Commit{
				apiCommit("c", "bors", d2, "Auto merge of #3"),
				apiCommit("b", "bors", d1, "Auto merge of #2"),
				apiCommit("a", "bors", d0, "Auto merge of #1"),
			})
		}
	}))
	defer srv.Close()

	client := ghapi.NewClient(srv.URL, "rust-lang", "rust", "", "bisect-rustc/0.1")
	a := NewRemoteAccessor(client, "bors", "master")
	commits, err := a.Commits("a", "c")
	if err != nil {
		t.Fatalf("Commits() error = %v", err)
	}
	if len(commits) != 3 || commits[0].SHA != "a" || commits[2].SHA != "c" {
		t.Errorf("Commits() = %+v, want chronological a,b,c", commits)
	}
}
