// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package historytest builds small in-memory git repositories from a YAML
// description, for exercising the history accessor's first-parent /
// bot-author admission logic without a network or a real clone.
package historytest

import (
	"bytes"
	"io"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// FileContent maps a repo-relative path to the content to write there.
type FileContent map[string]string

// Commit describes one commit to synthesize. Committer defaults to
// Author when unset, matching how a non-bot author's local commit would
// look; set it explicitly to simulate a bot-authored merge.
type Commit struct {
	ID        string      `yaml:"id"`
	Message   string      `yaml:"message"`
	Author    string      `yaml:"author,omitempty"`
	Committer string      `yaml:"committer,omitempty"`
	Parent    string      `yaml:"parent,omitempty"`
	Parents   []string    `yaml:"parents,omitempty"`
	Branch    string      `yaml:"branch,omitempty"`
	Tag       string      `yaml:"tag,omitempty"`
	Files     FileContent `yaml:"files"`
}

// GitHistory is the top-level YAML document shape.
type GitHistory struct {
	Commits []Commit `yaml:"commits"`
}

// Repository wraps a synthesized repo and a lookup from the YAML-level
// commit ID to its resulting hash.
type Repository struct {
	*git.Repository
	Commits map[string]plumbing.Hash
}

// RepositoryOptions overrides the storage backing a synthesized repo;
// nil fields default to in-memory storage.
type RepositoryOptions struct {
	Storer   storage.Storer
	Worktree billy.Filesystem
}

// CreateRepoFromYAML parses content as a GitHistory document and builds
// the repository it describes.
func CreateRepoFromYAML(content string, opts *RepositoryOptions) (*Repository, error) {
	var history GitHistory
	d := yaml.NewDecoder(bytes.NewReader([]byte(content)))
	d.KnownFields(true)
	if err := d.Decode(&history); err != nil {
		return nil, errors.Wrap(err, "decoding repo spec")
	}
	return CreateRepo(history.Commits, opts)
}

// CreateRepo builds a repository from an explicit commit list, in
// first-to-last order; a commit may reference an earlier one (by its
// YAML ID) as its parent.
func CreateRepo(commits []Commit, opts *RepositoryOptions) (*Repository, error) {
	var repo Repository
	var err error
	var s storage.Storer
	if opts != nil && opts.Storer != nil {
		s = opts.Storer
	} else {
		s = memory.NewStorage()
	}
	var wfs billy.Filesystem
	if opts != nil && opts.Worktree != nil {
		wfs = opts.Worktree
	} else {
		wfs = memfs.New()
	}
	repo.Repository, err = git.Init(s, wfs)
	if err != nil {
		return nil, errors.Wrap(err, "initializing repo")
	}
	w, err := repo.Worktree()
	if err != nil {
		return nil, errors.Wrap(err, "accessing worktree")
	}
	repo.Commits = make(map[string]plumbing.Hash)
	for _, c := range commits {
		if err := createFiles(w, c.Files); err != nil {
			return nil, errors.Wrap(err, "creating files")
		}
		var parents []plumbing.Hash
		if len(c.Parents) > 0 {
			for _, id := range c.Parents {
				parents = append(parents, repo.Commits[id])
			}
		} else if c.Parent != "" {
			parents = append(parents, repo.Commits[c.Parent])
		}
		author := "Place Holder"
		if c.Author != "" {
			author = c.Author
		}
		committer := author
		if c.Committer != "" {
			committer = c.Committer
		}
		hash, err := w.Commit(c.Message, &git.CommitOptions{
			Author:            &object.Signature{Name: author},
			Committer:         &object.Signature{Name: committer},
			AllowEmptyCommits: true,
			Parents:           parents,
		})
		if err != nil {
			return nil, errors.Wrap(err, "committing")
		}
		repo.Commits[c.ID] = hash
		if c.Branch != "" {
			if _, err := repo.Branch(c.Branch); err == git.ErrBranchNotFound {
				if err := repo.CreateBranch(&config.Branch{Name: c.Branch}); err != nil {
					return nil, errors.Wrap(err, "creating branch")
				}
			} else if err != nil {
				return nil, errors.Wrap(err, "getting branch")
			}
			if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName(c.Branch), hash)); err != nil {
				return nil, errors.Wrap(err, "setting branch")
			}
		}
		if c.Tag != "" {
			if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewTagReferenceName(c.Tag), hash)); err != nil {
				return nil, errors.Wrap(err, "setting tag")
			}
		}
	}
	return &repo, nil
}

func createFiles(w *git.Worktree, files FileContent) error {
	for name, content := range files {
		if err := w.Filesystem.MkdirAll(path.Dir(name), 0755); err != nil {
			return err
		}
		f, err := w.Filesystem.Create(name)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(f, content); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		if _, err := w.Add(name); err != nil {
			return err
		}
	}
	return nil
}
