// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"context"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/oss-bisect/bisector/internal/gitx"
	"github.com/pkg/errors"
)

// LocalAccessor implements Accessor against a local bare clone, walking
// history backwards from the end boundary (spec.md §4.3 "local-clone
// backend"). Grounded on internal/gitx's Clone machinery, which already
// chooses between the native git binary and go-git.
type LocalAccessor struct {
	repo         *git.Repository
	botCommitter string
	defaultRef   string
}

// OpenLocalAccessor clones (or refreshes an existing clone of) repoURL
// into path — "./rust.git" by default per spec.md §6 — and returns an
// Accessor backed by it.
func OpenLocalAccessor(ctx context.Context, repoURL, path, botCommitter, defaultRef string) (*LocalAccessor, error) {
	fs := osfs.New(path)
	s := filesystem.NewStorage(fs, cache.NewObjectLRUDefault())
	repo, err := git.Open(s, nil)
	switch err {
	case git.ErrRepositoryNotExists:
		repo, err = gitx.Clone(ctx, s, nil, &git.CloneOptions{URL: repoURL, NoCheckout: true})
		if err != nil {
			return nil, errors.Wrap(err, "cloning history repository")
		}
	case nil:
		if err := repo.FetchContext(ctx, &git.FetchOptions{}); err != nil && err != git.NoErrAlreadyUpToDate {
			return nil, errors.Wrap(err, "refreshing history repository")
		}
	default:
		return nil, errors.Wrap(err, "opening local history clone")
	}
	return &LocalAccessor{repo: repo, botCommitter: botCommitter, defaultRef: defaultRef}, nil
}

var _ Accessor = &LocalAccessor{}

// Commit resolves ref to the merge-base of the referenced commit with the
// default branch.
func (a *LocalAccessor) Commit(ref string) (Commit, error) {
	h, err := a.repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return Commit{}, errors.Wrapf(err, "resolving %q", ref)
	}
	defaultHead, err := a.repo.ResolveRevision(plumbing.Revision(a.defaultRef))
	if err != nil {
		return Commit{}, errors.Wrapf(err, "resolving default ref %q", a.defaultRef)
	}
	base, err := mergeBase(a.repo, *h, *defaultHead)
	if err != nil {
		return Commit{}, errors.Wrap(err, "computing merge base")
	}
	return a.commitAt(base)
}

// Commits returns the inclusive, chronologically ordered sequence of
// bot-authored merge commits between from and to, walking the
// first-parent chain backwards from to.
func (a *LocalAccessor) Commits(from, to string) ([]Commit, error) {
	start, err := a.repo.ResolveRevision(plumbing.Revision(from))
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %q", from)
	}
	end, err := a.repo.ResolveRevision(plumbing.Revision(to))
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %q", to)
	}
	var reversed []Commit
	cur := *end
	for {
		c, err := a.commitAt(cur)
		if err != nil {
			return nil, err
		}
		if (cur == *end || cur == *start) && !isBotAuthored(c, a.botCommitter) {
			return nil, errors.Wrapf(ErrNonBotBoundary, "commit %s", cur)
		}
		if isBotAuthored(c, a.botCommitter) {
			reversed = append(reversed, c)
		}
		if cur == *start {
			break
		}
		co, err := a.repo.CommitObject(cur)
		if err != nil {
			return nil, errors.Wrap(err, "loading commit object")
		}
		if co.NumParents() == 0 {
			return nil, errors.Errorf("walked past %s without reaching %s", cur, *start)
		}
		cur = co.ParentHashes[0]
	}
	if len(reversed) == 0 {
		return nil, ErrEmptyRange
	}
	out := make([]Commit, len(reversed))
	for i, c := range reversed {
		out[len(reversed)-1-i] = c
	}
	return out, nil
}

func (a *LocalAccessor) commitAt(h plumbing.Hash) (Commit, error) {
	co, err := a.repo.CommitObject(h)
	if err != nil {
		return Commit{}, errors.Wrapf(err, "loading commit %s", h)
	}
	return Commit{
		SHA:        co.Hash.String(),
		AuthorDate: co.Author.When,
		Summary:    firstLine(co.Message),
		Committer: Signature{
			Name:  co.Committer.Name,
			Email: co.Committer.Email,
			Date:  co.Committer.When,
		},
	}, nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

// mergeBase returns the first shared commit on a's and b's first-parent
// chains.
func mergeBase(repo *git.Repository, a, b plumbing.Hash) (plumbing.Hash, error) {
	seen := map[plumbing.Hash]bool{}
	for cur := a; ; {
		seen[cur] = true
		co, err := repo.CommitObject(cur)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if co.NumParents() == 0 {
			break
		}
		cur = co.ParentHashes[0]
	}
	for cur := b; ; {
		if seen[cur] {
			return cur, nil
		}
		co, err := repo.CommitObject(cur)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if co.NumParents() == 0 {
			return plumbing.ZeroHash, errors.New("no common ancestor")
		}
		cur = co.ParentHashes[0]
	}
}
