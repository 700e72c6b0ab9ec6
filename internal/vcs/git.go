// Package vcs identifies the source revision a fuzz introspection run was
// built from.
package vcs

import (
	"errors"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// ErrNotRepository is returned when no git repository encloses a path.
var ErrNotRepository = errors.New("not a git repository")

// Revision describes the HEAD commit of a repository.
type Revision struct {
	Commit  string `json:"commit" toon:"commit"`
	Branch  string `json:"branch,omitempty" toon:"branch,omitempty"`
	Author  string `json:"author,omitempty" toon:"author,omitempty"`
	Date    string `json:"date,omitempty" toon:"date,omitempty"` // RFC 3339
	Subject string `json:"subject,omitempty" toon:"subject,omitempty"`

	when time.Time
}

// When returns the commit time.
func (r *Revision) When() time.Time {
	return r.when
}

// Open opens the repository enclosing path, searching parent directories.
func Open(path string) (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, ErrNotRepository
	}
	return repo, err
}

// Head describes the HEAD commit of the repository enclosing path.
func Head(path string) (*Revision, error) {
	repo, err := Open(path)
	if err != nil {
		return nil, err
	}
	ref, err := repo.Head()
	if err != nil {
		return nil, err
	}
	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, err
	}

	rev := &Revision{
		Commit:  ref.Hash().String(),
		Author:  commit.Author.Name,
		Date:    commit.Author.When.UTC().Format(time.RFC3339),
		Subject: strings.TrimSpace(strings.SplitN(commit.Message, "\n", 2)[0]),
		when:    commit.Author.When,
	}
	if ref.Name() != plumbing.HEAD && ref.Name().IsBranch() {
		rev.Branch = ref.Name().Short()
	}
	return rev, nil
}

// Short returns the abbreviated commit hash.
func (r *Revision) Short() string {
	if len(r.Commit) > 12 {
		return r.Commit[:12]
	}
	return r.Commit
}
