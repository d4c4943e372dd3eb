package vcs

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Snapshot is a read-only view of the repository used for run records and
// doctor checks. It never mutates the repository.
type Snapshot struct {
	Root      string
	Branch    string
	Commit    string
	HasRemote bool
}

// Toplevel returns the working tree root of the repository containing dir.
func Toplevel(dir string) (string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("opening repository at %s: %w", dir, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("reading worktree of %s: %w", dir, err)
	}
	return wt.Filesystem.Root(), nil
}

// Inspect opens the repository containing dir and reads HEAD and remote.
// An unborn HEAD leaves Branch and Commit empty.
func Inspect(dir, remote string) (*Snapshot, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening repository at %s: %w", dir, err)
	}

	snap := &Snapshot{}
	if wt, err := repo.Worktree(); err == nil {
		snap.Root = wt.Filesystem.Root()
	}

	head, err := repo.Head()
	switch {
	case err == nil:
		if head.Name().IsBranch() {
			snap.Branch = head.Name().Short()
		} else {
			snap.Branch = "HEAD"
		}
		snap.Commit = head.Hash().String()[:7]
	case errors.Is(err, plumbing.ErrReferenceNotFound):
	default:
		return nil, fmt.Errorf("reading HEAD: %w", err)
	}

	_, err = repo.Remote(remote)
	switch {
	case err == nil:
		snap.HasRemote = true
	case errors.Is(err, git.ErrRemoteNotFound):
	default:
		return nil, fmt.Errorf("reading remote %q: %w", remote, err)
	}

	return snap, nil
}
