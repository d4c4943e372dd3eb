// Package vcs drives the git CLI to commit, synchronise and publish the
// working tree.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/futureCreator/autoship/internal/executor"
)

// Git runs git subcommands in Dir through Runner.
type Git struct {
	Runner executor.Runner
	Dir    string
}

func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	res, err := g.Runner.Run(ctx, executor.Command{Name: "git", Args: args, Dir: g.Dir})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// AddAll stages every change in the working tree.
func (g *Git) AddAll(ctx context.Context) error {
	_, err := g.run(ctx, "add", ".")
	return err
}

// HasPendingChanges reports whether git status shows anything to commit.
func (g *Git) HasPendingChanges(ctx context.Context) (bool, error) {
	out, err := g.run(ctx, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("checking git status: %w", err)
	}
	return out != "", nil
}

// HasStagedChanges reports whether the index differs from HEAD.
func (g *Git) HasStagedChanges(ctx context.Context) (bool, error) {
	_, err := g.run(ctx, "diff", "--cached", "--quiet")
	if err == nil {
		return false, nil
	}
	var cerr *executor.CommandError
	if errors.As(err, &cerr) && cerr.ExitCode == 1 {
		return true, nil
	}
	return false, fmt.Errorf("checking staged changes: %w", err)
}

// Commit records the index with message.
func (g *Git) Commit(ctx context.Context, message string) error {
	_, err := g.run(ctx, "commit", "-m", message)
	return err
}

// PullRebase rebases local commits onto remote/branch.
func (g *Git) PullRebase(ctx context.Context, remote, branch string) error {
	_, err := g.run(ctx, "pull", "--rebase", remote, branch)
	return err
}

// RebaseAbort abandons an in-progress rebase.
func (g *Git) RebaseAbort(ctx context.Context) error {
	_, err := g.run(ctx, "rebase", "--abort")
	return err
}

// Push pushes branch to remote, overwriting remote history when force is set.
func (g *Git) Push(ctx context.Context, remote, branch string, force bool) error {
	args := []string{"push", remote, branch}
	if force {
		args = append(args, "--force")
	}
	_, err := g.run(ctx, args...)
	return err
}

// CurrentBranch returns the checked-out branch name.
func (g *Git) CurrentBranch(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("getting git branch: %w", err)
	}
	return out, nil
}

// BranchExists reports whether a local branch exists.
func (g *Git) BranchExists(ctx context.Context, branch string) (bool, error) {
	_, err := g.run(ctx, "rev-parse", "--verify", "--quiet", "refs/heads/"+branch)
	if err == nil {
		return true, nil
	}
	var cerr *executor.CommandError
	if errors.As(err, &cerr) && cerr.ExitCode == 1 {
		return false, nil
	}
	return false, err
}

// Checkout switches to branch. With force, local modifications are discarded.
func (g *Git) Checkout(ctx context.Context, branch string, force bool) error {
	args := []string{"checkout"}
	if force {
		args = append(args, "-f")
	}
	args = append(args, branch)
	_, err := g.run(ctx, args...)
	return err
}

// CheckoutOrphan creates and switches to a branch with no history.
func (g *Git) CheckoutOrphan(ctx context.Context, branch string) error {
	_, err := g.run(ctx, "checkout", "--orphan", branch)
	return err
}

// RemoveAllTracked deletes every tracked file from the index and the tree.
// force is needed right after CheckoutOrphan, whose index still holds the
// previous branch's files as staged additions.
func (g *Git) RemoveAllTracked(ctx context.Context, force bool) error {
	args := []string{"rm", "-r", "-q"}
	if force {
		args = append(args, "-f")
	}
	_, err := g.run(ctx, append(args, "--ignore-unmatch", ".")...)
	return err
}

// AddForce stages paths even when they match ignore rules.
func (g *Git) AddForce(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"add", "-f", "--"}, paths...)
	_, err := g.run(ctx, args...)
	return err
}
