package deploy

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/futureCreator/autoship/internal/config"
	"github.com/futureCreator/autoship/internal/vcs"
)

// BranchSwap publishes by checking out the deployment branch, replacing its
// tracked content with the output tree, committing and force-pushing. The
// repository is always returned to the branch it started on.
type BranchSwap struct {
	Git             *vcs.Git
	Remote          string
	Branch          string
	MessageTemplate string
	Log             *slog.Logger
}

func (d *BranchSwap) Name() string { return config.StrategyBranchSwap }

func (d *BranchSwap) Deploy(ctx context.Context, req Request) (err error) {
	root := d.Git.Dir
	src := req.OutputDir
	if !filepath.IsAbs(src) {
		src = filepath.Join(root, src)
	}

	// Stage the output first: checking out the target branch may touch it.
	staging, err := os.MkdirTemp("", "autoship-deploy-*")
	if err != nil {
		return fmt.Errorf("creating staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	entries, err := copyTree(src, staging)
	if err != nil {
		return fmt.Errorf("staging %s: %w", src, err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("output dir %s is empty", src)
	}

	original, err := d.Git.CurrentBranch(ctx)
	if err != nil {
		return err
	}
	if original == d.Branch {
		return fmt.Errorf("already on deployment branch %q", d.Branch)
	}

	exists, err := d.Git.BranchExists(ctx, d.Branch)
	if err != nil {
		return fmt.Errorf("checking branch %s: %w", d.Branch, err)
	}
	d.Log.Info("switching to deployment branch", "branch", d.Branch, "from", original, "new", !exists)
	if exists {
		err = d.Git.Checkout(ctx, d.Branch, false)
	} else {
		err = d.Git.CheckoutOrphan(ctx, d.Branch)
	}
	if err != nil {
		return fmt.Errorf("checking out %s: %w", d.Branch, err)
	}

	var copied []string
	defer func() {
		if err != nil {
			err = d.restore(ctx, root, original, copied, err)
		}
	}()

	if err = d.Git.RemoveAllTracked(ctx, !exists); err != nil {
		return fmt.Errorf("clearing %s: %w", d.Branch, err)
	}

	for _, name := range entries {
		var target string
		target, err = securejoin.SecureJoin(root, name)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", name, err)
		}
		if _, statErr := os.Lstat(target); statErr == nil {
			return fmt.Errorf("refusing to overwrite untracked %s", target)
		}
		copied = append(copied, name)
		if _, err = copyTree(filepath.Join(staging, name), target); err != nil {
			return fmt.Errorf("copying %s: %w", name, err)
		}
	}

	if err = d.Git.AddForce(ctx, copied...); err != nil {
		return fmt.Errorf("staging deployment: %w", err)
	}
	var staged bool
	if staged, err = d.Git.HasStagedChanges(ctx); err != nil {
		return err
	}
	if staged {
		msg := renderMessage(d.MessageTemplate, req.Artifact)
		if err = d.Git.Commit(ctx, msg); err != nil {
			return fmt.Errorf("committing deployment: %w", err)
		}
	} else {
		d.Log.Info("deployment branch already up to date")
	}

	if err = d.Git.Push(ctx, d.Remote, d.Branch, true); err != nil {
		return fmt.Errorf("pushing %s: %w", d.Branch, err)
	}

	if err = d.Git.Checkout(ctx, original, false); err != nil {
		return fmt.Errorf("returning to %s: %w", original, err)
	}
	d.Log.Info("deployment pushed", "remote", d.Remote, "branch", d.Branch)
	return nil
}

// restore removes the copied entries and force-checks-out the original
// branch. It runs even when ctx has been cancelled.
func (d *BranchSwap) restore(ctx context.Context, root, original string, copied []string, cause error) error {
	d.Log.Warn("deployment failed, restoring branch", "branch", original, "err", cause)
	for _, name := range copied {
		target, err := securejoin.SecureJoin(root, name)
		if err != nil {
			continue
		}
		if err := os.RemoveAll(target); err != nil {
			d.Log.Warn("could not remove copied entry", "path", target, "err", err)
		}
	}
	if err := d.Git.Checkout(context.WithoutCancel(ctx), original, true); err != nil {
		return fmt.Errorf("%w (restoring %s also failed: %v)", cause, original, err)
	}
	return cause
}

// copyTree copies src into dst and returns the top-level entry names of src,
// sorted. When src is a file, dst is that file's copy and the name list is
// empty.
func copyTree(src, dst string) ([]string, error) {
	info, err := os.Lstat(src)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, copyEntry(src, dst, info)
	}

	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target, err := securejoin.SecureJoin(dst, rel)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if d.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		}
		return copyEntry(path, target, info)
	})
	if err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(src)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(dirEntries))
	for _, e := range dirEntries {
		names = append(names, e.Name())
	}
	return names, nil
}

func copyEntry(src, dst string, info fs.FileInfo) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		link, err := os.Readlink(src)
		if err != nil {
			return err
		}
		return os.Symlink(link, dst)
	case info.Mode().IsRegular():
		return copyFile(src, dst, info.Mode().Perm())
	default:
		return fmt.Errorf("unsupported file type %s: %s", info.Mode().Type(), src)
	}
}

func copyFile(src, dst string, perm fs.FileMode) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(out, in)
	return err
}
