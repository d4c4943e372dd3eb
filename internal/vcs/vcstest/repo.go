// Package vcstest builds throwaway git repositories with the real git CLI.
package vcstest

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// RequireGit skips the test when git is not installed.
func RequireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

// Git runs git in dir and returns its trimmed stdout. Any failure ends the test.
func Git(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		var stderr string
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			stderr = string(exitErr.Stderr)
		}
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, stderr)
	}
	return strings.TrimSpace(string(out))
}

// WriteFile writes content to name under dir, creating parent directories.
func WriteFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// CommitAll stages everything in dir and commits it.
func CommitAll(t *testing.T, dir, message string) {
	t.Helper()
	Git(t, dir, "add", "-A")
	Git(t, dir, "commit", "-q", "-m", message)
}

// Remote is a bare repository standing in for "origin".
type Remote struct {
	Dir string
}

// NewRemote creates a bare repository whose main branch holds files in one
// commit. It skips the test when git is missing.
func NewRemote(t *testing.T, files map[string]string) *Remote {
	t.Helper()
	RequireGit(t)
	base := t.TempDir()
	r := &Remote{Dir: filepath.Join(base, "origin.git")}
	Git(t, base, "init", "-q", "--bare", "-b", "main", r.Dir)

	seed := filepath.Join(base, "seed")
	Git(t, base, "init", "-q", "-b", "main", seed)
	configure(t, seed)
	for name, content := range files {
		WriteFile(t, seed, name, content)
	}
	CommitAll(t, seed, "initial")
	Git(t, seed, "remote", "add", "origin", r.Dir)
	Git(t, seed, "push", "-q", "origin", "main")
	return r
}

// Clone returns a fresh clone of the remote on main, with a committer
// identity configured.
func (r *Remote) Clone(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "work")
	Git(t, filepath.Dir(dir), "clone", "-q", r.Dir, dir)
	configure(t, dir)
	return dir
}

// Rev resolves ref in the remote.
func (r *Remote) Rev(t *testing.T, ref string) string {
	t.Helper()
	return Git(t, r.Dir, "rev-parse", ref)
}

// Files lists the paths tracked by ref in the remote.
func (r *Remote) Files(t *testing.T, ref string) []string {
	t.Helper()
	out := Git(t, r.Dir, "ls-tree", "-r", "--name-only", ref)
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

func configure(t *testing.T, dir string) {
	t.Helper()
	Git(t, dir, "config", "user.name", "autoship")
	Git(t, dir, "config", "user.email", "autoship@example.com")
	Git(t, dir, "config", "commit.gpgsign", "false")
}
