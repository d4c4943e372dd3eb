package vcs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/futureCreator/autoship/internal/executor"
	vlog "github.com/futureCreator/autoship/internal/log"
	"github.com/futureCreator/autoship/internal/vcs/vcstest"
)

func newGitPublisher(dir string) *Publisher {
	return &Publisher{
		Git:    &Git{Runner: &executor.ExecRunner{}, Dir: dir},
		Remote: "origin",
		Branch: "main",
		Log:    vlog.Discard(),
	}
}

func TestPublishAgainstRemote(t *testing.T) {
	remote := vcstest.NewRemote(t, map[string]string{"index.html": "v1\n"})
	work := remote.Clone(t)
	vcstest.WriteFile(t, work, "dist/bundle.abc123.js", "app()")
	p := newGitPublisher(work)

	res, err := p.Publish(context.Background(), "bundle.abc123.js")
	require.NoError(t, err)
	assert.True(t, res.Committed)
	assert.False(t, res.Forced)
	assert.Equal(t, vcstest.Git(t, work, "rev-parse", "HEAD"), remote.Rev(t, "main"))
	assert.Contains(t, remote.Files(t, "main"), "dist/bundle.abc123.js")

	head := remote.Rev(t, "main")
	res, err = p.Publish(context.Background(), "bundle.abc123.js")
	require.NoError(t, err)
	assert.Equal(t, StateNoOpSkip, res.Trail[1])
	assert.Equal(t, head, remote.Rev(t, "main"))
}

func TestPublishRebasesOntoRemote(t *testing.T) {
	remote := vcstest.NewRemote(t, map[string]string{"index.html": "v1\n", "notes.txt": "a\n"})
	work := remote.Clone(t)

	other := remote.Clone(t)
	vcstest.WriteFile(t, other, "notes.txt", "b\n")
	vcstest.CommitAll(t, other, "notes")
	vcstest.Git(t, other, "push", "-q", "origin", "main")

	vcstest.WriteFile(t, work, "dist/bundle.abc123.js", "app()")
	res, err := newGitPublisher(work).Publish(context.Background(), "bundle.abc123.js")
	require.NoError(t, err)

	assert.False(t, res.Forced)
	assert.Equal(t, StatePublished, res.State)
	assert.Contains(t, remote.Files(t, "main"), "dist/bundle.abc123.js")
	assert.Equal(t, "b", vcstest.Git(t, remote.Dir, "show", "main:notes.txt"))
}

func TestPublishConflictForcePushes(t *testing.T) {
	remote := vcstest.NewRemote(t, map[string]string{"index.html": "v1\n"})
	work := remote.Clone(t)

	other := remote.Clone(t)
	vcstest.WriteFile(t, other, "index.html", "theirs\n")
	vcstest.CommitAll(t, other, "their edit")
	vcstest.Git(t, other, "push", "-q", "origin", "main")

	vcstest.WriteFile(t, work, "index.html", "ours\n")
	res, err := newGitPublisher(work).Publish(context.Background(), "bundle.abc123.js")
	require.NoError(t, err)

	assert.True(t, res.Forced)
	require.NotNil(t, res.Conflict)
	assert.Equal(t, []State{StateStaged, StateCommitted, StateConflictDetected, StateForcePush, StatePublished}, res.Trail)

	gitDir := filepath.Join(work, ".git")
	assert.NoDirExists(t, filepath.Join(gitDir, "rebase-merge"))
	assert.NoDirExists(t, filepath.Join(gitDir, "rebase-apply"))
	assert.Equal(t, "main", vcstest.Git(t, work, "rev-parse", "--abbrev-ref", "HEAD"))
	assert.Empty(t, vcstest.Git(t, work, "status", "--porcelain"))

	assert.Equal(t, vcstest.Git(t, work, "rev-parse", "HEAD"), remote.Rev(t, "main"))
	assert.Equal(t, "ours", vcstest.Git(t, remote.Dir, "show", "main:index.html"))

	data, err := os.ReadFile(filepath.Join(work, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "ours\n", string(data))
}
