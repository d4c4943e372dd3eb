package run

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	base := filepath.Join(t.TempDir(), "runs")

	r, err := New(base, Meta{GitBranch: "main", GitCommit: "abc1234", DevServerMode: "persistent"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if r.Meta.Status != StatusRunning {
		t.Errorf("expected status 'running', got %q", r.Meta.Status)
	}
	if r.Meta.GitBranch != "main" {
		t.Errorf("expected branch 'main', got %q", r.Meta.GitBranch)
	}
	if len(r.ID) != len("20060102-150405-")+8 {
		t.Errorf("unexpected run id %q", r.ID)
	}

	// Verify meta.json was written
	if _, err := os.Stat(filepath.Join(r.Dir, "meta.json")); err != nil {
		t.Errorf("meta.json not created: %v", err)
	}

	// Verify latest symlink
	latestTarget, err := os.Readlink(filepath.Join(base, "latest"))
	if err != nil {
		t.Errorf("latest symlink not created: %v", err)
	}
	if latestTarget != r.ID {
		t.Errorf("latest symlink points to %q, want %q", latestTarget, r.ID)
	}
}

func TestLifecycleAndList(t *testing.T) {
	base := t.TempDir()

	first, err := New(base, Meta{})
	require.NoError(t, err)
	require.NoError(t, first.SetArtifact("bundle.old456.js"))
	require.NoError(t, first.AddStageResult(StageResult{Name: "locate", Status: "completed"}))
	require.NoError(t, first.Fail("git push origin main: exit status 1"))

	time.Sleep(10 * time.Millisecond)
	second, err := New(base, Meta{})
	require.NoError(t, err)
	require.NoError(t, second.SetArtifact("bundle.abc123.js"))
	require.NoError(t, second.Complete())

	entries, err := List(base)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, second.ID, entries[0].ID)
	assert.Equal(t, StatusCompleted, entries[0].Meta.Status)
	assert.Equal(t, "bundle.abc123.js", entries[0].Meta.Artifact)
	assert.NotNil(t, entries[0].Meta.FinishedAt)

	assert.Equal(t, StatusFailed, entries[1].Meta.Status)
	assert.Equal(t, "git push origin main: exit status 1", entries[1].Meta.Error)
	require.Len(t, entries[1].Meta.Stages, 1)
	assert.Equal(t, "locate", entries[1].Meta.Stages[0].Name)
}

func TestListMissingDir(t *testing.T) {
	entries, err := List(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListSkipsGarbage(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "broken"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "broken", "meta.json"), []byte("{"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(base, "empty"), 0755))

	entries, err := List(base)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".autoship", "autoship.lock")

	lock, err := Acquire(path)
	require.NoError(t, err)

	pid, ok := Holder(path)
	assert.True(t, ok)
	assert.Equal(t, os.Getpid(), pid)

	_, err = Acquire(path)
	var locked *LockedError
	require.True(t, errors.As(err, &locked), "expected LockedError, got %v", err)
	assert.Equal(t, os.Getpid(), locked.PID)
	assert.Contains(t, locked.Error(), strconv.Itoa(os.Getpid()))

	require.NoError(t, lock.Release())
	require.NoError(t, lock.Release())

	lock, err = Acquire(path)
	require.NoError(t, err)
	require.NoError(t, lock.Release())
}

func TestForceUnlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autoship.lock")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0644))

	pid, ok := Holder(path)
	assert.True(t, ok)
	assert.Zero(t, pid)

	require.NoError(t, ForceUnlock(path))
	require.NoError(t, ForceUnlock(path))

	_, ok = Holder(path)
	assert.False(t, ok)
}
