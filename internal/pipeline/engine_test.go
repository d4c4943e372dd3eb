package pipeline

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/futureCreator/autoship/internal/artifact"
	"github.com/futureCreator/autoship/internal/config"
	"github.com/futureCreator/autoship/internal/deploy"
	"github.com/futureCreator/autoship/internal/executor"
	"github.com/futureCreator/autoship/internal/executor/executortest"
	vlog "github.com/futureCreator/autoship/internal/log"
	"github.com/futureCreator/autoship/internal/run"
	"github.com/futureCreator/autoship/internal/vcs"
)

type fixture struct {
	root    string
	runner  *executortest.Runner
	output  *bytes.Buffer
	engine  *Engine
	runsDir string
}

// newFixture builds an engine over a temp repository holding two bundles,
// bundle.abc123.js being the newer one. Git and deploy commands go to a
// scripted runner; the dev server is a real shell process.
func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()
	root := t.TempDir()
	dist := filepath.Join(root, "dist")
	require.NoError(t, os.MkdirAll(dist, 0755))
	old := filepath.Join(dist, "bundle.old456.js")
	require.NoError(t, os.WriteFile(old, []byte("old()"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dist, "bundle.abc123.js"), []byte("app()"), 0644))
	hourAgo := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, hourAgo, hourAgo))

	cfg := config.Defaults()
	cfg.DevServer.Command = "sleep 30"
	cfg.DevServer.Mode = config.DevModeSmokeTest
	cfg.DevServer.StopGrace = "200ms"
	cfg.WaitSeconds = 2
	if mutate != nil {
		mutate(cfg)
	}

	r := executortest.New()
	logger := vlog.Discard()
	runsDir := filepath.Join(root, config.Dir, "runs")
	rec, err := run.New(runsDir, run.Meta{DevServerMode: cfg.DevServer.Mode})
	require.NoError(t, err)
	deployer, err := deploy.New(cfg, r, root, logger)
	require.NoError(t, err)

	var buf bytes.Buffer
	e := &Engine{
		Config:   cfg,
		Root:     root,
		Pipeline: Plan(cfg),
		Runner:   r,
		Publisher: &vcs.Publisher{
			Git:             &vcs.Git{Runner: r, Dir: root},
			Remote:          cfg.Git.Remote,
			Branch:          cfg.Git.Branch,
			MessageTemplate: cfg.Git.CommitMessage,
			Log:             logger,
		},
		Deployer: deployer,
		Timer:    &Timer{Seconds: cfg.WaitSeconds, Interval: 10 * time.Millisecond},
		Run:      rec,
		Display:  NewDisplay(&buf, false),
		Log:      logger,
	}
	return &fixture{root: root, runner: r, output: &buf, engine: e, runsDir: runsDir}
}

func (f *fixture) lastRun(t *testing.T) run.Meta {
	t.Helper()
	entries, err := run.List(f.runsDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	return entries[0].Meta
}

func TestExecuteReleasesNewestArtifact(t *testing.T) {
	f := newFixture(t, nil)
	f.runner.On("git status --porcelain", executortest.Response{Stdout: " M dist/bundle.abc123.js\n"})

	out, err := f.engine.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "bundle.abc123.js", out.Artifact.Name)
	assert.Nil(t, out.Server, "smoke-test server must be stopped after the wait")
	require.NotNil(t, out.Publish)
	assert.True(t, out.Publish.Committed)
	assert.Equal(t, vcs.StatePublished, out.Publish.State)

	assert.Equal(t, []string{
		"git add .",
		"git status --porcelain",
		"git commit -m build: novo hash/bundle gerado - bundle.abc123.js",
		"git pull --rebase origin main",
		"git push origin main",
		"yarn gh-pages -d dist",
	}, f.runner.Lines())

	meta := f.lastRun(t)
	assert.Equal(t, run.StatusCompleted, meta.Status)
	assert.Equal(t, "bundle.abc123.js", meta.Artifact)
	require.Len(t, meta.Stages, 5)
	assert.Equal(t, StageDeploy, meta.Stages[4].Name)

	display := f.output.String()
	assert.Contains(t, display, "01 seconds remaining")
	assert.Contains(t, display, "00 seconds remaining")
	assert.Contains(t, display, "Released bundle.abc123.js")
}

func TestExecuteWithoutChangesSkipsCommit(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.DevServer.Enabled = false
		c.Deploy.Enabled = false
	})

	out, err := f.engine.Execute(context.Background())
	require.NoError(t, err)
	assert.False(t, out.Publish.Committed)
	assert.Zero(t, f.runner.Count("git commit"))
	assert.Equal(t, 1, f.runner.Count("git push origin main"))
}

func TestExecuteNotFoundIssuesNoGitCommand(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, root string)
	}{
		{"missing dir", func(t *testing.T, root string) {
			require.NoError(t, os.RemoveAll(filepath.Join(root, "dist")))
		}},
		{"no match", func(t *testing.T, root string) {
			require.NoError(t, os.RemoveAll(filepath.Join(root, "dist")))
			require.NoError(t, os.MkdirAll(filepath.Join(root, "dist"), 0755))
			require.NoError(t, os.WriteFile(filepath.Join(root, "dist", "index.html"), nil, 0644))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			tt.setup(t, f.root)

			_, err := f.engine.Execute(context.Background())

			var nf *artifact.NotFoundError
			require.True(t, errors.As(err, &nf), "expected NotFoundError, got %v", err)
			assert.Empty(t, f.runner.Calls())

			meta := f.lastRun(t)
			assert.Equal(t, run.StatusFailed, meta.Status)
			assert.NotEmpty(t, meta.Error)
			assert.Contains(t, f.output.String(), "Failed:")
		})
	}
}

func TestExecuteBuildFailureStopsPipeline(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Build.Enabled = true })
	f.runner.Fail("yarn build", "Module not found")

	_, err := f.engine.Execute(context.Background())

	var cerr *executor.CommandError
	require.True(t, errors.As(err, &cerr), "expected CommandError, got %v", err)
	assert.Equal(t, []string{"yarn build"}, f.runner.Lines())
	assert.Contains(t, err.Error(), `stage "build" failed`)
}

func TestExecuteSmokeTestEarlyExit(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.DevServer.Command = "exit 3"
		c.WaitSeconds = 20
	})

	_, err := f.engine.Execute(context.Background())

	var lerr *executor.LaunchError
	require.True(t, errors.As(err, &lerr), "expected LaunchError, got %v", err)
	assert.Empty(t, f.runner.Calls())
}

func TestExecutePersistentKeepsServerRunning(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.DevServer.Mode = config.DevModePersistent
		c.Deploy.Enabled = false
	})

	out, err := f.engine.Execute(context.Background())
	require.NoError(t, err)
	require.NotNil(t, out.Server)
	t.Cleanup(func() { out.Server.Stop(context.Background()) })

	assert.False(t, out.Server.Exited())
	assert.Equal(t, executor.LifetimePersistent, out.Server.Lifetime)
	assert.Contains(t, f.output.String(), "dev server still running")
}

func TestExecuteFailureStopsPersistentServer(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.DevServer.Mode = config.DevModePersistent })
	f.runner.Fail("git add", "fatal: index.lock exists")

	out, err := f.engine.Execute(context.Background())
	require.Error(t, err)
	assert.Nil(t, out.Server)
	assert.Equal(t, []string{"git add ."}, f.runner.Lines())
}

func TestExecuteCancelledDuringWait(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.WaitSeconds = 1000 })
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	out, err := f.engine.Execute(ctx)

	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, out.Server)
	assert.Empty(t, f.runner.Calls())
	assert.Equal(t, run.StatusFailed, f.lastRun(t).Status)
}

func TestExecuteCancelledBeforeStart(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine.Execute(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.runner.Calls())
}

func TestExecuteReadinessProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := newFixture(t, func(c *config.Config) {
		c.DevServer.ReadyURL = srv.URL
		c.Deploy.Enabled = false
	})

	_, err := f.engine.Execute(context.Background())
	require.NoError(t, err)
}

func TestExecuteConflictFallsBackToForcePush(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.DevServer.Enabled = false
		c.Deploy.Enabled = false
	})
	f.runner.Fail("git pull --rebase", "CONFLICT (content)")

	out, err := f.engine.Execute(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Publish.Forced)
	assert.Equal(t, 1, f.runner.Count("git rebase --abort"))
	assert.Equal(t, 1, f.runner.Count("git push origin main --force"))
}
