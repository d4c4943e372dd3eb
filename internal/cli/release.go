package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/futureCreator/autoship/internal/config"
	"github.com/futureCreator/autoship/internal/deploy"
	"github.com/futureCreator/autoship/internal/executor"
	"github.com/futureCreator/autoship/internal/pipeline"
	"github.com/futureCreator/autoship/internal/run"
	"github.com/futureCreator/autoship/internal/vcs"
)

var (
	flagWait        int
	flagDevMode     string
	flagStrategy    string
	flagSkipDeploy  bool
	flagNoDevServer bool
	flagBuild       bool
	flagForceUnlock bool
	flagVerbose     bool
)

func addReleaseFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVar(&flagWait, "wait", 30, "seconds to verify the dev server (0 skips the countdown)")
	f.StringVar(&flagDevMode, "dev-mode", config.DevModePersistent, "dev server lifetime: persistent or smoke-test")
	f.StringVar(&flagStrategy, "deploy-strategy", config.StrategyExternalTool, "deploy strategy: external-tool or manual-branch-swap")
	f.BoolVar(&flagSkipDeploy, "skip-deploy", false, "publish without deploying")
	f.BoolVar(&flagNoDevServer, "no-dev-server", false, "skip the dev server and the verification window")
	f.BoolVar(&flagBuild, "build", false, "run the build command before locating the artifact")
	f.BoolVar(&flagForceUnlock, "force-unlock", false, "remove a lock left behind by a crashed run")
	f.BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging and line-per-update progress")
}

// applyFlags copies explicitly set flags over cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("wait") {
		cfg.WaitSeconds = flagWait
	}
	if f.Changed("dev-mode") {
		cfg.DevServer.Mode = flagDevMode
	}
	if f.Changed("deploy-strategy") {
		cfg.Deploy.Strategy = flagStrategy
	}
	if f.Changed("skip-deploy") && flagSkipDeploy {
		cfg.Deploy.Enabled = false
	}
	if f.Changed("no-dev-server") && flagNoDevServer {
		cfg.DevServer.Enabled = false
	}
	if f.Changed("build") {
		cfg.Build.Enabled = flagBuild
	}
	if f.Changed("verbose") && flagVerbose {
		cfg.LogLevel = "debug"
	}
}

func runRelease(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if err := checkPrerequisites(); err != nil {
		return err
	}
	root, err := projectRoot()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, root)
	if err != nil {
		return err
	}
	if err := ensureStateDir(root); err != nil {
		return err
	}

	logFile := openLogFile(root)
	if logFile != nil {
		defer logFile.Close()
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg, logFile)

	lockPath := filepath.Join(root, config.Dir, lockFileName)
	if flagForceUnlock {
		if pid, held := run.Holder(lockPath); held {
			logger.Warn("removing existing lock", "path", lockPath, "pid", pid)
		}
		if err := run.ForceUnlock(lockPath); err != nil {
			return err
		}
	}
	lock, err := run.Acquire(lockPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("failed to release lock", "err", err)
		}
	}()

	rec, err := run.New(filepath.Join(root, config.Dir, runsDirName), runMeta(cfg, root, logger))
	if err != nil {
		return fmt.Errorf("creating run: %w", err)
	}
	logger.Debug("run started", "id", rec.ID, "dir", rec.Dir)

	engine, err := newEngine(cmd, cfg, root, rec, logger)
	if err != nil {
		return err
	}
	out, err := engine.Execute(ctx)
	if err != nil {
		logger.Error("release failed", "run", rec.ID, "err", err)
		return err
	}
	logger.Info("release complete", "run", rec.ID, "artifact", out.Artifact.Name)

	if out.Server != nil {
		return holdServer(ctx, out.Server, logger)
	}
	return nil
}

// runMeta seeds the run record with a read-only snapshot of the repository.
func runMeta(cfg *config.Config, root string, logger *slog.Logger) run.Meta {
	meta := run.Meta{}
	if cfg.DevServer.Enabled {
		meta.DevServerMode = cfg.DevServer.Mode
	}
	if cfg.Deploy.Enabled {
		meta.DeployStrategy = cfg.Deploy.Strategy
	}

	snap, err := vcs.Inspect(root, cfg.Git.Remote)
	if err != nil {
		logger.Warn("could not inspect repository", "err", err)
		return meta
	}
	meta.GitBranch = snap.Branch
	meta.GitCommit = snap.Commit
	if !snap.HasRemote {
		logger.Warn("remote is not configured, pushes will fail", "remote", cfg.Git.Remote)
	}
	if snap.Branch != "" && snap.Branch != cfg.Git.Branch {
		logger.Warn("current branch differs from the publish branch", "current", snap.Branch, "publish", cfg.Git.Branch)
	}
	return meta
}

func newEngine(cmd *cobra.Command, cfg *config.Config, root string, rec *run.Run, logger *slog.Logger) (*pipeline.Engine, error) {
	runner := &executor.ExecRunner{Log: logger}
	if cfg.LogLevel == "debug" {
		runner.Stdout = cmd.ErrOrStderr()
		runner.Stderr = cmd.ErrOrStderr()
	}

	var deployer deploy.Deployer
	if cfg.Deploy.Enabled {
		d, err := deploy.New(cfg, runner, root, logger)
		if err != nil {
			return nil, err
		}
		deployer = d
	}

	disp := pipeline.NewDisplay(cmd.OutOrStdout(), flagVerbose)
	disp.Header(filepath.Base(root))

	return &pipeline.Engine{
		Config:   cfg,
		Root:     root,
		Pipeline: pipeline.Plan(cfg),
		Runner:   runner,
		Publisher: &vcs.Publisher{
			Git:             &vcs.Git{Runner: runner, Dir: root},
			Remote:          cfg.Git.Remote,
			Branch:          cfg.Git.Branch,
			MessageTemplate: cfg.Git.CommitMessage,
			Log:             logger,
		},
		Deployer: deployer,
		Timer:    &pipeline.Timer{Seconds: cfg.WaitSeconds},
		Run:      rec,
		Display:  disp,
		Log:      logger,
	}, nil
}

// holdServer keeps a persistent dev server in the foreground until the
// operator interrupts or the server exits on its own. An interrupt stops the
// server and is returned, so the process still exits non-zero.
func holdServer(ctx context.Context, h *executor.Handle, logger *slog.Logger) error {
	select {
	case <-ctx.Done():
		stopErr := h.Stop(context.Background())
		return errors.Join(fmt.Errorf("dev server stopped: %w", ctx.Err()), stopErr)
	case <-h.Done():
		if err := h.Wait(); err != nil {
			logger.Warn("dev server exited", "err", err)
		}
		return nil
	}
}
