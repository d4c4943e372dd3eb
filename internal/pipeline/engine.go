package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/futureCreator/autoship/internal/artifact"
	"github.com/futureCreator/autoship/internal/config"
	"github.com/futureCreator/autoship/internal/deploy"
	"github.com/futureCreator/autoship/internal/executor"
	"github.com/futureCreator/autoship/internal/run"
	"github.com/futureCreator/autoship/internal/vcs"
)

// readyProbeAttempts bounds the readiness probe at roughly half a minute.
const readyProbeAttempts = 30

// Engine orchestrates the release stages.
type Engine struct {
	Config    *config.Config
	Root      string // repository root; relative config paths resolve here
	Pipeline  *Pipeline
	Runner    executor.Runner
	Publisher *vcs.Publisher
	Deployer  deploy.Deployer
	Timer     *Timer
	Run       *run.Run // optional
	Display   *Display
	Log       *slog.Logger
}

// Outcome is what a release produced.
type Outcome struct {
	Artifact *artifact.Artifact
	// Server is the dev server still running after a successful release in
	// persistent mode. The caller owns it. It is nil otherwise.
	Server  *executor.Handle
	Publish *vcs.PublishResult
}

// Execute runs all stages in sequence and stops at the first failure. On
// failure any dev server started by the run is stopped before returning.
func (e *Engine) Execute(ctx context.Context) (out *Outcome, err error) {
	startTime := time.Now()
	out = &Outcome{}

	defer func() {
		if err != nil && out.Server != nil {
			e.stopServer(context.WithoutCancel(ctx), out.Server)
			out.Server = nil
		}
	}()

	for _, stage := range e.Pipeline.Stages {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, e.fail(stage, ctxErr)
		}

		e.Display.StageStart(stage, stage != StageWait)
		stageStart := time.Now()

		detail, stageErr := e.runStage(ctx, stage, out)
		duration := time.Since(stageStart)

		if stageErr != nil {
			e.Display.StageFailed(stage, stageErr)
			e.record(run.StageResult{
				Name:       stage,
				Status:     run.StatusFailed,
				DurationMS: duration.Milliseconds(),
				Error:      stageErr.Error(),
			})
			return out, e.fail(stage, stageErr)
		}

		e.record(run.StageResult{
			Name:       stage,
			Status:     run.StatusCompleted,
			Detail:     detail,
			DurationMS: duration.Milliseconds(),
		})
		e.Display.StageDone(stage, detail, duration)
	}

	if e.Run != nil {
		if err := e.Run.Complete(); err != nil {
			e.Log.Warn("failed to mark run complete", "err", err)
		}
	}

	e.Display.Summary(out.Artifact.Name, time.Since(startTime))
	if out.Server != nil {
		e.Display.Serving(out.Server.PID)
	}
	return out, nil
}

func (e *Engine) fail(stage string, cause error) error {
	if e.Run != nil {
		if err := e.Run.Fail(cause.Error()); err != nil {
			e.Log.Error("failed to update run meta", "err", err)
		}
	}
	e.Display.Failed(cause)
	return fmt.Errorf("stage %q failed: %w", stage, cause)
}

func (e *Engine) record(sr run.StageResult) {
	if e.Run == nil {
		return
	}
	if err := e.Run.AddStageResult(sr); err != nil {
		e.Log.Warn("failed to save stage result", "stage", sr.Name, "err", err)
	}
}

func (e *Engine) runStage(ctx context.Context, stage string, out *Outcome) (string, error) {
	switch stage {
	case StageBuild:
		return e.build(ctx)
	case StageLocate:
		return e.locate(out)
	case StageLaunch:
		return e.launch(ctx, out)
	case StageWait:
		return e.wait(ctx, out)
	case StagePublish:
		return e.publish(ctx, out)
	case StageDeploy:
		return e.deploy(ctx, out)
	default:
		return "", fmt.Errorf("unknown stage %q", stage)
	}
}

func (e *Engine) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(e.Root, path)
}

func (e *Engine) build(ctx context.Context) (string, error) {
	e.Log.Info("building", "cmd", e.Config.Build.Command)
	res, err := e.Runner.Run(ctx, executor.Shell(e.Config.Build.Command, e.Root))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s (%.1fs)", e.Config.Build.Command, res.Duration.Seconds()), nil
}

func (e *Engine) locate(out *Outcome) (string, error) {
	pattern := artifact.Pattern{Prefix: e.Config.Artifact.Prefix, Suffix: e.Config.Artifact.Suffix}
	a, err := artifact.Locate(e.resolve(e.Config.OutputDir), pattern)
	if err != nil {
		return "", err
	}
	out.Artifact = a
	e.Log.Info("artifact located", "name", a.Name, "size", a.Size, "modified", a.ModTime)
	if e.Run != nil {
		if err := e.Run.SetArtifact(a.Name); err != nil {
			e.Log.Warn("failed to record artifact", "err", err)
		}
	}
	return artifactDetail(a, time.Now()), nil
}

func (e *Engine) launch(ctx context.Context, out *Outcome) (string, error) {
	ds := e.Config.DevServer
	filter, err := executor.NewOutputFilter(ds.ReadyPattern, ds.QuietPatterns, ds.ErrorPatterns)
	if err != nil {
		return "", err
	}
	lifetime := executor.LifetimePersistent
	if ds.Mode == config.DevModeSmokeTest {
		lifetime = executor.LifetimeSmokeTest
	}

	e.Log.Info("starting dev server", "cmd", ds.Command, "mode", lifetime)
	h, err := executor.Launch(ctx, executor.LaunchSpec{
		Command:   ds.Command,
		Dir:       e.Root,
		Lifetime:  lifetime,
		Filter:    filter,
		StopGrace: e.Config.StopGraceDuration(),
	}, e.Log)
	if err != nil {
		return "", err
	}
	out.Server = h

	if ds.ReadyURL != "" {
		if err := executor.WaitReady(ctx, ds.ReadyURL, readyProbeAttempts, time.Second); err != nil {
			if lifetime == executor.LifetimeSmokeTest || ctx.Err() != nil {
				return "", &executor.LaunchError{Command: ds.Command, Err: err}
			}
			e.Log.Warn("dev server readiness probe failed", "url", ds.ReadyURL, "err", err)
		}
	}
	return fmt.Sprintf("pid %d (%s)", h.PID, lifetime), nil
}

func (e *Engine) wait(ctx context.Context, out *Outcome) (string, error) {
	if e.Timer.Seconds > 0 {
		e.Display.Checklist(e.Timer.Seconds)
	}
	if err := e.Timer.Countdown(ctx, e.Display.Tick); err != nil {
		return "", err
	}

	h := out.Server
	if h == nil {
		return fmt.Sprintf("%ds", e.Timer.Seconds), nil
	}
	if h.Exited() {
		exitErr := h.Wait()
		if exitErr == nil {
			exitErr = errors.New("exited with status 0")
		}
		if h.Lifetime == executor.LifetimeSmokeTest {
			out.Server = nil
			return "", &executor.LaunchError{Command: h.Command, Err: fmt.Errorf("dev server stopped during verification: %w", exitErr)}
		}
		e.Log.Warn("dev server stopped during verification", "err", exitErr)
		out.Server = nil
	}
	if h.Lifetime == executor.LifetimeSmokeTest {
		e.stopServer(ctx, h)
		out.Server = nil
	}
	return fmt.Sprintf("%ds", e.Timer.Seconds), nil
}

func (e *Engine) stopServer(ctx context.Context, h *executor.Handle) {
	if err := h.Stop(ctx); err != nil {
		e.Log.Warn("failed to stop dev server", "pid", h.PID, "err", err)
	}
}

func (e *Engine) publish(ctx context.Context, out *Outcome) (string, error) {
	res, err := e.Publisher.Publish(ctx, out.Artifact.Name)
	out.Publish = res
	if err != nil {
		return "", err
	}
	switch {
	case res.Forced:
		return fmt.Sprintf("force-pushed %s/%s", e.Publisher.Remote, e.Publisher.Branch), nil
	case res.Committed:
		return fmt.Sprintf("committed, pushed %s/%s", e.Publisher.Remote, e.Publisher.Branch), nil
	default:
		return fmt.Sprintf("no changes, pushed %s/%s", e.Publisher.Remote, e.Publisher.Branch), nil
	}
}

func (e *Engine) deploy(ctx context.Context, out *Outcome) (string, error) {
	req := deploy.Request{OutputDir: e.Config.OutputDir, Artifact: out.Artifact.Name}
	if err := e.Deployer.Deploy(ctx, req); err != nil {
		return "", err
	}
	return e.Deployer.Name(), nil
}
