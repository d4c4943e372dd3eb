// Package deploy publishes the build output to the static hosting target.
package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/futureCreator/autoship/internal/config"
	"github.com/futureCreator/autoship/internal/executor"
	"github.com/futureCreator/autoship/internal/vcs"
)

// Request describes one deployment.
type Request struct {
	// OutputDir is the directory whose contents become the deployed site.
	// Relative paths are resolved against the repository root.
	OutputDir string
	Artifact  string
}

// Deployer replaces the content of a deployment target with the output tree.
type Deployer interface {
	Name() string
	Deploy(ctx context.Context, req Request) error
}

// ExternalTool delegates to a "publish directory as branch" command such as
// `yarn gh-pages -d dist`.
type ExternalTool struct {
	Runner  executor.Runner
	Command string
	Dir     string
	Log     *slog.Logger
}

func (d *ExternalTool) Name() string { return config.StrategyExternalTool }

func (d *ExternalTool) Deploy(ctx context.Context, req Request) error {
	d.Log.Info("deploying with external tool", "cmd", d.Command, "artifact", req.Artifact)
	if _, err := d.Runner.Run(ctx, executor.Shell(d.Command, d.Dir)); err != nil {
		return fmt.Errorf("deploy command: %w", err)
	}
	return nil
}

// New builds the deployer selected by cfg.Deploy.Strategy.
func New(cfg *config.Config, runner executor.Runner, root string, log *slog.Logger) (Deployer, error) {
	switch cfg.Deploy.Strategy {
	case config.StrategyExternalTool:
		return &ExternalTool{Runner: runner, Command: cfg.Deploy.Command, Dir: root, Log: log}, nil
	case config.StrategyBranchSwap:
		return &BranchSwap{
			Git:             &vcs.Git{Runner: runner, Dir: root},
			Remote:          cfg.Git.Remote,
			Branch:          cfg.Deploy.Branch,
			MessageTemplate: cfg.Deploy.Message,
			Log:             log,
		}, nil
	default:
		return nil, fmt.Errorf("unknown deploy strategy %q", cfg.Deploy.Strategy)
	}
}

func renderMessage(tmpl, artifact string) string {
	if tmpl == "" {
		tmpl = "deploy: {{artifact}}"
	}
	return strings.ReplaceAll(tmpl, "{{artifact}}", artifact)
}
