package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/futureCreator/autoship/internal/config"
	vlog "github.com/futureCreator/autoship/internal/log"
	"github.com/futureCreator/autoship/internal/vcs"
)

const (
	logFileName  = "autoship.log"
	lockFileName = "autoship.lock"
	runsDirName  = "runs"
)

// stateIgnore keeps run records, the log and the lock out of `git add .`.
const stateIgnore = `runs/
autoship.log
autoship.lock
`

func checkPrerequisites() error {
	if _, err := exec.LookPath("git"); err != nil {
		return fmt.Errorf("git not found in PATH: %w", err)
	}
	return nil
}

// projectRoot returns the top level of the repository containing the working
// directory, or the working directory itself outside a repository. State,
// config and output paths all resolve against it.
func projectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working dir: %w", err)
	}
	if top, err := vcs.Toplevel(cwd); err == nil {
		return top, nil
	}
	return cwd, nil
}

// loadConfig resolves the layered config for the project at root, applies
// command-line overrides and validates the result.
func loadConfig(cmd *cobra.Command, root string) (*config.Config, error) {
	cfg, err := config.Load(cmd.Context(), root)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ensureStateDir creates .autoship/ with a .gitignore covering per-run state.
// An existing .gitignore is left alone.
func ensureStateDir(root string) error {
	dir := filepath.Join(root, config.Dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	ignore := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(ignore); err == nil {
		return nil
	}
	if err := os.WriteFile(ignore, []byte(stateIgnore), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", ignore, err)
	}
	return nil
}

func openLogFile(root string) *os.File {
	dir := filepath.Join(root, config.Dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, logFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil
	}
	return f
}

func newLogger(console io.Writer, cfg *config.Config, file *os.File) *slog.Logger {
	opts := vlog.Options{Level: cfg.LogLevel, Console: console}
	if file != nil {
		opts.File = file
	}
	return vlog.New(opts)
}
