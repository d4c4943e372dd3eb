package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/futureCreator/autoship/internal/config"
	"github.com/futureCreator/autoship/internal/run"
	"github.com/futureCreator/autoship/internal/vcs"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check autoship prerequisites and configuration",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	allOK := true

	root, err := projectRoot()
	if err != nil {
		return err
	}

	check := func(label string, ok bool, hint string) {
		if ok {
			fmt.Fprintf(w, "✅ %s\n", label)
		} else {
			fmt.Fprintf(w, "❌ %s: %s\n", label, hint)
			allOK = false
		}
	}

	// 1. git
	_, err = exec.LookPath("git")
	check("git installed", err == nil, "install git")

	// 2. config
	cfg, cfgErr := config.Load(cmd.Context(), root)
	check("config loadable", cfgErr == nil, fmt.Sprintf("fix config: %v", cfgErr))
	if cfgErr == nil {
		validateErr := cfg.Validate()
		check("config valid", validateErr == nil, fmt.Sprintf("%v", validateErr))

		// 3. tools the configured commands need
		for _, tool := range commandTools(cfg) {
			_, err := exec.LookPath(tool)
			check(tool+" installed", err == nil, "install "+tool+" or change the configured commands")
		}

		// 4. repository
		snap, err := vcs.Inspect(root, cfg.Git.Remote)
		check("inside git repository", err == nil, "run `git init` or cd to a git repo")
		if err == nil {
			check(fmt.Sprintf("remote %q configured", cfg.Git.Remote), snap.HasRemote,
				fmt.Sprintf("run `git remote add %s <url>`", cfg.Git.Remote))
			check(fmt.Sprintf("on branch %q", cfg.Git.Branch), snap.Branch == cfg.Git.Branch,
				fmt.Sprintf("currently on %q", snap.Branch))
		}

		// 5. build output
		outputDir := cfg.OutputDir
		if !filepath.IsAbs(outputDir) {
			outputDir = filepath.Join(root, outputDir)
		}
		info, err := os.Stat(outputDir)
		check(fmt.Sprintf("output dir %q exists", cfg.OutputDir), err == nil && info.IsDir(), "build the application first")
	}

	// 6. lock
	lockPath := filepath.Join(root, config.Dir, lockFileName)
	pid, held := run.Holder(lockPath)
	check("no release in progress", !held,
		fmt.Sprintf("lock held by pid %d; run `autoship --force-unlock` if no release is running", pid))

	fmt.Fprintln(w)
	if allOK {
		fmt.Fprintln(w, "All checks passed. autoship is ready.")
	} else {
		fmt.Fprintln(w, "Some checks failed. Fix the issues above before releasing.")
	}
	return nil
}

// commandTools returns the executables the enabled commands start with.
func commandTools(cfg *config.Config) []string {
	seen := map[string]bool{}
	var tools []string
	add := func(enabled bool, line string) {
		fields := strings.Fields(line)
		if !enabled || len(fields) == 0 || seen[fields[0]] {
			return
		}
		seen[fields[0]] = true
		tools = append(tools, fields[0])
	}
	add(cfg.Build.Enabled, cfg.Build.Command)
	add(cfg.DevServer.Enabled, cfg.DevServer.Command)
	add(cfg.Deploy.Enabled && cfg.Deploy.Strategy == config.StrategyExternalTool, cfg.Deploy.Command)
	sort.Strings(tools)
	return tools
}
