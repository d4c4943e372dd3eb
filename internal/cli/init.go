package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/futureCreator/autoship/internal/assets"
	"github.com/futureCreator/autoship/internal/config"
)

var (
	initMinimal bool
	initUser    bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default autoship configuration",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initMinimal, "minimal", false, "write the configuration without comments")
	initCmd.Flags().BoolVar(&initUser, "user", false, "write ~/.autoship/config.yaml instead of the project config")
}

func runInit(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()

	root, err := projectRoot()
	if err != nil {
		return err
	}
	configDir := filepath.Join(root, config.Dir)
	if initUser {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("getting home dir: %w", err)
		}
		configDir = filepath.Join(home, config.Dir)
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if !initUser {
		if err := ensureStateDir(root); err != nil {
			return err
		}
	}

	configPath := filepath.Join(configDir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintf(w, "Config already exists: %s\n", configPath)
		return nil
	}

	name := "config.yaml"
	if initMinimal {
		name = "config.minimal.yaml"
	}
	content, err := assets.LoadTemplate(name)
	if err != nil {
		return err
	}
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Fprintf(w, "Created %s\n", configPath)
	fmt.Fprintln(w, "Edit the file to match your build, dev server and deploy commands.")
	return nil
}
