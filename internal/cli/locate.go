package cli

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/futureCreator/autoship/internal/artifact"
)

var locateQuiet bool

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Print the newest build artifact",
	Args:  cobra.NoArgs,
	RunE:  runLocate,
}

func init() {
	locateCmd.Flags().BoolVarP(&locateQuiet, "quiet", "q", false, "print only the file name")
}

func runLocate(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, root)
	if err != nil {
		return err
	}

	dir := cfg.OutputDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	a, err := artifact.Locate(dir, artifact.Pattern{Prefix: cfg.Artifact.Prefix, Suffix: cfg.Artifact.Suffix})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if locateQuiet {
		fmt.Fprintln(w, a.Name)
		return nil
	}
	fmt.Fprintf(w, "%s  %s  %s\n", a.Path, humanize.Bytes(uint64(a.Size)), humanize.Time(a.ModTime))
	return nil
}
