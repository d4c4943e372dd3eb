package cli

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/futureCreator/autoship/internal/config"
	"github.com/futureCreator/autoship/internal/run"
)

var statsLimit int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show release statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().IntVarP(&statsLimit, "limit", "n", 20, "number of runs to list")
}

func runStats(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()

	root, err := projectRoot()
	if err != nil {
		return err
	}
	entries, err := run.List(filepath.Join(root, config.Dir, runsDirName))
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return nil
	}

	var completed, failed int
	var total time.Duration
	var finished int
	for _, e := range entries {
		switch e.Meta.Status {
		case run.StatusCompleted:
			completed++
		case run.StatusFailed:
			failed++
		}
		if e.Meta.FinishedAt != nil {
			total += e.Meta.FinishedAt.Sub(e.Meta.StartedAt)
			finished++
		}
	}

	fmt.Fprintf(w, "Runs: %d total, %d completed, %d failed\n", len(entries), completed, failed)
	if finished > 0 {
		fmt.Fprintf(w, "Average duration: %.0fs\n", (total / time.Duration(finished)).Seconds())
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-26s %-10s %-24s %s\n", "Run ID", "Status", "Artifact", "Started")
	fmt.Fprintln(w, strings.Repeat("─", 76))

	shown := entries
	if statsLimit > 0 && len(shown) > statsLimit {
		shown = shown[:statsLimit]
	}
	for _, e := range shown {
		name := e.Meta.Artifact
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(w, "%-26s %-10s %-24s %s\n", e.ID, e.Meta.Status, name, humanize.Time(e.Meta.StartedAt))
	}
	return nil
}
