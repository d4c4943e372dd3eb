package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	vlog "github.com/futureCreator/autoship/internal/log"
	"github.com/futureCreator/autoship/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:   "autoship",
	Short: "Locate, verify, commit and deploy a web build",
	Long: `autoship releases a statically built web application: it finds the newest
build artifact, starts the dev server for a short manual verification window,
commits and pushes the working tree, then deploys the build output to the
static-hosting branch.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRelease,
}

// Execute runs the CLI. SIGINT and SIGTERM cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		errStyle := lipgloss.NewRenderer(os.Stderr).NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
		fmt.Fprintln(os.Stderr, errStyle.Render(vlog.Shout("error: "+err.Error())))
	}
	return err
}

// ExitCode maps the error returned by Execute to a process exit status:
// 0 for success, 130 when an interrupt cancelled the run, 1 otherwise.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	default:
		return 1
	}
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(locateCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(doctorCmd)
	addReleaseFlags(rootCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "autoship %s\n", version.Version)
	},
}
