package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

// errFixesFailed signals a run that finished but left failed fix attempts.
// The summary has already been printed, so Execute stays quiet about it.
var errFixesFailed = errors.New("one or more fixes failed")

func newRootCmd() *cobra.Command {
	g := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "vibeheal",
		Short: "Fix SonarQube issues with AI coding tools",
		Long: "vibeheal pulls open SonarQube issues for a file or a branch, asks an AI coding CLI " +
			"(Claude Code, Aider or Gemini) to fix them one at a time, and commits each fix.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&g.configPath, "config", "", "Config file (default ./.vibeheal.yaml)")
	cmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "Log format: console or json")
	cmd.PersistentFlags().StringVar(&g.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file when the run ends")
	cmd.PersistentFlags().BoolVar(&g.trace, "trace", false, "Export OpenTelemetry spans to stderr")

	cmd.AddCommand(newFixCmd(g))
	cmd.AddCommand(newCleanupCmd(g))
	cmd.AddCommand(newDedupeCmd(g))
	cmd.AddCommand(newDedupeBranchCmd(g))
	cmd.AddCommand(newIssuesCmd(g))
	cmd.AddCommand(newConfigCmd(g))
	cmd.AddCommand(newHistoryCmd(g))
	cmd.AddCommand(newMCPCmd(g))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// NewRootCmdForTest returns the root command for testing.
func NewRootCmdForTest() *cobra.Command {
	return newRootCmd()
}

// Execute runs the CLI. SIGINT and SIGTERM cancel the run context so the
// current fix finishes and cleanup still happens.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil && !errors.Is(err, errFixesFailed) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}
