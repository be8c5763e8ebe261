// Package main provides the entry point for the repopulse CLI tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/repopulse/cmd/repopulse/commands"
	"github.com/Sumatoshi-tech/repopulse/pkg/version"
)

const (
	exitFailure     = 1
	exitInterrupted = 130
)

func main() {
	version.InitBinaryVersion()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCommand().ExecuteContext(ctx)

	stop()

	if err != nil {
		if errors.Is(err, commands.ErrInterrupted) {
			fmt.Fprintln(os.Stderr, "Operation cancelled by user")
			os.Exit(exitInterrupted)
		}

		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitFailure)
	}
}

// newRootCommand returns the report command as root, so a bare invocation
// produces a report, with the other commands attached.
func newRootCommand() *cobra.Command {
	rootCmd := commands.NewReportCommand()
	rootCmd.Use = "repopulse"
	rootCmd.Short = "Repopulse - repository activity reporting across many working copies"
	rootCmd.Long = `Repopulse collects git history and configuration signals from every
working copy under a directory and renders contributor, organization and
repository activity reports.

Commands:
  report    Collect, aggregate and render (default)
  aggregate Re-aggregate saved repository records
  validate  Check configuration and optionally a report_raw.json
  digest    Print the configuration digest
  version   Show version information`

	rootCmd.AddCommand(commands.NewReportCommand())
	rootCmd.AddCommand(commands.NewAggregateCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewDigestCommand())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
