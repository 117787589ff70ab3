// Command edison is Edison's CLI binding: a thin cobra layer translating
// (domain, verb, flags) invocations into calls against the
// internal/workflow facade (spec.md §4.K, §6 "External interfaces"). It
// carries no business logic of its own — every decision lives in the
// component it dispatches to. Grounded on the corpus's cobra root-command
// shape (theRebelliousNerd-codenerd/cmd/nerd/main.go: a persistent-flag
// root command plus domain subcommand files).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version is set via ldflags at build time.
var Version = "dev"

var (
	workspace string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "edison",
	Short: "Edison orchestrates AI-driven software development workflows",
	Long: `Edison drives Task/QA/Session state machines, schedules validator
runs, and composes generated documents from layered configuration — all
file-backed and single-host.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "project root (default: current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(taskCmd, qaCmd, sessionCmd, maintenanceCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "edison: %v\n", err)
		os.Exit(1)
	}
}
