// Command intakectl is the operator tool for the matter intake saga:
// inspecting and replaying sagas, managing intake API keys and running
// migrations.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "intakectl",
		Short:         "Operate the matter intake saga",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newStatusCommand(),
		newReplayCommand(),
		newAPIKeyCommand(),
		newMigrateCommand(),
	)
	return root
}
