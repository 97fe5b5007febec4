package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"matter_intake_backend/internal/saga"

	"github.com/spf13/cobra"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <fileId>",
		Short: "Print a saga's persisted state as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer e.Close()

			state, err := saga.NewRepository(e.pool).Find(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printState(cmd.OutOrStdout(), state)
		},
	}
}

type replayFlags struct {
	stage string
}

func newReplayCommand() *cobra.Command {
	flags := &replayFlags{}

	cmd := &cobra.Command{
		Use:   "replay <fileId>",
		Short: "Republish the stage event a saga is waiting on",
		Long: `Republish the stage event for a saga.

Without --stage the stage matching the saga's current status is republished.
With --stage the saga must be at that stage, unless it is in error-processing:
an errored saga is reset to the status the named stage requires and resumed
from there. Completed sagas cannot be replayed.

Stages: ` + strings.Join(stageNames(), ", ") + `

Examples:
  # Re-drive a stalled saga
  intakectl replay 7f0c2e1a

  # Resume a failed saga from the files stage
  intakectl replay 7f0c2e1a --stage populate-files`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer e.Close()

			path, err := e.orchestrator().Replay(cmd.Context(), args[0], saga.Path(flags.stage))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %s for %s\n", path, args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.stage, "stage", "", "Stage to resume from (required for errored sagas)")
	return cmd
}

func stageNames() []string {
	var names []string
	for _, p := range saga.Paths() {
		if p != saga.PathStart {
			names = append(names, string(p))
		}
	}
	return names
}

func printState(w io.Writer, state saga.State) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(state)
}
