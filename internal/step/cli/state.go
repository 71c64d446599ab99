package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nemanja-m/mrstep/internal/step/core"
)

// newStateCommand builds a command that moves a step into state. A running
// step notices the change at its next poll.
func newStateCommand(root *rootOptions, use, short string, state core.ExecutableState) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <step_id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			ctx := cmd.Context()
			id := args[0]
			output, err := env.store.GetOutput(ctx, id)
			if errors.Is(err, core.ErrOutputNotFound) {
				return fmt.Errorf("unknown step %s", id)
			}
			if err != nil {
				return err
			}

			switch output.State {
			case core.StateSucceed, core.StateError, core.StateDiscarded:
				return fmt.Errorf("step %s already finished with state %s", id, output.State)
			}

			if err := env.store.UpdateOutput(ctx, id, state, nil, ""); err != nil {
				return err
			}
			env.logger.Info("Step state changed", "step_id", id, "from", output.State, "to", state)
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id, state)
			return nil
		},
	}
}
